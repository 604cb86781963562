package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

const testSecret = "0123456789abcdef-secret"

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer(testSecret, "fintrack")

	token, err := iss.Issue("user-1", time.Hour)
	require.NoError(t, err)

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "fintrack", claims.Issuer)
}

func TestParseRejects(t *testing.T) {
	iss := NewIssuer(testSecret, "fintrack")
	good, err := iss.Issue("user-1", time.Hour)
	require.NoError(t, err)

	other, err := NewIssuer("another-secret-value!!", "fintrack").Issue("user-1", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewIssuer(testSecret, "someone-else").Issue("user-1", time.Hour)
	require.NoError(t, err)

	past := NewIssuer(testSecret, "fintrack")
	past.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, err := past.Issue("user-1", time.Hour)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": other,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"tampered":     good + "a",
		"empty":        "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Parse(token)
			assert.ErrorIs(t, err, core.ErrAuthentication)
		})
	}
}

func TestIssueRequiresUser(t *testing.T) {
	_, err := NewIssuer(testSecret, "").Issue("  ", time.Hour)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestMiddleware(t *testing.T) {
	iss := NewIssuer(testSecret, "fintrack")
	token, err := iss.Issue("user-42", time.Hour)
	require.NoError(t, err)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	skipPublic := func(r *http.Request) bool { return strings.HasPrefix(r.URL.Path, "/public") }
	h := iss.Middleware(skipPublic)(next)

	t.Run("valid token", func(t *testing.T) {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "user-42", seen)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		req.Header.Set("Authorization", "Basic "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("skipped path", func(t *testing.T) {
		seen = "unchanged"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/rates", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "", seen)
	})
}

func TestUserID(t *testing.T) {
	_, err := UserID(context.Background())
	assert.ErrorIs(t, err, core.ErrAuthentication)

	id, err := UserID(WithUser(context.Background(), "u1"))
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

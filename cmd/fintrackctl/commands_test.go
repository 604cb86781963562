package main

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/oauth2"

	"fintrack/internal/auth"
)

func run(t *testing.T, cmd subcommands.Command, args ...string) (subcommands.ExitStatus, string) {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	status := cmd.Execute(context.Background(), fs)
	return status, outputOf(cmd)
}

func outputOf(cmd subcommands.Command) string {
	switch c := cmd.(type) {
	case *ratesCmd:
		return c.out.(*bytes.Buffer).String()
	case *convertCmd:
		return c.out.(*bytes.Buffer).String()
	case *tokenCmd:
		return c.out.(*bytes.Buffer).String()
	case *migrateCmd:
		return c.out.(*bytes.Buffer).String()
	case *sheetsAuthCmd:
		return c.out.(*bytes.Buffer).String()
	}
	return ""
}

func fakeRates(t *testing.T) {
	t.Helper()
	tables := map[string]string{
		"USD": `{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"EUR":0.5}}`,
		"EUR": `{"result":"success","base_code":"EUR","conversion_rates":{"EUR":1,"USD":2}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		body, ok := tables[base]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("EXCHANGE_RATES_API_KEY", "test-key")
	t.Setenv("EXCHANGE_RATES_BASE_URL", srv.URL)
	t.Setenv("RATES_MAX_ATTEMPTS", "1")
}

func TestCommandsAreRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range commands(&bytes.Buffer{}) {
		names[c.Name()] = true
		assert.NotEmpty(t, c.Synopsis(), c.Name())
		assert.True(t, strings.HasPrefix(c.Usage(), "fintrackctl "+c.Name()), c.Name())
	}
	assert.Equal(t, map[string]bool{"rates": true, "convert": true, "token": true, "migrate": true, "sheets-auth": true}, names)
}

func TestRatesPrintsSortedTable(t *testing.T) {
	fakeRates(t)

	status, out := run(t, &ratesCmd{out: &bytes.Buffer{}}, "-base", "usd")
	require.Equal(t, subcommands.ExitSuccess, status)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "1 USD as of "))
	assert.Equal(t, "EUR  0.5", lines[1])
	assert.Equal(t, "USD  1", lines[2])
}

func TestRatesRawJSON(t *testing.T) {
	fakeRates(t)

	status, out := run(t, &ratesCmd{out: &bytes.Buffer{}}, "-base", "EUR", "-json")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, `"base_code":"EUR"`)
}

func TestRatesRejectsBadCode(t *testing.T) {
	status, _ := run(t, &ratesCmd{out: &bytes.Buffer{}}, "-base", "dollars")
	assert.Equal(t, subcommands.ExitFailure, status)
}

func TestConvert(t *testing.T) {
	fakeRates(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"pivot on target", []string{"-amount", "100", "-from", "USD", "-to", "EUR"}, "50.00"},
		{"fresh", []string{"-amount", "100", "-from", "USD", "-to", "EUR", "-fresh"}, "50.00"},
		{"same currency", []string{"-amount", "12.5", "-from", "EUR", "-to", "EUR"}, "12.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := run(t, &convertCmd{out: &bytes.Buffer{}}, tt.args...)
			require.Equal(t, subcommands.ExitSuccess, status)
			parts := strings.SplitN(strings.TrimSpace(out), " = ", 2)
			require.Len(t, parts, 2)
			assert.Contains(t, parts[1], tt.want)
		})
	}
}

func TestConvertRejectsBadAmount(t *testing.T) {
	status, out := run(t, &convertCmd{out: &bytes.Buffer{}}, "-amount", "ten", "-from", "USD", "-to", "EUR")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Empty(t, out)
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	status, out := run(t, &tokenCmd{out: &bytes.Buffer{}}, "-user", "alice")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Empty(t, out)
}

func TestTokenIsVerifiable(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("JWT_ISSUER", "fintrack")

	status, out := run(t, &tokenCmd{out: &bytes.Buffer{}}, "-user", "alice", "-ttl", "1h")
	require.Equal(t, subcommands.ExitSuccess, status)

	claims, err := auth.NewIssuer("0123456789abcdef", "fintrack").Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
}

func TestMigrateReportsVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fintrack.db")

	status, out := run(t, &migrateCmd{out: &bytes.Buffer{}}, "-db", dbPath)
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, dbPath+" at schema version ")
}

func TestSheetsAuthRequiresClient(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")

	status, out := run(t, &sheetsAuthCmd{out: &bytes.Buffer{}})
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Empty(t, out)
}

func TestCallbackHandler(t *testing.T) {
	codes := make(chan string, 1)
	h := callbackHandler(codes)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", <-codes)

	// A second redirect must not block once the code was taken.
	codes <- "pending"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=def", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", <-codes)
}

func TestSaveToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, saveToken(path, &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"refresh_token":"rt"`)
}

package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// fakeSheets records append calls and answers the A1 probe.
type fakeSheets struct {
	mu       sync.Mutex
	hasData  bool
	appended [][]any
	query    string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
		vr := gsheet.ValueRange{Range: "Spending!A1:A1"}
		if f.hasData {
			vr.Values = [][]any{{"Generated"}}
		}
		_ = json.NewEncoder(w).Encode(vr)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var body gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, body.Values...)
		f.query = r.URL.RawQuery
		f.hasData = true
		_ = json.NewEncoder(w).Encode(gsheet.AppendValuesResponse{
			SpreadsheetId: "sheet-id",
			Updates:       &gsheet.UpdateValuesResponse{UpdatedRange: "Spending!A2:E3"},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	c, err := NewWithService(svc, "sheet-id", "Spending")
	if err != nil {
		t.Fatalf("NewWithService() error = %v", err)
	}
	return c
}

func report() ports.SpendingReport {
	return ports.SpendingReport{
		UserID:       "u1",
		BaseCurrency: "EUR",
		GeneratedAt:  time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
		Months: []core.Bucket{
			{Key: "2024-02", Amount: decimal.RequireFromString("50")},
			{Key: "2024-03", Amount: decimal.RequireFromString("230.456")},
		},
	}
}

func TestWriteSpendingReport_FirstWriteAddsHeader(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.WriteSpendingReport(context.Background(), report())
	if err != nil {
		t.Fatalf("WriteSpendingReport() error = %v", err)
	}
	if ref != "Spending!A2:E3" {
		t.Errorf("ref = %q, want updated range from the API", ref)
	}
	if len(fake.appended) != 3 {
		t.Fatalf("appended %d rows, want header + 2", len(fake.appended))
	}
	if fake.appended[0][0] != "Generated" {
		t.Errorf("first row = %v, want header", fake.appended[0])
	}
	if got := fake.appended[2]; got[3] != "2024-03" || got[4] != "230.46" {
		t.Errorf("row = %v, want month 2024-03 amount 230.46", got)
	}
	if !strings.Contains(fake.query, "valueInputOption=USER_ENTERED") {
		t.Errorf("query = %q, want USER_ENTERED input", fake.query)
	}
}

func TestWriteSpendingReport_SkipsHeaderWhenSheetHasData(t *testing.T) {
	fake := &fakeSheets{hasData: true}
	c := newTestClient(t, fake)

	if _, err := c.WriteSpendingReport(context.Background(), report()); err != nil {
		t.Fatalf("WriteSpendingReport() error = %v", err)
	}
	if len(fake.appended) != 2 {
		t.Fatalf("appended %d rows, want 2", len(fake.appended))
	}
	if fake.appended[0][1] != "u1" || fake.appended[0][2] != "EUR" {
		t.Errorf("row = %v", fake.appended[0])
	}
}

func TestWriteSpendingReport_EmptyReport(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	r := report()
	r.Months = nil
	ref, err := c.WriteSpendingReport(context.Background(), r)
	if err != nil || ref != "" {
		t.Fatalf("WriteSpendingReport() = %q, %v; want empty ref and no error", ref, err)
	}
	if len(fake.appended) != 0 {
		t.Errorf("nothing should be appended for an empty report")
	}
}

func TestWriteSpendingReport_Errors(t *testing.T) {
	c := &Client{spreadsheetID: "test"} // svc is nil
	if _, err := c.WriteSpendingReport(context.Background(), report()); err == nil {
		t.Error("expected error when service not initialized")
	}

	fake := &fakeSheets{}
	c = newTestClient(t, fake)
	r := report()
	r.UserID = " "
	if _, err := c.WriteSpendingReport(context.Background(), r); err == nil {
		t.Error("expected error for a report without user")
	}
}

func TestNewWithService_RequiresSpreadsheet(t *testing.T) {
	_, err := NewWithService(nil, "  ", "Spending")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}

	c, err := NewWithService(nil, "id", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.sheetName != "Spending" {
		t.Errorf("sheetName = %q, want default Spending", c.sheetName)
	}
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS",
		"GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE",
		"GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE",
	} {
		t.Setenv(k, "")
	}
}

const installedClient = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	clearCredentialEnv(t)

	_, err := newSheetsService(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected missing credentials error, got: %v", err)
	}
}

func TestNewSheetsService_UnreadableFile(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/credentials.json")

	_, err := newSheetsService(context.Background())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected read error, got: %v", err)
	}
}

func TestNewSheetsService_OAuthFallback(t *testing.T) {
	tests := []struct {
		name    string
		client  string
		token   string
		wantErr string
	}{
		{"invalid client", "invalid-json", `{"access_token":"test"}`, "oauth config"},
		{"missing token", installedClient, "", "missing oauth token"},
		{"invalid token", installedClient, "{", "decode oauth token"},
		{"ok", installedClient, `{"access_token":"test","token_type":"Bearer"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCredentialEnv(t)
			t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", tt.client)
			t.Setenv("GOOGLE_OAUTH_TOKEN_JSON", tt.token)

			svc, err := newSheetsService(context.Background())
			if tt.wantErr == "" {
				if err != nil || svc == nil {
					t.Fatalf("newSheetsService() = %v, %v", svc, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestOAuthConfig_UsesSheetsScope(t *testing.T) {
	cfg, err := OAuthConfig([]byte(installedClient))
	if err != nil {
		t.Fatalf("OAuthConfig() error = %v", err)
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0] != gsheet.SpreadsheetsScope {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
}

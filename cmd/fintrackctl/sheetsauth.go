package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/oauth2"

	"fintrack/internal/sheets/google"
)

type sheetsAuthCmd struct {
	out        io.Writer
	clientFile string
	tokenFile  string
	port       string
	timeout    time.Duration
}

func (*sheetsAuthCmd) Name() string     { return "sheets-auth" }
func (*sheetsAuthCmd) Synopsis() string { return "authorize the report worker against Google Sheets" }
func (*sheetsAuthCmd) Usage() string {
	return `fintrackctl sheets-auth [-client <file>] [-token <file>] [-port <port>]

  Runs the OAuth consent flow for an installed-app client and saves the token
  for GOOGLE_OAUTH_TOKEN_FILE. Add http://localhost:<port>/callback to the
  client's authorized redirect URIs first.
`
}

func (c *sheetsAuthCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.clientFile, "client", os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"), "OAuth client JSON file.")
	f.StringVar(&c.tokenFile, "token", envDefault("GOOGLE_OAUTH_TOKEN_FILE", "token.json"), "Where to save the token.")
	f.StringVar(&c.port, "port", envDefault("OAUTH_REDIRECT_PORT", "8085"), "Local port for the redirect.")
	f.DurationVar(&c.timeout, "timeout", 5*time.Minute, "How long to wait for consent.")
}

func (c *sheetsAuthCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	clientJSON := []byte(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	if len(clientJSON) == 0 {
		if c.clientFile == "" {
			return fail(errors.New("set GOOGLE_OAUTH_CLIENT_JSON or pass -client"))
		}
		b, err := os.ReadFile(c.clientFile)
		if err != nil {
			return fail(fmt.Errorf("read client file: %w", err))
		}
		clientJSON = b
	}

	cfg, err := google.OAuthConfig(clientJSON)
	if err != nil {
		return fail(err)
	}
	cfg.RedirectURL = "http://localhost:" + c.port + "/callback"

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ln, err := net.Listen("tcp", "localhost:"+c.port)
	if err != nil {
		return fail(fmt.Errorf("listen for redirect: %w", err))
	}
	codes := make(chan string, 1)
	srv := &http.Server{Handler: callbackHandler(codes), ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Fprintf(c.out, "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codes:
	case <-ctx.Done():
		return fail(fmt.Errorf("authorization not completed: %w", ctx.Err()))
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fail(fmt.Errorf("token exchange: %w", err))
	}
	if err := saveToken(c.tokenFile, tok); err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.out, "Saved token to %s\n", c.tokenFile)
	return subcommands.ExitSuccess
}

// callbackHandler forwards the first authorization code it receives.
func callbackHandler(codes chan<- string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		select {
		case codes <- code:
		default:
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
	})
	return mux
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

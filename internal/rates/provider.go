// Package rates fetches exchange-rate tables from an exchangerate-api v6
// compatible upstream and keeps a short-lived snapshot per base currency.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/currency"
)

const (
	DefaultBaseURL  = "https://v6.exchangerate-api.com/v6"
	DefaultTTL      = 10 * time.Minute
	DefaultTimeout  = 5 * time.Second
	DefaultAttempts = 2

	maxBodyBytes = 1 << 20
)

// ErrMissingAPIKey is the cause reported when no upstream key is configured.
var ErrMissingAPIKey = errors.New("exchange rates API key is missing")

// Snapshot is one rate table pivoted on Base. Raw holds the upstream body.
type Snapshot struct {
	Base      string
	Rates     currency.Rates
	FetchedAt time.Time
	Raw       json.RawMessage
}

// Options configures a Provider. Zero values fall back to the defaults.
type Options struct {
	APIKey      string
	BaseURL     string
	TTL         time.Duration
	Timeout     time.Duration
	MaxAttempts int
	MaxEntries  int
	HTTPClient  *http.Client
}

// Provider serves rate snapshots, fetching at most once per base per TTL.
type Provider struct {
	apiKey      string
	baseURL     string
	timeout     time.Duration
	maxAttempts int
	client      *http.Client
	snapshots   *cache.LRUCache[Snapshot]
	group       singleflight.Group
	now         func() time.Time
	backoff     func(attempt int) time.Duration
}

var _ currency.Source = (*Provider)(nil)

func NewProvider(opts Options) *Provider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultAttempts
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 64
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = newHTTPClientWithPooling()
	}
	return &Provider{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
		client:      opts.HTTPClient,
		snapshots:   cache.NewLRUCache[Snapshot](opts.MaxEntries, opts.TTL),
		now:         time.Now,
		backoff:     retryDelay,
	}
}

// Cache exposes the snapshot cache so a cache.Manager can sweep it.
func (p *Provider) Cache() *cache.LRUCache[Snapshot] {
	return p.snapshots
}

// Configured reports whether an upstream API key is set.
func (p *Provider) Configured() bool {
	return p.apiKey != ""
}

// Rates returns the table pivoted on base. Concurrent misses for the same base
// share one upstream call. Every failure is a *core.RateFetchError.
func (p *Provider) Rates(ctx context.Context, base string) (Snapshot, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		return Snapshot{}, &core.RateFetchError{Currency: base, Cause: core.NewValidationError("currency", "base currency is required")}
	}
	if p.apiKey == "" {
		return Snapshot{}, &core.RateFetchError{Currency: base, Cause: ErrMissingAPIKey}
	}
	if snap, ok := p.snapshots.Get(base); ok {
		return snap, nil
	}

	v, err, shared := p.group.Do(base, func() (any, error) {
		if snap, ok := p.snapshots.Get(base); ok {
			return snap, nil
		}
		snap, err := p.fetch(context.WithoutCancel(ctx), base)
		if err != nil {
			return Snapshot{}, err
		}
		p.snapshots.Set(base, snap)
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Shared in-flight rate fetch", "base", base)
	}
	return v.(Snapshot), nil
}

// Latest implements currency.Source.
func (p *Provider) Latest(ctx context.Context, base string) (currency.Rates, error) {
	snap, err := p.Rates(ctx, base)
	if err != nil {
		return nil, err
	}
	return snap.Rates, nil
}

func (p *Provider) fetch(ctx context.Context, base string) (Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Snapshot{}, &core.RateFetchError{Currency: base, Cause: ctx.Err()}
			case <-time.After(p.backoff(attempt)):
			}
		}

		snap, err := p.fetchOnce(ctx, base)
		if err == nil {
			slog.InfoContext(ctx, "Fetched exchange rates",
				"base", base,
				"currencies", len(snap.Rates),
				"attempt", attempt+1)
			return snap, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
		slog.WarnContext(ctx, "Exchange rate fetch failed, retrying",
			"base", base,
			"attempt", attempt+1,
			"error", err)
	}
	return Snapshot{}, &core.RateFetchError{Currency: base, Cause: lastErr}
}

type upstreamResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// statusError is returned for non-2xx upstream responses.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}

func (p *Provider) fetchOnce(ctx context.Context, base string) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/latest/%s", p.baseURL, p.apiKey, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("request upstream: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read upstream body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Snapshot{}, &statusError{Code: resp.StatusCode}
	}

	var parsed upstreamResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Snapshot{}, fmt.Errorf("decode upstream body: %w", err)
	}
	if parsed.Result == "error" {
		return Snapshot{}, fmt.Errorf("upstream error: %s", parsed.ErrorType)
	}
	if len(parsed.ConversionRates) == 0 {
		return Snapshot{}, errors.New("upstream returned no conversion rates")
	}

	rates := make(currency.Rates, len(parsed.ConversionRates))
	for code, r := range parsed.ConversionRates {
		rates[strings.ToUpper(code)] = r
	}
	rates[base] = decimal.NewFromInt(1)

	return Snapshot{
		Base:      base,
		Rates:     rates,
		FetchedAt: p.now(),
		Raw:       json.RawMessage(body),
	}, nil
}

// isRetryable reports whether another attempt may succeed: transport
// failures, timeouts and 5xx responses.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func retryDelay(attempt int) time.Duration {
	return time.Duration(attempt) * 200 * time.Millisecond
}

// newHTTPClientWithPooling creates an HTTP client for the rates upstream with
// connection pooling. Per-attempt deadlines come from the request context.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 30 * time.Second}
}

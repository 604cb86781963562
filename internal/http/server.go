package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"fintrack/internal/aggregate"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/rates"
	"fintrack/internal/services"
)

const (
	readyTimeout  = 2 * time.Second
	proxyTimeout  = 10 * time.Second
	ratesProxyURL = "/api/exchange-rates"
)

// Ledger is the expense and budget write side.
type Ledger interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	CreateExpense(ctx context.Context, in services.ExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, id string, in services.ExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	CreateBudget(ctx context.Context, in services.BudgetInput) (core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
}

// Reports is the read side expressed in the caller's base currency.
type Reports interface {
	BaseCurrency(ctx context.Context) (string, error)
	SetBaseCurrency(ctx context.Context, code string) (string, error)
	Currencies(ctx context.Context) ([]core.Currency, error)
	Spending(ctx context.Context, groupBy aggregate.GroupBy) (core.Spending, error)
	Progress(ctx context.Context) ([]core.BudgetProgress, error)
	Dashboard(ctx context.Context) (core.Dashboard, error)
}

// RateSnapshots feeds the exchange-rate proxy.
type RateSnapshots interface {
	Configured() bool
	Rates(ctx context.Context, base string) (rates.Snapshot, error)
}

// Dependencies are the collaborators the API is built from. Ready may be nil.
type Dependencies struct {
	Ledger  Ledger
	Reports Reports
	Rates   RateSnapshots
	Tokens  *auth.Issuer
	Ready   func(ctx context.Context) error
	Logger  *applog.Logger
	Limits  ratelimit.Config
}

type Server struct {
	http.Server
	ledger   Ledger
	reports  Reports
	rates    RateSnapshots
	ready    func(ctx context.Context) error
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		ledger:   deps.Ledger,
		reports:  deps.Reports,
		rates:    deps.Rates,
		ready:    deps.Ready,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(deps.Limits),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	route := func(pattern, component string, h http.HandlerFunc) {
		mux.Handle(pattern, applog.ComponentMiddleware(component)(h))
	}

	route("GET "+ratesProxyURL, applog.ComponentRates, s.handleExchangeRates)
	route("GET /api/currencies", applog.ComponentRates, s.handleCurrencies)
	route("GET /api/me/base-currency", applog.ComponentDashboard, s.handleGetBaseCurrency)
	route("PUT /api/me/base-currency", applog.ComponentDashboard, s.handleSetBaseCurrency)

	route("GET /api/expenses", applog.ComponentExpense, s.handleListExpenses)
	route("POST /api/expenses", applog.ComponentExpense, s.handleCreateExpense)
	route("PUT /api/expenses/{id}", applog.ComponentExpense, s.handleUpdateExpense)
	route("DELETE /api/expenses/{id}", applog.ComponentExpense, s.handleDeleteExpense)

	route("GET /api/budgets", applog.ComponentBudget, s.handleListBudgets)
	route("POST /api/budgets", applog.ComponentBudget, s.handleCreateBudget)
	route("DELETE /api/budgets/{id}", applog.ComponentBudget, s.handleDeleteBudget)
	route("GET /api/budgets/progress", applog.ComponentBudget, s.handleBudgetProgress)

	route("GET /api/spending", applog.ComponentDashboard, s.handleSpending)
	route("GET /api/dashboard", applog.ComponentDashboard, s.handleDashboard)

	var handler http.Handler = mux
	if deps.Tokens != nil {
		handler = deps.Tokens.Middleware(isPublic)(handler)
	}
	handler = applog.RequestIDMiddleware(trace.RequestID)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutatingOnly)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// isPublic lists the routes served without a bearer token.
func isPublic(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == ratesProxyURL
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

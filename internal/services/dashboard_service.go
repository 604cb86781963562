package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/aggregate"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	applog "fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/storage"
)

// RateSource serves whole rate snapshots as well as bare tables.
type RateSource interface {
	currency.Source
	Rates(ctx context.Context, base string) (rates.Snapshot, error)
}

// DashboardService answers the read side: spending aggregates, budget
// progress and the combined dashboard, all in the caller's base currency.
type DashboardService struct {
	store     storage.Store
	rates     RateSource
	agg       *aggregate.Aggregator
	cache     *cache.ClientCache
	publisher Publisher
	logger    *applog.Logger
	now       func() time.Time
}

func NewDashboardService(store storage.Store, source RateSource, agg *aggregate.Aggregator, clientCache *cache.ClientCache, publisher Publisher, logger *applog.Logger) *DashboardService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if agg == nil {
		agg = aggregate.New(source, nil)
	}
	return &DashboardService{
		store:     store,
		rates:     source,
		agg:       agg,
		cache:     clientCache,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentDashboard),
		now:       time.Now,
	}
}

// BaseCurrency returns the caller's reporting currency or core.ErrConfiguration
// when none has been chosen yet.
func (s *DashboardService) BaseCurrency(ctx context.Context) (string, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return "", err
	}
	return s.baseCurrency(ctx, userID)
}

func (s *DashboardService) baseCurrency(ctx context.Context, userID string) (string, error) {
	code, err := s.store.BaseCurrency(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load base currency: %w", err)
	}
	if code == "" {
		return "", fmt.Errorf("%w: base currency is not set", core.ErrConfiguration)
	}
	return code, nil
}

// SetBaseCurrency stores the caller's reporting currency and drops every
// cached view expressed in the old one.
func (s *DashboardService) SetBaseCurrency(ctx context.Context, code string) (string, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return "", err
	}
	code, err = core.NormalizeCurrency(code)
	if err != nil {
		return "", err
	}
	if err := s.store.SetBaseCurrency(ctx, userID, code); err != nil {
		return "", fmt.Errorf("save base currency: %w", err)
	}

	s.cache.InvalidateAfter(cache.MutationBaseCurrency, userID)
	s.logger.InfoContext(ctx, "Base currency changed",
		applog.FieldUserID, userID,
		applog.FieldBaseCurrency, code)
	publish(ctx, s.publisher, s.logger, userID, string(cache.MutationBaseCurrency), applog.OpUpdate, code)
	return code, nil
}

// Currencies lists the selectable currencies with their display symbols.
func (s *DashboardService) Currencies(ctx context.Context) ([]core.Currency, error) {
	list, err := s.store.ListCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	return list, nil
}

// Spending groups the caller's expenses in their base currency. Month
// buckets run oldest first. The result carries the base it was computed in,
// which may differ from BaseCurrency when the preference changes meanwhile.
func (s *DashboardService) Spending(ctx context.Context, groupBy aggregate.GroupBy) (core.Spending, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return core.Spending{}, err
	}
	groupBy, err = aggregate.ParseGroupBy(string(groupBy))
	if err != nil {
		return core.Spending{}, err
	}
	base, err := s.baseCurrency(ctx, userID)
	if err != nil {
		return core.Spending{}, err
	}

	key := cache.Key(cache.ResourceSpending, userID, "group-by="+string(groupBy))
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (core.Spending, error) {
		expenses, err := s.store.FindExpensesByUser(ctx, userID)
		if err != nil {
			return core.Spending{}, fmt.Errorf("list expenses: %w", err)
		}
		buckets, err := s.agg.Aggregate(ctx, byDate(expenses), base, groupBy)
		if err != nil {
			return core.Spending{}, err
		}
		return core.Spending{BaseCurrency: base, Buckets: buckets}, nil
	})
}

// Progress measures every budget of the caller against its linked expenses.
func (s *DashboardService) Progress(ctx context.Context) ([]core.BudgetProgress, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	base, err := s.baseCurrency(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := cache.Key(cache.ResourceProgress, userID, "all")
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]core.BudgetProgress, error) {
		expenses, budgets, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(budgets) == 0 {
			return []core.BudgetProgress{}, nil
		}
		snap, err := s.rates.Rates(ctx, base)
		if err != nil {
			return nil, fmt.Errorf("budget progress: %w", err)
		}
		return s.progress(budgets, expenses, snap.Rates)
	})
}

// Dashboard builds the whole overview from one rate snapshot.
func (s *DashboardService) Dashboard(ctx context.Context) (core.Dashboard, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	base, err := s.baseCurrency(ctx, userID)
	if err != nil {
		return core.Dashboard{}, err
	}

	key := cache.Key(cache.ResourceDashboard, userID, "all")
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (core.Dashboard, error) {
		return s.buildDashboard(ctx, userID, base)
	})
}

func (s *DashboardService) buildDashboard(ctx context.Context, userID, base string) (core.Dashboard, error) {
	start := time.Now()
	expenses, budgets, err := s.load(ctx, userID)
	if err != nil {
		return core.Dashboard{}, err
	}
	if err := aggregate.ValidateExpenses(expenses); err != nil {
		return core.Dashboard{}, err
	}

	d := core.Dashboard{
		BaseCurrency: base,
		TotalSpent:   decimal.Zero,
		TotalBudget:  decimal.Zero,
		Monthly:      []core.Bucket{},
		ByCategory:   []core.Bucket{},
		Progress:     []core.BudgetProgress{},
	}
	if len(expenses) == 0 && len(budgets) == 0 {
		return d, nil
	}

	snap, err := s.rates.Rates(ctx, base)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	d.RatesAsOf = snap.FetchedAt

	if d.Monthly, err = s.agg.AggregateWithRates(byDate(expenses), base, aggregate.GroupByMonth, snap.Rates); err != nil {
		return core.Dashboard{}, err
	}
	if d.ByCategory, err = s.agg.AggregateWithRates(expenses, base, aggregate.GroupByCategory, snap.Rates); err != nil {
		return core.Dashboard{}, err
	}
	if d.TotalSpent, err = s.agg.TotalWithRates(expenses, base, snap.Rates); err != nil {
		return core.Dashboard{}, err
	}
	if d.TotalBudget, err = s.agg.TotalBudget(budgets, base, snap.Rates); err != nil {
		return core.Dashboard{}, err
	}
	if d.Progress, err = s.progress(budgets, expenses, snap.Rates); err != nil {
		return core.Dashboard{}, err
	}

	s.logger.DebugContext(ctx, "Dashboard built",
		applog.FieldUserID, userID,
		applog.FieldBaseCurrency, base,
		"expenses", len(expenses),
		"budgets", len(budgets),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return d, nil
}

// load reads expenses and budgets concurrently. The first failure cancels the other read.
func (s *DashboardService) load(ctx context.Context, userID string) ([]core.Expense, []core.Budget, error) {
	var (
		expenses []core.Expense
		budgets  []core.Budget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.store.FindExpensesByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		budgets, err = s.store.FindBudgetsByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return expenses, budgets, nil
}

func (s *DashboardService) progress(budgets []core.Budget, expenses []core.Expense, table currency.Rates) ([]core.BudgetProgress, error) {
	now := s.now()
	out := make([]core.BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		p, err := s.agg.BudgetProgress(b, aggregate.LinkedExpenses(b, expenses), table, now)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// byDate returns a copy of expenses ordered oldest first so the monthly
// trend reads left to right.
func byDate(expenses []core.Expense) []core.Expense {
	sorted := make([]core.Expense, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

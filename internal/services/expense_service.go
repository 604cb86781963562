package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// Publisher announces committed changes to other processes.
type Publisher interface {
	PublishResourceChanged(ctx context.Context, userID, resource, operation, id string) error
}

// ExpenseInput is the caller-supplied part of an expense.
type ExpenseInput struct {
	Amount      decimal.Decimal
	Currency    string
	Category    core.Category
	Date        time.Time
	Description string
}

// BudgetInput is the caller-supplied part of a budget.
type BudgetInput struct {
	Category core.Category
	Currency string
	Amount   decimal.Decimal
	Period   core.Period
}

// ExpenseService orchestrates expense and budget writes across the store,
// the client cache and the change feed.
type ExpenseService struct {
	store     storage.Store
	cache     *cache.ClientCache
	publisher Publisher
	logger    *applog.Logger
	events    *applog.StructuredLogger
	now       func() time.Time
}

func NewExpenseService(store storage.Store, clientCache *cache.ClientCache, publisher Publisher, logger *applog.Logger) *ExpenseService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentExpense)
	return &ExpenseService{
		store:     store,
		cache:     clientCache,
		publisher: publisher,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func expensesKey(userID string) string {
	return cache.Key(cache.ResourceExpenses, userID, "all")
}

func budgetsKey(userID string) string {
	return cache.Key(cache.ResourceBudgets, userID, "all")
}

// ListExpenses returns the caller's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, expensesKey(userID), func(ctx context.Context) ([]core.Expense, error) {
		list, err := s.store.FindExpensesByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
		return list, nil
	})
}

// CreateExpense validates and saves a new expense for the caller. The cached
// expense list shows it immediately and is restored if the write fails.
func (s *ExpenseService) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return core.Expense{}, err
	}

	now := s.now()
	e := core.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      in.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(in.Currency)),
		Category:    in.Category,
		Date:        in.Date,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	opt := cache.BeginOptimistic(s.cache, expensesKey(userID), func(current []core.Expense) []core.Expense {
		return append([]core.Expense{e}, current...)
	})
	if err := opt.Settle(s.store.CreateExpense(ctx, e)); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.afterWrite(ctx, cache.MutationExpense, userID, applog.OpCreate, e.ID)
	s.events.LogExpenseChanged(ctx, applog.OpCreate, e)
	return e, nil
}

// UpdateExpense replaces the editable fields of one of the caller's expenses.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id string, in ExpenseInput) (core.Expense, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return core.Expense{}, err
	}

	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("load expense %s: %w", id, err)
	}
	e.Amount = in.Amount
	e.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	e.Category = in.Category
	e.Date = in.Date
	e.Description = strings.TrimSpace(in.Description)
	e.UpdatedAt = s.now()
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}

	s.afterWrite(ctx, cache.MutationExpense, userID, applog.OpUpdate, e.ID)
	s.events.LogExpenseChanged(ctx, applog.OpUpdate, e)
	return e, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	s.afterWrite(ctx, cache.MutationExpense, userID, applog.OpDelete, id)
	s.events.LogExpenseChanged(ctx, applog.OpDelete, core.Expense{ID: id, UserID: userID})
	return nil
}

// ListBudgets returns the caller's budgets, oldest first.
func (s *ExpenseService) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, budgetsKey(userID), func(ctx context.Context) ([]core.Budget, error) {
		list, err := s.store.FindBudgetsByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list budgets: %w", err)
		}
		return list, nil
	})
}

func (s *ExpenseService) CreateBudget(ctx context.Context, in BudgetInput) (core.Budget, error) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return core.Budget{}, err
	}

	now := s.now()
	b := core.Budget{
		ID:        uuid.NewString(),
		UserID:    userID,
		Category:  in.Category,
		Currency:  strings.ToUpper(strings.TrimSpace(in.Currency)),
		Amount:    in.Amount,
		Period:    in.Period,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	opt := cache.BeginOptimistic(s.cache, budgetsKey(userID), func(current []core.Budget) []core.Budget {
		next := make([]core.Budget, 0, len(current)+1)
		return append(append(next, current...), b)
	})
	if err := opt.Settle(s.store.CreateBudget(ctx, b)); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}

	s.afterWrite(ctx, cache.MutationBudget, userID, applog.OpCreate, b.ID)
	s.events.LogBudgetChanged(ctx, applog.OpCreate, b)
	return b, nil
}

func (s *ExpenseService) DeleteBudget(ctx context.Context, id string) error {
	userID, err := auth.UserID(ctx)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	s.afterWrite(ctx, cache.MutationBudget, userID, applog.OpDelete, id)
	s.events.LogBudgetChanged(ctx, applog.OpDelete, core.Budget{ID: id, UserID: userID})
	return nil
}

// afterWrite drops stale cached views and announces the change. Publishing
// is best effort: the write is already committed.
func (s *ExpenseService) afterWrite(ctx context.Context, m cache.Mutation, userID, op, id string) {
	removed := s.cache.InvalidateAfter(m, userID)
	s.logger.DebugContext(ctx, "Invalidated cached views",
		applog.FieldUserID, userID,
		applog.FieldResource, string(m),
		"removed", removed)
	publish(ctx, s.publisher, s.logger, userID, string(m), op, id)
}

func publish(ctx context.Context, p Publisher, logger *applog.Logger, userID, resource, op, id string) {
	if p == nil {
		logger.DebugContext(ctx, "No publisher configured, skipping change event")
		return
	}
	if err := p.PublishResourceChanged(ctx, userID, resource, op, id); err != nil {
		logger.ErrorContext(ctx, "Failed to publish change event",
			applog.FieldUserID, userID,
			applog.FieldResource, resource,
			applog.FieldResourceID, id,
			applog.FieldError, err)
	}
}

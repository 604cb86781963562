package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite schema ready", applog.FieldComponent, applog.ComponentStorage, "path", dbPath, "version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return t, nil
}

func expenseToRow(e core.Expense) ExpenseRow {
	return ExpenseRow{
		ID:          e.ID,
		UserID:      e.UserID,
		Amount:      e.Amount.String(),
		Currency:    e.Currency,
		Category:    string(e.Category),
		Date:        formatTime(e.Date),
		Description: e.Description,
		CreatedAt:   formatTime(e.CreatedAt),
		UpdatedAt:   formatTime(e.UpdatedAt),
	}
}

func rowToExpense(r ExpenseRow) (core.Expense, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse amount of expense %s: %w", r.ID, err)
	}
	date, err := parseTime("date", r.Date)
	if err != nil {
		return core.Expense{}, err
	}
	created, err := parseTime("created_at", r.CreatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	updated, err := parseTime("updated_at", r.UpdatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		ID:          r.ID,
		UserID:      r.UserID,
		Amount:      amount,
		Currency:    r.Currency,
		Category:    core.Category(r.Category),
		Date:        date,
		Description: r.Description,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func budgetToRow(b core.Budget) BudgetRow {
	return BudgetRow{
		ID:        b.ID,
		UserID:    b.UserID,
		Category:  string(b.Category),
		Currency:  b.Currency,
		Amount:    b.Amount.String(),
		Period:    string(b.Period),
		CreatedAt: formatTime(b.CreatedAt),
		UpdatedAt: formatTime(b.UpdatedAt),
	}
}

func rowToBudget(r BudgetRow) (core.Budget, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return core.Budget{}, fmt.Errorf("parse amount of budget %s: %w", r.ID, err)
	}
	created, err := parseTime("created_at", r.CreatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	updated, err := parseTime("updated_at", r.UpdatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	return core.Budget{
		ID:        r.ID,
		UserID:    r.UserID,
		Category:  core.Category(r.Category),
		Currency:  r.Currency,
		Amount:    amount,
		Period:    core.Period(r.Period),
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func (r *SQLiteRepository) FindExpensesByUser(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := rowToExpense(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	if row.UserID != userID {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrOwnership)
	}
	return rowToExpense(row)
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	if err := r.queries.CreateExpense(ctx, expenseToRow(e)); err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"amount", e.Amount.String(),
		"currency", e.Currency,
		"category", e.Category)
	return nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	if _, err := r.GetExpense(ctx, e.UserID, e.ID); err != nil {
		return err
	}
	if _, err := r.queries.UpdateExpense(ctx, expenseToRow(e)); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	if _, err := r.GetExpense(ctx, userID, id); err != nil {
		return err
	}
	if _, err := r.queries.DeleteExpense(ctx, id, userID); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) FindBudgetsByUser(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgetsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, 0, len(rows))
	for _, row := range rows {
		b, err := rowToBudget(row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	if err := r.queries.CreateBudget(ctx, budgetToRow(b)); err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget saved to SQLite",
		"id", b.ID,
		"user_id", b.UserID,
		"category", b.Category,
		"period", b.Period)
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	owner, err := r.queries.GetBudgetOwner(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get budget: %w", err)
	}
	if owner != userID {
		return fmt.Errorf("budget %s: %w", id, core.ErrOwnership)
	}
	if _, err := r.queries.DeleteBudget(ctx, id, userID); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BaseCurrency(ctx context.Context, userID string) (string, error) {
	code, err := r.queries.GetBaseCurrency(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get base currency: %w", err)
	}
	return code, nil
}

func (r *SQLiteRepository) SetBaseCurrency(ctx context.Context, userID, code string) error {
	if err := r.queries.UpsertBaseCurrency(ctx, userID, code, formatTime(time.Now())); err != nil {
		return fmt.Errorf("set base currency: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCurrencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.queries.ListCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	out := make([]core.Currency, len(rows))
	for i, row := range rows {
		out[i] = core.Currency{Code: row.Code, Symbol: row.Symbol, Name: row.Name}
	}
	return out, nil
}

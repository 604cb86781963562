package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the raw SQL for the repository. Rows use the column types as
// stored: decimal amounts and timestamps are TEXT.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type ExpenseRow struct {
	ID          string
	UserID      string
	Amount      string
	Currency    string
	Category    string
	Date        string
	Description string
	CreatedAt   string
	UpdatedAt   string
}

type BudgetRow struct {
	ID        string
	UserID    string
	Category  string
	Currency  string
	Amount    string
	Period    string
	CreatedAt string
	UpdatedAt string
}

const expenseColumns = `id, user_id, amount, currency, category, date, description, created_at, updated_at`

func scanExpense(s interface{ Scan(...any) error }) (ExpenseRow, error) {
	var r ExpenseRow
	err := s.Scan(&r.ID, &r.UserID, &r.Amount, &r.Currency, &r.Category, &r.Date, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const createExpense = `INSERT INTO expenses (` + expenseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, r ExpenseRow) error {
	_, err := q.db.ExecContext(ctx, createExpense,
		r.ID, r.UserID, r.Amount, r.Currency, r.Category, r.Date, r.Description, r.CreatedAt, r.UpdatedAt)
	return err
}

const getExpense = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id string) (ExpenseRow, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const listExpensesByUser = `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = ? ORDER BY date DESC, created_at DESC`

func (q *Queries) ListExpensesByUser(ctx context.Context, userID string) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ExpenseRow
	for rows.Next() {
		r, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateExpense = `UPDATE expenses
SET amount = ?, currency = ?, category = ?, date = ?, description = ?, updated_at = ?
WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateExpense(ctx context.Context, r ExpenseRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateExpense,
		r.Amount, r.Currency, r.Category, r.Date, r.Description, r.UpdatedAt, r.ID, r.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpense = `DELETE FROM expenses WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpense, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const budgetColumns = `id, user_id, category, currency, amount, period, created_at, updated_at`

func scanBudget(s interface{ Scan(...any) error }) (BudgetRow, error) {
	var r BudgetRow
	err := s.Scan(&r.ID, &r.UserID, &r.Category, &r.Currency, &r.Amount, &r.Period, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const createBudget = `INSERT INTO budgets (` + budgetColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateBudget(ctx context.Context, r BudgetRow) error {
	_, err := q.db.ExecContext(ctx, createBudget,
		r.ID, r.UserID, r.Category, r.Currency, r.Amount, r.Period, r.CreatedAt, r.UpdatedAt)
	return err
}

const getBudgetOwner = `SELECT user_id FROM budgets WHERE id = ?`

func (q *Queries) GetBudgetOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := q.db.QueryRowContext(ctx, getBudgetOwner, id).Scan(&owner)
	return owner, err
}

const listBudgetsByUser = `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ? ORDER BY created_at ASC`

func (q *Queries) ListBudgetsByUser(ctx context.Context, userID string) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BudgetRow
	for rows.Next() {
		r, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const deleteBudget = `DELETE FROM budgets WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteBudget(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteBudget, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getBaseCurrency = `SELECT COALESCE(base_currency, '') FROM users WHERE id = ?`

func (q *Queries) GetBaseCurrency(ctx context.Context, userID string) (string, error) {
	var code string
	err := q.db.QueryRowContext(ctx, getBaseCurrency, userID).Scan(&code)
	return code, err
}

const upsertBaseCurrency = `INSERT INTO users (id, base_currency, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET base_currency = excluded.base_currency, updated_at = excluded.updated_at`

func (q *Queries) UpsertBaseCurrency(ctx context.Context, userID, code, updatedAt string) error {
	_, err := q.db.ExecContext(ctx, upsertBaseCurrency, userID, code, updatedAt)
	return err
}

const listCurrencies = `SELECT code, symbol, name FROM currencies ORDER BY code`

type CurrencyRow struct {
	Code   string
	Symbol string
	Name   string
}

func (q *Queries) ListCurrencies(ctx context.Context) ([]CurrencyRow, error) {
	rows, err := q.db.QueryContext(ctx, listCurrencies)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CurrencyRow
	for rows.Next() {
		var r CurrencyRow
		if err := rows.Scan(&r.Code, &r.Symbol, &r.Name); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

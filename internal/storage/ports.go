package storage

import (
	"context"

	"fintrack/internal/core"
)

// Ports implemented by every storage backend. Methods taking a userID
// enforce ownership: a record of another user yields core.ErrOwnership and
// an unknown id yields core.ErrNotFound.
type (
	ExpenseStore interface {
		FindExpensesByUser(ctx context.Context, userID string) ([]core.Expense, error)
		GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
		CreateExpense(ctx context.Context, e core.Expense) error
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, userID, id string) error
	}

	BudgetStore interface {
		FindBudgetsByUser(ctx context.Context, userID string) ([]core.Budget, error)
		CreateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, id string) error
	}

	// ProfileStore keeps per-user preferences. An unset base currency is "".
	ProfileStore interface {
		BaseCurrency(ctx context.Context, userID string) (string, error)
		SetBaseCurrency(ctx context.Context, userID, code string) error
	}

	CurrencyReader interface {
		ListCurrencies(ctx context.Context) ([]core.Currency, error)
	}

	Store interface {
		ExpenseStore
		BudgetStore
		ProfileStore
		CurrencyReader
		Close() error
	}
)

// SeedCurrencies is the currency list every backend starts with.
var SeedCurrencies = []core.Currency{
	{Code: "AZN", Symbol: "₼", Name: "Azerbaijani Manat"},
	{Code: "CAD", Symbol: "C$", Name: "Canadian Dollar"},
	{Code: "CHF", Symbol: "CHF", Name: "Swiss Franc"},
	{Code: "EUR", Symbol: "€", Name: "Euro"},
	{Code: "GBP", Symbol: "£", Name: "British Pound"},
	{Code: "JPY", Symbol: "¥", Name: "Japanese Yen"},
	{Code: "TRY", Symbol: "₺", Name: "Turkish Lira"},
	{Code: "USD", Symbol: "$", Name: "US Dollar"},
}

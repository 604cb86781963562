// Package storetest holds the behaviour every storage backend must share.
package storetest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// StoreSuite runs the shared contract against the Store returned by NewStore.
type StoreSuite struct {
	suite.Suite
	NewStore func() storage.Store
	store    storage.Store
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	s.store = s.NewStore()
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

var created = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func Expense(id, user string, cat core.Category, date time.Time) core.Expense {
	return core.Expense{
		ID:          id,
		UserID:      user,
		Amount:      decimal.RequireFromString("12.34"),
		Currency:    "EUR",
		Category:    cat,
		Date:        date,
		Description: "expense " + id,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func Budget(id, user string, cat core.Category) core.Budget {
	return core.Budget{
		ID:        id,
		UserID:    user,
		Category:  cat,
		Currency:  "USD",
		Amount:    decimal.RequireFromString("300"),
		Period:    core.PeriodMonthly,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func (s *StoreSuite) TestExpenseLifecycle() {
	t := s.T()
	e := Expense("e1", "u1", core.CategoryFood, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.store.CreateExpense(s.ctx, e))

	got, err := s.store.GetExpense(s.ctx, "u1", "e1")
	require.NoError(t, err)
	s.True(got.Amount.Equal(e.Amount))
	s.True(got.Date.Equal(e.Date))
	s.Equal(e.Category, got.Category)
	s.Equal(e.Description, got.Description)

	got.Description = "updated"
	got.Amount = decimal.RequireFromString("99.5")
	require.NoError(t, s.store.UpdateExpense(s.ctx, got))

	list, err := s.store.FindExpensesByUser(s.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	s.Equal("updated", list[0].Description)
	s.Equal("99.5", list[0].Amount.String())

	require.NoError(t, s.store.DeleteExpense(s.ctx, "u1", "e1"))
	_, err = s.store.GetExpense(s.ctx, "u1", "e1")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *StoreSuite) TestExpensesScopedToUser() {
	t := s.T()
	require.NoError(t, s.store.CreateExpense(s.ctx, Expense("a", "u1", core.CategoryFood, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, s.store.CreateExpense(s.ctx, Expense("b", "u1", core.CategoryTravel, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, s.store.CreateExpense(s.ctx, Expense("c", "u2", core.CategoryFood, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))))

	list, err := s.store.FindExpensesByUser(s.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	s.Equal("b", list[0].ID, "newest first")
	s.Equal("a", list[1].ID)

	empty, err := s.store.FindExpensesByUser(s.ctx, "nobody")
	require.NoError(t, err)
	s.Empty(empty)
}

func (s *StoreSuite) TestExpenseOwnership() {
	t := s.T()
	e := Expense("e1", "owner", core.CategoryFood, created)
	require.NoError(t, s.store.CreateExpense(s.ctx, e))

	_, err := s.store.GetExpense(s.ctx, "intruder", "e1")
	s.ErrorIs(err, core.ErrOwnership)

	e.UserID = "intruder"
	s.ErrorIs(s.store.UpdateExpense(s.ctx, e), core.ErrOwnership)
	s.ErrorIs(s.store.DeleteExpense(s.ctx, "intruder", "e1"), core.ErrOwnership)
	s.ErrorIs(s.store.DeleteExpense(s.ctx, "owner", "missing"), core.ErrNotFound)

	_, err = s.store.GetExpense(s.ctx, "owner", "e1")
	s.NoError(err, "failed mutations must leave the record intact")
}

func (s *StoreSuite) TestBudgetLifecycle() {
	t := s.T()
	require.NoError(t, s.store.CreateBudget(s.ctx, Budget("b1", "u1", core.CategoryFood)))
	require.NoError(t, s.store.CreateBudget(s.ctx, Budget("b2", "u2", core.CategoryFood)))

	list, err := s.store.FindBudgetsByUser(s.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	s.Equal("b1", list[0].ID)
	s.Equal(core.PeriodMonthly, list[0].Period)
	s.Equal("300", list[0].Amount.String())

	s.ErrorIs(s.store.DeleteBudget(s.ctx, "u1", "b2"), core.ErrOwnership)
	s.ErrorIs(s.store.DeleteBudget(s.ctx, "u1", "nope"), core.ErrNotFound)
	s.NoError(s.store.DeleteBudget(s.ctx, "u1", "b1"))

	list, err = s.store.FindBudgetsByUser(s.ctx, "u1")
	require.NoError(t, err)
	s.Empty(list)
}

func (s *StoreSuite) TestBaseCurrency() {
	t := s.T()
	code, err := s.store.BaseCurrency(s.ctx, "u1")
	require.NoError(t, err)
	s.Equal("", code)

	require.NoError(t, s.store.SetBaseCurrency(s.ctx, "u1", "EUR"))
	require.NoError(t, s.store.SetBaseCurrency(s.ctx, "u1", "TRY"))

	code, err = s.store.BaseCurrency(s.ctx, "u1")
	require.NoError(t, err)
	s.Equal("TRY", code)
}

func (s *StoreSuite) TestCurrenciesSeeded() {
	list, err := s.store.ListCurrencies(s.ctx)
	require.NoError(s.T(), err)

	symbols := map[string]string{}
	for _, c := range list {
		symbols[c.Code] = c.Symbol
	}
	s.Equal("$", symbols["USD"])
	s.Equal("€", symbols["EUR"])
	s.Equal("₺", symbols["TRY"])
	s.Equal("₼", symbols["AZN"])
	s.Len(list, len(storage.SeedCurrencies))
}

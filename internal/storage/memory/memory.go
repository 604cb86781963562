// Package memory is a process-local storage backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Store struct {
	mu         sync.Mutex
	expenses   map[string]core.Expense
	budgets    map[string]core.Budget
	bases      map[string]string
	currencies []core.Currency
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store seeded with storage.SeedCurrencies.
func New() *Store {
	return &Store{
		expenses:   make(map[string]core.Expense),
		budgets:    make(map[string]core.Budget),
		bases:      make(map[string]string),
		currencies: append([]core.Currency(nil), storage.SeedCurrencies...),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) FindExpensesByUser(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	// Newest first, matching the SQL backend.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownedExpense(userID, id)
}

func (s *Store) ownedExpense(userID, id string) (core.Expense, error) {
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	if e.UserID != userID {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrOwnership)
	}
	return e, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.expenses[e.ID]; exists {
		return fmt.Errorf("expense %s already exists", e.ID)
	}
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownedExpense(e.UserID, e.ID); err != nil {
		return err
	}
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownedExpense(userID, id); err != nil {
		return err
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) FindBudgetsByUser(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Budget, 0)
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.budgets[b.ID]; exists {
		return fmt.Errorf("budget %s already exists", b.ID)
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if b.UserID != userID {
		return fmt.Errorf("budget %s: %w", id, core.ErrOwnership)
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) BaseCurrency(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bases[userID], nil
}

func (s *Store) SetBaseCurrency(_ context.Context, userID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bases[userID] = code
	return nil
}

func (s *Store) ListCurrencies(_ context.Context) ([]core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Currency(nil), s.currencies...), nil
}

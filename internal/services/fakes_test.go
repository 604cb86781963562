package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	applog "fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/storage/memory"
)

var fetchedAt = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeRates struct {
	mu    sync.Mutex
	table currency.Rates
	err   error
	calls int
	bases []string
}

func (f *fakeRates) Rates(_ context.Context, base string) (rates.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.bases = append(f.bases, base)
	if f.err != nil {
		return rates.Snapshot{}, &core.RateFetchError{Currency: base, Cause: f.err}
	}
	return rates.Snapshot{Base: base, Rates: f.table, FetchedAt: fetchedAt}, nil
}

func (f *fakeRates) Latest(ctx context.Context, base string) (currency.Rates, error) {
	snap, err := f.Rates(ctx, base)
	if err != nil {
		return nil, err
	}
	return snap.Rates, nil
}

func (f *fakeRates) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type event struct {
	UserID, Resource, Operation, ID string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []event
	err    error
}

func (p *fakePublisher) PublishResourceChanged(_ context.Context, userID, resource, operation, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{userID, resource, operation, id})
	return p.err
}

func (p *fakePublisher) Events() []event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event(nil), p.events...)
}

// failingStore fails every write after the memory store has been consulted.
type failingStore struct {
	*memory.Store
}

var errDiskFull = errors.New("disk full")

func (failingStore) CreateExpense(context.Context, core.Expense) error { return errDiskFull }
func (failingStore) CreateBudget(context.Context, core.Budget) error   { return errDiskFull }

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
}

func userCtx(id string) context.Context {
	return auth.WithUser(context.Background(), id)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expenseIn(amount, cur string, cat core.Category, date time.Time) ExpenseInput {
	return ExpenseInput{
		Amount:      dec(amount),
		Currency:    cur,
		Category:    cat,
		Date:        date,
		Description: "test " + string(cat),
	}
}

// gatedStore holds reads and writes open until the test releases them.
// Reads run against the store first, so a held read returns the rows as
// they were before anything the test does meanwhile.
type gatedStore struct {
	*memory.Store
	findStarted   chan struct{}
	findGate      chan struct{}
	createStarted chan struct{}
	createGate    chan struct{}
}

func newGatedStore(store *memory.Store) *gatedStore {
	return &gatedStore{
		Store:         store,
		findStarted:   make(chan struct{}, 1),
		findGate:      make(chan struct{}),
		createStarted: make(chan struct{}, 1),
		createGate:    make(chan struct{}),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (g *gatedStore) FindExpensesByUser(ctx context.Context, userID string) ([]core.Expense, error) {
	list, err := g.Store.FindExpensesByUser(ctx, userID)
	signal(g.findStarted)
	<-g.findGate
	return list, err
}

func (g *gatedStore) CreateExpense(ctx context.Context, e core.Expense) error {
	signal(g.createStarted)
	<-g.createGate
	return g.Store.CreateExpense(ctx, e)
}

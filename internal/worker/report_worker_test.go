package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/aggregate"
	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
	sheetsmem "fintrack/internal/sheets/memory"
)

type fakeReader struct {
	base       string
	baseErr    error
	months     []core.Bucket
	spendErr   error
	sawUser    string
	sawGroupBy aggregate.GroupBy
}

func (f *fakeReader) Spending(ctx context.Context, groupBy aggregate.GroupBy) (core.Spending, error) {
	f.sawUser, _ = auth.UserID(ctx)
	f.sawGroupBy = groupBy
	if f.baseErr != nil {
		return core.Spending{}, f.baseErr
	}
	if f.spendErr != nil {
		return core.Spending{}, f.spendErr
	}
	return core.Spending{BaseCurrency: f.base, Buckets: f.months}, nil
}

type failingWriter struct{}

func (failingWriter) WriteSpendingReport(context.Context, sheets.SpendingReport) (string, error) {
	return "", errors.New("quota exceeded")
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)})
}

func message(resource string) *amqp.ResourceChangedMessage {
	return amqp.NewResourceChangedMessage("u1", resource, "create", "x1")
}

func TestHandleResourceChanged_WritesReport(t *testing.T) {
	reader := &fakeReader{
		base:   "EUR",
		months: []core.Bucket{
			{Key: "2024-02", Amount: decimal.RequireFromString("3")},
			{Key: "2024-03", Amount: decimal.RequireFromString("12.5")},
		},
	}
	writer := sheetsmem.New()
	w := NewReportWorker(reader, nil, writer, quietLogger())
	w.now = func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, w.HandleResourceChanged(context.Background(), message("expense")))

	assert.Equal(t, "u1", reader.sawUser, "the event's user becomes the principal")
	assert.Equal(t, aggregate.GroupByYearMonth, reader.sawGroupBy)

	reports := writer.Reports("u1")
	require.Len(t, reports, 1)
	assert.Equal(t, "EUR", reports[0].BaseCurrency)
	assert.Equal(t, reader.months, reports[0].Months)
	assert.Equal(t, 2024, reports[0].GeneratedAt.Year())
}

func TestHandleResourceChanged_DropsPermanentFailures(t *testing.T) {
	tests := map[string]*fakeReader{
		"no base currency": {baseErr: fmt.Errorf("%w: base currency is not set", core.ErrConfiguration)},
		"invalid data":     {base: "EUR", spendErr: core.NewValidationError("amount", "bad")},
	}
	for name, reader := range tests {
		t.Run(name, func(t *testing.T) {
			writer := sheetsmem.New()
			w := NewReportWorker(reader, nil, writer, quietLogger())

			assert.NoError(t, w.HandleResourceChanged(context.Background(), message("budget")))
			assert.Empty(t, writer.Reports("u1"))
		})
	}
}

func TestHandleResourceChanged_RequeuesTransientFailures(t *testing.T) {
	rateDown := &fakeReader{base: "EUR", spendErr: &core.RateFetchError{Currency: "EUR", Cause: errors.New("timeout")}}
	w := NewReportWorker(rateDown, nil, sheetsmem.New(), quietLogger())
	err := w.HandleResourceChanged(context.Background(), message("expense"))
	assert.ErrorIs(t, err, core.ErrRateFetch)

	ok := &fakeReader{base: "EUR"}
	w = NewReportWorker(ok, nil, failingWriter{}, quietLogger())
	err = w.HandleResourceChanged(context.Background(), message("expense"))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestHandleResourceChanged_InvalidatesLocalCache(t *testing.T) {
	c := cache.NewClientCache(10, time.Minute)
	c.Set(cache.Key(cache.ResourceSpending, "u1", "group-by=year_month"), "stale", 0)
	c.Set(cache.Key(cache.ResourceBudgets, "u1", "all"), "stale", 0)
	c.Set(cache.Key(cache.ResourceBudgets, "u2", "all"), "kept", 0)

	w := NewReportWorker(&fakeReader{base: "EUR"}, c, sheetsmem.New(), quietLogger())
	require.NoError(t, w.HandleResourceChanged(context.Background(), message("budget")))

	_, ok := c.Get(cache.Key(cache.ResourceSpending, "u1", "group-by=year_month"))
	assert.False(t, ok)
	_, ok = c.Get(cache.Key(cache.ResourceBudgets, "u1", "all"))
	assert.False(t, ok)
	_, ok = c.Get(cache.Key(cache.ResourceBudgets, "u2", "all"))
	assert.True(t, ok)
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/aggregate"
	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
)

// SpendingReader is the part of the dashboard service the worker needs.
type SpendingReader interface {
	Spending(ctx context.Context, groupBy aggregate.GroupBy) (core.Spending, error)
}

// ReportWorker re-exports a user's monthly spending whenever their data changes.
type ReportWorker struct {
	reports SpendingReader
	cache   *cache.ClientCache
	writer  sheets.ReportWriter
	logger  *applog.Logger
	now     func() time.Time
}

func NewReportWorker(reports SpendingReader, clientCache *cache.ClientCache, writer sheets.ReportWriter, logger *applog.Logger) *ReportWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ReportWorker{
		reports: reports,
		cache:   clientCache,
		writer:  writer,
		logger:  logger.WithComponent(applog.ComponentWorker),
		now:     time.Now,
	}
}

// HandleResourceChanged processes one change event. Returning an error
// requeues the message, so only transient failures are reported; a user
// without a base currency or with invalid data is logged and dropped.
func (w *ReportWorker) HandleResourceChanged(ctx context.Context, msg *amqp.ResourceChangedMessage) error {
	fields := applog.NewFields().
		WithUser(msg.UserID).
		WithOperation(applog.OpExport)
	fields[applog.FieldResource] = msg.Resource

	// Another process made the change, so this process's cached views are stale.
	if w.cache != nil {
		w.cache.InvalidateAfter(cache.Mutation(msg.Resource), msg.UserID)
		w.cache.InvalidateUser(cache.ResourceSpending, msg.UserID)
	}

	ctx = auth.WithUser(ctx, msg.UserID)
	spending, err := w.reports.Spending(ctx, aggregate.GroupByYearMonth)
	if errors.Is(err, core.ErrConfiguration) {
		w.logger.InfoContext(ctx, "Skipping report, base currency not set", fields.ToSlice()...)
		return nil
	}
	if errors.Is(err, core.ErrValidation) {
		w.logger.WarnContext(ctx, "Skipping report, stored data is invalid", fields.WithError(err).ToSlice()...)
		return nil
	}
	if err != nil {
		return fmt.Errorf("aggregate spending: %w", err)
	}

	ref, err := w.writer.WriteSpendingReport(ctx, sheets.SpendingReport{
		UserID:       msg.UserID,
		BaseCurrency: spending.BaseCurrency,
		GeneratedAt:  w.now().UTC(),
		Months:       spending.Buckets,
	})
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fields[applog.FieldSheetsRef] = ref
	fields[applog.FieldBaseCurrency] = spending.BaseCurrency
	w.logger.InfoContext(ctx, "Exported spending report", fields.ToSlice()...)
	return nil
}

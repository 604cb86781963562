package sheets

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// SpendingReport is one user's spending per month, in their base currency.
type SpendingReport struct {
	UserID       string
	BaseCurrency string
	GeneratedAt  time.Time
	Months       []core.Bucket
}

// Ports for outbound adapters.
type (
	// ReportWriter appends a report and returns a reference to where it landed.
	ReportWriter interface {
		WriteSpendingReport(ctx context.Context, r SpendingReport) (ref string, err error)
	}
)

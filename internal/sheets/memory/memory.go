// Package memory keeps spending reports in process, for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "fintrack/internal/sheets"
)

type Writer struct {
	mu      sync.Mutex
	reports []ports.SpendingReport
}

var _ ports.ReportWriter = (*Writer)(nil)

func New() *Writer { return &Writer{} }

func (w *Writer) WriteSpendingReport(_ context.Context, r ports.SpendingReport) (string, error) {
	if r.UserID == "" {
		return "", errors.New("report has no user")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = append(w.reports, r)
	return fmt.Sprintf("memory:%d", len(w.reports)), nil
}

// Reports returns every report written for userID, oldest first.
func (w *Writer) Reports(userID string) []ports.SpendingReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []ports.SpendingReport
	for _, r := range w.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

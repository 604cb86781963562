// This file implements utilities for decoding and validating JSON request
// bodies into service inputs.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

const maxBodyBytes = 64 << 10

// dateLayouts are tried in order when parsing an expense date.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

type expensePayload struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
}

type budgetPayload struct {
	Category string          `json:"category"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Period   string          `json:"period"`
}

type baseCurrencyPayload struct {
	Currency string `json:"currency"`
}

// DecodeJSON reads one JSON document from r into dst. Unknown fields,
// trailing data and oversized bodies are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return fmt.Errorf("malformed JSON: %v", err)
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, core.NewValidationError("date", "date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.NewValidationError("date", "expected YYYY-MM-DD, got %q", s)
}

func (p expensePayload) input() (services.ExpenseInput, error) {
	category, err := core.ParseCategory(p.Category)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	date, err := ParseDate(p.Date)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	return services.ExpenseInput{
		Amount:      p.Amount,
		Currency:    p.Currency,
		Category:    category,
		Date:        date,
		Description: sanitizeInput(p.Description),
	}, nil
}

func (p budgetPayload) input() (services.BudgetInput, error) {
	category, err := core.ParseCategory(p.Category)
	if err != nil {
		return services.BudgetInput{}, err
	}
	period, err := core.ParsePeriod(p.Period)
	if err != nil {
		return services.BudgetInput{}, err
	}
	return services.BudgetInput{
		Category: category,
		Currency: p.Currency,
		Amount:   p.Amount,
		Period:   period,
	}, nil
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

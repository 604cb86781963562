// Package aggregate folds a user's expenses into per-month and per-category
// totals in one reporting currency, and measures budgets against them.
package aggregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/currency"
)

type GroupBy string

const (
	GroupByMonth     GroupBy = "month"
	GroupByCategory  GroupBy = "category"
	GroupByYearMonth GroupBy = "year_month"
)

// monthNames is indexed by time.Month so labels never depend on locale.
var monthNames = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case GroupByMonth, GroupByCategory, GroupByYearMonth:
		return g, nil
	case "":
		return GroupByMonth, nil
	default:
		return "", core.NewValidationError("group-by", "unsupported grouping %q", s)
	}
}

// Aggregator converts and groups expenses using one rate table per call.
type Aggregator struct {
	source    currency.Source
	converter *currency.Converter
}

// New builds an Aggregator. A nil converter uses the default missing-rate policy.
func New(source currency.Source, converter *currency.Converter) *Aggregator {
	if converter == nil {
		converter = currency.NewConverter(nil)
	}
	return &Aggregator{source: source, converter: converter}
}

// Aggregate converts every expense into base and groups the results.
// Buckets keep the order in which their key was first seen. The whole call
// fails if any expense is invalid or any conversion fails.
func (a *Aggregator) Aggregate(ctx context.Context, expenses []core.Expense, base string, groupBy GroupBy) ([]core.Bucket, error) {
	rates, err := a.prepare(ctx, expenses, base, groupBy)
	if err != nil {
		return nil, err
	}
	return a.AggregateWithRates(expenses, base, groupBy, rates)
}

// TotalSpent is the sum of every expense converted into base.
func (a *Aggregator) TotalSpent(ctx context.Context, expenses []core.Expense, base string) (decimal.Decimal, error) {
	rates, err := a.prepare(ctx, expenses, base, GroupByMonth)
	if err != nil {
		return decimal.Zero, err
	}
	return a.TotalWithRates(expenses, base, rates)
}

// prepare runs every precondition, then fetches the single rate table.
// An empty input needs no rates and skips the fetch.
func (a *Aggregator) prepare(ctx context.Context, expenses []core.Expense, base string, groupBy GroupBy) (currency.Rates, error) {
	if _, err := auth.UserID(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("%w: base currency is not set", core.ErrConfiguration)
	}
	if _, err := ParseGroupBy(string(groupBy)); err != nil {
		return nil, err
	}
	if err := ValidateExpenses(expenses); err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return currency.Rates{}, nil
	}
	rates, err := a.source.Latest(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("aggregate spending in %s: %w", base, err)
	}
	return rates, nil
}

// ValidateExpenses reports the first invalid expense, identified by position and id.
func ValidateExpenses(expenses []core.Expense) error {
	for i, e := range expenses {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expense %d (%s): %w", i, e.ID, err)
		}
	}
	return nil
}

// AggregateWithRates groups expenses using an already fetched table. It does no I/O.
func (a *Aggregator) AggregateWithRates(expenses []core.Expense, base string, groupBy GroupBy, rates currency.Rates) ([]core.Bucket, error) {
	groupBy, err := ParseGroupBy(string(groupBy))
	if err != nil {
		return nil, err
	}

	buckets := make([]core.Bucket, 0)
	index := make(map[string]int)
	for _, e := range expenses {
		amount, err := a.toBase(e, base, rates)
		if err != nil {
			return nil, err
		}
		key := groupKey(e, groupBy)
		if i, ok := index[key]; ok {
			buckets[i].Amount = buckets[i].Amount.Add(amount)
			continue
		}
		index[key] = len(buckets)
		buckets = append(buckets, core.Bucket{Key: key, Amount: amount})
	}
	return buckets, nil
}

// TotalWithRates sums expenses using an already fetched table. It does no I/O.
func (a *Aggregator) TotalWithRates(expenses []core.Expense, base string, rates currency.Rates) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range expenses {
		amount, err := a.toBase(e, base, rates)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, nil
}

func (a *Aggregator) toBase(e core.Expense, base string, rates currency.Rates) (decimal.Decimal, error) {
	if e.Currency == base {
		return e.Amount, nil
	}
	amount, err := a.converter.Convert(e.Amount, e.Currency, base, rates)
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert expense %s: %w", e.ID, err)
	}
	return amount, nil
}

func groupKey(e core.Expense, groupBy GroupBy) string {
	switch groupBy {
	case GroupByCategory:
		return string(e.Category)
	case GroupByYearMonth:
		return fmt.Sprintf("%04d-%02d", e.Date.Year(), int(e.Date.Month()))
	default:
		return monthNames[e.Date.Month()]
	}
}

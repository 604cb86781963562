package aggregate

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/currency"
)

var hundred = decimal.NewFromInt(100)

// LinkedExpenses returns the expenses of the budget's user in the budget's
// category. Two budgets sharing a category both claim the same expenses.
func LinkedExpenses(b core.Budget, all []core.Expense) []core.Expense {
	var linked []core.Expense
	for _, e := range all {
		if e.UserID == b.UserID && e.Category == b.Category {
			linked = append(linked, e)
		}
	}
	return linked
}

// ComputeProgress converts linked expenses into the budget currency with the
// default missing-rate policy and measures them against the budget amount.
func ComputeProgress(b core.Budget, linked []core.Expense, rates currency.Rates) core.BudgetProgress {
	spent := decimal.Zero
	for _, e := range linked {
		spent = spent.Add(currency.Convert(e.Amount, e.Currency, b.Currency, rates))
	}
	return newProgress(b, spent)
}

// BudgetProgress is ComputeProgress with the aggregator's conversion policy,
// plus the spending inside the budget's current period window.
func (a *Aggregator) BudgetProgress(b core.Budget, linked []core.Expense, rates currency.Rates, now time.Time) (core.BudgetProgress, error) {
	window, err := GetPeriodWindow(b.Period)
	if err != nil {
		return core.BudgetProgress{}, core.NewValidationError("period", "%v", err)
	}
	start, end := window.Window(now)

	spent, periodSpent := decimal.Zero, decimal.Zero
	for _, e := range linked {
		amount := e.Amount
		if e.Currency != b.Currency {
			amount, err = a.converter.Convert(e.Amount, e.Currency, b.Currency, rates)
			if err != nil {
				return core.BudgetProgress{}, fmt.Errorf("budget %s: %w", b.ID, err)
			}
		}
		spent = spent.Add(amount)
		if inWindow(e.Date, start, end) {
			periodSpent = periodSpent.Add(amount)
		}
	}

	p := newProgress(b, spent)
	p.PeriodStart = start
	p.PeriodEnd = end
	p.PeriodSpent = periodSpent
	return p, nil
}

func newProgress(b core.Budget, spent decimal.Decimal) core.BudgetProgress {
	pct := Percentage(spent, b.Amount)
	return core.BudgetProgress{
		Budget:      b,
		Spent:       spent,
		Percentage:  pct,
		Display:     ClampPercent(pct),
		Alert:       AlertFor(pct),
		PeriodSpent: decimal.Zero,
	}
}

// Percentage is spent as a share of amount, times 100. A zero amount yields
// +Inf when anything was spent and 0 otherwise.
func Percentage(spent, amount decimal.Decimal) float64 {
	if amount.IsZero() {
		if spent.IsPositive() {
			return math.Inf(1)
		}
		return 0
	}
	return spent.Mul(hundred).Div(amount).InexactFloat64()
}

// ClampPercent bounds p to [0, 100] for progress bars.
func ClampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// AlertFor maps a raw percentage to the progress bar's alert level.
func AlertFor(p float64) core.AlertLevel {
	switch {
	case p > 100:
		return core.AlertOver
	case p > 75:
		return core.AlertWarning
	case p > 50:
		return core.AlertOnTrack
	default:
		return core.AlertHealthy
	}
}

// TotalBudget sums every budget amount converted into base.
func (a *Aggregator) TotalBudget(budgets []core.Budget, base string, rates currency.Rates) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, b := range budgets {
		amount := b.Amount
		if b.Currency != base {
			var err error
			amount, err = a.converter.Convert(b.Amount, b.Currency, base, rates)
			if err != nil {
				return decimal.Zero, fmt.Errorf("budget %s: %w", b.ID, err)
			}
		}
		total = total.Add(amount)
	}
	return total, nil
}

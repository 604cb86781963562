package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Alert levels mirror the colour thresholds of the budget progress bar.
const (
	AlertHealthy AlertLevel = "healthy"
	AlertOnTrack AlertLevel = "on_track"
	AlertWarning AlertLevel = "warning"
	AlertOver    AlertLevel = "over"
)

type AlertLevel string

// Bucket is one group of an aggregation: a month label or a category name.
type Bucket struct {
	Key    string          `json:"key"`
	Amount decimal.Decimal `json:"amount"`
}

// Spending is an aggregation together with the currency its amounts are in.
type Spending struct {
	BaseCurrency string
	Buckets      []Bucket
}

// BudgetProgress is the state of one budget against its linked expenses.
// Percentage is unclamped and is +Inf for a zero budget with spending.
type BudgetProgress struct {
	Budget      Budget
	Spent       decimal.Decimal
	Percentage  float64
	Display     float64
	Alert       AlertLevel
	PeriodStart time.Time
	PeriodEnd   time.Time
	PeriodSpent decimal.Decimal
}

// Dashboard is everything the overview screen shows, in one base currency.
type Dashboard struct {
	BaseCurrency string
	TotalSpent   decimal.Decimal
	TotalBudget  decimal.Decimal
	Monthly      []Bucket
	ByCategory   []Bucket
	Progress     []BudgetProgress
	RatesAsOf    time.Time
}

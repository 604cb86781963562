package http

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/currency"
)

// progressView is the wire form of core.BudgetProgress. Percentage is null
// when a zero budget has spending, since JSON has no infinity.
type progressView struct {
	Budget      core.Budget     `json:"budget"`
	Spent       decimal.Decimal `json:"spent"`
	Percentage  *float64        `json:"percentage"`
	Display     float64         `json:"display"`
	Over        bool            `json:"over"`
	Alert       core.AlertLevel `json:"alert"`
	PeriodStart time.Time       `json:"periodStart"`
	PeriodEnd   time.Time       `json:"periodEnd"`
	PeriodSpent decimal.Decimal `json:"periodSpent"`
	Formatted   string          `json:"formatted"`
}

type bucketView struct {
	Key       string          `json:"key"`
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
}

type dashboardView struct {
	BaseCurrency string         `json:"baseCurrency"`
	TotalSpent   bucketView     `json:"totalSpent"`
	TotalBudget  bucketView     `json:"totalBudget"`
	Monthly      []bucketView   `json:"monthly"`
	ByCategory   []bucketView   `json:"byCategory"`
	Progress     []progressView `json:"progress"`
	RatesAsOf    *time.Time     `json:"ratesAsOf"`
}

type spendingView struct {
	BaseCurrency string       `json:"baseCurrency"`
	GroupBy      string       `json:"groupBy"`
	Buckets      []bucketView `json:"buckets"`
}

type baseCurrencyView struct {
	Currency string `json:"currency"`
	Symbol   string `json:"symbol"`
}

func newProgressView(p core.BudgetProgress) progressView {
	v := progressView{
		Budget:      p.Budget,
		Spent:       p.Spent,
		Display:     p.Display,
		Over:        p.Percentage > 100,
		Alert:       p.Alert,
		PeriodStart: p.PeriodStart,
		PeriodEnd:   p.PeriodEnd,
		PeriodSpent: p.PeriodSpent,
		Formatted:   currency.Format(p.Spent, p.Budget.Currency) + " / " + currency.Format(p.Budget.Amount, p.Budget.Currency),
	}
	if !math.IsInf(p.Percentage, 0) && !math.IsNaN(p.Percentage) {
		pct := p.Percentage
		v.Percentage = &pct
	}
	return v
}

func newProgressViews(list []core.BudgetProgress) []progressView {
	views := make([]progressView, 0, len(list))
	for _, p := range list {
		views = append(views, newProgressView(p))
	}
	return views
}

func newBucketViews(buckets []core.Bucket, code string) []bucketView {
	views := make([]bucketView, 0, len(buckets))
	for _, b := range buckets {
		views = append(views, bucketView{Key: b.Key, Amount: b.Amount, Formatted: currency.Format(b.Amount, code)})
	}
	return views
}

func newDashboardView(d core.Dashboard) dashboardView {
	v := dashboardView{
		BaseCurrency: d.BaseCurrency,
		TotalSpent:   bucketView{Key: "spent", Amount: d.TotalSpent, Formatted: currency.Format(d.TotalSpent, d.BaseCurrency)},
		TotalBudget:  bucketView{Key: "budget", Amount: d.TotalBudget, Formatted: currency.Format(d.TotalBudget, d.BaseCurrency)},
		Monthly:      newBucketViews(d.Monthly, d.BaseCurrency),
		ByCategory:   newBucketViews(d.ByCategory, d.BaseCurrency),
		Progress:     newProgressViews(d.Progress),
	}
	if !d.RatesAsOf.IsZero() {
		asOf := d.RatesAsOf
		v.RatesAsOf = &asOf
	}
	return v
}

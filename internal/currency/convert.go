// Package currency converts amounts between currencies using a rate table
// and formats them for display.
//
// A rate table is always relative to one pivot currency: table[pivot] is 1 and
// table[X] is the number of X units bought by one pivot unit. Cross conversion
// divides by the source rate and multiplies by the target rate, so the result
// does not depend on which currency is the pivot as long as both codes are
// present in the same table.
package currency

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Rates maps an ISO-4217 code to units per pivot unit.
type Rates map[string]decimal.Decimal

// Source provides the latest rate table pivoted on base.
type Source interface {
	Latest(ctx context.Context, base string) (Rates, error)
}

// Policy decides which multiplier to use for a currency code.
type Policy interface {
	Resolve(rates Rates, code string) (decimal.Decimal, error)
}

// DefaultPolicy treats a missing or non-positive rate as 1.
type DefaultPolicy struct{}

func (DefaultPolicy) Resolve(rates Rates, code string) (decimal.Decimal, error) {
	return ResolveRateOrDefault(rates, code), nil
}

// StrictPolicy refuses to convert through a currency absent from the table.
type StrictPolicy struct{}

func (StrictPolicy) Resolve(rates Rates, code string) (decimal.Decimal, error) {
	r, ok := rates[code]
	if !ok || !r.IsPositive() {
		return decimal.Zero, &core.RateFetchError{
			Currency: code,
			Cause:    fmt.Errorf("no rate for %s in table", code),
		}
	}
	return r, nil
}

// ResolveRateOrDefault returns rates[code], or 1 when the code is missing or
// its rate is not positive. A missing code therefore passes the amount through
// unconverted.
func ResolveRateOrDefault(rates Rates, code string) decimal.Decimal {
	if r, ok := rates[code]; ok && r.IsPositive() {
		return r
	}
	return decimal.NewFromInt(1)
}

// Convert converts amount from one currency to another with the default policy.
// Equal codes return amount unchanged without touching the table.
func Convert(amount decimal.Decimal, from, to string, rates Rates) decimal.Decimal {
	if from == to {
		return amount
	}
	return amount.Mul(ResolveRateOrDefault(rates, to)).Div(ResolveRateOrDefault(rates, from))
}

// Converter applies a configurable missing-rate policy.
type Converter struct {
	Policy Policy
}

func NewConverter(p Policy) *Converter {
	if p == nil {
		p = DefaultPolicy{}
	}
	return &Converter{Policy: p}
}

func (c *Converter) Convert(amount decimal.Decimal, from, to string, rates Rates) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	toRate, err := c.Policy.Resolve(rates, to)
	if err != nil {
		return decimal.Zero, err
	}
	fromRate, err := c.Policy.Resolve(rates, from)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(toRate).Div(fromRate), nil
}

// ConvertFresh fetches the table pivoted on target and multiplies amount by the
// base rate of that table, restating a target-denominated amount in base. The
// result is rounded to two decimals, half-up.
func ConvertFresh(ctx context.Context, src Source, amount decimal.Decimal, target, base string) (decimal.Decimal, error) {
	rates, err := src.Latest(ctx, target)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(ResolveRateOrDefault(rates, base)).Round(2), nil
}

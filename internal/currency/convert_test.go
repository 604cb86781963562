package currency

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var usdTable = Rates{"USD": d("1"), "EUR": d("0.92"), "GBP": d("0.79")}

func TestConvertIdentity(t *testing.T) {
	amounts := []string{"0.01", "1", "123.456789", "99999999.99"}
	for _, a := range amounts {
		got := Convert(d(a), "EUR", "EUR", usdTable)
		assert.True(t, got.Equal(d(a)), "identity conversion changed %s to %s", a, got)

		// Identity holds even with an empty table.
		got = Convert(d(a), "TRY", "TRY", nil)
		assert.True(t, got.Equal(d(a)))
	}
}

func TestConvertCrossRate(t *testing.T) {
	got := Convert(d("100"), "EUR", "USD", usdTable)
	assert.Equal(t, "108.6957", got.Round(4).String())

	got = Convert(d("100"), "USD", "EUR", usdTable)
	assert.True(t, got.Equal(d("92")))

	// EUR -> GBP goes through the pivot: 100 / 0.92 * 0.79
	got = Convert(d("100"), "EUR", "GBP", usdTable)
	assert.Equal(t, "85.87", got.Round(2).String())
}

func TestConvertPivotIndependent(t *testing.T) {
	// Same market expressed with EUR as the pivot.
	eurTable := Rates{"EUR": d("1"), "USD": d("1.25"), "GBP": d("0.875")}
	usdPivot := Rates{"USD": d("1"), "EUR": d("0.8"), "GBP": d("0.7")}

	a := Convert(d("40"), "GBP", "USD", eurTable)
	b := Convert(d("40"), "GBP", "USD", usdPivot)
	assert.Equal(t, a.Round(8).String(), b.Round(8).String())
}

func TestConvertMissingRateDefaultsToOne(t *testing.T) {
	got := Convert(d("50"), "XXX", "USD", usdTable)
	assert.True(t, got.Equal(d("50")), "got %s", got)

	assert.True(t, ResolveRateOrDefault(usdTable, "XXX").Equal(decimal.NewFromInt(1)))
	assert.True(t, ResolveRateOrDefault(Rates{"ZZZ": decimal.Zero}, "ZZZ").Equal(decimal.NewFromInt(1)))
}

func TestConverterStrictPolicy(t *testing.T) {
	c := NewConverter(StrictPolicy{})

	got, err := c.Convert(d("100"), "USD", "EUR", usdTable)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("92")))

	_, err = c.Convert(d("50"), "XXX", "USD", usdTable)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrRateFetch))

	// Identity never consults the policy.
	got, err = c.Convert(d("7"), "XXX", "XXX", nil)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("7")))
}

func TestNewConverterDefaultsPolicy(t *testing.T) {
	c := NewConverter(nil)
	got, err := c.Convert(d("50"), "XXX", "USD", usdTable)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("50")))
}

type fakeSource struct {
	tables map[string]Rates
	calls  []string
	err    error
}

func (f *fakeSource) Latest(_ context.Context, base string) (Rates, error) {
	f.calls = append(f.calls, base)
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[base], nil
}

func TestConvertFresh(t *testing.T) {
	src := &fakeSource{tables: map[string]Rates{
		"EUR": {"EUR": d("1"), "USD": d("1.0875")},
	}}

	got, err := ConvertFresh(context.Background(), src, d("10"), "EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, "10.88", got.String())
	assert.Equal(t, []string{"EUR"}, src.calls)
}

func TestConvertFreshPropagatesFetchError(t *testing.T) {
	src := &fakeSource{err: &core.RateFetchError{Currency: "EUR", Cause: errors.New("timeout")}}
	_, err := ConvertFresh(context.Background(), src, d("10"), "EUR", "USD")
	assert.ErrorIs(t, err, core.ErrRateFetch)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$1,234.50", Format(d("1234.5"), "USD"))
	assert.Equal(t, "$0.01", Format(d("0.005"), "USD"))
	assert.Equal(t, "12.00 QQQ", Format(d("12"), "QQQ"))
	assert.Equal(t, "$", Symbol("USD"))
	assert.Equal(t, "QQQ", Symbol("QQQ"))
}

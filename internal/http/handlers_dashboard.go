package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	applog "fintrack/internal/log"
	"fintrack/internal/rates"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Dashboard(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(newDashboardView(d)).Write(w)
}

// handleSpending groups expenses by ?group-by=month|category|year_month.
func (s *Server) handleSpending(w http.ResponseWriter, r *http.Request) {
	groupBy, err := aggregate.ParseGroupBy(r.URL.Query().Get("group-by"))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	spending, err := s.reports.Spending(r.Context(), groupBy)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(spendingView{
		BaseCurrency: spending.BaseCurrency,
		GroupBy:      string(groupBy),
		Buckets:      newBucketViews(spending.Buckets, spending.BaseCurrency),
	}).Write(w)
}

func (s *Server) handleGetBaseCurrency(w http.ResponseWriter, r *http.Request) {
	code, err := s.reports.BaseCurrency(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(baseCurrencyView{Currency: code, Symbol: currency.Symbol(code)}).Write(w)
}

func (s *Server) handleSetBaseCurrency(w http.ResponseWriter, r *http.Request) {
	var p baseCurrencyPayload
	if err := DecodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	code, err := s.reports.SetBaseCurrency(r.Context(), p.Currency)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(baseCurrencyView{Currency: code, Symbol: currency.Symbol(code)}).Write(w)
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	list, err := s.reports.Currencies(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(list).Write(w)
}

// handleExchangeRates proxies the upstream table for ?target-currency so
// browsers never see the API key. The body is passed through unchanged.
// A missing key is reported before the query is looked at.
func (s *Server) handleExchangeRates(w http.ResponseWriter, r *http.Request) {
	if s.rates == nil || !s.rates.Configured() {
		InternalServerError(rates.ErrMissingAPIKey.Error()).Write(w)
		return
	}

	target := strings.TrimSpace(r.URL.Query().Get("target-currency"))
	if target == "" {
		BadRequestError("target-currency query parameter is required").Write(w)
		return
	}
	code, err := core.NormalizeCurrency(target)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), proxyTimeout)
	defer cancel()

	snap, err := s.rates.Rates(ctx, code)
	if err != nil {
		msg := "failed to fetch exchange rates"
		if errors.Is(err, rates.ErrMissingAPIKey) {
			msg = rates.ErrMissingAPIKey.Error()
		}
		s.logger.ErrorContext(r.Context(), "Exchange rate proxy failed",
			applog.FieldCurrency, code,
			applog.FieldError, err)
		InternalServerError(msg).Write(w)
		return
	}
	NewJSONResponse().Raw(snap.Raw).Write(w)
}

package cli

import (
	"fintrack/internal/aggregate"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/currency"
	"fintrack/internal/rates"
)

// NewRateProvider builds the upstream rate provider from cfg.
func NewRateProvider(cfg *config.Config) *rates.Provider {
	return rates.NewProvider(rates.Options{
		APIKey:      cfg.ExchangeRatesAPIKey,
		BaseURL:     cfg.ExchangeRatesBaseURL,
		TTL:         cfg.RatesCacheTTL,
		Timeout:     cfg.RatesTimeout,
		MaxAttempts: cfg.RatesMaxAttempts,
	})
}

// NewConverter picks the missing-rate policy: RATES_STRICT turns a missing
// rate into an error instead of a 1:1 conversion.
func NewConverter(cfg *config.Config) *currency.Converter {
	if cfg.StrictRates {
		return currency.NewConverter(currency.StrictPolicy{})
	}
	return currency.NewConverter(currency.DefaultPolicy{})
}

// NewAggregator wires the converter policy into an aggregator over source.
func NewAggregator(cfg *config.Config, source currency.Source) *aggregate.Aggregator {
	return aggregate.New(source, NewConverter(cfg))
}

// NewCaches builds the per-user query cache and a manager that sweeps it
// together with the rate snapshots. The caller starts and stops the manager.
func NewCaches(cfg *config.Config, provider *rates.Provider) (*cache.ClientCache, *cache.Manager) {
	clientCache := cache.NewClientCache(cfg.CacheMaxEntries, cfg.CacheTTL)
	manager := cache.NewManager()
	manager.Register(clientCache)
	if provider != nil {
		manager.Register(provider.Cache())
	}
	return clientCache, manager
}

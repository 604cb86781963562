package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), "fintrack")
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	provider := cli.NewRateProvider(cfg)
	if !provider.Configured() {
		logger.Warn("EXCHANGE_RATES_API_KEY is not set, rate-dependent endpoints will fail")
	}
	clientCache, cacheManager := cli.NewCaches(cfg, provider)
	cacheManager.StartCleanup(cfg.CacheSweepInterval)

	ledger := services.NewExpenseService(result.Store, clientCache, result.Publisher, logger)
	reports := services.NewDashboardService(result.Store, provider, cli.NewAggregator(cfg, provider), clientCache, result.Publisher, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Ledger:  ledger,
		Reports: reports,
		Rates:   provider,
		Tokens:  auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer),
		Ready:   result.Ready,
		Logger:  logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"strict_rates", cfg.StrictRates,
		"change_events", result.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

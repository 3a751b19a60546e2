package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pocketline/smsrouter/internal/platform/config"
	"github.com/pocketline/smsrouter/internal/platform/database"
	"github.com/pocketline/smsrouter/internal/platform/logger"
	"github.com/pocketline/smsrouter/internal/platform/messagebroker"
	"github.com/pocketline/smsrouter/internal/routing_service/adapters/agentgateway"
	"github.com/pocketline/smsrouter/internal/routing_service/app"
	"github.com/pocketline/smsrouter/internal/routing_service/repository/postgres"
	transporthttp "github.com/pocketline/smsrouter/internal/routing_service/transport/http"
)

const (
	serviceName     = "routing_service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("starting service",
		"server_port", cfg.ServerPort,
		"metrics_port", cfg.MetricsPort,
		"default_region", cfg.DefaultRegionCode,
		"nats_url", cfg.NATSURL,
		"postgres_dsn_present", cfg.PostgresDSN != "",
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("failed to initialize database pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSURL, appLogger, serviceName)
	if err != nil {
		appLogger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	bindingRepo := postgres.NewPgTenantBindingRepository(dbPool, appLogger)
	usageRepo := postgres.NewPgUsageRecordRepository(dbPool, appLogger)
	spamTokenRepo := postgres.NewPgSpamTokenRepository(dbPool, appLogger)

	tenantCache := app.NewTenantDirectoryCache(bindingRepo, appLogger, cfg.CacheTTL, cfg.NegativeCacheTTL, cfg.LookupTimeout)
	processor := app.NewContentProcessor(spamTokenRepo, appLogger, cfg.MaxMessageRunes, cfg.SpamScoreThreshold)
	formatter := app.NewReplyFormatter(cfg.SegmentRuneLimit)
	ledger := app.NewUsageLedger(usageRepo, natsClient, cfg.UsageEventSubject,
		cfg.LedgerBufferSize, cfg.LedgerFlushTimeout, cfg.LedgerShutdownTimeout, appLogger)
	gateway := agentgateway.NewHTTPGateway(appLogger, cfg.AgentGatewayURL,
		&http.Client{Timeout: cfg.AgentGatewayTimeout + time.Second})
	normalizer := app.NewPhoneNormalizer(cfg.DefaultRegionCode)

	engine := app.NewRoutingEngine(normalizer, tenantCache, processor, formatter,
		ledger, gateway, cfg.AgentGatewayTimeout, appLogger)

	handler := transporthttp.NewWebhookHandler(engine, appLogger, validator.New(),
		cfg.WebhookAuthToken, cfg.WebhookPublicURL)

	webhookServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	// The ledger outlives the HTTP servers: handlers still draining through
	// Shutdown record success legs, and those need a live worker. Its context
	// is cancelled only after Shutdown returns.
	ledgerCtx, stopLedger := context.WithCancel(context.Background())
	defer stopLedger()

	g.Go(func() error {
		appLogger.Info("webhook server listening", "addr", webhookServer.Addr)
		if err := webhookServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return ledger.Run(ledgerCtx)
	})

	g.Go(func() error {
		return processor.RunTokenRefresh(groupCtx, cfg.SpamTokenRefreshInterval)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("shutdown signal received, stopping servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := webhookServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("webhook server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("metrics server shutdown error", "error", err)
		}
		stopLedger()
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("service stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"toolgate/internal/billing"
	"toolgate/internal/gateway"
	"toolgate/internal/platform/config"
	"toolgate/internal/platform/database"
	"toolgate/internal/platform/health"
	"toolgate/internal/platform/logger"
	"toolgate/internal/platform/metrics"
	"toolgate/internal/platform/tracer"
	"toolgate/internal/secretbox"
	"toolgate/internal/tenant/service"
	"toolgate/internal/tenant/store"
	"toolgate/internal/tools"
	httptransport "toolgate/internal/transport/http"
	"toolgate/internal/usage"
	"toolgate/internal/webhook"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing toolgate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	cipher, err := secretbox.New(cfg.CipherSecret, log)
	if err != nil {
		log.Error("cipher init failed", "error", err)
		os.Exit(1)
	}
	if cfg.WebhookSecret == "" {
		log.Warn("WEBHOOK_SHARED_SECRET not configured; all webhook deliveries will be rejected")
	}

	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    database.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    database.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
	})
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	var tenantStore store.Store
	if pool != nil {
		tenantStore = store.NewPostgres(pool.DB())
	} else {
		log.Warn("DATABASE_URL not configured; using in-memory tenant store, records will not survive restart")
		tenantStore = store.NewMemory()
	}

	m := metrics.New()
	trc := tracer.NewOTel()

	tenants, err := service.New(tenantStore, cipher, log,
		service.WithTracer(trc),
		service.WithMetrics(m),
	)
	if err != nil {
		log.Error("tenant service init failed", "error", err)
		os.Exit(1)
	}
	meter, err := usage.New(tenantStore, log,
		usage.WithTracer(trc),
		usage.WithMetrics(m),
	)
	if err != nil {
		log.Error("usage meter init failed", "error", err)
		os.Exit(1)
	}
	billingSvc, err := billing.New(tenantStore, log,
		billing.WithTracer(trc),
		billing.WithMetrics(m),
	)
	if err != nil {
		log.Error("billing service init failed", "error", err)
		os.Exit(1)
	}

	gate := gateway.New(tenants, meter, cfg.UpgradeURL, log, m)
	webhooks := webhook.NewHandler(tenants, cfg.WebhookSecret, log, m)

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}

	handler := httptransport.NewHandler(tenants, billingSvc, tools.NewHTTPExecutor(cfg.VendorAPIURL), log)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Gate:            gate,
		Webhooks:        webhooks,
		Health:          healthHandler,
		AdminSigningKey: cfg.AdminSigningKey,
		RequestTimeout:  cfg.RequestTimeout,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	if pool != nil {
		if err := pool.Close(); err != nil {
			log.Error("database close failed", "error", err)
		}
	}
	log.Info("server stopped")
}

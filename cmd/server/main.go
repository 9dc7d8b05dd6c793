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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"newsletter/internal/newsletter"
	newslettermetrics "newsletter/internal/newsletter/metrics"
	"newsletter/internal/newsletter/service"
	"newsletter/internal/platform/config"
	"newsletter/internal/platform/httpserver"
	"newsletter/internal/platform/logger"
	"newsletter/internal/platform/metrics"
	"newsletter/internal/platform/middleware"
	httptransport "newsletter/internal/transport/http"
	"newsletter/pkg/platform/audit/publishers/kafka"
)

const limiterCleanupInterval = time.Minute

// main wires dependencies and runs the HTTP server until SIGINT or SIGTERM.
// Business logic lives in internal/newsletter.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("close store", "error", err)
		}
	}()

	publisher, err := openAuditPublisher(ctx, cfg, log, reg)
	if err != nil {
		return fmt.Errorf("open audit publisher: %w", err)
	}
	var auditPublisher service.AuditPublisher
	if publisher != nil {
		auditPublisher = publisher
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("close audit publisher", "error", err)
			}
		}()
	}

	svc := newsletter.NewService(store, log, auditPublisher, newslettermetrics.New(reg), cfg.CasePolicy())

	var limiter *middleware.ClientLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewClientLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst,
			middleware.WithMaxClients(cfg.RateLimit.MaxClients))
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Newsletter:     svc,
		Health:         svc,
		Metrics:        httpMetrics,
		Gatherer:       reg,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies(),
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting newsletter service", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if limiter != nil {
		g.Go(func() error {
			if err := limiter.StartCleanup(gctx, limiterCleanupInterval); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// openAuditPublisher returns nil when no brokers are configured; audit events
// are then only logged.
func openAuditPublisher(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (*kafka.Publisher, error) {
	if len(cfg.Audit.KafkaBrokers) == 0 {
		log.Info("audit stream disabled, no kafka brokers configured")
		return nil, nil
	}
	p, err := kafka.New(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic,
		kafka.WithLogger(log),
		kafka.WithMetrics(kafka.NewMetrics(reg)),
	)
	if err != nil {
		return nil, err
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.EnsureTopic(ensureCtx, 1, 1); err != nil {
		// The topic may be managed externally; publishing still works if it exists.
		log.Warn("ensure audit topic", "topic", cfg.Audit.KafkaTopic, "error", err)
	}
	log.Info("audit stream enabled", "brokers", cfg.Audit.KafkaBrokers, "topic", cfg.Audit.KafkaTopic)
	return p, nil
}

// Package httptransport assembles the public HTTP surface: shared middleware,
// operational endpoints and the newsletter routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newsletter/internal/newsletter/handler"
	"newsletter/internal/platform/metrics"
	"newsletter/internal/platform/middleware"
	"newsletter/pkg/platform/httputil"
	"newsletter/pkg/platform/middleware/metadata"
	"newsletter/pkg/platform/middleware/requesttime"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config carries everything the router wires together. Metrics, Gatherer and
// RateLimiter are optional.
type Config struct {
	Logger         *slog.Logger
	Newsletter     handler.Service
	Health         Pinger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RateLimiter    *middleware.ClientLimiter
	AllowedOrigins []string
	// TrustedProxies are peers whose forwarding headers name the client.
	TrustedProxies []netip.Prefix
	RequestTimeout time.Duration
}

// NewRouter wires all public endpoints.
func NewRouter(cfg Config) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies))
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", healthHandler(cfg.Health))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	var mutating []func(http.Handler) http.Handler
	if cfg.RateLimiter != nil {
		mutating = append(mutating, middleware.RateLimit(cfg.RateLimiter, cfg.Logger, cfg.Metrics))
	}
	handler.New(cfg.Newsletter, cfg.Logger, mutating...).Register(r)

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

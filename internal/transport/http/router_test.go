package httptransport

import (
	"context"
	"errors"
	"io"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsletter/internal/newsletter/handler"
	"newsletter/internal/newsletter/service"
	"newsletter/internal/newsletter/store/subscription"
	"newsletter/internal/platform/metrics"
	"newsletter/internal/platform/middleware"
	"newsletter/pkg/testutil"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRouter(t *testing.T, limiter *middleware.ClientLimiter) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	store := subscription.NewInMemory()
	return NewRouter(Config{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Newsletter:  service.New(store),
		Health:      store,
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		RateLimiter: limiter,
	})
}

func subscribeReq(t *testing.T, path, addr string) *http.Request {
	return testutil.NewJSONRequest(t, http.MethodPost, path, map[string]string{"email": addr})
}

func TestNewsletterScenario(t *testing.T) {
	router := newTestRouter(t, nil)

	testutil.Given(t, "an empty mailing list", func(t *testing.T) {
		testutil.When(t, "a@x.com subscribes", func(t *testing.T) {
			rr := testutil.DoRequest(router, subscribeReq(t, handler.SubscribePath, "a@x.com"))
			testutil.Then(t, "the subscription is confirmed", func(t *testing.T) {
				testutil.AssertText(t, rr, "Subscribed to newsletter a@x.com")
			})
		})

		testutil.When(t, "a@x.com subscribes again", func(t *testing.T) {
			rr := testutil.DoRequest(router, subscribeReq(t, handler.SubscribePath, "a@x.com"))
			testutil.Then(t, "the request conflicts", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
			})
		})

		testutil.When(t, "the list is read", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, handler.MailingListPath, nil))
			testutil.Then(t, "a@x.com appears once", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				assert.JSONEq(t, `[{"email":"a@x.com"}]`, rr.Body.String())
			})
		})

		testutil.When(t, "a@x.com unsubscribes", func(t *testing.T) {
			rr := testutil.DoRequest(router, subscribeReq(t, handler.UnsubscribePath, "a@x.com"))
			testutil.Then(t, "the removal is confirmed", func(t *testing.T) {
				testutil.AssertText(t, rr, "Unsubscribed from newsletter a@x.com")
			})
		})

		testutil.When(t, "a@x.com unsubscribes again", func(t *testing.T) {
			rr := testutil.DoRequest(router, subscribeReq(t, handler.UnsubscribePath, "a@x.com"))
			testutil.Then(t, "the address is not found", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
			})
		})

		testutil.When(t, "the list is read after unsubscribing", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, handler.MailingListPath, nil))
			testutil.Then(t, "it is an empty array", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				assert.JSONEq(t, `[]`, rr.Body.String())
			})
		})
	})
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newTestRouter(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodGet, handler.MailingListPath, nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	rr := testutil.DoRequest(router, req)
	assert.Equal(t, "abc-123", rr.Header().Get(middleware.RequestIDHeader))

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, handler.MailingListPath, nil))
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestWrongMethodIsRejected(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, handler.SubscribePath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRateLimitAppliesToMutatingRoutes(t *testing.T) {
	router := newTestRouter(t, middleware.NewClientLimiter(0.001, 1))

	rr := testutil.DoRequest(router, subscribeReq(t, handler.SubscribePath, "a@x.com"))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.DoRequest(router, subscribeReq(t, handler.SubscribePath, "b@x.com"))
	testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "too_many_requests")
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, handler.MailingListPath, nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestRateLimitIgnoresSpoofedForwardingHeaders(t *testing.T) {
	limiter := middleware.NewClientLimiter(0.001, 1)
	router := newTestRouter(t, limiter)

	succeeded := 0
	for i := 0; i < 50; i++ {
		req := subscribeReq(t, handler.SubscribePath, fmt.Sprintf("u%d@x.com", i))
		req.RemoteAddr = "198.51.100.20:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.114.%d", i))
		rr := testutil.DoRequest(router, req)
		if rr.Code == http.StatusOK {
			succeeded++
			continue
		}
		testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "too_many_requests")
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, limiter.Len(), "one socket peer is one client")
}

func TestRateLimitTrustsConfiguredProxy(t *testing.T) {
	limiter := middleware.NewClientLimiter(0.001, 1)
	router := NewRouter(Config{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Newsletter:     service.New(subscription.NewInMemory()),
		RateLimiter:    limiter,
		TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	})

	send := func(addr, forwardedFor string) int {
		req := subscribeReq(t, handler.SubscribePath, addr)
		req.RemoteAddr = "10.1.2.3:5000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		return testutil.DoRequest(router, req).Code
	}

	assert.Equal(t, http.StatusOK, send("a@x.com", "203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("b@x.com", "203.0.113.2"), "distinct clients behind the proxy")
	assert.Equal(t, http.StatusTooManyRequests, send("c@x.com", "203.0.113.1"))
	assert.Equal(t, 2, limiter.Len())
}

func TestSuccessTextEchoesNormalizedEmail(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := testutil.DoRequest(router, subscribeReq(t, handler.SubscribePath, "  Reader@Example.COM "))
	testutil.AssertText(t, rr, "Subscribed to newsletter reader@example.com")

	rr = testutil.DoRequest(router, subscribeReq(t, handler.UnsubscribePath, "READER@example.com"))
	testutil.AssertText(t, rr, "Unsubscribed from newsletter reader@example.com")
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		router := newTestRouter(t, nil)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		router := NewRouter(Config{
			Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			Newsletter: service.New(subscription.NewInMemory()),
			Health:     pingerFunc(func(context.Context) error { return errors.New("down") }),
		})
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, handler.MailingListPath, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "newsletter_http_request_duration_seconds")
}

func TestCORSPreflight(t *testing.T) {
	router := NewRouter(Config{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Newsletter:     service.New(subscription.NewInMemory()),
		AllowedOrigins: []string{"https://news.example.com"},
	})
	req := testutil.NewJSONRequest(t, http.MethodOptions, handler.SubscribePath, nil)
	req.Header.Set("Origin", "https://news.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := testutil.DoRequest(router, req)
	assert.Equal(t, "https://news.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

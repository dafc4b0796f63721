package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newscrew_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"handler", "method", "code"})

	httpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newscrew_http_request_errors_total",
		Help: "Total number of HTTP requests that resulted in a server error.",
	}, []string{"handler", "method"})

	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newscrew_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"handler", "method"})

	upstreamCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newscrew_upstream_calls_total",
		Help: "Calls made to external AI, search and storage services.",
	}, []string{"provider", "operation", "outcome"})

	upstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newscrew_upstream_call_duration_seconds",
		Help:    "Latency of calls made to external services.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"provider", "operation"})

	taskOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newscrew_task_outcomes_total",
		Help: "Asynchronous task executions by kind and outcome.",
	}, []string{"kind", "outcome"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newscrew_cache_lookups_total",
		Help: "Search cache lookups by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpErrors, httpLatency, upstreamCalls, upstreamLatency, taskOutcomes, cacheLookups)
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		httpErrors.WithLabelValues(handler, method).Inc()
	}
	httpLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveUpstream records one call to an external provider. A nil err counts
// as "ok".
func ObserveUpstream(provider, operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamCalls.WithLabelValues(provider, operation, outcome).Inc()
	upstreamLatency.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
}

// IncTaskOutcome counts a finished task attempt.
func IncTaskOutcome(kind, outcome string) { taskOutcomes.WithLabelValues(kind, outcome).Inc() }

// IncCacheLookup counts a cache hit or miss.
func IncCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

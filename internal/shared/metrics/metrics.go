// Package metrics defines the Prometheus metrics shared by the API server and the screen shell.
//
// All collectors register with the default registry at package init through promauto,
// and are exposed on GET /metrics by the server package.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authscreen"

// HTTPRequestsTotal counts served requests.
// Labels:
//   - method: HTTP method
//   - route: chi route pattern (e.g. "/api/login"), "unmatched" when no route matched
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests served.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration measures request latency by route.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// AuthOperationsTotal counts backend authentication operations.
// Labels:
//   - operation: register, login or logout
//   - result: success, invalid, conflict, unauthorized or error
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of authentication operations handled by the API.",
	},
	[]string{"operation", "result"},
)

// SessionsSweptTotal counts expired sessions removed by the sweeper.
var SessionsSweptTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_swept_total",
		Help:      "Total number of expired sessions deleted.",
	},
)

// ScreenOutcomesTotal counts outcomes observed by the auth screen controller.
// Labels:
//   - operation: register, login or logout
//   - outcome: success or failure
var ScreenOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screen_outcomes_total",
		Help:      "Total number of request outcomes reported to the user.",
	},
	[]string{"operation", "outcome"},
)

// ScreenInFlight tracks submitted requests still waiting for their outcome.
var ScreenInFlight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "screen_requests_in_flight",
		Help:      "Number of submitted requests without an outcome yet.",
	},
)

// Middleware records HTTPRequestsTotal and HTTPRequestDuration for every request
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

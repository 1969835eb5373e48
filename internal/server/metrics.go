package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// RequestIDHeader carries the identifier assigned to every API request.
const RequestIDHeader = "X-Request-ID"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "robust_portfolio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "robust_portfolio",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route", "method", "class"},
	)

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "robust_portfolio",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Completed analyses by outcome",
		},
		[]string{"outcome"},
	)

	simulatedPaths = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "robust_portfolio",
			Subsystem: "analysis",
			Name:      "simulated_paths_total",
			Help:      "Total number of Monte Carlo paths simulated on behalf of API requests",
		},
	)

	flaggedPaths = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "robust_portfolio",
			Subsystem: "analysis",
			Name:      "flagged_paths_total",
			Help:      "Simulated paths that reached non-positive wealth",
		},
	)

	regOnce sync.Once
)

// registerMetrics registers the collectors with the default registry once
// per process.
func registerMetrics() {
	regOnce.Do(func() {
		prometheus.MustRegister(requestsTotal, requestDuration, analysesTotal, simulatedPaths, flaggedPaths)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// instrument assigns a request ID and records request metrics under the
// fixed route label.
func (h *handler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(withRequestID(r.Context(), id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		requestDuration.WithLabelValues(route, r.Method, statusClass(rec.status)).Observe(elapsed.Seconds())

		h.logger.Debug("request served",
			zap.String("op", "server.instrument"),
			zap.String("requestId", id),
			zap.String("route", route),
			zap.String("method", r.Method),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
		)
	}
}

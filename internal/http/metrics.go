package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	tasksCreated prometheus.Counter
	tasksToggled *prometheus.CounterVec
	logsRecorded prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apipulse",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apipulse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apipulse",
			Name:      "tasks_created_total",
			Help:      "Tasks created through the API.",
		}),
		tasksToggled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apipulse",
			Name:      "tasks_toggled_total",
			Help:      "Successful active-flag updates by resulting state.",
		}, []string{"is_active"}),
		logsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apipulse",
			Name:      "execution_logs_recorded_total",
			Help:      "Execution logs written by the execution engine.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.tasksCreated, m.tasksToggled, m.logsRecorded)
	return m
}

func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

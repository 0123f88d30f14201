// Package metrics holds the Prometheus collectors the daemon exposes on
// /metrics. Each Metrics value owns its registry so several daemons can run
// in one test binary.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "searchq"

// Watcher counters reported by native hosts.
type WatcherCounts struct {
	Intercepted int64
	Recorded    int64
	Duplicates  int64
	Failures    int64
}

// Metrics groups the daemon's collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	mutations           *prometheus.CounterVec
	searches            *prometheus.CounterVec
	queueLength         prometheus.Gauge

	mu       sync.Mutex
	watchers map[string]WatcherCounts
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_mutations_total",
				Help:      "Queue mutations applied by the daemon, by operation",
			},
			[]string{"op"},
		),
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Search-now executions, by result",
			},
			[]string{"result"},
		),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Number of queued queries",
		}),
		watchers: make(map[string]WatcherCounts),
	}

	m.registry.MustRegister(
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.mutations,
		m.searches,
		m.queueLength,
		m.watcherCounter("intercepted_total", "Eligible navigations cancelled by native hosts",
			func(c WatcherCounts) int64 { return c.Intercepted }),
		m.watcherCounter("recorded_total", "Queries recorded by native hosts",
			func(c WatcherCounts) int64 { return c.Recorded }),
		m.watcherCounter("duplicates_suppressed_total", "Repeated commits cancelled without recording",
			func(c WatcherCounts) int64 { return c.Duplicates }),
		m.watcherCounter("record_failures_total", "Queries native hosts failed to record",
			func(c WatcherCounts) int64 { return c.Failures }),
	)
	return m
}

func (m *Metrics) watcherCounter(name, help string, pick func(WatcherCounts) int64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      name,
		Help:      help,
	}, func() float64 {
		m.mu.Lock()
		defer m.mu.Unlock()
		var total int64
		for _, c := range m.watchers {
			total += pick(c)
		}
		return float64(total)
	})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Mutation counts one applied queue operation.
func (m *Metrics) Mutation(op string) {
	m.mutations.WithLabelValues(op).Inc()
}

// Search counts one search-now attempt.
func (m *Metrics) Search(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.searches.WithLabelValues(result).Inc()
}

// SetQueueLength records the current queue size.
func (m *Metrics) SetQueueLength(n int) {
	m.queueLength.Set(float64(n))
}

// ReportWatcher stores the cumulative counters of one native host. Reports
// replace earlier ones from the same host.
func (m *Metrics) ReportWatcher(hostID string, counts WatcherCounts) {
	m.mu.Lock()
	m.watchers[hostID] = counts
	m.mu.Unlock()
}

// Middleware records HTTP request duration and count.
func (m *Metrics) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(ww.status)

			path := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}

			m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
			m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}

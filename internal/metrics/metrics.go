// Package metrics exposes Prometheus collectors for the scheduling API and
// the automation runner.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
)

const defaultNamespace = "studio"

// Collector owns a registry and the collectors registered on it. It satisfies
// application.Recorder.
type Collector struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	sessionsCreated  *prometheus.CounterVec
	scheduleRejected *prometheus.CounterVec

	automationOutcomes *prometheus.CounterVec
	automationRuns     *prometheus.CounterVec
	automationDuration prometheus.Histogram
}

var _ application.Recorder = (*Collector)(nil)

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "sessions_created_total",
			Help:      "Class sessions created, by creation mode.",
		}, []string{"mode"}),
		scheduleRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "rejections_total",
			Help:      "Schedule operations rejected, by operation and error kind.",
		}, []string{"operation", "kind"}),
		automationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "candidates_total",
			Help:      "Automation candidates processed, by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		automationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "runs_total",
			Help:      "Automation passes executed.",
		}, []string{"success"}),
		automationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "automation",
			Name:      "run_duration_seconds",
			Help:      "Duration of automation passes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	c.registry.MustRegister(
		c.httpInFlight,
		c.httpRequests,
		c.httpDuration,
		c.sessionsCreated,
		c.scheduleRejected,
		c.automationOutcomes,
		c.automationRuns,
		c.automationDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SessionsCreated counts sessions persisted by a create operation.
func (c *Collector) SessionsCreated(mode string, count int) {
	if count <= 0 {
		return
	}
	c.sessionsCreated.WithLabelValues(mode).Add(float64(count))
}

// ScheduleRejected counts a failed schedule operation.
func (c *Collector) ScheduleRejected(operation, kind string) {
	c.scheduleRejected.WithLabelValues(operation, kind).Inc()
}

// AutomationOutcome counts candidates of one automation by outcome.
func (c *Collector) AutomationOutcome(trigger string, outcome application.Outcome, count int) {
	if count <= 0 {
		return
	}
	if trigger == "" {
		trigger = "unknown"
	}
	c.automationOutcomes.WithLabelValues(trigger, string(outcome)).Add(float64(count))
}

// AutomationRun records one automation pass.
func (c *Collector) AutomationRun(duration time.Duration, err error) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	c.automationRuns.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	c.automationDuration.Observe(duration.Seconds())
}

// InstrumentHandler wraps next with HTTP request metrics. Scrapes of the
// metrics endpoint itself are not counted.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		c.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
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

// canonicalPath bounds label cardinality to the routes the service serves.
func canonicalPath(raw string) string {
	switch raw {
	case "/studio/schedule", "/studio/schedule/conflicts", "/internal/automations/run", "/healthz":
		return raw
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + strings.SplitN(trimmed, "/", 2)[0] + "/*"
}

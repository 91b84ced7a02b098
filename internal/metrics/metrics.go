// Package metrics exposes Prometheus instrumentation for the server and worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trckr"

// Collector owns the registry and every metric the process reports.
type Collector struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	dbConnects      *prometheus.CounterVec
	dbTimeouts      *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	eventsHandled   *prometheus.CounterVec
	archives        *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		dbConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connect_attempts_total",
			Help:      "Database connection attempts by result.",
		}, []string{"result"}),
		dbTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "timeouts_total",
			Help:      "Database operations that exceeded their budget.",
		}, []string{"operation"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Workout events published by kind and result.",
		}, []string{"kind", "result"}),
		eventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handled_total",
			Help:      "Workout events consumed by the worker by kind and result.",
		}, []string{"kind", "result"}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "objects_written_total",
			Help:      "Objects written to object storage by purpose and result.",
		}, []string{"purpose", "result"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequests,
		c.httpDuration,
		c.dbConnects,
		c.dbTimeouts,
		c.eventsPublished,
		c.eventsHandled,
		c.archives,
	)
	return c
}

// Registry exposes the underlying registry for gathering in tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveConnect(err error) {
	c.dbConnects.WithLabelValues(result(err)).Inc()
}

func (c *Collector) ObserveTimeout(operation string) {
	c.dbTimeouts.WithLabelValues(operation).Inc()
}

func (c *Collector) ObserveEventPublished(kind string, err error) {
	c.eventsPublished.WithLabelValues(kind, result(err)).Inc()
}

func (c *Collector) ObserveEventHandled(kind string, err error) {
	c.eventsHandled.WithLabelValues(kind, result(err)).Inc()
}

func (c *Collector) ObserveObjectWritten(purpose string, err error) {
	c.archives.WithLabelValues(purpose, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

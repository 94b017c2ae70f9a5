// Package metrics exposes Prometheus instrumentation for filesystem
// operations.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records operation counts, latencies and byte throughput. A nil
// collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	errors     *prometheus.CounterVec

	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "flatfs"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total filesystem operations by name.",
		}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Filesystem operation latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Total failed filesystem operations by name.",
		}, []string{"operation"}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Total bytes read from the object store.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total bytes written to the object store.",
		}),
	}

	c.registry.MustRegister(c.operations, c.duration, c.errors, c.bytesRead, c.bytesWritten)
	return c
}

// ObserveOperation records one completed operation.
func (c *Collector) ObserveOperation(operation string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation).Inc()
	c.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		c.errors.WithLabelValues(operation).Inc()
	}
}

func (c *Collector) AddBytesRead(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesRead.Add(float64(n))
}

func (c *Collector) AddBytesWritten(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesWritten.Add(float64(n))
}

// Handler returns the scrape endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve blocks serving the scrape endpoint on the given port and path.
func (c *Collector) Serve(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

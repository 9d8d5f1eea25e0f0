package memory

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records Manager operation counts and latencies.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	recalled   prometheus.Histogram
}

// NewMetrics creates the memory metrics and registers them on reg.
// A nil reg leaves them unregistered. Collectors already registered on reg
// are reused so several managers can share one registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memory_operations_total",
				Help: "Total number of memory operations by outcome",
			},
			[]string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memory_operation_duration_seconds",
				Help:    "Memory operation duration in seconds, embedding included",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
		recalled: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memory_recall_results",
				Help:    "Number of memories returned per successful recall",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
		),
	}
	if reg == nil {
		return m
	}
	m.operations = register(reg, m.operations)
	m.duration = register(reg, m.duration)
	m.recalled = register(reg, m.recalled)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		status = "invalid"
	case errors.Is(err, ErrProvider):
		status = "provider_error"
	case errors.Is(err, ErrStorageUnavailable):
		status = "storage_error"
	default:
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRecalled(n int) {
	if m == nil {
		return
	}
	m.recalled.Observe(float64(n))
}

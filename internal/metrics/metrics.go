package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records ledger operation outcomes and the live option totals.
type LedgerMetrics struct {
	operations  *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	options     prometheus.Gauge
	optionTotal prometheus.Gauge
	deposited   prometheus.Gauge
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registered with the
// default prometheus registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = newLedgerMetrics()
		prometheus.MustRegister(ledgerRegistry.collectors()...)
	})
	return ledgerRegistry
}

// NewUnregistered builds a metrics set that is not attached to any registry.
// Callers register it themselves, typically against a private registry in tests.
func NewUnregistered() *LedgerMetrics {
	return newLedgerMetrics()
}

func newLedgerMetrics() *LedgerMetrics {
	return &LedgerMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Ledger operations segmented by operation and outcome.",
		}, []string{"operation", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "engine",
			Name:      "failures_total",
			Help:      "Failed ledger operations segmented by operation and error class.",
		}, []string{"operation", "class"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution of ledger operations including the store commit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		options: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Subsystem: "options",
			Name:      "active",
			Help:      "Active option records as tracked by the protocol config.",
		}),
		optionTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Subsystem: "options",
			Name:      "outstanding_amount",
			Help:      "Sum of convertible amount across active option records.",
		}),
		deposited: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Subsystem: "treasury",
			Name:      "total_deposited",
			Help:      "Cumulative value ever deposited into the treasury.",
		}),
	}
}

// Collectors exposes every collector for registration against a custom registry.
func (m *LedgerMetrics) Collectors() []prometheus.Collector {
	return m.collectors()
}

func (m *LedgerMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operations,
		m.failures,
		m.latency,
		m.options,
		m.optionTotal,
		m.deposited,
	}
}

// Observe records the outcome of one operation. class is empty on success.
func (m *LedgerMetrics) Observe(operation, class string, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if class != "" {
		outcome = "error"
		m.failures.WithLabelValues(operation, class).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetOptionTotals publishes the committed option counters.
func (m *LedgerMetrics) SetOptionTotals(count, total uint64) {
	if m == nil {
		return
	}
	m.options.Set(float64(count))
	m.optionTotal.Set(float64(total))
}

// SetTotalDeposited publishes the committed treasury counter.
func (m *LedgerMetrics) SetTotalDeposited(total uint64) {
	if m == nil {
		return
	}
	m.deposited.Set(float64(total))
}

package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// LedgerMetrics tracks transaction and instruction outcomes in the host.
type LedgerMetrics struct {
	transactions *prometheus.CounterVec
	instructions *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	applyLatency prometheus.Histogram
	slot         prometheus.Gauge
	fees         prometheus.Counter
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record RPC
// route activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total RPC requests segmented by route and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total RPC errors segmented by route and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of RPC requests rejected by throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an RPC request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Ledger returns the singleton host metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "host",
				Name:      "transactions_total",
				Help:      "Applied transactions segmented by outcome.",
			}, []string{"outcome"}),
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "host",
				Name:      "instructions_total",
				Help:      "Executed instructions segmented by program, opcode and outcome.",
			}, []string{"program", "opcode", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "host",
				Name:      "rejections_total",
				Help:      "Rejected transactions segmented by error program and kind.",
			}, []string{"program", "kind"}),
			applyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "host",
				Name:      "apply_duration_seconds",
				Help:      "Time spent applying a transaction, including rejected ones.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			}),
			slot: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "ledger",
				Subsystem: "host",
				Name:      "slot",
				Help:      "Current ledger slot.",
			}),
			fees: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "host",
				Name:      "fees_lamports_total",
				Help:      "Signature fees collected from committed transactions.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.instructions,
			ledgerRegistry.rejections,
			ledgerRegistry.applyLatency,
			ledgerRegistry.slot,
			ledgerRegistry.fees,
		)
	})
	return ledgerRegistry
}

// ObserveTransaction records a committed or rejected transaction. errProgram
// and errKind are ignored for committed transactions.
func (m *LedgerMetrics) ObserveTransaction(committed bool, errProgram, errKind string, fee uint64, duration time.Duration) {
	if m == nil {
		return
	}
	m.applyLatency.Observe(duration.Seconds())
	if committed {
		m.transactions.WithLabelValues("committed").Inc()
		m.fees.Add(float64(fee))
		return
	}
	m.transactions.WithLabelValues("rejected").Inc()
	if errProgram == "" {
		errProgram = "unknown"
	}
	if errKind == "" {
		errKind = "internal"
	}
	m.rejections.WithLabelValues(errProgram, errKind).Inc()
}

// ObserveInstruction records a single instruction execution.
func (m *LedgerMetrics) ObserveInstruction(program string, opcode uint8, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	m.instructions.WithLabelValues(program, fmt.Sprintf("%d", opcode), outcome).Inc()
}

// SetSlot publishes the current slot.
func (m *LedgerMetrics) SetSlot(slot uint64) {
	if m == nil {
		return
	}
	m.slot.Set(float64(slot))
}

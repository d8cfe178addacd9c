package observability

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"ledgerprograms/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
	volume  *prometheus.CounterVec
	settled *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed program events. It
// is an events.Emitter so it can subscribe to the host's committed stream.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "payments",
				Name:      "volume_total",
				Help:      "Token amounts moved by committed payments, split into fee and net.",
			}, []string{"part"}),
			settled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "dice",
				Name:      "bets_settled_total",
				Help:      "Settled bets segmented by how they closed.",
			}, []string{"result"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.volume, eventRegistry.settled)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	typ := strings.TrimSpace(evt.EventType())
	if typ == "" {
		typ = "unknown"
	}
	m.emitted.WithLabelValues(typ).Inc()

	wire, ok := evt.(events.Wire)
	if !ok || wire.Event() == nil {
		return
	}
	attrs := wire.Event().Attributes
	switch typ {
	case "payments.processed":
		m.addVolume("fee", attrs["fee"])
		m.addVolume("net", attrs["net"])
	case "dice.bet_resolved":
		if attrs["won"] == "true" {
			m.settled.WithLabelValues("player_won").Inc()
		} else {
			m.settled.WithLabelValues("house_won").Inc()
		}
	case "dice.bet_refunded":
		m.settled.WithLabelValues("refunded").Inc()
	}
}

func (m *eventMetrics) addVolume(part, raw string) {
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return
	}
	m.volume.WithLabelValues(part).Add(float64(amount))
}

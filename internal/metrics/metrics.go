// Package metrics exposes Prometheus collectors for extraction, the click
// cycle, outbound dispatch and the collaborator channel.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "verve"

// Metrics is nil-safe: every recording method is a no-op on a nil receiver.
type Metrics struct {
	itemsExtracted   *prometheus.CounterVec
	duplicates       *prometheus.CounterVec
	passes           *prometheus.CounterVec
	activations      prometheus.Counter
	rounds           prometheus.Counter
	cycleErrors      *prometheus.CounterVec
	cycleRunning     prometheus.Gauge
	dispatches       *prometheus.CounterVec
	publishes        *prometheus.CounterVec
	memoryEntries    prometheus.Gauge
	archivedMessages prometheus.Counter
}

// MustNewMetrics registers the collectors with reg and panics on conflicts.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		itemsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "items_total",
			Help:      "Items forwarded after deduplication.",
		}, []string{"kind"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "duplicates_total",
			Help:      "Items skipped because their dedup key was already seen.",
		}, []string{"kind"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "passes_total",
			Help:      "Extraction passes by drive mode.",
		}, []string{"mode"}),
		activations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "activations_total",
			Help:      "Contacts activated by the click cycle.",
		}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "rounds_total",
			Help:      "Completed click-cycle rounds.",
		}),
		cycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "errors_total",
			Help:      "Click cycles stopped by a structural fault.",
		}, []string{"reason"}),
		cycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "running",
			Help:      "1 while the click cycle is running.",
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "results_total",
			Help:      "Outbound dispatch results by outcome.",
		}, []string{"outcome"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "publish_total",
			Help:      "Messages published to the collaborator channel.",
		}, []string{"type", "status"}),
		memoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "entries",
			Help:      "Entries held in the active conversation buffer.",
		}),
		archivedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "messages_total",
			Help:      "Chat messages newly written to the archive.",
		}),
	}

	reg.MustRegister(
		m.itemsExtracted,
		m.duplicates,
		m.passes,
		m.activations,
		m.rounds,
		m.cycleErrors,
		m.cycleRunning,
		m.dispatches,
		m.publishes,
		m.memoryEntries,
		m.archivedMessages,
	)
	return m
}

func (m *Metrics) ItemExtracted(kind string) {
	if m == nil {
		return
	}
	m.itemsExtracted.WithLabelValues(kind).Inc()
}

func (m *Metrics) DuplicateSkipped(kind string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(kind).Inc()
}

func (m *Metrics) Pass(mode string) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(mode).Inc()
}

func (m *Metrics) Activation() {
	if m == nil {
		return
	}
	m.activations.Inc()
}

func (m *Metrics) Round() {
	if m == nil {
		return
	}
	m.rounds.Inc()
}

func (m *Metrics) CycleError(reason string) {
	if m == nil {
		return
	}
	m.cycleErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) CycleRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.cycleRunning.Set(1)
		return
	}
	m.cycleRunning.Set(0)
}

func (m *Metrics) Dispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Publish(kind, status string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) MemoryEntries(n int) {
	if m == nil {
		return
	}
	m.memoryEntries.Set(float64(n))
}

func (m *Metrics) Archived(n int) {
	if m == nil {
		return
	}
	m.archivedMessages.Add(float64(n))
}

// Package metrics holds the monitor's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "door_monitor"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PushesReceived *prometheus.CounterVec
	FanoutTicks    prometheus.Counter
	EditFailures   prometheus.Counter
	HistoryLength  prometheus.Gauge
	LinkedTargets  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PushesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pushes_received_total",
				Help:      "Sensor pushes accepted by the receiver, by decoded state.",
			},
			[]string{"state"},
		),
		FanoutTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_ticks_total",
			Help:      "Announcement ticks run.",
		}),
		EditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surface_edit_failures_total",
			Help:      "Status message edits that failed.",
		}),
		HistoryLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_length",
			Help:      "Points held in the state history.",
		}),
		LinkedTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "linked_targets",
			Help:      "Subscribers with a tracked status message.",
		}),
	}

	reg.MustRegister(m.PushesReceived, m.FanoutTicks, m.EditFailures, m.HistoryLength, m.LinkedTargets)
	return m
}

// ObservePush counts one received push.
func (m *Metrics) ObservePush(state string) {
	if m == nil {
		return
	}
	m.PushesReceived.WithLabelValues(state).Inc()
}

// ObserveTick records one fanout tick and its edit failures.
func (m *Metrics) ObserveTick(failures int) {
	if m == nil {
		return
	}
	m.FanoutTicks.Inc()
	m.EditFailures.Add(float64(failures))
}

// SetSizes updates the history and target gauges.
func (m *Metrics) SetSizes(historyLen, targets int) {
	if m == nil {
		return
	}
	m.HistoryLength.Set(float64(historyLen))
	m.LinkedTargets.Set(float64(targets))
}

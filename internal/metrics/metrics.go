// Package metrics defines the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sweeney/complex-monitor/internal/logic"
)

const namespace = "complex"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	connState        *prometheus.GaugeVec
	connectAttempts  prometheus.Counter
	connectFailures  prometheus.Counter
	brokerPublishes  *prometheus.CounterVec
	brokerAcks       prometheus.Counter
	dashboardPushes  *prometheus.CounterVec
	droppedPresses   prometheus.Counter
	sensorReadErrors *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		connState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connection_state",
			Help:      "1 for the current broker connection state, 0 otherwise.",
		}, []string{"state"}),
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_connect_attempts_total",
			Help:      "Broker connection attempts.",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_connect_failures_total",
			Help:      "Failed broker connection attempts.",
		}),
		brokerPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_publishes_total",
			Help:      "Broker publish calls by result.",
		}, []string{"result"}),
		brokerAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_acks_total",
			Help:      "Delivery acknowledgements received from the broker.",
		}),
		dashboardPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_pushes_total",
			Help:      "Events pushed to the dashboard by event name.",
		}, []string{"event"}),
		droppedPresses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "button_presses_dropped_total",
			Help:      "Button presses dropped because the broker was not connected.",
		}),
		sensorReadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_read_errors_total",
			Help:      "Failed sensor reads by quantity.",
		}, []string{"quantity"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connState,
		m.connectAttempts,
		m.connectFailures,
		m.brokerPublishes,
		m.brokerAcks,
		m.dashboardPushes,
		m.droppedPresses,
		m.sensorReadErrors,
	)
	return m
}

// SetConnState marks s as the current connection state.
func (m *Metrics) SetConnState(s logic.ConnStatus) {
	if m == nil {
		return
	}
	for _, st := range []logic.ConnStatus{logic.Disconnected, logic.Connecting, logic.Connected} {
		v := 0.0
		if st == s {
			v = 1
		}
		m.connState.WithLabelValues(string(st)).Set(v)
	}
}

// ConnectAttempt counts one connection attempt and its outcome.
func (m *Metrics) ConnectAttempt(ok bool) {
	if m == nil {
		return
	}
	m.connectAttempts.Inc()
	if !ok {
		m.connectFailures.Inc()
	}
}

// BrokerPublish counts one publish call.
func (m *Metrics) BrokerPublish(result string) {
	if m == nil {
		return
	}
	m.brokerPublishes.WithLabelValues(result).Inc()
}

// BrokerAck counts one delivery acknowledgement.
func (m *Metrics) BrokerAck() {
	if m == nil {
		return
	}
	m.brokerAcks.Inc()
}

// DashboardPush counts one dashboard event.
func (m *Metrics) DashboardPush(event string) {
	if m == nil {
		return
	}
	m.dashboardPushes.WithLabelValues(event).Inc()
}

// DroppedPress counts a press that was not published.
func (m *Metrics) DroppedPress() {
	if m == nil {
		return
	}
	m.droppedPresses.Inc()
}

// SensorReadError counts a failed read of quantity ("temperature" or "humidity").
func (m *Metrics) SensorReadError(quantity string) {
	if m == nil {
		return
	}
	m.sensorReadErrors.WithLabelValues(quantity).Inc()
}

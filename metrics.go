package coreact

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "coreact"

// Metrics exposes Prometheus collectors reporting executor and
// reactor activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	tasksSpawned  prometheus.Counter
	tasksLive     prometheus.Gauge
	resumes       prometheus.Counter
	registrations prometheus.Gauge
	commands      *prometheus.CounterVec
	dispatches    prometheus.Counter
	connections   prometheus.Gauge
}

// NewMetrics builds the collectors and registers them with reg. A nil
// reg leaves them unregistered. Registration errors panic, mirroring
// promauto.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "tasks_spawned_total",
			Help:      "Total number of tasks spawned.",
		}),
		tasksLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "tasks_live",
			Help:      "Number of spawned tasks that have not finished.",
		}),
		resumes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "resumes_total",
			Help:      "Total number of task resumptions.",
		}),
		registrations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "reactor",
			Name:      "registrations",
			Help:      "Number of descriptors with a pending one-shot registration.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reactor",
			Name:      "commands_total",
			Help:      "Register and unregister commands applied by the reactor.",
		}, []string{"op"}),
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reactor",
			Name:      "dispatches_total",
			Help:      "Readiness events turned into task wakes.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "connections_open",
			Help:      "Number of open client connections.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.tasksSpawned,
			m.tasksLive,
			m.resumes,
			m.registrations,
			m.commands,
			m.dispatches,
			m.connections,
		)
	}

	return m
}

// IncTasksSpawned records a new task.
func (m *Metrics) IncTasksSpawned() {
	if m == nil {
		return
	}
	m.tasksSpawned.Inc()
	m.tasksLive.Inc()
}

// DecTasksLive records a finished or cancelled task.
func (m *Metrics) DecTasksLive() {
	if m == nil {
		return
	}
	m.tasksLive.Dec()
}

// IncResumes records one resumption.
func (m *Metrics) IncResumes() {
	if m == nil {
		return
	}
	m.resumes.Inc()
}

// SetRegistrations records the registration table size.
func (m *Metrics) SetRegistrations(n int) {
	if m == nil {
		return
	}
	m.registrations.Set(float64(n))
}

// IncCommand records an applied reactor command.
func (m *Metrics) IncCommand(op string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(op).Inc()
}

// IncDispatches records a readiness dispatch.
func (m *Metrics) IncDispatches() {
	if m == nil {
		return
	}
	m.dispatches.Inc()
}

// IncConnections records an accepted connection.
func (m *Metrics) IncConnections() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// DecConnections records a closed connection.
func (m *Metrics) DecConnections() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

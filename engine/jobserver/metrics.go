package jobserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchdeck/watchdeck/engine/core"
)

const metricsNamespace = "watchdeck_jobserver"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	commands *prometheus.CounterVec
	tasks    *prometheus.CounterVec
	running  *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Commands handled, by job, verb and answered status.",
		}, []string{"job", "cmd", "status"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_finished_total",
			Help:      "Tasks that reached a final state.",
		}, []string{"job", "state"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_running",
			Help:      "Tasks currently running.",
		}, []string{"job"}),
	}
	m.registry.MustRegister(
		m.commands,
		m.tasks,
		m.running,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveCommand(job, cmd, status string) {
	m.commands.WithLabelValues(job, cmd, status).Inc()
}

func (m *Metrics) TaskStarted(job core.JobName) {
	m.running.WithLabelValues(job.String()).Inc()
}

func (m *Metrics) TaskFinished(job core.JobName, state TaskState) {
	m.running.WithLabelValues(job.String()).Dec()
	m.tasks.WithLabelValues(job.String(), string(state)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

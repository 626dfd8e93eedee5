package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

// Metrics holds Prometheus metrics for the task loop.
//
// Metrics:
//   - stepwise_dispatches_total - tasks handed to a collaborator
//   - stepwise_verdicts_total{verdict} - classified collaborator outputs
//   - stepwise_transitions_total{status} - tasks settled as completed or failed
//   - stepwise_escalations_total{decision} - loops that reached a terminal decision
//   - stepwise_decompositions_total{result} - accepted, rejected, or empty decompositions
type Metrics struct {
	DispatchesTotal     prometheus.Counter
	VerdictsTotal       *prometheus.CounterVec
	TransitionsTotal    *prometheus.CounterVec
	EscalationsTotal    *prometheus.CounterVec
	DecompositionsTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DispatchesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "stepwise_dispatches_total",
			Help: "Total number of task dispatches",
		}),
		VerdictsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stepwise_verdicts_total",
			Help: "Total number of classified collaborator outputs",
		}, []string{"verdict"}),
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stepwise_transitions_total",
			Help: "Total number of tasks settled",
		}, []string{"status"}),
		EscalationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stepwise_escalations_total",
			Help: "Total number of terminal loop decisions",
		}, []string{"decision"}),
		DecompositionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stepwise_decompositions_total",
			Help: "Total number of decomposition results handled",
		}, []string{"result"}),
	}
}

func (m *Metrics) dispatch() {
	if m == nil {
		return
	}
	m.DispatchesTotal.Inc()
}

func (m *Metrics) verdict(v models.Verdict) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(string(v)).Inc()
}

func (m *Metrics) transition(s models.TaskStatus) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(string(s)).Inc()
}

func (m *Metrics) escalation(d Decision) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) decomposition(result string) {
	if m == nil {
		return
	}
	m.DecompositionsTotal.WithLabelValues(result).Inc()
}

package planner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rohits-web03/planrelay/internal/models"
)

// Metrics counts orchestrator activity. A nil *Metrics records nothing.
type Metrics struct {
	launches      *prometheus.CounterVec
	uploadedFiles prometheus.Counter
	uploadedBytes prometheus.Counter
	syncs         *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		launches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planrelay",
			Name:      "plan_launches_total",
			Help:      "Plan launch attempts by resulting state.",
		}, []string{"state"}),
		uploadedFiles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "planrelay",
			Name:      "input_files_uploaded_total",
			Help:      "Input files pushed to the Remote Planning API.",
		}),
		uploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "planrelay",
			Name:      "input_bytes_uploaded_total",
			Help:      "Bytes pushed to the Remote Planning API.",
		}),
		syncs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planrelay",
			Name:      "plan_syncs_total",
			Help:      "Plan state refreshes from the Remote Planning API by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) launch(state models.PlanState) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) upload(size int64) {
	if m == nil {
		return
	}
	m.uploadedFiles.Inc()
	m.uploadedBytes.Add(float64(size))
}

func (m *Metrics) sync(result string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(result).Inc()
}

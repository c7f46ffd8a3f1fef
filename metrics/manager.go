// Package metrics exposes arena activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	formcoach "github.com/lucasjlepore/form-analyzer"
)

// Manager holds the formcoach collectors and implements formcoach.Observer.
type Manager struct {
	// counters
	CounterFrames         *prometheus.CounterVec
	CounterFramesDropped  *prometheus.CounterVec
	CounterReps           *prometheus.CounterVec
	CounterSessionsClosed *prometheus.CounterVec

	// gauges
	GaugeActiveSessions prometheus.Gauge

	// histograms
	HistFormScore    *prometheus.HistogramVec
	HistSetFormScore *prometheus.HistogramVec
}

var _ formcoach.Observer = (*Manager)(nil)

// Frame outcome label values.
const (
	OutcomeAnalyzed = "analyzed"
	OutcomeGated    = "gated"
	OutcomeRejected = "rejected"
)

func NewTestManager() *Manager {
	return NewManager("formcoach", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("formcoach", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)
	scoreBuckets := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	return &Manager{
		CounterFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_total",
			Help:      "Frames handled by sessions, by exercise and outcome",
		}, []string{"exercise", "outcome"}),
		CounterFramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because the session was busy",
		}, []string{"exercise"}),
		CounterReps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reps_total",
			Help:      "Completed repetitions",
		}, []string{"exercise"}),
		CounterSessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_closed_total",
			Help:      "Sessions closed",
		}, []string{"exercise"}),
		GaugeActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_sessions",
			Help:      "Sessions currently open in the arena",
		}),
		HistFormScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rep_form_score",
			Help:      "Form score of each completed rep",
			Buckets:   scoreBuckets,
		}, []string{"exercise"}),
		HistSetFormScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "set_form_score",
			Help:      "Average form score of each closed set with reps",
			Buckets:   scoreBuckets,
		}, []string{"exercise"}),
	}
}

func (m *Manager) SessionOpened(ex formcoach.Exercise) {
	m.GaugeActiveSessions.Inc()
}

func (m *Manager) SessionClosed(ex formcoach.Exercise, summary formcoach.Summary) {
	m.GaugeActiveSessions.Dec()
	m.CounterSessionsClosed.WithLabelValues(ex.String()).Inc()
	if summary.TotalReps > 0 {
		m.HistSetFormScore.WithLabelValues(ex.String()).Observe(float64(summary.AverageFormScore))
	}
}

func (m *Manager) FrameAnalyzed(ex formcoach.Exercise, res formcoach.FrameResult) {
	outcome := OutcomeAnalyzed
	switch {
	case !res.Success:
		outcome = OutcomeRejected
	case !res.Analyzed:
		outcome = OutcomeGated
	}
	m.CounterFrames.WithLabelValues(ex.String(), outcome).Inc()

	if res.RepCompleted && res.Form != nil {
		m.CounterReps.WithLabelValues(ex.String()).Inc()
		m.HistFormScore.WithLabelValues(ex.String()).Observe(float64(res.Form.Score))
	}
}

func (m *Manager) FrameDropped(ex formcoach.Exercise) {
	m.CounterFramesDropped.WithLabelValues(ex.String()).Inc()
}

// WriteTextfile dumps every metric of g in the node_exporter textfile format.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}

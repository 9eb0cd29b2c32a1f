package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

// Recorder records prediction lifecycle metrics in Prometheus
type Recorder struct {
	submissions prometheus.Counter
	outcomes    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	stale       prometheus.Counter
}

// NewRecorder registers the prediction metrics with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "equine_oracle_submissions_total",
			Help: "Total number of prediction submissions",
		}),
		outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equine_oracle_outcomes_total",
				Help: "Total number of resolved prediction calls by phase",
			},
			[]string{"phase"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "equine_oracle_prediction_duration_seconds",
				Help:    "Duration of prediction calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "equine_oracle_predictions_in_flight",
			Help: "Number of prediction calls awaiting a response",
		}),
		stale: factory.NewCounter(prometheus.CounterOpts{
			Name: "equine_oracle_stale_resolutions_total",
			Help: "Resolutions dropped because a newer submission was made",
		}),
	}
}

// SubmissionStarted records a dispatched prediction call
func (r *Recorder) SubmissionStarted() {
	r.submissions.Inc()
	r.inFlight.Inc()
}

// SubmissionFinished records a resolved prediction call
func (r *Recorder) SubmissionFinished(phase models.Phase, elapsed time.Duration) {
	r.inFlight.Dec()
	r.outcomes.WithLabelValues(phase.String()).Inc()
	r.latency.WithLabelValues(phase.String()).Observe(elapsed.Seconds())
}

// StaleResolutionDropped records a resolution ignored by the discard_stale policy
func (r *Recorder) StaleResolutionDropped() {
	r.stale.Inc()
}

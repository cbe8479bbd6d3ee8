package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the filing pipeline.
type Metrics struct {
	FilingsRequested   prometheus.Counter
	ValidationFailures prometheus.Counter
	Uploads            *prometheus.CounterVec
	UploadRetries      prometheus.Counter
	Polls              prometheus.Counter
	ResponsesParsed    *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
	PollDuration       prometheus.Histogram
}

// New creates all pipeline metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the metrics on a specific registry. Tests pass a fresh
// registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FilingsRequested: f.NewCounter(prometheus.CounterOpts{
			Name: "refiler_filings_requested_total",
			Help: "Total number of filing requests received",
		}),
		ValidationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "refiler_validation_failures_total",
			Help: "Total number of filing requests rejected at aggregation preflight",
		}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refiler_uploads_total",
			Help: "Total document upload attempts by outcome",
		}, []string{"outcome"}),
		UploadRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "refiler_upload_retries_total",
			Help: "Total upload attempts beyond the first for a submission",
		}),
		Polls: f.NewCounter(prometheus.CounterOpts{
			Name: "refiler_polls_total",
			Help: "Total acknowledgment poll operations",
		}),
		ResponsesParsed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refiler_responses_parsed_total",
			Help: "Total regulator response files parsed by type and outcome",
		}, []string{"type", "outcome"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refiler_status_transitions_total",
			Help: "Total submission status transitions by target status",
		}, []string{"to"}),
		PollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "refiler_poll_duration_seconds",
			Help:    "Duration of a single submission poll including download and parse",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObservePoll records one poll operation and its duration.
func (m *Metrics) ObservePoll(d time.Duration) {
	m.Polls.Inc()
	m.PollDuration.Observe(d.Seconds())
}

// Package metrics holds the Prometheus collectors for tutoring turns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Turn stages timed by StageDuration.
const (
	StageTranscribe = "transcribe"
	StageReply      = "reply"
	StageSynthesize = "synthesize"
)

// Collector records turn-level metrics.
type Collector struct {
	turnsTotal         *prometheus.CounterVec
	exchangesRecorded  *prometheus.CounterVec
	completionFailures prometheus.Counter
	stageDuration      *prometheus.HistogramVec
	activeSessions     prometheus.Gauge
}

// NewCollector registers the tutor collectors on reg. A nil reg leaves them
// unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tutor",
				Name:      "turns_total",
				Help:      "Voice turns handled, by outcome",
			},
			[]string{"outcome"},
		),
		exchangesRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tutor",
				Name:      "exchanges_recorded_total",
				Help:      "Exchanges written to history, by result",
			},
			[]string{"result"},
		),
		completionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "completion_failures_total",
			Help:      "Completion calls that ended in a sentinel reply",
		}),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tutor",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each turn stage in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"stage"},
		),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tutor",
			Name:      "active_sessions",
			Help:      "Open voice sessions",
		}),
	}
}

func (c *Collector) RecordTurn(outcome string) {
	c.turnsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordExchange(result string) {
	c.exchangesRecorded.WithLabelValues(result).Inc()
}

func (c *Collector) RecordCompletionFailure() {
	c.completionFailures.Inc()
}

func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) SessionOpened() {
	c.activeSessions.Inc()
}

func (c *Collector) SessionClosed() {
	c.activeSessions.Dec()
}

// Package metrics exposes Prometheus collectors for the generation and publish pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is implemented by Prometheus collectors and by Nop for tests.
type Recorder interface {
	// GenerationAttempt counts one remote text call by outcome:
	// ok, short, invalid_json, missing_fields, error.
	GenerationAttempt(outcome string)
	// Topic counts finished topics by result: success, partial, error.
	Topic(result string)
	// Image counts cover image stage outcomes: uploaded, image_failed, upload_failed, disabled.
	Image(outcome string)
	// Stage observes the duration of one pipeline stage.
	Stage(stage string, d time.Duration)
	// Sync counts webhook sync triggers by status: success, error, skipped, ignored, rejected.
	Sync(status string)
}

// Prometheus implements Recorder.
type Prometheus struct {
	attempts *prometheus.CounterVec
	topics   *prometheus.CounterVec
	images   *prometheus.CounterVec
	stages   *prometheus.HistogramVec
	syncs    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) (*Prometheus, error) {
	m := &Prometheus{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "publisher",
			Name:      "generation_attempts_total",
			Help:      "Text generation calls by outcome.",
		}, []string{"outcome"}),
		topics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "publisher",
			Name:      "topics_total",
			Help:      "Processed topics by result.",
		}, []string{"result"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "publisher",
			Name:      "cover_images_total",
			Help:      "Cover image stage outcomes.",
		}, []string{"outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "publisher",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webhook",
			Name:      "sync_total",
			Help:      "Repository sync triggers by status.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{m.attempts, m.topics, m.images, m.stages, m.syncs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Prometheus) GenerationAttempt(outcome string) {
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) Topic(result string) {
	m.topics.WithLabelValues(result).Inc()
}

func (m *Prometheus) Image(outcome string) {
	m.images.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) Stage(stage string, d time.Duration) {
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Prometheus) Sync(status string) {
	m.syncs.WithLabelValues(status).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) GenerationAttempt(string)    {}
func (Nop) Topic(string)                {}
func (Nop) Image(string)                {}
func (Nop) Stage(string, time.Duration) {}
func (Nop) Sync(string)                 {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Package metrics exposes Prometheus instrumentation for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the bot process.
type Metrics struct {
	UpdatesTotal *prometheus.CounterVec

	TranscriptionsTotal    *prometheus.CounterVec
	TranscriptionDuration  prometheus.Histogram
	TranscriptionPollCount prometheus.Histogram

	CompletionsTotal *prometheus.CounterVec

	LicenseChecksTotal *prometheus.CounterVec
}

// New registers all collectors on the given registerer. Tests pass a
// fresh prometheus.NewRegistry() to avoid cross-test collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Inbound updates by kind (command, media, text, callback, state)",
		}, []string{"kind"}),

		TranscriptionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_transcriptions_total",
			Help: "Transcription pipeline runs by outcome",
		}, []string{"outcome"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_transcription_duration_seconds",
			Help:    "End-to-end transcription pipeline duration",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		TranscriptionPollCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_transcription_poll_attempts",
			Help:    "Status poll attempts per recognition operation",
			Buckets: prometheus.LinearBuckets(1, 1, 5),
		}),

		CompletionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_completions_total",
			Help: "LLM completion requests by outcome",
		}, []string{"outcome"}),

		LicenseChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_license_checks_total",
			Help: "License/auth checks by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordUpdate(kind string) {
	m.UpdatesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordTranscription(outcome string, durationSeconds float64) {
	m.TranscriptionsTotal.WithLabelValues(outcome).Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordPollAttempts(attempts int) {
	m.TranscriptionPollCount.Observe(float64(attempts))
}

func (m *Metrics) RecordCompletion(outcome string) {
	m.CompletionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLicenseCheck(outcome string) {
	m.LicenseChecksTotal.WithLabelValues(outcome).Inc()
}

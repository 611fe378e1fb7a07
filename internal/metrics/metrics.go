// Package metrics provides Prometheus metrics for the translation session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voicebridge"

// Metrics holds all Prometheus metrics for the app. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsListening prometheus.Gauge
	RecognizerErrors  *prometheus.CounterVec

	// Fragment metrics
	Fragments *prometheus.CounterVec

	// Utterance metrics
	UtterancesSettled prometheus.Counter
	UtterancesDropped *prometheus.CounterVec

	// Translation metrics
	TranslationsDispatched prometheus.Counter
	TranslationsFailed     prometheus.Counter
	TranslationsStale      prometheus.Counter
	TranslationLatency     prometheus.Histogram

	// Transcript metrics
	TranscriptEntries prometheus.Gauge
	TranscriptExports prometheus.Counter
	PublishErrors     prometheus.Counter

	// Kafka metrics
	KafkaPublishes      *prometheus.CounterVec
	KafkaPublishLatency prometheus.Histogram
}

// NewMetrics creates all metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of listening sessions started",
		}),
		SessionsListening: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_listening",
			Help:      "1 while the controller is listening",
		}),
		RecognizerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_errors_total",
			Help:      "Total number of recognizer errors by kind",
		}, []string{"kind"}),

		Fragments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Total number of recognition fragments received",
		}, []string{"kind"}),

		UtterancesSettled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_settled_total",
			Help:      "Total number of settled utterances dispatched for translation",
		}),
		UtterancesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_dropped_total",
			Help:      "Total number of settled utterances never dispatched",
		}, []string{"reason"}),

		TranslationsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_dispatched_total",
			Help:      "Total number of translator calls",
		}),
		TranslationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_failed_total",
			Help:      "Total number of translator calls that failed",
		}),
		TranslationsStale: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_stale_total",
			Help:      "Total number of translation results discarded after a direction change",
		}),
		TranslationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_latency_seconds",
			Help:      "Translator call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		TranscriptEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcript_entries",
			Help:      "Number of sentences in the transcript log",
		}),
		TranscriptExports: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_exports_total",
			Help:      "Total number of transcript exports",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_publish_errors_total",
			Help:      "Total number of transcript sink publish errors",
		}),

		KafkaPublishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publishes_total",
			Help:      "Total number of transcript events written to Kafka",
		}, []string{"topic", "status"}),
		KafkaPublishLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka write latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordSessionStart records the controller entering Listening.
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.SessionsListening.Set(1)
}

// RecordSessionIdle records the controller leaving Listening.
func (m *Metrics) RecordSessionIdle() {
	if m == nil {
		return
	}
	m.SessionsListening.Set(0)
}

// RecordRecognizerError records a recognizer error by kind.
func (m *Metrics) RecordRecognizerError(kind string) {
	if m == nil {
		return
	}
	m.RecognizerErrors.WithLabelValues(kind).Inc()
}

// RecordFragment records one recognition fragment.
func (m *Metrics) RecordFragment(final bool) {
	if m == nil {
		return
	}
	kind := "interim"
	if final {
		kind = "final"
	}
	m.Fragments.WithLabelValues(kind).Inc()
}

// RecordSettled records an utterance leaving the buffer for translation.
func (m *Metrics) RecordSettled() {
	if m == nil {
		return
	}
	m.UtterancesSettled.Inc()
}

// RecordDropped records an utterance that was never dispatched.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.UtterancesDropped.WithLabelValues(reason).Inc()
}

// RecordTranslation records a completed translator call.
func (m *Metrics) RecordTranslation(failed bool, latencySeconds float64) {
	if m == nil {
		return
	}
	m.TranslationsDispatched.Inc()
	m.TranslationLatency.Observe(latencySeconds)
	if failed {
		m.TranslationsFailed.Inc()
	}
}

// RecordStale records a translation result discarded after a toggle.
func (m *Metrics) RecordStale() {
	if m == nil {
		return
	}
	m.TranslationsStale.Inc()
}

// RecordTranscriptSize records the transcript log length.
func (m *Metrics) RecordTranscriptSize(entries int) {
	if m == nil {
		return
	}
	m.TranscriptEntries.Set(float64(entries))
}

// RecordExport records a transcript export.
func (m *Metrics) RecordExport() {
	if m == nil {
		return
	}
	m.TranscriptExports.Inc()
}

// RecordPublishError records a failed transcript sink publish.
func (m *Metrics) RecordPublishError() {
	if m == nil {
		return
	}
	m.PublishErrors.Inc()
}

// RecordKafkaPublish records one transcript event write.
func (m *Metrics) RecordKafkaPublish(topic string, err error, latencySeconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.KafkaPublishes.WithLabelValues(topic, status).Inc()
	m.KafkaPublishLatency.Observe(latencySeconds)
}

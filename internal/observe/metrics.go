// Package observe provides application-wide observability for Kira:
// OpenTelemetry metrics with a Prometheus exporter bridge, tracing helpers,
// and trace-aware structured logging.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a private
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all Kira metrics.
const meterName = "github.com/mumeinosato/kira-ai"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM generation latency (first token to last).
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end latency from utterance end to the
	// first audio chunk of the reply.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// ChatMessages counts incoming chat messages.
	ChatMessages metric.Int64Counter

	// EmotionTransitions counts emotion changes. Attributes: from, to.
	EmotionTransitions metric.Int64Counter

	// MemoryWrites counts long-term memory writes. Attribute: kind.
	MemoryWrites metric.Int64Counter

	// --- Gauges ---

	// ChatBuffered tracks how many unseen chat messages are waiting.
	ChatBuffered metric.Int64UpDownCounter
}

// latencyBuckets defines histogram boundaries (seconds) sized for a voice
// pipeline: STT and TTS land well under a second, a full turn on a local
// model can take several.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("kira.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("kira.llm.duration",
		metric.WithDescription("Latency of LLM generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("kira.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("kira.turn.duration",
		metric.WithDescription("End-to-end latency of a conversation turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("kira.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("kira.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ChatMessages, err = m.Int64Counter("kira.chat.messages",
		metric.WithDescription("Total chat messages received."),
	); err != nil {
		return nil, err
	}
	if met.EmotionTransitions, err = m.Int64Counter("kira.emotion.transitions",
		metric.WithDescription("Total emotion changes by from and to."),
	); err != nil {
		return nil, err
	}
	if met.MemoryWrites, err = m.Int64Counter("kira.memory.writes",
		metric.WithDescription("Total long-term memory writes by kind."),
	); err != nil {
		return nil, err
	}

	if met.ChatBuffered, err = m.Int64UpDownCounter("kira.chat.buffered",
		metric.WithDescription("Unseen chat messages waiting for the next turn."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], creating it on first
// call from the global meter provider. Panics if instrument creation fails,
// which cannot happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest increments the request counter with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordProviderError increments the error counter with the standard
// attribute set.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordEmotionTransition increments the emotion transition counter.
func (m *Metrics) RecordEmotionTransition(ctx context.Context, from, to string) {
	m.EmotionTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordMemoryWrite increments the memory write counter for a record kind.
func (m *Metrics) RecordMemoryWrite(ctx context.Context, kind string) {
	m.MemoryWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "digital-clone/frontend"

// Outcome labels used on every counter
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics records chat front-end events
type Metrics struct {
	sends           metric.Int64Counter
	initializations metric.Int64Counter
	speech          metric.Int64Counter
	audioURLs       metric.Int64UpDownCounter
	apiCalls        metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.GetMeterProvider())
}

// NewMetricsFrom creates the instruments on mp
func NewMetricsFrom(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.sends, err = meter.Int64Counter("chat_sends_total",
		metric.WithDescription("Chat sends by outcome")); err != nil {
		return nil, err
	}
	if m.initializations, err = meter.Int64Counter("chat_initializations_total",
		metric.WithDescription("Chat view initializations by outcome")); err != nil {
		return nil, err
	}
	if m.speech, err = meter.Int64Counter("speech_requests_total",
		metric.WithDescription("Text-to-speech playback requests by outcome")); err != nil {
		return nil, err
	}
	if m.audioURLs, err = meter.Int64UpDownCounter("audio_urls_active",
		metric.WithDescription("Audio URLs currently servable")); err != nil {
		return nil, err
	}
	if m.apiCalls, err = meter.Float64Histogram("backend_call_duration_seconds",
		metric.WithDescription("Backend call latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return m, nil
}

func outcome(err error) metric.MeasurementOption {
	if err != nil {
		return metric.WithAttributes(attribute.String("outcome", OutcomeFailure))
	}
	return metric.WithAttributes(attribute.String("outcome", OutcomeSuccess))
}

// RecordSend counts one completed send
func (m *Metrics) RecordSend(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.sends.Add(ctx, 1, outcome(err))
}

// RecordInitialization counts one chat view initialization
func (m *Metrics) RecordInitialization(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.initializations.Add(ctx, 1, outcome(err))
}

// RecordSpeech counts one playback request
func (m *Metrics) RecordSpeech(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.speech.Add(ctx, 1, outcome(err))
}

// AudioURLDelta tracks registered and revoked audio URLs
func (m *Metrics) AudioURLDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.audioURLs.Add(ctx, delta)
}

// RecordAPICall records the latency of one backend call
func (m *Metrics) RecordAPICall(ctx context.Context, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.apiCalls.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("error", err != nil),
	))
}

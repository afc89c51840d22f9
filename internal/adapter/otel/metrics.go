package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sentinel"

// Metrics holds all Sentinel metric instruments.
type Metrics struct {
	Checks             metric.Int64Counter
	Denials            metric.Int64Counter
	Advisories         metric.Int64Counter
	Overrides          metric.Int64Counter
	PatternDetections  metric.Int64Counter
	PatternTransitions metric.Int64Counter
	CheckDuration      metric.Float64Histogram
	Confidence         metric.Int64Histogram
	Risk               metric.Int64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Checks, err = meter.Int64Counter("sentinel.gate.checks",
		metric.WithDescription("Number of gate checks evaluated"))
	if err != nil {
		return nil, err
	}

	m.Denials, err = meter.Int64Counter("sentinel.gate.denials",
		metric.WithDescription("Number of denied actions"))
	if err != nil {
		return nil, err
	}

	m.Advisories, err = meter.Int64Counter("sentinel.gate.advisories",
		metric.WithDescription("Number of advisory (allow-with-warning) verdicts"))
	if err != nil {
		return nil, err
	}

	m.Overrides, err = meter.Int64Counter("sentinel.gate.overrides",
		metric.WithDescription("Number of override-based allows"))
	if err != nil {
		return nil, err
	}

	m.PatternDetections, err = meter.Int64Counter("sentinel.patterns.detections",
		metric.WithDescription("Number of pattern detections recorded"))
	if err != nil {
		return nil, err
	}

	m.PatternTransitions, err = meter.Int64Counter("sentinel.patterns.transitions",
		metric.WithDescription("Number of pattern phase transitions"))
	if err != nil {
		return nil, err
	}

	m.CheckDuration, err = meter.Float64Histogram("sentinel.gate.check_duration_seconds",
		metric.WithDescription("Gate check latency in seconds"))
	if err != nil {
		return nil, err
	}

	m.Confidence, err = meter.Int64Histogram("sentinel.session.confidence",
		metric.WithDescription("Session confidence score at check time"))
	if err != nil {
		return nil, err
	}

	m.Risk, err = meter.Int64Histogram("sentinel.session.risk",
		metric.WithDescription("Session risk score at check time"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

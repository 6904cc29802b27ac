package callback

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments callback processing. All methods are safe on a Metrics
// built from a nil meter.
type Metrics struct {
	receivedTotal       metric.Int64Counter
	acceptedTotal       metric.Int64Counter
	rejectedTotal       metric.Int64Counter
	processingHistogram metric.Float64Histogram
}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() *Metrics {
	return &Metrics{}
}

// NewMetrics initializes callback metrics on the provided meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return NoopMetrics(), nil
	}
	m := &Metrics{}
	var err error
	if m.receivedTotal, err = meter.Int64Counter(
		"callback_received_total",
		metric.WithDescription("Total workflow callbacks received"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create callback received counter: %w", err)
	}
	if m.acceptedTotal, err = meter.Int64Counter(
		"callback_accepted_total",
		metric.WithDescription("Total workflow callbacks accepted and dispatched"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create callback accepted counter: %w", err)
	}
	if m.rejectedTotal, err = meter.Int64Counter(
		"callback_rejected_total",
		metric.WithDescription("Total workflow callbacks rejected by HTTP status"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create callback rejected counter: %w", err)
	}
	if m.processingHistogram, err = meter.Float64Histogram(
		"callback_processing_duration_seconds",
		metric.WithDescription("Callback processing duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5),
	); err != nil {
		return nil, fmt.Errorf("failed to create callback processing histogram: %w", err)
	}
	return m, nil
}

func (m *Metrics) OnReceived(ctx context.Context) {
	if m.receivedTotal != nil {
		m.receivedTotal.Add(ctx, 1)
	}
}

func (m *Metrics) OnAccepted(ctx context.Context, d time.Duration) {
	if m.acceptedTotal != nil {
		m.acceptedTotal.Add(ctx, 1)
	}
	m.observe(ctx, d, "success")
}

func (m *Metrics) OnRejected(ctx context.Context, status int, d time.Duration) {
	if m.rejectedTotal != nil {
		m.rejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", strconv.Itoa(status))))
	}
	m.observe(ctx, d, "error")
}

func (m *Metrics) observe(ctx context.Context, d time.Duration, outcome string) {
	if m.processingHistogram != nil {
		m.processingHistogram.Record(ctx, d.Seconds(),
			metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

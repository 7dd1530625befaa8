// Package metrics owns the OpenTelemetry counters the dispatch path emits.
// Emission is fire-and-forget: a metrics failure never fails the operation
// that reported it.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the dispatch instruments. Construct once at startup and
// share; the instruments are safe for concurrent use.
type Metrics struct {
	sent        metric.Int64Counter
	sentData    metric.Int64Counter
	bridgeError metric.Int64Counter
}

// New creates the dispatch instruments on the given meter.
func New(meter metric.Meter) (*Metrics, error) {
	sent, err := meter.Int64Counter("notification.bridge.sent",
		metric.WithDescription("notifications accepted by a relay"))
	if err != nil {
		return nil, err
	}
	sentData, err := meter.Int64Counter("notification.message_data",
		metric.WithDescription("payload bytes accepted by a relay"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	bridgeError, err := meter.Int64Counter("notification.bridge.error",
		metric.WithDescription("notifications rejected by a relay or the dispatch path"))
	if err != nil {
		return nil, err
	}
	return &Metrics{sent: sent, sentData: sentData, bridgeError: bridgeError}, nil
}

// NewNop returns a Metrics backed by the noop meter, for tests.
func NewNop() *Metrics {
	m, _ := New(noop.NewMeterProvider().Meter("autoendpoint"))
	return m
}

// IncrSent counts one accepted notification, with dataSize payload bytes.
func (m *Metrics) IncrSent(ctx context.Context, platform, appID string, dataSize int) {
	attrs := metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("app_id", appID),
	)
	m.sent.Add(ctx, 1, attrs)
	if dataSize > 0 {
		m.sentData.Add(ctx, int64(dataSize), attrs)
	}
}

// IncrError counts one dispatch failure tagged by its unified reason.
// authenticated marks sends that carried verified VAPID claims.
func (m *Metrics) IncrError(ctx context.Context, platform, appID, reason string, authenticated bool) {
	m.bridgeError.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("app_id", appID),
		attribute.String("reason", reason),
		attribute.Bool("authenticated", authenticated),
	))
}

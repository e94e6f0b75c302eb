package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderMetrics holds the order pipeline instruments. The zero value and a nil pointer
// are usable and record nothing.
type OrderMetrics struct {
	created     metric.Int64Counter
	transitions metric.Int64Counter
	degraded    metric.Int64Counter
	lookup      metric.Float64Histogram
}

// NewOrderMetrics registers the instruments on meter, or on the global meter provider.
func NewOrderMetrics(meter metric.Meter) (*OrderMetrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentation)
	}
	m := &OrderMetrics{}
	var err error
	if m.created, err = meter.Int64Counter("orders.created", metric.WithDescription("Orders placed")); err != nil {
		return nil, err
	}
	if m.transitions, err = meter.Int64Counter("orders.status_transitions", metric.WithDescription("Order status transitions by target status")); err != nil {
		return nil, err
	}
	if m.degraded, err = meter.Int64Counter("logistics.degraded_lookups", metric.WithDescription("Distance lookups that fell back to zero distance")); err != nil {
		return nil, err
	}
	if m.lookup, err = meter.Float64Histogram("logistics.distance_lookup.duration", metric.WithUnit("ms"), metric.WithDescription("Distance provider latency")); err != nil {
		return nil, err
	}
	return m, nil
}

// OrderCreated counts a placed order.
func (m *OrderMetrics) OrderCreated(ctx context.Context, itemCount int) {
	if m == nil || m.created == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.Bool("bulk", itemCount > 10)))
}

// StatusChanged counts a transition into status.
func (m *OrderMetrics) StatusChanged(ctx context.Context, status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// DistanceLookup records the latency of one provider call and whether it degraded.
func (m *OrderMetrics) DistanceLookup(ctx context.Context, elapsed time.Duration, degraded bool, reason string) {
	if m == nil {
		return
	}
	if m.lookup != nil {
		m.lookup.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(attribute.Bool("degraded", degraded)))
	}
	if degraded && m.degraded != nil {
		m.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

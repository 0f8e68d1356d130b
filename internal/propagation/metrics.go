package propagation

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("ecotwin.propagation")
	meter  = otel.Meter("ecotwin.propagation")
)

var (
	simulateLatency metric.Float64Histogram
	simulateTotal   metric.Int64Counter
	nodesVisited    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		simulateLatency, err = meter.Float64Histogram(
			"propagation_simulate_duration_seconds",
			metric.WithDescription("Duration of impact propagation calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		simulateTotal, err = meter.Int64Counter(
			"propagation_simulate_total",
			metric.WithDescription("Total number of impact propagation calls"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesVisited, err = meter.Int64Histogram(
			"propagation_nodes_visited",
			metric.WithDescription("Nodes reached per propagation call"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startSimulateSpan(ctx context.Context, startID string, delta float64, cfg Config) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Simulate",
		trace.WithAttributes(
			attribute.String("propagation.start", startID),
			attribute.Float64("propagation.delta", delta),
			attribute.Int("propagation.max_depth", cfg.MaxDepth),
			attribute.Float64("propagation.magnitude_floor", cfg.MagnitudeFloor),
		),
	)
}

func setSimulateSpanResult(span trace.Span, visited, impacts int, err error) {
	span.SetAttributes(
		attribute.Int("propagation.visited", visited),
		attribute.Int("propagation.impacts", impacts),
		attribute.Bool("propagation.success", err == nil),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func recordSimulateMetrics(ctx context.Context, duration time.Duration, visited int, err error) {
	if initMetrics() != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	simulateLatency.Record(ctx, duration.Seconds(), attrs)
	simulateTotal.Add(ctx, 1, attrs)
	nodesVisited.Record(ctx, int64(visited))
}

package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineTelemetry holds the instruments for the reservation engine
// itself: stock additions, transitions by outcome, and the consistency
// violation alert counter.
type EngineTelemetry struct {
	meter metric.Meter

	stockAdditionCounter   metric.Int64Counter
	stockUnitsCounter      metric.Int64Counter
	transitionCounter      metric.Int64Counter
	insufficientCounter    metric.Int64Counter
	consistencyViolCounter metric.Int64Counter
}

func NewEngineTelemetry() *EngineTelemetry {
	return &EngineTelemetry{}
}

// InitializeTelemetry sets up all engine instruments against the global
// meter provider.
func (t *EngineTelemetry) InitializeTelemetry(ctx context.Context) error {
	t.meter = otel.Meter("stock-reservation-engine")

	var err error

	t.stockAdditionCounter, err = t.meter.Int64Counter(
		"stock_additions_total",
		metric.WithDescription("Total number of stock addition events appended to the ledger"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stock addition counter: %w", err)
	}

	t.stockUnitsCounter, err = t.meter.Int64Counter(
		"stock_units_added_total",
		metric.WithDescription("Total units of stock added across all catalog items"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stock units counter: %w", err)
	}

	t.transitionCounter, err = t.meter.Int64Counter(
		"item_transitions_total",
		metric.WithDescription("Total order item status transition attempts by target and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create transition counter: %w", err)
	}

	t.insufficientCounter, err = t.meter.Int64Counter(
		"insufficient_stock_rejections_total",
		metric.WithDescription("Confirm attempts rejected because stock could not cover the reservation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create insufficient stock counter: %w", err)
	}

	t.consistencyViolCounter, err = t.meter.Int64Counter(
		"reservation_consistency_violations_total",
		metric.WithDescription("Availability reads that observed a negative available quantity"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create consistency violation counter: %w", err)
	}

	slog.Info("Engine telemetry initialized")
	return nil
}

// RecordStockAddition records one appended stock event of the given size.
func (t *EngineTelemetry) RecordStockAddition(ctx context.Context, quantity int) {
	if t == nil || t.stockAdditionCounter == nil {
		return
	}
	t.stockAdditionCounter.Add(ctx, 1)
	t.stockUnitsCounter.Add(ctx, int64(quantity))
}

// RecordTransition records one transition attempt. outcome is "applied"
// or the engine's low-cardinality error type label.
func (t *EngineTelemetry) RecordTransition(ctx context.Context, target string, outcome string) {
	if t == nil || t.transitionCounter == nil {
		return
	}
	t.transitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target_status", target),
		attribute.String("outcome", outcome),
	))
}

// RecordInsufficientStock counts a rejected Confirm attempt.
func (t *EngineTelemetry) RecordInsufficientStock(ctx context.Context) {
	if t == nil || t.insufficientCounter == nil {
		return
	}
	t.insufficientCounter.Add(ctx, 1)
}

// RecordConsistencyViolation counts an oversold observation. Item ID is
// logged, not attached as an attribute, to keep cardinality low.
func (t *EngineTelemetry) RecordConsistencyViolation(ctx context.Context, itemID string, available int) {
	if t == nil || t.consistencyViolCounter == nil {
		return
	}
	t.consistencyViolCounter.Add(ctx, 1)
	slog.Warn("Recorded consistency violation",
		"item_id", itemID,
		"available", available)
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"stock-reservation-engine/internal/models"
	"stock-reservation-engine/internal/store"
)

// ConsistencyReporter receives invariant-breach signals. A negative raw
// availability means stock was oversold by a prior race or manual
// override; it is an operational alert, not a caller-facing error.
type ConsistencyReporter interface {
	RecordConsistencyViolation(ctx context.Context, itemID string, available int)
}

// AvailabilityCalculator combines ledger totals and reservation sums
// into an available-to-sell quantity per catalog item.
type AvailabilityCalculator struct {
	ledger       store.StockLedger
	reservations *ReservationIndex
	reporter     ConsistencyReporter
}

// NewAvailabilityCalculator creates the calculator. reporter may be nil.
func NewAvailabilityCalculator(ledger store.StockLedger, reservations *ReservationIndex, reporter ConsistencyReporter) *AvailabilityCalculator {
	return &AvailabilityCalculator{
		ledger:       ledger,
		reservations: reservations,
		reporter:     reporter,
	}
}

// Report computes the item's availability. The raw Available value is
// returned as computed; when negative it is reported as a consistency
// violation and only AvailableDisplay is floored at zero.
func (c *AvailabilityCalculator) Report(ctx context.Context, itemID string) (models.AvailabilityReport, error) {
	total, err := c.ledger.TotalStock(ctx, itemID)
	if err != nil {
		return models.AvailabilityReport{}, fmt.Errorf("reading total stock for %s: %w", itemID, err)
	}

	snap := c.reservations.Snapshot(itemID)
	available := total - snap.ConfirmedQty - snap.PendingQty

	report := models.AvailabilityReport{
		ItemID:           itemID,
		TotalStock:       total,
		ConfirmedQty:     snap.ConfirmedQty,
		PendingQty:       snap.PendingQty,
		Available:        available,
		AvailableDisplay: available,
	}
	if report.AvailableDisplay < 0 {
		report.AvailableDisplay = 0
	}

	if available < 0 {
		slog.Error("Consistency violation: oversold stock",
			"item_id", itemID,
			"total_stock", total,
			"confirmed", snap.ConfirmedQty,
			"pending", snap.PendingQty,
			"available", available)
		if c.reporter != nil {
			c.reporter.RecordConsistencyViolation(ctx, itemID, available)
		}
	}

	return report, nil
}

// ConfirmHeadroom returns how many units the item could claim on
// Confirm: total stock minus confirmed reservations minus the pending
// reservations of other line items. The item's own pending contribution
// is excluded so confirming never double-counts it.
func (c *AvailabilityCalculator) ConfirmHeadroom(ctx context.Context, item models.OrderItem) (int, error) {
	total, err := c.ledger.TotalStock(ctx, item.ItemID)
	if err != nil {
		return 0, fmt.Errorf("reading total stock for %s: %w", item.ItemID, err)
	}

	snap := c.reservations.Snapshot(item.ItemID)
	pendingOthers := snap.PendingQty - item.Quantity
	if pendingOthers < 0 {
		// The index should always contain the item's own pending
		// quantity; clamp rather than inflate the headroom.
		pendingOthers = 0
	}

	return total - snap.ConfirmedQty - pendingOthers, nil
}

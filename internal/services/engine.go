package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"stock-reservation-engine/internal/models"
	"stock-reservation-engine/internal/store"
	"stock-reservation-engine/internal/telemetry"
)

// Engine is the inventory reservation and order fulfillment core. All
// state that matters for correctness flows through the per-item critical
// section: the availability check, the status write and the reservation
// index update happen under one item lock, so concurrent confirm
// attempts against the same catalog item are linearized while disjoint
// items proceed in parallel.
type Engine struct {
	ledger       store.StockLedger
	orders       store.OrderStore
	reservations *ReservationIndex
	availability *AvailabilityCalculator
	stateMachine *StateMachine
	locks        *ItemLockManager
	idempotency  store.IdempotencyStore
	telemetry    *telemetry.EngineTelemetry
}

// NewEngine wires the engine and rebuilds the reservation index from the
// order store. idempotency and tel may be nil.
func NewEngine(ctx context.Context, ledger store.StockLedger, orders store.OrderStore, idempotency store.IdempotencyStore, tel *telemetry.EngineTelemetry) (*Engine, error) {
	reservations := NewReservationIndex(orders)
	if err := reservations.Rebuild(ctx); err != nil {
		return nil, err
	}

	var reporter ConsistencyReporter
	if tel != nil {
		reporter = tel
	}
	availability := NewAvailabilityCalculator(ledger, reservations, reporter)

	return &Engine{
		ledger:       ledger,
		orders:       orders,
		reservations: reservations,
		availability: availability,
		stateMachine: NewStateMachine(availability),
		locks:        NewItemLockManager(),
		idempotency:  idempotency,
		telemetry:    tel,
	}, nil
}

// AddStock appends a stock event for the item. Quantity must be
// positive; corrections are compensating future additions, never
// negative events. A repeated idempotency key fails with
// ErrDuplicateRequest instead of appending twice.
func (e *Engine) AddStock(ctx context.Context, itemID string, quantity int, idempotencyKey string) (models.StockEvent, error) {
	if quantity <= 0 {
		return models.StockEvent{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	claimed := false
	if idempotencyKey != "" && e.idempotency != nil {
		first, err := e.idempotency.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return models.StockEvent{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !first {
			return models.StockEvent{}, fmt.Errorf("%w: key %s", ErrDuplicateRequest, idempotencyKey)
		}
		claimed = true
	}

	var event models.StockEvent
	err := e.locks.WithItemLock(itemID, func() error {
		var appendErr error
		event, appendErr = e.ledger.Append(ctx, itemID, quantity)
		return appendErr
	})
	if err != nil {
		// The request never took effect, so the key must stay usable
		// for a retry.
		if claimed {
			if releaseErr := e.idempotency.ReleaseIdempotency(ctx, idempotencyKey); releaseErr != nil {
				slog.Error("Failed to release idempotency key",
					"key", idempotencyKey,
					"error", releaseErr)
			}
		}
		return models.StockEvent{}, err
	}

	e.telemetry.RecordStockAddition(ctx, quantity)

	slog.Info("Stock added",
		"item_id", itemID,
		"quantity", quantity,
		"event_id", event.ID)

	return event, nil
}

// GetAvailability returns the item's availability report, computed under
// the item's shared lock so it never observes a transition in flight.
func (e *Engine) GetAvailability(ctx context.Context, itemID string) (models.AvailabilityReport, error) {
	var report models.AvailabilityReport
	err := e.locks.WithItemRLock(itemID, func() error {
		var reportErr error
		report, reportErr = e.availability.Report(ctx, itemID)
		return reportErr
	})
	return report, err
}

// ListAvailability returns reports for the requested items, or for every
// item known to the ledger or the reservation index when itemIDs is
// empty. The bulk form backs list views.
func (e *Engine) ListAvailability(ctx context.Context, itemIDs []string) (map[string]models.AvailabilityReport, error) {
	if len(itemIDs) == 0 {
		ledgerIDs, err := e.ledger.ItemIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing ledger items: %w", err)
		}
		seen := make(map[string]struct{}, len(ledgerIDs))
		for _, id := range ledgerIDs {
			seen[id] = struct{}{}
		}
		for _, id := range e.reservations.ItemIDs() {
			seen[id] = struct{}{}
		}
		itemIDs = make([]string, 0, len(seen))
		for id := range seen {
			itemIDs = append(itemIDs, id)
		}
		sort.Strings(itemIDs)
	}

	reports := make(map[string]models.AvailabilityReport, len(itemIDs))
	for _, id := range itemIDs {
		report, err := e.GetAvailability(ctx, id)
		if err != nil {
			return nil, err
		}
		reports[id] = report
	}
	return reports, nil
}

// StockEvents returns the item's audit trail of stock additions.
func (e *Engine) StockEvents(ctx context.Context, itemID string) ([]models.StockEvent, error) {
	return e.ledger.EventsForItem(ctx, itemID)
}

// ReservationsForItem returns every order line item referencing the
// catalog item, including cancelled ones. Backs the stock detail view
// that shows which orders hold the item's reservation.
func (e *Engine) ReservationsForItem(ctx context.Context, itemID string) ([]models.OrderItem, error) {
	return e.orders.ListOrderItemsByCatalogItem(ctx, itemID)
}

// TransitionItem applies one status transition. The state machine check
// and the mutation run under the catalog item's exclusive lock; on any
// failure the item's status is left untouched.
func (e *Engine) TransitionItem(ctx context.Context, orderItemID string, target models.ItemStatus) error {
	err := e.transitionItem(ctx, orderItemID, target)

	outcome := "applied"
	if err != nil {
		outcome = ErrorTypeOf(err)
	}
	e.telemetry.RecordTransition(ctx, string(target), outcome)
	if errors.Is(err, ErrInsufficientStock) {
		e.telemetry.RecordInsufficientStock(ctx)
	}

	return err
}

func (e *Engine) transitionItem(ctx context.Context, orderItemID string, target models.ItemStatus) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: unknown target status %q", ErrIllegalTransition, target)
	}

	// The catalog item reference is immutable, so it is safe to read it
	// before taking the lock; the status is re-read inside.
	item, err := e.orders.GetOrderItem(ctx, orderItemID)
	if err != nil {
		return err
	}

	return e.locks.WithItemLock(item.ItemID, func() error {
		current, err := e.orders.GetOrderItem(ctx, orderItemID)
		if err != nil {
			return err
		}

		if err := e.stateMachine.Validate(ctx, current, target); err != nil {
			slog.Warn("Transition rejected",
				"order_item_id", orderItemID,
				"item_id", current.ItemID,
				"from", current.Status,
				"to", target,
				"error", err)
			return err
		}

		if err := e.orders.UpdateItemStatus(ctx, orderItemID, target); err != nil {
			return err
		}
		e.reservations.ApplyTransition(current.ItemID, current.Quantity, current.Status, target)

		slog.Info("Transition applied",
			"order_item_id", orderItemID,
			"item_id", current.ItemID,
			"from", current.Status,
			"to", target)
		return nil
	})
}

// TransitionBatch applies the submitted pairs in order. Each pair runs
// independently through the guarded single-item path; a failing pair is
// recorded and never aborts its siblings, so the caller can confirm what
// stock allows and flag the rest for follow-up.
func (e *Engine) TransitionBatch(ctx context.Context, pairs []models.TransitionPair) []models.TransitionOutcome {
	outcomes := make([]models.TransitionOutcome, 0, len(pairs))

	for _, pair := range pairs {
		outcome := models.TransitionOutcome{
			OrderItemID:  pair.OrderItemID,
			TargetStatus: pair.TargetStatus,
		}

		if err := e.TransitionItem(ctx, pair.OrderItemID, pair.TargetStatus); err != nil {
			outcome.ErrorType = ErrorTypeOf(err)
			outcome.ErrorMessage = err.Error()
		} else {
			outcome.Applied = true
		}

		outcomes = append(outcomes, outcome)
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Applied {
			succeeded++
		}
	}
	slog.Info("Batch transition completed",
		"total", len(pairs),
		"succeeded", succeeded,
		"failed", len(pairs)-succeeded)

	return outcomes
}

// CreateOrder ingests a checkout-produced order. Missing identifiers are
// assigned, items default to Pending, and each item's reservation is
// registered under its catalog item lock. Checkout does not gate on
// availability; overbooking surfaces later as a failed Confirm.
func (e *Engine) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	for i := range order.Items {
		it := &order.Items[i]
		if it.Quantity <= 0 {
			return models.Order{}, fmt.Errorf("%w: item %d quantity %d", ErrInvalidQuantity, i, it.Quantity)
		}
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = order.ID
		if it.Status == "" {
			it.Status = models.StatusPending
		}
		if !it.Status.IsValid() {
			return models.Order{}, fmt.Errorf("%w: unknown item status %q", ErrIllegalTransition, it.Status)
		}
	}

	if err := e.orders.CreateOrder(ctx, order); err != nil {
		return models.Order{}, err
	}

	for _, it := range order.Items {
		item := it
		_ = e.locks.WithItemLock(item.ItemID, func() error {
			e.reservations.RegisterItem(item)
			return nil
		})
	}

	slog.Info("Order created", "order_id", order.ID, "items", len(order.Items))
	return order, nil
}

// GetOrder returns the order with its derived status available via
// models.Order.DerivedStatus.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	return e.orders.GetOrder(ctx, orderID)
}

// ListOrders returns all orders sorted by creation time.
func (e *Engine) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := e.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

// OrderStatus returns the order's derived single label.
func (e *Engine) OrderStatus(ctx context.Context, orderID string) (models.ItemStatus, error) {
	order, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return order.DerivedStatus(), nil
}

// Stop flushes and closes the engine's stores.
func (e *Engine) Stop() {
	if err := e.ledger.Close(); err != nil {
		slog.Error("Error closing stock ledger", "error", err)
	}
	if err := e.orders.Close(); err != nil {
		slog.Error("Error closing order store", "error", err)
	}
	if e.idempotency != nil {
		if err := e.idempotency.Close(); err != nil {
			slog.Error("Error closing idempotency store", "error", err)
		}
	}
	slog.Info("Engine stopped")
}

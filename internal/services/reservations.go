package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"stock-reservation-engine/internal/models"
	"stock-reservation-engine/internal/store"
)

// ReservationIndex maintains, per catalog item, the quantities held by
// active order line items, split into confirmed-class (Confirmed,
// Shipped, Delivered) and pending-class (Pending) sums. The index is
// updated inside the same per-item critical section as each status
// transition, so a snapshot taken under that lock is always current and
// availability checks never rescan the order store.
type ReservationIndex struct {
	mu        sync.RWMutex
	snapshots map[string]models.ReservationSnapshot
	orders    store.OrderStore
}

func NewReservationIndex(orders store.OrderStore) *ReservationIndex {
	return &ReservationIndex{
		snapshots: make(map[string]models.ReservationSnapshot),
		orders:    orders,
	}
}

// Rebuild reconstructs the index from the order store. Called at startup
// and after any order ingestion that bypassed RegisterItem.
func (ix *ReservationIndex) Rebuild(ctx context.Context) error {
	orders, err := ix.orders.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding reservation index: %w", err)
	}

	fresh := make(map[string]models.ReservationSnapshot)
	for _, order := range orders {
		for _, it := range order.Items {
			snap := fresh[it.ItemID]
			switch {
			case it.Status.IsConfirmedClass():
				snap.ConfirmedQty += it.Quantity
			case it.Status == models.StatusPending:
				snap.PendingQty += it.Quantity
			}
			fresh[it.ItemID] = snap
		}
	}

	ix.mu.Lock()
	ix.snapshots = fresh
	ix.mu.Unlock()

	slog.Info("Reservation index rebuilt", "items", len(fresh))
	return nil
}

// Snapshot returns the current sums for the item; zero sums when no
// active line items reference it.
func (ix *ReservationIndex) Snapshot(itemID string) models.ReservationSnapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.snapshots[itemID]
}

// ItemIDs lists every catalog item with a non-empty snapshot.
func (ix *ReservationIndex) ItemIDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := make([]string, 0, len(ix.snapshots))
	for id := range ix.snapshots {
		ids = append(ids, id)
	}
	return ids
}

// RegisterItem adds a newly created line item's contribution. Cancelled
// and unknown statuses contribute nothing.
func (ix *ReservationIndex) RegisterItem(item models.OrderItem) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	snap := ix.snapshots[item.ItemID]
	switch {
	case item.Status.IsConfirmedClass():
		snap.ConfirmedQty += item.Quantity
	case item.Status == models.StatusPending:
		snap.PendingQty += item.Quantity
	default:
		return
	}
	ix.snapshots[item.ItemID] = snap
}

// ApplyTransition moves the item's quantity between status classes.
// Same-class moves (Confirmed -> Shipped -> Delivered) change nothing.
func (ix *ReservationIndex) ApplyTransition(itemID string, quantity int, from, to models.ItemStatus) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	snap := ix.snapshots[itemID]

	switch {
	case from == models.StatusPending && to.IsConfirmedClass():
		snap.PendingQty -= quantity
		snap.ConfirmedQty += quantity
	case from == models.StatusPending && to == models.StatusCancelled:
		snap.PendingQty -= quantity
	case from.IsConfirmedClass() && to == models.StatusCancelled:
		snap.ConfirmedQty -= quantity
	case from.IsConfirmedClass() && to.IsConfirmedClass():
		// no class change
	default:
		slog.Warn("Unexpected transition applied to reservation index",
			"item_id", itemID, "from", from, "to", to)
	}

	if snap.PendingQty < 0 || snap.ConfirmedQty < 0 {
		slog.Error("Reservation index went negative, clamping",
			"item_id", itemID,
			"pending", snap.PendingQty,
			"confirmed", snap.ConfirmedQty)
		if snap.PendingQty < 0 {
			snap.PendingQty = 0
		}
		if snap.ConfirmedQty < 0 {
			snap.ConfirmedQty = 0
		}
	}

	ix.snapshots[itemID] = snap
}

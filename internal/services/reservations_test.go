package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-reservation-engine/internal/models"
	"stock-reservation-engine/internal/store"
)

func newTestIndex(t *testing.T) (*ReservationIndex, *store.MemoryOrderStore) {
	t.Helper()
	orders, err := store.NewMemoryOrderStore("", false)
	require.NoError(t, err)
	return NewReservationIndex(orders), orders
}

// TestReservationIndex_RegisterItem tests per-class accumulation
func TestReservationIndex_RegisterItem(t *testing.T) {
	ix, _ := newTestIndex(t)

	ix.RegisterItem(models.OrderItem{ID: "li-1", ItemID: "widget", Quantity: 4, Status: models.StatusPending})
	ix.RegisterItem(models.OrderItem{ID: "li-2", ItemID: "widget", Quantity: 3, Status: models.StatusPending})
	ix.RegisterItem(models.OrderItem{ID: "li-3", ItemID: "widget", Quantity: 5, Status: models.StatusConfirmed})
	ix.RegisterItem(models.OrderItem{ID: "li-4", ItemID: "widget", Quantity: 2, Status: models.StatusShipped})
	ix.RegisterItem(models.OrderItem{ID: "li-5", ItemID: "widget", Quantity: 9, Status: models.StatusCancelled})

	snap := ix.Snapshot("widget")
	assert.Equal(t, 7, snap.PendingQty, "Pending items accumulate into PendingQty")
	assert.Equal(t, 7, snap.ConfirmedQty, "Confirmed and Shipped accumulate into ConfirmedQty")
}

// TestReservationIndex_SnapshotUnknownItem tests the zero snapshot
func TestReservationIndex_SnapshotUnknownItem(t *testing.T) {
	ix, _ := newTestIndex(t)

	snap := ix.Snapshot("never-seen")

	assert.Equal(t, 0, snap.PendingQty)
	assert.Equal(t, 0, snap.ConfirmedQty)
}

// TestReservationIndex_ApplyTransition tests class moves on each edge
func TestReservationIndex_ApplyTransition(t *testing.T) {
	testCases := []struct {
		name              string
		from, to          models.ItemStatus
		expectedPending   int
		expectedConfirmed int
	}{
		{"Confirm moves pending to confirmed", models.StatusPending, models.StatusConfirmed, 5, 15},
		{"Cancel pending releases it", models.StatusPending, models.StatusCancelled, 5, 10},
		{"Cancel confirmed releases it", models.StatusConfirmed, models.StatusCancelled, 10, 5},
		{"Ship keeps the reservation", models.StatusConfirmed, models.StatusShipped, 10, 10},
		{"Deliver keeps the reservation", models.StatusShipped, models.StatusDelivered, 10, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange - 10 pending, 10 confirmed; the moving item holds 5
			ix, _ := newTestIndex(t)
			ix.RegisterItem(models.OrderItem{ID: "li-1", ItemID: "widget", Quantity: 10, Status: models.StatusPending})
			ix.RegisterItem(models.OrderItem{ID: "li-2", ItemID: "widget", Quantity: 10, Status: models.StatusConfirmed})

			// Act
			ix.ApplyTransition("widget", 5, tc.from, tc.to)

			// Assert
			snap := ix.Snapshot("widget")
			assert.Equal(t, tc.expectedPending, snap.PendingQty)
			assert.Equal(t, tc.expectedConfirmed, snap.ConfirmedQty)
		})
	}
}

// TestReservationIndex_ApplyTransitionClampsNegative tests the defensive
// clamp when sums would go below zero
func TestReservationIndex_ApplyTransitionClampsNegative(t *testing.T) {
	ix, _ := newTestIndex(t)
	ix.RegisterItem(models.OrderItem{ID: "li-1", ItemID: "widget", Quantity: 2, Status: models.StatusPending})

	// Releasing more than is held clamps at zero instead of going negative
	ix.ApplyTransition("widget", 5, models.StatusPending, models.StatusCancelled)

	snap := ix.Snapshot("widget")
	assert.Equal(t, 0, snap.PendingQty)
}

// TestReservationIndex_Rebuild tests reconstruction from the order store
func TestReservationIndex_Rebuild(t *testing.T) {
	// Arrange
	ix, orders := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, orders.CreateOrder(ctx, models.Order{
		ID:        "order-1",
		CreatedAt: time.Now().UTC(),
		Items: []models.OrderItem{
			{ID: "li-1", OrderID: "order-1", ItemID: "widget", Quantity: 4, Status: models.StatusPending},
			{ID: "li-2", OrderID: "order-1", ItemID: "widget", Quantity: 5, Status: models.StatusConfirmed},
			{ID: "li-3", OrderID: "order-1", ItemID: "gadget", Quantity: 2, Status: models.StatusDelivered},
			{ID: "li-4", OrderID: "order-1", ItemID: "gadget", Quantity: 8, Status: models.StatusCancelled},
		},
	}))

	// Pollute the index to prove Rebuild replaces it wholesale
	ix.RegisterItem(models.OrderItem{ID: "stale", ItemID: "stale-item", Quantity: 99, Status: models.StatusPending})

	// Act
	require.NoError(t, ix.Rebuild(ctx))

	// Assert
	widget := ix.Snapshot("widget")
	assert.Equal(t, 4, widget.PendingQty)
	assert.Equal(t, 5, widget.ConfirmedQty)

	gadget := ix.Snapshot("gadget")
	assert.Equal(t, 0, gadget.PendingQty)
	assert.Equal(t, 2, gadget.ConfirmedQty, "Cancelled items contribute nothing")

	stale := ix.Snapshot("stale-item")
	assert.Equal(t, 0, stale.PendingQty, "Rebuild discards stale entries")
}

// TestReservationIndex_ItemIDs tests listing of tracked items
func TestReservationIndex_ItemIDs(t *testing.T) {
	ix, _ := newTestIndex(t)
	ix.RegisterItem(models.OrderItem{ID: "li-1", ItemID: "widget", Quantity: 1, Status: models.StatusPending})
	ix.RegisterItem(models.OrderItem{ID: "li-2", ItemID: "gadget", Quantity: 1, Status: models.StatusConfirmed})

	ids := ix.ItemIDs()

	assert.ElementsMatch(t, []string{"widget", "gadget"}, ids)
}

package store

import (
	"context"
	"errors"

	"stock-reservation-engine/internal/models"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderItemNotFound = errors.New("order item not found")
	ErrOrderExists       = errors.New("order already exists")
)

// StockLedger is the append-only persistence layer for stock events.
// Appends for one item are visible to immediately following reads.
type StockLedger interface {
	// Append records one stock addition. Quantity has been validated by
	// the caller; implementations assign the event ID and offset.
	Append(ctx context.Context, itemID string, quantity int) (models.StockEvent, error)

	// TotalStock returns the sum of all event quantities for the item,
	// 0 when no events exist.
	TotalStock(ctx context.Context, itemID string) (int, error)

	// EventsForItem returns the item's events in append order.
	EventsForItem(ctx context.Context, itemID string) ([]models.StockEvent, error)

	// ItemIDs lists every item that has at least one stock event.
	ItemIDs(ctx context.Context) ([]string, error)

	Close() error
}

// OrderStore provides access to orders and their line items. Line items
// are never deleted; cancellation is a terminal status.
type OrderStore interface {
	CreateOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)

	GetOrderItem(ctx context.Context, orderItemID string) (models.OrderItem, error)

	// ListOrderItemsByCatalogItem returns every line item referencing the
	// catalog item, regardless of status. O(items referencing the item).
	ListOrderItemsByCatalogItem(ctx context.Context, itemID string) ([]models.OrderItem, error)

	UpdateItemStatus(ctx context.Context, orderItemID string, status models.ItemStatus) error

	Close() error
}

// IdempotencyStore deduplicates externally supplied request keys.
type IdempotencyStore interface {
	// SetIdempotency marks the key as seen, returning false if it was
	// already present.
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes a claimed key so the caller can retry
	// after the guarded operation failed.
	ReleaseIdempotency(ctx context.Context, key string) error

	Close() error
}

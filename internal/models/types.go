package models

import "time"

// ItemStatus is the fulfillment status of a single order line item.
type ItemStatus string

const (
	StatusPending   ItemStatus = "Pending"
	StatusConfirmed ItemStatus = "Confirmed"
	StatusShipped   ItemStatus = "Shipped"
	StatusDelivered ItemStatus = "Delivered"
	StatusCancelled ItemStatus = "Cancelled"

	// StatusMixed is the derived label for an order whose items disagree.
	// It is never a valid item status.
	StatusMixed ItemStatus = "Mixed"
)

// IsValid reports whether s is one of the five item statuses.
func (s ItemStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsConfirmedClass reports whether s holds stock as a firm reservation.
func (s ItemStatus) IsConfirmedClass() bool {
	switch s {
	case StatusConfirmed, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// StockEvent is one immutable addition of units to a catalog item's ledger.
type StockEvent struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	Quantity  int       `json:"quantity"`
	Offset    int64     `json:"offset"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItem is one product/quantity line within an order. Its status is
// mutated only through state machine transitions; items are never deleted.
type OrderItem struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"orderId"`
	ItemID    string     `json:"itemId"`
	Quantity  int        `json:"quantity"`
	UnitPrice float64    `json:"unitPrice"`
	Status    ItemStatus `json:"itemStatus"`
}

// Order is a customer purchase created at checkout. The order carries no
// status column of its own; its displayed status is derived from the items.
type Order struct {
	ID            string      `json:"id"`
	FullName      string      `json:"fullName"`
	Phone         string      `json:"phone"`
	Address       string      `json:"address"`
	PaymentStatus string      `json:"paymentStatus"`
	PaymentMethod string      `json:"paymentMethod"`
	CreatedAt     time.Time   `json:"createdAt"`
	Items         []OrderItem `json:"items"`
}

// DerivedStatus returns the single label shown for the whole order: the
// shared item status when all items agree, otherwise "Mixed". Orders with
// no items display as Pending.
func (o Order) DerivedStatus() ItemStatus {
	if len(o.Items) == 0 {
		return StatusPending
	}
	first := o.Items[0].Status
	for _, it := range o.Items[1:] {
		if it.Status != first {
			return StatusMixed
		}
	}
	return first
}

// ReservationSnapshot holds the derived per-item reservation sums.
// Confirmed-class statuses (Confirmed, Shipped, Delivered) count toward
// ConfirmedQty; Pending toward PendingQty; Cancelled toward neither.
type ReservationSnapshot struct {
	ConfirmedQty int `json:"confirmedQty"`
	PendingQty   int `json:"pendingQty"`
}

// AvailabilityReport combines the ledger total with the reservation sums.
// Available is the raw value and may be negative when stock was oversold
// by a prior race or manual override; AvailableDisplay is floored at zero.
type AvailabilityReport struct {
	ItemID           string `json:"itemId"`
	TotalStock       int    `json:"totalStock"`
	ConfirmedQty     int    `json:"confirmedQty"`
	PendingQty       int    `json:"pendingQty"`
	Available        int    `json:"available"`
	AvailableDisplay int    `json:"availableDisplay"`
}

// TransitionPair is one (order item, requested status) entry of a batch.
type TransitionPair struct {
	OrderItemID  string     `json:"orderItemId"`
	TargetStatus ItemStatus `json:"targetStatus"`
}

// TransitionOutcome reports the result of one pair of a batch. Applied is
// true on success; otherwise ErrorType carries the failure kind and
// ErrorMessage the detail.
type TransitionOutcome struct {
	OrderItemID  string     `json:"orderItemId"`
	TargetStatus ItemStatus `json:"targetStatus"`
	Applied      bool       `json:"applied"`
	ErrorType    string     `json:"errorType,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// BatchSummary provides counts for a batch transition response.
type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ErrorResponse is the standard error envelope for the HTTP surface.
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

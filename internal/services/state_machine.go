package services

import (
	"context"
	"fmt"

	"stock-reservation-engine/internal/models"
)

// transition is one edge of the item status graph.
type transition struct {
	from, to models.ItemStatus
}

// legalTransitions is the full set of allowed edges. Cancelled and
// Delivered are terminal; everything else moves forward only.
var legalTransitions = map[transition]struct{}{
	{models.StatusPending, models.StatusConfirmed}:   {},
	{models.StatusPending, models.StatusCancelled}:   {},
	{models.StatusConfirmed, models.StatusShipped}:   {},
	{models.StatusConfirmed, models.StatusCancelled}: {},
	{models.StatusShipped, models.StatusDelivered}:   {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to models.ItemStatus) bool {
	_, ok := legalTransitions[transition{from, to}]
	return ok
}

// StateMachine validates status transitions for a single order line item,
// including the stock precondition of the Confirm edge.
type StateMachine struct {
	availability *AvailabilityCalculator
}

func NewStateMachine(availability *AvailabilityCalculator) *StateMachine {
	return &StateMachine{availability: availability}
}

// Validate checks that moving item to target is legal and that its
// precondition holds. Confirm requires that, after notionally moving the
// item's quantity from pending to confirmed, the total reservation does
// not exceed total stock. Callers must hold the item's lock so the check
// is atomic with the mutation that follows.
func (m *StateMachine) Validate(ctx context.Context, item models.OrderItem, target models.ItemStatus) error {
	if !CanTransition(item.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, item.Status, target)
	}

	if item.Status == models.StatusPending && target == models.StatusConfirmed {
		headroom, err := m.availability.ConfirmHeadroom(ctx, item)
		if err != nil {
			return err
		}
		if headroom < item.Quantity {
			return fmt.Errorf("%w: item %s requires %d, available %d",
				ErrInsufficientStock, item.ItemID, item.Quantity, headroom)
		}
	}

	return nil
}

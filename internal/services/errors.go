package services

import (
	"errors"

	"stock-reservation-engine/internal/store"
)

// Engine failure kinds. All are rejected before any write except
// ErrInsufficientStock, which is rejected after the atomic availability
// check with no partial mutation.
var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateRequest  = errors.New("duplicate request")
)

// Error type labels used in batch outcomes and telemetry attributes.
const (
	ErrTypeInvalidQuantity   = "invalid_quantity"
	ErrTypeIllegalTransition = "illegal_transition"
	ErrTypeInsufficientStock = "insufficient_stock"
	ErrTypeDuplicateRequest  = "duplicate_request"
	ErrTypeNotFound          = "not_found"
	ErrTypeInternalError     = "internal_error"
)

// ErrorTypeOf maps an engine error to its low-cardinality label.
func ErrorTypeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuantity):
		return ErrTypeInvalidQuantity
	case errors.Is(err, ErrIllegalTransition):
		return ErrTypeIllegalTransition
	case errors.Is(err, ErrInsufficientStock):
		return ErrTypeInsufficientStock
	case errors.Is(err, ErrDuplicateRequest):
		return ErrTypeDuplicateRequest
	case errors.Is(err, store.ErrOrderNotFound), errors.Is(err, store.ErrOrderItemNotFound):
		return ErrTypeNotFound
	default:
		return ErrTypeInternalError
	}
}

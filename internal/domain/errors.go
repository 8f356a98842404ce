package domain

import "errors"

var (
	// ErrInsufficientStock is returned when a movement or reservation would
	// drive a warehouse's available quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInsufficientAggregateStock is returned by the planner when the sum of
	// available stock across all warehouses cannot cover the requirement.
	ErrInsufficientAggregateStock = errors.New("insufficient aggregate stock")

	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationNotActive = errors.New("reservation is not active")

	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrTransferSameWarehouse = errors.New("transfer source and destination warehouses must differ")

	// ErrTransferMovementNotAllowed is returned when a transfer-leg movement
	// is recorded outside the transfer coordinator, which is the only writer
	// that links the two legs with a shared transfer ID.
	ErrTransferMovementNotAllowed = errors.New("transfer movements must go through a transfer")

	ErrItemNotFound = errors.New("inventory item not found")

	// ErrInternalConsistency signals an observed invariant violation, e.g. a
	// reclaim attempting to return more than was ever reserved.
	ErrInternalConsistency = errors.New("internal consistency error")

	// ErrConcurrentModification is returned when optimistic retries on a
	// version conflict are exhausted.
	ErrConcurrentModification = errors.New("concurrent modification")
)

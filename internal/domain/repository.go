package domain

import (
	"context"
	"time"
)

// InventoryRepository persists inventory items and their movement audit trail.
// Save operations are guarded by the aggregate version and return
// ErrConcurrentModification when the stored version has moved on.
type InventoryRepository interface {
	// Find returns nil, nil when no item exists for the pair
	Find(ctx context.Context, productID, warehouseID string) (*InventoryItem, error)

	// Save upserts the item together with any movement records produced by the
	// same operation, atomically. Domain events raised on the aggregate are
	// queued for publication in the same write.
	Save(ctx context.Context, item *InventoryItem, movements ...*StockMovement) error

	// SaveAll writes several items and their movements as a single atomic
	// unit. Used by transfers, where both sides commit or neither does.
	SaveAll(ctx context.Context, items []*InventoryItem, movements []*StockMovement) error

	// SaveWithReservation persists the item and inserts the reservation record
	// atomically, so a hold never exists without its counter shift.
	SaveWithReservation(ctx context.Context, item *InventoryItem, reservation *StockReservation) error
}

// MovementRepository reads the append-only movement audit trail
type MovementRepository interface {
	FindByPair(ctx context.Context, productID, warehouseID string, limit int) ([]*StockMovement, error)
	FindByTransferID(ctx context.Context, transferID string) ([]*StockMovement, error)
}

// ReservationRepository persists reservations. The Mark* operations are
// conditional claims: they succeed at most once per reservation, which is what
// makes the release/reclaim race safe.
type ReservationRepository interface {
	Insert(ctx context.Context, reservation *StockReservation) error

	// FindByID returns nil, nil when the reservation is unknown
	FindByID(ctx context.Context, reservationID string) (*StockReservation, error)

	// FindExpired lists unclaimed reservations whose TTL elapsed before now
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*StockReservation, error)

	// MarkReleased sets releasedAt if the reservation is still active at the
	// moment of the write. Returns false when another writer got there first
	// or the reservation already expired.
	MarkReleased(ctx context.Context, reservationID string, at time.Time) (bool, error)

	// MarkReclaimed sets reclaimedAt if the reservation is expired and not yet
	// terminal. Returns false when the claim is lost.
	MarkReclaimed(ctx context.Context, reservationID string, at time.Time) (bool, error)

	// ExtendExpiry moves expiresAt from its current value to newExpiry,
	// provided the reservation is not terminal and its deadline still matches
	// currentExpiry. Returns false when the conditional write did not apply.
	ExtendExpiry(ctx context.Context, reservationID string, currentExpiry, newExpiry time.Time) (bool, error)
}

// WarehouseCatalog is the external catalog collaborator, read-only here
type WarehouseCatalog interface {
	GetWarehouse(ctx context.Context, warehouseID string) (*Warehouse, error)
	ListWarehousesForProduct(ctx context.Context, productID string) ([]string, error)
}

package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InventoryItem is the aggregate tracking stock counters for one
// (product, warehouse) pair. The available/reserved split changes through
// reservation shifts; the sum changes only through movements.
type InventoryItem struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ProductID   string             `bson:"productId"`
	WarehouseID string             `bson:"warehouseId"`

	AvailableQuantity int `bson:"availableQuantity"`
	ReservedQuantity  int `bson:"reservedQuantity"`
	ReorderPoint      int `bson:"reorderPoint"`

	// Version guards optimistic concurrency in the repository.
	Version int64 `bson:"version"`

	CreatedAt   time.Time `bson:"createdAt"`
	LastUpdated time.Time `bson:"lastUpdated"`

	DomainEvents []DomainEvent `bson:"-"`
}

// NewInventoryItem creates an empty inventory item for a pair. Items are
// created lazily the first time a product is stocked in a warehouse.
func NewInventoryItem(productID, warehouseID string) *InventoryItem {
	now := time.Now()
	return &InventoryItem{
		ProductID:    productID,
		WarehouseID:  warehouseID,
		CreatedAt:    now,
		LastUpdated:  now,
		DomainEvents: make([]DomainEvent, 0),
	}
}

// ApplyMovement changes the available quantity and produces the audit record.
// Adjustment quantities may be negative; every other kind must be positive.
// Movements that would drive available below zero fail with
// ErrInsufficientStock and leave the aggregate untouched.
func (i *InventoryItem) ApplyMovement(mt MovementType, quantity int, reason, transferID string) (*StockMovement, error) {
	if !mt.IsValid() {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 || (quantity < 0 && mt != MovementAdjustment) {
		return nil, ErrInvalidQuantity
	}

	delta := quantity * mt.delta()
	next := i.AvailableQuantity + delta
	if next < 0 {
		return nil, ErrInsufficientStock
	}

	movement := newStockMovement(i, mt, quantity, i.AvailableQuantity, next, reason, transferID)

	i.AvailableQuantity = next
	i.LastUpdated = time.Now()

	i.AddDomainEvent(&StockMovementRecordedEvent{
		MovementID:        movement.MovementID,
		ProductID:         i.ProductID,
		WarehouseID:       i.WarehouseID,
		Type:              string(mt),
		Quantity:          quantity,
		PreviousAvailable: movement.PreviousAvailable,
		NewAvailable:      movement.NewAvailable,
		Reason:            reason,
		RecordedAt:        movement.CreatedAt,
	})

	if delta < 0 && i.ReorderPoint > 0 && i.AvailableQuantity <= i.ReorderPoint {
		i.AddDomainEvent(&LowStockAlertEvent{
			ProductID:       i.ProductID,
			WarehouseID:     i.WarehouseID,
			CurrentQuantity: i.AvailableQuantity,
			ReorderPoint:    i.ReorderPoint,
			AlertedAt:       time.Now(),
		})
	}

	return movement, nil
}

// ShiftToReserved moves quantity from available to reserved for a new hold
func (i *InventoryItem) ShiftToReserved(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.AvailableQuantity < quantity {
		return ErrInsufficientStock
	}

	i.AvailableQuantity -= quantity
	i.ReservedQuantity += quantity
	i.LastUpdated = time.Now()
	return nil
}

// ShiftToAvailable returns held quantity to the available pool. Reserved stock
// is never double-released by the reservation state machine, so a shortfall
// here is an invariant violation, not a caller error.
func (i *InventoryItem) ShiftToAvailable(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.ReservedQuantity < quantity {
		return ErrInternalConsistency
	}

	i.ReservedQuantity -= quantity
	i.AvailableQuantity += quantity
	i.LastUpdated = time.Now()
	return nil
}

// TotalQuantity is the physical stock at the warehouse, held or not
func (i *InventoryItem) TotalQuantity() int {
	return i.AvailableQuantity + i.ReservedQuantity
}

// AddDomainEvent adds a domain event
func (i *InventoryItem) AddDomainEvent(event DomainEvent) {
	i.DomainEvents = append(i.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (i *InventoryItem) ClearDomainEvents() {
	i.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (i *InventoryItem) GetDomainEvents() []DomainEvent {
	return i.DomainEvents
}

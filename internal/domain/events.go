package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// StockReservedEvent is published when stock is placed on hold
type StockReservedEvent struct {
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	WarehouseID   string    `json:"warehouseId"`
	Quantity      int       `json:"quantity"`
	ExpiresAt     time.Time `json:"expiresAt"`
	ReservedAt    time.Time `json:"reservedAt"`
}

func (e *StockReservedEvent) EventType() string     { return "stock.reservation.created" }
func (e *StockReservedEvent) OccurredAt() time.Time { return e.ReservedAt }

// ReservationReleasedEvent is published when a hold is released explicitly
type ReservationReleasedEvent struct {
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	WarehouseID   string    `json:"warehouseId"`
	Quantity      int       `json:"quantity"`
	ReleasedAt    time.Time `json:"releasedAt"`
}

func (e *ReservationReleasedEvent) EventType() string     { return "stock.reservation.released" }
func (e *ReservationReleasedEvent) OccurredAt() time.Time { return e.ReleasedAt }

// ReservationReclaimedEvent is published when the sweeper reclaims an expired hold
type ReservationReclaimedEvent struct {
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	WarehouseID   string    `json:"warehouseId"`
	Quantity      int       `json:"quantity"`
	ExpiredAt     time.Time `json:"expiredAt"`
	ReclaimedAt   time.Time `json:"reclaimedAt"`
}

func (e *ReservationReclaimedEvent) EventType() string     { return "stock.reservation.reclaimed" }
func (e *ReservationReclaimedEvent) OccurredAt() time.Time { return e.ReclaimedAt }

// StockMovementRecordedEvent is published for every audited stock movement
type StockMovementRecordedEvent struct {
	MovementID        string    `json:"movementId"`
	ProductID         string    `json:"productId"`
	WarehouseID       string    `json:"warehouseId"`
	Type              string    `json:"type"`
	Quantity          int       `json:"quantity"`
	PreviousAvailable int       `json:"previousAvailable"`
	NewAvailable      int       `json:"newAvailable"`
	Reason            string    `json:"reason,omitempty"`
	RecordedAt        time.Time `json:"recordedAt"`
}

func (e *StockMovementRecordedEvent) EventType() string     { return "stock.movement.recorded" }
func (e *StockMovementRecordedEvent) OccurredAt() time.Time { return e.RecordedAt }

// StockTransferredEvent is published when an inter-warehouse transfer completes
type StockTransferredEvent struct {
	TransferID      string    `json:"transferId"`
	ProductID       string    `json:"productId"`
	FromWarehouseID string    `json:"fromWarehouseId"`
	ToWarehouseID   string    `json:"toWarehouseId"`
	Quantity        int       `json:"quantity"`
	TransferredAt   time.Time `json:"transferredAt"`
}

func (e *StockTransferredEvent) EventType() string     { return "stock.transfer.completed" }
func (e *StockTransferredEvent) OccurredAt() time.Time { return e.TransferredAt }

// LowStockAlertEvent is published when available stock falls to the reorder point
type LowStockAlertEvent struct {
	ProductID       string    `json:"productId"`
	WarehouseID     string    `json:"warehouseId"`
	CurrentQuantity int       `json:"currentQuantity"`
	ReorderPoint    int       `json:"reorderPoint"`
	AlertedAt       time.Time `json:"alertedAt"`
}

func (e *LowStockAlertEvent) EventType() string     { return "stock.low-stock-alert" }
func (e *LowStockAlertEvent) OccurredAt() time.Time { return e.AlertedAt }

package cloudevents

import (
	"time"
)

// EventType constants for stock domain events
const (
	// Reservation events
	ReservationCreated   = "stock.reservation.created"
	ReservationReleased  = "stock.reservation.released"
	ReservationReclaimed = "stock.reservation.reclaimed"
	ReservationExtended  = "stock.reservation.extended"

	// Ledger events
	MovementRecorded = "stock.movement.recorded"
	LowStockAlert    = "stock.low-stock-alert"

	// Transfer events
	TransferCompleted = "stock.transfer.completed"

	// Allocation events
	PlanComputed = "stock.allocation.plan-computed"
)

// Source constants for event sources
const (
	SourceAllocation = "/stocklane/allocation-service"
)

// StockCloudEvent represents a CloudEvents v1.0 compliant event
type StockCloudEvent struct {
	SpecVersion     string                 `json:"specversion"`
	Type            string                 `json:"type"`
	Source          string                 `json:"source"`
	Subject         string                 `json:"subject,omitempty"`
	ID              string                 `json:"id"`
	Time            time.Time              `json:"time"`
	DataContentType string                 `json:"datacontenttype"`
	Data            interface{}            `json:"data"`
	Extensions      map[string]interface{} `json:"-"`

	// Correlation extension
	CorrelationID string `json:"stockcorrelationid,omitempty"`
}

// ReservationData represents the data payload for reservation lifecycle events
type ReservationData struct {
	ReservationID string     `json:"reservationId"`
	ProductID     string     `json:"productId"`
	WarehouseID   string     `json:"warehouseId"`
	Quantity      int        `json:"quantity"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// MovementRecordedData represents the data payload for MovementRecorded events
type MovementRecordedData struct {
	MovementID        string `json:"movementId"`
	ProductID         string `json:"productId"`
	WarehouseID       string `json:"warehouseId"`
	MovementType      string `json:"movementType"`
	Quantity          int    `json:"quantity"`
	PreviousAvailable int    `json:"previousAvailable"`
	NewAvailable      int    `json:"newAvailable"`
	Reason            string `json:"reason,omitempty"`
	TransferID        string `json:"transferId,omitempty"`
}

// LowStockAlertData represents the data payload for LowStockAlert events
type LowStockAlertData struct {
	ProductID    string `json:"productId"`
	WarehouseID  string `json:"warehouseId"`
	Available    int    `json:"available"`
	ReorderPoint int    `json:"reorderPoint"`
}

// TransferCompletedData represents the data payload for TransferCompleted events
type TransferCompletedData struct {
	TransferID      string `json:"transferId"`
	ProductID       string `json:"productId"`
	FromWarehouseID string `json:"fromWarehouseId"`
	ToWarehouseID   string `json:"toWarehouseId"`
	Quantity        int    `json:"quantity"`
}

// PlanLine represents one warehouse contribution within a plan payload
type PlanLine struct {
	WarehouseID string `json:"warehouseId"`
	Quantity    int    `json:"quantity"`
}

// PlanComputedData represents the data payload for PlanComputed events
type PlanComputedData struct {
	ProductID        string     `json:"productId"`
	RequiredQuantity int        `json:"requiredQuantity"`
	Lines            []PlanLine `json:"lines"`
}

package application

import "time"

// AvailabilityDTO represents a pair's stock counters in responses
type AvailabilityDTO struct {
	ProductID         string    `json:"productId"`
	WarehouseID       string    `json:"warehouseId"`
	AvailableQuantity int       `json:"availableQuantity"`
	ReservedQuantity  int       `json:"reservedQuantity"`
	TotalQuantity     int       `json:"totalQuantity"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// ReservationDTO represents a reservation snapshot in responses
type ReservationDTO struct {
	ReservationID string     `json:"reservationId"`
	ProductID     string     `json:"productId"`
	WarehouseID   string     `json:"warehouseId"`
	Quantity      int        `json:"quantity"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	ReleasedAt    *time.Time `json:"releasedAt,omitempty"`
	ReclaimedAt   *time.Time `json:"reclaimedAt,omitempty"`
}

// MovementDTO represents an audit record in responses
type MovementDTO struct {
	MovementID        string    `json:"movementId"`
	ProductID         string    `json:"productId"`
	WarehouseID       string    `json:"warehouseId"`
	Type              string    `json:"type"`
	Quantity          int       `json:"quantity"`
	PreviousAvailable int       `json:"previousAvailable"`
	NewAvailable      int       `json:"newAvailable"`
	Reason            string    `json:"reason,omitempty"`
	TransferID        string    `json:"transferId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// AllocationLineDTO represents one warehouse's share of a plan
type AllocationLineDTO struct {
	WarehouseID string `json:"warehouseId"`
	Quantity    int    `json:"quantity"`
}

// AllocationPlanDTO represents a computed allocation plan in responses
type AllocationPlanDTO struct {
	ProductID        string              `json:"productId"`
	RequiredQuantity int                 `json:"requiredQuantity"`
	Lines            []AllocationLineDTO `json:"lines"`
}

// TransferResultDTO represents a completed transfer in responses
type TransferResultDTO struct {
	TransferID      string      `json:"transferId"`
	ProductID       string      `json:"productId"`
	FromWarehouseID string      `json:"fromWarehouseId"`
	ToWarehouseID   string      `json:"toWarehouseId"`
	Quantity        int         `json:"quantity"`
	Outbound        MovementDTO `json:"outbound"`
	Inbound         MovementDTO `json:"inbound"`
}

package application

import (
	"time"

	"github.com/stocklane/allocation-service/internal/domain"
)

// ApplyMovementCommand represents the command to record a stock movement
type ApplyMovementCommand struct {
	ProductID    string
	WarehouseID  string
	MovementType domain.MovementType
	Quantity     int
	Reason       string
}

// ReserveCommand represents the command to place a hold on stock
type ReserveCommand struct {
	ProductID   string
	WarehouseID string
	Quantity    int
	TTL         time.Duration
	Reason      string
}

// ReleaseCommand represents the command to release a hold explicitly
type ReleaseCommand struct {
	ReservationID string
}

// ExtendCommand represents the command to push a hold's deadline out
type ExtendCommand struct {
	ReservationID  string
	AdditionalTime time.Duration
}

// TransferCommand represents the command to move stock between warehouses
type TransferCommand struct {
	ProductID       string
	FromWarehouseID string
	ToWarehouseID   string
	Quantity        int
	Reason          string
}

// PlanQuery represents the query for an allocation plan
type PlanQuery struct {
	ProductID        string
	RequiredQuantity int

	// RequesterLocation is optional; without it the planner prefers larger
	// available quantities over proximity.
	RequesterLocation *domain.Coordinate
}

// GetAvailableQuery represents the query for a pair's availability
type GetAvailableQuery struct {
	ProductID   string
	WarehouseID string
}

// GetReservationQuery represents the query for a reservation snapshot
type GetReservationQuery struct {
	ReservationID string
}

// MovementHistoryQuery represents the query for a pair's recent movements
type MovementHistoryQuery struct {
	ProductID   string
	WarehouseID string
	Limit       int
}

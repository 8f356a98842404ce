package domain

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReservationStatus is the derived state of a reservation
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusReleased  ReservationStatus = "released"
	ReservationStatusReclaimed ReservationStatus = "reclaimed"
)

// StockReservation is a time-bounded hold on stock at one warehouse.
// Released and Reclaimed are terminal; a terminal reservation is an immutable
// history record. Only the terminal markers are persisted facts; Active vs
// Expired is derived from the clock at observation time.
type StockReservation struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	ReservationID string             `bson:"reservationId"`
	ProductID     string             `bson:"productId"`
	WarehouseID   string             `bson:"warehouseId"`

	Quantity int    `bson:"quantity"`
	Reason   string `bson:"reason,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt"`
	ExpiresAt   time.Time  `bson:"expiresAt"`
	ReleasedAt  *time.Time `bson:"releasedAt,omitempty"`
	ReclaimedAt *time.Time `bson:"reclaimedAt,omitempty"`

	DomainEvents []DomainEvent `bson:"-"`
}

// NewStockReservation creates an active reservation expiring after ttl
func NewStockReservation(productID, warehouseID string, quantity int, ttl time.Duration, reason string) *StockReservation {
	now := time.Now()
	return &StockReservation{
		ReservationID: uuid.New().String(),
		ProductID:     productID,
		WarehouseID:   warehouseID,
		Quantity:      quantity,
		Reason:        reason,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		DomainEvents:  make([]DomainEvent, 0),
	}
}

// StatusAt derives the reservation state at the given instant
func (r *StockReservation) StatusAt(now time.Time) ReservationStatus {
	switch {
	case r.ReleasedAt != nil:
		return ReservationStatusReleased
	case r.ReclaimedAt != nil:
		return ReservationStatusReclaimed
	case !now.Before(r.ExpiresAt):
		return ReservationStatusExpired
	default:
		return ReservationStatusActive
	}
}

// IsActiveAt reports whether the reservation still holds stock at the instant
func (r *StockReservation) IsActiveAt(now time.Time) bool {
	return r.StatusAt(now) == ReservationStatusActive
}

// IsTerminal reports whether the quantity has already been returned
func (r *StockReservation) IsTerminal() bool {
	return r.ReleasedAt != nil || r.ReclaimedAt != nil
}

// AddDomainEvent adds a domain event
func (r *StockReservation) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (r *StockReservation) ClearDomainEvents() {
	r.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (r *StockReservation) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}

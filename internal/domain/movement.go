package domain

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MovementType classifies an audited stock movement
type MovementType string

const (
	MovementInbound     MovementType = "inbound"
	MovementOutbound    MovementType = "outbound"
	MovementTransferIn  MovementType = "transfer_in"
	MovementTransferOut MovementType = "transfer_out"
	MovementAdjustment  MovementType = "adjustment"
)

// IsValid reports whether the movement type is one of the known kinds
func (t MovementType) IsValid() bool {
	switch t {
	case MovementInbound, MovementOutbound, MovementTransferIn, MovementTransferOut, MovementAdjustment:
		return true
	}
	return false
}

// IsTransferLeg reports whether the type is one half of a warehouse
// transfer pair.
func (t MovementType) IsTransferLeg() bool {
	return t == MovementTransferIn || t == MovementTransferOut
}

// delta returns the sign applied to the movement quantity. Adjustments carry
// their own sign in the quantity field.
func (t MovementType) delta() int {
	switch t {
	case MovementOutbound, MovementTransferOut:
		return -1
	default:
		return 1
	}
}

// StockMovement is an append-only audit record of a change to a warehouse's
// available quantity. Written once, never updated or deleted.
type StockMovement struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	MovementID  string             `bson:"movementId" json:"movementId"`
	ProductID   string             `bson:"productId" json:"productId"`
	WarehouseID string             `bson:"warehouseId" json:"warehouseId"`

	Type     MovementType `bson:"type" json:"type"`
	Quantity int          `bson:"quantity" json:"quantity"`

	PreviousAvailable int `bson:"previousAvailable" json:"previousAvailable"`
	NewAvailable      int `bson:"newAvailable" json:"newAvailable"`

	Reason string `bson:"reason,omitempty" json:"reason,omitempty"`

	// TransferID links the paired transfer_out/transfer_in records of a single
	// inter-warehouse transfer.
	TransferID string `bson:"transferId,omitempty" json:"transferId,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func newStockMovement(item *InventoryItem, mt MovementType, quantity, previous, current int, reason, transferID string) *StockMovement {
	return &StockMovement{
		MovementID:        uuid.New().String(),
		ProductID:         item.ProductID,
		WarehouseID:       item.WarehouseID,
		Type:              mt,
		Quantity:          quantity,
		PreviousAvailable: previous,
		NewAvailable:      current,
		Reason:            reason,
		TransferID:        transferID,
		CreatedAt:         time.Now(),
	}
}

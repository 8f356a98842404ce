package application

import (
	"time"

	"github.com/stocklane/allocation-service/internal/domain"
)

// ToAvailabilityDTO converts an inventory item to its availability view.
// A nil item maps to zero counters, mirroring how absent pairs behave.
func ToAvailabilityDTO(productID, warehouseID string, item *domain.InventoryItem) *AvailabilityDTO {
	if item == nil {
		return &AvailabilityDTO{
			ProductID:   productID,
			WarehouseID: warehouseID,
		}
	}
	return &AvailabilityDTO{
		ProductID:         item.ProductID,
		WarehouseID:       item.WarehouseID,
		AvailableQuantity: item.AvailableQuantity,
		ReservedQuantity:  item.ReservedQuantity,
		TotalQuantity:     item.TotalQuantity(),
		LastUpdated:       item.LastUpdated,
	}
}

// ToReservationDTO converts a reservation to its snapshot at the given instant
func ToReservationDTO(r *domain.StockReservation, now time.Time) *ReservationDTO {
	return &ReservationDTO{
		ReservationID: r.ReservationID,
		ProductID:     r.ProductID,
		WarehouseID:   r.WarehouseID,
		Quantity:      r.Quantity,
		Status:        string(r.StatusAt(now)),
		Reason:        r.Reason,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
		ReleasedAt:    r.ReleasedAt,
		ReclaimedAt:   r.ReclaimedAt,
	}
}

// ToMovementDTO converts a movement audit record
func ToMovementDTO(m *domain.StockMovement) MovementDTO {
	return MovementDTO{
		MovementID:        m.MovementID,
		ProductID:         m.ProductID,
		WarehouseID:       m.WarehouseID,
		Type:              string(m.Type),
		Quantity:          m.Quantity,
		PreviousAvailable: m.PreviousAvailable,
		NewAvailable:      m.NewAvailable,
		Reason:            m.Reason,
		TransferID:        m.TransferID,
		CreatedAt:         m.CreatedAt,
	}
}

// ToMovementDTOs converts a list of movements
func ToMovementDTOs(movements []*domain.StockMovement) []MovementDTO {
	dtos := make([]MovementDTO, 0, len(movements))
	for _, m := range movements {
		dtos = append(dtos, ToMovementDTO(m))
	}
	return dtos
}

// ToAllocationPlanDTO converts a plan
func ToAllocationPlanDTO(plan *domain.AllocationPlan) *AllocationPlanDTO {
	lines := make([]AllocationLineDTO, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		lines = append(lines, AllocationLineDTO{
			WarehouseID: line.WarehouseID,
			Quantity:    line.Quantity,
		})
	}
	return &AllocationPlanDTO{
		ProductID:        plan.ProductID,
		RequiredQuantity: plan.RequiredQuantity,
		Lines:            lines,
	}
}

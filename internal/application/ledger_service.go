package application

import (
	"context"
	"fmt"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/keylock"
	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/metrics"
)

// saveAttempts bounds optimistic retries on a version conflict. Same-pair
// writers in this process are serialized by the pair lock; conflicts come
// from other instances and should resolve within a reload or two.
const saveAttempts = 3

const defaultHistoryLimit = 50

func pairKey(productID, warehouseID string) string {
	return productID + "|" + warehouseID
}

// LedgerService owns the stock counters for each (product, warehouse) pair
// and the movement audit trail.
type LedgerService struct {
	repo         domain.InventoryRepository
	movementRepo domain.MovementRepository
	locks        *keylock.Registry
	metrics      *metrics.Metrics
	logger       *logging.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	repo domain.InventoryRepository,
	movementRepo domain.MovementRepository,
	locks *keylock.Registry,
	m *metrics.Metrics,
	logger *logging.Logger,
) *LedgerService {
	return &LedgerService{
		repo:         repo,
		movementRepo: movementRepo,
		locks:        locks,
		metrics:      m,
		logger:       logger,
	}
}

// GetAvailable returns the pair's counters, zero when the pair is unknown
func (s *LedgerService) GetAvailable(ctx context.Context, query GetAvailableQuery) (*AvailabilityDTO, error) {
	item, err := s.repo.Find(ctx, query.ProductID, query.WarehouseID)
	if err != nil {
		s.logger.Error("Failed to load inventory item", "productId", query.ProductID, "warehouseId", query.WarehouseID, "error", err)
		return nil, fmt.Errorf("failed to load inventory item: %w", err)
	}
	return ToAvailabilityDTO(query.ProductID, query.WarehouseID, item), nil
}

// ApplyMovement records a stock movement against the pair. The item is
// created lazily on the first inbound movement.
func (s *LedgerService) ApplyMovement(ctx context.Context, cmd ApplyMovementCommand) (*MovementDTO, error) {
	if cmd.MovementType.IsTransferLeg() {
		// A lone transfer leg would leave a movement with no paired record
		// and no transfer ID; only TransferService writes those, as a pair
		// in one transaction.
		return nil, domain.ErrTransferMovementNotAllowed
	}

	unlock := s.locks.Lock(pairKey(cmd.ProductID, cmd.WarehouseID))
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		item, err := s.repo.Find(ctx, cmd.ProductID, cmd.WarehouseID)
		if err != nil {
			s.logger.Error("Failed to load inventory item", "productId", cmd.ProductID, "warehouseId", cmd.WarehouseID, "error", err)
			return nil, fmt.Errorf("failed to load inventory item: %w", err)
		}
		if item == nil {
			item = domain.NewInventoryItem(cmd.ProductID, cmd.WarehouseID)
		}

		movement, err := item.ApplyMovement(cmd.MovementType, cmd.Quantity, cmd.Reason, "")
		if err != nil {
			if err == domain.ErrInsufficientStock && s.metrics != nil {
				s.metrics.RecordInsufficientStock("movement")
			}
			return nil, err
		}

		if err := s.repo.Save(ctx, item, movement); err != nil {
			if err == domain.ErrConcurrentModification {
				lastErr = err
				if s.metrics != nil {
					s.metrics.RecordConcurrencyConflict("movement")
				}
				continue
			}
			s.logger.Error("Failed to save inventory item", "productId", cmd.ProductID, "warehouseId", cmd.WarehouseID, "error", err)
			return nil, fmt.Errorf("failed to save inventory item: %w", err)
		}

		if s.metrics != nil {
			s.metrics.RecordStockMovement(string(cmd.MovementType))
			if movement.NewAvailable < movement.PreviousAvailable &&
				item.ReorderPoint > 0 && item.AvailableQuantity <= item.ReorderPoint {
				s.metrics.RecordLowStockAlert(cmd.WarehouseID)
			}
		}
		s.logger.Info("Recorded stock movement",
			"productId", cmd.ProductID,
			"warehouseId", cmd.WarehouseID,
			"type", cmd.MovementType,
			"quantity", cmd.Quantity,
			"newAvailable", movement.NewAvailable,
		)

		dto := ToMovementDTO(movement)
		return &dto, nil
	}

	s.logger.Warn("Movement retries exhausted", "productId", cmd.ProductID, "warehouseId", cmd.WarehouseID)
	return nil, lastErr
}

// GetMovementHistory lists a pair's recent movements, newest first
func (s *LedgerService) GetMovementHistory(ctx context.Context, query MovementHistoryQuery) ([]MovementDTO, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	movements, err := s.movementRepo.FindByPair(ctx, query.ProductID, query.WarehouseID, limit)
	if err != nil {
		s.logger.Error("Failed to load movement history", "productId", query.ProductID, "warehouseId", query.WarehouseID, "error", err)
		return nil, fmt.Errorf("failed to load movement history: %w", err)
	}
	return ToMovementDTOs(movements), nil
}

// GetTransferMovements returns both sides of a transfer by its ID
func (s *LedgerService) GetTransferMovements(ctx context.Context, transferID string) ([]MovementDTO, error) {
	movements, err := s.movementRepo.FindByTransferID(ctx, transferID)
	if err != nil {
		s.logger.Error("Failed to load transfer movements", "transferId", transferID, "error", err)
		return nil, fmt.Errorf("failed to load transfer movements: %w", err)
	}
	return ToMovementDTOs(movements), nil
}

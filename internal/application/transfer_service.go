package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/keylock"
	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/metrics"
)

// TransferService moves stock between warehouses. Both pair locks are taken
// in key order before either side mutates, and both sides persist in one
// transaction: a failed source decrement leaves no trace on either side.
type TransferService struct {
	repo    domain.InventoryRepository
	locks   *keylock.Registry
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewTransferService creates a new TransferService
func NewTransferService(
	repo domain.InventoryRepository,
	locks *keylock.Registry,
	m *metrics.Metrics,
	logger *logging.Logger,
) *TransferService {
	return &TransferService{
		repo:    repo,
		locks:   locks,
		metrics: m,
		logger:  logger,
	}
}

// Transfer moves quantity of a product from one warehouse's available pool to
// another's, recording a linked transfer_out/transfer_in movement pair.
func (s *TransferService) Transfer(ctx context.Context, cmd TransferCommand) (*TransferResultDTO, error) {
	if cmd.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if cmd.FromWarehouseID == cmd.ToWarehouseID {
		return nil, domain.ErrTransferSameWarehouse
	}

	unlock := s.locks.LockPair(
		pairKey(cmd.ProductID, cmd.FromWarehouseID),
		pairKey(cmd.ProductID, cmd.ToWarehouseID),
	)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		from, err := s.repo.Find(ctx, cmd.ProductID, cmd.FromWarehouseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load source item: %w", err)
		}
		if from == nil {
			if s.metrics != nil {
				s.metrics.RecordInsufficientStock("transfer")
			}
			return nil, domain.ErrInsufficientStock
		}

		to, err := s.repo.Find(ctx, cmd.ProductID, cmd.ToWarehouseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load destination item: %w", err)
		}
		if to == nil {
			to = domain.NewInventoryItem(cmd.ProductID, cmd.ToWarehouseID)
		}

		transferID := uuid.New().String()

		// The source decrement gates the whole transfer; the destination is
		// untouched until it succeeds.
		outbound, err := from.ApplyMovement(domain.MovementTransferOut, cmd.Quantity, cmd.Reason, transferID)
		if err != nil {
			if err == domain.ErrInsufficientStock && s.metrics != nil {
				s.metrics.RecordInsufficientStock("transfer")
				s.metrics.RecordTransfer(false)
			}
			return nil, err
		}

		inbound, err := to.ApplyMovement(domain.MovementTransferIn, cmd.Quantity, cmd.Reason, transferID)
		if err != nil {
			return nil, err
		}

		from.AddDomainEvent(&domain.StockTransferredEvent{
			TransferID:      transferID,
			ProductID:       cmd.ProductID,
			FromWarehouseID: cmd.FromWarehouseID,
			ToWarehouseID:   cmd.ToWarehouseID,
			Quantity:        cmd.Quantity,
			TransferredAt:   time.Now(),
		})

		if err := s.repo.SaveAll(ctx,
			[]*domain.InventoryItem{from, to},
			[]*domain.StockMovement{outbound, inbound},
		); err != nil {
			if err == domain.ErrConcurrentModification {
				lastErr = err
				if s.metrics != nil {
					s.metrics.RecordConcurrencyConflict("transfer")
				}
				continue
			}
			if s.metrics != nil {
				s.metrics.RecordTransfer(false)
			}
			return nil, fmt.Errorf("failed to save transfer: %w", err)
		}

		if s.metrics != nil {
			s.metrics.RecordTransfer(true)
		}
		s.logger.Info("Transferred stock",
			"transferId", transferID,
			"productId", cmd.ProductID,
			"from", cmd.FromWarehouseID,
			"to", cmd.ToWarehouseID,
			"quantity", cmd.Quantity,
		)

		return &TransferResultDTO{
			TransferID:      transferID,
			ProductID:       cmd.ProductID,
			FromWarehouseID: cmd.FromWarehouseID,
			ToWarehouseID:   cmd.ToWarehouseID,
			Quantity:        cmd.Quantity,
			Outbound:        ToMovementDTO(outbound),
			Inbound:         ToMovementDTO(inbound),
		}, nil
	}

	if s.metrics != nil {
		s.metrics.RecordTransfer(false)
	}
	return nil, lastErr
}

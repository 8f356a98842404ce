package application

import (
	"context"
	"fmt"
	"time"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/cloudevents"
	"github.com/stocklane/allocation-service/pkg/kafka"
	"github.com/stocklane/allocation-service/pkg/keylock"
	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/metrics"
	"github.com/stocklane/allocation-service/pkg/outbox"
)

// ReservationService owns the reservation state machine: Active -> Released
// explicitly, Active -> Expired -> Reclaimed through the sweeper. The terminal
// transitions return quantity to the available pool exactly once; the
// conditional repository claims decide who performs the return.
type ReservationService struct {
	repo            domain.InventoryRepository
	reservationRepo domain.ReservationRepository
	locks           *keylock.Registry
	outboxRepo      outbox.Repository
	eventFactory    *cloudevents.EventFactory
	metrics         *metrics.Metrics
	logger          *logging.Logger

	defaultTTL time.Duration
	now        func() time.Time
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	repo domain.InventoryRepository,
	reservationRepo domain.ReservationRepository,
	locks *keylock.Registry,
	outboxRepo outbox.Repository,
	eventFactory *cloudevents.EventFactory,
	m *metrics.Metrics,
	logger *logging.Logger,
	defaultTTL time.Duration,
) *ReservationService {
	return &ReservationService{
		repo:            repo,
		reservationRepo: reservationRepo,
		locks:           locks,
		outboxRepo:      outboxRepo,
		eventFactory:    eventFactory,
		metrics:         m,
		logger:          logger,
		defaultTTL:      defaultTTL,
		now:             time.Now,
	}
}

// WithClock overrides the clock. Test hook.
func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

// Reserve places a TTL-bounded hold on stock at one warehouse. Fails fast
// with ErrInsufficientStock; there is no queueing for stock to appear.
func (s *ReservationService) Reserve(ctx context.Context, cmd ReserveCommand) (*ReservationDTO, error) {
	if cmd.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if cmd.TTL < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	ttl := cmd.TTL
	if ttl == 0 {
		// Zero means the caller takes the service default.
		ttl = s.defaultTTL
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
			// Unknown pair has zero available
			if s.metrics != nil {
				s.metrics.RecordInsufficientStock("reserve")
			}
			return nil, domain.ErrInsufficientStock
		}

		if err := item.ShiftToReserved(cmd.Quantity); err != nil {
			if err == domain.ErrInsufficientStock && s.metrics != nil {
				s.metrics.RecordInsufficientStock("reserve")
			}
			return nil, err
		}

		now := s.now()
		reservation := domain.NewStockReservation(cmd.ProductID, cmd.WarehouseID, cmd.Quantity, ttl, cmd.Reason)
		reservation.CreatedAt = now
		reservation.ExpiresAt = now.Add(ttl)
		reservation.AddDomainEvent(&domain.StockReservedEvent{
			ReservationID: reservation.ReservationID,
			ProductID:     reservation.ProductID,
			WarehouseID:   reservation.WarehouseID,
			Quantity:      reservation.Quantity,
			ExpiresAt:     reservation.ExpiresAt,
			ReservedAt:    now,
		})

		if err := s.repo.SaveWithReservation(ctx, item, reservation); err != nil {
			if err == domain.ErrConcurrentModification {
				lastErr = err
				if s.metrics != nil {
					s.metrics.RecordConcurrencyConflict("reserve")
				}
				continue
			}
			s.logger.Error("Failed to save reservation", "productId", cmd.ProductID, "warehouseId", cmd.WarehouseID, "error", err)
			return nil, fmt.Errorf("failed to save reservation: %w", err)
		}

		if s.metrics != nil {
			s.metrics.RecordReservationCreated(cmd.WarehouseID)
		}
		s.logger.Info("Reserved stock",
			"reservationId", reservation.ReservationID,
			"productId", cmd.ProductID,
			"warehouseId", cmd.WarehouseID,
			"quantity", cmd.Quantity,
			"expiresAt", reservation.ExpiresAt,
		)
		return ToReservationDTO(reservation, now), nil
	}

	s.logger.Warn("Reserve retries exhausted", "productId", cmd.ProductID, "warehouseId", cmd.WarehouseID)
	return nil, lastErr
}

// Release ends an active hold and returns its quantity to the available pool.
// A release racing the sweeper over the same reservation loses the conditional
// claim and no-ops: the quantity is returned exactly once either way.
func (s *ReservationService) Release(ctx context.Context, cmd ReleaseCommand) error {
	reservation, err := s.reservationRepo.FindByID(ctx, cmd.ReservationID)
	if err != nil {
		s.logger.Error("Failed to load reservation", "reservationId", cmd.ReservationID, "error", err)
		return fmt.Errorf("failed to load reservation: %w", err)
	}
	if reservation == nil {
		return domain.ErrReservationNotFound
	}

	now := s.now()
	if reservation.StatusAt(now) != domain.ReservationStatusActive {
		return domain.ErrReservationNotActive
	}

	claimed, err := s.reservationRepo.MarkReleased(ctx, cmd.ReservationID, now)
	if err != nil {
		s.logger.Error("Failed to claim reservation for release", "reservationId", cmd.ReservationID, "error", err)
		return fmt.Errorf("failed to claim reservation: %w", err)
	}
	if !claimed {
		// The sweeper (or a concurrent release) got there first. The quantity
		// return already happened or is happening on that side.
		s.logger.Info("Release lost the claim, no-op", "reservationId", cmd.ReservationID)
		return nil
	}

	if err := s.returnQuantity(ctx, reservation, &domain.ReservationReleasedEvent{
		ReservationID: reservation.ReservationID,
		ProductID:     reservation.ProductID,
		WarehouseID:   reservation.WarehouseID,
		Quantity:      reservation.Quantity,
		ReleasedAt:    now,
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordReservationReleased(reservation.WarehouseID)
	}
	s.logger.Info("Released reservation",
		"reservationId", reservation.ReservationID,
		"productId", reservation.ProductID,
		"warehouseId", reservation.WarehouseID,
		"quantity", reservation.Quantity,
	)
	return nil
}

// Extend pushes an active reservation's deadline out by additionalTime. The
// conditional write pins the current deadline, so an extension cannot revive
// a reservation the sweeper is reclaiming.
func (s *ReservationService) Extend(ctx context.Context, cmd ExtendCommand) (*ReservationDTO, error) {
	if cmd.AdditionalTime <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		reservation, err := s.reservationRepo.FindByID(ctx, cmd.ReservationID)
		if err != nil {
			s.logger.Error("Failed to load reservation", "reservationId", cmd.ReservationID, "error", err)
			return nil, fmt.Errorf("failed to load reservation: %w", err)
		}
		if reservation == nil {
			return nil, domain.ErrReservationNotFound
		}

		now := s.now()
		if reservation.StatusAt(now) != domain.ReservationStatusActive {
			return nil, domain.ErrReservationNotActive
		}

		newExpiry := reservation.ExpiresAt.Add(cmd.AdditionalTime)
		extended, err := s.reservationRepo.ExtendExpiry(ctx, cmd.ReservationID, reservation.ExpiresAt, newExpiry)
		if err != nil {
			s.logger.Error("Failed to extend reservation", "reservationId", cmd.ReservationID, "error", err)
			return nil, fmt.Errorf("failed to extend reservation: %w", err)
		}
		if !extended {
			// Deadline moved under us; reload and try again
			lastErr = domain.ErrConcurrentModification
			continue
		}

		reservation.ExpiresAt = newExpiry
		s.publishExtended(ctx, reservation)
		if s.metrics != nil {
			s.metrics.RecordReservationExtended(reservation.WarehouseID)
		}
		s.logger.Info("Extended reservation",
			"reservationId", reservation.ReservationID,
			"expiresAt", newExpiry,
		)
		return ToReservationDTO(reservation, now), nil
	}

	return nil, lastErr
}

// GetReservation returns a snapshot with the status derived at call time
func (s *ReservationService) GetReservation(ctx context.Context, query GetReservationQuery) (*ReservationDTO, error) {
	reservation, err := s.reservationRepo.FindByID(ctx, query.ReservationID)
	if err != nil {
		s.logger.Error("Failed to load reservation", "reservationId", query.ReservationID, "error", err)
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	if reservation == nil {
		return nil, domain.ErrReservationNotFound
	}
	return ToReservationDTO(reservation, s.now()), nil
}

// returnQuantity shifts a claimed reservation's quantity back to available.
// Called after a won claim, by Release here and by the sweeper.
func (s *ReservationService) returnQuantity(ctx context.Context, reservation *domain.StockReservation, event domain.DomainEvent) error {
	unlock := s.locks.Lock(pairKey(reservation.ProductID, reservation.WarehouseID))
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		item, err := s.repo.Find(ctx, reservation.ProductID, reservation.WarehouseID)
		if err != nil {
			return fmt.Errorf("failed to load inventory item: %w", err)
		}
		if item == nil {
			// A pair with a live reservation cannot be absent
			s.logger.Error("Inventory item missing for claimed reservation",
				"reservationId", reservation.ReservationID,
				"productId", reservation.ProductID,
				"warehouseId", reservation.WarehouseID,
			)
			return domain.ErrInternalConsistency
		}

		if err := item.ShiftToAvailable(reservation.Quantity); err != nil {
			s.logger.Error("Failed to return reserved quantity",
				"reservationId", reservation.ReservationID,
				"quantity", reservation.Quantity,
				"reserved", item.ReservedQuantity,
				"error", err,
			)
			return err
		}
		item.AddDomainEvent(event)

		if err := s.repo.Save(ctx, item); err != nil {
			if err == domain.ErrConcurrentModification {
				lastErr = err
				if s.metrics != nil {
					s.metrics.RecordConcurrencyConflict("return")
				}
				continue
			}
			return fmt.Errorf("failed to save inventory item: %w", err)
		}
		return nil
	}
	return lastErr
}

func (s *ReservationService) publishExtended(ctx context.Context, reservation *domain.StockReservation) {
	if s.outboxRepo == nil || s.eventFactory == nil {
		return
	}

	cloudEvent := s.eventFactory.CreateReservationEvent(
		ctx,
		cloudevents.ReservationExtended,
		reservation.ReservationID,
		reservation.ProductID,
		reservation.WarehouseID,
		reservation.Quantity,
		&reservation.ExpiresAt,
		reservation.Reason,
	)
	outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
		reservation.ReservationID,
		"StockReservation",
		kafka.TopicForEventType(cloudEvent.Type),
		cloudEvent,
	)
	if err != nil {
		s.logger.Error("Failed to build extension event", "reservationId", reservation.ReservationID, "error", err)
		return
	}
	if err := s.outboxRepo.Save(ctx, outboxEvent); err != nil {
		s.logger.Error("Failed to enqueue extension event", "reservationId", reservation.ReservationID, "error", err)
	}
}

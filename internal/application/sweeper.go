package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/metrics"
)

// Sweeper reclaims expired reservations on a fixed interval. Each cycle lists
// expired unclaimed reservations and claims them one at a time; a claim lost
// to a racing release just skips that reservation. Failures are isolated per
// reservation and retried on the next cycle.
type Sweeper struct {
	reservations domain.ReservationRepository
	service      *ReservationService
	logger       *logging.Logger
	metrics      *metrics.Metrics

	interval  time.Duration
	batchSize int
	now       func() time.Time

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// SweeperConfig holds configuration for the expiry sweeper
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultSweeperConfig returns default configuration
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval:  10 * time.Second,
		BatchSize: 100,
	}
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(
	reservations domain.ReservationRepository,
	service *ReservationService,
	logger *logging.Logger,
	m *metrics.Metrics,
	config *SweeperConfig,
) *Sweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}

	return &Sweeper{
		reservations: reservations,
		service:      service,
		logger:       logger,
		metrics:      m,
		interval:     config.Interval,
		batchSize:    config.BatchSize,
		now:          time.Now,
		stopCh:       make(chan struct{}),
		stoppedCh:    make(chan struct{}),
	}
}

// WithClock overrides the clock. Test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Start starts the sweeper loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting expiry sweeper", "interval", s.interval, "batchSize", s.batchSize)

	go s.run(ctx)
	return nil
}

// Stop stops the sweeper loop and waits for the current cycle to finish
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper not running")
	}
	s.mu.Unlock()

	s.logger.Info("Stopping expiry sweeper")
	close(s.stopCh)
	<-s.stoppedCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.logger.Info("Sweeper context cancelled")
			return
		}
	}
}

// Sweep runs one reclamation cycle and reports how many reservations were
// scanned, reclaimed, and failed.
func (s *Sweeper) Sweep(ctx context.Context) (scanned, reclaimed, failed int) {
	start := time.Now()
	now := s.now()

	expired, err := s.reservations.FindExpired(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to list expired reservations", "error", err)
		return 0, 0, 0
	}
	scanned = len(expired)

	for _, reservation := range expired {
		ok, err := s.reclaim(ctx, reservation, now)
		if err != nil {
			failed++
			s.logger.Error("Failed to reclaim reservation",
				"reservationId", reservation.ReservationID,
				"productId", reservation.ProductID,
				"warehouseId", reservation.WarehouseID,
				"error", err,
			)
			continue
		}
		if ok {
			reclaimed++
		}
	}

	if s.metrics != nil {
		s.metrics.RecordSweep(time.Since(start))
	}
	if scanned > 0 {
		s.logger.SweepCycle(ctx, scanned, reclaimed, failed, time.Since(start))
	}
	return scanned, reclaimed, failed
}

// reclaim claims one expired reservation and returns its quantity. A lost
// claim means a racing release already returned the quantity; that is a
// clean no-op, not an error.
func (s *Sweeper) reclaim(ctx context.Context, reservation *domain.StockReservation, now time.Time) (bool, error) {
	claimed, err := s.reservations.MarkReclaimed(ctx, reservation.ReservationID, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim reservation: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if err := s.service.returnQuantity(ctx, reservation, &domain.ReservationReclaimedEvent{
		ReservationID: reservation.ReservationID,
		ProductID:     reservation.ProductID,
		WarehouseID:   reservation.WarehouseID,
		Quantity:      reservation.Quantity,
		ExpiredAt:     reservation.ExpiresAt,
		ReclaimedAt:   now,
	}); err != nil {
		return false, err
	}

	if s.metrics != nil {
		s.metrics.RecordReservationReclaimed(reservation.WarehouseID)
	}
	return true, nil
}

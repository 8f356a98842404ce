package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/keylock"
)

const testTTL = 15 * time.Minute

func newTestReservationService(repo *fakeInventoryRepo, reservations *fakeReservationRepo) *ReservationService {
	repo.reservations = reservations
	return NewReservationService(repo, reservations, keylock.NewRegistry(), nil, nil, nil, newTestLogger(), testTTL)
}

func TestReserveAndRelease_RoundTrip(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	reservations := newFakeReservationRepo()
	service := newTestReservationService(repo, reservations)

	dto, err := service.Reserve(context.Background(), ReserveCommand{
		ProductID:   "SKU-1",
		WarehouseID: "WH-A",
		Quantity:    7,
		Reason:      "order hold",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationStatusActive), dto.Status)
	assert.Equal(t, 7, dto.Quantity)

	item := repo.get("SKU-1", "WH-A")
	assert.Equal(t, 3, item.AvailableQuantity)
	assert.Equal(t, 7, item.ReservedQuantity)

	err = service.Release(context.Background(), ReleaseCommand{ReservationID: dto.ReservationID})
	require.NoError(t, err)

	item = repo.get("SKU-1", "WH-A")
	assert.Equal(t, 10, item.AvailableQuantity)
	assert.Equal(t, 0, item.ReservedQuantity)

	stored := reservations.get(dto.ReservationID)
	require.NotNil(t, stored.ReleasedAt)

	// Released is terminal
	err = service.Release(context.Background(), ReleaseCommand{ReservationID: dto.ReservationID})
	assert.ErrorIs(t, err, domain.ErrReservationNotActive)
}

func TestReserve_DefaultTTLApplied(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	reservations := newFakeReservationRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service := newTestReservationService(repo, reservations).WithClock(fixedClock(now))

	dto, err := service.Reserve(context.Background(), ReserveCommand{
		ProductID:   "SKU-1",
		WarehouseID: "WH-A",
		Quantity:    1,
	})
	require.NoError(t, err)
	assert.True(t, dto.ExpiresAt.Equal(now.Add(testTTL)))
}

func TestReserve_InvalidQuantity(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	service := newTestReservationService(repo, newFakeReservationRepo())

	_, err := service.Reserve(context.Background(), ReserveCommand{
		ProductID:   "SKU-1",
		WarehouseID: "WH-A",
		Quantity:    0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestReserve_NegativeTTLRejected(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	service := newTestReservationService(repo, newFakeReservationRepo())

	_, err := service.Reserve(context.Background(), ReserveCommand{
		ProductID:   "SKU-1",
		WarehouseID: "WH-A",
		Quantity:    1,
		TTL:         -5 * time.Second,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	// A rejected reserve must not touch the counters.
	item := repo.get("SKU-1", "WH-A")
	assert.Equal(t, 10, item.AvailableQuantity)
	assert.Equal(t, 0, item.ReservedQuantity)
}

func TestReserve_UnknownPairHasZeroAvailable(t *testing.T) {
	repo := newFakeInventoryRepo()
	service := newTestReservationService(repo, newFakeReservationRepo())

	_, err := service.Reserve(context.Background(), ReserveCommand{
		ProductID:   "SKU-1",
		WarehouseID: "WH-A",
		Quantity:    1,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestReserve_MoreThanAvailable(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 5, 5)
	service := newTestReservationService(repo, newFakeReservationRepo())

	_, err := service.Reserve(context.Background(), ReserveCommand{
		ProductID:   "SKU-1",
		WarehouseID: "WH-A",
		Quantity:    6,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	item := repo.get("SKU-1", "WH-A")
	assert.Equal(t, 5, item.AvailableQuantity)
	assert.Equal(t, 5, item.ReservedQuantity)
}

func TestReserve_ConcurrentHoldsNeverOversell(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	reservations := newFakeReservationRepo()
	service := newTestReservationService(repo, reservations)

	const attempts = 20
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Reserve(context.Background(), ReserveCommand{
				ProductID:   "SKU-1",
				WarehouseID: "WH-A",
				Quantity:    1,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch err {
		case nil:
			succeeded++
		case domain.ErrInsufficientStock:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, rejected)

	item := repo.get("SKU-1", "WH-A")
	assert.Equal(t, 0, item.AvailableQuantity)
	assert.Equal(t, 10, item.ReservedQuantity)
}

func TestRelease_UnknownReservation(t *testing.T) {
	repo := newFakeInventoryRepo()
	service := newTestReservationService(repo, newFakeReservationRepo())

	err := service.Release(context.Background(), ReleaseCommand{ReservationID: "missing"})
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func TestRelease_ExpiredReservation(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 3, 7)
	reservations := newFakeReservationRepo()
	now := time.Now()
	reservation := domain.NewStockReservation("SKU-1", "WH-A", 7, time.Minute, "")
	reservation.ExpiresAt = now.Add(-time.Second)
	require.NoError(t, reservations.Insert(context.Background(), reservation))

	service := newTestReservationService(repo, reservations)
	err := service.Release(context.Background(), ReleaseCommand{ReservationID: reservation.ReservationID})
	assert.ErrorIs(t, err, domain.ErrReservationNotActive)

	// Only the sweeper returns expired holds
	item := repo.get("SKU-1", "WH-A")
	assert.Equal(t, 3, item.AvailableQuantity)
	assert.Equal(t, 7, item.ReservedQuantity)
}

func TestRelease_LostClaimIsSilentNoOp(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 3, 7)
	reservations := newFakeReservationRepo()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reservation := domain.NewStockReservation("SKU-1", "WH-A", 7, time.Minute, "")
	reservation.ExpiresAt = now.Add(time.Second)
	require.NoError(t, reservations.Insert(context.Background(), reservation))

	// A reclaimer wins the claim between the status read and the release
	// write. The release must no-op without an error and without touching
	// the counters a second time.
	reservations.afterFindByID = func() {
		reservations.afterFindByID = nil
		_, err := reservations.MarkReclaimed(context.Background(), reservation.ReservationID, reservation.ExpiresAt)
		require.NoError(t, err)
	}

	service := newTestReservationService(repo, reservations).WithClock(fixedClock(now))
	err := service.Release(context.Background(), ReleaseCommand{ReservationID: reservation.ReservationID})
	require.NoError(t, err)

	item := repo.get("SKU-1", "WH-A")
	assert.Equal(t, 3, item.AvailableQuantity)
	assert.Equal(t, 7, item.ReservedQuantity)
	require.NotNil(t, reservations.get(reservation.ReservationID).ReclaimedAt)
	assert.Nil(t, reservations.get(reservation.ReservationID).ReleasedAt)
}

func TestExtend_MovesDeadlineFromCurrentExpiry(t *testing.T) {
	repo := newFakeInventoryRepo()
	reservations := newFakeReservationRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reservation := domain.NewStockReservation("SKU-1", "WH-A", 2, time.Minute, "")
	reservation.ExpiresAt = now.Add(time.Minute)
	require.NoError(t, reservations.Insert(context.Background(), reservation))

	service := newTestReservationService(repo, reservations).WithClock(fixedClock(now))
	dto, err := service.Extend(context.Background(), ExtendCommand{
		ReservationID:  reservation.ReservationID,
		AdditionalTime: 10 * time.Minute,
	})
	require.NoError(t, err)
	assert.True(t, dto.ExpiresAt.Equal(now.Add(11*time.Minute)))

	// A second extension stacks on the moved deadline
	dto, err = service.Extend(context.Background(), ExtendCommand{
		ReservationID:  reservation.ReservationID,
		AdditionalTime: time.Minute,
	})
	require.NoError(t, err)
	assert.True(t, dto.ExpiresAt.Equal(now.Add(12*time.Minute)))
}

func TestExtend_RetriesWhenDeadlineMoved(t *testing.T) {
	repo := newFakeInventoryRepo()
	reservations := newFakeReservationRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reservation := domain.NewStockReservation("SKU-1", "WH-A", 2, time.Minute, "")
	reservation.ExpiresAt = now.Add(time.Minute)
	require.NoError(t, reservations.Insert(context.Background(), reservation))

	// Another extender moves the deadline between this one's read and write,
	// so the first conditional update misses and the service reloads.
	reservations.afterFindByID = func() {
		reservations.afterFindByID = nil
		ok, err := reservations.ExtendExpiry(context.Background(), reservation.ReservationID,
			now.Add(time.Minute), now.Add(5*time.Minute))
		require.NoError(t, err)
		require.True(t, ok)
	}

	service := newTestReservationService(repo, reservations).WithClock(fixedClock(now))
	dto, err := service.Extend(context.Background(), ExtendCommand{
		ReservationID:  reservation.ReservationID,
		AdditionalTime: 10 * time.Minute,
	})
	require.NoError(t, err)
	assert.True(t, dto.ExpiresAt.Equal(now.Add(15*time.Minute)))
}

func TestExtend_ExpiredReservation(t *testing.T) {
	repo := newFakeInventoryRepo()
	reservations := newFakeReservationRepo()
	now := time.Now()
	reservation := domain.NewStockReservation("SKU-1", "WH-A", 2, time.Minute, "")
	reservation.ExpiresAt = now.Add(-time.Second)
	require.NoError(t, reservations.Insert(context.Background(), reservation))

	service := newTestReservationService(repo, reservations)
	_, err := service.Extend(context.Background(), ExtendCommand{
		ReservationID:  reservation.ReservationID,
		AdditionalTime: time.Minute,
	})
	assert.ErrorIs(t, err, domain.ErrReservationNotActive)
}

func TestExtend_Validation(t *testing.T) {
	repo := newFakeInventoryRepo()
	service := newTestReservationService(repo, newFakeReservationRepo())

	_, err := service.Extend(context.Background(), ExtendCommand{
		ReservationID:  "r-1",
		AdditionalTime: 0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = service.Extend(context.Background(), ExtendCommand{
		ReservationID:  "missing",
		AdditionalTime: time.Minute,
	})
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func TestGetReservation_DerivesStatusFromClock(t *testing.T) {
	repo := newFakeInventoryRepo()
	reservations := newFakeReservationRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reservation := domain.NewStockReservation("SKU-1", "WH-A", 2, time.Minute, "")
	reservation.ExpiresAt = now.Add(time.Minute)
	require.NoError(t, reservations.Insert(context.Background(), reservation))

	service := newTestReservationService(repo, reservations).WithClock(fixedClock(now))
	dto, err := service.GetReservation(context.Background(), GetReservationQuery{ReservationID: reservation.ReservationID})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationStatusActive), dto.Status)

	service.WithClock(fixedClock(now.Add(2 * time.Minute)))
	dto, err = service.GetReservation(context.Background(), GetReservationQuery{ReservationID: reservation.ReservationID})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationStatusExpired), dto.Status)
}

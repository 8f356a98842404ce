package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/keylock"
)

func newTestLedgerService(repo *fakeInventoryRepo, movements *fakeMovementRepo) *LedgerService {
	if movements == nil {
		movements = &fakeMovementRepo{}
	}
	return NewLedgerService(repo, movements, keylock.NewRegistry(), nil, newTestLogger())
}

func TestApplyMovement_InboundCreatesItem(t *testing.T) {
	repo := newFakeInventoryRepo()
	service := newTestLedgerService(repo, nil)

	dto, err := service.ApplyMovement(context.Background(), ApplyMovementCommand{
		ProductID:    "SKU-1",
		WarehouseID:  "WH-A",
		MovementType: domain.MovementInbound,
		Quantity:     10,
		Reason:       "initial receipt",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, dto.PreviousAvailable)
	assert.Equal(t, 10, dto.NewAvailable)

	item := repo.get("SKU-1", "WH-A")
	require.NotNil(t, item)
	assert.Equal(t, 10, item.AvailableQuantity)
	assert.Equal(t, 0, item.ReservedQuantity)
	assert.Equal(t, int64(1), item.Version)
	require.Len(t, repo.movements, 1)
	assert.Equal(t, domain.MovementInbound, repo.movements[0].Type)
}

func TestApplyMovement_OutboundInsufficientStock(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 5, 0)
	service := newTestLedgerService(repo, nil)

	_, err := service.ApplyMovement(context.Background(), ApplyMovementCommand{
		ProductID:    "SKU-1",
		WarehouseID:  "WH-A",
		MovementType: domain.MovementOutbound,
		Quantity:     6,
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 5, repo.get("SKU-1", "WH-A").AvailableQuantity)
	assert.Empty(t, repo.movements)
}

func TestApplyMovement_OutboundNeverTouchesReserved(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 3, 7)
	service := newTestLedgerService(repo, nil)

	_, err := service.ApplyMovement(context.Background(), ApplyMovementCommand{
		ProductID:    "SKU-1",
		WarehouseID:  "WH-A",
		MovementType: domain.MovementOutbound,
		Quantity:     4,
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	item := repo.get("SKU-1", "WH-A")
	assert.Equal(t, 3, item.AvailableQuantity)
	assert.Equal(t, 7, item.ReservedQuantity)
}

func TestApplyMovement_NegativeAdjustment(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	service := newTestLedgerService(repo, nil)

	dto, err := service.ApplyMovement(context.Background(), ApplyMovementCommand{
		ProductID:    "SKU-1",
		WarehouseID:  "WH-A",
		MovementType: domain.MovementAdjustment,
		Quantity:     -4,
		Reason:       "cycle count",
	})

	require.NoError(t, err)
	assert.Equal(t, 6, dto.NewAvailable)
	assert.Equal(t, 6, repo.get("SKU-1", "WH-A").AvailableQuantity)
}

func TestApplyMovement_RejectsLoneTransferLegs(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	service := newTestLedgerService(repo, nil)

	for _, mt := range []domain.MovementType{domain.MovementTransferOut, domain.MovementTransferIn} {
		_, err := service.ApplyMovement(context.Background(), ApplyMovementCommand{
			ProductID:    "SKU-1",
			WarehouseID:  "WH-A",
			MovementType: mt,
			Quantity:     4,
		})
		assert.ErrorIs(t, err, domain.ErrTransferMovementNotAllowed)
	}

	// Counters untouched, nothing in the audit trail.
	assert.Equal(t, 10, repo.get("SKU-1", "WH-A").AvailableQuantity)
	assert.Empty(t, repo.movements)
}

func TestApplyMovement_InvalidQuantity(t *testing.T) {
	repo := newFakeInventoryRepo()
	service := newTestLedgerService(repo, nil)

	for _, quantity := range []int{0, -3} {
		_, err := service.ApplyMovement(context.Background(), ApplyMovementCommand{
			ProductID:    "SKU-1",
			WarehouseID:  "WH-A",
			MovementType: domain.MovementInbound,
			Quantity:     quantity,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	}
}

func TestApplyMovement_RetriesVersionConflict(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	repo.forceConflicts = 2
	service := newTestLedgerService(repo, nil)

	dto, err := service.ApplyMovement(context.Background(), ApplyMovementCommand{
		ProductID:    "SKU-1",
		WarehouseID:  "WH-A",
		MovementType: domain.MovementInbound,
		Quantity:     5,
	})

	require.NoError(t, err)
	assert.Equal(t, 15, dto.NewAvailable)
}

func TestApplyMovement_ConflictRetriesExhausted(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	repo.forceConflicts = saveAttempts
	service := newTestLedgerService(repo, nil)

	_, err := service.ApplyMovement(context.Background(), ApplyMovementCommand{
		ProductID:    "SKU-1",
		WarehouseID:  "WH-A",
		MovementType: domain.MovementInbound,
		Quantity:     5,
	})

	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, 10, repo.get("SKU-1", "WH-A").AvailableQuantity)
}

func TestGetAvailable_UnknownPairReadsAsZero(t *testing.T) {
	repo := newFakeInventoryRepo()
	service := newTestLedgerService(repo, nil)

	dto, err := service.GetAvailable(context.Background(), GetAvailableQuery{
		ProductID:   "SKU-1",
		WarehouseID: "WH-A",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, dto.AvailableQuantity)
	assert.Equal(t, 0, dto.ReservedQuantity)
	assert.Equal(t, 0, dto.TotalQuantity)
}

func TestGetMovementHistory_NewestFirstWithLimit(t *testing.T) {
	repo := newFakeInventoryRepo()
	movements := &fakeMovementRepo{}
	base := time.Now()
	for i := 0; i < 5; i++ {
		movements.movements = append(movements.movements, &domain.StockMovement{
			MovementID:  string(rune('a' + i)),
			ProductID:   "SKU-1",
			WarehouseID: "WH-A",
			Type:        domain.MovementInbound,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}
	service := newTestLedgerService(repo, movements)

	history, err := service.GetMovementHistory(context.Background(), MovementHistoryQuery{
		ProductID:   "SKU-1",
		WarehouseID: "WH-A",
		Limit:       3,
	})

	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "e", history[0].MovementID)
	assert.Equal(t, "d", history[1].MovementID)
	assert.Equal(t, "c", history[2].MovementID)
}

package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/keylock"
)

func newTestTransferService(repo *fakeInventoryRepo) *TransferService {
	return NewTransferService(repo, keylock.NewRegistry(), nil, newTestLogger())
}

func TestTransfer_MovesStockWithPairedMovements(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 50, 0)
	repo.seed("SKU-1", "WH-B", 10, 0)
	service := newTestTransferService(repo)

	result, err := service.Transfer(context.Background(), TransferCommand{
		ProductID:       "SKU-1",
		FromWarehouseID: "WH-A",
		ToWarehouseID:   "WH-B",
		Quantity:        30,
		Reason:          "rebalance",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.TransferID)
	assert.Equal(t, 20, repo.get("SKU-1", "WH-A").AvailableQuantity)
	assert.Equal(t, 40, repo.get("SKU-1", "WH-B").AvailableQuantity)

	assert.Equal(t, string(domain.MovementTransferOut), result.Outbound.Type)
	assert.Equal(t, string(domain.MovementTransferIn), result.Inbound.Type)
	assert.Equal(t, result.TransferID, result.Outbound.TransferID)
	assert.Equal(t, result.TransferID, result.Inbound.TransferID)

	require.Len(t, repo.movements, 2)
	assert.Equal(t, repo.movements[0].TransferID, repo.movements[1].TransferID)
}

func TestTransfer_DestinationCreatedLazily(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	service := newTestTransferService(repo)

	_, err := service.Transfer(context.Background(), TransferCommand{
		ProductID:       "SKU-1",
		FromWarehouseID: "WH-A",
		ToWarehouseID:   "WH-B",
		Quantity:        4,
	})

	require.NoError(t, err)
	to := repo.get("SKU-1", "WH-B")
	require.NotNil(t, to)
	assert.Equal(t, 4, to.AvailableQuantity)
	assert.Equal(t, int64(1), to.Version)
}

func TestTransfer_SameWarehouseRejected(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	service := newTestTransferService(repo)

	_, err := service.Transfer(context.Background(), TransferCommand{
		ProductID:       "SKU-1",
		FromWarehouseID: "WH-A",
		ToWarehouseID:   "WH-A",
		Quantity:        1,
	})
	assert.ErrorIs(t, err, domain.ErrTransferSameWarehouse)
}

func TestTransfer_InvalidQuantity(t *testing.T) {
	repo := newFakeInventoryRepo()
	service := newTestTransferService(repo)

	_, err := service.Transfer(context.Background(), TransferCommand{
		ProductID:       "SKU-1",
		FromWarehouseID: "WH-A",
		ToWarehouseID:   "WH-B",
		Quantity:        0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestTransfer_InsufficientSourceLeavesBothSidesUntouched(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 5, 0)
	repo.seed("SKU-1", "WH-B", 2, 0)
	service := newTestTransferService(repo)

	_, err := service.Transfer(context.Background(), TransferCommand{
		ProductID:       "SKU-1",
		FromWarehouseID: "WH-A",
		ToWarehouseID:   "WH-B",
		Quantity:        6,
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 5, repo.get("SKU-1", "WH-A").AvailableQuantity)
	assert.Equal(t, 2, repo.get("SKU-1", "WH-B").AvailableQuantity)
	assert.Empty(t, repo.movements)
}

func TestTransfer_UnknownSourceRejected(t *testing.T) {
	repo := newFakeInventoryRepo()
	service := newTestTransferService(repo)

	_, err := service.Transfer(context.Background(), TransferCommand{
		ProductID:       "SKU-1",
		FromWarehouseID: "WH-A",
		ToWarehouseID:   "WH-B",
		Quantity:        1,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Nil(t, repo.get("SKU-1", "WH-B"))
}

func TestTransfer_ReservedStockStaysBehind(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 4, 6)
	repo.seed("SKU-1", "WH-B", 0, 0)
	service := newTestTransferService(repo)

	_, err := service.Transfer(context.Background(), TransferCommand{
		ProductID:       "SKU-1",
		FromWarehouseID: "WH-A",
		ToWarehouseID:   "WH-B",
		Quantity:        5,
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	from := repo.get("SKU-1", "WH-A")
	assert.Equal(t, 4, from.AvailableQuantity)
	assert.Equal(t, 6, from.ReservedQuantity)
}

func TestTransfer_RetriesVersionConflict(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	repo.seed("SKU-1", "WH-B", 0, 0)
	repo.forceConflicts = 2
	service := newTestTransferService(repo)

	result, err := service.Transfer(context.Background(), TransferCommand{
		ProductID:       "SKU-1",
		FromWarehouseID: "WH-A",
		ToWarehouseID:   "WH-B",
		Quantity:        10,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, repo.get("SKU-1", "WH-A").AvailableQuantity)
	assert.Equal(t, 10, repo.get("SKU-1", "WH-B").AvailableQuantity)
	assert.Equal(t, 10, result.Quantity)
}

func TestTransfer_ConflictRetriesExhausted(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.seed("SKU-1", "WH-A", 10, 0)
	repo.forceConflicts = saveAttempts
	service := newTestTransferService(repo)

	_, err := service.Transfer(context.Background(), TransferCommand{
		ProductID:       "SKU-1",
		FromWarehouseID: "WH-A",
		ToWarehouseID:   "WH-B",
		Quantity:        1,
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, 10, repo.get("SKU-1", "WH-A").AvailableQuantity)
}

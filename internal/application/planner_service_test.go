package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklane/allocation-service/internal/domain"
)

func newTestPlannerService(repo *fakeInventoryRepo, catalog *fakeCatalog) *PlannerService {
	return NewPlannerService(repo, catalog, nil, nil, nil, newTestLogger(), 0)
}

// Frankfurt-ish requester; WH-A is closest, then WH-B, then WH-C.
var testLocation = &domain.Coordinate{Latitude: 50.1, Longitude: 8.7}

func newPlannerFixture() (*fakeInventoryRepo, *fakeCatalog) {
	repo := newFakeInventoryRepo()
	catalog := newFakeCatalog()
	catalog.stocked["SKU-1"] = []string{"WH-A", "WH-B", "WH-C"}
	catalog.addWarehouse("WH-A", 50.9, 6.9, true)  // Cologne
	catalog.addWarehouse("WH-B", 48.1, 11.6, true) // Munich
	catalog.addWarehouse("WH-C", 52.5, 13.4, true) // Berlin
	return repo, catalog
}

func TestPlan_SingleWarehouseWhenNearestCovers(t *testing.T) {
	repo, catalog := newPlannerFixture()
	repo.seed("SKU-1", "WH-A", 10, 0)
	repo.seed("SKU-1", "WH-B", 20, 0)
	service := newTestPlannerService(repo, catalog)

	plan, err := service.Plan(context.Background(), PlanQuery{
		ProductID:         "SKU-1",
		RequiredQuantity:  8,
		RequesterLocation: testLocation,
	})

	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "WH-A", plan.Lines[0].WarehouseID)
	assert.Equal(t, 8, plan.Lines[0].Quantity)
}

func TestPlan_PrefersSingleWarehouseOverNearerSplit(t *testing.T) {
	repo, catalog := newPlannerFixture()
	repo.seed("SKU-1", "WH-A", 5, 0)
	repo.seed("SKU-1", "WH-B", 20, 0)
	service := newTestPlannerService(repo, catalog)

	// The nearest warehouse cannot cover the requirement alone, but a single
	// farther one can: one shipment beats two.
	plan, err := service.Plan(context.Background(), PlanQuery{
		ProductID:         "SKU-1",
		RequiredQuantity:  10,
		RequesterLocation: testLocation,
	})

	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "WH-B", plan.Lines[0].WarehouseID)
	assert.Equal(t, 10, plan.Lines[0].Quantity)
}

func TestPlan_SplitsNearestFirst(t *testing.T) {
	repo, catalog := newPlannerFixture()
	repo.seed("SKU-1", "WH-A", 5, 0)
	repo.seed("SKU-1", "WH-B", 8, 0)
	service := newTestPlannerService(repo, catalog)

	plan, err := service.Plan(context.Background(), PlanQuery{
		ProductID:         "SKU-1",
		RequiredQuantity:  12,
		RequesterLocation: testLocation,
	})

	require.NoError(t, err)
	require.Len(t, plan.Lines, 2)
	assert.Equal(t, "WH-A", plan.Lines[0].WarehouseID)
	assert.Equal(t, 5, plan.Lines[0].Quantity)
	assert.Equal(t, "WH-B", plan.Lines[1].WarehouseID)
	assert.Equal(t, 7, plan.Lines[1].Quantity)
}

func TestPlan_WithoutLocationDrawsLargestFirst(t *testing.T) {
	repo, catalog := newPlannerFixture()
	repo.seed("SKU-1", "WH-A", 3, 0)
	repo.seed("SKU-1", "WH-B", 9, 0)
	repo.seed("SKU-1", "WH-C", 6, 0)
	service := newTestPlannerService(repo, catalog)

	plan, err := service.Plan(context.Background(), PlanQuery{
		ProductID:        "SKU-1",
		RequiredQuantity: 14,
	})

	require.NoError(t, err)
	require.Len(t, plan.Lines, 2)
	assert.Equal(t, "WH-B", plan.Lines[0].WarehouseID)
	assert.Equal(t, 9, plan.Lines[0].Quantity)
	assert.Equal(t, "WH-C", plan.Lines[1].WarehouseID)
	assert.Equal(t, 5, plan.Lines[1].Quantity)
}

func TestPlan_TieBreaksOnWarehouseID(t *testing.T) {
	repo := newFakeInventoryRepo()
	catalog := newFakeCatalog()
	catalog.stocked["SKU-1"] = []string{"WH-B", "WH-A"}
	// Same location, same stock: the plan must not depend on listing order
	catalog.addWarehouse("WH-A", 50.0, 8.0, true)
	catalog.addWarehouse("WH-B", 50.0, 8.0, true)
	repo.seed("SKU-1", "WH-A", 6, 0)
	repo.seed("SKU-1", "WH-B", 6, 0)
	service := newTestPlannerService(repo, catalog)

	plan, err := service.Plan(context.Background(), PlanQuery{
		ProductID:         "SKU-1",
		RequiredQuantity:  6,
		RequesterLocation: testLocation,
	})
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "WH-A", plan.Lines[0].WarehouseID)

	plan, err = service.Plan(context.Background(), PlanQuery{
		ProductID:        "SKU-1",
		RequiredQuantity: 6,
	})
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "WH-A", plan.Lines[0].WarehouseID)
}

func TestPlan_InsufficientAggregateStock(t *testing.T) {
	repo, catalog := newPlannerFixture()
	repo.seed("SKU-1", "WH-A", 5, 0)
	repo.seed("SKU-1", "WH-B", 4, 0)
	service := newTestPlannerService(repo, catalog)

	_, err := service.Plan(context.Background(), PlanQuery{
		ProductID:        "SKU-1",
		RequiredQuantity: 10,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientAggregateStock)
}

func TestPlan_ReservedStockIsNotPlannable(t *testing.T) {
	repo, catalog := newPlannerFixture()
	repo.seed("SKU-1", "WH-A", 2, 8)
	service := newTestPlannerService(repo, catalog)

	_, err := service.Plan(context.Background(), PlanQuery{
		ProductID:        "SKU-1",
		RequiredQuantity: 5,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientAggregateStock)
}

func TestPlan_SkipsInactiveWarehouse(t *testing.T) {
	repo := newFakeInventoryRepo()
	catalog := newFakeCatalog()
	catalog.stocked["SKU-1"] = []string{"WH-A", "WH-B"}
	catalog.addWarehouse("WH-A", 50.0, 8.0, false)
	catalog.addWarehouse("WH-B", 48.1, 11.6, true)
	repo.seed("SKU-1", "WH-A", 50, 0)
	repo.seed("SKU-1", "WH-B", 10, 0)
	service := newTestPlannerService(repo, catalog)

	plan, err := service.Plan(context.Background(), PlanQuery{
		ProductID:        "SKU-1",
		RequiredQuantity: 10,
	})
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "WH-B", plan.Lines[0].WarehouseID)
}

func TestPlan_UnreachableWarehouseReadsAsEmpty(t *testing.T) {
	repo, catalog := newPlannerFixture()
	repo.seed("SKU-1", "WH-A", 20, 0)
	repo.seed("SKU-1", "WH-B", 20, 0)
	repo.findErrPair = map[string]error{
		pairKey("SKU-1", "WH-A"): errors.New("connection reset"),
	}
	service := newTestPlannerService(repo, catalog)

	plan, err := service.Plan(context.Background(), PlanQuery{
		ProductID:         "SKU-1",
		RequiredQuantity:  10,
		RequesterLocation: testLocation,
	})

	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "WH-B", plan.Lines[0].WarehouseID)
}

func TestPlan_AllWarehousesUnreachable(t *testing.T) {
	repo, catalog := newPlannerFixture()
	repo.findErr = errors.New("connection reset")
	service := newTestPlannerService(repo, catalog)

	_, err := service.Plan(context.Background(), PlanQuery{
		ProductID:        "SKU-1",
		RequiredQuantity: 1,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInsufficientAggregateStock)
}

func TestPlan_Validation(t *testing.T) {
	repo, catalog := newPlannerFixture()
	service := newTestPlannerService(repo, catalog)

	_, err := service.Plan(context.Background(), PlanQuery{
		ProductID:        "SKU-1",
		RequiredQuantity: 0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestPlan_NoWarehousesStockProduct(t *testing.T) {
	repo := newFakeInventoryRepo()
	catalog := newFakeCatalog()
	service := newTestPlannerService(repo, catalog)

	_, err := service.Plan(context.Background(), PlanQuery{
		ProductID:        "SKU-404",
		RequiredQuantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientAggregateStock)
}

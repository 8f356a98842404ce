package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/logging"
)

func newTestLogger() *logging.Logger {
	return logging.New(logging.DefaultConfig("test"))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeInventoryRepo is an in-memory InventoryRepository with the same
// optimistic concurrency contract as the real one: a save whose version does
// not match the stored version fails with ErrConcurrentModification.
type fakeInventoryRepo struct {
	mu           sync.Mutex
	items        map[string]*domain.InventoryItem
	movements    []*domain.StockMovement
	reservations *fakeReservationRepo

	findErr     error
	findErrPair map[string]error
	saveErr     error

	// forceConflicts makes the next N saves fail with a version conflict
	forceConflicts int
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{items: make(map[string]*domain.InventoryItem)}
}

func (f *fakeInventoryRepo) seed(productID, warehouseID string, available, reserved int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := domain.NewInventoryItem(productID, warehouseID)
	item.AvailableQuantity = available
	item.ReservedQuantity = reserved
	item.Version = 1
	f.items[pairKey(productID, warehouseID)] = item
}

func (f *fakeInventoryRepo) get(productID, warehouseID string) *domain.InventoryItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[pairKey(productID, warehouseID)]
}

func copyItem(item *domain.InventoryItem) *domain.InventoryItem {
	cp := *item
	cp.DomainEvents = nil
	return &cp
}

func (f *fakeInventoryRepo) Find(ctx context.Context, productID, warehouseID string) (*domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if err := f.findErrPair[pairKey(productID, warehouseID)]; err != nil {
		return nil, err
	}
	item, ok := f.items[pairKey(productID, warehouseID)]
	if !ok {
		return nil, nil
	}
	return copyItem(item), nil
}

func (f *fakeInventoryRepo) persist(item *domain.InventoryItem) error {
	key := pairKey(item.ProductID, item.WarehouseID)
	stored, ok := f.items[key]
	if ok {
		if item.Version != stored.Version {
			return domain.ErrConcurrentModification
		}
	} else if item.Version != 0 {
		return domain.ErrConcurrentModification
	}
	item.Version++
	item.ClearDomainEvents()
	f.items[key] = copyItem(item)
	return nil
}

func (f *fakeInventoryRepo) Save(ctx context.Context, item *domain.InventoryItem, movements ...*domain.StockMovement) error {
	return f.SaveAll(ctx, []*domain.InventoryItem{item}, movements)
}

func (f *fakeInventoryRepo) SaveAll(ctx context.Context, items []*domain.InventoryItem, movements []*domain.StockMovement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.forceConflicts > 0 {
		f.forceConflicts--
		return domain.ErrConcurrentModification
	}
	// All or nothing: validate every version before committing anything.
	for _, item := range items {
		key := pairKey(item.ProductID, item.WarehouseID)
		stored, ok := f.items[key]
		if ok && item.Version != stored.Version {
			return domain.ErrConcurrentModification
		}
		if !ok && item.Version != 0 {
			return domain.ErrConcurrentModification
		}
	}
	for _, item := range items {
		if err := f.persist(item); err != nil {
			return err
		}
	}
	f.movements = append(f.movements, movements...)
	return nil
}

func (f *fakeInventoryRepo) SaveWithReservation(ctx context.Context, item *domain.InventoryItem, reservation *domain.StockReservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.forceConflicts > 0 {
		f.forceConflicts--
		return domain.ErrConcurrentModification
	}
	if err := f.persist(item); err != nil {
		return err
	}
	if f.reservations != nil {
		f.reservations.store(reservation)
	}
	reservation.ClearDomainEvents()
	return nil
}

// fakeReservationRepo mirrors the conditional claim semantics of the Mongo
// repository: Mark* and ExtendExpiry apply at most once, guarded by the
// reservation's state at the moment of the write.
type fakeReservationRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.StockReservation

	findErr error
	markErr error

	// afterFindByID runs after each FindByID, with the lock released. Lets a
	// test squeeze a competing claim between a read and the following write.
	afterFindByID func()
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{byID: make(map[string]*domain.StockReservation)}
}

func copyReservation(r *domain.StockReservation) *domain.StockReservation {
	cp := *r
	cp.DomainEvents = nil
	if r.ReleasedAt != nil {
		at := *r.ReleasedAt
		cp.ReleasedAt = &at
	}
	if r.ReclaimedAt != nil {
		at := *r.ReclaimedAt
		cp.ReclaimedAt = &at
	}
	return &cp
}

func (f *fakeReservationRepo) store(r *domain.StockReservation) {
	f.byID[r.ReservationID] = copyReservation(r)
}

func (f *fakeReservationRepo) get(reservationID string) *domain.StockReservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[reservationID]
}

func (f *fakeReservationRepo) Insert(ctx context.Context, reservation *domain.StockReservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store(reservation)
	return nil
}

func (f *fakeReservationRepo) FindByID(ctx context.Context, reservationID string) (*domain.StockReservation, error) {
	f.mu.Lock()
	if f.findErr != nil {
		f.mu.Unlock()
		return nil, f.findErr
	}
	r, ok := f.byID[reservationID]
	var cp *domain.StockReservation
	if ok {
		cp = copyReservation(r)
	}
	f.mu.Unlock()

	if f.afterFindByID != nil {
		f.afterFindByID()
	}
	if !ok {
		return nil, nil
	}
	return cp, nil
}

func (f *fakeReservationRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.StockReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	expired := make([]*domain.StockReservation, 0)
	for _, r := range f.byID {
		if r.IsTerminal() || r.ExpiresAt.After(now) {
			continue
		}
		expired = append(expired, copyReservation(r))
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
	if len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (f *fakeReservationRepo) MarkReleased(ctx context.Context, reservationID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	r, ok := f.byID[reservationID]
	if !ok || r.IsTerminal() || !at.Before(r.ExpiresAt) {
		return false, nil
	}
	r.ReleasedAt = &at
	return true, nil
}

func (f *fakeReservationRepo) MarkReclaimed(ctx context.Context, reservationID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	r, ok := f.byID[reservationID]
	if !ok || r.IsTerminal() || at.Before(r.ExpiresAt) {
		return false, nil
	}
	r.ReclaimedAt = &at
	return true, nil
}

func (f *fakeReservationRepo) ExtendExpiry(ctx context.Context, reservationID string, currentExpiry, newExpiry time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[reservationID]
	if !ok || r.IsTerminal() || !r.ExpiresAt.Equal(currentExpiry) {
		return false, nil
	}
	r.ExpiresAt = newExpiry
	return true, nil
}

// fakeMovementRepo serves movement history reads from a slice
type fakeMovementRepo struct {
	mu        sync.Mutex
	movements []*domain.StockMovement
	findErr   error
}

func (f *fakeMovementRepo) FindByPair(ctx context.Context, productID, warehouseID string, limit int) ([]*domain.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	matched := make([]*domain.StockMovement, 0)
	for _, m := range f.movements {
		if m.ProductID == productID && m.WarehouseID == warehouseID {
			matched = append(matched, m)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeMovementRepo) FindByTransferID(ctx context.Context, transferID string) ([]*domain.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	matched := make([]*domain.StockMovement, 0)
	for _, m := range f.movements {
		if m.TransferID == transferID {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

// fakeCatalog is an in-memory WarehouseCatalog
type fakeCatalog struct {
	warehouses map[string]*domain.Warehouse
	stocked    map[string][]string

	listErr error
	getErr  map[string]error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		warehouses: make(map[string]*domain.Warehouse),
		stocked:    make(map[string][]string),
		getErr:     make(map[string]error),
	}
}

func (f *fakeCatalog) addWarehouse(id string, lat, lon float64, active bool) {
	f.warehouses[id] = &domain.Warehouse{
		ID:       id,
		Location: domain.Coordinate{Latitude: lat, Longitude: lon},
		IsActive: active,
	}
}

func (f *fakeCatalog) GetWarehouse(ctx context.Context, warehouseID string) (*domain.Warehouse, error) {
	if err := f.getErr[warehouseID]; err != nil {
		return nil, err
	}
	w, ok := f.warehouses[warehouseID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return w, nil
}

func (f *fakeCatalog) ListWarehousesForProduct(ctx context.Context, productID string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.stocked[productID], nil
}

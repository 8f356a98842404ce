package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stocklane/allocation-service/internal/domain"
	"github.com/stocklane/allocation-service/pkg/cloudevents"
	"github.com/stocklane/allocation-service/pkg/kafka"
	"github.com/stocklane/allocation-service/pkg/outbox"
	outboxMongo "github.com/stocklane/allocation-service/pkg/outbox/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TxnRunner runs a function inside a Mongo transaction. cmd/api passes the
// circuit-breaker client so commits are traced and shed load during outages;
// tests run plain sessions on the container client.
type TxnRunner interface {
	WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error
}

// InventoryRepository persists inventory items together with their movement
// records and domain events. All writes go through a Mongo transaction so the
// counters, the audit trail and the outbox stay consistent.
type InventoryRepository struct {
	collection   *mongo.Collection
	movements    *mongo.Collection
	reservations *mongo.Collection
	txn          TxnRunner
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

func NewInventoryRepository(db *mongo.Database, txn TxnRunner, eventFactory *cloudevents.EventFactory) *InventoryRepository {
	outboxRepo := outboxMongo.NewOutboxRepository(db)

	repo := &InventoryRepository{
		collection:   db.Collection("inventory_items"),
		movements:    db.Collection("stock_movements"),
		reservations: db.Collection("stock_reservations"),
		txn:          txn,
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
	}
	repo.ensureIndexes(context.Background())

	_ = outboxRepo.EnsureIndexes(context.Background())

	return repo
}

func (r *InventoryRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "productId", Value: 1}, {Key: "warehouseId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "warehouseId", Value: 1}}},
		{Keys: bson.D{{Key: "availableQuantity", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)

	movementIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "movementId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "warehouseId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "transferId", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	r.movements.Indexes().CreateMany(ctx, movementIndexes)
}

// Find returns nil, nil when no item exists for the pair.
func (r *InventoryRepository) Find(ctx context.Context, productID, warehouseID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := r.collection.FindOne(ctx, bson.M{
		"productId":   productID,
		"warehouseId": warehouseID,
	}).Decode(&item)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &item, err
}

// Save upserts the item with its movement records atomically. The write is
// guarded by the aggregate version: a new item inserts at version 1, an
// existing one replaces the document only when the stored version still
// matches, so a concurrent writer surfaces as ErrConcurrentModification
// instead of a lost update.
func (r *InventoryRepository) Save(ctx context.Context, item *domain.InventoryItem, movements ...*domain.StockMovement) error {
	return r.SaveAll(ctx, []*domain.InventoryItem{item}, movements)
}

// SaveAll writes several items and their movements in a single transaction.
// Transfers use this so the outbound and inbound sides commit together.
func (r *InventoryRepository) SaveAll(ctx context.Context, items []*domain.InventoryItem, movements []*domain.StockMovement) error {
	// The transaction callback may run more than once; the pre-write versions
	// anchor the guard filter across retries.
	prevVersions := make([]int64, len(items))
	for i, item := range items {
		prevVersions[i] = item.Version
	}

	err := r.txn.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		for i, item := range items {
			if err := r.persistItem(sessCtx, item, prevVersions[i]); err != nil {
				return err
			}
		}

		for _, movement := range movements {
			if _, err := r.movements.InsertOne(sessCtx, movement); err != nil {
				return fmt.Errorf("failed to insert stock movement: %w", err)
			}
		}

		for _, item := range items {
			if err := r.saveOutboxEvents(sessCtx, item.ProductID+"/"+item.WarehouseID, "InventoryItem", item.GetDomainEvents()); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		for i, item := range items {
			item.Version = prevVersions[i]
		}
		if errors.Is(err, domain.ErrConcurrentModification) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	for _, item := range items {
		item.ClearDomainEvents()
	}

	return nil
}

// SaveWithReservation persists the item and inserts the reservation record in
// one transaction, so a hold never exists without its counter shift or the
// other way around.
func (r *InventoryRepository) SaveWithReservation(ctx context.Context, item *domain.InventoryItem, reservation *domain.StockReservation) error {
	prevVersion := item.Version

	err := r.txn.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := r.persistItem(sessCtx, item, prevVersion); err != nil {
			return err
		}

		if _, err := r.reservations.InsertOne(sessCtx, reservation); err != nil {
			return fmt.Errorf("failed to insert reservation: %w", err)
		}

		if err := r.saveOutboxEvents(sessCtx, reservation.ReservationID, "StockReservation", reservation.GetDomainEvents()); err != nil {
			return err
		}
		return r.saveOutboxEvents(sessCtx, item.ProductID+"/"+item.WarehouseID, "InventoryItem", item.GetDomainEvents())
	})

	if err != nil {
		item.Version = prevVersion
		if errors.Is(err, domain.ErrConcurrentModification) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	item.ClearDomainEvents()
	reservation.ClearDomainEvents()

	return nil
}

func (r *InventoryRepository) persistItem(sessCtx mongo.SessionContext, item *domain.InventoryItem, prevVersion int64) error {
	item.LastUpdated = time.Now()
	item.Version = prevVersion + 1

	if prevVersion == 0 {
		res, err := r.collection.InsertOne(sessCtx, item)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				// Someone else created the pair first; the caller reloads and retries.
				return domain.ErrConcurrentModification
			}
			return fmt.Errorf("failed to insert inventory item: %w", err)
		}
		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			item.ID = oid
		}
		return nil
	}

	filter := bson.M{
		"productId":   item.ProductID,
		"warehouseId": item.WarehouseID,
		"version":     prevVersion,
	}
	result, err := r.collection.ReplaceOne(sessCtx, filter, item)
	if err != nil {
		return fmt.Errorf("failed to save inventory item: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

func (r *InventoryRepository) saveOutboxEvents(sessCtx mongo.SessionContext, aggregateID, aggregateType string, domainEvents []domain.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
	for _, event := range domainEvents {
		cloudEvent := r.toCloudEvent(sessCtx, event)
		if cloudEvent == nil {
			continue
		}

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			aggregateID,
			aggregateType,
			kafka.TopicForEventType(cloudEvent.Type),
			cloudEvent,
		)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}

	if len(outboxEvents) == 0 {
		return nil
	}
	if err := r.outboxRepo.SaveAll(sessCtx, outboxEvents); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	return nil
}

func (r *InventoryRepository) toCloudEvent(ctx context.Context, event domain.DomainEvent) *cloudevents.StockCloudEvent {
	switch e := event.(type) {
	case *domain.StockReservedEvent:
		expiresAt := e.ExpiresAt
		return r.eventFactory.CreateReservationEvent(ctx, e.EventType(), e.ReservationID, e.ProductID, e.WarehouseID, e.Quantity, &expiresAt, "")
	case *domain.ReservationReleasedEvent:
		return r.eventFactory.CreateReservationEvent(ctx, e.EventType(), e.ReservationID, e.ProductID, e.WarehouseID, e.Quantity, nil, "")
	case *domain.ReservationReclaimedEvent:
		return r.eventFactory.CreateReservationEvent(ctx, e.EventType(), e.ReservationID, e.ProductID, e.WarehouseID, e.Quantity, nil, "")
	case *domain.StockMovementRecordedEvent:
		return r.eventFactory.CreateMovementRecordedEvent(ctx, cloudevents.MovementRecordedData{
			MovementID:        e.MovementID,
			ProductID:         e.ProductID,
			WarehouseID:       e.WarehouseID,
			MovementType:      e.Type,
			Quantity:          e.Quantity,
			PreviousAvailable: e.PreviousAvailable,
			NewAvailable:      e.NewAvailable,
			Reason:            e.Reason,
		})
	case *domain.LowStockAlertEvent:
		return r.eventFactory.CreateLowStockAlertEvent(ctx, e.ProductID, e.WarehouseID, e.CurrentQuantity, e.ReorderPoint)
	case *domain.StockTransferredEvent:
		return r.eventFactory.CreateTransferCompletedEvent(ctx, e.TransferID, e.ProductID, e.FromWarehouseID, e.ToWarehouseID, e.Quantity)
	default:
		return nil
	}
}

// GetOutboxRepository exposes the outbox store so the publisher can drain it.
func (r *InventoryRepository) GetOutboxRepository() outbox.Repository {
	return r.outboxRepo
}

package mongodb

import (
	"context"

	"github.com/stocklane/allocation-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MovementRepository reads the append-only movement audit trail. Writes happen
// through InventoryRepository inside the counter transaction; this side only
// queries.
type MovementRepository struct {
	collection *mongo.Collection
}

func NewMovementRepository(db *mongo.Database) *MovementRepository {
	return &MovementRepository{
		collection: db.Collection("stock_movements"),
	}
}

// FindByPair returns the most recent movements for a pair, newest first.
func (r *MovementRepository) FindByPair(ctx context.Context, productID, warehouseID string, limit int) ([]*domain.StockMovement, error) {
	filter := bson.M{
		"productId":   productID,
		"warehouseId": warehouseID,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var movements []*domain.StockMovement
	err = cursor.All(ctx, &movements)
	return movements, err
}

// FindByTransferID returns both sides of a transfer.
func (r *MovementRepository) FindByTransferID(ctx context.Context, transferID string) ([]*domain.StockMovement, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"transferId": transferID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var movements []*domain.StockMovement
	err = cursor.All(ctx, &movements)
	return movements, err
}

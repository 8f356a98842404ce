package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/stocklane/allocation-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReservationRepository persists reservations. Release and reclaim are
// conditional single-document updates: whichever writer matches first wins the
// claim, the loser sees MatchedCount zero. That is the whole exactly-once
// story, no locks involved.
type ReservationRepository struct {
	collection *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	repo := &ReservationRepository{
		collection: db.Collection("stock_reservations"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *ReservationRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "reservationId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "warehouseId", Value: 1}}},
		{
			// Terminal reservations age out of the collection after 30 days.
			Keys: bson.D{{Key: "releasedAt", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(30 * 24 * 3600).
				SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "reclaimedAt", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(30 * 24 * 3600).
				SetSparse(true),
		},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

func (r *ReservationRepository) Insert(ctx context.Context, reservation *domain.StockReservation) error {
	_, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

// FindByID returns nil, nil when the reservation is unknown.
func (r *ReservationRepository) FindByID(ctx context.Context, reservationID string) (*domain.StockReservation, error) {
	var reservation domain.StockReservation
	err := r.collection.FindOne(ctx, bson.M{"reservationId": reservationID}).Decode(&reservation)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &reservation, err
}

// FindExpired lists unclaimed reservations whose deadline passed, oldest
// first, so the sweeper reclaims in expiry order.
func (r *ReservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.StockReservation, error) {
	filter := bson.M{
		"releasedAt":  bson.M{"$exists": false},
		"reclaimedAt": bson.M{"$exists": false},
		"expiresAt":   bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "expiresAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reservations []*domain.StockReservation
	err = cursor.All(ctx, &reservations)
	return reservations, err
}

// MarkReleased sets releasedAt if the reservation is still active at the
// write. An expired or already-terminal reservation does not match, so the
// caller learns it lost the claim.
func (r *ReservationRepository) MarkReleased(ctx context.Context, reservationID string, at time.Time) (bool, error) {
	filter := bson.M{
		"reservationId": reservationID,
		"releasedAt":    bson.M{"$exists": false},
		"reclaimedAt":   bson.M{"$exists": false},
		"expiresAt":     bson.M{"$gt": at},
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"releasedAt": at}})
	if err != nil {
		return false, fmt.Errorf("failed to mark reservation released: %w", err)
	}
	return result.MatchedCount == 1, nil
}

// MarkReclaimed sets reclaimedAt if the reservation is expired and not yet
// terminal.
func (r *ReservationRepository) MarkReclaimed(ctx context.Context, reservationID string, at time.Time) (bool, error) {
	filter := bson.M{
		"reservationId": reservationID,
		"releasedAt":    bson.M{"$exists": false},
		"reclaimedAt":   bson.M{"$exists": false},
		"expiresAt":     bson.M{"$lte": at},
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"reclaimedAt": at}})
	if err != nil {
		return false, fmt.Errorf("failed to mark reservation reclaimed: %w", err)
	}
	return result.MatchedCount == 1, nil
}

// ExtendExpiry moves the deadline from its current value to newExpiry. The
// filter pins the current deadline, so an extension racing the sweeper either
// lands before the reclaim or not at all.
func (r *ReservationRepository) ExtendExpiry(ctx context.Context, reservationID string, currentExpiry, newExpiry time.Time) (bool, error) {
	filter := bson.M{
		"reservationId": reservationID,
		"releasedAt":    bson.M{"$exists": false},
		"reclaimedAt":   bson.M{"$exists": false},
		"expiresAt":     currentExpiry,
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"expiresAt": newExpiry}})
	if err != nil {
		return false, fmt.Errorf("failed to extend reservation: %w", err)
	}
	return result.MatchedCount == 1, nil
}

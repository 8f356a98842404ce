package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Seed tool for initializing warehouse stock. Safe to run repeatedly:
// existing (product, warehouse) pairs are left untouched, so re-running
// never resets counters that live traffic has already moved.

var (
	mongoURI = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName   = flag.String("db", "stocklane", "Database name")
	file     = flag.String("file", "", "JSON file with seed entries (defaults to a small demo set)")
	dryRun   = flag.Bool("dry-run", false, "Print what would be seeded without writing")
)

type seedEntry struct {
	ProductID    string `json:"productId"`
	WarehouseID  string `json:"warehouseId"`
	Quantity     int    `json:"quantity"`
	ReorderPoint int    `json:"reorderPoint"`
}

var demoEntries = []seedEntry{
	{ProductID: "SKU-1001", WarehouseID: "WH-BER", Quantity: 120, ReorderPoint: 20},
	{ProductID: "SKU-1001", WarehouseID: "WH-MUC", Quantity: 80, ReorderPoint: 20},
	{ProductID: "SKU-1002", WarehouseID: "WH-BER", Quantity: 45, ReorderPoint: 10},
	{ProductID: "SKU-1002", WarehouseID: "WH-CGN", Quantity: 200, ReorderPoint: 10},
}

func main() {
	flag.Parse()

	entries := demoEntries
	if *file != "" {
		loaded, err := loadEntries(*file)
		if err != nil {
			log.Fatalf("Failed to load seed file: %v", err)
		}
		entries = loaded
	}

	log.Printf("Seeding %d entries into %s", len(entries), *dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}

	db := client.Database(*dbName)
	seeded, skipped := 0, 0

	for _, entry := range entries {
		if entry.ProductID == "" || entry.WarehouseID == "" || entry.Quantity < 0 {
			log.Printf("Skipping invalid entry: %+v", entry)
			skipped++
			continue
		}
		if *dryRun {
			log.Printf("[dry-run] would seed %s @ %s with %d units", entry.ProductID, entry.WarehouseID, entry.Quantity)
			continue
		}

		created, err := seedPair(context.Background(), db, entry)
		if err != nil {
			log.Fatalf("Failed to seed %s @ %s: %v", entry.ProductID, entry.WarehouseID, err)
		}
		if created {
			seeded++
		} else {
			skipped++
		}
	}

	log.Printf("Done: %d seeded, %d skipped", seeded, skipped)
}

func loadEntries(path string) ([]seedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// seedPair inserts the pair only when absent and records the initial inbound
// movement alongside it. Returns false when the pair already existed.
func seedPair(ctx context.Context, db *mongo.Database, entry seedEntry) (bool, error) {
	now := time.Now()

	result, err := db.Collection("inventory_items").UpdateOne(ctx,
		bson.M{"productId": entry.ProductID, "warehouseId": entry.WarehouseID},
		bson.M{"$setOnInsert": bson.M{
			"productId":         entry.ProductID,
			"warehouseId":       entry.WarehouseID,
			"availableQuantity": entry.Quantity,
			"reservedQuantity":  0,
			"reorderPoint":      entry.ReorderPoint,
			"version":           1,
			"createdAt":         now,
			"lastUpdated":       now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	if result.UpsertedCount == 0 {
		log.Printf("Pair %s @ %s already exists, leaving it alone", entry.ProductID, entry.WarehouseID)
		return false, nil
	}

	_, err = db.Collection("stock_movements").InsertOne(ctx, bson.M{
		"movementId":        uuid.New().String(),
		"productId":         entry.ProductID,
		"warehouseId":       entry.WarehouseID,
		"type":              "inbound",
		"quantity":          entry.Quantity,
		"previousAvailable": 0,
		"newAvailable":      entry.Quantity,
		"reason":            "initial seed",
		"createdAt":         now,
	})
	if err != nil {
		return false, err
	}

	log.Printf("Seeded %s @ %s with %d units", entry.ProductID, entry.WarehouseID, entry.Quantity)
	return true, nil
}

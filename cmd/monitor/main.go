package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Consistency auditor for the stock ledger. Cross-checks every pair's
// reservedQuantity against the sum of its non-terminal reservations and
// flags drift, negative counters, and orphaned reservations. Read-only.

var (
	mongoURI = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName   = flag.String("db", "stocklane", "Database name")
	limit    = flag.Int("limit", 50, "Maximum number of findings to display")
)

type inventoryDoc struct {
	ProductID         string `bson:"productId"`
	WarehouseID       string `bson:"warehouseId"`
	AvailableQuantity int    `bson:"availableQuantity"`
	ReservedQuantity  int    `bson:"reservedQuantity"`
}

type reservedSum struct {
	ID struct {
		ProductID   string `bson:"productId"`
		WarehouseID string `bson:"warehouseId"`
	} `bson:"_id"`
	Total int `bson:"total"`
}

func main() {
	flag.Parse()

	log.Printf("Starting stock ledger audit...")
	log.Printf("MongoDB URI: %s", *mongoURI)
	log.Printf("Database: %s", *dbName)

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
	log.Println("Connected to MongoDB successfully")

	db := client.Database(*dbName)
	findings, err := audit(context.Background(), db)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}

	if len(findings) == 0 {
		fmt.Println("\nNo inconsistencies found.")
		return
	}

	fmt.Printf("\n=== %d finding(s) ===\n", len(findings))
	shown := findings
	if len(shown) > *limit {
		shown = shown[:*limit]
	}
	for _, finding := range shown {
		fmt.Println(" -", finding)
	}
	if len(findings) > *limit {
		fmt.Printf("... and %d more\n", len(findings)-*limit)
	}
}

func audit(ctx context.Context, db *mongo.Database) ([]string, error) {
	// Sum outstanding holds per pair. Expired-but-unreclaimed reservations
	// still hold their quantity until the sweeper claims them, so only the
	// terminal markers exclude a reservation here.
	pipeline := []bson.M{
		{"$match": bson.M{
			"releasedAt":  bson.M{"$exists": false},
			"reclaimedAt": bson.M{"$exists": false},
		}},
		{"$group": bson.M{
			"_id":   bson.M{"productId": "$productId", "warehouseId": "$warehouseId"},
			"total": bson.M{"$sum": "$quantity"},
		}},
	}
	cursor, err := db.Collection("stock_reservations").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reservations: %w", err)
	}
	var sums []reservedSum
	if err := cursor.All(ctx, &sums); err != nil {
		return nil, fmt.Errorf("failed to decode reservation sums: %w", err)
	}
	outstanding := make(map[string]int, len(sums))
	for _, s := range sums {
		outstanding[s.ID.ProductID+"|"+s.ID.WarehouseID] = s.Total
	}

	itemCursor, err := db.Collection("inventory_items").Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}
	var items []inventoryDoc
	if err := itemCursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode inventory items: %w", err)
	}

	findings := make([]string, 0)
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		key := item.ProductID + "|" + item.WarehouseID
		seen[key] = true

		if item.AvailableQuantity < 0 || item.ReservedQuantity < 0 {
			findings = append(findings, fmt.Sprintf(
				"%s @ %s: negative counters (available=%d reserved=%d)",
				item.ProductID, item.WarehouseID, item.AvailableQuantity, item.ReservedQuantity))
		}
		if held := outstanding[key]; held != item.ReservedQuantity {
			findings = append(findings, fmt.Sprintf(
				"%s @ %s: reservedQuantity=%d but outstanding reservations hold %d",
				item.ProductID, item.WarehouseID, item.ReservedQuantity, held))
		}
	}

	for key, held := range outstanding {
		if !seen[key] {
			findings = append(findings, fmt.Sprintf(
				"%s: %d units held by reservations but no inventory item exists", key, held))
		}
	}

	log.Printf("Audited %d pairs, %d with outstanding holds", len(items), len(outstanding))
	return findings, nil
}

package kafka

import (
	"strings"
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// TLS settings
	TLSEnabled bool
	TLSCert    string
	TLSKey     string
	TLSCA      string

	// SASL settings
	SASLEnabled   bool
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "stock-default-group",
		ClientID:      "allocation-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1, // All replicas

		TLSEnabled:  false,
		SASLEnabled: false,
	}
}

// Topics contains all stock Kafka topic names
var Topics = struct {
	ReservationEvents string
	MovementEvents    string
	TransferEvents    string
	AllocationEvents  string
	AlertEvents       string
}{
	ReservationEvents: "stock.reservations.events",
	MovementEvents:    "stock.movements.events",
	TransferEvents:    "stock.transfers.events",
	AllocationEvents:  "stock.allocations.events",
	AlertEvents:       "stock.alerts.events",
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopicConfigs returns default configurations for stock topics
func DefaultTopicConfigs() []TopicConfig {
	const week = 7 * 24 * 60 * 60 * 1000

	return []TopicConfig{
		{Name: Topics.ReservationEvents, Partitions: 12, ReplicationFactor: 3, RetentionMs: week},
		{Name: Topics.MovementEvents, Partitions: 12, ReplicationFactor: 3, RetentionMs: 4 * week},
		{Name: Topics.TransferEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: 4 * week},
		{Name: Topics.AllocationEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: week},
		{Name: Topics.AlertEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: week},
	}
}

// TopicForEventType maps a CloudEvents type to its Kafka topic
func TopicForEventType(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "stock.reservation."):
		return Topics.ReservationEvents
	case strings.HasPrefix(eventType, "stock.movement."):
		return Topics.MovementEvents
	case strings.HasPrefix(eventType, "stock.transfer."):
		return Topics.TransferEvents
	case strings.HasPrefix(eventType, "stock.allocation."):
		return Topics.AllocationEvents
	case eventType == "stock.low-stock-alert":
		return Topics.AlertEvents
	default:
		return Topics.MovementEvents
	}
}

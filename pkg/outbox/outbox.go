// Package outbox implements the transactional outbox half of event
// delivery: repositories append events to the outbox collection inside
// the same MongoDB transaction as the state change, and a background
// Publisher drains them to Kafka. Publishing is at-least-once; consumers
// are expected to deduplicate on the event ID.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stocklane/allocation-service/pkg/cloudevents"
)

// MaxRetries is the number of publish attempts before an event is parked.
// Parked events stay in the collection for manual inspection until the
// TTL index reaps them.
const MaxRetries = 10

// OutboxEvent is a CloudEvent staged for delivery. The payload is the
// marshaled CloudEvent envelope so the publisher can forward it without
// knowing the concrete event type.
type OutboxEvent struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount    int             `bson:"retryCount" json:"retryCount"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
}

// NewOutboxEventFromCloudEvent stages a CloudEvent for publication to the
// given topic.
func NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic string, cloudEvent *cloudevents.StockCloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(cloudEvent)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     cloudEvent.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}, nil
}

// ToCloudEvent unmarshals the staged payload back into its envelope.
func (e *OutboxEvent) ToCloudEvent() (*cloudevents.StockCloudEvent, error) {
	var cloudEvent cloudevents.StockCloudEvent
	if err := json.Unmarshal(e.Payload, &cloudEvent); err != nil {
		return nil, err
	}
	return &cloudEvent, nil
}

package outbox

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklane/allocation-service/pkg/cloudevents"
	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/resilience"
)

type memoryRepo struct {
	events []*OutboxEvent
}

func (r *memoryRepo) Save(ctx context.Context, event *OutboxEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *memoryRepo) SaveAll(ctx context.Context, events []*OutboxEvent) error {
	r.events = append(r.events, events...)
	return nil
}

func (r *memoryRepo) FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	var pending []*OutboxEvent
	for _, e := range r.events {
		if e.PublishedAt == nil && e.RetryCount < MaxRetries {
			pending = append(pending, e)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (r *memoryRepo) MarkPublished(ctx context.Context, eventID string) error {
	for _, e := range r.events {
		if e.ID == eventID {
			now := time.Now()
			e.PublishedAt = &now
			return nil
		}
	}
	return fmt.Errorf("event not found: %s", eventID)
}

func (r *memoryRepo) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	for _, e := range r.events {
		if e.ID == eventID {
			e.RetryCount++
			e.LastError = errorMsg
			return nil
		}
	}
	return fmt.Errorf("event not found: %s", eventID)
}

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, topic string, event *cloudevents.StockCloudEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, topic+"/"+event.ID)
	return nil
}

func stageEvent(t *testing.T, repo *memoryRepo, topic string) *OutboxEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory(cloudevents.SourceAllocation)
	cloudEvent := factory.CreateEvent(context.Background(), "com.stocklane.stock.reserved", "SKU-1|WH-A", map[string]string{"reservationId": "res-1"})
	event, err := NewOutboxEventFromCloudEvent("SKU-1|WH-A", "InventoryItem", topic, cloudEvent)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), event))
	return event
}

func newTestPublisher(repo Repository, producer EventPublisher) *Publisher {
	return NewPublisher(repo, producer, logging.New(logging.DefaultConfig("test")), nil, nil)
}

func TestDrainOnce_MarksDeliveredEvents(t *testing.T) {
	repo := &memoryRepo{}
	staged := stageEvent(t, repo, "stock-events")
	producer := &recordingPublisher{}

	p := newTestPublisher(repo, producer)
	p.drainOnce(context.Background())

	cloudEvent, err := staged.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, []string{"stock-events/" + cloudEvent.ID}, producer.published)
	require.NotNil(t, staged.PublishedAt)

	pending, err := repo.FindUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainOnce_IncrementsRetryOnFailure(t *testing.T) {
	repo := &memoryRepo{}
	staged := stageEvent(t, repo, "stock-events")
	producer := &recordingPublisher{err: fmt.Errorf("broker unreachable")}

	p := newTestPublisher(repo, producer)
	p.drainOnce(context.Background())

	assert.Nil(t, staged.PublishedAt)
	assert.Equal(t, 1, staged.RetryCount)
	assert.Contains(t, staged.LastError, "broker unreachable")
}

func TestDrainOnce_SkipsEventsPastMaxRetries(t *testing.T) {
	repo := &memoryRepo{}
	staged := stageEvent(t, repo, "stock-events")
	staged.RetryCount = MaxRetries
	producer := &recordingPublisher{}

	p := newTestPublisher(repo, producer)
	p.drainOnce(context.Background())

	assert.Empty(t, producer.published)
	assert.Nil(t, staged.PublishedAt)
}

func TestDrainOnce_DefersCycleWhileBreakerOpen(t *testing.T) {
	repo := &memoryRepo{}
	first := stageEvent(t, repo, "stock-events")
	second := stageEvent(t, repo, "stock-events")
	producer := &recordingPublisher{err: fmt.Errorf("kafka-producer: %w", resilience.ErrCircuitOpen)}

	p := newTestPublisher(repo, producer)
	p.drainOnce(context.Background())

	// No retry budget is spent while the breaker sheds publishes.
	assert.Equal(t, 0, first.RetryCount)
	assert.Equal(t, 0, second.RetryCount)
	assert.Nil(t, first.PublishedAt)
	assert.Nil(t, second.PublishedAt)
}

package outbox

import "context"

// Repository is the storage contract shared by the writers (stock
// repositories appending inside their transactions) and the Publisher
// draining the backlog. Published events are not deleted here; a TTL
// index on publishedAt reaps them.
type Repository interface {
	// Save appends a single event. The context is expected to carry a
	// MongoDB session when called inside a transaction.
	Save(ctx context.Context, event *OutboxEvent) error

	// SaveAll appends a batch of events in one write.
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns the oldest undelivered events, skipping
	// those that exhausted MaxRetries.
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished stamps publishedAt after a successful delivery.
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry bumps the retry counter and records the failure.
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error
}

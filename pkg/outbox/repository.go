package outbox

import "context"

// Repository persists outbox events. SaveAll runs inside the caller's
// transaction so events commit atomically with the aggregate; the relay
// reads back unpublished events and records the publish outcome.
type Repository interface {
	// SaveAll saves multiple outbox events in a single operation.
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished retrieves unpublished events up to the given limit.
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished records a successful publish.
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry bumps the retry count and records the last error.
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error
}

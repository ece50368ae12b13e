package domain

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BatchState represents the status of a picking batch
type BatchState string

const (
	BatchStateDraft      BatchState = "draft"
	BatchStateInProgress BatchState = "in_progress"
	BatchStateDone       BatchState = "done"
	BatchStateCancelled  BatchState = "cancelled"
)

// Batch is the aggregate root for the batching bounded context: a unit
// of work claimed by one operator, bundling one or more pickings.
//
// Invariant: a user holds at most one batch in state in_progress. The
// Mongo repository backs this with a partial unique index; the
// application re-checks it on every lookup.
type Batch struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	BatchID      string             `bson:"batchId"`
	UserID       string             `bson:"userId,omitempty"`
	State        BatchState         `bson:"state"`
	PickingIDs   []string           `bson:"pickingIds"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
	CompletedAt  *time.Time         `bson:"completedAt,omitempty"`
	DomainEvents []DomainEvent      `bson:"-"`
}

// NewBatch creates a batch claimed by the given user, already in
// progress (batches are only created when there is work to attach).
func NewBatch(userID string) *Batch {
	now := time.Now()
	batch := &Batch{
		BatchID:      "BATCH-" + uuid.New().String()[:8],
		UserID:       userID,
		State:        BatchStateInProgress,
		PickingIDs:   make([]string, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}

	batch.AddDomainEvent(&BatchCreatedEvent{
		BatchID:   batch.BatchID,
		UserID:    userID,
		CreatedAt: now,
	})

	return batch
}

// HasPicking reports whether the picking is part of the batch.
func (b *Batch) HasPicking(pickingID string) bool {
	for _, id := range b.PickingIDs {
		if id == pickingID {
			return true
		}
	}
	return false
}

// AttachPicking adds a picking to the batch. Attaching an already
// attached picking is a no-op.
func (b *Batch) AttachPicking(pickingID string) bool {
	if b.HasPicking(pickingID) {
		return false
	}

	now := time.Now()
	b.PickingIDs = append(b.PickingIDs, pickingID)
	b.UpdatedAt = now

	b.AddDomainEvent(&PickingAttachedEvent{
		BatchID:    b.BatchID,
		PickingID:  pickingID,
		AttachedAt: now,
	})

	return true
}

// DetachPicking removes a picking from the batch, returning work to the
// pool. Detaching an unknown picking is a no-op.
func (b *Batch) DetachPicking(pickingID string) bool {
	for i, id := range b.PickingIDs {
		if id != pickingID {
			continue
		}

		now := time.Now()
		b.PickingIDs = append(b.PickingIDs[:i], b.PickingIDs[i+1:]...)
		b.UpdatedAt = now

		b.AddDomainEvent(&PickingDetachedEvent{
			BatchID:    b.BatchID,
			PickingID:  pickingID,
			DetachedAt: now,
		})

		return true
	}
	return false
}

// MarkDone transitions the batch to done. Idempotent: marking a done
// batch again changes nothing.
func (b *Batch) MarkDone() {
	if b.State == BatchStateDone {
		return
	}

	now := time.Now()
	b.State = BatchStateDone
	b.CompletedAt = &now
	b.UpdatedAt = now

	b.AddDomainEvent(&BatchCompletedEvent{
		BatchID:     b.BatchID,
		UserID:      b.UserID,
		PickingIDs:  append([]string(nil), b.PickingIDs...),
		CompletedAt: now,
	})
}

// AddDomainEvent adds a domain event
func (b *Batch) AddDomainEvent(event DomainEvent) {
	b.DomainEvents = append(b.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (b *Batch) ClearDomainEvents() {
	b.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (b *Batch) GetDomainEvents() []DomainEvent {
	return b.DomainEvents
}

package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// BatchCreatedEvent is published when a batch is created for a user
type BatchCreatedEvent struct {
	BatchID   string    `json:"batchId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *BatchCreatedEvent) EventType() string     { return "wms.batching.batch-created" }
func (e *BatchCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// PickingAttachedEvent is published when a picking joins a batch
type PickingAttachedEvent struct {
	BatchID    string    `json:"batchId"`
	PickingID  string    `json:"pickingId"`
	AttachedAt time.Time `json:"attachedAt"`
}

func (e *PickingAttachedEvent) EventType() string     { return "wms.batching.picking-attached" }
func (e *PickingAttachedEvent) OccurredAt() time.Time { return e.AttachedAt }

// PickingDetachedEvent is published when a picking is returned to the pool
type PickingDetachedEvent struct {
	BatchID    string    `json:"batchId"`
	PickingID  string    `json:"pickingId"`
	DetachedAt time.Time `json:"detachedAt"`
}

func (e *PickingDetachedEvent) EventType() string     { return "wms.batching.picking-detached" }
func (e *PickingDetachedEvent) OccurredAt() time.Time { return e.DetachedAt }

// BatchCompletedEvent is published when every picking of a batch reached
// a terminal state
type BatchCompletedEvent struct {
	BatchID     string    `json:"batchId"`
	UserID      string    `json:"userId"`
	PickingIDs  []string  `json:"pickingIds"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *BatchCompletedEvent) EventType() string     { return "wms.batching.batch-completed" }
func (e *BatchCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// UnpickableReportedEvent is published when an operator reports stock as
// unpickable and an investigation picking is raised
type UnpickableReportedEvent struct {
	BatchID       string    `json:"batchId"`
	PickingID     string    `json:"pickingId"`
	Reason        string    `json:"reason"`
	ProductID     string    `json:"productId,omitempty"`
	PackageID     string    `json:"packageId,omitempty"`
	LocationID    string    `json:"locationId"`
	Investigation string    `json:"investigationPickingId,omitempty"`
	ReportedAt    time.Time `json:"reportedAt"`
}

func (e *UnpickableReportedEvent) EventType() string     { return "wms.batching.unpickable-reported" }
func (e *UnpickableReportedEvent) OccurredAt() time.Time { return e.ReportedAt }

// DropOffCompletedEvent is published after a drop-off validated picked stock
type DropOffCompletedEvent struct {
	BatchID       string    `json:"batchId"`
	LocationID    string    `json:"locationId,omitempty"`
	PickingIDs    []string  `json:"pickingIds"`
	ContinueBatch bool      `json:"continueBatch"`
	DroppedAt     time.Time `json:"droppedAt"`
}

func (e *DropOffCompletedEvent) EventType() string     { return "wms.batching.drop-off-completed" }
func (e *DropOffCompletedEvent) OccurredAt() time.Time { return e.DroppedAt }

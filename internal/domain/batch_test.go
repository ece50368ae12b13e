package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewBatch tests batch creation
func TestNewBatch(t *testing.T) {
	batch := NewBatch("user-1")

	require.NotNil(t, batch)
	assert.Contains(t, batch.BatchID, "BATCH-")
	assert.Equal(t, "user-1", batch.UserID)
	assert.Equal(t, BatchStateInProgress, batch.State)
	assert.Empty(t, batch.PickingIDs)
	assert.NotZero(t, batch.CreatedAt)

	events := batch.GetDomainEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(*BatchCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, batch.BatchID, created.BatchID)
	assert.Equal(t, "user-1", created.UserID)
}

// TestBatchAttachDetach tests picking membership
func TestBatchAttachDetach(t *testing.T) {
	batch := NewBatch("user-1")
	batch.ClearDomainEvents()

	assert.True(t, batch.AttachPicking("PICK-001"))
	assert.True(t, batch.HasPicking("PICK-001"))

	// Attaching twice is a no-op
	assert.False(t, batch.AttachPicking("PICK-001"))
	assert.Len(t, batch.PickingIDs, 1)

	assert.True(t, batch.AttachPicking("PICK-002"))
	assert.Len(t, batch.PickingIDs, 2)

	assert.True(t, batch.DetachPicking("PICK-001"))
	assert.False(t, batch.HasPicking("PICK-001"))
	assert.True(t, batch.HasPicking("PICK-002"))

	// Detaching an unknown picking is a no-op
	assert.False(t, batch.DetachPicking("PICK-999"))
	assert.Len(t, batch.PickingIDs, 1)

	events := batch.GetDomainEvents()
	require.Len(t, events, 3)
	_, ok := events[0].(*PickingAttachedEvent)
	assert.True(t, ok)
	_, ok = events[2].(*PickingDetachedEvent)
	assert.True(t, ok)
}

// TestBatchMarkDone tests completion and its idempotency
func TestBatchMarkDone(t *testing.T) {
	batch := NewBatch("user-1")
	batch.AttachPicking("PICK-001")
	batch.ClearDomainEvents()

	batch.MarkDone()
	assert.Equal(t, BatchStateDone, batch.State)
	require.NotNil(t, batch.CompletedAt)
	firstCompletedAt := *batch.CompletedAt

	events := batch.GetDomainEvents()
	require.Len(t, events, 1)
	completed, ok := events[0].(*BatchCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"PICK-001"}, completed.PickingIDs)

	// Marking a done batch again changes nothing
	batch.MarkDone()
	assert.Equal(t, firstCompletedAt, *batch.CompletedAt)
	assert.Len(t, batch.GetDomainEvents(), 1)
}

// TestPickingStateTerminal tests the state classification helpers
func TestPickingStateTerminal(t *testing.T) {
	tests := []struct {
		state    PickingState
		terminal bool
		notReady bool
	}{
		{PickingStateDraft, false, true},
		{PickingStateWaiting, false, true},
		{PickingStateConfirmed, false, true},
		{PickingStateAssigned, false, false},
		{PickingStateDone, true, false},
		{PickingStateCancel, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.Terminal())
			assert.Equal(t, tt.notReady, tt.state.NotReady())
		})
	}
}

// TestMoveLineCompleted tests move line progress helpers
func TestMoveLineCompleted(t *testing.T) {
	tests := []struct {
		name      string
		line      MoveLine
		completed bool
		started   bool
	}{
		{
			name:      "Untouched line",
			line:      MoveLine{QtyOrdered: 5, QtyDone: 0},
			completed: false,
			started:   false,
		},
		{
			name:      "Partially picked line",
			line:      MoveLine{QtyOrdered: 5, QtyDone: 2},
			completed: false,
			started:   true,
		},
		{
			name:      "Fully picked line",
			line:      MoveLine{QtyOrdered: 5, QtyDone: 5},
			completed: true,
			started:   true,
		},
		{
			name:      "Zero ordered quantity never completes",
			line:      MoveLine{QtyOrdered: 0, QtyDone: 0},
			completed: false,
			started:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.completed, tt.line.Completed())
			assert.Equal(t, tt.started, tt.line.Started())
		})
	}
}

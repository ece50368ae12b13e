package activities

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wms-platform/batching-service/internal/application"
	"go.temporal.io/sdk/activity"
)

// BatchActivities contains activities for the batch lifecycle workflow
type BatchActivities struct {
	service *application.BatchApplicationService
	logger  *slog.Logger
}

// NewBatchActivities creates a new BatchActivities instance
func NewBatchActivities(service *application.BatchApplicationService, logger *slog.Logger) *BatchActivities {
	return &BatchActivities{
		service: service,
		logger:  logger,
	}
}

// AllocateBatchInput represents input for allocating a batch to a user
type AllocateBatchInput struct {
	UserID     string `json:"userId"`
	TypeID     string `json:"typeId,omitempty"`
	Priorities []int  `json:"priorities,omitempty"`
}

// AllocateBatch returns the user's in-progress batch, creating one from
// the eligible picking pool when none exists. A nil result means there is
// no work available.
func (a *BatchActivities) AllocateBatch(ctx context.Context, input AllocateBatchInput) (*application.BatchDTO, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Allocating batch", "userId", input.UserID)

	batch, err := a.service.GetSingleBatch(ctx, application.GetSingleBatchQuery{CallerID: input.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up batch: %w", err)
	}
	if batch != nil {
		logger.Info("User already has a batch", "userId", input.UserID, "batchId", batch.BatchID)
		return batch, nil
	}

	batch, err = a.service.CreateBatch(ctx, application.CreateBatchCommand{
		CallerID:   input.UserID,
		TypeID:     input.TypeID,
		Priorities: input.Priorities,
	})
	if err != nil {
		logger.Error("Failed to create batch", "userId", input.UserID, "error", err)
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	if batch == nil {
		logger.Info("No eligible pickings for user", "userId", input.UserID)
		return nil, nil
	}

	logger.Info("Batch allocated", "userId", input.UserID, "batchId", batch.BatchID)
	return batch, nil
}

// ReconcileBatch closes out finished work on one of the user's batches
func (a *BatchActivities) ReconcileBatch(ctx context.Context, userID, batchID string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Reconciling batch", "userId", userID, "batchId", batchID)

	_, err := a.service.ReconcileBatches(ctx, application.ReconcileBatchesCommand{
		CallerID: userID,
		BatchIDs: []string{batchID},
	})
	if err != nil {
		return fmt.Errorf("failed to reconcile batch: %w", err)
	}

	logger.Info("Batch reconciled", "batchId", batchID)
	return nil
}

// UnassignBatches returns all of a user's assigned pickings to the pool
func (a *BatchActivities) UnassignBatches(ctx context.Context, userID string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Unassigning user batches", "userId", userID)

	if err := a.service.UnassignUserBatches(ctx, application.UnassignUserBatchesCommand{CallerID: userID}); err != nil {
		return fmt.Errorf("failed to unassign batches: %w", err)
	}

	logger.Info("User batches unassigned", "userId", userID)
	return nil
}

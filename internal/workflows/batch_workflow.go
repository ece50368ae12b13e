package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// BatchLifecycleInput represents the input for the batch lifecycle workflow
type BatchLifecycleInput struct {
	UserID     string `json:"userId"`
	TypeID     string `json:"typeId,omitempty"`
	Priorities []int  `json:"priorities,omitempty"`
	// IdleTimeout releases the batch back to the pool when the operator
	// stops sending progress signals. Zero means the default of one hour.
	IdleTimeout time.Duration `json:"idleTimeout,omitempty"`
}

// BatchLifecycleResult represents the result of the batch lifecycle workflow
type BatchLifecycleResult struct {
	BatchID    string `json:"batchId,omitempty"`
	Completed  bool   `json:"completed"`
	Unassigned bool   `json:"unassigned"`
	Error      string `json:"error,omitempty"`
}

// BatchLifecycleWorkflow supervises one operator's picking batch from
// allocation to drop-off. The picking terminal drives the actual work
// through the HTTP API; this workflow tracks progress via signals and
// releases abandoned batches.
func BatchLifecycleWorkflow(ctx workflow.Context, input BatchLifecycleInput) (*BatchLifecycleResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting batch lifecycle workflow", "userId", input.UserID)

	result := &BatchLifecycleResult{}

	idleTimeout := input.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = time.Hour
	}

	ao := workflow.ActivityOptions{
		ScheduleToCloseTimeout: 5 * time.Minute,
		StartToCloseTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// Step 1: allocate a batch for the operator
	var batch *struct {
		BatchID string `json:"batchId"`
	}
	err := workflow.ExecuteActivity(ctx, "AllocateBatch", map[string]interface{}{
		"userId":     input.UserID,
		"typeId":     input.TypeID,
		"priorities": input.Priorities,
	}).Get(ctx, &batch)
	if err != nil {
		result.Error = fmt.Sprintf("failed to allocate batch: %v", err)
		return result, err
	}

	if batch == nil || batch.BatchID == "" {
		logger.Info("No work available", "userId", input.UserID)
		return result, nil
	}
	result.BatchID = batch.BatchID
	logger.Info("Batch allocated", "userId", input.UserID, "batchId", batch.BatchID)

	// Step 2: track operator progress via signals
	taskSignal := workflow.GetSignalChannel(ctx, "taskCompleted")
	unpickableSignal := workflow.GetSignalChannel(ctx, "unpickableReported")
	dropOffSignal := workflow.GetSignalChannel(ctx, "dropOffCompleted")

	tasksDone := 0
	finished := false
	abandoned := false

	for !finished && !abandoned {
		loopCtx, cancelLoop := workflow.WithCancel(ctx)
		selector := workflow.NewSelector(loopCtx)

		selector.AddReceive(taskSignal, func(c workflow.ReceiveChannel, more bool) {
			var task struct {
				LineIDs []string `json:"lineIds"`
			}
			c.Receive(loopCtx, &task)
			tasksDone++
			logger.Info("Task completed", "batchId", result.BatchID, "tasksDone", tasksDone)
		})

		selector.AddReceive(unpickableSignal, func(c workflow.ReceiveChannel, more bool) {
			var report struct {
				Reason  string `json:"reason"`
				Partial bool   `json:"partial"`
			}
			c.Receive(loopCtx, &report)
			logger.Warn("Unpickable reported", "batchId", result.BatchID, "reason", report.Reason)
		})

		selector.AddReceive(dropOffSignal, func(c workflow.ReceiveChannel, more bool) {
			var dropOff struct {
				ContinueBatch bool `json:"continueBatch"`
			}
			c.Receive(loopCtx, &dropOff)
			if !dropOff.ContinueBatch {
				finished = true
			}
			logger.Info("Drop-off completed", "batchId", result.BatchID, "continueBatch", dropOff.ContinueBatch)
		})

		selector.AddFuture(workflow.NewTimer(loopCtx, idleTimeout), func(f workflow.Future) {
			abandoned = true
			logger.Warn("Batch idle timeout", "batchId", result.BatchID, "userId", input.UserID)
		})

		selector.Select(loopCtx)
		cancelLoop()
	}

	// Step 3: release or close out the batch
	if abandoned {
		err = workflow.ExecuteActivity(ctx, "UnassignBatches", input.UserID).Get(ctx, nil)
		if err != nil {
			result.Error = fmt.Sprintf("failed to unassign batches: %v", err)
			return result, err
		}
		result.Unassigned = true
		logger.Info("Batch returned to pool", "batchId", result.BatchID)
		return result, nil
	}

	err = workflow.ExecuteActivity(ctx, "ReconcileBatch", input.UserID, result.BatchID).Get(ctx, nil)
	if err != nil {
		logger.Warn("Failed to reconcile batch", "batchId", result.BatchID, "error", err)
	}

	result.Completed = true
	logger.Info("Batch lifecycle workflow completed",
		"userId", input.UserID,
		"batchId", result.BatchID,
		"tasksDone", tasksDone,
	)

	return result, nil
}

package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ShortageSweepInput represents the input for the shortage sweep workflow
type ShortageSweepInput struct {
	// DryRun reports shortages without cancelling anything
	DryRun bool `json:"dryRun,omitempty"`
}

// ShortageSweepResult represents the result of the shortage sweep workflow
type ShortageSweepResult struct {
	LinesCancelled int    `json:"linesCancelled"`
	OrdersTouched  int    `json:"ordersTouched"`
	Error          string `json:"error,omitempty"`
}

// ShortageSweepWorkflow scans open sale orders for lines that free stock
// cannot cover, cancels them and re-derives the delivery state of the
// affected orders
func ShortageSweepWorkflow(ctx workflow.Context, input ShortageSweepInput) (*ShortageSweepResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting shortage sweep workflow", "dryRun", input.DryRun)

	result := &ShortageSweepResult{}

	ao := workflow.ActivityOptions{
		ScheduleToCloseTimeout: 30 * time.Minute,
		StartToCloseTimeout:    10 * time.Minute,
		HeartbeatTimeout:       time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var report struct {
		LineIDs  []string `json:"lineIds"`
		OrderIDs []string `json:"orderIds"`
	}
	err := workflow.ExecuteActivity(ctx, "ScanShortages").Get(ctx, &report)
	if err != nil {
		result.Error = fmt.Sprintf("failed to scan shortages: %v", err)
		return result, err
	}

	if len(report.LineIDs) == 0 {
		logger.Info("No shortages found")
		return result, nil
	}

	if input.DryRun {
		logger.Info("Dry run, skipping cancellation", "lineCount", len(report.LineIDs))
		return result, nil
	}

	err = workflow.ExecuteActivity(ctx, "CancelShortageLines", report.LineIDs).Get(ctx, nil)
	if err != nil {
		result.Error = fmt.Sprintf("failed to cancel shortage lines: %v", err)
		return result, err
	}
	result.LinesCancelled = len(report.LineIDs)

	err = workflow.ExecuteActivity(ctx, "RefreshDeliveryStates", report.OrderIDs).Get(ctx, nil)
	if err != nil {
		logger.Warn("Failed to refresh delivery states", "error", err)
	}
	result.OrdersTouched = len(report.OrderIDs)

	logger.Info("Shortage sweep workflow completed",
		"linesCancelled", result.LinesCancelled,
		"ordersTouched", result.OrdersTouched,
	)

	return result, nil
}

package activities

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wms-platform/batching-service/internal/application"
	"go.temporal.io/sdk/activity"
)

// ShortageActivities contains activities for the shortage sweep workflow
type ShortageActivities struct {
	orders *application.SaleOrderApplicationService
	logger *slog.Logger
}

// NewShortageActivities creates a new ShortageActivities instance
func NewShortageActivities(orders *application.SaleOrderApplicationService, logger *slog.Logger) *ShortageActivities {
	return &ShortageActivities{
		orders: orders,
		logger: logger,
	}
}

// ScanShortages walks the open sale orders and reports the lines that
// free stock cannot cover
func (a *ShortageActivities) ScanShortages(ctx context.Context) (*application.ShortageReportDTO, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Scanning open orders for shortages")

	report, err := a.orders.ComputeShortages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute shortages: %w", err)
	}

	logger.Info("Shortage scan finished", "lineCount", len(report.LineIDs), "orderCount", len(report.OrderIDs))
	return report, nil
}

// CancelShortageLines cancels the given unfulfillable order lines
func (a *ShortageActivities) CancelShortageLines(ctx context.Context, lineIDs []string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Cancelling shortage lines", "lineCount", len(lineIDs))

	if err := a.orders.CancelUnfulfillable(ctx, application.CancelUnfulfillableCommand{LineIDs: lineIDs}); err != nil {
		return fmt.Errorf("failed to cancel shortage lines: %w", err)
	}

	return nil
}

// RefreshDeliveryStates re-derives the delivery state of the given orders
func (a *ShortageActivities) RefreshDeliveryStates(ctx context.Context, orderIDs []string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Refreshing delivery states", "orderCount", len(orderIDs))

	if err := a.orders.CheckDelivered(ctx, application.CheckDeliveredCommand{OrderIDs: orderIDs}); err != nil {
		return fmt.Errorf("failed to refresh delivery states: %w", err)
	}

	return nil
}

package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/batching-service/internal/domain"
	"github.com/wms-platform/batching-service/pkg/errors"
	"github.com/wms-platform/batching-service/pkg/logging"
)

// orderPageSize bounds how many orders are considered per page when
// scanning for shortages.
const orderPageSize = 100

// SaleOrderApplicationService reconciles sale orders against free stock
// and delivery progress
type SaleOrderApplicationService struct {
	orders domain.SaleOrderStore
	logger *logging.Logger
}

// NewSaleOrderApplicationService creates a new SaleOrderApplicationService
func NewSaleOrderApplicationService(orders domain.SaleOrderStore, logger *logging.Logger) *SaleOrderApplicationService {
	return &SaleOrderApplicationService{
		orders: orders,
		logger: logger,
	}
}

// ComputeShortages pages through open orders in fulfilment priority
// order and reports the order lines free stock cannot cover. Earlier
// orders consume stock before later ones; availability per product is
// fetched once and carried across pages.
func (s *SaleOrderApplicationService) ComputeShortages(ctx context.Context) (*ShortageReportDTO, error) {
	stock := make(map[string]float64)
	report := &ShortageReportDTO{}
	orderSeen := make(map[string]struct{})

	for offset := 0; ; offset += orderPageSize {
		orders, err := s.orders.FindOpenOrders(ctx, offset, orderPageSize)
		if err != nil {
			s.logger.WithError(err).Error("Failed to page open orders", "offset", offset)
			return nil, fmt.Errorf("failed to page open orders: %w", err)
		}
		if len(orders) == 0 {
			break
		}

		for _, order := range orders {
			for _, line := range order.Lines {
				if line.Cancelled || line.Committed() {
					continue
				}
				if _, ok := stock[line.ProductID]; ok {
					continue
				}
				qty, err := s.orders.AvailableQuantity(ctx, line.ProductID)
				if err != nil {
					return nil, fmt.Errorf("failed to fetch availability for product %s: %w", line.ProductID, err)
				}
				stock[line.ProductID] = qty
			}
		}

		for _, line := range domain.UnfulfillableLines(orders, stock) {
			report.LineIDs = append(report.LineIDs, line.LineID)
			if _, ok := orderSeen[line.OrderID]; !ok {
				orderSeen[line.OrderID] = struct{}{}
				report.OrderIDs = append(report.OrderIDs, line.OrderID)
			}
		}

		if len(orders) < orderPageSize {
			break
		}
	}

	s.logger.Info("Computed order shortages", "lines", len(report.LineIDs), "orders", len(report.OrderIDs))
	return report, nil
}

// CancelUnfulfillable cancels order lines that cannot be covered by
// stock, flagging them as cancelled due to shortage. Without explicit
// line ids the whole open-order set is scanned first.
func (s *SaleOrderApplicationService) CancelUnfulfillable(ctx context.Context, cmd CancelUnfulfillableCommand) error {
	lineIDs := cmd.LineIDs
	if len(lineIDs) == 0 {
		report, err := s.ComputeShortages(ctx)
		if err != nil {
			return err
		}
		lineIDs = report.LineIDs
	}
	if len(lineIDs) == 0 {
		return nil
	}

	if err := s.orders.CancelLines(ctx, lineIDs); err != nil {
		s.logger.WithError(err).Error("Failed to cancel short lines")
		return fmt.Errorf("failed to cancel short lines: %w", err)
	}

	// Orders left without a single live line follow their lines down.
	orders, err := s.orders.FindOrdersByLines(ctx, lineIDs)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load orders for cancelled lines")
		return fmt.Errorf("failed to load orders for cancelled lines: %w", err)
	}
	cancelledOrders := 0
	for _, order := range orders {
		if order.State == domain.SaleOrderStateCancelled || !order.FullyCancelled() {
			continue
		}
		if err := s.orders.SetOrderState(ctx, order.OrderID, domain.SaleOrderStateCancelled); err != nil {
			s.logger.WithError(err).Error("Failed to cancel order", "orderId", order.OrderID)
			return fmt.Errorf("failed to cancel order %s: %w", order.OrderID, err)
		}
		cancelledOrders++
	}

	s.logger.Event(ctx, "order.lines-cancelled", map[string]any{
		"lines":  len(lineIDs),
		"orders": cancelledOrders,
		"reason": "stock shortage",
	})
	return nil
}

// CheckDelivered walks the given orders and advances each order whose
// pickings all reached a terminal state: done when every picking is
// done, cancelled when every picking is cancelled.
func (s *SaleOrderApplicationService) CheckDelivered(ctx context.Context, cmd CheckDeliveredCommand) error {
	for _, orderID := range cmd.OrderIDs {
		order, err := s.orders.FindOrder(ctx, orderID)
		if err != nil {
			s.logger.WithError(err).Error("Failed to get order", "orderId", orderID)
			return fmt.Errorf("failed to get order: %w", err)
		}
		if order == nil {
			return errors.ErrNotFoundWithID("sale order", orderID)
		}

		states, err := s.orders.PickingStatesForOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to load picking states for order: %w", err)
		}

		next := domain.DeliveryStatus(states)
		if next == "" || next == order.State {
			continue
		}

		if err := s.orders.SetOrderState(ctx, orderID, next); err != nil {
			s.logger.WithError(err).Error("Failed to advance order state", "orderId", orderID)
			return fmt.Errorf("failed to advance order state: %w", err)
		}

		s.logger.Info("Advanced order state", "orderId", orderID, "state", string(next))
	}
	return nil
}

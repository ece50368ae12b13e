package domain

import (
	"context"
	"time"
)

// SaleOrderState represents the lifecycle state of a sale order
type SaleOrderState string

const (
	SaleOrderStateDraft     SaleOrderState = "draft"
	SaleOrderStateSale      SaleOrderState = "sale"
	SaleOrderStateDone      SaleOrderState = "done"
	SaleOrderStateCancelled SaleOrderState = "cancel"
)

// SaleOrder is a customer order whose lines generate stock moves. The
// batching service only reads orders to reconcile availability and
// delivery; order capture lives elsewhere.
type SaleOrder struct {
	OrderID     string          `bson:"orderId" json:"orderId"`
	Name        string          `bson:"name" json:"name"`
	Origin      string          `bson:"origin,omitempty" json:"origin,omitempty"`
	State       SaleOrderState  `bson:"state" json:"state"`
	Priority    int             `bson:"priority" json:"priority"`
	RequestedAt time.Time       `bson:"requestedAt" json:"requestedAt"`
	Lines       []SaleOrderLine `bson:"lines" json:"lines"`
}

// FullyCancelled reports whether the order has lines and every one of
// them is cancelled.
func (o *SaleOrder) FullyCancelled() bool {
	if len(o.Lines) == 0 {
		return false
	}
	for _, l := range o.Lines {
		if !l.Cancelled {
			return false
		}
	}
	return true
}

// SaleOrderLine is one product demand on a sale order
type SaleOrderLine struct {
	LineID               string         `bson:"lineId" json:"lineId"`
	OrderID              string         `bson:"orderId" json:"orderId"`
	ProductID            string         `bson:"productId" json:"productId"`
	Qty                  float64        `bson:"qty" json:"qty"`
	Cancelled            bool           `bson:"cancelled" json:"cancelled"`
	CancelledDueShortage bool           `bson:"cancelledDueShortage" json:"cancelledDueShortage"`
	MoveStates           []PickingState `bson:"moveStates,omitempty" json:"moveStates,omitempty"`
}

// Committed reports whether the line's moves are already reserved,
// delivered or cancelled: such lines no longer compete for free stock.
func (l SaleOrderLine) Committed() bool {
	for _, s := range l.MoveStates {
		if s == PickingStateAssigned || s == PickingStateDone || s == PickingStateCancel {
			return true
		}
	}
	return false
}

// SaleOrderStore is the sales-side collaborator of the availability
// reconciler
type SaleOrderStore interface {
	// FindOpenOrders pages through orders in state draft or sale,
	// ordered by requested date asc, priority desc, order id asc.
	FindOpenOrders(ctx context.Context, offset, limit int) ([]*SaleOrder, error)
	FindOrder(ctx context.Context, orderID string) (*SaleOrder, error)
	// AvailableQuantity is the free stock for a product over the stock
	// locations: sum of quant quantity minus reservations.
	AvailableQuantity(ctx context.Context, productID string) (float64, error)
	// CancelLines cancels the given lines, flagging them as cancelled
	// due to stock shortage.
	CancelLines(ctx context.Context, lineIDs []string) error
	// FindOrdersByLines returns the orders owning any of the given lines.
	FindOrdersByLines(ctx context.Context, lineIDs []string) ([]*SaleOrder, error)
	SetOrderState(ctx context.Context, orderID string, state SaleOrderState) error
	// PickingStatesForOrder returns the states of all pickings generated
	// by the order's lines.
	PickingStatesForOrder(ctx context.Context, orderID string) ([]PickingState, error)
}

// UnfulfillableLines walks orders in priority order, consuming from the
// available-stock map, and returns the lines that cannot be covered by
// the remaining free stock. Lines already committed (reserved, done or
// cancelled moves) are skipped, as are cancelled lines. The stock map is
// mutated: callers paging through orders pass the same map to every call
// so earlier orders consume stock before later ones.
func UnfulfillableLines(orders []*SaleOrder, stock map[string]float64) []SaleOrderLine {
	var short []SaleOrderLine

	for _, order := range orders {
		for _, line := range order.Lines {
			if line.Cancelled || line.Committed() {
				continue
			}

			remaining, ok := stock[line.ProductID]
			if !ok {
				continue
			}

			if remaining >= line.Qty {
				stock[line.ProductID] = remaining - line.Qty
			} else {
				short = append(short, line)
			}
		}
	}

	return short
}

// DeliveryStatus derives the order state implied by its picking states:
// done when every picking is done, cancelled when every picking is
// cancelled, otherwise unchanged (empty).
func DeliveryStatus(states []PickingState) SaleOrderState {
	if len(states) == 0 {
		return ""
	}

	allDone, allCancelled := true, true
	for _, s := range states {
		if s != PickingStateDone {
			allDone = false
		}
		if s != PickingStateCancel {
			allCancelled = false
		}
	}

	switch {
	case allDone:
		return SaleOrderStateDone
	case allCancelled:
		return SaleOrderStateCancelled
	default:
		return ""
	}
}

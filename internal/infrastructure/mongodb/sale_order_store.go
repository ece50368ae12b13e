package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/batching-service/internal/domain"
)

// SaleOrderStore is the MongoDB-backed view of sale orders the
// availability reconciler works over.
type SaleOrderStore struct {
	orders    *mongo.Collection
	quants    *mongo.Collection
	pickings  *mongo.Collection
	moveLines *mongo.Collection
}

func NewSaleOrderStore(db *mongo.Database) *SaleOrderStore {
	store := &SaleOrderStore{
		orders:    db.Collection("sale_orders"),
		quants:    db.Collection("quants"),
		pickings:  db.Collection("pickings"),
		moveLines: db.Collection("move_lines"),
	}
	store.ensureIndexes(context.Background())
	return store
}

func (s *SaleOrderStore) ensureIndexes(ctx context.Context) {
	s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "requestedAt", Value: 1}}},
	})
}

// FindOpenOrders pages through orders still awaiting fulfilment,
// earliest requested first, higher priority winning within a day.
func (s *SaleOrderStore) FindOpenOrders(ctx context.Context, offset, limit int) ([]*domain.SaleOrder, error) {
	filter := bson.M{"state": bson.M{"$in": bson.A{
		domain.SaleOrderStateDraft,
		domain.SaleOrderStateSale,
	}}}

	opts := options.Find().
		SetSort(bson.D{
			{Key: "requestedAt", Value: 1},
			{Key: "priority", Value: -1},
			{Key: "orderId", Value: 1},
		}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var orders []*domain.SaleOrder
	err = cursor.All(ctx, &orders)
	return orders, err
}

func (s *SaleOrderStore) FindOrder(ctx context.Context, orderID string) (*domain.SaleOrder, error) {
	var order domain.SaleOrder
	err := s.orders.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// AvailableQuantity sums the free stock for a product over all quants:
// held quantity minus reservations.
func (s *SaleOrderStore) AvailableQuantity(ctx context.Context, productID string) (float64, error) {
	cursor, err := s.quants.Find(ctx, bson.M{"productId": productID})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var quants []domain.Quant
	if err := cursor.All(ctx, &quants); err != nil {
		return 0, err
	}

	var free float64
	for _, q := range quants {
		free += q.Quantity - q.Reserved
	}
	return free, nil
}

func (s *SaleOrderStore) CancelLines(ctx context.Context, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}

	filter := bson.M{"lines.lineId": bson.M{"$in": lineIDs}}
	update := bson.M{"$set": bson.M{
		"lines.$[short].cancelled":            true,
		"lines.$[short].cancelledDueShortage": true,
		"updatedAt":                           time.Now(),
	}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: bson.A{bson.M{"short.lineId": bson.M{"$in": lineIDs}}},
	})

	_, err := s.orders.UpdateMany(ctx, filter, update, opts)
	return err
}

func (s *SaleOrderStore) FindOrdersByLines(ctx context.Context, lineIDs []string) ([]*domain.SaleOrder, error) {
	if len(lineIDs) == 0 {
		return nil, nil
	}

	cursor, err := s.orders.Find(ctx, bson.M{"lines.lineId": bson.M{"$in": lineIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var orders []*domain.SaleOrder
	err = cursor.All(ctx, &orders)
	return orders, err
}

func (s *SaleOrderStore) SetOrderState(ctx context.Context, orderID string, state domain.SaleOrderState) error {
	_, err := s.orders.UpdateOne(ctx,
		bson.M{"orderId": orderID},
		bson.M{"$set": bson.M{"state": state, "updatedAt": time.Now()}},
	)
	return err
}

// PickingStatesForOrder returns the states of the pickings generated by
// the order, matched through the procurement group named after it.
func (s *SaleOrderStore) PickingStatesForOrder(ctx context.Context, orderID string) ([]domain.PickingState, error) {
	cursor, err := s.pickings.Find(ctx, bson.M{"groupId": orderID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var pickings []domain.Picking
	if err := cursor.All(ctx, &pickings); err != nil {
		return nil, err
	}

	states := make([]domain.PickingState, 0, len(pickings))
	for _, p := range pickings {
		states = append(states, p.State)
	}
	return states, nil
}

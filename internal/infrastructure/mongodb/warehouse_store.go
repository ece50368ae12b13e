package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/batching-service/internal/domain"
)

// WarehouseStore is the MongoDB-backed warehouse data store: pickings,
// move lines, locations, packages, products, quants and procurement
// groups, each in its own collection.
type WarehouseStore struct {
	pickings  *mongo.Collection
	moveLines *mongo.Collection
	locations *mongo.Collection
	packages  *mongo.Collection
	products  *mongo.Collection
	quants    *mongo.Collection
	groups    *mongo.Collection
	types     *mongo.Collection
	notes     *mongo.Collection
}

func NewWarehouseStore(db *mongo.Database) *WarehouseStore {
	store := &WarehouseStore{
		pickings:  db.Collection("pickings"),
		moveLines: db.Collection("move_lines"),
		locations: db.Collection("locations"),
		packages:  db.Collection("packages"),
		products:  db.Collection("products"),
		quants:    db.Collection("quants"),
		groups:    db.Collection("procurement_groups"),
		types:     db.Collection("picking_types"),
		notes:     db.Collection("picking_notes"),
	}
	store.ensureIndexes(context.Background())
	return store
}

func (s *WarehouseStore) ensureIndexes(ctx context.Context) {
	s.pickings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pickingId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "batchId", Value: 1}}},
		{Keys: bson.D{{Key: "typeId", Value: 1}, {Key: "state", Value: 1}}},
	})
	s.moveLines.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "lineId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "pickingId", Value: 1}}},
	})
	s.locations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "locationId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "barcode", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	s.quants.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "quantId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "locationId", Value: 1}}},
		{Keys: bson.D{{Key: "packageId", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
}

func (s *WarehouseStore) FindPicking(ctx context.Context, pickingID string) (*domain.Picking, error) {
	var picking domain.Picking
	err := s.pickings.FindOne(ctx, bson.M{"pickingId": pickingID}).Decode(&picking)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &picking, nil
}

func (s *WarehouseStore) FindPickingsByBatch(ctx context.Context, batchID string) ([]*domain.Picking, error) {
	cursor, err := s.pickings.Find(ctx, bson.M{"batchId": batchID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var pickings []*domain.Picking
	err = cursor.All(ctx, &pickings)
	return pickings, err
}

// NextEligiblePicking returns the highest-ranked assigned, unbatched
// picking of the given type. Priority wins first, then the earliest
// scheduled date, then the lowest picking id as a stable tie-break.
func (s *WarehouseStore) NextEligiblePicking(ctx context.Context, typeID string, priorities []int) (*domain.Picking, error) {
	filter := bson.M{
		"state":   domain.PickingStateAssigned,
		"batchId": bson.M{"$in": bson.A{nil, ""}},
	}
	if typeID != "" {
		filter["typeId"] = typeID
	}
	if len(priorities) > 0 {
		filter["priority"] = bson.M{"$in": priorities}
	}

	opts := options.FindOne().SetSort(bson.D{
		{Key: "priority", Value: -1},
		{Key: "scheduledAt", Value: 1},
		{Key: "pickingId", Value: 1},
	})

	var picking domain.Picking
	err := s.pickings.FindOne(ctx, filter, opts).Decode(&picking)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &picking, nil
}

func (s *WarehouseStore) SetPickingBatch(ctx context.Context, pickingIDs []string, batchID string) error {
	if len(pickingIDs) == 0 {
		return nil
	}

	filter := bson.M{"pickingId": bson.M{"$in": pickingIDs}}
	var update bson.M
	if batchID == "" {
		update = bson.M{"$unset": bson.M{"batchId": ""}}
	} else {
		update = bson.M{"$set": bson.M{"batchId": batchID}}
	}

	_, err := s.pickings.UpdateMany(ctx, filter, update)
	return err
}

// Backorder splits the given move lines off the picking into a new one.
// The new picking carries the same type, state and priority and records
// the original as its backorder origin.
func (s *WarehouseStore) Backorder(ctx context.Context, pickingID string, lineIDs []string) (*domain.Picking, error) {
	original, err := s.FindPicking(ctx, pickingID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, fmt.Errorf("picking %s not found", pickingID)
	}

	backorder := &domain.Picking{
		PickingID:   "PICK-" + uuid.New().String()[:8],
		Name:        original.Name + "-BO",
		Kind:        original.Kind,
		TypeID:      original.TypeID,
		State:       original.State,
		BatchID:     original.BatchID,
		GroupID:     original.GroupID,
		Priority:    original.Priority,
		ScheduledAt: original.ScheduledAt,
		BackorderOf: original.PickingID,
	}

	if _, err := s.pickings.InsertOne(ctx, backorder); err != nil {
		return nil, fmt.Errorf("failed to create backorder: %w", err)
	}

	filter := bson.M{"lineId": bson.M{"$in": lineIDs}, "pickingId": pickingID}
	update := bson.M{"$set": bson.M{"pickingId": backorder.PickingID}}
	if _, err := s.moveLines.UpdateMany(ctx, filter, update); err != nil {
		return nil, fmt.Errorf("failed to move lines to backorder: %w", err)
	}

	return backorder, nil
}

// ValidatePicking completes a picking: every move line is closed at its
// picked quantity and the picking goes to done.
func (s *WarehouseStore) ValidatePicking(ctx context.Context, pickingID string) error {
	filter := bson.M{"pickingId": pickingID, "qtyDone": bson.M{"$gt": 0}}
	update := bson.A{bson.M{"$set": bson.M{"qtyOrdered": "$qtyDone"}}}
	if _, err := s.moveLines.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to close move lines: %w", err)
	}

	_, err := s.pickings.UpdateOne(ctx,
		bson.M{"pickingId": pickingID},
		bson.M{"$set": bson.M{"state": domain.PickingStateDone}},
	)
	return err
}

// UnreservePicking releases the picking's stock reservation and records
// the reason as an audit note.
func (s *WarehouseStore) UnreservePicking(ctx context.Context, pickingID, reason string) error {
	lines, err := s.FindMoveLinesByPickings(ctx, []string{pickingID})
	if err != nil {
		return err
	}

	for _, ml := range lines {
		filter := bson.M{"productId": ml.ProductID, "locationId": ml.LocationID}
		if ml.PackageID != "" {
			filter["packageId"] = ml.PackageID
		}
		update := bson.M{"$inc": bson.M{"reserved": -(ml.QtyOrdered - ml.QtyDone)}}
		if _, err := s.quants.UpdateOne(ctx, filter, update); err != nil {
			return fmt.Errorf("failed to release quant reservation: %w", err)
		}
	}

	if _, err := s.pickings.UpdateOne(ctx,
		bson.M{"pickingId": pickingID},
		bson.M{"$set": bson.M{"state": domain.PickingStateConfirmed}},
	); err != nil {
		return err
	}

	return s.PostNote(ctx, pickingID, reason)
}

// CancelPicking moves the picking to cancel and records the reason.
func (s *WarehouseStore) CancelPicking(ctx context.Context, pickingID, reason string) error {
	if _, err := s.pickings.UpdateOne(ctx,
		bson.M{"pickingId": pickingID},
		bson.M{"$set": bson.M{"state": domain.PickingStateCancel}},
	); err != nil {
		return err
	}
	return s.PostNote(ctx, pickingID, reason)
}

// ReassignPicking re-attempts stock reservation for the picking and
// returns the resulting state: assigned when every outstanding line is
// covered by free stock, confirmed otherwise. Terminal pickings are
// left alone.
func (s *WarehouseStore) ReassignPicking(ctx context.Context, pickingID string) (domain.PickingState, error) {
	picking, err := s.FindPicking(ctx, pickingID)
	if err != nil {
		return "", err
	}
	if picking == nil {
		return "", fmt.Errorf("picking %s not found", pickingID)
	}
	if picking.State.Terminal() {
		return picking.State, nil
	}

	lines, err := s.FindMoveLinesByPickings(ctx, []string{pickingID})
	if err != nil {
		return "", err
	}

	state := domain.PickingStateAssigned
	for _, ml := range lines {
		if ml.Completed() {
			continue
		}

		free, err := s.freeQuantity(ctx, ml)
		if err != nil {
			return "", err
		}
		need := ml.QtyOrdered - ml.QtyDone
		if free < need {
			state = domain.PickingStateConfirmed
			break
		}
	}

	if state == domain.PickingStateAssigned {
		for _, ml := range lines {
			if ml.Completed() {
				continue
			}
			filter := bson.M{"productId": ml.ProductID, "locationId": ml.LocationID}
			if ml.PackageID != "" {
				filter["packageId"] = ml.PackageID
			}
			update := bson.M{"$inc": bson.M{"reserved": ml.QtyOrdered - ml.QtyDone}}
			if _, err := s.quants.UpdateOne(ctx, filter, update); err != nil {
				return "", fmt.Errorf("failed to reserve quant: %w", err)
			}
		}
	}

	_, err = s.pickings.UpdateOne(ctx,
		bson.M{"pickingId": pickingID},
		bson.M{"$set": bson.M{"state": state}},
	)
	return state, err
}

func (s *WarehouseStore) freeQuantity(ctx context.Context, ml domain.MoveLine) (float64, error) {
	filter := bson.M{"productId": ml.ProductID, "locationId": ml.LocationID}
	if ml.PackageID != "" {
		filter["packageId"] = ml.PackageID
	}

	cursor, err := s.quants.Find(ctx, filter)
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

func (s *WarehouseStore) MergeLines(ctx context.Context, fromPickingID, toPickingID string) error {
	filter := bson.M{"pickingId": fromPickingID}
	update := bson.M{"$set": bson.M{"pickingId": toPickingID}}
	_, err := s.moveLines.UpdateMany(ctx, filter, update)
	return err
}

func (s *WarehouseStore) DeletePicking(ctx context.Context, pickingID string) error {
	_, err := s.pickings.DeleteOne(ctx, bson.M{"pickingId": pickingID})
	return err
}

// CreatePicking creates a picking seeded from the given quants: one
// move line per quant, moving the full held quantity out of the source
// location.
func (s *WarehouseStore) CreatePicking(ctx context.Context, spec domain.PickingSpec) (*domain.Picking, error) {
	pType, err := s.PickingType(ctx, spec.TypeID)
	if err != nil {
		return nil, err
	}

	destLocID := ""
	kind := domain.PickingKindInternal
	if pType != nil {
		destLocID = pType.DefaultDestLocID
		if pType.Kind != "" {
			kind = pType.Kind
		}
	}

	picking := &domain.Picking{
		PickingID:   "PICK-" + uuid.New().String()[:8],
		Name:        "INV-" + uuid.New().String()[:8],
		Kind:        kind,
		TypeID:      spec.TypeID,
		State:       domain.PickingStateAssigned,
		GroupID:     spec.GroupID,
		ScheduledAt: time.Now(),
	}

	if _, err := s.pickings.InsertOne(ctx, picking); err != nil {
		return nil, fmt.Errorf("failed to create picking: %w", err)
	}

	if len(spec.QuantIDs) > 0 {
		cursor, err := s.quants.Find(ctx, bson.M{"quantId": bson.M{"$in": spec.QuantIDs}})
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var quants []domain.Quant
		if err := cursor.All(ctx, &quants); err != nil {
			return nil, err
		}

		lines := make([]interface{}, 0, len(quants))
		for _, q := range quants {
			lines = append(lines, domain.MoveLine{
				LineID:         "LINE-" + uuid.New().String()[:8],
				PickingID:      picking.PickingID,
				ProductID:      q.ProductID,
				QtyOrdered:     q.Quantity,
				LocationID:     q.LocationID,
				DestLocationID: destLocID,
				PackageID:      q.PackageID,
			})

			// The new picking claims its seed stock, so a reassign of
			// the picking it was carved out of cannot draw from it.
			if _, err := s.quants.UpdateOne(ctx,
				bson.M{"quantId": q.QuantID},
				bson.M{"$inc": bson.M{"reserved": q.Quantity}},
			); err != nil {
				return nil, fmt.Errorf("failed to reserve quant: %w", err)
			}
		}
		if len(lines) > 0 {
			if _, err := s.moveLines.InsertMany(ctx, lines); err != nil {
				return nil, fmt.Errorf("failed to create move lines: %w", err)
			}
		}
	}

	return picking, nil
}

func (s *WarehouseStore) PostNote(ctx context.Context, pickingID, body string) error {
	_, err := s.notes.InsertOne(ctx, bson.M{
		"pickingId": pickingID,
		"body":      body,
		"createdAt": time.Now(),
	})
	return err
}

func (s *WarehouseStore) FindMoveLinesByPickings(ctx context.Context, pickingIDs []string) ([]domain.MoveLine, error) {
	if len(pickingIDs) == 0 {
		return nil, nil
	}

	cursor, err := s.moveLines.Find(ctx, bson.M{"pickingId": bson.M{"$in": pickingIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var lines []domain.MoveLine
	err = cursor.All(ctx, &lines)
	return lines, err
}

func (s *WarehouseStore) SetDestination(ctx context.Context, lineIDs []string, locationID string) error {
	if len(lineIDs) == 0 {
		return nil
	}

	filter := bson.M{"lineId": bson.M{"$in": lineIDs}}
	update := bson.M{"$set": bson.M{"destLocationId": locationID}}
	_, err := s.moveLines.UpdateMany(ctx, filter, update)
	return err
}

// ResolveLocation resolves a reference to a location by id, barcode or
// name, in that order. Nil when nothing matches.
func (s *WarehouseStore) ResolveLocation(ctx context.Context, ref string) (*domain.Location, error) {
	if ref == "" {
		return nil, nil
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"locationId": ref},
		bson.M{"barcode": ref},
		bson.M{"name": ref},
	}}

	var loc domain.Location
	err := s.locations.FindOne(ctx, filter).Decode(&loc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// IsValidDestination reports whether the location is acceptable for the
// picking: its type's default destination, or any location when the
// type does not restrict one.
func (s *WarehouseStore) IsValidDestination(ctx context.Context, pickingID, locationID string) (bool, error) {
	picking, err := s.FindPicking(ctx, pickingID)
	if err != nil {
		return false, err
	}
	if picking == nil {
		return false, nil
	}

	pType, err := s.PickingType(ctx, picking.TypeID)
	if err != nil {
		return false, err
	}
	if pType == nil || pType.DefaultDestLocID == "" {
		return true, nil
	}
	return pType.DefaultDestLocID == locationID, nil
}

func (s *WarehouseStore) ResolvePackage(ctx context.Context, name string) (*domain.StockPackage, error) {
	if name == "" {
		return nil, nil
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"packageId": name},
		bson.M{"name": name},
	}}

	var pkg domain.StockPackage
	err := s.packages.FindOne(ctx, filter).Decode(&pkg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (s *WarehouseStore) ResolveProduct(ctx context.Context, ref string) (*domain.Product, error) {
	if ref == "" {
		return nil, nil
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"productId": ref},
		bson.M{"sku": ref},
		bson.M{"name": ref},
	}}

	var product domain.Product
	err := s.products.FindOne(ctx, filter).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// EnsureGroup finds the procurement group with the given name, creating
// it on first use. Repeated reports with the same reason share a group.
func (s *WarehouseStore) EnsureGroup(ctx context.Context, name string) (*domain.ProcurementGroup, error) {
	var group domain.ProcurementGroup
	err := s.groups.FindOne(ctx, bson.M{"name": name}).Decode(&group)
	if err == nil {
		return &group, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	group = domain.ProcurementGroup{
		GroupID: "GRP-" + uuid.New().String()[:8],
		Name:    name,
	}
	if _, err := s.groups.InsertOne(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create procurement group: %w", err)
	}
	return &group, nil
}

func (s *WarehouseStore) QuantsForPackage(ctx context.Context, packageID string) ([]domain.Quant, error) {
	cursor, err := s.quants.Find(ctx, bson.M{"packageId": packageID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var quants []domain.Quant
	err = cursor.All(ctx, &quants)
	return quants, err
}

// QuantsForLines returns the quants the given move lines draw from,
// matched by product, source location and package.
func (s *WarehouseStore) QuantsForLines(ctx context.Context, lineIDs []string) ([]domain.Quant, error) {
	if len(lineIDs) == 0 {
		return nil, nil
	}

	cursor, err := s.moveLines.Find(ctx, bson.M{"lineId": bson.M{"$in": lineIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var lines []domain.MoveLine
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, err
	}

	clauses := make(bson.A, 0, len(lines))
	for _, ml := range lines {
		clause := bson.M{"productId": ml.ProductID, "locationId": ml.LocationID}
		if ml.PackageID != "" {
			clause["packageId"] = ml.PackageID
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	qCursor, err := s.quants.Find(ctx, bson.M{"$or": clauses})
	if err != nil {
		return nil, err
	}
	defer qCursor.Close(ctx)
	var quants []domain.Quant
	err = qCursor.All(ctx, &quants)
	return quants, err
}

func (s *WarehouseStore) PickingType(ctx context.Context, typeID string) (*domain.PickingType, error) {
	var pType domain.PickingType
	err := s.types.FindOne(ctx, bson.M{"typeId": typeID}).Decode(&pType)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pType, nil
}

// DefaultInternalTypeID returns the picking type used for stock
// investigation moves when the caller does not name one.
func (s *WarehouseStore) DefaultInternalTypeID(ctx context.Context) (string, error) {
	var pType domain.PickingType
	err := s.types.FindOne(ctx, bson.M{"kind": domain.PickingKindInternal}).Decode(&pType)
	if err == mongo.ErrNoDocuments {
		return "", fmt.Errorf("no internal picking type configured")
	}
	if err != nil {
		return "", err
	}
	return pType.TypeID, nil
}

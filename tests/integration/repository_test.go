package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/batching-service/internal/domain"
	batchmongo "github.com/wms-platform/batching-service/internal/infrastructure/mongodb"
	sharedtesting "github.com/wms-platform/batching-service/pkg/testing"
)

func setupTestDatabase(t *testing.T) (*mongo.Database, func()) {
	ctx := context.Background()

	mongoContainer, err := sharedtesting.NewMongoDBReplicaSetContainer(ctx)
	require.NoError(t, err)

	client, err := mongoContainer.GetClient(ctx)
	require.NoError(t, err)

	db := client.Database("batching_test")

	cleanup := func() {
		client.Disconnect(ctx)
		mongoContainer.Close(ctx)
	}
	return db, cleanup
}

func seedPicking(t *testing.T, db *mongo.Database, p *domain.Picking) {
	t.Helper()
	_, err := db.Collection("pickings").InsertOne(context.Background(), p)
	require.NoError(t, err)
}

func seedMoveLine(t *testing.T, db *mongo.Database, ml domain.MoveLine) {
	t.Helper()
	_, err := db.Collection("move_lines").InsertOne(context.Background(), ml)
	require.NoError(t, err)
}

func TestBatchRepository_SaveAndFind(t *testing.T) {
	db, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := batchmongo.NewBatchRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Run("Save new batch", func(t *testing.T) {
		batch := domain.NewBatch("alice")
		batch.AttachPicking("PICK-001")

		err := repo.Save(ctx, batch)
		assert.NoError(t, err)

		found, err := repo.FindByBatchID(ctx, batch.BatchID)
		assert.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, batch.BatchID, found.BatchID)
		assert.Equal(t, "alice", found.UserID)
		assert.Equal(t, []string{"PICK-001"}, found.PickingIDs)
	})

	t.Run("Update existing batch", func(t *testing.T) {
		batch := domain.NewBatch("bob")
		batch.AttachPicking("PICK-002")
		require.NoError(t, repo.Save(ctx, batch))

		batch.MarkDone()
		require.NoError(t, repo.Save(ctx, batch))

		found, err := repo.FindByBatchID(ctx, batch.BatchID)
		assert.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, domain.BatchStateDone, found.State)
		assert.NotNil(t, found.CompletedAt)
	})

	t.Run("Find non-existent batch", func(t *testing.T) {
		found, err := repo.FindByBatchID(ctx, "BATCH-missing")
		assert.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Find in-progress batches by user", func(t *testing.T) {
		open := domain.NewBatch("carol")
		require.NoError(t, repo.Save(ctx, open))

		closed := domain.NewBatch("carol")
		closed.MarkDone()
		require.NoError(t, repo.Save(ctx, closed))

		found, err := repo.FindInProgressByUser(ctx, "carol")
		assert.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, open.BatchID, found[0].BatchID)
	})
}

func TestBatchRepository_OutboxEvents(t *testing.T) {
	db, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := batchmongo.NewBatchRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch := domain.NewBatch("dave")
	batch.AttachPicking("PICK-010")
	require.NoError(t, repo.Save(ctx, batch))

	// Saving drains the aggregate's events into the outbox collection
	// within the same transaction.
	assert.Empty(t, batch.GetDomainEvents())

	events, err := repo.GetOutboxRepository().FindUnpublished(ctx, 10)
	assert.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, batch.BatchID, events[0].AggregateID)
	assert.Equal(t, "wms.batching.events", events[0].Topic)

	require.NoError(t, repo.GetOutboxRepository().MarkPublished(ctx, events[0].ID))
	remaining, err := repo.GetOutboxRepository().FindUnpublished(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, remaining, len(events)-1)
}

func TestWarehouseStore_NextEligiblePicking(t *testing.T) {
	db, cleanup := setupTestDatabase(t)
	defer cleanup()

	store := batchmongo.NewWarehouseStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().Truncate(time.Millisecond)
	seedPicking(t, db, &domain.Picking{
		PickingID: "PICK-100", TypeID: "TYPE-PICK", State: domain.PickingStateAssigned,
		Priority: 1, ScheduledAt: now,
	})
	seedPicking(t, db, &domain.Picking{
		PickingID: "PICK-101", TypeID: "TYPE-PICK", State: domain.PickingStateAssigned,
		Priority: 3, ScheduledAt: now.Add(time.Hour),
	})
	seedPicking(t, db, &domain.Picking{
		PickingID: "PICK-102", TypeID: "TYPE-PICK", State: domain.PickingStateAssigned,
		Priority: 3, ScheduledAt: now,
	})
	seedPicking(t, db, &domain.Picking{
		PickingID: "PICK-103", TypeID: "TYPE-PICK", State: domain.PickingStateConfirmed,
		Priority: 9, ScheduledAt: now,
	})
	seedPicking(t, db, &domain.Picking{
		PickingID: "PICK-104", TypeID: "TYPE-PICK", State: domain.PickingStateAssigned,
		Priority: 9, ScheduledAt: now, BatchID: "BATCH-taken",
	})

	t.Run("Highest priority earliest schedule wins", func(t *testing.T) {
		picking, err := store.NextEligiblePicking(ctx, "TYPE-PICK", nil)
		assert.NoError(t, err)
		require.NotNil(t, picking)
		assert.Equal(t, "PICK-102", picking.PickingID)
	})

	t.Run("Priority filter", func(t *testing.T) {
		picking, err := store.NextEligiblePicking(ctx, "TYPE-PICK", []int{1})
		assert.NoError(t, err)
		require.NotNil(t, picking)
		assert.Equal(t, "PICK-100", picking.PickingID)
	})

	t.Run("No eligible picking", func(t *testing.T) {
		picking, err := store.NextEligiblePicking(ctx, "TYPE-other", nil)
		assert.NoError(t, err)
		assert.Nil(t, picking)
	})

	t.Run("Released picking becomes eligible again", func(t *testing.T) {
		require.NoError(t, store.SetPickingBatch(ctx, []string{"PICK-104"}, ""))

		picking, err := store.NextEligiblePicking(ctx, "TYPE-PICK", []int{9})
		assert.NoError(t, err)
		require.NotNil(t, picking)
		assert.Equal(t, "PICK-104", picking.PickingID)
	})
}

func TestWarehouseStore_Backorder(t *testing.T) {
	db, cleanup := setupTestDatabase(t)
	defer cleanup()

	store := batchmongo.NewWarehouseStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seedPicking(t, db, &domain.Picking{
		PickingID: "PICK-200", Name: "PICK/0200", TypeID: "TYPE-PICK",
		State: domain.PickingStateAssigned, BatchID: "BATCH-1",
	})
	seedMoveLine(t, db, domain.MoveLine{
		LineID: "LINE-1", PickingID: "PICK-200", ProductID: "PROD-A",
		QtyOrdered: 2, LocationID: "LOC-A",
	})
	seedMoveLine(t, db, domain.MoveLine{
		LineID: "LINE-2", PickingID: "PICK-200", ProductID: "PROD-B",
		QtyOrdered: 1, LocationID: "LOC-B",
	})

	backorder, err := store.Backorder(ctx, "PICK-200", []string{"LINE-2"})
	require.NoError(t, err)
	require.NotNil(t, backorder)
	assert.Equal(t, "PICK-200", backorder.BackorderOf)
	assert.Equal(t, "PICK/0200-BO", backorder.Name)
	assert.Equal(t, domain.PickingStateAssigned, backorder.State)

	moved, err := store.FindMoveLinesByPickings(ctx, []string{backorder.PickingID})
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "LINE-2", moved[0].LineID)

	kept, err := store.FindMoveLinesByPickings(ctx, []string{"PICK-200"})
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "LINE-1", kept[0].LineID)
}

func seedQuant(t *testing.T, db *mongo.Database, q domain.Quant) {
	t.Helper()
	_, err := db.Collection("quants").InsertOne(context.Background(), q)
	require.NoError(t, err)
}

func TestWarehouseStore_InvestigationClaimsStock(t *testing.T) {
	db, cleanup := setupTestDatabase(t)
	defer cleanup()

	store := batchmongo.NewWarehouseStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seedPicking(t, db, &domain.Picking{
		PickingID: "PICK-300", TypeID: "TYPE-PICK",
		State: domain.PickingStateAssigned, BatchID: "BATCH-1",
	})
	seedMoveLine(t, db, domain.MoveLine{
		LineID: "LINE-1", PickingID: "PICK-300", ProductID: "PROD-A",
		QtyOrdered: 5, LocationID: "LOC-A",
	})
	seedQuant(t, db, domain.Quant{
		QuantID: "QNT-1", ProductID: "PROD-A", LocationID: "LOC-A",
		Quantity: 5, Reserved: 5,
	})

	require.NoError(t, store.UnreservePicking(ctx, "PICK-300", "damaged"))

	created, err := store.CreatePicking(ctx, domain.PickingSpec{
		QuantIDs:   []string{"QNT-1"},
		LocationID: "LOC-A",
		TypeID:     "TYPE-INT",
		GroupID:    "GRP-1",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	// The new picking holds the quant, so the one it was carved out of
	// finds no free stock.
	state, err := store.ReassignPicking(ctx, "PICK-300")
	require.NoError(t, err)
	assert.Equal(t, domain.PickingStateConfirmed, state)

	var quant domain.Quant
	require.NoError(t, db.Collection("quants").FindOne(ctx, bson.M{"quantId": "QNT-1"}).Decode(&quant))
	assert.Equal(t, float64(5), quant.Reserved)
}

func TestWarehouseStore_Resolvers(t *testing.T) {
	db, cleanup := setupTestDatabase(t)
	defer cleanup()

	store := batchmongo.NewWarehouseStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := db.Collection("locations").InsertOne(ctx, domain.Location{
		LocationID: "LOC-A", Name: "Aisle 1 Bay 2", Barcode: "LOC00012",
	})
	require.NoError(t, err)
	_, err = db.Collection("products").InsertOne(ctx, domain.Product{
		ProductID: "PROD-A", Name: "Widget", SKU: "WID-001",
	})
	require.NoError(t, err)

	t.Run("Resolve location by barcode", func(t *testing.T) {
		loc, err := store.ResolveLocation(ctx, "LOC00012")
		assert.NoError(t, err)
		require.NotNil(t, loc)
		assert.Equal(t, "LOC-A", loc.LocationID)
	})

	t.Run("Resolve location by name", func(t *testing.T) {
		loc, err := store.ResolveLocation(ctx, "Aisle 1 Bay 2")
		assert.NoError(t, err)
		require.NotNil(t, loc)
		assert.Equal(t, "LOC-A", loc.LocationID)
	})

	t.Run("Unknown location resolves to nil", func(t *testing.T) {
		loc, err := store.ResolveLocation(ctx, "nope")
		assert.NoError(t, err)
		assert.Nil(t, loc)
	})

	t.Run("Resolve product by SKU", func(t *testing.T) {
		product, err := store.ResolveProduct(ctx, "WID-001")
		assert.NoError(t, err)
		require.NotNil(t, product)
		assert.Equal(t, "PROD-A", product.ProductID)
	})

	t.Run("EnsureGroup reuses group per name", func(t *testing.T) {
		first, err := store.EnsureGroup(ctx, "damaged stock")
		assert.NoError(t, err)
		second, err := store.EnsureGroup(ctx, "damaged stock")
		assert.NoError(t, err)
		assert.Equal(t, first.GroupID, second.GroupID)
	})
}

func TestTrailerRepository(t *testing.T) {
	db, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := batchmongo.NewTrailerRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info := &domain.TrailerInfo{
		TrailerID:  "TRL-001",
		PickingID:  "PICK-300",
		Number:     4,
		License:    "AB12 CDE",
		DriverName: "J. Smith",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, repo.Save(ctx, info))

	found, err := repo.FindByPicking(ctx, "PICK-300")
	assert.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "TRL-001", found.TrailerID)
	assert.Equal(t, "AB12 CDE", found.License)

	missing, err := repo.FindByPicking(ctx, "PICK-999")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Delete(ctx, "TRL-001"))
	gone, err := repo.FindByPicking(ctx, "PICK-300")
	assert.NoError(t, err)
	assert.Nil(t, gone)
}

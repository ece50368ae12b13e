package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/batching-service/internal/domain"
	"github.com/wms-platform/batching-service/pkg/kafka"
	"github.com/wms-platform/batching-service/pkg/outbox"
	outboxMongo "github.com/wms-platform/batching-service/pkg/outbox/mongodb"
)

type BatchRepository struct {
	collection *mongo.Collection
	db         *mongo.Database
	outboxRepo *outboxMongo.OutboxRepository
}

func NewBatchRepository(db *mongo.Database) *BatchRepository {
	collection := db.Collection("batches")
	outboxRepo := outboxMongo.NewOutboxRepository(db)

	repo := &BatchRepository{
		collection: collection,
		db:         db,
		outboxRepo: outboxRepo,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *BatchRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "batchId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "state", Value: 1}}},
		// One in-progress batch per user, enforced at the storage level.
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"state": domain.BatchStateInProgress}),
		},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)

	_ = r.outboxRepo.EnsureIndexes(ctx)
}

// Save persists a batch with its domain events in a single transaction.
// When the caller already runs inside a session (via the transaction
// runner) the session context is reused instead of opening a new one.
func (r *BatchRepository) Save(ctx context.Context, batch *domain.Batch) error {
	batch.UpdatedAt = time.Now()

	if sessCtx, ok := ctx.(mongo.SessionContext); ok {
		return r.saveInSession(sessCtx, batch)
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, r.saveInSession(sessCtx, batch)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

func (r *BatchRepository) saveInSession(sessCtx mongo.SessionContext, batch *domain.Batch) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"batchId": batch.BatchID}
	update := bson.M{"$set": batch}

	if _, err := r.collection.UpdateOne(sessCtx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}

	domainEvents := batch.GetDomainEvents()
	if len(domainEvents) > 0 {
		outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
		for _, event := range domainEvents {
			outboxEvent, err := outbox.NewOutboxEvent(
				batch.BatchID,
				"Batch",
				kafka.Topics.BatchingEvents,
				event,
			)
			if err != nil {
				return fmt.Errorf("failed to create outbox event: %w", err)
			}
			outboxEvents = append(outboxEvents, outboxEvent)
		}

		if err := r.outboxRepo.SaveAll(sessCtx, outboxEvents); err != nil {
			return fmt.Errorf("failed to save outbox events: %w", err)
		}
	}

	batch.ClearDomainEvents()
	return nil
}

func (r *BatchRepository) FindByBatchID(ctx context.Context, batchID string) (*domain.Batch, error) {
	var batch domain.Batch
	err := r.collection.FindOne(ctx, bson.M{"batchId": batchID}).Decode(&batch)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *BatchRepository) FindInProgressByUser(ctx context.Context, userID string) ([]*domain.Batch, error) {
	filter := bson.M{"userId": userID, "state": domain.BatchStateInProgress}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var batches []*domain.Batch
	err = cursor.All(ctx, &batches)
	return batches, err
}

func (r *BatchRepository) FindByState(ctx context.Context, state domain.BatchState) ([]*domain.Batch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"state": state}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var batches []*domain.Batch
	err = cursor.All(ctx, &batches)
	return batches, err
}

// GetOutboxRepository returns the outbox repository for this service
func (r *BatchRepository) GetOutboxRepository() outbox.Repository {
	return r.outboxRepo
}

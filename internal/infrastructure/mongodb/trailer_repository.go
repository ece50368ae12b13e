package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/batching-service/internal/domain"
)

type TrailerRepository struct {
	collection *mongo.Collection
}

func NewTrailerRepository(db *mongo.Database) *TrailerRepository {
	repo := &TrailerRepository{collection: db.Collection("trailer_info")}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *TrailerRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "trailerId", Value: 1}}, Options: options.Index().SetUnique(true)},
		// One trailer record per picking.
		{Keys: bson.D{{Key: "pickingId", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

func (r *TrailerRepository) Save(ctx context.Context, info *domain.TrailerInfo) error {
	info.UpdatedAt = time.Now()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"trailerId": info.TrailerID}
	update := bson.M{"$set": info}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrTrailerExists
	}
	return err
}

func (r *TrailerRepository) FindByPicking(ctx context.Context, pickingID string) (*domain.TrailerInfo, error) {
	var info domain.TrailerInfo
	err := r.collection.FindOne(ctx, bson.M{"pickingId": pickingID}).Decode(&info)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *TrailerRepository) Delete(ctx context.Context, trailerID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"trailerId": trailerID})
	return err
}

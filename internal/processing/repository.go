package processing

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"healthflow/internal/constants"
	"healthflow/internal/logger"
	apperrors "healthflow/pkg/errors"
)

type Repository interface {
	Add(ctx context.Context, rec *ProcessedEvent) (*ProcessedEvent, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	GetPendingEvents(ctx context.Context, limit int64) ([]ProcessedEvent, error)
	GetPendingCount(ctx context.Context) (int64, error)
}

type MongoDBRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
	logger     logger.Logger
}

func NewRepository(db *mongo.Database, log logger.Logger) *MongoDBRepository {
	return &MongoDBRepository{
		db:         db,
		collection: db.Collection(constants.ProcessedEventsCollection),
		logger:     log,
	}
}

// Add inserts the record. A missing collection is recreated and the insert
// retried once; any other failure surfaces as a storage error.
func (r *MongoDBRepository) Add(ctx context.Context, rec *ProcessedEvent) (*ProcessedEvent, error) {
	_, err := r.collection.InsertOne(ctx, rec)
	if err == nil {
		r.logger.DebugwCtx(ctx, "Processing record stored", "record_id", rec.ID)
		return rec, nil
	}

	if isNamespaceNotFound(err) {
		r.logger.WarnwCtx(ctx, "Collection missing, creating and retrying",
			"collection", constants.ProcessedEventsCollection,
		)
		if createErr := r.db.CreateCollection(ctx, constants.ProcessedEventsCollection); createErr != nil && !isNamespaceExists(createErr) {
			return nil, apperrors.Wrap(createErr, apperrors.ErrStorage)
		}
		if _, retryErr := r.collection.InsertOne(ctx, rec); retryErr != nil {
			return nil, apperrors.Wrap(retryErr, apperrors.ErrStorage)
		}
		return rec, nil
	}

	return nil, apperrors.Wrap(err, apperrors.ErrStorage)
}

func (r *MongoDBRepository) MarkProcessed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.transition(ctx, id, StatusCompleted, bson.M{
		"status":      StatusCompleted,
		"processedAt": now,
	})
}

func (r *MongoDBRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	now := time.Now().UTC()
	return r.transition(ctx, id, StatusFailed, bson.M{
		"status":       StatusFailed,
		"processedAt":  now,
		"errorMessage": errorMessage,
	})
}

// transition rewrites the record's status, guarding the forward-only
// invariant in the filter: records already in a terminal state are left
// untouched.
func (r *MongoDBRepository) transition(ctx context.Context, id string, next Status, set bson.M) error {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": []Status{StatusPending, StatusProcessing}},
	}

	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorage).WithDetail("record_id", id)
	}

	if res.MatchedCount == 0 {
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return apperrors.Wrap(countErr, apperrors.ErrStorage).WithDetail("record_id", id)
		}
		if count == 0 {
			return apperrors.ErrNotFound.WithDetail("record_id", id)
		}
		// Already terminal; the transition is a no-op.
		r.logger.DebugwCtx(ctx, "Skipping transition on terminal record",
			"record_id", id,
			"target_status", next,
		)
	}

	return nil
}

func (r *MongoDBRepository) GetPendingEvents(ctx context.Context, limit int64) ([]ProcessedEvent, error) {
	if limit <= 0 {
		limit = constants.DefaultPendingLimit
	}
	if limit > constants.MaxPendingLimit {
		limit = constants.MaxPendingLimit
	}

	filter := bson.M{"status": bson.M{"$in": []Status{StatusPending, StatusProcessing}}}
	opts := options.Find().
		SetSort(bson.D{{Key: "receivedAt", Value: 1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorage)
	}
	defer cursor.Close(ctx)

	var events []ProcessedEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorage)
	}

	return events, nil
}

func (r *MongoDBRepository) GetPendingCount(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"status": bson.M{"$in": []Status{StatusPending, StatusProcessing}}})
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrStorage)
	}
	return count, nil
}

func isNamespaceNotFound(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 26 || cmdErr.Name == "NamespaceNotFound"
	}
	return false
}

func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 48 || cmdErr.Name == "NamespaceExists"
	}
	return false
}

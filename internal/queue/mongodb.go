package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"syncgate/internal/core"
)

type mongoOperationDocument struct {
	ID         string `bson:"_id"`
	OpType     string `bson:"op_type"`
	Query      string `bson:"query"`
	Data       []byte `bson:"data,omitempty"`
	Timestamp  int64  `bson:"timestamp"`
	Status     string `bson:"status"`
	RetryCount int    `bson:"retry_count"`
	Priority   int    `bson:"priority"`
}

// MongoDBStore persists queued operations in MongoDB.
type MongoDBStore struct {
	operations *mongo.Collection
}

// NewMongoDBStore creates collection indexes if needed.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	operations := database.Collection("queue_operations")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "priority", Value: -1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := operations.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create queue_operations indexes: %w", err)
	}

	return &MongoDBStore{operations: operations}, nil
}

// Enqueue persists an operation, overwriting any duplicate id.
func (s *MongoDBStore) Enqueue(ctx context.Context, id string, op core.Operation) error {
	if err := validateEnqueue(id, op); err != nil {
		return err
	}

	item := newQueuedOperation(id, op, time.Now())
	doc := mongoOperationDocument{
		ID:         id,
		OpType:     string(op.Type),
		Query:      op.Query,
		Data:       op.Data,
		Timestamp:  item.Meta.Timestamp.UnixMilli(),
		Status:     string(item.Meta.Status),
		RetryCount: item.Meta.RetryCount,
		Priority:   item.Meta.Priority,
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.operations.ReplaceOne(ctx, bson.M{"_id": id}, doc, opts); err != nil {
		return core.NewStorageError("insert queued operation", err)
	}
	return nil
}

// Pending returns queued operations in replay order.
func (s *MongoDBStore) Pending(ctx context.Context, filter Filter) ([]*core.QueuedOperation, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	sortKeys := bson.D{{Key: "priority", Value: -1}, {Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}
	if filter.ByTimestamp {
		sortKeys = bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}
	}

	cursor, err := s.operations.Find(ctx, query, options.Find().SetSort(sortKeys))
	if err != nil {
		return nil, core.NewStorageError("query pending operations", err)
	}
	defer cursor.Close(ctx)

	ops := make([]*core.QueuedOperation, 0)
	for cursor.Next(ctx) {
		var doc mongoOperationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, core.NewStorageError("decode queued operation", err)
		}
		ops = append(ops, &core.QueuedOperation{
			ID: doc.ID,
			Op: core.Operation{
				Type:  core.OperationKind(doc.OpType),
				Query: doc.Query,
				Data:  doc.Data,
			},
			Meta: core.OperationMeta{
				Timestamp:  time.UnixMilli(doc.Timestamp),
				Status:     core.OperationStatus(doc.Status),
				RetryCount: doc.RetryCount,
				Priority:   doc.Priority,
			},
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, core.NewStorageError("iterate pending operations", err)
	}
	return ops, nil
}

// PatchMeta merges the patch into stored metadata.
func (s *MongoDBStore) PatchMeta(ctx context.Context, id string, patch core.MetaPatch) error {
	if id == "" {
		return core.NewValidationError("operation id is required")
	}

	set := bson.M{}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.RetryCount != nil {
		set["retry_count"] = *patch.RetryCount
	}
	if patch.Priority != nil {
		set["priority"] = *patch.Priority
	}
	if len(set) == 0 {
		// Nothing to merge, but the operation must still exist.
		err := s.operations.FindOne(ctx, bson.M{"_id": id}).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.ErrNotFound
		}
		if err != nil {
			return core.NewStorageError("query queued operation", err)
		}
		return nil
	}

	result, err := s.operations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return core.NewStorageError("update operation metadata", err)
	}
	if result.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Remove deletes one operation.
func (s *MongoDBStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return core.NewValidationError("operation id is required")
	}

	result, err := s.operations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return core.NewStorageError("delete queued operation", err)
	}
	if result.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Clear empties the queue.
func (s *MongoDBStore) Clear(ctx context.Context) error {
	if _, err := s.operations.DeleteMany(ctx, bson.M{}); err != nil {
		return core.NewStorageError("clear queue", err)
	}
	return nil
}

// Len returns the number of queued operations.
func (s *MongoDBStore) Len(ctx context.Context) (int, error) {
	count, err := s.operations.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, core.NewStorageError("count queued operations", err)
	}
	return int(count), nil
}

// Close is a no-op; the client is closed by the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}

package eventlog

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chronicle/internal/event"
	"chronicle/pkg/errors"
)

// MongoStore persists the event log in a MongoDB collection. Documents
// are insert-only; the unique _id index enforces event-id uniqueness.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{collection: db.Collection(collection)}
}

// EnsureIndexes creates the entity/timestamp read indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("idx_event_log_entity_ts"),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("idx_event_log_ts"),
		},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create event log indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Append(ctx context.Context, evt event.Event) error {
	if _, err := s.collection.InsertOne(ctx, evt); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.ErrDuplicateEvent.WithDetail("event_id", evt.ID)
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *MongoStore) All(ctx context.Context) ([]event.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	defer cursor.Close(ctx)

	var events []event.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

func (s *MongoStore) ForEntity(ctx context.Context, entityType, entityID string) ([]event.Event, error) {
	filter := bson.M{"entity_type": entityType, "entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []event.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

func (s *MongoStore) CountForEntity(ctx context.Context, entityType, entityID string) (int, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{"entity_type": entityType, "entity_id": entityID})
	if err != nil {
		return 0, fmt.Errorf("failed to count entity events: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) Len(ctx context.Context) (int, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return int(n), nil
}

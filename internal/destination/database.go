package destination

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"chronicle/internal/constants"
	"chronicle/internal/event"
	"chronicle/internal/logger"
)

// DatabaseHandler inserts the event into a MongoDB collection chosen
// by the collection option.
type DatabaseHandler struct {
	db     *mongo.Database
	logger logger.Logger
}

func NewDatabaseHandler(db *mongo.Database, log logger.Logger) *DatabaseHandler {
	return &DatabaseHandler{db: db, logger: log}
}

func (h *DatabaseHandler) Name() string {
	return constants.DestinationDatabase
}

type sinkDocument struct {
	EventID    string                 `bson:"event_id"`
	EntityType string                 `bson:"entity_type"`
	EntityID   string                 `bson:"entity_id"`
	EventType  string                 `bson:"event_type"`
	Timestamp  interface{}            `bson:"timestamp"`
	Data       map[string]interface{} `bson:"event_data"`
	Source     string                 `bson:"source,omitempty"`
}

func (h *DatabaseHandler) Deliver(ctx context.Context, evt event.Event, options map[string]interface{}) Result {
	if h.db == nil {
		return Result{Err: fmt.Errorf("database destination is not configured")}
	}

	collection := stringOption(options, "collection", constants.DefaultSinkCollection)

	doc := sinkDocument{
		EventID:    evt.ID,
		EntityType: evt.EntityType,
		EntityID:   evt.EntityID,
		EventType:  string(evt.EventType),
		Timestamp:  evt.Timestamp,
		Data:       evt.Data,
		Source:     evt.Source,
	}

	res, err := h.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return Result{Err: fmt.Errorf("database insert failed: %w", err)}
	}

	return Result{Success: true, MessageID: fmt.Sprintf("%v", res.InsertedID)}
}

package event

import (
	"time"

	"github.com/google/uuid"

	"chronicle/pkg/errors"
)

// Type classifies the mutation an Event records.
type Type string

const (
	TypeCreated   Type = "created"
	TypeUpdated   Type = "updated"
	TypeDeleted   Type = "deleted"
	TypeCompleted Type = "completed"
	TypeCancelled Type = "cancelled"
	TypeCustom    Type = "custom"
)

// Event is an immutable record of a single state change to a business
// entity. Once appended to the log its fields never change.
type Event struct {
	ID             string                 `json:"id" bson:"_id"`
	EntityType     string                 `json:"entity_type" bson:"entity_type"`
	EntityID       string                 `json:"entity_id" bson:"entity_id"`
	EventType      Type                   `json:"event_type" bson:"event_type"`
	Timestamp      time.Time              `json:"timestamp" bson:"timestamp"`
	Data           map[string]interface{} `json:"event_data" bson:"event_data"`
	PreviousValues map[string]interface{} `json:"previous_values,omitempty" bson:"previous_values,omitempty"`
	Version        int                    `json:"version" bson:"version"`
	Source         string                 `json:"source,omitempty" bson:"source,omitempty"`
}

// EntityKey identifies the entity instance an event belongs to.
func (e Event) EntityKey() string {
	return e.EntityType + "-" + e.EntityID
}

// Validate rejects malformed events before they can enter the log.
func (e Event) Validate() error {
	if e.EntityType == "" {
		return errors.ErrValidation.WithDetail("message", "entity_type is required")
	}
	if e.EventType == "" {
		return errors.ErrValidation.WithDetail("message", "event_type is required")
	}
	if e.Timestamp.IsZero() {
		return errors.ErrValidation.WithDetail("message", "timestamp is required")
	}
	switch e.EventType {
	case TypeCreated, TypeUpdated, TypeDeleted, TypeCompleted, TypeCancelled, TypeCustom:
	default:
		return errors.ErrValidation.WithDetail("message", "unknown event_type: "+string(e.EventType))
	}
	return nil
}

type Builder struct {
	evt *Event
}

func NewBuilder() *Builder {
	return &Builder{
		evt: &Event{
			Data:    make(map[string]interface{}),
			Version: 1,
		},
	}
}

func (b *Builder) WithID(id string) *Builder {
	b.evt.ID = id
	return b
}

func (b *Builder) WithEntity(entityType, entityID string) *Builder {
	b.evt.EntityType = entityType
	b.evt.EntityID = entityID
	return b
}

func (b *Builder) WithType(t Type) *Builder {
	b.evt.EventType = t
	return b
}

func (b *Builder) WithTimestamp(ts time.Time) *Builder {
	b.evt.Timestamp = ts
	return b
}

func (b *Builder) WithData(data map[string]interface{}) *Builder {
	b.evt.Data = data
	return b
}

func (b *Builder) WithPreviousValues(prev map[string]interface{}) *Builder {
	b.evt.PreviousValues = prev
	return b
}

func (b *Builder) WithSource(source string) *Builder {
	b.evt.Source = source
	return b
}

func (b *Builder) WithVersion(v int) *Builder {
	b.evt.Version = v
	return b
}

func (b *Builder) Build() Event {
	if b.evt.ID == "" {
		b.evt.ID = uuid.New().String()
	}
	if b.evt.Timestamp.IsZero() {
		b.evt.Timestamp = time.Now().UTC()
	}
	return *b.evt
}

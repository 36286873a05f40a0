package eventlog

import (
	"context"

	"chronicle/internal/event"
)

// Store is the append-only, time-ordered substrate both engines read.
// Append never mutates or reorders existing records; reads return a
// snapshot taken at call time.
type Store interface {
	Append(ctx context.Context, evt event.Event) error
	All(ctx context.Context) ([]event.Event, error)
	ForEntity(ctx context.Context, entityType, entityID string) ([]event.Event, error)
	CountForEntity(ctx context.Context, entityType, entityID string) (int, error)
	Len(ctx context.Context) (int, error)
}

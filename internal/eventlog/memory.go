package eventlog

import (
	"context"
	"sync"

	"chronicle/internal/event"
	"chronicle/pkg/errors"
)

// MemoryStore keeps the event log in process memory. A non-zero
// maxEvents caps the log; the oldest events are trimmed when the cap is
// exceeded, which keeps long-running processes bounded at the cost of
// replay depth.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []event.Event
	ids       map[string]struct{}
	maxEvents int
}

func NewMemoryStore(maxEvents int) *MemoryStore {
	return &MemoryStore{
		ids:       make(map[string]struct{}),
		maxEvents: maxEvents,
	}
}

func (s *MemoryStore) Append(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[evt.ID]; ok {
		return errors.ErrDuplicateEvent.WithDetail("event_id", evt.ID)
	}

	s.events = append(s.events, evt)
	s.ids[evt.ID] = struct{}{}

	if s.maxEvents > 0 && len(s.events) > s.maxEvents {
		trimmed := s.events[0]
		s.events = s.events[1:]
		delete(s.ids, trimmed.ID)
	}

	return nil
}

func (s *MemoryStore) All(ctx context.Context) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]event.Event, len(s.events))
	copy(snapshot, s.events)
	return snapshot, nil
}

func (s *MemoryStore) ForEntity(ctx context.Context, entityType, entityID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.Event
	for _, evt := range s.events {
		if evt.EntityType == entityType && evt.EntityID == entityID {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountForEntity(ctx context.Context, entityType, entityID string) (int, error) {
	events, err := s.ForEntity(ctx, entityType, entityID)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

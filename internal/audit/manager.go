package audit

import (
	"sort"
	"sync"

	"chronicle/internal/event"
)

// Manager derives field-level audit entries from events and keeps the
// per-entity trails. Trails are append-only; entries are never mutated
// or removed.
type Manager struct {
	mu     sync.RWMutex
	trails map[string]*event.AuditTrail
}

func NewManager() *Manager {
	return &Manager{
		trails: make(map[string]*event.AuditTrail),
	}
}

// CreateEntry derives the audit entry for one event and appends it to
// the entity's trail.
func (m *Manager) CreateEntry(evt event.Event) event.AuditEntry {
	entry := event.AuditEntry{
		EventID:    evt.ID,
		Timestamp:  evt.Timestamp,
		UserID:     extractUserID(evt.Data),
		Source:     evt.Source,
		Changes:    extractChanges(evt),
		EntityType: evt.EntityType,
		EventType:  evt.EventType,
		SessionID:  stringField(evt.Data, "sessionId"),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := evt.EntityKey()
	trail, ok := m.trails[key]
	if !ok {
		trail = &event.AuditTrail{
			EntityType: evt.EntityType,
			EntityID:   evt.EntityID,
		}
		m.trails[key] = trail
	}
	trail.Entries = append(trail.Entries, entry)

	return entry
}

// Trail returns a copy of the trail for one entity instance. A missing
// trail is returned empty, not as an error.
func (m *Manager) Trail(entityType, entityID string) event.AuditTrail {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := entityType + "-" + entityID
	trail, ok := m.trails[key]
	if !ok {
		return event.AuditTrail{EntityType: entityType, EntityID: entityID}
	}

	out := event.AuditTrail{
		EntityType: trail.EntityType,
		EntityID:   trail.EntityID,
		Entries:    make([]event.AuditEntry, len(trail.Entries)),
	}
	copy(out.Entries, trail.Entries)
	return out
}

// EntryCount returns the number of derived entries for one entity.
func (m *Manager) EntryCount(entityType, entityID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trail, ok := m.trails[entityType+"-"+entityID]
	if !ok {
		return 0
	}
	return len(trail.Entries)
}

func extractUserID(data map[string]interface{}) string {
	for _, key := range []string{"userId", "createdBy", "updatedBy"} {
		if v := stringField(data, key); v != "" {
			return v
		}
	}
	return "system"
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func extractChanges(evt event.Event) []event.AuditChange {
	var changes []event.AuditChange

	switch evt.EventType {
	case event.TypeCreated:
		for _, field := range sortedFields(evt.Data) {
			changes = append(changes, event.AuditChange{
				Field:      field,
				OldValue:   nil,
				NewValue:   evt.Data[field],
				ChangeType: event.ChangeAdded,
			})
		}
	case event.TypeUpdated:
		// Only fields with a tracked previous value count as changes;
		// payloads may carry computed fields that are not change-tracked.
		for _, field := range sortedFields(evt.Data) {
			oldValue, tracked := evt.PreviousValues[field]
			if !tracked {
				continue
			}
			changes = append(changes, event.AuditChange{
				Field:      field,
				OldValue:   oldValue,
				NewValue:   evt.Data[field],
				ChangeType: event.ChangeModified,
			})
		}
	case event.TypeDeleted:
		for _, field := range sortedFields(evt.Data) {
			changes = append(changes, event.AuditChange{
				Field:      field,
				OldValue:   evt.Data[field],
				NewValue:   nil,
				ChangeType: event.ChangeRemoved,
			})
		}
	}

	return changes
}

func sortedFields(data map[string]interface{}) []string {
	fields := make([]string, 0, len(data))
	for field := range data {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

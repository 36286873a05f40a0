package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/event"
)

func makeEvent(id string, eventType event.Type, data, prev map[string]interface{}) event.Event {
	return event.Event{
		ID:             id,
		EntityType:     "order",
		EntityID:       "o-1",
		EventType:      eventType,
		Timestamp:      time.Now().UTC(),
		Data:           data,
		PreviousValues: prev,
	}
}

func TestCreateEntry_Created(t *testing.T) {
	m := NewManager()

	entry := m.CreateEntry(makeEvent("evt-1", event.TypeCreated, map[string]interface{}{
		"status": "new",
		"amount": 100,
	}, nil))

	require.Len(t, entry.Changes, 2)
	assert.Equal(t, "amount", entry.Changes[0].Field)
	assert.Equal(t, event.ChangeAdded, entry.Changes[0].ChangeType)
	assert.Nil(t, entry.Changes[0].OldValue)
	assert.Equal(t, 100, entry.Changes[0].NewValue)
	assert.Equal(t, "status", entry.Changes[1].Field)
}

func TestCreateEntry_UpdatedTracksOnlyPreviousFields(t *testing.T) {
	m := NewManager()

	entry := m.CreateEntry(makeEvent("evt-2", event.TypeUpdated,
		map[string]interface{}{
			"status":   "shipped",
			"computed": "not-tracked",
		},
		map[string]interface{}{
			"status": "new",
		}))

	require.Len(t, entry.Changes, 1)
	assert.Equal(t, "status", entry.Changes[0].Field)
	assert.Equal(t, event.ChangeModified, entry.Changes[0].ChangeType)
	assert.Equal(t, "new", entry.Changes[0].OldValue)
	assert.Equal(t, "shipped", entry.Changes[0].NewValue)
}

func TestCreateEntry_Deleted(t *testing.T) {
	m := NewManager()

	entry := m.CreateEntry(makeEvent("evt-3", event.TypeDeleted, map[string]interface{}{
		"status": "shipped",
	}, nil))

	require.Len(t, entry.Changes, 1)
	assert.Equal(t, event.ChangeRemoved, entry.Changes[0].ChangeType)
	assert.Equal(t, "shipped", entry.Changes[0].OldValue)
	assert.Nil(t, entry.Changes[0].NewValue)
}

func TestCreateEntry_UserIDExtraction(t *testing.T) {
	m := NewManager()

	tests := []struct {
		name string
		data map[string]interface{}
		want string
	}{
		{"userId", map[string]interface{}{"userId": "u-1"}, "u-1"},
		{"createdBy", map[string]interface{}{"createdBy": "u-2"}, "u-2"},
		{"updatedBy", map[string]interface{}{"updatedBy": "u-3"}, "u-3"},
		{"userId wins over createdBy", map[string]interface{}{"userId": "u-1", "createdBy": "u-2"}, "u-1"},
		{"none", map[string]interface{}{"status": "x"}, "system"},
		{"nil data", nil, "system"},
		{"non-string userId", map[string]interface{}{"userId": 42}, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := m.CreateEntry(makeEvent("evt", event.TypeCreated, tt.data, nil))
			assert.Equal(t, tt.want, entry.UserID)
		})
	}
}

func TestTrail_AppendOnlyPerEntity(t *testing.T) {
	m := NewManager()

	m.CreateEntry(makeEvent("evt-1", event.TypeCreated, map[string]interface{}{"a": 1}, nil))
	m.CreateEntry(makeEvent("evt-2", event.TypeUpdated, map[string]interface{}{"a": 2}, map[string]interface{}{"a": 1}))

	other := makeEvent("evt-3", event.TypeCreated, nil, nil)
	other.EntityID = "o-2"
	m.CreateEntry(other)

	trail := m.Trail("order", "o-1")
	require.Len(t, trail.Entries, 2)
	assert.Equal(t, "evt-1", trail.FirstEntry().EventID)
	assert.Equal(t, "evt-2", trail.LastEntry().EventID)
	assert.Equal(t, 2, m.EntryCount("order", "o-1"))
	assert.Equal(t, 1, m.EntryCount("order", "o-2"))
}

func TestTrail_MissingEntityIsEmpty(t *testing.T) {
	m := NewManager()

	trail := m.Trail("order", "nope")
	assert.Empty(t, trail.Entries)
	assert.Nil(t, trail.FirstEntry())
	assert.Equal(t, "order", trail.EntityType)
}

func TestTrail_ReturnsCopy(t *testing.T) {
	m := NewManager()
	m.CreateEntry(makeEvent("evt-1", event.TypeCreated, map[string]interface{}{"a": 1}, nil))

	trail := m.Trail("order", "o-1")
	trail.Entries[0].EventID = "mutated"

	assert.Equal(t, "evt-1", m.Trail("order", "o-1").Entries[0].EventID)
}

package audit

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/event"
)

func exportFixture() event.AuditTrail {
	return event.AuditTrail{
		EntityType: "order",
		EntityID:   "o-1",
		Entries: []event.AuditEntry{
			{
				EventID:    "evt-1",
				Timestamp:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
				UserID:     "u-1",
				EntityType: "order",
				EventType:  event.TypeCreated,
				Changes: []event.AuditChange{
					{Field: "status", NewValue: "new", ChangeType: event.ChangeAdded},
				},
			},
			{
				EventID:    "evt-2",
				Timestamp:  time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
				UserID:     "u-2",
				EntityType: "order",
				EventType:  event.TypeUpdated,
				Changes: []event.AuditChange{
					{Field: "status", OldValue: "new", NewValue: "shipped", ChangeType: event.ChangeModified},
				},
			},
		},
	}
}

func TestExportJSON(t *testing.T) {
	out, err := Export(exportFixture(), FormatJSON)
	require.NoError(t, err)

	var decoded event.AuditTrail
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "order", decoded.EntityType)
	require.Len(t, decoded.Entries, 2)
	assert.Equal(t, "evt-1", decoded.Entries[0].EventID)
}

func TestExportXML(t *testing.T) {
	out, err := Export(exportFixture(), FormatXML)
	require.NoError(t, err)

	doc := string(out)
	assert.True(t, strings.HasPrefix(doc, "<?xml"))
	assert.Contains(t, doc, `<auditTrail entityType="order" entityId="o-1">`)
	assert.Contains(t, doc, `id="evt-1"`)
	assert.Contains(t, doc, `changeType="modified"`)
	assert.Contains(t, doc, "<oldValue>new</oldValue>")
}

func TestExportCSV(t *testing.T) {
	out, err := Export(exportFixture(), FormatCSV)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"id", "eventType", "entityType", "timestamp", "eventData"}, records[0])
	assert.Equal(t, "evt-1", records[1][0])
	assert.Equal(t, "created", records[1][1])

	var changes []event.AuditChange
	require.NoError(t, json.Unmarshal([]byte(records[2][4]), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, "status", changes[0].Field)
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := Export(exportFixture(), ExportFormat("yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNSUPPORTED_FORMAT")
}

func TestExportEmptyTrail(t *testing.T) {
	trail := event.AuditTrail{EntityType: "order", EntityID: "o-9"}

	out, err := Export(trail, FormatCSV)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1) // header only
}

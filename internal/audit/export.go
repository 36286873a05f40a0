package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"time"

	"chronicle/internal/event"
	"chronicle/pkg/errors"
)

// ExportFormat names a supported audit trail serialization.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatXML  ExportFormat = "xml"
	FormatCSV  ExportFormat = "csv"
)

// Export serializes an audit trail. An unsupported format is rejected
// before any output is produced.
func Export(trail event.AuditTrail, format ExportFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		return exportJSON(trail)
	case FormatXML:
		return exportXML(trail)
	case FormatCSV:
		return exportCSV(trail)
	default:
		return nil, errors.ErrUnsupportedFormat.WithDetail("format", string(format))
	}
}

func exportJSON(trail event.AuditTrail) ([]byte, error) {
	out, err := json.MarshalIndent(trail, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit trail: %w", err)
	}
	return out, nil
}

type xmlChange struct {
	Field      string `xml:"field,attr"`
	ChangeType string `xml:"changeType,attr"`
	OldValue   string `xml:"oldValue"`
	NewValue   string `xml:"newValue"`
}

type xmlEvent struct {
	XMLName    xml.Name    `xml:"event"`
	ID         string      `xml:"id,attr"`
	EventType  string      `xml:"eventType,attr"`
	EntityType string      `xml:"entityType,attr"`
	Timestamp  string      `xml:"timestamp,attr"`
	UserID     string      `xml:"userId,attr"`
	Changes    []xmlChange `xml:"change"`
}

type xmlTrail struct {
	XMLName    xml.Name   `xml:"auditTrail"`
	EntityType string     `xml:"entityType,attr"`
	EntityID   string     `xml:"entityId,attr"`
	Events     []xmlEvent `xml:"event"`
}

func exportXML(trail event.AuditTrail) ([]byte, error) {
	doc := xmlTrail{
		EntityType: trail.EntityType,
		EntityID:   trail.EntityID,
	}

	for _, entry := range trail.Entries {
		xe := xmlEvent{
			ID:         entry.EventID,
			EventType:  string(entry.EventType),
			EntityType: entry.EntityType,
			Timestamp:  entry.Timestamp.Format(time.RFC3339),
			UserID:     entry.UserID,
		}
		for _, change := range entry.Changes {
			xe.Changes = append(xe.Changes, xmlChange{
				Field:      change.Field,
				ChangeType: string(change.ChangeType),
				OldValue:   stringifyValue(change.OldValue),
				NewValue:   stringifyValue(change.NewValue),
			})
		}
		doc.Events = append(doc.Events, xe)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit trail: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// csvHeader is part of the export contract; consumers parse exported
// files by these exact column names.
var csvHeader = []string{"id", "eventType", "entityType", "timestamp", "eventData"}

func exportCSV(trail event.AuditTrail) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, entry := range trail.Entries {
		changes, err := json.Marshal(entry.Changes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode changes: %w", err)
		}
		record := []string{
			entry.EventID,
			string(entry.EventType),
			entry.EntityType,
			entry.Timestamp.Format(time.RFC3339),
			string(changes),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func stringifyValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

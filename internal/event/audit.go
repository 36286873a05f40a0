package event

import "time"

// ChangeType classifies a single field-level change inside an AuditEntry.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

type AuditChange struct {
	Field      string      `json:"field"`
	OldValue   interface{} `json:"old_value"`
	NewValue   interface{} `json:"new_value"`
	ChangeType ChangeType  `json:"change_type"`
}

// AuditEntry is the derived change-record for one event. Entries are
// append-only; none is ever mutated or removed.
type AuditEntry struct {
	EventID    string        `json:"event_id"`
	Timestamp  time.Time     `json:"timestamp"`
	UserID     string        `json:"user_id"`
	Source     string        `json:"source,omitempty"`
	Changes    []AuditChange `json:"changes"`
	EntityType string        `json:"entity_type"`
	EventType  Type          `json:"event_type"`
	SessionID  string        `json:"session_id,omitempty"`
}

// AuditTrail is the ordered list of audit entries for one entity instance.
type AuditTrail struct {
	EntityType string       `json:"entity_type"`
	EntityID   string       `json:"entity_id"`
	Entries    []AuditEntry `json:"entries"`
}

func (t AuditTrail) FirstEntry() *AuditEntry {
	if len(t.Entries) == 0 {
		return nil
	}
	return &t.Entries[0]
}

func (t AuditTrail) LastEntry() *AuditEntry {
	if len(t.Entries) == 0 {
		return nil
	}
	return &t.Entries[len(t.Entries)-1]
}

// TrailFinding is one integrity observation from trail validation.
// Structural errors indicate missed or duplicated audit processing;
// warnings are data-quality signals only.
type TrailFinding struct {
	Severity string `json:"severity"` // "warning" or "error"
	Code     string `json:"code"`
	Message  string `json:"message"`
}

const (
	FindingSequenceGap   = "sequence_gap"
	FindingCountMismatch = "count_mismatch"
)

type TrailValidation struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	EventCount int            `json:"event_count"`
	EntryCount int            `json:"entry_count"`
	Findings   []TrailFinding `json:"findings"`
	Valid      bool           `json:"valid"`
}

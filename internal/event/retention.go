package event

import "time"

// DisposalAction is what happens to an event once its retention period
// elapses.
type DisposalAction string

const (
	DisposalArchive   DisposalAction = "archive"
	DisposalDelete    DisposalAction = "delete"
	DisposalAnonymize DisposalAction = "anonymize"
)

// RetentionPolicy is one entry of an ordered policy list; the first
// matching policy wins.
type RetentionPolicy struct {
	ID              string         `json:"id"`
	EntityType      string         `json:"entity_type"`
	EventType       string         `json:"event_type,omitempty"`
	RetentionPeriod time.Duration  `json:"retention_period"`
	DisposalAction  DisposalAction `json:"disposal_action"`
}

// Matches reports whether the policy applies to the event.
func (p RetentionPolicy) Matches(e Event) bool {
	if p.EntityType != MatchAll && p.EntityType != e.EntityType {
		return false
	}
	if p.EventType != "" && p.EventType != MatchAll && p.EventType != string(e.EventType) {
		return false
	}
	return true
}

// RetentionInfo is the policy chosen for one event plus the computed
// disposal date.
type RetentionInfo struct {
	EventID     string         `json:"event_id"`
	PolicyID    string         `json:"policy_id"`
	Period      time.Duration  `json:"period"`
	Action      DisposalAction `json:"action"`
	ArchiveDate time.Time      `json:"archive_date"`
}

type RetentionStats struct {
	Total     int64            `json:"total"`
	ByAction  map[string]int64 `json:"by_action"`
	ByPolicy  map[string]int64 `json:"by_policy"`
	Defaulted int64            `json:"defaulted"`
}

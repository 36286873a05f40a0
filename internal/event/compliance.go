package event

import "time"

// MatchAll is the wildcard accepted by compliance rules, retention
// policies and routing rules wherever an entity or event type may match
// anything.
const MatchAll = "*"

// ComplianceRule is static configuration matched against events. An
// empty EntityType or EventType behaves like the wildcard.
type ComplianceRule struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	EntityType    string        `json:"entity_type"`
	EventType     string        `json:"event_type"`
	Check         string        `json:"check"`
	Regulations   []string      `json:"regulations"`
	RetentionHint time.Duration `json:"retention_hint,omitempty"`
}

// Matches reports whether the rule applies to the event.
func (r ComplianceRule) Matches(e Event) bool {
	if r.EntityType != "" && r.EntityType != MatchAll && r.EntityType != e.EntityType {
		return false
	}
	if r.EventType != "" && r.EventType != MatchAll && r.EventType != string(e.EventType) {
		return false
	}
	return true
}

type ComplianceCheckResult struct {
	RuleID    string    `json:"rule_id"`
	RuleName  string    `json:"rule_name"`
	EventID   string    `json:"event_id"`
	Passed    bool      `json:"passed"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type ComplianceReport struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Regions     []string                `json:"regions,omitempty"`
	Total       int                     `json:"total"`
	Passed      int                     `json:"passed"`
	Failed      int                     `json:"failed"`
	Results     []ComplianceCheckResult `json:"results"`
}

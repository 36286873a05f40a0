package routing

import (
	"time"

	"chronicle/internal/event"
)

// EventFilter is one named predicate inside a filter chain. All set
// clauses must hold; the CEL expression is the escape hatch for custom
// predicates.
type EventFilter struct {
	Name       string     `json:"name"`
	EntityType string     `json:"entity_type,omitempty"`
	EventType  string     `json:"event_type,omitempty"`
	After      *time.Time `json:"after,omitempty"`
	Before     *time.Time `json:"before,omitempty"`
	Expression string     `json:"expression,omitempty"`
}

// FilterChain is a named ordered list of filters combined with AND
// semantics; evaluation short-circuits on the first failing filter.
type FilterChain struct {
	Name    string        `json:"name"`
	Filters []EventFilter `json:"filters"`
}

// ConditionType names the supported routing condition kinds.
type ConditionType string

const (
	ConditionTimeRange ConditionType = "time_range"
	ConditionThreshold ConditionType = "threshold"
	ConditionPattern   ConditionType = "pattern"
)

// Condition gates a routing rule. time_range bounds the event
// timestamp, threshold compares a numeric payload field, pattern runs
// a CEL expression against the event (an empty pattern passes).
type Condition struct {
	Type     ConditionType `json:"type"`
	Start    *time.Time    `json:"start,omitempty"`
	End      *time.Time    `json:"end,omitempty"`
	Field    string        `json:"field,omitempty"`
	Operator string        `json:"operator,omitempty"`
	Value    float64       `json:"value,omitempty"`
	Pattern  string        `json:"pattern,omitempty"`
}

// Transform optionally rewrites an event before dispatch to one
// destination. It must not mutate the input.
type Transform func(event.Event) event.Event

// Rule maps an event shape to one destination. Unset EntityType or
// EventType matches anything. Priority orders the result list and
// suppresses lower-priority duplicates targeting the same destination.
type Rule struct {
	ID          string                 `json:"id"`
	EntityType  string                 `json:"entity_type,omitempty"`
	EventType   string                 `json:"event_type,omitempty"`
	Destination string                 `json:"destination"`
	Conditions  []Condition            `json:"conditions,omitempty"`
	Priority    int                    `json:"priority"`
	Transform   Transform              `json:"-"`
	Options     map[string]interface{} `json:"options,omitempty"`
	Enabled     bool                   `json:"enabled"`
	CreatedAt   time.Time              `json:"created_at,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at,omitempty"`
}

// Matches reports whether the rule's entity/event shape applies.
func (r Rule) Matches(evt event.Event) bool {
	if r.EntityType != "" && r.EntityType != event.MatchAll && r.EntityType != evt.EntityType {
		return false
	}
	if r.EventType != "" && r.EventType != event.MatchAll && r.EventType != string(evt.EventType) {
		return false
	}
	return true
}

// DestinationResult is one destination's outcome for one event.
type DestinationResult struct {
	Destination string `json:"destination"`
	RuleID      string `json:"rule_id"`
	Success     bool   `json:"success"`
	MessageID   string `json:"message_id,omitempty"`
	Error       string `json:"error,omitempty"`
	Filtered    bool   `json:"filtered,omitempty"`
}

// RouteResult is the router's terminal outcome for one event.
type RouteResult struct {
	EventID   string              `json:"event_id"`
	Success   bool                `json:"success"`
	Reason    string              `json:"reason,omitempty"`
	Results   []DestinationResult `json:"routing_results,omitempty"`
	LatencyMS int64               `json:"latency_ms"`
}

// Stats is a snapshot of aggregate router counters.
type Stats struct {
	EventsTotal    int64   `json:"events_total"`
	EventsRouted   int64   `json:"events_routed"`
	EventsFiltered int64   `json:"events_filtered"`
	FailedRoutes   int64   `json:"failed_routes"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
}

package admin

import (
	"time"

	"chronicle/internal/event"
	"chronicle/internal/query"
	"chronicle/internal/routing"
)

// AppendEventRequest is the body for appending one event to the log.
type AppendEventRequest struct {
	ID             string                 `json:"id"`
	EntityType     string                 `json:"entityType" binding:"required"`
	EntityID       string                 `json:"entityId"`
	EventType      string                 `json:"eventType" binding:"required"`
	Timestamp      *time.Time             `json:"timestamp"`
	Data           map[string]interface{} `json:"data"`
	PreviousValues map[string]interface{} `json:"previousValues"`
	Source         string                 `json:"source"`
}

// ToEvent builds a validated-later event from the request, filling the
// id and timestamp when absent.
func (r AppendEventRequest) ToEvent() event.Event {
	b := event.NewBuilder().
		WithID(r.ID).
		WithEntity(r.EntityType, r.EntityID).
		WithType(event.Type(r.EventType)).
		WithData(r.Data).
		WithPreviousValues(r.PreviousValues).
		WithSource(r.Source)
	if r.Timestamp != nil {
		b = b.WithTimestamp(*r.Timestamp)
	}
	return b.Build()
}

// QueryRequest is the body for the event query endpoint.
type QueryRequest struct {
	Filters []query.Filter `json:"filters"`
	Sort    *query.Sort    `json:"sort"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
}

func (r QueryRequest) ToQuery() query.Query {
	q := query.Query{
		Filters: r.Filters,
		Offset:  r.Offset,
		Limit:   r.Limit,
	}
	if r.Sort != nil {
		q.Sort = r.Sort
	}
	return q
}

// CreateRoutingRuleRequest registers one routing rule in memory.
type CreateRoutingRuleRequest struct {
	ID          string                 `json:"id" binding:"required"`
	EntityType  string                 `json:"entityType"`
	EventType   string                 `json:"eventType"`
	Destination string                 `json:"destination" binding:"required"`
	Conditions  []routing.Condition    `json:"conditions"`
	Priority    int                    `json:"priority"`
	Options     map[string]interface{} `json:"options"`
	Enabled     *bool                  `json:"enabled"`
}

func (r CreateRoutingRuleRequest) ToRule() routing.Rule {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	now := time.Now()
	return routing.Rule{
		ID:          r.ID,
		EntityType:  r.EntityType,
		EventType:   r.EventType,
		Destination: r.Destination,
		Conditions:  r.Conditions,
		Priority:    r.Priority,
		Options:     r.Options,
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CreateChainRequest registers a named filter chain.
type CreateChainRequest struct {
	Name    string                `json:"name" binding:"required"`
	Filters []routing.EventFilter `json:"filters"`
}

// CreateComplianceRuleRequest registers one compliance rule.
type CreateComplianceRuleRequest struct {
	ID            string   `json:"id" binding:"required"`
	Name          string   `json:"name" binding:"required"`
	EntityType    string   `json:"entityType"`
	EventType     string   `json:"eventType"`
	Check         string   `json:"check" binding:"required"`
	Regulations   []string `json:"regulations"`
	RetentionHint int64    `json:"retentionHintSeconds"`
}

func (r CreateComplianceRuleRequest) ToRule() event.ComplianceRule {
	return event.ComplianceRule{
		ID:            r.ID,
		Name:          r.Name,
		EntityType:    r.EntityType,
		EventType:     r.EventType,
		Check:         r.Check,
		Regulations:   r.Regulations,
		RetentionHint: time.Duration(r.RetentionHint) * time.Second,
	}
}

// CreateRetentionPolicyRequest registers one retention policy.
type CreateRetentionPolicyRequest struct {
	ID            string `json:"id" binding:"required"`
	EntityType    string `json:"entityType"`
	EventType     string `json:"eventType"`
	PeriodSeconds int64  `json:"periodSeconds" binding:"required"`
	Action        string `json:"action" binding:"required"`
}

func (r CreateRetentionPolicyRequest) ToPolicy() event.RetentionPolicy {
	return event.RetentionPolicy{
		ID:              r.ID,
		EntityType:      r.EntityType,
		EventType:       r.EventType,
		RetentionPeriod: time.Duration(r.PeriodSeconds) * time.Second,
		DisposalAction:  event.DisposalAction(r.Action),
	}
}

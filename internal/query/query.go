package query

import (
	"sort"
	"time"

	"chronicle/internal/constants"
	"chronicle/internal/event"
	"chronicle/pkg/errors"
	"chronicle/pkg/metrics"
)

// Operator compares an event field against a filter value.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Filter is one field/operator/value predicate. Filters are combined
// with AND semantics. Ordering operators apply only to the timestamp
// field, compared as epoch seconds.
type Filter struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

type Sort struct {
	Field string `json:"field"`
	Order string `json:"order"` // "asc" or "desc"
}

type Query struct {
	Filters []Filter `json:"filters"`
	Sort    *Sort    `json:"sort,omitempty"`
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
}

type Result struct {
	Events     []event.Event `json:"events"`
	TotalCount int           `json:"total_count"`
	Offset     int           `json:"offset"`
	Limit      int           `json:"limit"`
	HasMore    bool          `json:"has_more"`
}

// Execute filters, sorts and paginates a snapshot of the event log.
// An empty result set is a valid outcome, not an error.
func Execute(q Query, events []event.Event) (Result, error) {
	start := time.Now()

	limit := q.Limit
	if limit <= 0 {
		limit = constants.DefaultQueryLimit
	}
	if limit > constants.MaxQueryLimit {
		limit = constants.MaxQueryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var matched []event.Event
	for _, evt := range events {
		ok, err := matchesAll(q.Filters, evt)
		if err != nil {
			metrics.ObserveQueryDuration(time.Since(start), "error")
			return Result{}, err
		}
		if ok {
			matched = append(matched, evt)
		}
	}

	if q.Sort != nil {
		sortEvents(matched, *q.Sort)
	}

	total := len(matched)
	page := paginate(matched, offset, limit)

	metrics.ObserveQueryDuration(time.Since(start), "ok")

	return Result{
		Events:     page,
		TotalCount: total,
		Offset:     offset,
		Limit:      limit,
		HasMore:    offset+limit < total,
	}, nil
}

func matchesAll(filters []Filter, evt event.Event) (bool, error) {
	for _, f := range filters {
		ok, err := matches(f, evt)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matches(f Filter, evt event.Event) (bool, error) {
	switch f.Field {
	case "timestamp":
		return matchTimestamp(f, evt.Timestamp)
	case "id":
		return matchString(f, evt.ID)
	case "entityType", "entity_type":
		return matchString(f, evt.EntityType)
	case "entityId", "entity_id":
		return matchString(f, evt.EntityID)
	case "eventType", "event_type":
		return matchString(f, string(evt.EventType))
	default:
		return false, errors.ErrValidation.WithDetail("message", "unknown filter field: "+f.Field)
	}
}

func matchString(f Filter, got string) (bool, error) {
	want, ok := f.Value.(string)
	if !ok {
		return false, errors.ErrValidation.WithDetail("message", "filter value for "+f.Field+" must be a string")
	}
	switch f.Operator {
	case OpEq:
		return got == want, nil
	case OpNeq:
		return got != want, nil
	default:
		return false, errors.ErrValidation.WithDetail("message", "operator "+string(f.Operator)+" not supported for field "+f.Field)
	}
}

func matchTimestamp(f Filter, ts time.Time) (bool, error) {
	want, err := epochSeconds(f.Value)
	if err != nil {
		return false, err
	}
	got := ts.Unix()

	switch f.Operator {
	case OpEq:
		return got == want, nil
	case OpNeq:
		return got != want, nil
	case OpGt:
		return got > want, nil
	case OpGte:
		return got >= want, nil
	case OpLt:
		return got < want, nil
	case OpLte:
		return got <= want, nil
	default:
		return false, errors.ErrValidation.WithDetail("message", "unknown operator: "+string(f.Operator))
	}
}

func epochSeconds(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case time.Time:
		return t.Unix(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return 0, errors.ErrValidation.WithDetail("message", "timestamp filter value must be epoch seconds or RFC3339")
		}
		return parsed.Unix(), nil
	default:
		return 0, errors.ErrValidation.WithDetail("message", "timestamp filter value must be numeric")
	}
}

func sortEvents(events []event.Event, s Sort) {
	desc := s.Order == "desc"
	sort.SliceStable(events, func(i, j int) bool {
		less := lessByField(events[i], events[j], s.Field)
		if desc {
			return lessByField(events[j], events[i], s.Field)
		}
		return less
	})
}

func lessByField(a, b event.Event, field string) bool {
	switch field {
	case "timestamp":
		return a.Timestamp.Before(b.Timestamp)
	case "id":
		return a.ID < b.ID
	case "entityType", "entity_type":
		return a.EntityType < b.EntityType
	case "eventType", "event_type":
		return a.EventType < b.EventType
	default:
		return false
	}
}

func paginate(events []event.Event, offset, limit int) []event.Event {
	if offset >= len(events) {
		return []event.Event{}
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}
	page := make([]event.Event, end-offset)
	copy(page, events[offset:end])
	return page
}

package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/event"
	"chronicle/internal/logger"
)

func ruleTestEvent() event.Event {
	return event.NewBuilder().
		WithID("evt-1").
		WithEntity("order", "order-1").
		WithType(event.TypeCreated).
		WithTimestamp(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)).
		WithData(map[string]interface{}{"amount": 250.0, "status": "pending"}).
		Build()
}

func enabledRule(id, destination string, priority int) Rule {
	return Rule{ID: id, Destination: destination, Priority: priority, Enabled: true}
}

func TestRuleSetResolve_ShapeAndEnabled(t *testing.T) {
	rs := NewRuleSet(newTestEvaluator(t), logger.NopLogger())
	rs.Add(Rule{ID: "r1", EntityType: "order", Destination: "webhook", Enabled: true})
	rs.Add(Rule{ID: "r2", EntityType: "user", Destination: "queue", Enabled: true})
	rs.Add(Rule{ID: "r3", EventType: "deleted", Destination: "file", Enabled: true})
	rs.Add(Rule{ID: "r4", EntityType: "order", Destination: "database", Enabled: false})
	rs.Add(Rule{ID: "r5", EntityType: event.MatchAll, Destination: "api", Enabled: true})

	resolved := rs.Resolve(context.Background(), ruleTestEvent())

	ids := make([]string, 0, len(resolved))
	for _, r := range resolved {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"r1", "r5"}, ids)
}

func TestRuleSetResolve_PriorityOrder(t *testing.T) {
	rs := NewRuleSet(newTestEvaluator(t), logger.NopLogger())
	rs.Add(enabledRule("low", "file", 1))
	rs.Add(enabledRule("high", "webhook", 10))
	rs.Add(enabledRule("mid", "queue", 5))

	resolved := rs.Resolve(context.Background(), ruleTestEvent())

	require.Len(t, resolved, 3)
	assert.Equal(t, "high", resolved[0].ID)
	assert.Equal(t, "mid", resolved[1].ID)
	assert.Equal(t, "low", resolved[2].ID)
}

func TestRuleSetResolve_TiesKeepInsertionOrder(t *testing.T) {
	rs := NewRuleSet(newTestEvaluator(t), logger.NopLogger())
	rs.Add(enabledRule("first", "webhook", 5))
	rs.Add(enabledRule("second", "queue", 5))

	resolved := rs.Resolve(context.Background(), ruleTestEvent())

	require.Len(t, resolved, 2)
	assert.Equal(t, "first", resolved[0].ID)
	assert.Equal(t, "second", resolved[1].ID)
}

func TestRuleSetResolve_DedupesSameDestination(t *testing.T) {
	rs := NewRuleSet(newTestEvaluator(t), logger.NopLogger())
	rs.Add(enabledRule("loser", "webhook", 1))
	rs.Add(enabledRule("winner", "webhook", 9))
	rs.Add(enabledRule("other", "queue", 5))

	resolved := rs.Resolve(context.Background(), ruleTestEvent())

	require.Len(t, resolved, 2)
	assert.Equal(t, "winner", resolved[0].ID)
	assert.Equal(t, "other", resolved[1].ID)
}

func TestRuleSetResolve_TimeRangeCondition(t *testing.T) {
	evt := ruleTestEvent()
	before := evt.Timestamp.Add(-time.Hour)
	after := evt.Timestamp.Add(time.Hour)

	tests := []struct {
		name string
		cond Condition
		want int
	}{
		{"inside range", Condition{Type: ConditionTimeRange, Start: &before, End: &after}, 1},
		{"starts too late", Condition{Type: ConditionTimeRange, Start: &after}, 0},
		{"ended already", Condition{Type: ConditionTimeRange, End: &before}, 0},
		{"unbounded", Condition{Type: ConditionTimeRange}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRuleSet(newTestEvaluator(t), logger.NopLogger())
			rule := enabledRule("r1", "webhook", 1)
			rule.Conditions = []Condition{tt.cond}
			rs.Add(rule)

			assert.Len(t, rs.Resolve(context.Background(), evt), tt.want)
		})
	}
}

func TestRuleSetResolve_ThresholdCondition(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want int
	}{
		{"gt holds", Condition{Type: ConditionThreshold, Field: "amount", Operator: "gt", Value: 100}, 1},
		{"gt fails", Condition{Type: ConditionThreshold, Field: "amount", Operator: "gt", Value: 500}, 0},
		{"gte boundary", Condition{Type: ConditionThreshold, Field: "amount", Operator: "gte", Value: 250}, 1},
		{"lt fails", Condition{Type: ConditionThreshold, Field: "amount", Operator: "lt", Value: 250}, 0},
		{"lte boundary", Condition{Type: ConditionThreshold, Field: "amount", Operator: "lte", Value: 250}, 1},
		{"eq holds", Condition{Type: ConditionThreshold, Field: "amount", Operator: "eq", Value: 250}, 1},
		{"neq holds", Condition{Type: ConditionThreshold, Field: "amount", Operator: "neq", Value: 100}, 1},
		{"missing field", Condition{Type: ConditionThreshold, Field: "total", Operator: "gt", Value: 1}, 0},
		{"non-numeric field skips rule", Condition{Type: ConditionThreshold, Field: "status", Operator: "gt", Value: 1}, 0},
		{"unknown operator skips rule", Condition{Type: ConditionThreshold, Field: "amount", Operator: "between", Value: 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRuleSet(newTestEvaluator(t), logger.NopLogger())
			rule := enabledRule("r1", "webhook", 1)
			rule.Conditions = []Condition{tt.cond}
			rs.Add(rule)

			assert.Len(t, rs.Resolve(context.Background(), ruleTestEvent()), tt.want)
		})
	}
}

func TestRuleSetResolve_PatternCondition(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    int
	}{
		{"matching expression", `data.status == "pending"`, 1},
		{"non-matching expression", `data.status == "shipped"`, 0},
		{"empty pattern passes", "", 1},
		{"invalid expression skips rule", `no_such_var > 1`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRuleSet(newTestEvaluator(t), logger.NopLogger())
			rule := enabledRule("r1", "webhook", 1)
			rule.Conditions = []Condition{{Type: ConditionPattern, Pattern: tt.pattern}}
			rs.Add(rule)

			assert.Len(t, rs.Resolve(context.Background(), ruleTestEvent()), tt.want)
		})
	}
}

func TestRuleSetResolve_AllConditionsMustHold(t *testing.T) {
	rs := NewRuleSet(newTestEvaluator(t), logger.NopLogger())
	rule := enabledRule("r1", "webhook", 1)
	rule.Conditions = []Condition{
		{Type: ConditionThreshold, Field: "amount", Operator: "gt", Value: 100},
		{Type: ConditionPattern, Pattern: `data.status == "shipped"`},
	}
	rs.Add(rule)

	assert.Empty(t, rs.Resolve(context.Background(), ruleTestEvent()))
}

func TestRuleSetReplace(t *testing.T) {
	rs := NewRuleSet(newTestEvaluator(t), logger.NopLogger())
	rs.Add(enabledRule("old", "webhook", 1))

	rs.Replace([]Rule{enabledRule("new-1", "queue", 1), enabledRule("new-2", "file", 2)})

	rules := rs.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "new-1", rules[0].ID)

	resolved := rs.Resolve(context.Background(), ruleTestEvent())
	require.Len(t, resolved, 2)
	assert.Equal(t, "new-2", resolved[0].ID)
}

package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/event"
	"chronicle/internal/logger"
	"chronicle/internal/retention"
)

func complianceEvent(eventType event.Type) event.Event {
	return event.Event{
		ID:         "evt-1",
		EntityType: "user",
		EntityID:   "u-1",
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
		Source:     "api",
		Data:       map[string]interface{}{"name": "after"},
	}
}

func TestCheckCompliance_MatchingOnly(t *testing.T) {
	m := NewManager([]event.ComplianceRule{
		{ID: "r-user", Name: "users", EntityType: "user", EventType: "*", Check: "always"},
		{ID: "r-order", Name: "orders", EntityType: "order", EventType: "*", Check: "always"},
	}, nil, logger.NopLogger())
	m.RegisterEvaluator("always", EvaluatorFunc(
		func(ctx context.Context, rule event.ComplianceRule, evt event.Event) (bool, string) {
			return true, ""
		}))

	results := m.CheckCompliance(context.Background(), complianceEvent(event.TypeCreated))

	require.Len(t, results, 1)
	assert.Equal(t, "r-user", results[0].RuleID)
	assert.True(t, results[0].Passed)
}

func TestCheckCompliance_MissingEvaluatorFails(t *testing.T) {
	m := NewManager([]event.ComplianceRule{
		{ID: "r-1", Name: "orphan", EntityType: "*", EventType: "*", Check: "unregistered"},
	}, nil, logger.NopLogger())

	results := m.CheckCompliance(context.Background(), complianceEvent(event.TypeCreated))

	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Detail, "no evaluator registered")
}

func TestBuiltinEvaluators(t *testing.T) {
	retentionMgr := retention.NewManager([]event.RetentionPolicy{
		{ID: "short", EntityType: "*", RetentionPeriod: 24 * time.Hour, DisposalAction: event.DisposalDelete},
	})

	m := NewManager(nil, nil, logger.NopLogger())
	RegisterBuiltinEvaluators(m, retentionMgr)

	t.Run("data retention below hint fails", func(t *testing.T) {
		m.SetRules([]event.ComplianceRule{{
			ID: "r-ret", Name: "retention", EntityType: "*", EventType: "*",
			Check: CheckDataRetention, RetentionHint: 365 * 24 * time.Hour,
		}})
		results := m.CheckCompliance(context.Background(), complianceEvent(event.TypeCreated))
		require.Len(t, results, 1)
		assert.False(t, results[0].Passed)
	})

	t.Run("audit integrity requires source", func(t *testing.T) {
		m.SetRules([]event.ComplianceRule{{
			ID: "r-int", Name: "integrity", EntityType: "*", EventType: "*",
			Check: CheckAuditIntegrity,
		}})
		evt := complianceEvent(event.TypeCreated)
		evt.Source = ""
		results := m.CheckCompliance(context.Background(), evt)
		require.Len(t, results, 1)
		assert.False(t, results[0].Passed)
	})

	t.Run("change tracking requires previous values on update", func(t *testing.T) {
		m.SetRules([]event.ComplianceRule{{
			ID: "r-ct", Name: "change tracking", EntityType: "*", EventType: "*",
			Check: CheckChangeTracking,
		}})

		results := m.CheckCompliance(context.Background(), complianceEvent(event.TypeUpdated))
		require.Len(t, results, 1)
		assert.False(t, results[0].Passed)

		evt := complianceEvent(event.TypeUpdated)
		evt.PreviousValues = map[string]interface{}{"name": "before"}
		results = m.CheckCompliance(context.Background(), evt)
		require.Len(t, results, 1)
		assert.True(t, results[0].Passed)
	})
}

func TestReportAggregates(t *testing.T) {
	m := NewManager([]event.ComplianceRule{
		{ID: "r-pass", Name: "pass", EntityType: "*", EventType: "*", Check: "pass"},
		{ID: "r-fail", Name: "fail", EntityType: "*", EventType: "*", Check: "fail"},
	}, []string{"GDPR"}, logger.NopLogger())
	m.RegisterEvaluator("pass", EvaluatorFunc(
		func(ctx context.Context, rule event.ComplianceRule, evt event.Event) (bool, string) {
			return true, ""
		}))
	m.RegisterEvaluator("fail", EvaluatorFunc(
		func(ctx context.Context, rule event.ComplianceRule, evt event.Event) (bool, string) {
			return false, "nope"
		}))

	m.CheckCompliance(context.Background(), complianceEvent(event.TypeCreated))
	m.CheckCompliance(context.Background(), complianceEvent(event.TypeUpdated))

	report := m.Report()
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, []string{"GDPR"}, report.Regions)
}

func TestRegionRules(t *testing.T) {
	assert.Len(t, RegionRules("GDPR"), 2)
	assert.Len(t, RegionRules("SOX"), 1)
	assert.Len(t, RegionRules("HIPAA"), 1)
	assert.Nil(t, RegionRules("unknown"))
}

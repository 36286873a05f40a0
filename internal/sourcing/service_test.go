package sourcing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/audit"
	"chronicle/internal/compliance"
	"chronicle/internal/config"
	"chronicle/internal/event"
	"chronicle/internal/eventlog"
	"chronicle/internal/logger"
	"chronicle/internal/query"
	"chronicle/internal/retention"
	"chronicle/pkg/errors"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	complianceMgr := compliance.NewManager(nil, nil, logger.NopLogger())
	retentionMgr := retention.NewManager(nil)
	compliance.RegisterBuiltinEvaluators(complianceMgr, retentionMgr)
	return NewService(
		eventlog.NewMemoryStore(0),
		audit.NewManager(),
		complianceMgr,
		retentionMgr,
		opts,
		logger.NopLogger(),
	)
}

func serviceEvent(id string, eventType event.Type, ts time.Time, data, prev map[string]interface{}) event.Event {
	b := event.NewBuilder().
		WithID(id).
		WithEntity("order", "order-1").
		WithType(eventType).
		WithTimestamp(ts).
		WithSource("api").
		WithData(data)
	if prev != nil {
		b = b.WithPreviousValues(prev)
	}
	return b.Build()
}

func TestAppendEventWithAudit_Derivations(t *testing.T) {
	svc := newTestService(t, DefaultOptions())

	evt := serviceEvent("evt-1", event.TypeCreated, time.Now(), map[string]interface{}{
		"amount": 42.0,
		"userId": "alice",
	}, nil)

	result, err := svc.AppendEventWithAudit(context.Background(), evt)
	require.NoError(t, err)

	assert.Equal(t, "evt-1", result.EventID)
	require.NotNil(t, result.AuditEntry)
	assert.Equal(t, "alice", result.AuditEntry.UserID)
	require.NotNil(t, result.RetentionInfo)
	assert.Equal(t, retention.DefaultPolicy.ID, result.RetentionInfo.PolicyID)
	assert.Empty(t, result.DerivationErrors)
}

func TestAppendEventWithAudit_RejectsInvalidEvent(t *testing.T) {
	svc := newTestService(t, DefaultOptions())

	evt := serviceEvent("evt-1", event.TypeCreated, time.Now(), nil, nil)
	evt.EntityType = ""

	_, err := svc.AppendEventWithAudit(context.Background(), evt)
	assert.Error(t, err)
}

func TestAppendEventWithAudit_DuplicateID(t *testing.T) {
	svc := newTestService(t, DefaultOptions())
	evt := serviceEvent("evt-1", event.TypeCreated, time.Now(), map[string]interface{}{"a": 1}, nil)

	_, err := svc.AppendEventWithAudit(context.Background(), evt)
	require.NoError(t, err)

	_, err = svc.AppendEventWithAudit(context.Background(), evt)
	assert.True(t, errors.IsDuplicate(err) || errors.IsConflict(err))
}

type seenCache map[string]struct{}

func (c seenCache) MarkSeen(_ context.Context, key string, _ time.Duration) (bool, error) {
	if _, ok := c[key]; ok {
		return false, nil
	}
	c[key] = struct{}{}
	return true, nil
}

func TestAppendEventWithAudit_DuplicateGuard(t *testing.T) {
	svc := newTestService(t, DefaultOptions())
	svc.SetDuplicateGuard(eventlog.NewDuplicateGuard(seenCache{}, config.DedupConfig{Enabled: true}, logger.NopLogger()))

	evt := serviceEvent("evt-1", event.TypeCreated, time.Now(), map[string]interface{}{"a": 1}, nil)

	_, err := svc.AppendEventWithAudit(context.Background(), evt)
	require.NoError(t, err)

	_, err = svc.AppendEventWithAudit(context.Background(), evt)
	assert.True(t, errors.IsDuplicate(err))
}

func TestAppendEventWithAudit_DerivationFailureKeepsEvent(t *testing.T) {
	svc := newTestService(t, DefaultOptions())
	svc.compliance.AddRule(event.ComplianceRule{
		ID:    "cr-1",
		Name:  "exploding check",
		Check: "boom",
	})
	svc.compliance.RegisterEvaluator("boom", compliance.EvaluatorFunc(
		func(context.Context, event.ComplianceRule, event.Event) (bool, string) {
			panic("evaluator bug")
		}))

	evt := serviceEvent("evt-1", event.TypeCreated, time.Now(), map[string]interface{}{"a": 1}, nil)

	result, err := svc.AppendEventWithAudit(context.Background(), evt)
	require.NoError(t, err)

	require.Len(t, result.DerivationErrors, 1)
	assert.Contains(t, result.DerivationErrors[0], "compliance")
	require.NotNil(t, result.AuditEntry)
	require.NotNil(t, result.RetentionInfo)

	// The append survived the derivation failure.
	rebuilt, err := svc.RebuildEntityWithAudit(context.Background(), "order", "order-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rebuilt.EventCount)
}

func TestAppendEventWithAudit_DisabledDerivations(t *testing.T) {
	svc := newTestService(t, Options{})

	evt := serviceEvent("evt-1", event.TypeCreated, time.Now(), map[string]interface{}{"a": 1}, nil)

	result, err := svc.AppendEventWithAudit(context.Background(), evt)
	require.NoError(t, err)

	assert.Nil(t, result.AuditEntry)
	assert.Nil(t, result.ComplianceResults)
	assert.Nil(t, result.RetentionInfo)
}

func TestRebuildEntityWithAudit_Fold(t *testing.T) {
	svc := newTestService(t, DefaultOptions())
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	appendAll := func(events ...event.Event) {
		t.Helper()
		for _, evt := range events {
			_, err := svc.AppendEventWithAudit(ctx, evt)
			require.NoError(t, err)
		}
	}

	appendAll(
		serviceEvent("evt-1", event.TypeCreated, base, map[string]interface{}{
			"status": "pending", "amount": 100.0,
		}, nil),
		serviceEvent("evt-2", event.TypeUpdated, base.Add(time.Minute), map[string]interface{}{
			"amount": 150.0,
		}, map[string]interface{}{"amount": 100.0}),
		serviceEvent("evt-3", event.TypeCompleted, base.Add(2*time.Minute), nil, nil),
	)

	result, err := svc.RebuildEntityWithAudit(ctx, "order", "order-1")
	require.NoError(t, err)

	assert.Equal(t, 3, result.EventCount)
	assert.Equal(t, "completed", result.Status)
	assert.False(t, result.Deleted)
	assert.Equal(t, 150.0, result.State["amount"])
	assert.Equal(t, "pending", result.State["status"])
	assert.Len(t, result.Trail.Entries, 3)

	// Replay is idempotent.
	again, err := svc.RebuildEntityWithAudit(ctx, "order", "order-1")
	require.NoError(t, err)
	assert.Equal(t, result.State, again.State)
	assert.Equal(t, result.Status, again.Status)
}

func TestRebuildEntityWithAudit_Deleted(t *testing.T) {
	svc := newTestService(t, DefaultOptions())
	ctx := context.Background()
	base := time.Now()

	_, err := svc.AppendEventWithAudit(ctx, serviceEvent("evt-1", event.TypeCreated, base,
		map[string]interface{}{"status": "pending"}, nil))
	require.NoError(t, err)
	_, err = svc.AppendEventWithAudit(ctx, serviceEvent("evt-2", event.TypeDeleted, base.Add(time.Minute),
		map[string]interface{}{"status": "pending"}, nil))
	require.NoError(t, err)

	result, err := svc.RebuildEntityWithAudit(ctx, "order", "order-1")
	require.NoError(t, err)

	assert.True(t, result.Deleted)
	assert.Equal(t, "deleted", result.Status)
}

func TestRebuildEntityWithAudit_UnknownEntity(t *testing.T) {
	svc := newTestService(t, DefaultOptions())

	result, err := svc.RebuildEntityWithAudit(context.Background(), "order", "no-such-order")
	require.NoError(t, err)

	assert.Equal(t, 0, result.EventCount)
	assert.Empty(t, result.State)
	assert.Empty(t, result.Trail.Entries)
}

func TestValidateAuditTrail(t *testing.T) {
	opts := DefaultOptions()
	opts.GapWarnThreshold = 30 * time.Minute
	svc := newTestService(t, opts)
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	_, err := svc.AppendEventWithAudit(ctx, serviceEvent("evt-1", event.TypeCreated, base,
		map[string]interface{}{"a": 1}, nil))
	require.NoError(t, err)
	_, err = svc.AppendEventWithAudit(ctx, serviceEvent("evt-2", event.TypeUpdated, base.Add(2*time.Hour),
		map[string]interface{}{"a": 2}, map[string]interface{}{"a": 1}))
	require.NoError(t, err)

	validation, err := svc.ValidateAuditTrail(ctx, "order", "order-1")
	require.NoError(t, err)

	assert.True(t, validation.Valid)
	assert.Equal(t, 2, validation.EventCount)
	assert.Equal(t, 2, validation.EntryCount)
	require.Len(t, validation.Findings, 1)
	assert.Equal(t, "warning", validation.Findings[0].Severity)
	assert.Equal(t, event.FindingSequenceGap, validation.Findings[0].Code)
}

func TestValidateAuditTrail_CountMismatch(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	// Audit derivation disabled, so entries lag behind events.
	_, err := svc.AppendEventWithAudit(ctx, serviceEvent("evt-1", event.TypeCreated, time.Now(),
		map[string]interface{}{"a": 1}, nil))
	require.NoError(t, err)

	validation, err := svc.ValidateAuditTrail(ctx, "order", "order-1")
	require.NoError(t, err)

	assert.False(t, validation.Valid)
	require.NotEmpty(t, validation.Findings)
	last := validation.Findings[len(validation.Findings)-1]
	assert.Equal(t, "error", last.Severity)
	assert.Equal(t, event.FindingCountMismatch, last.Code)
}

func TestExportAuditTrail(t *testing.T) {
	svc := newTestService(t, DefaultOptions())
	ctx := context.Background()

	_, err := svc.AppendEventWithAudit(ctx, serviceEvent("evt-1", event.TypeCreated, time.Now(),
		map[string]interface{}{"a": 1}, nil))
	require.NoError(t, err)

	raw, err := svc.ExportAuditTrail(ctx, "order", "order-1", audit.FormatJSON)
	require.NoError(t, err)

	var trail event.AuditTrail
	require.NoError(t, json.Unmarshal(raw, &trail))
	assert.Len(t, trail.Entries, 1)

	_, err = svc.ExportAuditTrail(ctx, "order", "order-1", audit.ExportFormat("yaml"))
	assert.Error(t, err)
}

func TestServiceQuery(t *testing.T) {
	svc := newTestService(t, DefaultOptions())
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"evt-1", "evt-2", "evt-3"} {
		_, err := svc.AppendEventWithAudit(ctx, serviceEvent(id, event.TypeCreated,
			base.Add(time.Duration(i)*time.Minute), map[string]interface{}{"a": i}, nil))
		require.NoError(t, err)
	}

	result, err := svc.Query(ctx, query.Query{
		Filters: []query.Filter{{Field: "entityType", Operator: query.OpEq, Value: "order"}},
		Sort:    &query.Sort{Field: "timestamp", Order: "desc"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalCount)
	require.Len(t, result.Events, 3)
	assert.Equal(t, "evt-3", result.Events[0].ID)
}

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"chronicle/internal/event"
	"chronicle/internal/logger"
	"chronicle/internal/routing"
)

const (
	containerStartupTimeout = 60
	timestampDelay          = 10 * time.Millisecond
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func insertRoutingRule(t *testing.T, db *sql.DB, rule routing.Rule) {
	t.Helper()

	conditions, err := json.Marshal(rule.Conditions)
	require.NoError(t, err)
	options, err := json.Marshal(rule.Options)
	require.NoError(t, err)
	if rule.Conditions == nil {
		conditions = []byte("[]")
	}
	if rule.Options == nil {
		options = []byte("{}")
	}

	_, err = db.ExecContext(context.Background(), `
		INSERT INTO routing_rules (id, entity_type, event_type, destination, conditions, priority, options, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rule.ID, rule.EntityType, rule.EventType, rule.Destination, conditions, rule.Priority, options, rule.Enabled)
	require.NoError(t, err)
}

func insertComplianceRule(t *testing.T, db *sql.DB, rule event.ComplianceRule, enabled bool) {
	t.Helper()

	_, err := db.ExecContext(context.Background(), `
		INSERT INTO compliance_rules (id, name, entity_type, event_type, check_name, regulations, retention_hint_seconds, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rule.ID, rule.Name, rule.EntityType, rule.EventType, rule.Check,
		pq.StringArray(rule.Regulations), int64(rule.RetentionHint.Seconds()), enabled)
	require.NoError(t, err)
}

func testEvent(id, entityType, entityID string, eventType event.Type) event.Event {
	return event.NewBuilder().
		WithID(id).
		WithEntity(entityType, entityID).
		WithType(eventType).
		WithTimestamp(time.Now().UTC()).
		WithData(map[string]interface{}{"status": "active"}).
		WithSource("integration_test").
		Build()
}

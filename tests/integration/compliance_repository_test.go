package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/compliance"
	"chronicle/internal/config"
	"chronicle/internal/event"
)

func TestComplianceRepository_GetActiveRules(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()

	insertComplianceRule(t, infra.PostgresDB, event.ComplianceRule{
		ID: "c-1", Name: "gdpr-user-retention", EntityType: "user", EventType: "*",
		Check: compliance.CheckDataRetention, Regulations: []string{"GDPR"},
		RetentionHint: 730 * 24 * time.Hour,
	}, true)
	time.Sleep(timestampDelay)
	insertComplianceRule(t, infra.PostgresDB, event.ComplianceRule{
		ID: "c-2", Name: "sox-audit", EntityType: "transaction", EventType: "*",
		Check: compliance.CheckAuditIntegrity, Regulations: []string{"SOX"},
	}, true)
	time.Sleep(timestampDelay)
	insertComplianceRule(t, infra.PostgresDB, event.ComplianceRule{
		ID: "c-off", Name: "disabled", EntityType: "*", EventType: "*",
		Check: compliance.CheckChangeTracking,
	}, false)

	repo := compliance.NewRepository(infra.PostgresDB)
	rules, err := repo.GetActiveRules(ctx)
	require.NoError(t, err)

	assert.Len(t, rules, 2)
	assert.Equal(t, "c-1", rules[0].ID)
	assert.Equal(t, []string{"GDPR"}, rules[0].Regulations)
	assert.Equal(t, 730*24*time.Hour, rules[0].RetentionHint)
	assert.Equal(t, "c-2", rules[1].ID)
}

func TestComplianceReloader_UpdatesManager(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()

	insertComplianceRule(t, infra.PostgresDB, event.ComplianceRule{
		ID: "c-1", Name: "gdpr-user-retention", EntityType: "user", EventType: "*",
		Check: compliance.CheckDataRetention, Regulations: []string{"GDPR"},
	}, true)

	manager := compliance.NewManager(nil, nil, createTestLogger())
	reloader := compliance.NewReloader(compliance.NewRepository(infra.PostgresDB), manager, config.ReloadConfig{IntervalSeconds: 60}, createTestLogger())

	require.NoError(t, reloader.Reload(ctx, true))
	assert.Len(t, manager.Rules(), 1)
}

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/config"
	"chronicle/internal/routing"
	"chronicle/pkg/cel"
)

func TestRoutingRepository_GetActiveRules(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()

	insertRoutingRule(t, infra.PostgresDB, routing.Rule{
		ID: "r-webhook", EntityType: "order", EventType: "created",
		Destination: "webhook", Priority: 10, Enabled: true,
	})
	time.Sleep(timestampDelay)
	insertRoutingRule(t, infra.PostgresDB, routing.Rule{
		ID: "r-queue", EntityType: "*", EventType: "",
		Destination: "queue", Priority: 20, Enabled: true,
	})
	time.Sleep(timestampDelay)
	insertRoutingRule(t, infra.PostgresDB, routing.Rule{
		ID: "r-disabled", EntityType: "order", EventType: "deleted",
		Destination: "file", Priority: 5, Enabled: false,
	})

	repo := routing.NewRepository(infra.PostgresDB)
	rules, err := repo.GetActiveRules(ctx)
	require.NoError(t, err)

	assert.Len(t, rules, 2)
	assert.Equal(t, "r-queue", rules[0].ID) // Priority 20
	assert.Equal(t, "r-webhook", rules[1].ID)
}

func TestRoutingRepository_ConditionsRoundTrip(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()

	insertRoutingRule(t, infra.PostgresDB, routing.Rule{
		ID: "r-cond", EntityType: "order", EventType: "created",
		Destination: "webhook", Priority: 1, Enabled: true,
		Conditions: []routing.Condition{
			{Type: routing.ConditionThreshold, Field: "amount", Operator: "gte", Value: 100},
		},
		Options: map[string]interface{}{"url": "http://example.com/hook"},
	})

	repo := routing.NewRepository(infra.PostgresDB)
	rules, err := repo.GetActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	rule := rules[0]
	require.Len(t, rule.Conditions, 1)
	assert.Equal(t, routing.ConditionThreshold, rule.Conditions[0].Type)
	assert.Equal(t, "amount", rule.Conditions[0].Field)
	assert.Equal(t, float64(100), rule.Conditions[0].Value)
	assert.Equal(t, "http://example.com/hook", rule.Options["url"])
}

func TestRoutingReloader_ReplacesRuleSet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()

	insertRoutingRule(t, infra.PostgresDB, routing.Rule{
		ID: "r-1", EntityType: "*", Destination: "queue", Priority: 1, Enabled: true,
	})

	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	rules := routing.NewRuleSet(evaluator, createTestLogger())
	reloader := routing.NewReloader(routing.NewRepository(infra.PostgresDB), rules, config.ReloadConfig{IntervalSeconds: 60}, createTestLogger())

	require.NoError(t, reloader.Reload(ctx, true))
	assert.Len(t, rules.Rules(), 1)

	insertRoutingRule(t, infra.PostgresDB, routing.Rule{
		ID: "r-2", EntityType: "*", Destination: "webhook", Priority: 2, Enabled: true,
	})

	require.NoError(t, reloader.Reload(ctx, true))
	assert.Len(t, rules.Rules(), 2)
}

package compliance

import (
	"context"
	"time"

	"chronicle/internal/event"
)

// Check names referenced by rule configuration.
const (
	CheckDataRetention  = "data_retention"
	CheckAuditIntegrity = "audit_integrity"
	CheckChangeTracking = "change_tracking"
)

// RegisterBuiltinEvaluators wires the concrete check logic for the
// built-in check names.
func RegisterBuiltinEvaluators(m *Manager, retention RetentionResolver) {
	m.RegisterEvaluator(CheckDataRetention, EvaluatorFunc(
		func(ctx context.Context, rule event.ComplianceRule, evt event.Event) (bool, string) {
			if retention == nil {
				return false, "no retention manager configured"
			}
			policy, ok := retention.Resolve(evt)
			if !ok {
				return false, "no retention policy matches event"
			}
			if rule.RetentionHint > 0 && policy.RetentionPeriod < rule.RetentionHint {
				return false, "retention period below regulatory minimum"
			}
			return true, "retention policy " + policy.ID + " applies"
		}))

	m.RegisterEvaluator(CheckAuditIntegrity, EvaluatorFunc(
		func(ctx context.Context, rule event.ComplianceRule, evt event.Event) (bool, string) {
			if evt.ID == "" {
				return false, "event is missing an id"
			}
			if evt.Timestamp.IsZero() {
				return false, "event is missing a timestamp"
			}
			if evt.Source == "" {
				return false, "event is missing a source tag"
			}
			return true, ""
		}))

	m.RegisterEvaluator(CheckChangeTracking, EvaluatorFunc(
		func(ctx context.Context, rule event.ComplianceRule, evt event.Event) (bool, string) {
			if evt.EventType != event.TypeUpdated {
				return true, "change tracking only applies to updates"
			}
			if len(evt.PreviousValues) == 0 {
				return false, "updated event carries no previous values"
			}
			return true, ""
		}))
}

// RegionRules returns the default rule set for a compliance region.
// Regions not listed here contribute no rules.
func RegionRules(region string) []event.ComplianceRule {
	switch region {
	case "GDPR":
		return []event.ComplianceRule{
			{
				ID:            "gdpr-retention",
				Name:          "GDPR data retention",
				EntityType:    event.MatchAll,
				EventType:     event.MatchAll,
				Check:         CheckDataRetention,
				Regulations:   []string{"GDPR"},
				RetentionHint: 0,
			},
			{
				ID:          "gdpr-change-tracking",
				Name:        "GDPR change tracking",
				EntityType:  event.MatchAll,
				EventType:   string(event.TypeUpdated),
				Check:       CheckChangeTracking,
				Regulations: []string{"GDPR"},
			},
		}
	case "SOX":
		return []event.ComplianceRule{
			{
				ID:            "sox-audit-integrity",
				Name:          "SOX audit integrity",
				EntityType:    event.MatchAll,
				EventType:     event.MatchAll,
				Check:         CheckAuditIntegrity,
				Regulations:   []string{"SOX"},
				RetentionHint: 7 * 365 * 24 * time.Hour,
			},
		}
	case "HIPAA":
		return []event.ComplianceRule{
			{
				ID:            "hipaa-retention",
				Name:          "HIPAA data retention",
				EntityType:    event.MatchAll,
				EventType:     event.MatchAll,
				Check:         CheckDataRetention,
				Regulations:   []string{"HIPAA"},
				RetentionHint: 6 * 365 * 24 * time.Hour,
			},
		}
	default:
		return nil
	}
}

package routing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chronicle/internal/event"
	"chronicle/internal/logger"
	"chronicle/pkg/cel"
)

// RuleSet holds the configured routing rules and resolves the rules
// that apply to an event.
type RuleSet struct {
	mu        sync.RWMutex
	rules     []Rule
	evaluator *cel.Evaluator
	logger    logger.Logger
}

func NewRuleSet(evaluator *cel.Evaluator, log logger.Logger) *RuleSet {
	return &RuleSet{
		evaluator: evaluator,
		logger:    log,
	}
}

// Add registers a rule. Disabled rules are kept but never resolved.
func (rs *RuleSet) Add(rule Rule) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rules = append(rs.rules, rule)
}

// Replace swaps the whole rule set (used by the periodic reloader).
func (rs *RuleSet) Replace(rules []Rule) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rules = rules
}

// Rules returns a copy of the configured rules.
func (rs *RuleSet) Rules() []Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Resolve collects every enabled rule whose shape matches the event
// and whose conditions all hold. Results are ordered by descending
// priority (stable for ties); when two rules target the same
// destination only the highest-priority one survives.
func (rs *RuleSet) Resolve(ctx context.Context, evt event.Event) []Rule {
	rs.mu.RLock()
	rules := make([]Rule, len(rs.rules))
	copy(rules, rs.rules)
	rs.mu.RUnlock()

	var matched []Rule
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !rule.Matches(evt) {
			continue
		}
		if !rs.conditionsHold(ctx, rule, evt) {
			continue
		}
		matched = append(matched, rule)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})

	seen := make(map[string]struct{}, len(matched))
	deduped := matched[:0]
	for _, rule := range matched {
		if _, dup := seen[rule.Destination]; dup {
			rs.logger.DebugwCtx(ctx, "Skipping lower-priority duplicate rule",
				"rule_id", rule.ID,
				"destination", rule.Destination,
			)
			continue
		}
		seen[rule.Destination] = struct{}{}
		deduped = append(deduped, rule)
	}

	return deduped
}

func (rs *RuleSet) conditionsHold(ctx context.Context, rule Rule, evt event.Event) bool {
	for _, cond := range rule.Conditions {
		ok, err := rs.evaluateCondition(ctx, cond, evt)
		if err != nil {
			rs.logger.WarnwCtx(ctx, "Condition evaluation error, rule skipped",
				"rule_id", rule.ID,
				"condition_type", string(cond.Type),
				"error", err,
			)
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

func (rs *RuleSet) evaluateCondition(ctx context.Context, cond Condition, evt event.Event) (bool, error) {
	switch cond.Type {
	case ConditionTimeRange:
		if cond.Start != nil && evt.Timestamp.Before(*cond.Start) {
			return false, nil
		}
		if cond.End != nil && evt.Timestamp.After(*cond.End) {
			return false, nil
		}
		return true, nil
	case ConditionThreshold:
		return evaluateThreshold(cond, evt)
	case ConditionPattern:
		if cond.Pattern == "" {
			return true, nil
		}
		return rs.evaluator.EvaluatePredicate(ctx, cond.Pattern, evt)
	default:
		return false, fmt.Errorf("unknown condition type: %s", cond.Type)
	}
}

func evaluateThreshold(cond Condition, evt event.Event) (bool, error) {
	raw, ok := evt.Data[cond.Field]
	if !ok {
		return false, nil
	}

	got, ok := toFloat(raw)
	if !ok {
		return false, fmt.Errorf("field %s is not numeric", cond.Field)
	}

	switch cond.Operator {
	case "eq":
		return got == cond.Value, nil
	case "neq":
		return got != cond.Value, nil
	case "gt":
		return got > cond.Value, nil
	case "gte":
		return got >= cond.Value, nil
	case "lt":
		return got < cond.Value, nil
	case "lte":
		return got <= cond.Value, nil
	default:
		return false, fmt.Errorf("unknown threshold operator: %s", cond.Operator)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

package compliance

import (
	"context"
	"sync"
	"time"

	"chronicle/internal/event"
	"chronicle/internal/logger"
	"chronicle/pkg/metrics"
)

// Evaluator holds the pass/fail logic for one named compliance check.
// Every rule references a check by name; a rule whose check has no
// registered evaluator fails explicitly rather than passing silently.
type Evaluator interface {
	Evaluate(ctx context.Context, rule event.ComplianceRule, evt event.Event) (bool, string)
}

type EvaluatorFunc func(ctx context.Context, rule event.ComplianceRule, evt event.Event) (bool, string)

func (f EvaluatorFunc) Evaluate(ctx context.Context, rule event.ComplianceRule, evt event.Event) (bool, string) {
	return f(ctx, rule, evt)
}

// RetentionResolver is the slice of the retention manager the
// data-retention check needs.
type RetentionResolver interface {
	Resolve(evt event.Event) (event.RetentionPolicy, bool)
}

// Manager evaluates configured compliance rules against events and
// accumulates the results.
type Manager struct {
	mu         sync.RWMutex
	rules      []event.ComplianceRule
	evaluators map[string]Evaluator
	results    []event.ComplianceCheckResult
	regions    []string
	logger     logger.Logger
}

func NewManager(rules []event.ComplianceRule, regions []string, log logger.Logger) *Manager {
	m := &Manager{
		rules:      rules,
		evaluators: make(map[string]Evaluator),
		regions:    regions,
		logger:     log,
	}
	return m
}

// RegisterEvaluator binds check logic to a check name.
func (m *Manager) RegisterEvaluator(check string, eval Evaluator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluators[check] = eval
}

// SetRules replaces the configured rule set (used by the admin API and
// the periodic reloader).
func (m *Manager) SetRules(rules []event.ComplianceRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = rules
}

// AddRule appends one rule to the configured set.
func (m *Manager) AddRule(rule event.ComplianceRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

// Rules returns a copy of the configured rule set.
func (m *Manager) Rules() []event.ComplianceRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]event.ComplianceRule, len(m.rules))
	copy(out, m.rules)
	return out
}

// CheckCompliance evaluates every matching rule against the event and
// records one result per (event, rule).
func (m *Manager) CheckCompliance(ctx context.Context, evt event.Event) []event.ComplianceCheckResult {
	m.mu.RLock()
	rules := make([]event.ComplianceRule, len(m.rules))
	copy(rules, m.rules)
	evaluators := make(map[string]Evaluator, len(m.evaluators))
	for name, eval := range m.evaluators {
		evaluators[name] = eval
	}
	m.mu.RUnlock()

	var results []event.ComplianceCheckResult
	for _, rule := range rules {
		if !rule.Matches(evt) {
			continue
		}

		result := event.ComplianceCheckResult{
			RuleID:    rule.ID,
			RuleName:  rule.Name,
			EventID:   evt.ID,
			CheckedAt: time.Now().UTC(),
		}

		eval, ok := evaluators[rule.Check]
		if !ok {
			result.Passed = false
			result.Detail = "no evaluator registered for check: " + rule.Check
			m.logger.WarnwCtx(ctx, "Compliance rule has no evaluator",
				"rule_id", rule.ID,
				"check", rule.Check,
			)
		} else {
			result.Passed, result.Detail = eval.Evaluate(ctx, rule, evt)
		}

		status := "failed"
		if result.Passed {
			status = "passed"
		}
		metrics.ComplianceChecksTotal.WithLabelValues(rule.ID, status).Inc()

		results = append(results, result)
	}

	m.mu.Lock()
	m.results = append(m.results, results...)
	m.mu.Unlock()

	return results
}

// Report aggregates all recorded results.
func (m *Manager) Report() event.ComplianceReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := event.ComplianceReport{
		GeneratedAt: time.Now().UTC(),
		Regions:     m.regions,
		Results:     make([]event.ComplianceCheckResult, len(m.results)),
	}
	copy(report.Results, m.results)

	for _, r := range report.Results {
		report.Total++
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report
}

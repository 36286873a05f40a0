package retention

import (
	"sync"
	"time"

	"chronicle/internal/config"
	"chronicle/internal/event"
	"chronicle/pkg/metrics"
)

// DefaultPolicy applies when no configured policy matches an event.
var DefaultPolicy = event.RetentionPolicy{
	ID:              "default",
	EntityType:      event.MatchAll,
	RetentionPeriod: 365 * 24 * time.Hour,
	DisposalAction:  event.DisposalDelete,
}

// Manager assigns a retention policy to each event: first matching
// policy in declaration order wins, otherwise the default. Resolution
// is deterministic; only the computed archive date depends on now().
type Manager struct {
	mu       sync.RWMutex
	policies []event.RetentionPolicy

	statsMu   sync.Mutex
	total     int64
	byAction  map[string]int64
	byPolicy  map[string]int64
	defaulted int64

	now func() time.Time
}

func NewManager(policies []event.RetentionPolicy) *Manager {
	return &Manager{
		policies: policies,
		byAction: make(map[string]int64),
		byPolicy: make(map[string]int64),
		now:      time.Now,
	}
}

// PoliciesFromConfig converts the configuration surface into the
// ordered policy list.
func PoliciesFromConfig(cfgs []config.RetentionPolicyConfig) []event.RetentionPolicy {
	policies := make([]event.RetentionPolicy, 0, len(cfgs))
	for _, c := range cfgs {
		policies = append(policies, event.RetentionPolicy{
			ID:              c.ID,
			EntityType:      c.EntityType,
			EventType:       c.EventType,
			RetentionPeriod: c.RetentionPeriod,
			DisposalAction:  event.DisposalAction(c.DisposalAction),
		})
	}
	return policies
}

// AddPolicy appends a policy to the end of the priority order.
func (m *Manager) AddPolicy(p event.RetentionPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = append(m.policies, p)
}

// Policies returns a copy of the ordered policy list.
func (m *Manager) Policies() []event.RetentionPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]event.RetentionPolicy, len(m.policies))
	copy(out, m.policies)
	return out
}

// Resolve returns the policy that governs the event, and whether a
// configured (non-default) policy matched.
func (m *Manager) Resolve(evt event.Event) (event.RetentionPolicy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.policies {
		if p.Matches(evt) {
			return p, true
		}
	}
	return DefaultPolicy, false
}

// Apply resolves the policy for the event and computes its disposal
// date.
func (m *Manager) Apply(evt event.Event) event.RetentionInfo {
	policy, matched := m.Resolve(evt)

	info := event.RetentionInfo{
		EventID:     evt.ID,
		PolicyID:    policy.ID,
		Period:      policy.RetentionPeriod,
		Action:      policy.DisposalAction,
		ArchiveDate: m.now().Add(policy.RetentionPeriod),
	}

	m.statsMu.Lock()
	m.total++
	m.byAction[string(policy.DisposalAction)]++
	m.byPolicy[policy.ID]++
	if !matched {
		m.defaulted++
	}
	m.statsMu.Unlock()

	metrics.RetentionAssignmentsTotal.WithLabelValues(policy.ID, string(policy.DisposalAction)).Inc()

	return info
}

// Stats returns a snapshot of policy assignment counters.
func (m *Manager) Stats() event.RetentionStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	stats := event.RetentionStats{
		Total:     m.total,
		Defaulted: m.defaulted,
		ByAction:  make(map[string]int64, len(m.byAction)),
		ByPolicy:  make(map[string]int64, len(m.byPolicy)),
	}
	for k, v := range m.byAction {
		stats.ByAction[k] = v
	}
	for k, v := range m.byPolicy {
		stats.ByPolicy[k] = v
	}
	return stats
}

package sourcing

import (
	"context"
	"sync"
	"time"

	"chronicle/internal/audit"
	"chronicle/internal/compliance"
	"chronicle/internal/event"
	"chronicle/internal/eventlog"
	"chronicle/internal/logger"
	"chronicle/internal/query"
	"chronicle/internal/retention"
	"chronicle/pkg/errors"
	"chronicle/pkg/metrics"
	"chronicle/pkg/tracing"
)

// Options is the construction-time configuration surface of the facade.
type Options struct {
	MaxEvents         int
	SnapshotInterval  int
	EnableAuditTrail  bool
	EnableCompliance  bool
	EnableRetention   bool
	ComplianceRegions []string
	RetentionPolicies []event.RetentionPolicy
	GapWarnThreshold  time.Duration
}

func DefaultOptions() Options {
	return Options{
		EnableAuditTrail: true,
		EnableCompliance: true,
		EnableRetention:  true,
		GapWarnThreshold: time.Hour,
	}
}

// AppendResult carries the appended event id together with every
// derivation produced during the append.
type AppendResult struct {
	EventID           string                        `json:"event_id"`
	AuditEntry        *event.AuditEntry             `json:"audit_entry,omitempty"`
	ComplianceResults []event.ComplianceCheckResult `json:"compliance_results,omitempty"`
	RetentionInfo     *event.RetentionInfo          `json:"retention_info,omitempty"`
	DerivationErrors  []string                      `json:"derivation_errors,omitempty"`
}

// RebuildResult is the replayed state of one entity plus its full
// audit trail.
type RebuildResult struct {
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	State      map[string]interface{} `json:"state"`
	Status     string                 `json:"status"`
	Deleted    bool                   `json:"deleted"`
	EventCount int                    `json:"event_count"`
	Trail      event.AuditTrail       `json:"audit_trail"`
}

// Service composes the event log with the audit, compliance and
// retention managers behind the append/rebuild/validate/export surface.
type Service struct {
	store      eventlog.Store
	auditMgr   *audit.Manager
	compliance *compliance.Manager
	retention  *retention.Manager
	guard      *eventlog.DuplicateGuard
	opts       Options
	logger     logger.Logger

	// Appends are serialized so per-entity event ordering in the log is
	// preserved; reordering within one entity corrupts replay.
	appendMu sync.Mutex
}

func NewService(store eventlog.Store, auditMgr *audit.Manager, complianceMgr *compliance.Manager, retentionMgr *retention.Manager, opts Options, log logger.Logger) *Service {
	if opts.GapWarnThreshold <= 0 {
		opts.GapWarnThreshold = time.Hour
	}
	return &Service{
		store:      store,
		auditMgr:   auditMgr,
		compliance: complianceMgr,
		retention:  retentionMgr,
		opts:       opts,
		logger:     log,
	}
}

// SetDuplicateGuard enables the ingestion-time duplicate id check.
func (s *Service) SetDuplicateGuard(guard *eventlog.DuplicateGuard) {
	s.guard = guard
}

// Retention exposes the retention manager for stats consumers.
func (s *Service) Retention() *retention.Manager {
	return s.retention
}

// Compliance exposes the compliance manager for report consumers.
func (s *Service) Compliance() *compliance.Manager {
	return s.compliance
}

// Audit exposes the audit manager for trail consumers.
func (s *Service) Audit() *audit.Manager {
	return s.auditMgr
}

// AppendEventWithAudit validates and appends the event, then derives
// the audit entry, compliance results and retention info. A derivation
// failure never loses the append; it is reported alongside the result.
func (s *Service) AppendEventWithAudit(ctx context.Context, evt event.Event) (AppendResult, error) {
	ctx, span := tracing.GetTracer("sourcing").Start(ctx, "sourcing.append_event")
	defer span.End()

	start := time.Now()

	if err := evt.Validate(); err != nil {
		metrics.EventsRejectedTotal.WithLabelValues("malformed").Inc()
		return AppendResult{}, err
	}

	if s.guard != nil {
		firstSeen, _ := s.guard.FirstSeen(ctx, evt.ID)
		if !firstSeen {
			metrics.EventsRejectedTotal.WithLabelValues("duplicate").Inc()
			return AppendResult{}, errors.ErrDuplicateEvent.WithDetail("event_id", evt.ID)
		}
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if err := s.store.Append(ctx, evt); err != nil {
		if errors.IsConflict(err) {
			metrics.EventsRejectedTotal.WithLabelValues("duplicate").Inc()
		} else {
			metrics.EventsRejectedTotal.WithLabelValues("store_error").Inc()
		}
		return AppendResult{}, err
	}

	metrics.EventsAppendedTotal.WithLabelValues(evt.EntityType, string(evt.EventType)).Inc()

	result := AppendResult{EventID: evt.ID}

	if s.opts.EnableAuditTrail {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.recordDerivationFailure(ctx, &result, "audit", errors.RecoverPanic(r))
				}
			}()
			entry := s.auditMgr.CreateEntry(evt)
			result.AuditEntry = &entry
		}()
	}

	if s.opts.EnableCompliance {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.recordDerivationFailure(ctx, &result, "compliance", errors.RecoverPanic(r))
				}
			}()
			result.ComplianceResults = s.compliance.CheckCompliance(ctx, evt)
		}()
	}

	if s.opts.EnableRetention {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.recordDerivationFailure(ctx, &result, "retention", errors.RecoverPanic(r))
				}
			}()
			info := s.retention.Apply(evt)
			result.RetentionInfo = &info
		}()
	}

	metrics.ObserveAppendDuration(time.Since(start))

	return result, nil
}

func (s *Service) recordDerivationFailure(ctx context.Context, result *AppendResult, derivation string, err error) {
	metrics.DerivationFailuresTotal.WithLabelValues(derivation).Inc()
	result.DerivationErrors = append(result.DerivationErrors, derivation+": "+err.Error())
	s.logger.ErrorwCtx(ctx, "Derivation failed during append; event kept",
		"derivation", derivation,
		"event_id", result.EventID,
		"error", err,
	)
}

// RebuildEntityWithAudit replays the entity's events in timestamp
// order and returns the folded state plus the full audit trail. Replay
// is pure; replaying the same prefix twice yields the same state.
func (s *Service) RebuildEntityWithAudit(ctx context.Context, entityType, entityID string) (RebuildResult, error) {
	ctx, span := tracing.GetTracer("sourcing").Start(ctx, "sourcing.rebuild_entity")
	defer span.End()

	events, err := s.store.ForEntity(ctx, entityType, entityID)
	if err != nil {
		return RebuildResult{}, err
	}

	result := RebuildResult{
		EntityType: entityType,
		EntityID:   entityID,
		State:      make(map[string]interface{}),
		EventCount: len(events),
	}

	for _, evt := range events {
		foldEvent(&result, evt)
		metrics.ReplayEventsTotal.Inc()
	}

	result.Trail = s.auditMgr.Trail(entityType, entityID)
	return result, nil
}

func foldEvent(result *RebuildResult, evt event.Event) {
	switch evt.EventType {
	case event.TypeCreated:
		result.State = make(map[string]interface{}, len(evt.Data))
		for k, v := range evt.Data {
			result.State[k] = v
		}
		result.Status = "active"
		result.Deleted = false
	case event.TypeUpdated:
		for k, v := range evt.Data {
			result.State[k] = v
		}
	case event.TypeDeleted:
		result.Deleted = true
		result.Status = "deleted"
	case event.TypeCompleted:
		result.Status = "completed"
	case event.TypeCancelled:
		result.Status = "cancelled"
	}
}

// ValidateAuditTrail checks trail integrity: adjacent-event gaps above
// the threshold are warnings; an event/entry count mismatch is a
// structural error.
func (s *Service) ValidateAuditTrail(ctx context.Context, entityType, entityID string) (event.TrailValidation, error) {
	events, err := s.store.ForEntity(ctx, entityType, entityID)
	if err != nil {
		return event.TrailValidation{}, err
	}

	validation := event.TrailValidation{
		EntityType: entityType,
		EntityID:   entityID,
		EventCount: len(events),
		EntryCount: s.auditMgr.EntryCount(entityType, entityID),
		Valid:      true,
	}

	for i := 1; i < len(events); i++ {
		gap := events[i].Timestamp.Sub(events[i-1].Timestamp)
		if gap > s.opts.GapWarnThreshold {
			validation.Findings = append(validation.Findings, event.TrailFinding{
				Severity: "warning",
				Code:     event.FindingSequenceGap,
				Message: "gap of " + gap.String() + " between events " +
					events[i-1].ID + " and " + events[i].ID,
			})
		}
	}

	if validation.EventCount != validation.EntryCount {
		validation.Valid = false
		validation.Findings = append(validation.Findings, event.TrailFinding{
			Severity: "error",
			Code:     event.FindingCountMismatch,
			Message:  "event count does not match audit entry count",
		})
	}

	return validation, nil
}

// ExportAuditTrail serializes the entity's audit trail in the given
// format.
func (s *Service) ExportAuditTrail(ctx context.Context, entityType, entityID string, format audit.ExportFormat) ([]byte, error) {
	_, span := tracing.GetTracer("sourcing").Start(ctx, "sourcing.export_audit_trail")
	defer span.End()

	trail := s.auditMgr.Trail(entityType, entityID)
	return audit.Export(trail, format)
}

// Query runs a filtered, sorted, paginated query over a snapshot of
// the event log.
func (s *Service) Query(ctx context.Context, q query.Query) (query.Result, error) {
	events, err := s.store.All(ctx)
	if err != nil {
		return query.Result{}, err
	}
	return query.Execute(q, events)
}

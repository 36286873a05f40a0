package routing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"chronicle/internal/config"
	"chronicle/internal/logger"
	"chronicle/pkg/metrics"
)

// Repository loads routing rules from durable storage.
type Repository interface {
	GetActiveRules(ctx context.Context) ([]Rule, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetActiveRules(ctx context.Context) ([]Rule, error) {
	query := `
		SELECT id, entity_type, event_type, destination, conditions, priority, options, enabled, created_at, updated_at
		FROM routing_rules
		WHERE enabled = true
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var (
			rule          Rule
			rawConditions []byte
			rawOptions    []byte
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.EntityType,
			&rule.EventType,
			&rule.Destination,
			&rawConditions,
			&rule.Priority,
			&rawOptions,
			&rule.Enabled,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if len(rawConditions) > 0 {
			if err := json.Unmarshal(rawConditions, &rule.Conditions); err != nil {
				return nil, fmt.Errorf("failed to decode conditions for rule %s: %w", rule.ID, err)
			}
		}
		if len(rawOptions) > 0 {
			if err := json.Unmarshal(rawOptions, &rule.Options); err != nil {
				return nil, fmt.Errorf("failed to decode options for rule %s: %w", rule.ID, err)
			}
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rules, nil
}

// Reloader periodically refreshes a rule set from the repository.
// Startup jitter spreads reload bursts across replicas hitting the
// same database.
type Reloader struct {
	repo   Repository
	rules  *RuleSet
	cfg    config.ReloadConfig
	logger logger.Logger
}

func NewReloader(repo Repository, rules *RuleSet, cfg config.ReloadConfig, log logger.Logger) *Reloader {
	return &Reloader{
		repo:   repo,
		rules:  rules,
		cfg:    cfg,
		logger: log,
	}
}

func (rl *Reloader) Reload(ctx context.Context, skipJitter ...bool) error {
	shouldSkipJitter := len(skipJitter) > 0 && skipJitter[0]

	if err := rl.applyJitter(ctx, shouldSkipJitter); err != nil {
		return err
	}

	rules, err := rl.repo.GetActiveRules(ctx)
	if err != nil {
		return err
	}

	rl.rules.Replace(rules)
	metrics.SetRoutingActiveRules(len(rules))
	rl.logger.InfowCtx(ctx, "Successfully reloaded routing rules",
		"rules_count", len(rules),
	)
	return nil
}

func (rl *Reloader) applyJitter(ctx context.Context, skipJitter bool) error {
	if skipJitter || rl.cfg.JitterMaxMilliseconds == 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(rl.cfg.JitterMaxMilliseconds)) * time.Millisecond
	rl.logger.DebugwCtx(ctx, "Reload scheduled with jitter",
		"jitter_ms", jitter.Milliseconds(),
	)

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rl *Reloader) Start(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(rl.cfg.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	if err := rl.Reload(ctx); err != nil {
		rl.logger.ErrorwCtx(ctx, "Failed to reload routing rules",
			"error", err,
		)
	}

	for {
		select {
		case <-ticker.C:
			if err := rl.Reload(ctx); err != nil {
				rl.logger.ErrorwCtx(ctx, "Failed to reload routing rules",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

package compliance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"chronicle/internal/event"
)

// Repository loads configured compliance rules.
type Repository interface {
	GetActiveRules(ctx context.Context) ([]event.ComplianceRule, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetActiveRules(ctx context.Context) ([]event.ComplianceRule, error) {
	query := `
		SELECT id, name, entity_type, event_type, check_name, regulations, retention_hint_seconds
		FROM compliance_rules
		WHERE enabled = true
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query compliance rules: %w", err)
	}
	defer rows.Close()

	var rules []event.ComplianceRule
	for rows.Next() {
		var rule event.ComplianceRule
		var regulations pq.StringArray
		var retentionHintSeconds int64
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.EntityType,
			&rule.EventType,
			&rule.Check,
			&regulations,
			&retentionHintSeconds,
		); err != nil {
			return nil, fmt.Errorf("failed to scan compliance rule: %w", err)
		}
		rule.Regulations = regulations
		rule.RetentionHint = time.Duration(retentionHintSeconds) * time.Second
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rules, nil
}

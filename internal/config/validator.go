package config

import (
	"fmt"
	"time"

	"chronicle/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateKafka(cfg.Broker.Kafka); err != nil {
		errs = append(errs, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errs = append(errs, err)
	}

	if err := validateSourcing(&cfg.Sourcing); err != nil {
		errs = append(errs, err)
	}

	if err := validateRouting(&cfg.Routing); err != nil {
		errs = append(errs, err)
	}

	if err := validateRetention(cfg.Retention); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" {
		if cfg.Postgres.Port < 1 || cfg.Postgres.Port > 65535 {
			return &ValidationError{
				Field:   "database.postgres.port",
				Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Postgres.Port),
			}
		}
		if cfg.Postgres.User == "" {
			return &ValidationError{
				Field:   "database.postgres.user",
				Message: "PostgreSQL user is required",
			}
		}
		if cfg.Postgres.DBName == "" {
			return &ValidationError{
				Field:   "database.postgres.dbname",
				Message: "PostgreSQL database name is required",
			}
		}
	}

	if cfg.Redis.Host != "" {
		if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
			return &ValidationError{
				Field:   "database.redis.port",
				Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Redis.Port),
			}
		}
	}

	return nil
}

func validateSourcing(cfg *SourcingConfig) error {
	if cfg.MaxEvents < 0 {
		return &ValidationError{
			Field:   "sourcing.max_events",
			Message: "max_events must be non-negative (0 means unbounded)",
		}
	}

	switch cfg.EventLogBackend {
	case "", "memory", "mongodb":
	default:
		return &ValidationError{
			Field:   "sourcing.event_log_backend",
			Message: fmt.Sprintf("unknown backend: %s (supported: memory, mongodb)", cfg.EventLogBackend),
		}
	}

	switch cfg.Dedup.OnRedisError {
	case "", constants.FallbackAllow, constants.FallbackDeny:
	default:
		return &ValidationError{
			Field:   "sourcing.dedup.on_redis_error",
			Message: fmt.Sprintf("unknown fallback: %s (supported: allow, deny)", cfg.Dedup.OnRedisError),
		}
	}

	if cfg.GapWarnThreshold == 0 {
		cfg.GapWarnThreshold = time.Hour
	}

	return nil
}

func validateRouting(cfg *RoutingConfig) error {
	switch cfg.Fallback.OnError {
	case "", constants.FallbackAllow, constants.FallbackDeny, constants.FallbackError:
	default:
		return &ValidationError{
			Field:   "routing.fallback.on_error",
			Message: fmt.Sprintf("unknown fallback: %s (supported: allow, deny, error)", cfg.Fallback.OnError),
		}
	}

	if cfg.DispatchTimeout == 0 {
		cfg.DispatchTimeout = constants.DefaultDispatchTimeout
	}

	return nil
}

func validateRetention(cfg RetentionConfig) error {
	for i, p := range cfg.Policies {
		if p.EntityType == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("retention.policies[%d].entity_type", i),
				Message: "entity_type is required (use * for wildcard)",
			}
		}
		if p.RetentionPeriod <= 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("retention.policies[%d].retention_period", i),
				Message: "retention_period must be positive",
			}
		}
		switch p.DisposalAction {
		case "archive", "delete", "anonymize":
		default:
			return &ValidationError{
				Field:   fmt.Sprintf("retention.policies[%d].disposal_action", i),
				Message: fmt.Sprintf("unknown disposal action: %s", p.DisposalAction),
			}
		}
	}

	return nil
}

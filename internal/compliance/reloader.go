package compliance

import (
	"context"
	"math/rand"
	"time"

	"chronicle/internal/config"
	"chronicle/internal/logger"
)

// Reloader periodically refreshes the manager's rules from the
// repository so rule edits land without a restart.
type Reloader struct {
	repo    Repository
	manager *Manager
	cfg     config.ReloadConfig
	logger  logger.Logger
}

func NewReloader(repo Repository, manager *Manager, cfg config.ReloadConfig, log logger.Logger) *Reloader {
	return &Reloader{
		repo:    repo,
		manager: manager,
		cfg:     cfg,
		logger:  log,
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

	rl.manager.SetRules(rules)
	rl.logger.InfowCtx(ctx, "Successfully reloaded compliance rules",
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
		rl.logger.ErrorwCtx(ctx, "Failed to reload compliance rules",
			"error", err,
		)
	}

	for {
		select {
		case <-ticker.C:
			if err := rl.Reload(ctx); err != nil {
				rl.logger.ErrorwCtx(ctx, "Failed to reload compliance rules",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

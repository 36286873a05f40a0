package routing

import (
	"context"
	"sync"

	"chronicle/internal/constants"
	"chronicle/internal/event"
	"chronicle/internal/logger"
	"chronicle/pkg/cel"
	"chronicle/pkg/metrics"
)

// Well-known chain names. The global chain sees every event; entity
// and destination chains are consulted when registered.
const (
	ChainGlobal            = "global"
	ChainEntityPrefix      = "entity-"
	ChainDestinationPrefix = "destination-"
)

type chainErrorStatus int

const (
	chainErrorDeny chainErrorStatus = iota
	chainErrorSkip
)

// ChainSet holds the registered filter chains.
type ChainSet struct {
	mu        sync.RWMutex
	chains    map[string]FilterChain
	evaluator *cel.Evaluator
	onError   string
	logger    logger.Logger
}

func NewChainSet(evaluator *cel.Evaluator, onError string, log logger.Logger) *ChainSet {
	return &ChainSet{
		chains:    make(map[string]FilterChain),
		evaluator: evaluator,
		onError:   onError,
		logger:    log,
	}
}

// Register adds or replaces a chain under its name.
func (cs *ChainSet) Register(chain FilterChain) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.chains[chain.Name] = chain
}

// Get returns the chain and whether one is registered under the name.
func (cs *ChainSet) Get(name string) (FilterChain, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	chain, ok := cs.chains[name]
	return chain, ok
}

// Names lists registered chain names.
func (cs *ChainSet) Names() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	names := make([]string, 0, len(cs.chains))
	for name := range cs.chains {
		names = append(names, name)
	}
	return names
}

// Passes evaluates the named chain against the event. An unregistered
// chain passes. Filters are ANDed and evaluation short-circuits on the
// first failure.
func (cs *ChainSet) Passes(ctx context.Context, name string, evt event.Event) bool {
	chain, ok := cs.Get(name)
	if !ok {
		return true
	}

	for _, filter := range chain.Filters {
		ok, err := cs.passesFilter(ctx, filter, evt)
		if err != nil {
			if cs.handleFilterError(ctx, name, filter, err) == chainErrorDeny {
				metrics.FilterEvaluationsTotal.WithLabelValues(name, "denied").Inc()
				return false
			}
			continue
		}
		if !ok {
			cs.logger.DebugwCtx(ctx, "Filter rejected event",
				"chain", name,
				"filter", filter.Name,
				"event_id", evt.ID,
			)
			metrics.FilterEvaluationsTotal.WithLabelValues(name, "filtered").Inc()
			return false
		}
	}

	metrics.FilterEvaluationsTotal.WithLabelValues(name, "passed").Inc()
	return true
}

func (cs *ChainSet) passesFilter(ctx context.Context, filter EventFilter, evt event.Event) (bool, error) {
	if filter.EntityType != "" && filter.EntityType != event.MatchAll && filter.EntityType != evt.EntityType {
		return false, nil
	}
	if filter.EventType != "" && filter.EventType != event.MatchAll && filter.EventType != string(evt.EventType) {
		return false, nil
	}
	if filter.After != nil && evt.Timestamp.Before(*filter.After) {
		return false, nil
	}
	if filter.Before != nil && evt.Timestamp.After(*filter.Before) {
		return false, nil
	}
	if filter.Expression != "" {
		return cs.evaluator.EvaluatePredicate(ctx, filter.Expression, evt)
	}
	return true, nil
}

func (cs *ChainSet) handleFilterError(ctx context.Context, chain string, filter EventFilter, err error) chainErrorStatus {
	cs.logger.ErrorwCtx(ctx, "Filter evaluation error",
		"chain", chain,
		"filter", filter.Name,
		"error", err,
	)

	switch cs.onError {
	case constants.FallbackAllow:
		metrics.FallbackUsageTotal.WithLabelValues("routing", "allow_on_error", "evaluation_error").Inc()
		return chainErrorSkip
	case constants.FallbackDeny:
		metrics.FallbackUsageTotal.WithLabelValues("routing", "deny_on_error", "evaluation_error").Inc()
		return chainErrorDeny
	default:
		return chainErrorSkip
	}
}

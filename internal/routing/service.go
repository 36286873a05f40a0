package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chronicle/internal/constants"
	"chronicle/internal/destination"
	"chronicle/internal/event"
	"chronicle/internal/logger"
	"chronicle/pkg/errors"
	"chronicle/pkg/metrics"
	"chronicle/pkg/tracing"
)

// Router runs an event through the filter stages, resolves applicable
// rules and fans out to their destinations concurrently. Dispatches to
// different destinations are independent; one failure never blocks or
// cancels the others.
type Router struct {
	chains          *ChainSet
	rules           *RuleSet
	destinations    *destination.Registry
	dispatchTimeout time.Duration
	stats           statsRecorder
	logger          logger.Logger
}

func NewRouter(chains *ChainSet, rules *RuleSet, destinations *destination.Registry, dispatchTimeout time.Duration, log logger.Logger) *Router {
	if dispatchTimeout <= 0 {
		dispatchTimeout = constants.DefaultDispatchTimeout
	}
	return &Router{
		chains:          chains,
		rules:           rules,
		destinations:    destinations,
		dispatchTimeout: dispatchTimeout,
		logger:          log,
	}
}

// Chains exposes the filter chain set for registration.
func (r *Router) Chains() *ChainSet { return r.chains }

// Rules exposes the rule set for registration and reload.
func (r *Router) Rules() *RuleSet { return r.rules }

// Stats returns a snapshot of the router's aggregate counters.
func (r *Router) Stats() Stats { return r.stats.snapshot() }

// Route runs the full pipeline for one event: the global chain, the
// entity chain for its type, rule resolution, then per-rule
// destination chains and dispatch. Every event terminates in exactly
// one of routed, filtered or no-routes.
func (r *Router) Route(ctx context.Context, evt event.Event) RouteResult {
	tracer := tracing.GetTracer("routing")
	ctx, span := tracer.Start(ctx, "router.route", trace.WithAttributes(
		attribute.String("event.id", evt.ID),
		attribute.String("event.entity_type", evt.EntityType),
		attribute.String("event.type", string(evt.EventType)),
	))
	defer span.End()

	start := time.Now()
	result := r.route(ctx, evt)
	elapsed := time.Since(start)
	result.LatencyMS = elapsed.Milliseconds()

	r.stats.recordEvent(elapsed)
	metrics.ObserveRoutingDuration(elapsed)

	switch {
	case result.Reason == constants.ReasonFilteredPreRouting:
		r.stats.recordFiltered()
		metrics.RoutingEventsTotal.WithLabelValues("filtered").Inc()
	case result.Reason == constants.ReasonNoApplicableRoutes:
		metrics.RoutingEventsTotal.WithLabelValues("no_routes").Inc()
	case result.Success:
		r.stats.recordRouted()
		metrics.RoutingEventsTotal.WithLabelValues("routed").Inc()
	default:
		r.stats.recordFailedRoute()
		metrics.RoutingEventsTotal.WithLabelValues("failed").Inc()
	}

	span.SetAttributes(
		attribute.Bool("routing.success", result.Success),
		attribute.String("routing.reason", result.Reason),
		attribute.Int("routing.destinations", len(result.Results)),
	)

	return result
}

func (r *Router) route(ctx context.Context, evt event.Event) RouteResult {
	if !r.chains.Passes(ctx, ChainGlobal, evt) {
		return RouteResult{EventID: evt.ID, Reason: constants.ReasonFilteredPreRouting}
	}
	if !r.chains.Passes(ctx, ChainEntityPrefix+evt.EntityType, evt) {
		return RouteResult{EventID: evt.ID, Reason: constants.ReasonFilteredPreRouting}
	}

	rules := r.rules.Resolve(ctx, evt)
	if len(rules) == 0 {
		return RouteResult{EventID: evt.ID, Reason: constants.ReasonNoApplicableRoutes}
	}

	results := r.dispatchAll(ctx, evt, rules)

	anySucceeded := false
	for _, dr := range results {
		if dr.Success {
			anySucceeded = true
			break
		}
	}

	return RouteResult{
		EventID: evt.ID,
		Success: anySucceeded,
		Results: results,
	}
}

// dispatchAll dispatches the event to every resolved rule's
// destination in parallel. Results come back in rule priority order
// regardless of completion order.
func (r *Router) dispatchAll(ctx context.Context, evt event.Event, rules []Rule) []DestinationResult {
	results := make([]DestinationResult, len(rules))

	var wg sync.WaitGroup
	for i, rule := range rules {
		wg.Add(1)
		go func(i int, rule Rule) {
			defer wg.Done()
			results[i] = r.dispatch(ctx, evt, rule)
		}(i, rule)
	}
	wg.Wait()

	return results
}

func (r *Router) dispatch(ctx context.Context, evt event.Event, rule Rule) DestinationResult {
	out := DestinationResult{Destination: rule.Destination, RuleID: rule.ID}

	if !r.chains.Passes(ctx, ChainDestinationPrefix+rule.Destination, evt) {
		out.Filtered = true
		out.Error = "filtered by destination chain"
		return out
	}

	handler, ok := r.destinations.Get(rule.Destination)
	if !ok {
		r.logger.ErrorwCtx(ctx, "No handler registered for destination",
			"destination", rule.Destination,
			"rule_id", rule.ID,
		)
		out.Error = errors.ErrUnknownDestination.WithDetail("message", fmt.Sprintf("unknown destination: %s", rule.Destination)).Error()
		metrics.IncDestinationDelivery(rule.Destination, "unknown")
		return out
	}

	payload := evt
	if rule.Transform != nil {
		payload = rule.Transform(evt)
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, r.dispatchTimeout)
	defer cancel()

	start := time.Now()
	res := r.deliver(dispatchCtx, handler, payload, rule.Options)
	metrics.ObserveDestinationDuration(rule.Destination, time.Since(start))

	if dispatchCtx.Err() == context.DeadlineExceeded && !res.Success {
		out.Error = fmt.Sprintf("dispatch to %s timed out after %s", rule.Destination, r.dispatchTimeout)
		metrics.IncDestinationDelivery(rule.Destination, "timeout")
		return out
	}

	if res.Err != nil {
		out.Error = res.Err.Error()
		metrics.IncDestinationDelivery(rule.Destination, "error")
		return out
	}

	out.Success = true
	out.MessageID = res.MessageID
	metrics.IncDestinationDelivery(rule.Destination, "success")
	return out
}

// deliver isolates handler panics so one broken destination cannot
// take down the fan-out.
func (r *Router) deliver(ctx context.Context, handler destination.Handler, evt event.Event, options map[string]interface{}) (res destination.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorwCtx(ctx, "Destination handler panicked",
				"destination", handler.Name(),
				"panic", rec,
			)
			res = destination.Result{Err: fmt.Errorf("handler panic: %v", rec)}
		}
	}()
	return handler.Deliver(ctx, evt, options)
}

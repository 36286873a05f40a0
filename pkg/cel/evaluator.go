package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"chronicle/internal/event"
)

// Evaluator compiles and runs CEL expressions against events. It backs
// the custom predicates of event filters and the pattern conditions of
// routing rules.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("entity_type", cel.StringType),
		cel.Variable("entity_id", cel.StringType),
		cel.Variable("event_type", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("timestamp", cel.TimestampType),
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("previous", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

// ValidatePredicate additionally checks that the expression yields bool.
func (e *Evaluator) ValidatePredicate(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("predicate expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// EvaluatePredicate runs a boolean expression against the event.
func (e *Evaluator) EvaluatePredicate(ctx context.Context, expression string, evt event.Event) (bool, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return false, fmt.Errorf("predicate expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	result, _, err := program.ContextEval(ctx, e.eventVars(evt))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func (e *Evaluator) eventVars(evt event.Event) map[string]interface{} {
	data := evt.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	previous := evt.PreviousValues
	if previous == nil {
		previous = map[string]interface{}{}
	}
	return map[string]interface{}{
		"id":          evt.ID,
		"entity_type": evt.EntityType,
		"entity_id":   evt.EntityID,
		"event_type":  string(evt.EventType),
		"source":      evt.Source,
		"timestamp":   evt.Timestamp,
		"data":        data,
		"previous":    previous,
	}
}

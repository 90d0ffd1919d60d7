package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// ConditionInput holds the meeting attributes exposed to advisory
// condition expressions.
type ConditionInput struct {
	PlanType        string
	MeetingTypeCode string
	MeetingStatus   string
	ConsentStatus   string
	ScheduledAt     interface{}
	EvidenceKeys    []string
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("plan_type", cel.StringType),
		cel.Variable("meeting_type_code", cel.StringType),
		cel.Variable("meeting_status", cel.StringType),
		cel.Variable("consent_status", cel.StringType),
		cel.Variable("scheduled_at", cel.TimestampType),
		cel.Variable("evidence_keys", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateConditionExpression compiles an expression against the condition
// environment and requires a boolean result type.
func (e *Evaluator) ValidateConditionExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("condition expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// EvaluateCondition evaluates an advisory condition against a meeting.
// The expression must have been validated when the rule was stored.
func (e *Evaluator) EvaluateCondition(ctx context.Context, expression string, input ConditionInput) (bool, error) {
	program, err := e.CompileExpression(expression)
	if err != nil {
		return false, err
	}

	keys := input.EvidenceKeys
	if keys == nil {
		keys = []string{}
	}

	vars := map[string]interface{}{
		"plan_type":         input.PlanType,
		"meeting_type_code": input.MeetingTypeCode,
		"meeting_status":    input.MeetingStatus,
		"consent_status":    input.ConsentStatus,
		"scheduled_at":      input.ScheduledAt,
		"evidence_keys":     keys,
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

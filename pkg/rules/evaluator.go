package rules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"recordguard-hq/recordguard/pkg/validation"
)

// EvaluationError wraps a failure raised while evaluating a single rule.
type EvaluationError struct {
	RuleID string
	Kind   Kind
	Cause  error
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s rule %s: evaluation failed: %v", e.Kind, e.RuleID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// Outcome is the result of evaluating one rule.
type Outcome struct {
	Rule     *Rule
	Passed   bool
	Err      error
	Duration time.Duration
}

// Sort returns a copy of rs ordered by priority (higher first). Equal
// priorities are ordered by name, then id.
func Sort(rs []Rule) []Rule {
	sorted := Clone(rs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// Evaluate runs every applicable rule in priority order. Context
// cancellation stops evaluation between rules.
func Evaluate(ctx context.Context, rs []Rule, env *Env) []Outcome {
	op := validation.Operation("")
	if env != nil && env.Context != nil {
		op = env.Context.Operation
	}

	sorted := Sort(rs)
	outcomes := make([]Outcome, 0, len(sorted))
	for i := range sorted {
		if ctx.Err() != nil {
			break
		}
		r := &sorted[i]
		if !r.AppliesTo(op) {
			continue
		}
		outcomes = append(outcomes, evaluateRule(r, env))
	}
	return outcomes
}

// evaluateRule evaluates a single rule, converting errors and panics into a
// failed outcome.
func evaluateRule(r *Rule, env *Env) (out Outcome) {
	start := time.Now()
	out.Rule = r
	defer func() {
		if rec := recover(); rec != nil {
			out.Passed = false
			out.Err = &EvaluationError{RuleID: r.ID, Kind: r.Kind, Cause: validation.Recovered(rec)}
		}
		out.Duration = time.Since(start)
	}()

	if r.Condition == nil {
		out.Err = &EvaluationError{RuleID: r.ID, Kind: r.Kind, Cause: ErrNilCondition}
		return out
	}

	passed, err := r.Condition.Evaluate(env)
	if err != nil {
		out.Err = &EvaluationError{RuleID: r.ID, Kind: r.Kind, Cause: err}
		return out
	}
	out.Passed = passed
	return out
}

// Apply records failed outcomes on result. Evaluation failures become a
// single RULE_EVALUATION_FAILED error per rule; failed mandatory rules
// become errors with failCode; failed optional rules become warnings.
func Apply(result *validation.Result, outcomes []Outcome, category validation.Category, failCode string) {
	for _, o := range outcomes {
		r := o.Rule
		switch {
		case o.Err != nil:
			result.AddError(validation.Error{
				Field:    r.Field,
				Code:     validation.CodeRuleEvaluationError,
				Message:  fmt.Sprintf("rule %s could not be evaluated: %v", r.ID, o.Err),
				Severity: validation.SeverityMedium,
				Category: category,
				Context:  map[string]any{"rule_id": r.ID, "rule_kind": string(r.Kind)},
			})
		case o.Passed:
		case r.Mandatory:
			result.AddError(validation.Error{
				Field:    r.Field,
				Code:     failCode,
				Message:  r.FailureMessage(),
				Severity: r.Severity,
				Category: category,
				Context:  map[string]any{"rule_id": r.ID, "condition": conditionString(r.Condition)},
			})
		default:
			result.AddWarning(validation.Warning{
				Field:          r.Field,
				Code:           failCode,
				Message:        r.FailureMessage(),
				Recommendation: r.Recommendation,
			})
		}
	}
}

func conditionString(c Condition) string {
	if c == nil {
		return ""
	}
	return c.String()
}

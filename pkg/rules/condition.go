package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Condition errors.
var (
	// ErrInvalidExpression indicates an expression that failed to compile.
	ErrInvalidExpression = errors.New("invalid rule expression")

	// ErrNonBoolean indicates an expression that did not yield a boolean.
	ErrNonBoolean = errors.New("rule expression did not evaluate to a boolean")

	// ErrNilCondition indicates a rule without a condition.
	ErrNilCondition = errors.New("rule has no condition")
)

// Condition decides whether a record satisfies a rule.
type Condition interface {
	Evaluate(env *Env) (bool, error)
	String() string
}

// Predicate is a typed condition function.
type Predicate func(env *Env) (bool, error)

type predicateCondition struct {
	fn   Predicate
	desc string
}

// When wraps a predicate as a Condition. desc is used in diagnostics.
func When(desc string, fn Predicate) Condition {
	return &predicateCondition{fn: fn, desc: desc}
}

// Check wraps an infallible predicate as a Condition.
func Check(desc string, fn func(env *Env) bool) Condition {
	return When(desc, func(env *Env) (bool, error) { return fn(env), nil })
}

func (c *predicateCondition) Evaluate(env *Env) (bool, error) {
	return c.fn(env)
}

func (c *predicateCondition) String() string {
	return c.desc
}

// Always is a condition that always holds.
var Always Condition = Check("always", func(*Env) bool { return true })

type exprCondition struct {
	source  string
	program *vm.Program
}

// Expression compiles src in the closed expression language.
func Expression(src string) (Condition, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	program, err := expr.Compile(src, exprOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return &exprCondition{source: src, program: program}, nil
}

// MustExpression is like Expression but panics on error. It is intended for
// package-level rule tables.
func MustExpression(src string) Condition {
	c, err := Expression(src)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *exprCondition) Evaluate(env *Env) (bool, error) {
	out, err := vm.Run(c.program, exprEnv(env))
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", c.source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T", ErrNonBoolean, c.source, out)
	}
	return b, nil
}

func (c *exprCondition) String() string {
	return c.source
}

// reserved names are not overridden by record fields.
var reserved = map[string]bool{
	"record":       true,
	"operation":    true,
	"entityType":   true,
	"entityId":     true,
	"userId":       true,
	"jurisdiction": true,
}

func exprEnv(env *Env) map[string]any {
	m := make(map[string]any, len(reserved))
	if env == nil {
		return m
	}
	for k, v := range env.Record {
		if !reserved[k] {
			m[k] = v
		}
	}
	m["record"] = map[string]any(env.Record)
	if c := env.Context; c != nil {
		m["operation"] = string(c.Operation)
		m["entityType"] = c.EntityType
		m["entityId"] = c.EntityID
		m["userId"] = c.Actor()
		if c.Compliance != nil {
			m["jurisdiction"] = c.Compliance.Jurisdiction
		}
	}
	return m
}

func exprOptions() []expr.Option {
	return []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Function("present", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("present() requires 1 argument")
			}
			return IsPresent(params[0]), nil
		}),
		expr.Function("daysSince", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("daysSince() requires 1 argument")
			}
			t, ok := AsTime(params[0])
			if !ok {
				return nil, fmt.Errorf("daysSince(): %v is not a timestamp", params[0])
			}
			return time.Since(t).Hours() / 24, nil
		}),
	}
}

// IsPresent reports whether v counts as populated: not nil, not an empty
// string and not an empty collection.
func IsPresent(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// Timestamp layouts accepted by AsTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AsTime converts a time.Time or a timestamp string to a time.
func AsTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Package rules provides the rule model shared by business, security,
// compliance and quality checks, together with a priority-ordered evaluator.
//
// # Conditions
//
// A rule's Condition is an assertion that must hold for the record. A rule
// fails when its condition evaluates to false. Conditions come in two forms:
//
//   - Predicates: typed Go functions registered at startup
//   - Expressions: strings in a closed expression language, compiled once
//     when the rule is built
//
// Expressions are never executed as host code. They are compiled by
// github.com/expr-lang/expr into a side-effect free program that can only
// read the record and call a fixed set of helper functions:
//
//	cond, err := rules.Expression(`amount > 0 && currency in ["USD", "EUR"]`)
//	rule := rules.New("positive-amount", "Amount must be positive", cond).
//	    WithPriority(100).
//	    WithSeverity(validation.SeverityHigh)
//
// The expression environment exposes every top-level record field by name,
// the full record as `record`, and the call context as `operation`,
// `entityType`, `entityId`, `userId` and `jurisdiction`. Besides the
// language builtins, `present(x)` and `daysSince(ts)` are available.
//
// # Evaluation
//
// Evaluate sorts rules by priority (higher first, name breaks ties), skips
// disabled rules and rules scoped to other operations, and isolates each
// rule: an error or panic while evaluating one rule is reported on its
// Outcome and never stops the remaining rules.
package rules

//
// CareFlow AI is pleased to support the open source community by making careflow available.
//
// Copyright (C) 2025 CareFlow AI.  All rights reserved.
//
// careflow is licensed under the Apache License Version 2.0.
//
//

// Package condition evaluates the boolean guard expressions attached to
// flow edges. Expressions read variables from the per-turn edges_var map;
// missing variables take natural defaults so a never-set variable does not
// break an edge that reads naturally, and every failure evaluates to false
// with a warning instead of aborting the turn.
package condition

import (
	"strings"
	"sync"

	"github.com/careflow-ai/careflow/log"
)

// Always is the condition of an unconditional edge. It is handled by the
// graph compiler, not evaluated here, but Evaluate accepts it for safety.
const Always = "always"

// parsed expressions are cached per expression string; flows are static so
// the cache is effectively write-once.
var (
	cacheMu sync.RWMutex
	cache   = make(map[string]expr)
)

// Evaluate decides whether an edge fires given the current edges_var map.
// Syntax errors, unknown operators and non-boolean results never raise:
// the result is coerced via truthiness and any failure yields false with a
// warning.
func Evaluate(input string, vars map[string]any) bool {
	if strings.TrimSpace(input) == "" {
		log.Warnf("condition: empty expression, evaluating to false")
		return false
	}
	if strings.EqualFold(strings.TrimSpace(input), Always) {
		return true
	}

	e, err := parsedExpr(input)
	if err != nil {
		log.Warnf("condition: failed to parse %q: %v, evaluating to false", input, err)
		return false
	}
	return truthy(e.eval(vars))
}

func parsedExpr(input string) (expr, error) {
	cacheMu.RLock()
	e, ok := cache[input]
	cacheMu.RUnlock()
	if ok {
		return e, nil
	}
	e, err := parse(input)
	if err != nil {
		return nil, err
	}
	cacheMu.Lock()
	cache[input] = e
	cacheMu.Unlock()
	return e, nil
}

// sentinelDefault is the value of a variable absent from edges_var, chosen
// by naming convention so common guards read naturally before any node has
// set their variables.
func sentinelDefault(name string) any {
	switch {
	case strings.HasSuffix(name, "_success"):
		return false
	case strings.HasSuffix(name, "_type"):
		return ""
	case name == "confidence":
		return 0.0
	case name == "need_clarification":
		return false
	case name == "intent":
		return ""
	default:
		return ""
	}
}

// truthy coerces any evaluation result to a boolean.
func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case nil:
		return false
	default:
		return true
	}
}

// numeric converts supported scalar types to float64.
func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// compare applies a comparison operator to two evaluated operands.
// Numbers compare numerically across int/float representations; strings
// compare lexicographically; mismatched types are unequal and unordered.
func compare(op string, left, right any) bool {
	if ln, ok := numeric(left); ok {
		if rn, ok := numeric(right); ok {
			return compareFloats(op, ln, rn)
		}
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return compareStrings(op, ls, rs)
		}
	}
	if lb, ok := left.(bool); ok {
		if rb, ok := right.(bool); ok {
			switch op {
			case "==":
				return lb == rb
			case "!=":
				return lb != rb
			}
			log.Warnf("condition: operator %q not supported for booleans", op)
			return false
		}
	}
	// Mismatched types: only equality has a defined answer.
	switch op {
	case "==":
		return false
	case "!=":
		return true
	}
	log.Warnf("condition: cannot order %T against %T", left, right)
	return false
}

func compareFloats(op string, left, right float64) bool {
	switch op {
	case "==":
		return left == right
	case "!=":
		return left != right
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case ">=":
		return left >= right
	}
	return false
}

func compareStrings(op, left, right string) bool {
	switch op {
	case "==":
		return left == right
	case "!=":
		return left != right
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case ">=":
		return left >= right
	}
	return false
}

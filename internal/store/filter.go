// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"fmt"
	"strings"
)

// Matches reports whether a record satisfies f. Malformed filters are an
// invalid-input error.
func (f Filter) Matches(r Record) (bool, error) {
	if len(f.Where) > 0 {
		ok, err := matchWhere(f.Where, r.Metadata)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(f.WhereDocument) > 0 {
		return matchDocument(f.WhereDocument, r.Document)
	}
	return true, nil
}

func matchWhere(where, md map[string]any) (bool, error) {
	for key, cond := range where {
		var (
			ok  bool
			err error
		)
		switch key {
		case "$and", "$or":
			ok, err = matchLogical(key, cond, func(c map[string]any) (bool, error) { return matchWhere(c, md) })
		default:
			value, present := md[key]
			ok, err = matchField(key, cond, value, present)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(op string, operand any, eval func(map[string]any) (bool, error)) (bool, error) {
	list, ok := operand.([]any)
	if !ok || len(list) == 0 {
		return false, ErrInvalid("%s expects a non-empty list", op)
	}
	for _, raw := range list {
		clause, ok := raw.(map[string]any)
		if !ok {
			return false, ErrInvalid("%s clauses must be objects", op)
		}
		matched, err := eval(clause)
		if err != nil {
			return false, err
		}
		if op == "$or" && matched {
			return true, nil
		}
		if op == "$and" && !matched {
			return false, nil
		}
	}
	return op == "$and", nil
}

func matchField(key string, cond, value any, present bool) (bool, error) {
	ops, isOps := cond.(map[string]any)
	if !isOps {
		// Bare value is shorthand for $eq.
		ops = map[string]any{"$eq": cond}
	}
	if len(ops) != 1 {
		return false, ErrInvalid("filter on %q must have exactly one operator", key)
	}

	for op, operand := range ops {
		switch op {
		case "$eq":
			return present && equal(value, operand), nil
		case "$ne":
			return !present || !equal(value, operand), nil
		case "$gt", "$gte", "$lt", "$lte":
			want, ok := toFloat(operand)
			if !ok {
				return false, ErrInvalid("%s on %q needs a numeric operand", op, key)
			}
			got, ok := toFloat(value)
			if !present || !ok {
				return false, nil
			}
			return compare(op, got, want), nil
		case "$in", "$nin":
			list, ok := operand.([]any)
			if !ok {
				return false, ErrInvalid("%s on %q needs a list operand", op, key)
			}
			found := false
			if present {
				for _, candidate := range list {
					if equal(value, candidate) {
						found = true
						break
					}
				}
			}
			if op == "$in" {
				return found, nil
			}
			return !found, nil
		default:
			return false, ErrInvalid("unknown operator %s on %q", op, key)
		}
	}
	return false, nil
}

func matchDocument(wd map[string]any, doc *string) (bool, error) {
	for op, operand := range wd {
		var (
			ok  bool
			err error
		)
		switch op {
		case "$and", "$or":
			ok, err = matchLogical(op, operand, func(c map[string]any) (bool, error) { return matchDocument(c, doc) })
		case "$contains", "$not_contains":
			text, isString := operand.(string)
			if !isString {
				return false, ErrInvalid("%s needs a string operand", op)
			}
			contains := doc != nil && strings.Contains(*doc, text)
			ok = contains == (op == "$contains")
		default:
			return false, ErrInvalid("unknown document operator %s", op)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func compare(op string, got, want float64) bool {
	switch op {
	case "$gt":
		return got > want
	case "$gte":
		return got >= want
	case "$lt":
		return got < want
	default:
		return got <= want
	}
}

// equal compares scalars, treating all numeric types as float64.
func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"fmt"
	"strings"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// Where is a metadata filter in Chroma's operator syntax, e.g.
// {"genre": {"$eq": "jazz"}} or {"$and": [...]}. Build it with Eq, In, And
// and friends, or write the map directly.
type Where map[string]any

// WhereDocument is a document content filter, e.g. {"$contains": "piano"}.
type WhereDocument map[string]any

// Comparison operators accepted inside a field filter.
const (
	OpEq  = "$eq"
	OpNe  = "$ne"
	OpGt  = "$gt"
	OpGte = "$gte"
	OpLt  = "$lt"
	OpLte = "$lte"
	OpIn  = "$in"
	OpNin = "$nin"

	OpAnd = "$and"
	OpOr  = "$or"

	OpContains    = "$contains"
	OpNotContains = "$not_contains"
)

func field(key, op string, value any) Where {
	return Where{key: map[string]any{op: value}}
}

func Eq(key string, value any) Where  { return field(key, OpEq, value) }
func Ne(key string, value any) Where  { return field(key, OpNe, value) }
func Gt(key string, value any) Where  { return field(key, OpGt, value) }
func Gte(key string, value any) Where { return field(key, OpGte, value) }
func Lt(key string, value any) Where  { return field(key, OpLt, value) }
func Lte(key string, value any) Where { return field(key, OpLte, value) }

// In matches records whose key equals any of values.
func In(key string, values ...any) Where { return field(key, OpIn, values) }

// Nin matches records whose key equals none of values.
func Nin(key string, values ...any) Where { return field(key, OpNin, values) }

// And matches records satisfying every clause.
func And(clauses ...Where) Where { return Where{OpAnd: clauses} }

// Or matches records satisfying at least one clause.
func Or(clauses ...Where) Where { return Where{OpOr: clauses} }

// Contains matches documents containing text.
func Contains(text string) WhereDocument { return WhereDocument{OpContains: text} }

// NotContains matches documents not containing text.
func NotContains(text string) WhereDocument { return WhereDocument{OpNotContains: text} }

// AndDocument combines document filters conjunctively.
func AndDocument(clauses ...WhereDocument) WhereDocument { return WhereDocument{OpAnd: clauses} }

// OrDocument combines document filters disjunctively.
func OrDocument(clauses ...WhereDocument) WhereDocument { return WhereDocument{OpOr: clauses} }

// Validate checks the filter's structure. A nil or empty filter is valid.
func (w Where) Validate() error {
	if len(w) == 0 {
		return nil
	}
	if err := validateWhere(map[string]any(w), "where"); err != nil {
		return chromaerr.Wrap(err, chromaerr.CodeFilterValidateInvalid, "invalid where filter")
	}
	return nil
}

// Validate checks the document filter's structure. A nil or empty filter is valid.
func (wd WhereDocument) Validate() error {
	if len(wd) == 0 {
		return nil
	}
	if err := validateWhereDocument(map[string]any(wd), "where_document"); err != nil {
		return chromaerr.Wrap(err, chromaerr.CodeFilterValidateInvalid, "invalid where_document filter")
	}
	return nil
}

func validateWhere(w map[string]any, path string) error {
	if len(w) == 0 {
		return fmt.Errorf("%s: empty filter", path)
	}
	for key, value := range w {
		switch {
		case key == OpAnd || key == OpOr:
			if len(w) != 1 {
				return fmt.Errorf("%s: %s must be the only key in its object", path, key)
			}
			clauses, err := clauseList(value)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", path, key, err)
			}
			for i, c := range clauses {
				if err := validateWhere(c, fmt.Sprintf("%s.%s[%d]", path, key, i)); err != nil {
					return err
				}
			}
		case key == "":
			return fmt.Errorf("%s: empty metadata key", path)
		case strings.HasPrefix(key, "$"):
			return fmt.Errorf("%s: unexpected operator %s at field position", path, key)
		default:
			if err := validateFieldFilter(value, path+"."+key); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateFieldFilter(value any, path string) error {
	ops, ok := asMap(value)
	if !ok {
		if !isScalar(value) {
			return fmt.Errorf("%s: value must be a scalar or operator object, got %T", path, value)
		}
		return nil
	}
	if len(ops) != 1 {
		return fmt.Errorf("%s: expected exactly one operator, got %d", path, len(ops))
	}
	for op, operand := range ops {
		switch op {
		case OpEq, OpNe:
			if !isScalar(operand) {
				return fmt.Errorf("%s.%s: operand must be a scalar, got %T", path, op, operand)
			}
		case OpGt, OpGte, OpLt, OpLte:
			if !isNumber(operand) {
				return fmt.Errorf("%s.%s: operand must be a number, got %T", path, op, operand)
			}
		case OpIn, OpNin:
			list, ok := asList(operand)
			if !ok || len(list) == 0 {
				return fmt.Errorf("%s.%s: operand must be a non-empty list", path, op)
			}
			for i, v := range list {
				if !isScalar(v) {
					return fmt.Errorf("%s.%s[%d]: operand must be a scalar, got %T", path, op, i, v)
				}
			}
		default:
			return fmt.Errorf("%s: unknown operator %s", path, op)
		}
	}
	return nil
}

func validateWhereDocument(wd map[string]any, path string) error {
	if len(wd) != 1 {
		return fmt.Errorf("%s: expected exactly one operator, got %d", path, len(wd))
	}
	for op, operand := range wd {
		switch op {
		case OpContains, OpNotContains:
			s, ok := operand.(string)
			if !ok || s == "" {
				return fmt.Errorf("%s.%s: operand must be a non-empty string", path, op)
			}
		case OpAnd, OpOr:
			clauses, err := clauseList(operand)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", path, op, err)
			}
			for i, c := range clauses {
				if err := validateWhereDocument(c, fmt.Sprintf("%s.%s[%d]", path, op, i)); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%s: unknown operator %s", path, op)
		}
	}
	return nil
}

// clauseList normalizes the operand of $and / $or, which is []Where from the
// builders or []any after a JSON round trip.
func clauseList(v any) ([]map[string]any, error) {
	var out []map[string]any
	switch list := v.(type) {
	case []Where:
		for _, c := range list {
			out = append(out, map[string]any(c))
		}
	case []WhereDocument:
		for _, c := range list {
			out = append(out, map[string]any(c))
		}
	case []map[string]any:
		out = list
	case []any:
		for i, c := range list {
			m, ok := asMap(c)
			if !ok {
				return nil, fmt.Errorf("clause %d is %T, want object", i, c)
			}
			out = append(out, m)
		}
	default:
		return nil, fmt.Errorf("want a list of clauses, got %T", v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("needs at least one clause")
	}
	return out, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Where:
		return map[string]any(m), true
	case WhereDocument:
		return map[string]any(m), true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

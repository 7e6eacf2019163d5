// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

const (
	minCollectionName = 3
	maxCollectionName = 63
)

var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*[a-zA-Z0-9]$`)

// ValidateCollectionName applies Chroma's naming rules: 3 to 63 characters
// from [a-zA-Z0-9._-], starting and ending alphanumeric, with no "..".
func ValidateCollectionName(name string) error {
	if len(name) < minCollectionName || len(name) > maxCollectionName {
		return chromaerr.New(chromaerr.CodeCollectionValidateInvalid,
			fmt.Sprintf("collection name must be %d-%d characters, got %d", minCollectionName, maxCollectionName, len(name)),
			chromaerr.FieldCollection(name))
	}
	if !collectionNamePattern.MatchString(name) {
		return chromaerr.New(chromaerr.CodeCollectionValidateInvalid,
			"collection name may only contain [a-zA-Z0-9._-] and must start and end with an alphanumeric character",
			chromaerr.FieldCollection(name))
	}
	if strings.Contains(name, "..") {
		return chromaerr.New(chromaerr.CodeCollectionValidateInvalid,
			"collection name must not contain two consecutive periods",
			chromaerr.FieldCollection(name))
	}
	return nil
}

// recordProblem is one validation failure inside a batch.
type recordProblem struct {
	index  int
	reason string
}

// validateRecords checks a whole batch and reports every offending index in
// a single error. dim is the collection dimension; 0 means unknown, in which
// case all embeddings must match the first non-empty embedding's length.
func validateRecords(records []Record, dim int, collection string) error {
	if len(records) == 0 {
		return chromaerr.New(chromaerr.CodeRecordValidateInvalid, "no records to write",
			chromaerr.FieldCollection(collection))
	}

	want := dim
	for i := 0; want == 0 && i < len(records); i++ {
		want = len(records[i].Embedding)
	}

	seen := make(map[string]int, len(records))
	var problems []recordProblem
	for i, r := range records {
		switch reason := checkRecord(r, want); {
		case reason != "":
			problems = append(problems, recordProblem{i, reason})
		default:
			if first, dup := seen[r.ID]; dup {
				problems = append(problems, recordProblem{i, fmt.Sprintf("duplicate id %q (first at %d)", r.ID, first)})
				continue
			}
			seen[r.ID] = i
		}
	}
	return batchError(chromaerr.CodeRecordValidateInvalid, "invalid records", problems, collection)
}

func checkRecord(r Record, dim int) string {
	if r.ID == "" {
		return "empty id"
	}
	if len(r.Embedding) == 0 {
		return "missing embedding"
	}
	if len(r.Embedding) != dim {
		return fmt.Sprintf("embedding has dimension %d, want %d", len(r.Embedding), dim)
	}
	if bad := nonFinite(r.Embedding); bad >= 0 {
		return fmt.Sprintf("embedding component %d is not finite", bad)
	}
	for k, v := range r.Metadata {
		if k == "" {
			return "empty metadata key"
		}
		if !isScalar(v) {
			return fmt.Sprintf("metadata %q has non-scalar value of type %T", k, v)
		}
	}
	return ""
}

// validateVectors checks query vectors against the collection dimension,
// inferring it from the first vector when unknown.
func validateVectors(vectors [][]float32, dim int, collection string) error {
	if len(vectors) == 0 {
		return chromaerr.New(chromaerr.CodeQueryValidateInvalid, "no query vectors",
			chromaerr.FieldCollection(collection))
	}
	want := dim
	if want == 0 {
		want = len(vectors[0])
	}
	var problems []recordProblem
	for i, v := range vectors {
		switch {
		case len(v) == 0:
			problems = append(problems, recordProblem{i, "empty vector"})
		case len(v) != want:
			problems = append(problems, recordProblem{i, fmt.Sprintf("dimension %d, want %d", len(v), want)})
		case nonFinite(v) >= 0:
			problems = append(problems, recordProblem{i, "non-finite component"})
		}
	}
	return batchError(chromaerr.CodeQueryValidateInvalid, "invalid query vectors", problems, collection)
}

func batchError(code chromaerr.Code, msg string, problems []recordProblem, collection string) error {
	if len(problems) == 0 {
		return nil
	}
	indices := make([]int, len(problems))
	parts := make([]string, 0, min(len(problems), 5))
	for i, p := range problems {
		indices[i] = p.index
		if i < 5 {
			parts = append(parts, fmt.Sprintf("[%d] %s", p.index, p.reason))
		}
	}
	if len(problems) > 5 {
		parts = append(parts, fmt.Sprintf("and %d more", len(problems)-5))
	}
	return chromaerr.New(code,
		fmt.Sprintf("%s: %s", msg, strings.Join(parts, "; ")),
		chromaerr.FieldIndices(indices),
		chromaerr.FieldCollection(collection),
	)
}

func nonFinite(v []float32) int {
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return i
		}
	}
	return -1
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	}
	return isNumber(v)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// Package grading converts cumulative numeric metrics into discrete grades
// using ascending threshold tables.
package grading

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	apperrors "github.com/tatianab/life-restart/internal/errors"
	"gopkg.in/yaml.v3"
)

// Entry is one row of a grading table.
type Entry struct {
	Threshold float64
	Grade     int
	Label     string
}

// UnmarshalYAML decodes a row written as [threshold, grade] or
// [threshold, grade, label].
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: grading entry must be a sequence", node.Line)
	}
	if len(node.Content) < 2 || len(node.Content) > 3 {
		return fmt.Errorf("line %d: grading entry needs 2 or 3 values, got %d", node.Line, len(node.Content))
	}
	if err := node.Content[0].Decode(&e.Threshold); err != nil {
		return fmt.Errorf("line %d: threshold: %w", node.Line, err)
	}
	if err := node.Content[1].Decode(&e.Grade); err != nil {
		return fmt.Errorf("line %d: grade: %w", node.Line, err)
	}
	e.Label = ""
	if len(node.Content) == 3 {
		if err := node.Content[2].Decode(&e.Label); err != nil {
			return fmt.Errorf("line %d: label: %w", node.Line, err)
		}
	}
	return nil
}

// MarshalYAML writes the entry back in row form.
func (e Entry) MarshalYAML() (any, error) {
	if e.Label == "" {
		return []any{e.Threshold, e.Grade}, nil
	}
	return []any{e.Threshold, e.Grade, e.Label}, nil
}

// Result is the outcome of grading a value.
type Result struct {
	Grade int
	Label string
}

// Table is an immutable, ascending grading table.
type Table struct {
	entries []Entry
}

// NewTable validates entries and builds a table. Thresholds must be finite
// and strictly increasing.
func NewTable(name string, entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "grading table is empty",
			map[string]string{"table": name})
	}
	for i, e := range entries {
		if math.IsNaN(e.Threshold) || math.IsInf(e.Threshold, 0) {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "grading threshold is not finite",
				map[string]string{"table": name, "index": strconv.Itoa(i)})
		}
		if i > 0 && e.Threshold <= entries[i-1].Threshold {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigInvalid, "grading thresholds must be strictly increasing",
				map[string]string{
					"table":    name,
					"index":    strconv.Itoa(i),
					"previous": formatFloat(entries[i-1].Threshold),
					"actual":   formatFloat(e.Threshold),
				})
		}
	}
	return &Table{entries: append([]Entry(nil), entries...)}, nil
}

// Grade returns the entry with the greatest threshold not above v. Values
// below the first threshold, and NaN, grade as the first entry.
func (t *Table) Grade(v float64) Result {
	if math.IsNaN(v) {
		return t.result(0)
	}
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Threshold > v
	}) - 1
	if i < 0 {
		i = 0
	}
	return t.result(i)
}

func (t *Table) result(i int) Result {
	return Result{Grade: t.entries[i].Grade, Label: t.entries[i].Label}
}

// Set is a collection of tables keyed by metric.
type Set map[string]*Table

// NewSet builds every table in defs, failing on the first invalid one.
func NewSet(defs map[string][]Entry) (Set, error) {
	set := make(Set, len(defs))
	for name, entries := range defs {
		table, err := NewTable(name, entries)
		if err != nil {
			return nil, err
		}
		set[name] = table
	}
	return set, nil
}

// Lookup returns the table for a metric.
func (s Set) Lookup(metric string) (*Table, bool) {
	t, ok := s[metric]
	return t, ok
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

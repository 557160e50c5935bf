package draw

import (
	"fmt"

	apperrors "github.com/tatianab/life-restart/internal/errors"
	"gopkg.in/yaml.v3"
)

// ValueWeight is one row of a weighted value table, written [value, weight].
type ValueWeight struct {
	Value  int
	Weight float64
}

// UnmarshalYAML decodes a [value, weight] row.
func (v *ValueWeight) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: value weight must be [value, weight]", node.Line)
	}
	if err := node.Content[0].Decode(&v.Value); err != nil {
		return fmt.Errorf("line %d: value: %w", node.Line, err)
	}
	if err := node.Content[1].Decode(&v.Weight); err != nil {
		return fmt.Errorf("line %d: weight: %w", node.Line, err)
	}
	return nil
}

// ValueTable is a weighted distribution over integers.
type ValueTable []ValueWeight

// Validate checks that the table can produce a value.
func (t ValueTable) Validate(name string) error {
	positive := false
	for _, row := range t {
		if !ValidWeight(row.Weight) {
			return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "value table weight must be finite and non-negative",
				map[string]string{"table": name})
		}
		if row.Weight > 0 {
			positive = true
		}
	}
	if !positive {
		return apperrors.WithMetadata(apperrors.CodeConfigInvalid, "value table has no positive weight",
			map[string]string{"table": name})
	}
	return nil
}

// Pick draws one value from the table.
func (t ValueTable) Pick(src Source) (int, error) {
	weights := make([]float64, len(t))
	for i, row := range t {
		weights[i] = row.Weight
	}
	i := Choose(src, weights)
	if i < 0 {
		return 0, apperrors.New(apperrors.CodeConfigInvalid, "value table has no positive weight")
	}
	return t[i].Value, nil
}

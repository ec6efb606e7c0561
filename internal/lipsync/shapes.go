package lipsync

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ShapeTableVersion identifies the built-in shape table revision. Backends
// and overrides declare the version they were authored against.
const ShapeTableVersion = "rhubarb-vrm-1"

// ShapeRow maps one mouth-shape code to its channel weights. Silence rows
// mark rests so smoothing can close the mouth faster.
type ShapeRow struct {
	Weights PhonemeVector `yaml:"weights"`
	Silence bool          `yaml:"silence,omitempty"`
}

// ShapeTable converts backend mouth-shape codes into channel weights. The
// engine only ever consumes these rows; it never derives them from text.
type ShapeTable struct {
	Version string              `yaml:"version"`
	Shapes  map[string]ShapeRow `yaml:"shapes"`
}

// DefaultShapeTable returns the built-in table for the Rhubarb shape set.
// A is a closed mouth (M/B/P), B covers most consonants, C through F are
// the open vowels, G and H are F/V and L, X is rest.
func DefaultShapeTable() *ShapeTable {
	return &ShapeTable{
		Version: ShapeTableVersion,
		Shapes: map[string]ShapeRow{
			"A": {Weights: PhonemeVector{OU: 0.15}},
			"B": {Weights: PhonemeVector{AA: 0.4, IH: 0.25}},
			"C": {Weights: PhonemeVector{AA: 0.25, EE: 0.85, IH: 0.2}},
			"D": {Weights: PhonemeVector{AA: 0.9, IH: 0.1}},
			"E": {Weights: PhonemeVector{AA: 0.55, OH: 0.75}},
			"F": {Weights: PhonemeVector{AA: 0.2, OH: 0.2, OU: 0.8}},
			"G": {Weights: PhonemeVector{AA: 0.15, IH: 0.35}},
			"H": {Weights: PhonemeVector{AA: 0.35, IH: 0.15}},
			"X": {Silence: true},
		},
	}
}

// Row looks up a shape code.
func (t *ShapeTable) Row(shape string) (ShapeRow, bool) {
	r, ok := t.Shapes[shape]
	return r, ok
}

// LoadShapeTable reads a YAML override and merges it over the built-in
// table: listed shapes replace their rows (weights clamped to [0, 1]),
// unlisted shapes keep the defaults.
func LoadShapeTable(path string) (*ShapeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lipsync: read shape table: %w", err)
	}

	var override ShapeTable
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("lipsync: parse shape table: %w", err)
	}

	table := DefaultShapeTable()
	if override.Version != "" {
		table.Version = override.Version
	}
	for shape, row := range override.Shapes {
		row.Weights = row.Weights.Clamp(1)
		table.Shapes[shape] = row
	}
	return table, nil
}

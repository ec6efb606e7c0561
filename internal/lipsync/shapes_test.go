package lipsync

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultShapeTable(t *testing.T) {
	table := DefaultShapeTable()

	if table.Version != ShapeTableVersion {
		t.Errorf("version %q", table.Version)
	}
	rest, ok := table.Row("X")
	if !ok || !rest.Silence {
		t.Error("rest shape missing or not silent")
	}
	if _, ok := table.Row("Q"); ok {
		t.Error("unknown shape resolved")
	}

	for code, row := range table.Shapes {
		for i, w := range row.Weights.Channels() {
			if w < 0 || w > 1 {
				t.Errorf("shape %s channel %s out of range: %v", code, ChannelNames[i], w)
			}
		}
	}
}

func TestLoadShapeTableMergesOverBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shapes.yaml")
	data := `
version: custom-1
shapes:
  D:
    weights: {aa: 2.0, ih: 0.5}
  ZZ:
    weights: {ou: 0.9}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadShapeTable(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Version != "custom-1" {
		t.Errorf("version %q", table.Version)
	}

	d, ok := table.Row("D")
	if !ok {
		t.Fatal("overridden shape missing")
	}
	if d.Weights.AA != 1.0 {
		t.Errorf("override weight not clamped: %v", d.Weights.AA)
	}
	if d.Weights.IH != 0.5 {
		t.Errorf("override weight lost: %v", d.Weights.IH)
	}

	if _, ok := table.Row("ZZ"); !ok {
		t.Error("new shape not merged")
	}
	if _, ok := table.Row("C"); !ok {
		t.Error("untouched builtin shape lost")
	}
}

func TestLoadShapeTableErrors(t *testing.T) {
	if _, err := LoadShapeTable(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("shapes: [not, a, map]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadShapeTable(path); err == nil {
		t.Error("malformed yaml accepted")
	}
}

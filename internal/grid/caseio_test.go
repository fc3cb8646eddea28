package grid

import (
	"path/filepath"
	"testing"
)

func TestCaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.yaml")

	orig := Cases["lynn5"]
	if err := SaveCase(path, orig); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadCase(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Name != orig.Name {
		t.Errorf("name = %q, want %q", loaded.Name, orig.Name)
	}
	if len(loaded.Buses) != len(orig.Buses) {
		t.Fatalf("bus count = %d, want %d", len(loaded.Buses), len(orig.Buses))
	}
	if len(loaded.Branches) != len(orig.Branches) {
		t.Fatalf("branch count = %d, want %d", len(loaded.Branches), len(orig.Branches))
	}
	if loaded.Buses[4].Qmax != orig.Buses[4].Qmax {
		t.Errorf("bus 4 Qmax = %g, want %g", loaded.Buses[4].Qmax, orig.Buses[4].Qmax)
	}
}

func TestResolve(t *testing.T) {
	if _, err := Resolve("ieee9"); err != nil {
		t.Errorf("bundled case not resolved: %v", err)
	}
	if _, err := Resolve("no-such-case"); err == nil {
		t.Error("expected error for unknown case")
	}
}

package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	var m map[string]int
	if err := Load(filepath.Join(t.TempDir(), "nope.json"), &m); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if m != nil {
		t.Errorf("expected untouched destination, got %v", m)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	in := map[string]int{"a": 1, "b": 2}

	if err := Store(path, in); err != nil {
		t.Fatal(err)
	}

	var out map[string]int
	if err := Load(path, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out["a"] != 1 || out["b"] != 2 {
		t.Errorf("round trip mismatch: %v", out)
	}
}

func TestStoreOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	if err := Store(path, map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if err := Store(path, map[string]int{"a": 5}); err != nil {
		t.Fatal(err)
	}

	var out map[string]int
	if err := Load(path, &out); err != nil {
		t.Fatal(err)
	}
	if out["a"] != 5 {
		t.Errorf("expected rewritten value, got %v", out)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the snapshot file, found %d entries", len(entries))
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out map[string]int
	if err := Load(path, &out); err == nil {
		t.Error("expected error for malformed snapshot")
	}
}

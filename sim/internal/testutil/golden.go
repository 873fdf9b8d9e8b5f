// Package testutil provides shared test infrastructure for the inventory
// simulator: golden fixtures and tolerance assertions used across sim/ and
// its sub-packages.
package testutil

import (
	"encoding/json"
	"flag"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var update = flag.Bool("update", false, "rewrite golden fixtures under testdata/")

// GoldenPath resolves name inside the repository testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ to testdata/.
func GoldenPath(t *testing.T, name string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", name)
}

// AssertGoldenJSON compares got, marshalled as indented JSON, with the golden
// fixture name. The fixture is only written when -update is set; a missing
// fixture fails the test.
func AssertGoldenJSON(t *testing.T, name string, got any) {
	t.Helper()

	data, err := json.MarshalIndent(got, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal %s: %v", name, err)
	}
	data = append(data, '\n')

	path := GoldenPath(t, name)
	if *update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create testdata dir: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("Failed to write golden fixture: %v", err)
		}
		t.Logf("wrote golden fixture %s", path)
		return
	}
	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Fatalf("golden fixture %s is missing (run with -update to create it)", path)
	}
	if err != nil {
		t.Fatalf("Failed to read golden fixture: %v", err)
	}
	if string(want) != string(data) {
		t.Errorf("%s differs from golden fixture %s (rerun with -update after an intended change)\ngot:\n%s", name, path, data)
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

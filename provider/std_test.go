package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexisbouchez/docnav/crate"
)

type fakeRunner struct {
	outputs map[string][]byte
}

func (f fakeRunner) Output(name string, args ...string) ([]byte, error) {
	key := name
	for _, a := range args {
		key += " " + a
	}
	return f.outputs[key], nil
}

func newTestStdSource(t *testing.T, sysroot string) *StdSource {
	t.Helper()
	return &StdSource{
		runner: fakeRunner{outputs: map[string][]byte{
			"rustc --print sysroot": []byte(sysroot + "\n"),
			"rustc --version":       []byte("rustc 1.82.0 (f6e511eec 2024-10-15)\n"),
		}},
	}
}

func TestStdSourceLookupKnownCrate(t *testing.T) {
	sysroot := t.TempDir()
	jsonDir := filepath.Join(sysroot, "share", "doc", "rust", "json")
	if err := os.MkdirAll(jsonDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(jsonDir, "std.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestStdSource(t, sysroot)
	constraint, _ := crate.ParseConstraint("")

	info, found, err := s.Lookup(context.Background(), "std", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected std to be found")
	}
	if info.Version.String() != "1.82.0" {
		t.Errorf("Version = %s, want 1.82.0", info.Version)
	}
	if info.Provenance != crate.ProvenanceStdLib {
		t.Errorf("Provenance = %v, want StdLib", info.Provenance)
	}
}

func TestStdSourceLookupUnknownCrate(t *testing.T) {
	s := newTestStdSource(t, t.TempDir())
	constraint, _ := crate.ParseConstraint("")

	_, found, err := s.Lookup(context.Background(), "tokio", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("expected tokio to never be found by StdSource")
	}
}

func TestStdSourceLookupMissingJSONFile(t *testing.T) {
	s := newTestStdSource(t, t.TempDir())
	constraint, _ := crate.ParseConstraint("")

	_, found, err := s.Lookup(context.Background(), "alloc", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("expected alloc to not be found when its json file is absent")
	}
}

func TestStdSourceListKnown(t *testing.T) {
	sysroot := t.TempDir()
	jsonDir := filepath.Join(sysroot, "share", "doc", "rust", "json")
	os.MkdirAll(jsonDir, 0o755)
	os.WriteFile(filepath.Join(jsonDir, "std.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(jsonDir, "core.json"), []byte("{}"), 0o644)

	s := newTestStdSource(t, sysroot)
	infos, err := s.ListKnown(context.Background())
	if err != nil {
		t.Fatalf("ListKnown: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(infos))
	}
}

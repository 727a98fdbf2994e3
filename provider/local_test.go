package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexisbouchez/docnav/crate"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalSourceLookupMatchesPackage(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[package]\nname = \"my-crate\"\nversion = \"0.3.1\"\n")

	s := NewLocalSource(dir)
	constraint, _ := crate.ParseConstraint("")

	info, found, err := s.Lookup(context.Background(), "my_crate", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected my_crate to be found")
	}
	if info.Version.String() != "0.3.1" {
		t.Errorf("Version = %s, want 0.3.1", info.Version)
	}
	if info.Provenance != crate.ProvenanceWorkspace {
		t.Errorf("Provenance = %v, want Workspace", info.Provenance)
	}
}

func TestLocalSourceLookupWrongName(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[package]\nname = \"my-crate\"\nversion = \"0.3.1\"\n")

	s := NewLocalSource(dir)
	constraint, _ := crate.ParseConstraint("")
	_, found, err := s.Lookup(context.Background(), "other_crate", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("expected a non-matching crate name to not be found")
	}
}

func TestLocalSourceLookupVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[package]\nname = \"my-crate\"\nversion = \"1.0.0\"\n")

	s := NewLocalSource(dir)
	constraint, _ := crate.ParseConstraint("=1.40.0")
	_, found, err := s.Lookup(context.Background(), "my_crate", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("expected an unsatisfiable constraint to not be found")
	}
}

func TestLocalSourceLookupNoManifestFound(t *testing.T) {
	dir := t.TempDir() // no Cargo.toml anywhere above this
	s := NewLocalSource(dir)
	constraint, _ := crate.ParseConstraint("")

	_, found, err := s.Lookup(context.Background(), "anything", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("expected no match when no workspace can be discovered")
	}
}

func TestLocalSourceWalksUpToFindManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nname = \"my-crate\"\nversion = \"0.3.1\"\n")
	nested := filepath.Join(root, "src", "deep", "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	s := NewLocalSource(nested)
	constraint, _ := crate.ParseConstraint("")
	_, found, err := s.Lookup(context.Background(), "my_crate", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Error("expected LocalSource to walk up from a nested directory to find Cargo.toml")
	}
}

func TestLocalSourceListKnownIncludesWorkspaceMembers(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[workspace]\nmembers = [\"member-a\"]\n")
	memberDir := filepath.Join(root, "member-a")
	os.MkdirAll(memberDir, 0o755)
	writeManifest(t, memberDir, "[package]\nname = \"member-a\"\nversion = \"0.1.0\"\n")

	s := NewLocalSource(root)
	infos, err := s.ListKnown(context.Background())
	if err != nil {
		t.Fatalf("ListKnown: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "member_a" {
		t.Errorf("infos = %+v, want a single member_a entry", infos)
	}
}

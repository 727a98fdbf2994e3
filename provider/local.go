package provider

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/alexisbouchez/docnav/cachefs"
	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/docerr"
	"github.com/alexisbouchez/docnav/normalize"
)

// cargoManifest is a simplified Cargo.toml, enough to answer "does this
// workspace have this crate at this version". It completes the
// teacher's own CargoToml struct in crawler/crates.go, which carried
// `toml:"..."` tags but was never actually decoded with a TOML library.
type cargoManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
	Workspace struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
}

// LocalSource resolves crates out of a workspace discovered by walking
// upward from StartDir looking for a Cargo.toml, and builds JSON docs
// on demand by invoking the toolchain's doc generator.
type LocalSource struct {
	StartDir    string
	ToolchainCh string // e.g. "nightly"; passed to the toolchain multiplexer
	runner      runner
	cache       *cachefs.Cache // optional; set via WithCache
}

// NewLocalSource creates a LocalSource rooted at startDir.
func NewLocalSource(startDir string) *LocalSource {
	return &LocalSource{StartDir: startDir, ToolchainCh: "nightly", runner: execRunner{}}
}

// WithCache makes s write every freshly built JSON dump through cache,
// the same key shape RemoteSource and StdSource use, so the generated
// index's staleness check has a real mtime to compare against instead
// of always missing. Unlike StdSource, Load never checks the cache
// before rebuilding: a workspace's source can change without its
// Cargo.toml version bumping, so a (name, version) pair here is not
// immutable content the way it is for Std or Remote.
func (s *LocalSource) WithCache(cache *cachefs.Cache) *LocalSource {
	s.cache = cache
	return s
}

func (s *LocalSource) Canonicalize(raw string) crate.Name { return crate.Canonicalize(raw) }

// findWorkspaceRoot walks upward from dir looking for a Cargo.toml,
// mirroring how a Go-module discovery walk looks for go.mod.
func findWorkspaceRoot(dir string) (string, error) {
	cur := dir
	for {
		manifest := filepath.Join(cur, "Cargo.toml")
		if _, err := os.Stat(manifest); err == nil {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", docerr.New(docerr.NotFound, "no Cargo.toml found walking up from "+dir)
		}
		cur = parent
	}
}

func readManifest(root string) (cargoManifest, error) {
	data, err := os.ReadFile(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		return cargoManifest{}, docerr.Wrap(docerr.IO, "reading Cargo.toml", err)
	}
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return cargoManifest{}, docerr.Wrap(docerr.Corruption, "parsing Cargo.toml", err)
	}
	return m, nil
}

// Lookup reads workspace metadata to check name/version availability
// without invoking the build, per spec.md §4.1.
func (s *LocalSource) Lookup(_ context.Context, name crate.Name, constraint crate.Constraint) (crate.Info, bool, error) {
	root, err := findWorkspaceRoot(s.StartDir)
	if err != nil {
		return crate.Info{}, false, nil
	}

	manifest, err := readManifest(root)
	if err != nil {
		return crate.Info{}, false, err
	}

	if manifest.Package.Name == "" {
		// A workspace manifest with no [package] table (members only)
		// has nothing this provider can resolve directly.
		return crate.Info{}, false, nil
	}
	if crate.Canonicalize(manifest.Package.Name) != name {
		return crate.Info{}, false, nil
	}

	version, ok := crate.NewVersion(manifest.Package.Version)
	if !ok {
		return crate.Info{}, false, docerr.New(docerr.Corruption, "Cargo.toml has an invalid package.version: "+manifest.Package.Version)
	}
	if !constraint.Matches(version) {
		return crate.Info{}, false, nil
	}

	return crate.Info{Name: name, Version: version, Provenance: crate.ProvenanceWorkspace}, true, nil
}

// Load invokes the toolchain's JSON-emitting doc generator scoped to
// the requested crate and reads the produced file. Build failures are
// reported as docerr.Build errors carrying the build's diagnostic text.
func (s *LocalSource) Load(_ context.Context, info crate.Info) (crate.Dump, error) {
	root, err := findWorkspaceRoot(s.StartDir)
	if err != nil {
		return crate.Dump{}, err
	}

	var stderr bytes.Buffer
	cmd := exec.Command("cargo", fmt.Sprintf("+%s", s.ToolchainCh), "rustdoc",
		"-p", string(info.Name), "--", "-Z", "unstable-options", "--output-format", "json")
	cmd.Dir = root
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return crate.Dump{}, docerr.Wrap(docerr.Build, "cargo rustdoc failed: "+stderr.String(), err)
	}

	jsonPath := filepath.Join(root, "target", "doc", string(info.Name)+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return crate.Dump{}, docerr.Wrap(docerr.IO, "reading generated json at "+jsonPath, err)
	}

	if s.cache != nil {
		if err := s.cache.PutJSON(normalize.CurrentFormatVersion, info.Name, info.Version, data); err != nil {
			log.Printf("provider: failed to cache local json for %s@%s: %v", info.Name, info.Version, err)
		}
	}
	return migrate(data)
}

// ListKnown enumerates the workspace's own package and any members, if
// the manifest declares a [workspace] table.
func (s *LocalSource) ListKnown(_ context.Context) ([]crate.Info, error) {
	root, err := findWorkspaceRoot(s.StartDir)
	if err != nil {
		return nil, nil
	}
	manifest, err := readManifest(root)
	if err != nil {
		return nil, nil
	}

	var infos []crate.Info
	if manifest.Package.Name != "" {
		if version, ok := crate.NewVersion(manifest.Package.Version); ok {
			infos = append(infos, crate.Info{
				Name: crate.Canonicalize(manifest.Package.Name), Version: version, Provenance: crate.ProvenanceWorkspace,
			})
		}
	}
	for _, member := range manifest.Workspace.Members {
		memberManifest, err := readManifest(filepath.Join(root, member))
		if err != nil || memberManifest.Package.Name == "" {
			continue
		}
		version, ok := crate.NewVersion(memberManifest.Package.Version)
		if !ok {
			continue
		}
		infos = append(infos, crate.Info{
			Name: crate.Canonicalize(memberManifest.Package.Name), Version: version, Provenance: crate.ProvenanceWorkspace,
		})
	}
	return infos, nil
}

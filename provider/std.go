package provider

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alexisbouchez/docnav/cachefs"
	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/docerr"
	"github.com/alexisbouchez/docnav/normalize"
)

// stdCrates is the fixed set of crates a toolchain's JSON dump set
// carries, in spec.md §4.1's order ("std, core, alloc if present").
var stdCrates = []crate.Name{"std", "core", "alloc"}

// StdSource discovers the installed toolchain's sysroot and reads
// pre-built JSON dumps from its JSON doc directory. There is no version
// negotiation: the installed toolchain fixes the version for every
// std-family crate at once.
type StdSource struct {
	runner runner
	cache  *cachefs.Cache // optional; set via WithCache

	once     sync.Once
	sysroot  string
	version  crate.Version
	probeErr error
}

// WithCache makes s write every JSON dump it reads through cache,
// keyed like every other provider's fetched content. A std-family
// crate's (name, version) pair denotes genuinely immutable content —
// the installed toolchain fixes it — so unlike LocalSource, s.Load
// checks the cache before touching the sysroot at all. This also gives
// search.LoadOrBuild's staleness check (which keys off the cached
// JSON's mtime) something real to compare against for std-provenance
// crates, where previously it always missed.
func (s *StdSource) WithCache(cache *cachefs.Cache) *StdSource {
	s.cache = cache
	return s
}

// runner abstracts process execution so tests can substitute a fake
// toolchain without actually invoking rustc.
type runner interface {
	Output(name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// NewStdSource creates a StdSource that shells out to the real
// toolchain multiplexer.
func NewStdSource() *StdSource {
	return &StdSource{runner: execRunner{}}
}

func (s *StdSource) Canonicalize(raw string) crate.Name { return crate.Canonicalize(raw) }

// probe discovers the sysroot and toolchain version once and memoizes
// the result (including failure) for the life of the StdSource.
func (s *StdSource) probe() (string, crate.Version, error) {
	s.once.Do(func() {
		sysroot, err := s.runner.Output("rustc", "--print", "sysroot")
		if err != nil {
			s.probeErr = docerr.Wrap(docerr.NotFound, "discovering toolchain sysroot", err)
			return
		}
		s.sysroot = strings.TrimSpace(string(sysroot))

		out, err := s.runner.Output("rustc", "--version")
		if err != nil {
			s.probeErr = docerr.Wrap(docerr.NotFound, "discovering toolchain version", err)
			return
		}
		s.version = parseRustcVersion(out)
	})
	return s.sysroot, s.version, s.probeErr
}

// parseRustcVersion extracts "1.82.0" out of "rustc 1.82.0 (f6e511eec 2024-10-15)".
func parseRustcVersion(out []byte) crate.Version {
	fields := strings.Fields(string(bytes.TrimSpace(out)))
	if len(fields) < 2 {
		return ""
	}
	v, _ := crate.NewVersion(fields[1])
	return v
}

func (s *StdSource) jsonPath(name crate.Name) (string, error) {
	sysroot, _, err := s.probe()
	if err != nil {
		return "", err
	}
	return filepath.Join(sysroot, "share", "doc", "rust", "json", string(name)+".json"), nil
}

func (s *StdSource) Lookup(_ context.Context, name crate.Name, constraint crate.Constraint) (crate.Info, bool, error) {
	if !isStdCrate(name) {
		return crate.Info{}, false, nil
	}

	_, version, err := s.probe()
	if err != nil {
		return crate.Info{}, false, err
	}
	if version == "" {
		return crate.Info{}, false, nil
	}
	if !constraint.Matches(version) {
		// The toolchain fixes the version; a constraint this toolchain
		// can't satisfy is not an error, just no match here.
		return crate.Info{}, false, nil
	}

	path, err := s.jsonPath(name)
	if err != nil {
		return crate.Info{}, false, err
	}
	if _, err := os.Stat(path); err != nil {
		return crate.Info{}, false, nil
	}

	return crate.Info{Name: name, Version: version, Provenance: crate.ProvenanceStdLib}, true, nil
}

func (s *StdSource) Load(_ context.Context, info crate.Info) (crate.Dump, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetJSON(normalize.CurrentFormatVersion, info.Name, info.Version); ok {
			if dump, err := migrate(cached); err == nil {
				return dump, nil
			}
			// A cached entry that fails to parse is a miss; reread the sysroot copy.
		}
	}

	path, err := s.jsonPath(info.Name)
	if err != nil {
		return crate.Dump{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return crate.Dump{}, docerr.Wrap(docerr.IO, fmt.Sprintf("reading std json for %s", info.Name), err)
	}

	if s.cache != nil {
		if err := s.cache.PutJSON(normalize.CurrentFormatVersion, info.Name, info.Version, data); err != nil {
			log.Printf("provider: failed to cache std json for %s@%s: %v", info.Name, info.Version, err)
		}
	}
	return migrate(data)
}

func (s *StdSource) ListKnown(_ context.Context) ([]crate.Info, error) {
	_, version, err := s.probe()
	if err != nil || version == "" {
		return nil, nil
	}
	var infos []crate.Info
	for _, name := range stdCrates {
		path, err := s.jsonPath(name)
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			infos = append(infos, crate.Info{Name: name, Version: version, Provenance: crate.ProvenanceStdLib})
		}
	}
	return infos, nil
}

func isStdCrate(name crate.Name) bool {
	for _, c := range stdCrates {
		if c == name {
			return true
		}
	}
	return false
}

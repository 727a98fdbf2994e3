package crate

import (
	"fmt"
	"strings"
)

// Dump is the deserialized form of one crate JSON dump, after
// FormatNormalizer has brought it to the current schema. It mirrors
// the on-disk shape closely enough that normalize.Migrate can operate
// on it directly.
type Dump struct {
	FormatVersion   int
	Root            Id
	CrateVersion    string // the crate's own declared version, if present
	IncludesPrivate bool
	Index           map[Id]Item
	Paths           map[Id]ItemSummary
	ExternalCrates  map[int]ExternalCrate // keyed by local crate-id
}

// Data owns the parsed JSON for exactly one (Name, Version) pair. It is
// immutable after New returns: the inverted path index and the
// external-crate-id index are both built once, at construction time.
type Data struct {
	Name    Name
	Version Version
	Dump    Dump

	// pathIndex maps a canonical "a::b::c" path to the id of the item
	// at that path, built from Dump.Paths at construction time.
	pathIndex map[string]Id

	// externalCrateIndex maps a local external-crate-id to the
	// canonicalized name recorded in that crate's ExternalCrates entry.
	// No version is recorded: the HTML root URL is not parsed, so
	// Navigator loads the external crate with an empty constraint.
	externalCrateIndex map[int]Name
}

// New builds a Data from a normalized Dump. It is the only place the
// inverted indices are constructed; Data is immutable thereafter.
func New(name Name, version Version, dump Dump) *Data {
	d := &Data{
		Name:               name,
		Version:            version,
		Dump:               dump,
		pathIndex:          make(map[string]Id, len(dump.Paths)),
		externalCrateIndex: make(map[int]Name, len(dump.ExternalCrates)),
	}
	for id, summary := range dump.Paths {
		d.pathIndex[strings.Join(summary.Path, "::")] = id
	}
	for crateId, ext := range dump.ExternalCrates {
		if ext.Name != "" {
			d.externalCrateIndex[crateId] = Canonicalize(ext.Name)
		}
	}
	return d
}

// Item looks up an item by id within this crate.
func (d *Data) Item(id Id) (Item, bool) {
	item, ok := d.Dump.Index[id]
	return item, ok
}

// Summary looks up an item's path/crate-id metadata by id.
func (d *Data) Summary(id Id) (ItemSummary, bool) {
	s, ok := d.Dump.Paths[id]
	return s, ok
}

// Root returns the crate root module item.
func (d *Data) Root() (Item, bool) {
	return d.Item(d.Dump.Root)
}

// LookupPath resolves a "::"-joined canonical path to an item id within
// this crate's own path index. It does not cross crate boundaries;
// Navigator does that by consulting ExternalCrate below.
func (d *Data) LookupPath(path string) (Id, bool) {
	id, ok := d.pathIndex[path]
	return id, ok
}

// AllPaths returns every canonical path this crate knows about, used
// for the bounded edit-distance "did you mean" search on a failed
// resolve_path.
func (d *Data) AllPaths() []string {
	paths := make([]string, 0, len(d.pathIndex))
	for p := range d.pathIndex {
		paths = append(paths, p)
	}
	return paths
}

// ExternalCrate resolves a local external-crate-id (as found on an
// Item's defining-crate field, or an ExternCrateInner) to the crate
// name Navigator should load to continue the lookup. It returns no
// version; Navigator's load_crate resolves the name with an empty
// constraint.
func (d *Data) ExternalCrate(crateId int) (Name, bool) {
	name, ok := d.externalCrateIndex[crateId]
	return name, ok
}

// ExternalCrateInfo returns the raw ExternalCrates table entry,
// including the HTML root URL used by resolve_link to synthesize docs
// URLs without loading the target crate.
func (d *Data) ExternalCrateInfo(crateId int) (ExternalCrate, bool) {
	ext, ok := d.Dump.ExternalCrates[crateId]
	return ext, ok
}

// Validate checks the two structural invariants spec.md §3 requires of
// a CrateData: the root item must exist, and every Use item's Source
// (when set) must resolve within this Dump's Index, *or* name a
// cross-crate item recorded in Paths (CrateId != 0) — exactly the two
// cases Navigator's resolveUseSource knows how to follow. It does not
// check cross-crate invariants (those are a Navigator-level property,
// since they depend on the working set).
func (d *Data) Validate() error {
	if _, ok := d.Dump.Index[d.Dump.Root]; !ok {
		return fmt.Errorf("crate %s@%s: root item %q missing from index", d.Name, d.Version, d.Dump.Root)
	}
	for id, item := range d.Dump.Index {
		use, ok := item.Inner.(UseInner)
		if !ok || use.IsGlob || use.Source == "" {
			continue
		}
		if _, ok := d.Dump.Index[use.Source]; ok {
			continue
		}
		if _, ok := d.Dump.Paths[use.Source]; ok {
			continue // cross-crate re-export; resolved via Navigator.resolveUseSource
		}
		return fmt.Errorf("crate %s@%s: use item %q targets missing id %q", d.Name, d.Version, id, use.Source)
	}
	return nil
}

// Package provider implements the three SourceProviders spec.md §4.1
// defines: the installed standard-library distribution (Std), a local
// workspace (Local), and a remote documentation host (Remote). Each
// exposes the same two-phase contract the Navigator drives: a cheap
// Lookup that resolves metadata, and a Load that does the expensive
// work of producing a parsed crate.Dump.
package provider

import (
	"context"

	"github.com/alexisbouchez/docnav/crate"
)

// Source is the interface every SourceProvider implements.
type Source interface {
	// Canonicalize normalizes a user- or config-supplied raw crate name.
	// It's pure name normalization; it never touches the network or
	// filesystem.
	Canonicalize(raw string) crate.Name

	// Lookup is Phase 1: a cheap probe for whether this provider can
	// satisfy (name, constraint). found=false with err=nil means "this
	// provider has no opinion" (try the next one); a non-nil err means
	// the probe itself failed (e.g. a registry request errored) and
	// should be surfaced, not silently treated as "no opinion".
	Lookup(ctx context.Context, name crate.Name, constraint crate.Constraint) (info crate.Info, found bool, err error)

	// Load is Phase 2: produces a fully parsed CrateData for an Info
	// this provider's Lookup already committed to.
	Load(ctx context.Context, info crate.Info) (crate.Dump, error)

	// ListKnown enumerates crates this provider can currently enumerate,
	// for Navigator.ListAvailableCrates. Remote providers may return an
	// empty slice rather than crawling an entire registry.
	ListKnown(ctx context.Context) ([]crate.Info, error)
}

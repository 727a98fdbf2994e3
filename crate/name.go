package crate

import (
	"strings"

	constraintsemver "github.com/Masterminds/semver/v3"
	"golang.org/x/mod/semver"
)

// Name is a canonicalized crate identifier: lowercase, hyphens
// normalized to underscores. Equality between two Names is always
// canonical equality (plain `==`).
type Name string

// Canonicalize normalizes a user- or provider-supplied crate name the
// way every SourceProvider's canonicalize(raw-name) does: lowercase,
// hyphen -> underscore.
func Canonicalize(raw string) Name {
	lower := strings.ToLower(strings.TrimSpace(raw))
	return Name(strings.ReplaceAll(lower, "-", "_"))
}

// Version is an exact semver triple, stored in the canonical "vX.Y.Z"
// form expected by golang.org/x/mod/semver so Compare/IsValid work
// directly on it.
type Version string

// NewVersion canonicalizes a raw version string (accepting both "1.2.3"
// and "v1.2.3") into a Version. It returns ok=false if the input isn't
// valid semver.
func NewVersion(raw string) (Version, bool) {
	v := raw
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", false
	}
	return Version(semver.Canonical(v)), true
}

// Compare orders two Versions the way semver.Compare does: negative if
// a < b, zero if equal, positive if a > b.
func (a Version) Compare(b Version) int {
	return semver.Compare(string(a), string(b))
}

// String strips the leading "v" so CrateInfo prints "1.40.0", matching
// how crate versions are written in path forms like `tokio@1.40.0::...`.
func (v Version) String() string {
	return strings.TrimPrefix(string(v), "v")
}

// Constraint is a parsed version-range expression, e.g. ">=1.40,<1.41"
// or the Cargo-style "^1.40". spec.md leaves the exact grammar
// unspecified ("semver range expressions"); this module defines it as
// whatever Masterminds/semver/v3 accepts, matching the Cargo/npm-style
// constraints a Rust crate's Cargo.toml would actually write.
type Constraint struct {
	raw  string
	cons *constraintsemver.Constraints
}

// ParseConstraint parses a version-range expression. An empty string
// matches any version.
func ParseConstraint(raw string) (Constraint, error) {
	if strings.TrimSpace(raw) == "" {
		return Constraint{raw: raw}, nil
	}
	c, err := constraintsemver.NewConstraint(raw)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{raw: raw, cons: c}, nil
}

// Matches reports whether v satisfies the constraint.
func (c Constraint) Matches(v Version) bool {
	if c.cons == nil {
		return true
	}
	sv, err := constraintsemver.NewVersion(v.String())
	if err != nil {
		return false
	}
	return c.cons.Check(sv)
}

// String returns the original constraint text, for error messages.
func (c Constraint) String() string {
	if c.raw == "" {
		return "*"
	}
	return c.raw
}

// MaxSatisfying returns the highest Version in versions that satisfies
// the constraint, used by RemoteSource.lookup to pick a version from a
// registry's enumerated list.
func MaxSatisfying(versions []Version, c Constraint) (Version, bool) {
	var best Version
	found := false
	for _, v := range versions {
		if !c.Matches(v) {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best = v
			found = true
		}
	}
	return best, found
}

// Provenance tags where a CrateInfo came from.
type Provenance int

const (
	ProvenanceUnknown Provenance = iota
	ProvenanceStdLib
	ProvenanceWorkspace
	ProvenanceLocalDependency
	ProvenanceRemote
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceStdLib:
		return "stdlib"
	case ProvenanceWorkspace:
		return "workspace"
	case ProvenanceLocalDependency:
		return "local_dependency"
	case ProvenanceRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Info is resolved metadata produced by Phase 1 (SourceProvider.Lookup)
// and consumed by Phase 2 (SourceProvider.Load). Two Infos are equal
// iff Name and Version are equal; Provenance is informational only.
type Info struct {
	Name        Name
	Version     Version
	Provenance  Provenance
	Description string
}

// Equal compares two Infos by (Name, Version) only, per spec.md §3.
func (i Info) Equal(other Info) bool {
	return i.Name == other.Name && i.Version == other.Version
}

// Package normalize turns a rustdoc JSON dump of any supported schema
// version into the current-schema crate.Dump the rest of the engine
// operates on. Migrations are chained (V -> V+1 -> V+2 -> ...) and run
// entirely in memory; the on-disk bytes are never rewritten.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/docerr"
)

// CurrentFormatVersion is the schema version this build natively reads.
const CurrentFormatVersion = 33

// MinSupportedFormatVersion is the oldest schema version this build can
// still migrate forward. Per spec.md §6, the supported set is the
// current version plus two predecessors.
const MinSupportedFormatVersion = 31

// probe is the minimal shape needed to discover a dump's format_version
// before deciding how to decode the rest of it.
type probe struct {
	FormatVersion int `json:"format_version"`
}

// Migrate parses raw rustdoc JSON bytes of any supported format version
// and returns a current-schema crate.Dump. Unknown future versions (or
// versions older than MinSupportedFormatVersion) produce a
// docerr.UnsupportedFormat error; malformed JSON produces a
// docerr.Corruption error.
func Migrate(raw []byte) (crate.Dump, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return crate.Dump{}, docerr.Wrap(docerr.Corruption, "probing format_version", err)
	}

	switch {
	case p.FormatVersion == CurrentFormatVersion:
		dump, err := decodeCurrent(raw)
		if err != nil {
			return crate.Dump{}, docerr.Wrap(docerr.Corruption, "decoding current-schema dump", err)
		}
		return dump, nil

	case p.FormatVersion == CurrentFormatVersion-1: // V32
		legacy, err := decodeLegacy(raw)
		if err != nil {
			return crate.Dump{}, docerr.Wrap(docerr.Corruption, "decoding v32 dump", err)
		}
		return migrateV32ToV33(legacy), nil

	case p.FormatVersion == MinSupportedFormatVersion: // V31
		legacy, err := decodeLegacy(raw)
		if err != nil {
			return crate.Dump{}, docerr.Wrap(docerr.Corruption, "decoding v31 dump", err)
		}
		legacy = migrateV31ToV32(legacy)
		return migrateV32ToV33(legacy), nil

	default:
		return crate.Dump{}, docerr.New(docerr.UnsupportedFormat,
			fmt.Sprintf("format_version %d is outside the supported range [%d, %d]", p.FormatVersion, MinSupportedFormatVersion, CurrentFormatVersion))
	}
}

package provider

import (
	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/normalize"
)

// migrate is the one place every provider funnels raw JSON bytes
// through FormatNormalizer before handing a crate.Dump back to the
// Navigator.
func migrate(data []byte) (crate.Dump, error) {
	return normalize.Migrate(data)
}

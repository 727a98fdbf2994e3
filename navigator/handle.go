package navigator

import (
	"strings"

	"github.com/alexisbouchez/docnav/crate"
)

// ItemHandle is a context-carrying reference to one Item: the crate it
// lives in, the Navigator that produced it, and an optional display
// name that overrides Item.Name when the handle was reached through a
// renaming re-export (`pub use a::X as Y`). It is a small value type,
// trivially copyable, and never outlives the Navigator that built it.
type ItemHandle struct {
	data *crate.Data
	item crate.Item
	nav  *Navigator

	displayName string // empty unless overridden by a renaming use
}

// Item dereferences the handle to its underlying Item.
func (h ItemHandle) Item() crate.Item { return h.item }

// Data returns the CrateData this handle's item lives in.
func (h ItemHandle) Data() *crate.Data { return h.data }

// DisplayName returns the name this handle should be shown under: the
// renaming override if one was carried, otherwise the item's own name.
func (h ItemHandle) DisplayName() string {
	if h.displayName != "" {
		return h.displayName
	}
	return h.item.Name
}

// WithDisplayName returns a copy of h carrying name as its display-name
// override, used by IdIterator when following a renaming use.
func (h ItemHandle) WithDisplayName(name string) ItemHandle {
	h.displayName = name
	return h
}

// CanonicalPath returns the handle's fully qualified "::"-joined path
// within its own crate, as recorded in that crate's ItemSummary table.
func (h ItemHandle) CanonicalPath() (string, bool) {
	summary, ok := h.data.Summary(h.item.Id)
	if !ok {
		return "", false
	}
	return strings.Join(summary.Path, "::"), true
}

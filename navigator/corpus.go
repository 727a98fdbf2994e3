package navigator

import (
	"context"

	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/docerr"
)

// SearchDocument is one reachable item discovered by WalkForSearch: its
// sequence of ids from the crate root (nil for the root item itself)
// and the handle search.Index should build a document from.
type SearchDocument struct {
	IdPath []crate.Id
	Handle ItemHandle
}

// WalkForSearch traverses data's entire reachable item graph from its
// root in include_use_themselves=true mode, per spec.md §4.6, so the
// search package can build one document per reachable item without
// duplicating the re-export-following logic ChildIterator already
// implements. It also tallies inbound intra-doc link counts per target
// id (authority), scanning every item's Links table once.
//
// Re-export cycles across module boundaries are bounded by tracking
// which module ids have already been expanded; a leaf item reached via
// two different re-export paths is intentionally indexed twice (see
// spec.md §9's open question on double-counting).
func (nav *Navigator) WalkForSearch(ctx context.Context, data *crate.Data) ([]SearchDocument, map[crate.Id]int, error) {
	root, ok := data.Root()
	if !ok {
		return nil, nil, docerr.New(docerr.NotFound, "crate has no root item to walk")
	}

	authority := computeAuthority(data)

	docs := []SearchDocument{{IdPath: nil, Handle: newHandle(data, root, nav)}}
	visitedModules := make(map[crate.Id]bool)

	var walk func(h ItemHandle, idPath []crate.Id) error
	walk = func(h ItemHandle, idPath []crate.Id) error {
		if _, isModule := h.item.Inner.(crate.ModuleInner); isModule {
			if visitedModules[h.item.Id] {
				return nil
			}
			visitedModules[h.item.Id] = true
		}

		children, err := nav.childIteratorForSearch(ctx, h, make(map[visitKey]bool))
		if err != nil {
			return err
		}
		for _, child := range children {
			childPath := make([]crate.Id, len(idPath)+1)
			copy(childPath, idPath)
			childPath[len(idPath)] = child.item.Id

			docs = append(docs, SearchDocument{IdPath: childPath, Handle: child})
			if err := walk(child, childPath); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(docs[0].Handle, nil); err != nil {
		return nil, nil, err
	}
	return docs, authority, nil
}

// computeAuthority counts, for every item id in data, how many other
// items' intra-doc links resolve to it — the inbound-link count
// spec.md §3 calls authority.
func computeAuthority(data *crate.Data) map[crate.Id]int {
	authority := make(map[crate.Id]int)
	for _, item := range data.Dump.Index {
		for _, target := range item.Links {
			authority[target]++
		}
	}
	return authority
}

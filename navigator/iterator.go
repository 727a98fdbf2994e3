package navigator

import (
	"context"
	"strings"

	"github.com/alexisbouchez/docnav/crate"
)

// maxUseDepth bounds how many re-exports IdIterator will follow in a
// chain (`use a::X; use b::X as Y; use c::Y as Z; ...`) before giving
// up, independent of the visited-id cycle check, so a very long but
// acyclic re-export chain can't blow the stack either.
const maxUseDepth = 64

// visitKey identifies one item across crate boundaries, since ids are
// only unique within the crate dump that defines them.
type visitKey struct {
	name    crate.Name
	version crate.Version
	id      crate.Id
}

func newHandle(data *crate.Data, item crate.Item, nav *Navigator) ItemHandle {
	return ItemHandle{data: data, item: item, nav: nav}
}

// ChildIterator enumerates h's navigable children per spec.md §4.5: the
// exact shape depends on h's kind, and a Use item resolves transparently
// to its target's own children.
func (nav *Navigator) ChildIterator(ctx context.Context, h ItemHandle) ([]ItemHandle, error) {
	return nav.childIterator(ctx, h, false, make(map[visitKey]bool), 0)
}

// childIteratorForSearch is ChildIterator with include_use_themselves
// forced on, the corpus-construction mode spec.md §4.6 requires so
// `pub use` statements are themselves indexed alongside what they
// re-export.
func (nav *Navigator) childIteratorForSearch(ctx context.Context, h ItemHandle, visited map[visitKey]bool) ([]ItemHandle, error) {
	return nav.childIterator(ctx, h, true, visited, 0)
}

func (nav *Navigator) childIterator(ctx context.Context, h ItemHandle, includeUseThemselves bool, visited map[visitKey]bool, depth int) ([]ItemHandle, error) {
	switch inner := h.item.Inner.(type) {
	case crate.ModuleInner:
		return nav.idIterator(ctx, h.data, inner.Children, includeUseThemselves, visited, depth)

	case crate.EnumInner:
		children, err := nav.idIterator(ctx, h.data, inner.Variants, includeUseThemselves, visited, depth)
		if err != nil {
			return nil, err
		}
		methods, err := nav.methodIterator(h.data, h.item.Id)
		if err != nil {
			return nil, err
		}
		return append(children, methods...), nil

	case crate.StructInner:
		return nav.methodIterator(h.data, h.item.Id)

	case crate.UnionInner:
		return nav.methodIterator(h.data, h.item.Id)

	case crate.TraitInner:
		return nav.idIterator(ctx, h.data, inner.Items, includeUseThemselves, visited, depth)

	case crate.UseInner:
		if depth >= maxUseDepth {
			return nil, nil
		}
		resolved, err := nav.resolveUseTarget(ctx, h.data, inner, visited, depth)
		if err != nil || resolved == nil {
			return nil, err
		}
		return nav.childIterator(ctx, *resolved, includeUseThemselves, visited, depth+1)

	default:
		return nil, nil
	}
}

// idIterator expands a list of ids within one crate, following Use
// items transparently. Per spec.md §4.5, a glob use recursively yields
// the source module's children with their original names; a named use
// yields a single handle to the source item carrying the import's name
// as a display-name override. include_use_themselves additionally
// surfaces the Use item itself, verbatim, alongside whatever it
// resolves to — used by the search indexer so `pub use` statements are
// themselves discoverable.
func (nav *Navigator) idIterator(ctx context.Context, data *crate.Data, ids []crate.Id, includeUseThemselves bool, visited map[visitKey]bool, depth int) ([]ItemHandle, error) {
	var out []ItemHandle
	for _, id := range ids {
		key := visitKey{name: data.Name, version: data.Version, id: id}
		if visited[key] {
			continue
		}

		item, ok := data.Item(id)
		if !ok || !item.Visible {
			continue // dangling id, or a non-pub item ChildIterator never surfaces
		}

		use, isUse := item.Inner.(crate.UseInner)
		if !isUse {
			out = append(out, newHandle(data, item, nav))
			continue
		}

		if includeUseThemselves {
			out = append(out, newHandle(data, item, nav))
		}
		if depth >= maxUseDepth {
			continue
		}
		visited[key] = true

		if use.IsGlob {
			targetData, targetItem, ok, err := nav.resolveUseSource(ctx, data, use)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			mod, ok := targetItem.Inner.(crate.ModuleInner)
			if !ok {
				continue
			}
			expanded, err := nav.idIterator(ctx, targetData, mod.Children, includeUseThemselves, visited, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
			continue
		}

		targetData, targetItem, ok, err := nav.resolveUseSource(ctx, data, use)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, newHandle(targetData, targetItem, nav).WithDisplayName(use.Name))
	}
	return out, nil
}

// resolveUseTarget resolves a single Use item to the handle its
// ChildIterator should recurse into: the resolved target for a named
// use (carrying the import's name), or, for a glob use, the source
// module itself, whose children are the glob's expansion.
func (nav *Navigator) resolveUseTarget(ctx context.Context, data *crate.Data, use crate.UseInner, visited map[visitKey]bool, depth int) (*ItemHandle, error) {
	targetData, targetItem, ok, err := nav.resolveUseSource(ctx, data, use)
	if err != nil || !ok {
		return nil, err
	}
	h := newHandle(targetData, targetItem, nav)
	if !use.IsGlob {
		h = h.WithDisplayName(use.Name)
	}
	return &h, nil
}

// resolveUseSource resolves a Use item's Source id to the (CrateData,
// Item) pair it names, loading the external crate first when the id's
// ItemSummary names a non-zero defining crate-id. Cross-crate
// completion joins on the summary's recorded path, since the re-export
// chain in the local dump only carries a local id, not a foreign one.
func (nav *Navigator) resolveUseSource(ctx context.Context, data *crate.Data, use crate.UseInner) (*crate.Data, crate.Item, bool, error) {
	if use.Source == "" {
		return nil, crate.Item{}, false, nil
	}

	if item, ok := data.Item(use.Source); ok {
		summary, hasSummary := data.Summary(use.Source)
		if !hasSummary || summary.CrateId == 0 {
			return data, item, true, nil
		}
		return nav.crossCrateItem(ctx, data, summary)
	}

	summary, ok := data.Summary(use.Source)
	if !ok {
		return nil, crate.Item{}, false, nil
	}
	return nav.crossCrateItem(ctx, data, summary)
}

// crossCrateItem follows an ItemSummary whose CrateId is non-zero into
// the external crate it names, loading it through the Navigator if
// necessary, then looks the item up there by its recorded path.
func (nav *Navigator) crossCrateItem(ctx context.Context, data *crate.Data, summary crate.ItemSummary) (*crate.Data, crate.Item, bool, error) {
	name, ok := data.ExternalCrate(summary.CrateId)
	if !ok {
		return nil, crate.Item{}, false, nil
	}
	externalData, err := nav.LoadCrate(ctx, name, crate.Constraint{})
	if err != nil {
		return nil, crate.Item{}, false, err
	}
	if externalData == nil {
		return nil, crate.Item{}, false, nil
	}
	id, ok := externalData.LookupPath(joinSummaryPath(summary))
	if !ok {
		return nil, crate.Item{}, false, nil
	}
	item, ok := externalData.Item(id)
	if !ok {
		return nil, crate.Item{}, false, nil
	}
	return externalData, item, true, nil
}

// methodIterator implements impl scanning (spec.md §4.5.1): impls are
// stored flat at crate scope, so listing a type's methods means
// scanning every impl in the dump whose `for` target resolves to it.
// Both inherent and trait impls are included; TraitIterator callers
// that want only one or the other filter the ImplInner.TraitPath
// themselves via a direct Dump scan.
func (nav *Navigator) methodIterator(data *crate.Data, target crate.Id) ([]ItemHandle, error) {
	var out []ItemHandle
	for _, item := range data.Dump.Index {
		impl, ok := item.Inner.(crate.ImplInner)
		if !ok || impl.For != target {
			continue
		}
		for _, id := range impl.Items {
			member, ok := data.Item(id)
			if !ok {
				continue
			}
			out = append(out, newHandle(data, member, nav))
		}
	}
	return out, nil
}

// TraitIterator scans flat crate-scope impls for those implementing
// traitPath against target, returning their associated items.
func (nav *Navigator) TraitIterator(data *crate.Data, target crate.Id, traitPath string) ([]ItemHandle, error) {
	var out []ItemHandle
	for _, item := range data.Dump.Index {
		impl, ok := item.Inner.(crate.ImplInner)
		if !ok || impl.For != target || impl.TraitPath == "" {
			continue
		}
		if traitPath != "" && impl.TraitPath != traitPath {
			continue
		}
		for _, id := range impl.Items {
			member, ok := data.Item(id)
			if !ok {
				continue
			}
			out = append(out, newHandle(data, member, nav))
		}
	}
	return out, nil
}

func joinSummaryPath(summary crate.ItemSummary) string {
	return strings.Join(summary.Path, "::")
}

// Package navigator implements the Navigator orchestrator: two-phase
// crate resolution across SourceProviders in fixed priority order, the
// working set that owns every loaded CrateData for the lifetime of the
// Navigator, and the path/link resolution algorithms front-ends drive.
package navigator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/xrash/smetrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/docerr"
	"github.com/alexisbouchez/docnav/provider"
)

// maxSuggestions bounds the "did you mean" list returned alongside a
// failed resolve_path.
const maxSuggestions = 5

// Navigator owns the working set and drives resolution across a fixed,
// ordered list of SourceProviders (conventionally Std, Local, Remote).
type Navigator struct {
	providers    []provider.Source
	currentCrate crate.Name // optional; empty means "no current-crate context"

	mu         sync.RWMutex
	workingSet map[crate.Name]*crate.Data // nil value = negative cache entry

	group singleflight.Group
}

// New builds a Navigator over providers, consulted in the given order.
// Per spec.md §4.4 that order is conventionally Std, Local, Remote.
func New(providers ...provider.Source) *Navigator {
	return &Navigator{
		providers:  providers,
		workingSet: make(map[crate.Name]*crate.Data),
	}
}

// SetCurrentCrate records the crate a bare SingleIdent path or a
// `crate::`-prefixed path should be resolved against. Leaving it unset
// makes `crate::` paths fail with NotFound; a bare SingleIdent is then
// treated as a crate name.
func (nav *Navigator) SetCurrentCrate(name crate.Name) {
	nav.currentCrate = name
}

func (nav *Navigator) peek(name crate.Name) (*crate.Data, bool) {
	nav.mu.RLock()
	defer nav.mu.RUnlock()
	data, ok := nav.workingSet[name]
	return data, ok
}

// publish writes a single-assignment entry into the working set. Per
// spec.md §5, the working set never overwrites an existing entry: the
// first writer wins and later callers observe it, which is safe here
// because singleflight already guarantees only one loadCrateOnce runs
// per name at a time.
func (nav *Navigator) publish(name crate.Name, data *crate.Data) {
	nav.mu.Lock()
	defer nav.mu.Unlock()
	if _, exists := nav.workingSet[name]; exists {
		return
	}
	nav.workingSet[name] = data
}

// LoadCrate is the two-phase resolution spec.md §4.4 describes. Phase 1
// consults providers in fixed priority order and short-circuits on the
// first hit; Phase 2 asks that provider to produce a CrateData. Returns
// (nil, nil) if no provider can satisfy (name, constraint); concurrent
// callers loading the same name are deduplicated, and a failed lookup
// is memoized as a negative cache entry so it isn't retried within this
// Navigator's lifetime. A transport/build/IO error is not memoized,
// since it may be transient.
func (nav *Navigator) LoadCrate(ctx context.Context, name crate.Name, constraint crate.Constraint) (*crate.Data, error) {
	if data, ok := nav.peek(name); ok {
		return data, nil
	}

	v, err, _ := nav.group.Do(string(name), func() (interface{}, error) {
		if data, ok := nav.peek(name); ok {
			return data, nil
		}

		data, memoize, err := nav.loadCrateOnce(ctx, name, constraint)
		if err != nil {
			return nil, err
		}
		if memoize {
			nav.publish(name, data)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*crate.Data), nil
}

func (nav *Navigator) loadCrateOnce(ctx context.Context, name crate.Name, constraint crate.Constraint) (*crate.Data, bool, error) {
	var chosen provider.Source
	var info crate.Info
	found := false

	for _, src := range nav.providers {
		candidateInfo, ok, err := src.Lookup(ctx, name, constraint)
		if err != nil {
			return nil, false, err
		}
		if ok {
			chosen, info, found = src, candidateInfo, true
			break
		}
	}
	if !found {
		return nil, true, nil // negative cache entry: no provider had an opinion
	}

	dump, err := chosen.Load(ctx, info)
	if err != nil {
		return nil, false, err
	}

	data := crate.New(info.Name, info.Version, dump)
	if err := data.Validate(); err != nil {
		return nil, false, docerr.Wrap(docerr.Corruption, "crate failed structural validation after load", err)
	}
	return data, true, nil
}

// ResolvedPath is the result of a successful resolve_path: the handle
// reached, plus the canonical form of the path that reached it.
type ResolvedPath struct {
	Handle        ItemHandle
	CanonicalPath string
}

// ResolvePath implements spec.md §4.4's resolve_path. On failure it
// returns a docerr.NotFound error together with a short "did you mean"
// suggestion list drawn from the target crate's path index; suggestion
// generation failures are silent (an empty list), matching spec.md §7.
func (nav *Navigator) ResolvePath(ctx context.Context, rawPath string) (ResolvedPath, []string, error) {
	normalized := strings.ReplaceAll(rawPath, "/", "::")
	segments := splitPath(normalized)
	if len(segments) == 0 {
		return ResolvedPath{}, nil, docerr.New(docerr.NotFound, "empty path")
	}

	crateName, constraint, rest, err := nav.classifyPath(segments)
	if err != nil {
		return ResolvedPath{}, nil, err
	}

	data, err := nav.LoadCrate(ctx, crateName, constraint)
	if err != nil {
		return ResolvedPath{}, nil, err
	}
	if data == nil {
		return ResolvedPath{}, nil, docerr.New(docerr.NotFound, fmt.Sprintf("no provider could resolve crate %q", crateName))
	}

	if len(rest) == 0 {
		rootItem, ok := data.Root()
		if !ok {
			return ResolvedPath{}, nil, docerr.New(docerr.NotFound, fmt.Sprintf("crate %q has no root item", crateName))
		}
		return ResolvedPath{Handle: newHandle(data, rootItem, nav), CanonicalPath: string(crateName)}, nil, nil
	}

	handle, ok, err := nav.walkPath(ctx, data, rest)
	if err != nil {
		return ResolvedPath{}, nil, err
	}
	if !ok {
		suggestions := suggestPaths(data.AllPaths(), strings.Join(rest, "::"))
		return ResolvedPath{}, suggestions, docerr.New(docerr.NotFound, fmt.Sprintf("no item at path %q in crate %q", strings.Join(rest, "::"), crateName))
	}

	canonical, _ := handle.CanonicalPath()
	return ResolvedPath{Handle: handle, CanonicalPath: string(crateName) + "::" + canonical}, nil, nil
}

// classifyPath detects a leading crate (and optional version) per the
// path forms spec.md §4.4 lists, returning the crate name, the version
// constraint to load it with, and the remaining segments to walk.
func (nav *Navigator) classifyPath(segments []string) (crate.Name, crate.Constraint, []string, error) {
	first := segments[0]

	if idx := strings.Index(first, "@"); idx >= 0 {
		name := crate.Canonicalize(first[:idx])
		constraint, err := crate.ParseConstraint("=" + first[idx+1:])
		if err != nil {
			return "", crate.Constraint{}, nil, docerr.Wrap(docerr.NotFound, "invalid version in path", err)
		}
		return name, constraint, segments[1:], nil
	}

	if first == "crate" {
		if nav.currentCrate == "" {
			return "", crate.Constraint{}, nil, docerr.New(docerr.NotFound, "path uses \"crate::\" but the Navigator has no current-crate context")
		}
		return nav.currentCrate, crate.Constraint{}, segments[1:], nil
	}

	if len(segments) == 1 && nav.currentCrate != "" {
		if data, ok := nav.peek(nav.currentCrate); ok && data != nil {
			if _, ok := data.LookupPath(first); ok {
				return nav.currentCrate, crate.Constraint{}, segments, nil
			}
		}
	}

	return crate.Canonicalize(first), crate.Constraint{}, segments[1:], nil
}

// walkPath resolves the remaining path segments within data. It first
// tries the crate's path index directly (the fast path for items whose
// canonical path is already recorded, including re-exports rustdoc
// already flattened into the Paths table); if that misses, it descends
// step by step from the crate root via ChildIterator, which is the only
// way to follow a glob re-export the Paths table doesn't capture.
func (nav *Navigator) walkPath(ctx context.Context, data *crate.Data, segments []string) (ItemHandle, bool, error) {
	if id, ok := data.LookupPath(strings.Join(segments, "::")); ok {
		summary, _ := data.Summary(id)
		if summary.CrateId != 0 {
			externalData, externalItem, ok, err := nav.crossCrateItem(ctx, data, summary)
			if err != nil {
				return ItemHandle{}, false, err
			}
			if ok {
				return newHandle(externalData, externalItem, nav), true, nil
			}
		} else if item, ok := data.Item(id); ok {
			return newHandle(data, item, nav), true, nil
		}
	}

	rootItem, ok := data.Root()
	if !ok {
		return ItemHandle{}, false, nil
	}
	current := newHandle(data, rootItem, nav)
	for _, segment := range segments {
		children, err := nav.ChildIterator(ctx, current)
		if err != nil {
			return ItemHandle{}, false, err
		}
		next, ok := findChildByName(children, segment)
		if !ok {
			return ItemHandle{}, false, nil
		}
		current = next
	}
	return current, true, nil
}

func findChildByName(children []ItemHandle, name string) (ItemHandle, bool) {
	for _, h := range children {
		if h.DisplayName() == name {
			return h, true
		}
	}
	return ItemHandle{}, false
}

func findChildById(children []ItemHandle, id crate.Id) (ItemHandle, bool) {
	for _, h := range children {
		if h.item.Id == id {
			return h, true
		}
	}
	return ItemHandle{}, false
}

func splitPath(normalized string) []string {
	var out []string
	for _, s := range strings.Split(normalized, "::") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// suggestPaths returns up to maxSuggestions entries from candidates
// ordered by ascending edit distance to target, using
// github.com/xrash/smetrics's Wagner-Fischer implementation. It never
// errors; an empty candidate set just yields an empty suggestion list.
func suggestPaths(candidates []string, target string) []string {
	if len(candidates) == 0 {
		return nil
	}
	type scored struct {
		path string
		dist int
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{path: c, dist: smetrics.WagnerFischer(target, c, 1, 1, 2)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].dist != ranked[j].dist {
			return ranked[i].dist < ranked[j].dist
		}
		return ranked[i].path < ranked[j].path
	})
	n := maxSuggestions
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].path
	}
	return out
}

// LinkTarget is the resolved form of a link spec.md §4.4's resolve_link
// produces: either a same-crate ItemHandle, or an external path/URL
// that the caller can display without the Navigator loading anything
// further.
type LinkTarget struct {
	Handle   *ItemHandle
	External string
}

// ResolveLink implements the five ordered rules of spec.md §4.4. Rules
// 3 and 4 are checked ahead of rule 2 below (not in literal 2-3-4
// order): intra-doc link text and crate::/self:: prefixes are both
// unambiguous once matched, whereas the HTML-path rule is a fallback
// parse of whatever's left. This only changes behavior for link text
// that is simultaneously a links-map key/crate-prefixed *and* contains
// a "/" or ends in ".html", which doesn't occur in practice.
func (nav *Navigator) ResolveLink(ctx context.Context, origin ItemHandle, url string) (string, LinkTarget, error) {
	// Rule 1: absolute URLs and pure fragments pass through unchanged.
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "#") {
		return url, LinkTarget{External: url}, nil
	}

	// Rule 3: intra-doc link text lookup, tried before the HTML-path
	// rule so a doc string's own `[Foo]` links resolve through the
	// links map even if Foo's rendered path also looks file-like.
	if target, ok := origin.item.Links[url]; ok {
		return nav.resolveLinkTarget(origin, target)
	}
	if stripped := strings.Trim(url, "`"); stripped != url {
		if target, ok := origin.item.Links[stripped]; ok {
			return nav.resolveLinkTarget(origin, target)
		}
	}

	// Rule 4: crate::/self:: prefixes rewrite relative to origin's crate.
	if strings.HasPrefix(url, "crate::") || strings.HasPrefix(url, "self::") {
		rest := strings.TrimPrefix(strings.TrimPrefix(url, "crate::"), "self::")
		resolved, suggestions, err := nav.resolvePathWithinCrate(ctx, origin.data, rest)
		_ = suggestions
		if err == nil {
			canonical, _ := resolved.CanonicalPath()
			return nav.canonicalDocsURL(origin.data, strings.Split(canonical, "::")), LinkTarget{Handle: &resolved}, nil
		}
		// Falls through to the search-URL fallback on failure.
	}

	// Rule 2: relative HTML-style paths.
	if strings.Contains(url, "/") || strings.HasSuffix(url, ".html") {
		path := htmlPathToItemPath(url)
		docsURL := nav.canonicalDocsURL(origin.data, path)
		return docsURL, LinkTarget{External: docsURL}, nil
	}

	// Rule 5: fallback search URL against the origin's crate.
	searchURL := fmt.Sprintf("%s/search?q=%s", strings.TrimRight(string(origin.data.Name), "/"), url)
	return searchURL, LinkTarget{External: searchURL}, nil
}

func (nav *Navigator) resolveLinkTarget(origin ItemHandle, target crate.Id) (string, LinkTarget, error) {
	summary, ok := origin.data.Summary(target)
	if ok && summary.CrateId != 0 {
		ext, ok := origin.data.ExternalCrateInfo(summary.CrateId)
		if !ok {
			return "", LinkTarget{}, nil
		}
		docsURL := synthesizeExternalURL(ext, summary.Path)
		return docsURL, LinkTarget{External: docsURL}, nil
	}

	item, ok := origin.data.Item(target)
	if !ok {
		return "", LinkTarget{}, nil
	}
	handle := newHandle(origin.data, item, nav)
	canonical, _ := handle.CanonicalPath()
	return nav.canonicalDocsURL(origin.data, strings.Split(canonical, "::")), LinkTarget{Handle: &handle}, nil
}

func (nav *Navigator) resolvePathWithinCrate(ctx context.Context, data *crate.Data, rest string) (ItemHandle, []string, error) {
	segments := splitPath(rest)
	handle, ok, err := nav.walkPath(ctx, data, segments)
	if err != nil {
		return ItemHandle{}, nil, err
	}
	if !ok {
		return ItemHandle{}, suggestPaths(data.AllPaths(), rest), docerr.New(docerr.NotFound, "path not found within origin crate")
	}
	return handle, nil, nil
}

func htmlPathToItemPath(url string) []string {
	trimmed := strings.TrimSuffix(url, ".html")
	trimmed = strings.TrimSuffix(trimmed, "/index")
	var out []string
	for _, s := range strings.Split(trimmed, "/") {
		if s != "" && s != "." && s != ".." {
			out = append(out, s)
		}
	}
	return out
}

func (nav *Navigator) canonicalDocsURL(data *crate.Data, path []string) string {
	return fmt.Sprintf("https://docs.rs/%s/%s/%s", data.Name, data.Version, strings.Join(path, "/"))
}

func synthesizeExternalURL(ext crate.ExternalCrate, path []string) string {
	if ext.HTMLRootURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(ext.HTMLRootURL, "/"), strings.Join(path, "/"))
	}
	return fmt.Sprintf("https://docs.rs/%s/latest/%s", ext.Name, strings.Join(path, "/"))
}

// GetItemByIdPath walks a saved id-path from name's crate root, the
// same traversal a ChildIterator-driven UI would have produced the path
// from in the first place.
func (nav *Navigator) GetItemByIdPath(ctx context.Context, name crate.Name, idPath []crate.Id) (*ItemHandle, error) {
	data, err := nav.LoadCrate(ctx, name, crate.Constraint{})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, docerr.New(docerr.NotFound, fmt.Sprintf("crate %q could not be loaded", name))
	}
	rootItem, ok := data.Root()
	if !ok {
		return nil, docerr.New(docerr.NotFound, fmt.Sprintf("crate %q has no root item", name))
	}

	current := newHandle(data, rootItem, nav)
	for _, id := range idPath {
		children, err := nav.ChildIterator(ctx, current)
		if err != nil {
			return nil, err
		}
		next, ok := findChildById(children, id)
		if !ok {
			return nil, docerr.New(docerr.NotFound, fmt.Sprintf("id %q not reachable from current position in %s", id, name))
		}
		current = next
	}
	return &current, nil
}

// ListAvailableCrates unions list_known() across every provider
// concurrently, deduplicating by CrateName with Std > Local > Remote
// precedence (the providers' own construction order). A single
// provider's enumeration failure is logged and skipped rather than
// failing the whole call, matching spec.md §7's multi-target
// propagation policy.
func (nav *Navigator) ListAvailableCrates(ctx context.Context) ([]crate.Info, error) {
	results := make([][]crate.Info, len(nav.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range nav.providers {
		i, src := i, src
		g.Go(func() error {
			infos, err := src.ListKnown(gctx)
			if err != nil {
				log.Printf("navigator: ListKnown failed for provider %d: %v", i, err)
				return nil
			}
			results[i] = infos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[crate.Name]bool)
	var out []crate.Info
	for _, infos := range results {
		for _, info := range infos {
			if seen[info.Name] {
				continue
			}
			seen[info.Name] = true
			out = append(out, info)
		}
	}
	return out, nil
}

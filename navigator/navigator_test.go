package navigator

import (
	"context"
	"testing"

	"github.com/alexisbouchez/docnav/crate"
)

type fakeSource struct {
	name     string
	infos    map[crate.Name]crate.Info // crates this source knows about
	dumps    map[crate.Name]crate.Dump
	loadErr  error
	loads    int
	lookups  int
	listKnow []crate.Info
}

func (f *fakeSource) Canonicalize(raw string) crate.Name { return crate.Canonicalize(raw) }

func (f *fakeSource) Lookup(_ context.Context, name crate.Name, constraint crate.Constraint) (crate.Info, bool, error) {
	f.lookups++
	info, ok := f.infos[name]
	if !ok || !constraint.Matches(info.Version) {
		return crate.Info{}, false, nil
	}
	return info, true, nil
}

func (f *fakeSource) Load(_ context.Context, info crate.Info) (crate.Dump, error) {
	f.loads++
	if f.loadErr != nil {
		return crate.Dump{}, f.loadErr
	}
	return f.dumps[info.Name], nil
}

func (f *fakeSource) ListKnown(_ context.Context) ([]crate.Info, error) {
	return f.listKnow, nil
}

func mustVer(t *testing.T, raw string) crate.Version {
	t.Helper()
	v, ok := crate.NewVersion(raw)
	if !ok {
		t.Fatalf("invalid version %q", raw)
	}
	return v
}

// moduleDump builds a minimal single-module crate dump: a root module
// whose children are whatever extra items are passed in, in order,
// each keyed by its own Id.
func moduleDump(crateVersion string, extra ...crate.Item) crate.Dump {
	index := map[crate.Id]crate.Item{
		"0": {Id: "0", Name: "root", Kind: crate.KindModule, Inner: crate.ModuleInner{}},
	}
	var children []crate.Id
	paths := map[crate.Id]crate.ItemSummary{}
	for _, item := range extra {
		index[item.Id] = item
		children = append(children, item.Id)
		paths[item.Id] = crate.ItemSummary{Path: []string{item.Name}, Kind: item.Kind}
	}
	root := index["0"]
	root.Inner = crate.ModuleInner{Children: children}
	index["0"] = root

	return crate.Dump{
		FormatVersion:   33,
		Root:            "0",
		CrateVersion:    crateVersion,
		Index:           index,
		Paths:           paths,
		ExternalCrates:  map[int]crate.ExternalCrate{},
	}
}

func TestLoadCrateIdempotent(t *testing.T) {
	src := &fakeSource{infos: map[crate.Name]crate.Info{
		"serde": {Name: "serde", Version: mustVer(t, "1.0.0")},
	}, dumps: map[crate.Name]crate.Dump{
		"serde": moduleDump("1.0.0"),
	}}
	nav := New(src)

	first, err := nav.LoadCrate(context.Background(), "serde", crate.Constraint{})
	if err != nil {
		t.Fatalf("first LoadCrate: %v", err)
	}
	if first == nil {
		t.Fatal("expected serde to load")
	}
	second, err := nav.LoadCrate(context.Background(), "serde", crate.Constraint{})
	if err != nil {
		t.Fatalf("second LoadCrate: %v", err)
	}
	if first != second {
		t.Error("expected the same *crate.Data object on repeated LoadCrate")
	}
	if src.loads != 1 {
		t.Errorf("loads = %d, want 1 (idempotent)", src.loads)
	}
}

func TestLoadCrateProviderPrecedence(t *testing.T) {
	std := &fakeSource{infos: map[crate.Name]crate.Info{
		"std": {Name: "std", Version: mustVer(t, "1.82.0"), Provenance: crate.ProvenanceStdLib},
	}, dumps: map[crate.Name]crate.Dump{"std": moduleDump("1.82.0")}}
	remote := &fakeSource{infos: map[crate.Name]crate.Info{
		"std": {Name: "std", Version: mustVer(t, "9.9.9"), Provenance: crate.ProvenanceRemote},
	}, dumps: map[crate.Name]crate.Dump{"std": moduleDump("9.9.9")}}

	nav := New(std, remote)
	data, err := nav.LoadCrate(context.Background(), "std", crate.Constraint{})
	if err != nil {
		t.Fatalf("LoadCrate: %v", err)
	}
	if data.Version.String() != "1.82.0" {
		t.Errorf("Version = %s, want std's 1.82.0 (std should win over remote)", data.Version)
	}
	if remote.lookups != 0 {
		t.Error("expected remote.Lookup to never be called once std matched")
	}
}

func TestLoadCrateNegativeCacheIsMemoized(t *testing.T) {
	src := &fakeSource{infos: map[crate.Name]crate.Info{}}
	nav := New(src)

	data, err := nav.LoadCrate(context.Background(), "nonexistent", crate.Constraint{})
	if err != nil {
		t.Fatalf("LoadCrate: %v", err)
	}
	if data != nil {
		t.Fatal("expected nil data for an unsatisfiable lookup")
	}
	if _, err := nav.LoadCrate(context.Background(), "nonexistent", crate.Constraint{}); err != nil {
		t.Fatalf("second LoadCrate: %v", err)
	}
	if src.lookups != 1 {
		t.Errorf("lookups = %d, want 1 (negative result memoized)", src.lookups)
	}
}

func TestResolvePathCrateRootWithNoTrailingSegments(t *testing.T) {
	src := &fakeSource{infos: map[crate.Name]crate.Info{
		"serde": {Name: "serde", Version: mustVer(t, "1.0.0")},
	}, dumps: map[crate.Name]crate.Dump{"serde": moduleDump("1.0.0")}}
	nav := New(src)

	resolved, _, err := nav.ResolvePath(context.Background(), "serde")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if resolved.Handle.Item().Id != "0" {
		t.Errorf("expected the crate root item, got id %q", resolved.Handle.Item().Id)
	}
}

func TestResolvePathNotFoundReturnsSuggestions(t *testing.T) {
	thing := crate.Item{Id: "1", Name: "Thing", Kind: crate.KindStruct, Inner: crate.StructInner{}}
	src := &fakeSource{infos: map[crate.Name]crate.Info{
		"serde": {Name: "serde", Version: mustVer(t, "1.0.0")},
	}, dumps: map[crate.Name]crate.Dump{"serde": moduleDump("1.0.0", thing)}}
	nav := New(src)

	_, suggestions, err := nav.ResolvePath(context.Background(), "serde::Thingg")
	if err == nil {
		t.Fatal("expected resolve_path for a nonexistent item to fail")
	}
	found := false
	for _, s := range suggestions {
		if s == "Thing" {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions = %v, want to include the close-by path \"Thing\"", suggestions)
	}
}

func TestChildIteratorNamedReExportResolvesToOriginal(t *testing.T) {
	original := crate.Item{Id: "1", Name: "Vec", Kind: crate.KindStruct, Inner: crate.StructInner{}, Visible: true}
	use := crate.Item{Id: "2", Name: "Vec", Kind: crate.KindUse, Inner: crate.UseInner{Source: "1", Name: "Vec"}, Visible: true}
	index := map[crate.Id]crate.Item{
		"0": {Id: "0", Name: "root", Kind: crate.KindModule, Inner: crate.ModuleInner{Children: []crate.Id{"2"}}},
		"1": original, "2": use,
	}
	dump := crate.Dump{FormatVersion: 33, Root: "0", CrateVersion: "1.0.0", Index: index,
		Paths: map[crate.Id]crate.ItemSummary{}, ExternalCrates: map[int]crate.ExternalCrate{}}

	src := &fakeSource{infos: map[crate.Name]crate.Info{"mycrate": {Name: "mycrate", Version: mustVer(t, "1.0.0")}},
		dumps: map[crate.Name]crate.Dump{"mycrate": dump}}
	nav := New(src)

	data, err := nav.LoadCrate(context.Background(), "mycrate", crate.Constraint{})
	if err != nil {
		t.Fatalf("LoadCrate: %v", err)
	}
	root, _ := data.Root()
	children, err := nav.ChildIterator(context.Background(), newHandle(data, root, nav))
	if err != nil {
		t.Fatalf("ChildIterator: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("len(children) = %d, want 1", len(children))
	}
	if children[0].Item().Id != "1" {
		t.Errorf("expected the re-export to resolve to the original item id 1, got %q", children[0].Item().Id)
	}
	if children[0].DisplayName() != "Vec" {
		t.Errorf("DisplayName() = %q, want Vec", children[0].DisplayName())
	}
}

func TestChildIteratorGlobReExportYieldsOriginalNames(t *testing.T) {
	a := crate.Item{Id: "1", Name: "Alpha", Kind: crate.KindStruct, Inner: crate.StructInner{}, Visible: true}
	b := crate.Item{Id: "2", Name: "Beta", Kind: crate.KindStruct, Inner: crate.StructInner{}, Visible: true}
	sourceMod := crate.Item{Id: "3", Name: "inner", Kind: crate.KindModule, Inner: crate.ModuleInner{Children: []crate.Id{"1", "2"}}}
	glob := crate.Item{Id: "4", Name: "", Kind: crate.KindUse, Inner: crate.UseInner{Source: "3", IsGlob: true}, Visible: true}

	index := map[crate.Id]crate.Item{
		"0": {Id: "0", Name: "root", Kind: crate.KindModule, Inner: crate.ModuleInner{Children: []crate.Id{"4"}}},
		"1": a, "2": b, "3": sourceMod, "4": glob,
	}
	dump := crate.Dump{FormatVersion: 33, Root: "0", CrateVersion: "1.0.0", Index: index,
		Paths: map[crate.Id]crate.ItemSummary{}, ExternalCrates: map[int]crate.ExternalCrate{}}

	src := &fakeSource{infos: map[crate.Name]crate.Info{"mycrate": {Name: "mycrate", Version: mustVer(t, "1.0.0")}},
		dumps: map[crate.Name]crate.Dump{"mycrate": dump}}
	nav := New(src)

	data, err := nav.LoadCrate(context.Background(), "mycrate", crate.Constraint{})
	if err != nil {
		t.Fatalf("LoadCrate: %v", err)
	}
	root, _ := data.Root()
	children, err := nav.ChildIterator(context.Background(), newHandle(data, root, nav))
	if err != nil {
		t.Fatalf("ChildIterator: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2 (Alpha and Beta via the glob)", len(children))
	}
	names := map[string]bool{}
	for _, c := range children {
		names[c.DisplayName()] = true
	}
	if !names["Alpha"] || !names["Beta"] {
		t.Errorf("names = %v, want Alpha and Beta", names)
	}
}

func TestGetItemByIdPath(t *testing.T) {
	child := crate.Item{Id: "1", Name: "Thing", Kind: crate.KindStruct, Inner: crate.StructInner{}, Visible: true}
	src := &fakeSource{infos: map[crate.Name]crate.Info{"mycrate": {Name: "mycrate", Version: mustVer(t, "1.0.0")}},
		dumps: map[crate.Name]crate.Dump{"mycrate": moduleDump("1.0.0", child)}}
	nav := New(src)

	handle, err := nav.GetItemByIdPath(context.Background(), "mycrate", []crate.Id{"1"})
	if err != nil {
		t.Fatalf("GetItemByIdPath: %v", err)
	}
	if handle.Item().Id != "1" {
		t.Errorf("Item().Id = %q, want 1", handle.Item().Id)
	}
}

func TestListAvailableCratesDedupesByPrecedence(t *testing.T) {
	std := &fakeSource{listKnow: []crate.Info{{Name: "std", Provenance: crate.ProvenanceStdLib}}}
	local := &fakeSource{listKnow: []crate.Info{{Name: "std", Provenance: crate.ProvenanceWorkspace}, {Name: "mycrate", Provenance: crate.ProvenanceWorkspace}}}
	nav := New(std, local)

	infos, err := nav.ListAvailableCrates(context.Background())
	if err != nil {
		t.Fatalf("ListAvailableCrates: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(infos))
	}
	for _, info := range infos {
		if info.Name == "std" && info.Provenance != crate.ProvenanceStdLib {
			t.Errorf("std entry Provenance = %v, want StdLib (should win over workspace)", info.Provenance)
		}
	}
}

func TestResolveLinkIntraDocSameCrate(t *testing.T) {
	target := crate.Item{Id: "1", Name: "Thing", Kind: crate.KindStruct, Inner: crate.StructInner{}}
	origin := crate.Item{Id: "2", Name: "caller", Kind: crate.KindFunction, Inner: crate.FunctionInner{},
		Links: map[string]crate.Id{"Thing": "1"}}
	index := map[crate.Id]crate.Item{
		"0": {Id: "0", Name: "root", Kind: crate.KindModule, Inner: crate.ModuleInner{Children: []crate.Id{"1", "2"}}},
		"1": target, "2": origin,
	}
	dump := crate.Dump{FormatVersion: 33, Root: "0", CrateVersion: "1.0.0", Index: index,
		Paths:          map[crate.Id]crate.ItemSummary{"1": {Path: []string{"Thing"}, Kind: crate.KindStruct}},
		ExternalCrates: map[int]crate.ExternalCrate{}}

	src := &fakeSource{infos: map[crate.Name]crate.Info{"mycrate": {Name: "mycrate", Version: mustVer(t, "1.0.0")}},
		dumps: map[crate.Name]crate.Dump{"mycrate": dump}}
	nav := New(src)

	data, err := nav.LoadCrate(context.Background(), "mycrate", crate.Constraint{})
	if err != nil {
		t.Fatalf("LoadCrate: %v", err)
	}
	originHandle := newHandle(data, origin, nav)

	_, target2, err := nav.ResolveLink(context.Background(), originHandle, "Thing")
	if err != nil {
		t.Fatalf("ResolveLink: %v", err)
	}
	if target2.Handle == nil {
		t.Fatal("expected a resolved same-crate handle")
	}
	if target2.Handle.Item().Id != "1" {
		t.Errorf("resolved id = %q, want 1", target2.Handle.Item().Id)
	}
}

func TestResolveLinkAbsoluteURLPassesThrough(t *testing.T) {
	origin := crate.Item{Id: "1", Name: "caller", Kind: crate.KindFunction, Inner: crate.FunctionInner{}}
	src := &fakeSource{infos: map[crate.Name]crate.Info{"mycrate": {Name: "mycrate", Version: mustVer(t, "1.0.0")}},
		dumps: map[crate.Name]crate.Dump{"mycrate": moduleDump("1.0.0")}}
	nav := New(src)
	data, _ := nav.LoadCrate(context.Background(), "mycrate", crate.Constraint{})

	url, target, err := nav.ResolveLink(context.Background(), newHandle(data, origin, nav), "https://example.com/x")
	if err != nil {
		t.Fatalf("ResolveLink: %v", err)
	}
	if url != "https://example.com/x" || target.External != url {
		t.Errorf("got url=%q target=%+v, want passthrough", url, target)
	}
}

package normalize

import (
	"fmt"
	"strconv"

	"github.com/alexisbouchez/docnav/crate"
)

// migrateV31ToV32 applies the one schema change between V31 and V32:
// V31 dumps never recorded per-item visibility (everything present in
// the dump had already been filtered to what includes_private allows),
// so V32 introduces an explicit Visible flag. Migrating forward simply
// fills it in as true wherever the source dump left it unset.
func migrateV31ToV32(d legacyDump) legacyDump {
	out := d
	out.Index = make(map[int]legacyItem, len(d.Index))
	for id, item := range d.Index {
		if item.Visible == nil {
			t := true
			item.Visible = &t
		}
		out.Index[id] = item
	}
	out.FormatVersion = CurrentFormatVersion - 1
	return out
}

// migrateV32ToV33 applies the other schema change this build knows
// about: V33 replaced integer item ids with opaque strings (so ids
// remain stable across incremental rebuilds). This rewrites every id
// and id-reference in the dump to its string form and produces the
// current-schema crate.Dump directly, since V33 is also this build's
// native format.
func migrateV32ToV33(d legacyDump) crate.Dump {
	toId := func(n int) crate.Id { return crate.Id(strconv.Itoa(n)) }

	out := crate.Dump{
		FormatVersion:   CurrentFormatVersion,
		Root:            toId(d.Root),
		CrateVersion:    d.CrateVersion,
		IncludesPrivate: d.IncludesPrivate,
		Index:           make(map[crate.Id]crate.Item, len(d.Index)),
		Paths:           make(map[crate.Id]crate.ItemSummary, len(d.Paths)),
		ExternalCrates:  d.ExternalCrates,
	}

	for id, item := range d.Index {
		links := make(map[string]crate.Id, len(item.Links))
		for text, target := range item.Links {
			links[text] = toId(target)
		}
		visible := true
		if item.Visible != nil {
			visible = *item.Visible
		}
		out.Index[toId(id)] = crate.Item{
			Id: toId(id), Name: item.Name, Kind: item.Kind, Docs: item.Docs,
			Links: links, Visible: visible, Inner: migrateInner(item.Inner, toId),
		}
	}

	for id, summary := range d.Paths {
		out.Paths[toId(id)] = crate.ItemSummary{Path: summary.Path, CrateId: summary.CrateId, Kind: summary.Kind}
	}

	return out
}

func migrateInner(inner legacyInner, toId func(int) crate.Id) crate.ItemInner {
	idsOf := func(ns []int) []crate.Id {
		out := make([]crate.Id, len(ns))
		for i, n := range ns {
			out[i] = toId(n)
		}
		return out
	}

	switch v := inner.(type) {
	case legacyModuleInner:
		return crate.ModuleInner{Children: idsOf(v.Children)}
	case legacyStructInner:
		return crate.StructInner{Fields: idsOf(v.Fields)}
	case legacyUnionInner:
		return crate.UnionInner{Fields: idsOf(v.Fields)}
	case legacyEnumInner:
		return crate.EnumInner{Variants: idsOf(v.Variants)}
	case legacyVariantInner:
		return crate.VariantInner{Fields: idsOf(v.Fields)}
	case legacyTraitInner:
		return crate.TraitInner{Items: idsOf(v.Items)}
	case legacyImplInner:
		out := crate.ImplInner{TraitPath: v.TraitPath, ForName: v.ForName, Items: idsOf(v.Items)}
		if v.HasFor {
			out.For = toId(v.For)
		}
		return out
	case legacyUseInner:
		out := crate.UseInner{Name: v.Name, IsGlob: v.IsGlob}
		if v.HasSource {
			out.Source = toId(v.Source)
		}
		return out
	case legacyExternCrateInner:
		return crate.ExternCrateInner{CrateId: v.CrateId, Rename: v.Rename}
	default:
		return crate.FunctionInner{}
	}
}

// decodeCurrent decodes a current-schema (V33) dump, whose ids are
// already opaque strings, directly into a crate.Dump.
func decodeCurrent(raw []byte) (crate.Dump, error) {
	var w struct {
		FormatVersion   int                       `json:"format_version"`
		Root            string                    `json:"root"`
		CrateVersion    string                     `json:"crate_version"`
		IncludesPrivate bool                       `json:"includes_private"`
		Index           map[string]currentWireItem `json:"index"`
		Paths           map[string]wireSummary     `json:"paths"`
		ExternalCrates  map[string]wireExtern      `json:"external_crates"`
	}
	if err := unmarshalBytes(raw, &w); err != nil {
		return crate.Dump{}, err
	}

	out := crate.Dump{
		FormatVersion:   w.FormatVersion,
		Root:            crate.Id(w.Root),
		CrateVersion:    w.CrateVersion,
		IncludesPrivate: w.IncludesPrivate,
		Index:           make(map[crate.Id]crate.Item, len(w.Index)),
		Paths:           make(map[crate.Id]crate.ItemSummary, len(w.Paths)),
		ExternalCrates:  make(map[int]crate.ExternalCrate, len(w.ExternalCrates)),
	}

	for key, wi := range w.Index {
		inner, err := decodeCurrentInner(wi.Kind, wi.Inner)
		if err != nil {
			return crate.Dump{}, fmt.Errorf("item %s: %w", key, err)
		}
		links := make(map[string]crate.Id, len(wi.Links))
		for text, target := range wi.Links {
			links[text] = crate.Id(target)
		}
		visible := true
		if wi.Visible != nil {
			visible = *wi.Visible
		}
		out.Index[crate.Id(key)] = crate.Item{
			Id: crate.Id(key), Name: wi.Name, Kind: wi.Kind, Docs: wi.Docs,
			Links: links, Visible: visible, Inner: inner,
		}
	}

	for key, ws := range w.Paths {
		out.Paths[crate.Id(key)] = crate.ItemSummary{Path: ws.Path, CrateId: ws.CrateId, Kind: ws.Kind}
	}

	for key, we := range w.ExternalCrates {
		id, err := strconv.Atoi(key)
		if err != nil {
			return crate.Dump{}, fmt.Errorf("external_crates key %q is not an integer id", key)
		}
		out.ExternalCrates[id] = crate.ExternalCrate{Name: we.Name, HTMLRootURL: we.HTMLRootURL}
	}

	return out, nil
}

type currentWireItem struct {
	Name    string             `json:"name"`
	Kind    crate.Kind         `json:"kind"`
	Docs    string             `json:"docs"`
	Links   map[string]string  `json:"links"`
	Visible *bool              `json:"visible"`
	Inner   map[string]rawJSON `json:"inner"`
}

func decodeCurrentInner(kind crate.Kind, raw map[string]rawJSON) (crate.ItemInner, error) {
	switch kind {
	case crate.KindModule:
		var v struct {
			Items []string `json:"items"`
		}
		if err := unmarshalRawField(raw, "module", &v); err != nil {
			return nil, err
		}
		return crate.ModuleInner{Children: stringsToIds(v.Items)}, nil

	case crate.KindStruct:
		var v struct {
			Fields []string `json:"fields"`
		}
		_ = unmarshalRawField(raw, "struct", &v)
		return crate.StructInner{Fields: stringsToIds(v.Fields)}, nil

	case crate.KindUnion:
		var v struct {
			Fields []string `json:"fields"`
		}
		_ = unmarshalRawField(raw, "union", &v)
		return crate.UnionInner{Fields: stringsToIds(v.Fields)}, nil

	case crate.KindEnum:
		var v struct {
			Variants []string `json:"variants"`
		}
		_ = unmarshalRawField(raw, "enum", &v)
		return crate.EnumInner{Variants: stringsToIds(v.Variants)}, nil

	case crate.KindVariant:
		var v struct {
			Fields []string `json:"fields"`
		}
		_ = unmarshalRawField(raw, "variant", &v)
		return crate.VariantInner{Fields: stringsToIds(v.Fields)}, nil

	case crate.KindTrait:
		var v struct {
			Items []string `json:"items"`
		}
		_ = unmarshalRawField(raw, "trait", &v)
		return crate.TraitInner{Items: stringsToIds(v.Items)}, nil

	case crate.KindImpl:
		var v struct {
			TraitPath string   `json:"trait_path"`
			For       string   `json:"for"`
			ForName   string   `json:"for_name"`
			Items     []string `json:"items"`
		}
		_ = unmarshalRawField(raw, "impl", &v)
		return crate.ImplInner{TraitPath: v.TraitPath, For: crate.Id(v.For), ForName: v.ForName, Items: stringsToIds(v.Items)}, nil

	case crate.KindUse:
		var v struct {
			Source string `json:"source"`
			Name   string `json:"name"`
			Glob   bool   `json:"is_glob"`
		}
		_ = unmarshalRawField(raw, "use", &v)
		return crate.UseInner{Source: crate.Id(v.Source), Name: v.Name, IsGlob: v.Glob}, nil

	case crate.KindExternCrate:
		var v struct {
			CrateId int    `json:"crate_id"`
			Rename  string `json:"rename"`
		}
		_ = unmarshalRawField(raw, "extern_crate", &v)
		return crate.ExternCrateInner{CrateId: v.CrateId, Rename: v.Rename}, nil

	default:
		return crate.FunctionInner{}, nil
	}
}

func stringsToIds(ss []string) []crate.Id {
	out := make([]crate.Id, len(ss))
	for i, s := range ss {
		out[i] = crate.Id(s)
	}
	return out
}

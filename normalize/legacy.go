package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alexisbouchez/docnav/crate"
)

// legacyDump is the shared in-memory shape for the two old schema
// versions this build still reads (V31, V32). Both use JSON integers
// for ids instead of the opaque strings the current schema uses;
// V31 additionally omits per-item visibility, which V32 introduced.
type legacyDump struct {
	FormatVersion   int
	Root            int
	CrateVersion    string
	IncludesPrivate bool
	Index           map[int]legacyItem
	Paths           map[int]legacyItemSummary
	ExternalCrates  map[int]crate.ExternalCrate
}

type legacyItem struct {
	Id      int
	Name    string
	Kind    crate.Kind
	Docs    string
	Links   map[string]int
	Visible *bool // nil means "not recorded in this schema version"
	Inner   legacyInner
}

type legacyItemSummary struct {
	Path    []string
	CrateId int
	Kind    crate.Kind
}

// legacyInner mirrors crate.ItemInner but every id field is an int.
type legacyInner interface {
	isLegacyInner()
}

type legacyModuleInner struct{ Children []int }
type legacyStructInner struct{ Fields []int }
type legacyUnionInner struct{ Fields []int }
type legacyEnumInner struct{ Variants []int }
type legacyVariantInner struct{ Fields []int }
type legacyTraitInner struct{ Items []int }
type legacyImplInner struct {
	TraitPath string
	For       int
	HasFor    bool
	ForName   string
	Items     []int
}
type legacyUseInner struct {
	Source    int
	HasSource bool
	Name      string
	IsGlob    bool
}
type legacyExternCrateInner struct {
	CrateId int
	Rename  string
}
type legacyLeafInner struct{ Text string } // function/constant/static/type_alias/macro/field/assoc_*

func (legacyModuleInner) isLegacyInner()      {}
func (legacyStructInner) isLegacyInner()      {}
func (legacyUnionInner) isLegacyInner()       {}
func (legacyEnumInner) isLegacyInner()        {}
func (legacyVariantInner) isLegacyInner()     {}
func (legacyTraitInner) isLegacyInner()       {}
func (legacyImplInner) isLegacyInner()        {}
func (legacyUseInner) isLegacyInner()         {}
func (legacyExternCrateInner) isLegacyInner() {}
func (legacyLeafInner) isLegacyInner()        {}

// --- JSON wire shapes for the legacy decoder ---

type wireItem struct {
	Id      int                        `json:"id"`
	Name    string                     `json:"name"`
	Kind    crate.Kind                 `json:"kind"`
	Docs    string                     `json:"docs"`
	Links   map[string]int             `json:"links"`
	Visible *bool                      `json:"visible"`
	Inner   map[string]json.RawMessage `json:"inner"`
}

type wireSummary struct {
	Path    []string   `json:"path"`
	CrateId int        `json:"crate_id"`
	Kind    crate.Kind `json:"kind"`
}

type wireDump struct {
	FormatVersion   int                    `json:"format_version"`
	Root            int                    `json:"root"`
	CrateVersion    string                 `json:"crate_version"`
	IncludesPrivate bool                   `json:"includes_private"`
	Index           map[string]wireItem    `json:"index"`
	Paths           map[string]wireSummary `json:"paths"`
	ExternalCrates  map[string]wireExtern  `json:"external_crates"`
}

type wireExtern struct {
	Name        string `json:"name"`
	HTMLRootURL string `json:"html_root_url"`
}

func decodeLegacy(raw []byte) (legacyDump, error) {
	var w wireDump
	if err := json.Unmarshal(raw, &w); err != nil {
		return legacyDump{}, err
	}

	out := legacyDump{
		FormatVersion:   w.FormatVersion,
		Root:            w.Root,
		CrateVersion:    w.CrateVersion,
		IncludesPrivate: w.IncludesPrivate,
		Index:           make(map[int]legacyItem, len(w.Index)),
		Paths:           make(map[int]legacyItemSummary, len(w.Paths)),
		ExternalCrates:  make(map[int]crate.ExternalCrate, len(w.ExternalCrates)),
	}

	for key, wi := range w.Index {
		id, err := strconv.Atoi(key)
		if err != nil {
			return legacyDump{}, fmt.Errorf("index key %q is not an integer id", key)
		}
		inner, err := decodeLegacyInner(wi.Kind, wi.Inner)
		if err != nil {
			return legacyDump{}, fmt.Errorf("item %d: %w", id, err)
		}
		out.Index[id] = legacyItem{
			Id: id, Name: wi.Name, Kind: wi.Kind, Docs: wi.Docs,
			Links: wi.Links, Visible: wi.Visible, Inner: inner,
		}
	}

	for key, ws := range w.Paths {
		id, err := strconv.Atoi(key)
		if err != nil {
			return legacyDump{}, fmt.Errorf("paths key %q is not an integer id", key)
		}
		out.Paths[id] = legacyItemSummary{Path: ws.Path, CrateId: ws.CrateId, Kind: ws.Kind}
	}

	for key, we := range w.ExternalCrates {
		id, err := strconv.Atoi(key)
		if err != nil {
			return legacyDump{}, fmt.Errorf("external_crates key %q is not an integer id", key)
		}
		out.ExternalCrates[id] = crate.ExternalCrate{Name: we.Name, HTMLRootURL: we.HTMLRootURL}
	}

	return out, nil
}

func decodeLegacyInner(kind crate.Kind, raw map[string]json.RawMessage) (legacyInner, error) {
	switch kind {
	case crate.KindModule:
		var v struct {
			Items []int `json:"items"`
		}
		if err := unmarshalField(raw, "module", &v); err != nil {
			return nil, err
		}
		return legacyModuleInner{Children: v.Items}, nil

	case crate.KindStruct:
		var v struct {
			Fields []int `json:"fields"`
		}
		_ = unmarshalField(raw, "struct", &v)
		return legacyStructInner{Fields: v.Fields}, nil

	case crate.KindUnion:
		var v struct {
			Fields []int `json:"fields"`
		}
		_ = unmarshalField(raw, "union", &v)
		return legacyUnionInner{Fields: v.Fields}, nil

	case crate.KindEnum:
		var v struct {
			Variants []int `json:"variants"`
		}
		_ = unmarshalField(raw, "enum", &v)
		return legacyEnumInner{Variants: v.Variants}, nil

	case crate.KindVariant:
		var v struct {
			Fields []int `json:"fields"`
		}
		_ = unmarshalField(raw, "variant", &v)
		return legacyVariantInner{Fields: v.Fields}, nil

	case crate.KindTrait:
		var v struct {
			Items []int `json:"items"`
		}
		_ = unmarshalField(raw, "trait", &v)
		return legacyTraitInner{Items: v.Items}, nil

	case crate.KindImpl:
		var v struct {
			TraitPath string `json:"trait_path"`
			For       *int   `json:"for"`
			ForName   string `json:"for_name"`
			Items     []int  `json:"items"`
		}
		_ = unmarshalField(raw, "impl", &v)
		out := legacyImplInner{TraitPath: v.TraitPath, ForName: v.ForName, Items: v.Items}
		if v.For != nil {
			out.For, out.HasFor = *v.For, true
		}
		return out, nil

	case crate.KindUse:
		var v struct {
			Source *int   `json:"source"`
			Name   string `json:"name"`
			Glob   bool   `json:"is_glob"`
		}
		_ = unmarshalField(raw, "use", &v)
		out := legacyUseInner{Name: v.Name, IsGlob: v.Glob}
		if v.Source != nil {
			out.Source, out.HasSource = *v.Source, true
		}
		return out, nil

	case crate.KindExternCrate:
		var v struct {
			CrateId int    `json:"crate_id"`
			Rename  string `json:"rename"`
		}
		_ = unmarshalField(raw, "extern_crate", &v)
		return legacyExternCrateInner{CrateId: v.CrateId, Rename: v.Rename}, nil

	default:
		// Leaf kinds (function, constant, static, type_alias, macro,
		// struct_field, assoc_const, assoc_type, primitive) carry no id
		// references, so no per-kind int->string migration is needed.
		return legacyLeafInner{}, nil
	}
}

// unmarshalField decodes raw[key] into dst if present; a missing key
// (an item whose inner payload is empty, e.g. a unit struct) is not an
// error.
func unmarshalField(raw map[string]json.RawMessage, key string, dst any) error {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(msg, dst)
}

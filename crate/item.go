// Package crate holds the in-memory data model for one parsed rustdoc
// JSON crate dump: items, their summaries, external-crate references,
// and the CrateData type that owns them. The JSON schema itself is a
// given external format (produced by the toolchain's doc generator);
// this package only defines the Go shapes used to navigate it.
package crate

import "strings"

// Id identifies an Item uniquely within the crate dump that defines it.
// On disk this is a string in current-schema dumps; FormatNormalizer
// is responsible for turning the integer ids used by older dumps into
// this shape before a CrateData is built.
type Id string

// Kind discriminates an Item's body. The taxonomy mirrors what a Rust
// item can be: modules, the nominal types, traits, functions, impls,
// associated items, and re-exports.
type Kind string

const (
	KindModule      Kind = "module"
	KindStruct      Kind = "struct"
	KindEnum        Kind = "enum"
	KindVariant     Kind = "variant"
	KindUnion       Kind = "union"
	KindTrait       Kind = "trait"
	KindFunction    Kind = "function"
	KindMethod      Kind = "method"
	KindImpl        Kind = "impl"
	KindTypeAlias   Kind = "type_alias"
	KindConstant    Kind = "constant"
	KindStatic      Kind = "static"
	KindMacro       Kind = "macro"
	KindUse         Kind = "use"
	KindAssocConst  Kind = "assoc_const"
	KindAssocType   Kind = "assoc_type"
	KindStructField Kind = "struct_field"
	KindPrimitive   Kind = "primitive"
	KindExternCrate Kind = "extern_crate"
)

// Item is one addressable entity in a crate dump: a kind-discriminated
// body, an id unique within the crate, and the intra-doc links found in
// its documentation string (display text -> target id).
type Item struct {
	Id      Id
	Name    string
	Kind    Kind
	Docs    string
	Links   map[string]Id // raw or backtick-stripped link text -> target Id
	Visible bool          // false for non-pub items; ChildIterator skips these

	Inner ItemInner
}

// ItemInner is implemented by the kind-specific payload types below.
// It exists purely as a marker so Item.Inner can hold exactly one of
// them; callers type-switch on it.
type ItemInner interface {
	isItemInner()
}

// ModuleInner lists a module's direct children by id, in declaration
// order. Re-exports (Use items) among them are expanded transparently
// by IdIterator, not here.
type ModuleInner struct {
	Children []Id
}

func (ModuleInner) isItemInner() {}

// StructInner/UnionInner carry no children of their own; their methods
// live in flat, crate-scoped Impl items and are found by scanning (see
// the navigator package's methodIterator).
type StructInner struct {
	Fields []Id
}

func (StructInner) isItemInner() {}

type UnionInner struct {
	Fields []Id
}

func (UnionInner) isItemInner() {}

// EnumInner lists variant ids; methods are found the same way as for
// structs, by impl scanning.
type EnumInner struct {
	Variants []Id
}

func (EnumInner) isItemInner() {}

// VariantInner optionally carries the variant's fields (struct-like
// variants); it has no children relevant to navigation beyond that.
type VariantInner struct {
	Fields []Id
}

func (VariantInner) isItemInner() {}

// TraitInner lists associated items (methods, assoc consts/types)
// declared directly on the trait.
type TraitInner struct {
	Items []Id
}

func (TraitInner) isItemInner() {}

// ImplInner represents one `impl` block. Impls are stored flat at crate
// scope (never nested under the type they target); TraitPath is empty
// for an inherent impl. For is the id of the item the impl targets, when
// that item is local; ForName is always set and is used when For is
// empty (the target is an external or non-path type).
type ImplInner struct {
	TraitPath string // empty for an inherent impl
	For       Id     // local target item id, if resolvable
	ForName   string // display name of the impl's Self type
	Items     []Id   // methods / assoc consts / assoc types in this impl
}

func (ImplInner) isItemInner() {}

// FunctionInner, ConstantInner, StaticInner, TypeAliasInner, MacroInner,
// StructFieldInner, AssocConstInner, AssocTypeInner carry no navigable
// children; ChildIterator yields them as leaves.
type FunctionInner struct{ Signature string }

func (FunctionInner) isItemInner() {}

type ConstantInner struct{ TypeName string }

func (ConstantInner) isItemInner() {}

type StaticInner struct{ TypeName string }

func (StaticInner) isItemInner() {}

type TypeAliasInner struct{ TargetName string }

func (TypeAliasInner) isItemInner() {}

type MacroInner struct{ Signature string }

func (MacroInner) isItemInner() {}

type StructFieldInner struct{ TypeName string }

func (StructFieldInner) isItemInner() {}

type AssocConstInner struct{ TypeName string }

func (AssocConstInner) isItemInner() {}

type AssocTypeInner struct{ TargetName string }

func (AssocTypeInner) isItemInner() {}

// UseInner represents a `use` (re-export) item: either a glob import
// (`pub use path::*`) or a named one, optionally renamed
// (`pub use path::X as Y`).
type UseInner struct {
	Source Id     // the id of the item being re-exported, if local
	Name   string // the name this use introduces (the alias, or the original name)
	IsGlob bool
}

func (UseInner) isItemInner() {}

// ExternCrateInner marks a local name bound to another crate entirely
// (`extern crate foo as bar`); navigation treats it like a Use whose
// target lives in a different crate.
type ExternCrateInner struct {
	CrateId int
	Rename  string
}

func (ExternCrateInner) isItemInner() {}

// ItemSummary is the per-id metadata every item carries alongside its
// body: its fully qualified path and the id of the crate that defines
// it (0 means "this crate").
type ItemSummary struct {
	Path    []string
	CrateId int
	Kind    Kind
}

// ExternalCrate is one entry of a crate dump's external-crates table:
// a local crate-id mapped to the crate it actually names, plus an
// optional docs-root URL used to synthesize links without loading it.
type ExternalCrate struct {
	Name        string
	HTMLRootURL string // empty if unknown
}

// IsDeprecated reports whether a documentation string carries a
// "Deprecated:" marker at the start of any line, the first line
// included. Adapted from the teacher's
// util.IsDeprecated, which did the same check for Go doc comments.
func IsDeprecated(docs string) bool {
	trimmed := strings.TrimSpace(docs)
	if strings.HasPrefix(trimmed, "Deprecated:") {
		return true
	}
	return strings.Contains(trimmed, "\nDeprecated:") || strings.Contains(trimmed, "\n\nDeprecated:")
}

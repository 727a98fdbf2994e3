// Package search implements the lazy per-crate BM25 index spec.md §4.6
// describes: corpus construction over a navigator.Navigator-driven
// traversal, CamelCase/snake_case/kebab-case-aware tokenization,
// authority-boosted scoring, and multi-crate ranked merge.
package search

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// stripFencedCode parses a documentation string as markdown and
// returns its prose with fenced and indented code blocks, and inline
// code spans, removed. Per spec.md §4.6 only the prose contributes to
// a document's indexed text.
func stripFencedCode(docs string) string {
	if strings.TrimSpace(docs) == "" {
		return ""
	}
	source := []byte(docs)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindCodeSpan:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			t := n.(*ast.Text)
			buf.Write(t.Segment.Value(source))
			buf.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// Tokenize lowercases text, splits it on non-alphanumeric boundaries,
// and additionally splits each resulting token along CamelCase,
// snake_case, and kebab-case boundaries, emitting both the original
// token and its sub-tokens. Per spec.md §4.6 there is no stop-token
// policy beyond dropping empty strings.
func Tokenize(text string) []string {
	var out []string
	for _, raw := range splitNonAlphanumeric(text) {
		if raw == "" {
			continue
		}
		lower := strings.ToLower(raw)
		out = append(out, lower)
		for _, sub := range splitWordBoundaries(raw) {
			subLower := strings.ToLower(sub)
			if subLower != "" && subLower != lower {
				out = append(out, subLower)
			}
		}
	}
	return out
}

func splitNonAlphanumeric(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// splitWordBoundaries splits one already-alphanumeric token along
// CamelCase transitions (including an acronym boundary like "HTTPServer"
// -> "HTTP", "Server") and underscore/hyphen boundaries (which
// splitNonAlphanumeric would already have handled for a whole-text
// split, but tokens arriving pre-split, e.g. from a struct field name
// carrying its own underscores, still need it here).
func splitWordBoundaries(token string) []string {
	var out []string
	var cur []rune
	runes := []rune(token)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = nil
		}
	}
	for i, r := range runes {
		if r == '_' || r == '-' {
			flush()
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
				flush()
			case unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(prev):
				flush() // acronym -> word boundary, e.g. "HTTPServer" -> "HTTP", "Server"
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// buildDocumentText concatenates an item's terminal name (weighted 2x
// by repetition, per spec.md §4.6) with its doc string's stripped
// prose.
func buildDocumentText(name, docs string) string {
	return name + " " + name + " " + stripFencedCode(docs)
}

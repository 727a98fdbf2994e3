package search

import (
	"math"
	"sort"

	"github.com/alexisbouchez/docnav/crate"
)

// BM25 tuning constants, per spec.md §4.6.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// ScoredDocument is one ranked hit: which crate it came from, its
// id-path from that crate's root (a stable cross-session reference),
// its display path, and its final score.
type ScoredDocument struct {
	CrateName crate.Name
	IdPath    []crate.Id
	Path      string
	Score     float64
}

// Query runs a BM25 search over idx and returns every matching document
// ranked by spec.md §4.6's scoring and tie-break rules: score
// descending, then shorter id-path, then lexicographic path.
func (idx *Index) Query(query string) []ScoredDocument {
	terms := uniqueTerms(Tokenize(query))
	if len(terms) == 0 || len(idx.Documents) == 0 {
		return nil
	}

	n := float64(len(idx.Documents))
	avgLen := idx.AvgDocLength
	if avgLen <= 0 {
		avgLen = 1
	}

	scores := make(map[int]float64)
	for _, term := range terms {
		postings := idx.Postings[term]
		if len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range postings {
			doc := idx.Documents[p.DocID]
			tf := float64(p.Freq)
			denom := tf + bm25K1*(1-bm25B+bm25B*float64(doc.Length)/avgLen)
			if denom == 0 {
				continue
			}
			scores[p.DocID] += idf * (tf * (bm25K1 + 1)) / denom
		}
	}

	if len(scores) == 0 {
		return nil
	}
	out := make([]ScoredDocument, 0, len(scores))
	for docID, bm25 := range scores {
		doc := idx.Documents[docID]
		final := bm25 * (1 + math.Log(1+float64(doc.Authority)))
		out = append(out, ScoredDocument{
			CrateName: idx.CrateName,
			IdPath:    doc.IdPath,
			Path:      doc.Path,
			Score:     final,
		})
	}
	sortScored(out)
	return out
}

func sortScored(docs []ScoredDocument) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		if len(docs[i].IdPath) != len(docs[j].IdPath) {
			return len(docs[i].IdPath) < len(docs[j].IdPath)
		}
		return docs[i].Path < docs[j].Path
	})
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// MergeOptions configures multi-crate ranked merge. DropOffFraction is
// the Open Question spec.md §9 leaves as a tunable parameter rather
// than a fixed constant.
type MergeOptions struct {
	DropOffFraction float64
	TopN            int
}

// DefaultMergeOptions returns the merge tuning this build ships with.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{DropOffFraction: 0.3, TopN: 50}
}

// Merge combines per-crate query results into one globally ranked list,
// per spec.md §4.6: sort by score descending, then truncate after the
// first gap between consecutive scores exceeding DropOffFraction of the
// top score, then cap at TopN.
func Merge(perCrate [][]ScoredDocument, opts MergeOptions) []ScoredDocument {
	var all []ScoredDocument
	for _, docs := range perCrate {
		all = append(all, docs...)
	}
	if len(all) == 0 {
		return nil
	}
	sortScored(all)

	threshold := opts.DropOffFraction * all[0].Score
	cut := len(all)
	for i := 1; i < len(all); i++ {
		if all[i-1].Score-all[i].Score > threshold {
			cut = i
			break
		}
	}
	all = all[:cut]

	if opts.TopN > 0 && len(all) > opts.TopN {
		all = all[:opts.TopN]
	}
	return all
}

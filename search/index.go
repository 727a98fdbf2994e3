package search

import (
	"bytes"
	"context"
	"encoding/gob"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexisbouchez/docnav/cachefs"
	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/navigator"
)

// Document is one indexed item: its stable id-path from the crate
// root, its display path, inbound intra-doc link count, and indexed
// term length (for BM25's length normalization).
type Document struct {
	IdPath    []crate.Id
	Path      string
	Authority int
	Length    int
}

// Posting is one (document, frequency) pair in a term's postings list.
type Posting struct {
	DocID int
	Freq  int
}

// Index is one crate's search index: per spec.md §4.6, it's built once
// by walking the crate's full item graph and tokenizing each reachable
// item's name and doc string, then reused across queries until the
// crate's underlying JSON changes.
//
// Every field is exported so encoding/gob can round-trip the whole
// structure without a custom codec, matching how the teacher persists
// its own on-disk records.
type Index struct {
	CrateName     crate.Name
	CrateVersion  crate.Version
	SchemaVersion int
	SourceModTime time.Time

	Documents    []Document
	Postings     map[string][]Posting
	AvgDocLength float64
}

// Build walks data's full reachable item graph via nav.WalkForSearch and
// constructs an Index from it. sourceModTime and schemaVersion are
// recorded so a later LoadOrBuild call can tell whether a cached copy is
// still valid.
func Build(ctx context.Context, nav *navigator.Navigator, data *crate.Data, schemaVersion int, sourceModTime time.Time) (*Index, error) {
	docs, authority, err := nav.WalkForSearch(ctx, data)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		CrateName:     data.Name,
		CrateVersion:  data.Version,
		SchemaVersion: schemaVersion,
		SourceModTime: sourceModTime,
		Documents:     make([]Document, 0, len(docs)),
		Postings:      make(map[string][]Posting),
	}

	var totalLen int
	for docID, sd := range docs {
		item := sd.Handle.Item()
		path, _ := sd.Handle.CanonicalPath()
		if path == "" {
			path = sd.Handle.DisplayName()
		}

		terms := Tokenize(buildDocumentText(sd.Handle.DisplayName(), item.Docs))
		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}

		idx.Documents = append(idx.Documents, Document{
			IdPath:    sd.IdPath,
			Path:      path,
			Authority: authority[item.Id],
			Length:    len(terms),
		})
		totalLen += len(terms)

		for term, n := range freq {
			idx.Postings[term] = append(idx.Postings[term], Posting{DocID: docID, Freq: n})
		}
	}

	if len(idx.Documents) > 0 {
		idx.AvgDocLength = float64(totalLen) / float64(len(idx.Documents))
	}
	return idx, nil
}

// LoadOrBuild returns a valid cached Index for (name, version) if one
// exists — matching both schemaVersion and the JSON file's current
// modification time, per spec.md §4.6 — rebuilding and repersisting it
// otherwise.
func LoadOrBuild(ctx context.Context, cache *cachefs.Cache, nav *navigator.Navigator, data *crate.Data, schemaVersion int) (*Index, error) {
	modTime, ok := cache.JSONModTime(schemaVersion, data.Name, data.Version)

	if ok {
		if cached, valid := loadCached(cache, schemaVersion, data.Name, data.Version, modTime); valid {
			return cached, nil
		}
	}

	idx, err := Build(ctx, nav, data, schemaVersion, modTime)
	if err != nil {
		return nil, err
	}
	if encoded, err := idx.encode(); err == nil {
		if err := cache.PutIndex(schemaVersion, data.Name, data.Version, encoded); err != nil {
			log.Printf("search: failed to persist index for %s@%s: %v", data.Name, data.Version, err)
		}
	} else {
		log.Printf("search: failed to encode index for %s@%s: %v", data.Name, data.Version, err)
	}
	return idx, nil
}

func loadCached(cache *cachefs.Cache, schemaVersion int, name crate.Name, version crate.Version, sourceModTime time.Time) (*Index, bool) {
	raw, ok := cache.GetIndex(schemaVersion, name, version)
	if !ok {
		return nil, false
	}
	idx, err := decode(raw)
	if err != nil {
		log.Printf("search: discarding corrupt cached index for %s@%s: %v", name, version, err)
		return nil, false
	}
	if idx.SchemaVersion != schemaVersion || !idx.SourceModTime.Equal(sourceModTime) {
		return nil, false
	}
	return idx, true
}

func (idx *Index) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(idx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(raw []byte) (*Index, error) {
	var idx Index
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// SearchMany loads or builds an Index for every crate in datas
// concurrently, queries each, and merges the results per opts. A crate
// whose index fails to build is logged and skipped rather than failing
// the whole search, matching Navigator.ListAvailableCrates' partial-
// failure tolerance.
func SearchMany(ctx context.Context, cache *cachefs.Cache, nav *navigator.Navigator, datas []*crate.Data, schemaVersion int, query string, opts MergeOptions) ([]ScoredDocument, error) {
	results := make([][]ScoredDocument, len(datas))

	g, gctx := errgroup.WithContext(ctx)
	for i, data := range datas {
		i, data := i, data
		g.Go(func() error {
			idx, err := LoadOrBuild(gctx, cache, nav, data, schemaVersion)
			if err != nil {
				log.Printf("search: skipping %s@%s: %v", data.Name, data.Version, err)
				return nil
			}
			results[i] = idx.Query(query)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Merge(results, opts), nil
}

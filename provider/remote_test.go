package provider

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/alexisbouchez/docnav/cachefs"
	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/docerr"
	"github.com/alexisbouchez/docnav/normalize"

	"context"
)

const sampleCurrentDump = `{
	"format_version": 33,
	"root": "0",
	"crate_version": "1.0.0",
	"includes_private": false,
	"index": {
		"0": {"name": "mycrate", "kind": "module", "docs": "", "links": {}, "inner": {"module": {"items": []}}}
	},
	"paths": {},
	"external_crates": {}
}`

func zstdCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestRemoteSource(t *testing.T, registryURL, docsHostURL string) *RemoteSource {
	t.Helper()
	cache, err := cachefs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewRemoteSource(cache)
	s.RegistryURL = registryURL
	s.DocsHostURL = docsHostURL
	s.limiter = newTokenBucket(1000, 1, 1000) // effectively unthrottled for tests
	return s
}

func TestRemoteSourceLookupPicksMaxSatisfying(t *testing.T) {
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"versions":[{"num":"1.0.0","yanked":false},{"num":"1.2.0","yanked":false},{"num":"2.0.0","yanked":true}]}`)
	}))
	defer registry.Close()

	s := newTestRemoteSource(t, registry.URL, "")
	constraint, _ := crate.ParseConstraint("")

	info, found, err := s.Lookup(context.Background(), "serde", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected serde to be found")
	}
	if info.Version.String() != "1.2.0" {
		t.Errorf("Version = %s, want 1.2.0 (2.0.0 is yanked)", info.Version)
	}
	if info.Provenance != crate.ProvenanceRemote {
		t.Errorf("Provenance = %v, want Remote", info.Provenance)
	}
}

func TestRemoteSourceLookupNotFound(t *testing.T) {
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer registry.Close()

	s := newTestRemoteSource(t, registry.URL, "")
	constraint, _ := crate.ParseConstraint("")

	_, found, err := s.Lookup(context.Background(), "nonexistent", constraint)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Error("expected a 404 registry response to mean not found, not an error")
	}
}

func TestRemoteSourceLookupTransportError(t *testing.T) {
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer registry.Close()

	s := newTestRemoteSource(t, registry.URL, "")
	constraint, _ := crate.ParseConstraint("")

	_, _, err := s.Lookup(context.Background(), "serde", constraint)
	if !docerr.Is(err, docerr.Transport) {
		t.Errorf("err = %v, want a docerr.Transport error", err)
	}
}

func TestRemoteSourceLoadFetchesAndCaches(t *testing.T) {
	compressed := zstdCompress(t, []byte(sampleCurrentDump))
	var requestCount int
	docsHost := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		expected := fmt.Sprintf("/%d/mycrate/1.0.0.json.zst", normalize.CurrentFormatVersion)
		if r.URL.Path != expected {
			http.NotFound(w, r)
			return
		}
		w.Write(compressed)
	}))
	defer docsHost.Close()

	s := newTestRemoteSource(t, "", docsHost.URL)
	info := crate.Info{Name: "mycrate", Version: mustVersion(t, "1.0.0")}

	dump, err := s.Load(context.Background(), info)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dump.Root != "0" {
		t.Errorf("Root = %s, want 0", dump.Root)
	}
	if requestCount != 1 {
		t.Errorf("requestCount = %d, want 1", requestCount)
	}

	// Second load should be served from cache without another HTTP request.
	if _, err := s.Load(context.Background(), info); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if requestCount != 1 {
		t.Errorf("requestCount after cached load = %d, want still 1", requestCount)
	}
}

func TestRemoteSourceLoadFallsThroughSchemaVersions(t *testing.T) {
	compressed := zstdCompress(t, []byte(sampleCurrentDump))
	docsHost := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := fmt.Sprintf("/%d/mycrate/1.0.0.json.zst", normalize.MinSupportedFormatVersion)
		if r.URL.Path != expected {
			http.NotFound(w, r)
			return
		}
		w.Write(compressed)
	}))
	defer docsHost.Close()

	s := newTestRemoteSource(t, "", docsHost.URL)
	info := crate.Info{Name: "mycrate", Version: mustVersion(t, "1.0.0")}

	if _, err := s.Load(context.Background(), info); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestRemoteSourceLoadNoSchemaVersionAvailable(t *testing.T) {
	docsHost := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer docsHost.Close()

	s := newTestRemoteSource(t, "", docsHost.URL)
	info := crate.Info{Name: "mycrate", Version: mustVersion(t, "1.0.0")}

	_, err := s.Load(context.Background(), info)
	if !docerr.Is(err, docerr.NotFound) {
		t.Errorf("err = %v, want docerr.NotFound", err)
	}
}

func mustVersion(t *testing.T, raw string) crate.Version {
	t.Helper()
	v, ok := crate.NewVersion(raw)
	if !ok {
		t.Fatalf("invalid version %q", raw)
	}
	return v
}

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/alexisbouchez/docnav/cachefs"
	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/docerr"
	"github.com/alexisbouchez/docnav/normalize"
)

// DefaultRegistryURL and DefaultDocsHostURL are the crates.io-shaped
// registry and documentation-host endpoints spec.md §6 describes.
// Adapted from the teacher's crawler.CratesIOAPI constant.
const (
	DefaultRegistryURL = "https://crates.io/api/v1"
	DefaultDocsHostURL = "https://docs.example-rustdoc-host.invalid"
)

// RemoteSource fetches crate metadata from a registry index and JSON
// dumps from a remote documentation host, caching fetched JSON on disk
// before returning it.
type RemoteSource struct {
	RegistryURL string
	DocsHostURL string

	client  *http.Client
	limiter *tokenBucket
	cache   *cachefs.Cache
}

// NewRemoteSource creates a RemoteSource that persists fetched JSON
// through cache.
func NewRemoteSource(cache *cachefs.Cache) *RemoteSource {
	return &RemoteSource{
		RegistryURL: DefaultRegistryURL,
		DocsHostURL: DefaultDocsHostURL,
		client:      &http.Client{Timeout: 60 * time.Second},
		limiter:     newTokenBucket(5, time.Second, 10),
		cache:       cache,
	}
}

func (s *RemoteSource) Canonicalize(raw string) crate.Name { return crate.Canonicalize(raw) }

type registryVersion struct {
	Num    string `json:"num"`
	Yanked bool   `json:"yanked"`
}

type registryResponse struct {
	Versions []registryVersion `json:"versions"`
}

// Lookup consults the remote registry index to enumerate available
// versions for name and selects the maximum non-yanked version
// satisfying constraint.
func (s *RemoteSource) Lookup(ctx context.Context, name crate.Name, constraint crate.Constraint) (crate.Info, bool, error) {
	s.limiter.wait()

	url := fmt.Sprintf("%s/crates/%s", s.RegistryURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return crate.Info{}, false, docerr.Wrap(docerr.Transport, "building registry request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return crate.Info{}, false, docerr.Wrap(docerr.Transport, "querying registry for "+string(name), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return crate.Info{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return crate.Info{}, false, docerr.New(docerr.Transport, fmt.Sprintf("registry returned status %d for %s", resp.StatusCode, name))
	}

	var body registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return crate.Info{}, false, docerr.Wrap(docerr.Transport, "decoding registry response for "+string(name), err)
	}

	var versions []crate.Version
	for _, rv := range body.Versions {
		if rv.Yanked {
			continue
		}
		if v, ok := crate.NewVersion(rv.Num); ok {
			versions = append(versions, v)
		}
	}

	best, ok := crate.MaxSatisfying(versions, constraint)
	if !ok {
		return crate.Info{}, false, nil
	}
	return crate.Info{Name: name, Version: best, Provenance: crate.ProvenanceRemote}, true, nil
}

// Load attempts to fetch the JSON at each supported schema-version in
// descending order until one succeeds, checking the disk cache first.
// A cached entry that fails to parse is treated as a miss and fetched
// again. Content is cached on disk before being handed to
// FormatNormalizer.
func (s *RemoteSource) Load(ctx context.Context, info crate.Info) (crate.Dump, error) {
	var lastErr error
	for schemaVersion := normalize.CurrentFormatVersion; schemaVersion >= normalize.MinSupportedFormatVersion; schemaVersion-- {
		if cached, ok := s.cache.GetJSON(schemaVersion, info.Name, info.Version); ok {
			if dump, err := migrate(cached); err == nil {
				return dump, nil
			}
		}

		data, err := s.fetch(ctx, schemaVersion, info.Name, info.Version)
		if err != nil {
			if docerr.Is(err, docerr.NotFound) {
				lastErr = err
				continue // 404 on this specific schema version; try the next
			}
			return crate.Dump{}, err // transport failures are not retried across schema versions
		}

		if err := s.cache.PutJSON(schemaVersion, info.Name, info.Version, data); err != nil {
			return crate.Dump{}, err
		}
		return migrate(data)
	}
	if lastErr != nil {
		return crate.Dump{}, lastErr
	}
	return crate.Dump{}, docerr.New(docerr.NotFound, fmt.Sprintf("no supported schema version available for %s@%s", info.Name, info.Version))
}

func (s *RemoteSource) fetch(ctx context.Context, schemaVersion int, name crate.Name, version crate.Version) ([]byte, error) {
	s.limiter.wait()

	url := fmt.Sprintf("%s/%d/%s/%s.json.zst", s.DocsHostURL, schemaVersion, name, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, docerr.Wrap(docerr.Transport, "building fetch request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, docerr.Wrap(docerr.Transport, fmt.Sprintf("fetching %s@%s at schema %d", name, version, schemaVersion), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, docerr.New(docerr.NotFound, fmt.Sprintf("%s@%s not available at schema %d", name, version, schemaVersion))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, docerr.New(docerr.Transport, fmt.Sprintf("docs host returned status %d for %s@%s", resp.StatusCode, name, version))
	}

	decoder, err := zstd.NewReader(resp.Body)
	if err != nil {
		return nil, docerr.Wrap(docerr.Corruption, "initializing zstd decoder", err)
	}
	defer decoder.Close()

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, docerr.Wrap(docerr.Corruption, "decompressing response body", err)
	}
	return data, nil
}

// ListKnown returns an empty slice: the remote provider has no cheap
// enumeration of every crate in the registry, per spec.md §4.1.
func (s *RemoteSource) ListKnown(_ context.Context) ([]crate.Info, error) {
	return nil, nil
}

// Package cachefs implements the content-addressed on-disk cache
// described in spec.md §4.2: fetched crate JSON and generated search
// indices live at
//
//	{base}/{schema-version}/{crate-name}/{crate-version}.json
//	{base}/{schema-version}/{crate-name}/{crate-version}.index
//
// Writes are atomic (write to a temp file, then rename); reads are
// best-effort, and a missing or unreadable file is reported as a cache
// miss rather than an error. This package does not validate contents:
// a file that reads but does not parse is returned as a hit, and the
// providers that parse it treat the parse failure as a miss.
package cachefs

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alexisbouchez/docnav/crate"
)

const envBaseDir = "DOCNAV_CACHE_DIR"

// Cache is a directory rooted view of the on-disk cache. It holds no
// in-memory state of its own; all state lives on disk, matching the
// teacher's db.DB, which is a thin wrapper over a single resource handle
// with no additional bookkeeping.
type Cache struct {
	base string
}

// DefaultBase discovers the cache root the way spec.md §6 describes:
// overridable by environment, otherwise a toolchain-home-style default
// (the user's cache directory, under a fixed subdirectory).
func DefaultBase() string {
	if v := os.Getenv(envBaseDir); v != "" {
		return v
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "rustdoc-json")
}

// New opens a Cache rooted at base, creating the directory if it
// doesn't exist yet.
func New(base string) (*Cache, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, wrapIO("creating cache root", err)
	}
	return &Cache{base: base}, nil
}

func (c *Cache) dir(schemaVersion int, name crate.Name) string {
	return filepath.Join(c.base, strconv.Itoa(schemaVersion), string(name))
}

func (c *Cache) jsonPath(schemaVersion int, name crate.Name, version crate.Version) string {
	return filepath.Join(c.dir(schemaVersion, name), version.String()+".json")
}

func (c *Cache) indexPath(schemaVersion int, name crate.Name, version crate.Version) string {
	return filepath.Join(c.dir(schemaVersion, name), version.String()+".index")
}

// GetJSON returns the cached JSON bytes for (schemaVersion, name,
// version), or ok=false on any miss — including a missing file or one
// that can't be read. Contents are not validated here; callers that
// fail to parse a hit fall through to re-fetching.
func (c *Cache) GetJSON(schemaVersion int, name crate.Name, version crate.Version) ([]byte, bool) {
	return c.read(c.jsonPath(schemaVersion, name, version))
}

// PutJSON atomically stores JSON bytes for (schemaVersion, name,
// version).
func (c *Cache) PutJSON(schemaVersion int, name crate.Name, version crate.Version, data []byte) error {
	return c.write(c.jsonPath(schemaVersion, name, version), data)
}

// GetIndex and PutIndex are the same contract as GetJSON/PutJSON for
// the generated search index's binary record.
func (c *Cache) GetIndex(schemaVersion int, name crate.Name, version crate.Version) ([]byte, bool) {
	return c.read(c.indexPath(schemaVersion, name, version))
}

func (c *Cache) PutIndex(schemaVersion int, name crate.Name, version crate.Version, data []byte) error {
	return c.write(c.indexPath(schemaVersion, name, version), data)
}

// JSONModTime returns the modification time of the cached JSON file,
// used by search.Index to decide whether a cached index is stale.
func (c *Cache) JSONModTime(schemaVersion int, name crate.Name, version crate.Version) (time.Time, bool) {
	info, err := os.Stat(c.jsonPath(schemaVersion, name, version))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (c *Cache) read(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("cachefs: treating read error as cache miss for %s: %v", path, err)
		}
		return nil, false
	}
	return data, true
}

// write performs the write-to-temp-then-rename dance spec.md §4.2
// requires so a reader never observes a partially written file.
func (c *Cache) write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapIO("creating cache directory "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return wrapIO("creating temp file in "+dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return wrapIO("writing temp file "+tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return wrapIO("closing temp file "+tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return wrapIO("renaming temp file into place at "+path, err)
	}
	return nil
}

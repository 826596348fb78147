package digest

import (
	"encoding/json"
	"os"
	"path/filepath"

	engerrors "github.com/memengine/memengine/internal/errors"
)

// CacheFileName is the digest cache's name under .store/.
const CacheFileName = "digest-cache.json"

// LoadCache reads the digest cache from projectRoot's .store directory,
// returning an empty Cache if none exists yet.
func LoadCache(projectRoot string) (*Cache, error) {
	path := filepath.Join(projectRoot, ".store", CacheFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCache(), nil
	}
	if err != nil {
		return nil, engerrors.InternalError("failed to read digest cache", err)
	}

	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, engerrors.InternalError("failed to parse digest cache", err)
	}
	if c.Entries == nil {
		c.Entries = map[string]Entry{}
	}
	return &c, nil
}

// SaveCache atomically persists c to projectRoot's .store/digest-cache.json.
func SaveCache(projectRoot string, c *Cache) error {
	dir := filepath.Join(projectRoot, ".store")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engerrors.InternalError("failed to create store directory", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return engerrors.InternalError("failed to marshal digest cache", err)
	}

	path := filepath.Join(dir, CacheFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return engerrors.InternalError("failed to write digest cache", err)
	}
	return os.Rename(tmp, path)
}

package version

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const cacheTTL = 6 * time.Hour

// CacheEntry is the last successful update check
type CacheEntry struct {
	LatestVersion  string    `json:"latest_version"`
	CurrentVersion string    `json:"current_version"`
	CheckedAt      time.Time `json:"checked_at"`
	HasUpdate      bool      `json:"has_update"`
}

// IsCacheValid reports whether entry is recent and was recorded by the
// running version.
func IsCacheValid(entry *CacheEntry, currentVersion string) bool {
	if entry == nil || entry.CurrentVersion != currentVersion {
		return false
	}
	return time.Since(entry.CheckedAt) < cacheTTL
}

func cachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "featuregate", "version_cache.json")
}

// LoadCache reads the cache file
func LoadCache() (*CacheEntry, error) {
	data, err := os.ReadFile(cachePath())
	if err != nil {
		return nil, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveCache writes entry, creating the cache directory if needed
func SaveCache(entry *CacheEntry) error {
	path := cachePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

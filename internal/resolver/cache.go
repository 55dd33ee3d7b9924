package resolver

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// BrokerCacheFile is the file name of the broker cache inside the cache dir.
const BrokerCacheFile = "broker-cache.yaml"

// CacheEntry records where a broker was last discovered on one cluster.
type CacheEntry struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Bootstrap string `json:"bootstrap"`
}

type cacheFile struct {
	Clusters map[string]CacheEntry `json:"clusters"`
}

// BrokerCache is a small on-disk map from cluster to discovered broker.
// It only saves the all-namespace scan; every hit is re-validated against the
// live cluster. A missing or unreadable file behaves as an empty cache.
type BrokerCache struct {
	path string
}

// NewBrokerCache returns a cache stored under dir. An empty dir disables it.
func NewBrokerCache(dir string) *BrokerCache {
	if dir == "" {
		return nil
	}
	return &BrokerCache{path: filepath.Join(dir, BrokerCacheFile)}
}

// Path returns the cache file location.
func (c *BrokerCache) Path() string {
	return c.path
}

// Lookup returns the entry for a cluster.
func (c *BrokerCache) Lookup(cluster string) (CacheEntry, bool) {
	f := c.load()
	entry, ok := f.Clusters[cluster]
	return entry, ok && entry.Name != "" && entry.Bootstrap != ""
}

// Store records the entry for a cluster, replacing any previous one.
func (c *BrokerCache) Store(cluster string, entry CacheEntry) error {
	f := c.load()
	f.Clusters[cluster] = entry

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode broker cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write broker cache: %w", err)
	}
	return nil
}

func (c *BrokerCache) load() *cacheFile {
	f := &cacheFile{}
	if data, err := os.ReadFile(c.path); err == nil {
		_ = yaml.Unmarshal(data, f)
	}
	if f.Clusters == nil {
		f.Clusters = make(map[string]CacheEntry)
	}
	return f
}

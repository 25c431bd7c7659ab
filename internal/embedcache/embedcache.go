// Package embedcache implements a two-tier embedding cache: a bounded
// in-memory LRU (hashicorp/golang-lru/v2) in front of a content-addressed
// file directory, so a repeated embedding lookup survives a process
// restart instead of only surviving within one run.
package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/screenager/vecstore/internal/fsx"
)

// DefaultMaxMemoryItems bounds the memory tier when callers don't specify one.
const DefaultMaxMemoryItems = 1000

// Cache is the two-tier embedding cache for one store's cache directory.
type Cache struct {
	dir    string
	memory *lru.Cache[string, []float32]
	logger *slog.Logger
}

// New creates a cache backed by dir (typically
// ~/.vectorstore/cache/embeddings) with a memory tier capped at
// maxMemoryItems entries (0 means DefaultMaxMemoryItems).
func New(dir string, maxMemoryItems int, logger *slog.Logger) (*Cache, error) {
	if maxMemoryItems <= 0 {
		maxMemoryItems = DefaultMaxMemoryItems
	}
	if logger == nil {
		logger = slog.Default()
	}
	memory, err := lru.New[string, []float32](maxMemoryItems)
	if err != nil {
		return nil, fmt.Errorf("embedcache: create lru: %w", err)
	}
	return &Cache{dir: dir, memory: memory, logger: logger}, nil
}

// Key returns the cache key for text: sha256(utf8(text)) as lowercase hex.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get checks the memory tier first, then the file tier, promoting a file
// hit into memory before returning.
func (c *Cache) Get(text string) ([]float32, bool) {
	key := Key(text)

	if v, ok := c.memory.Get(key); ok {
		return v, true
	}

	v, ok := c.readFile(key)
	if !ok {
		return nil, false
	}
	c.memory.Add(key, v)
	return v, true
}

// Set stores embedding for text in both tiers. The file write is best
// effort: a failure is logged, never returned to the caller
func (c *Cache) Set(text string, embedding []float32) {
	key := Key(text)
	cp := make([]float32, len(embedding))
	copy(cp, embedding)

	c.memory.Add(key, cp)

	if c.dir == "" {
		return
	}
	if err := c.writeFile(key, cp); err != nil {
		c.logger.Warn("embedcache: file-tier write failed", "key", key, "cause", err)
	}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) readFile(key string) ([]float32, bool) {
	if c.dir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("embedcache: corrupt cache file, ignoring", "key", key, "cause", err)
		return nil, false
	}
	return v, true
}

// writeFile uses the durable replace pattern so a crash mid-write can never
// leave a partial JSON array on disk.
func (c *Cache) writeFile(key string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return fsx.WriteFileDurable(c.path(key), data, 0o644)
}

// Len returns the number of items currently resident in the memory tier.
func (c *Cache) Len() int {
	return c.memory.Len()
}

package search

import (
	"crypto/md5"
	"fmt"
	"log"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chess10kp/lswitch/internal/item"
)

// scoreCache memoises application scores per query. An entry is only valid
// for the exact application list it was computed against, which is why the
// key carries a fingerprint of that list.
type scoreCache struct {
	cache  *lru.Cache[string, []int]
	size   int
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func newScoreCache(size int) (*scoreCache, error) {
	if size <= 0 {
		size = 100
	}

	cache, err := lru.New[string, []int](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	return &scoreCache{cache: cache, size: size}, nil
}

func (c *scoreCache) get(query, fingerprint string) ([]int, bool) {
	scores, ok := c.cache.Get(makeKey(query, fingerprint))
	if ok {
		c.hits.Add(1)
		return scores, true
	}
	c.misses.Add(1)
	return nil, false
}

func (c *scoreCache) put(query, fingerprint string, scores []int) {
	c.cache.Add(makeKey(query, fingerprint), scores)
}

func (c *scoreCache) purge() {
	c.cache.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
	log.Printf("[SEARCH-CACHE] Cleared all cache entries")
}

func (c *scoreCache) stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	rate := float64(0)
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Size:    c.cache.Len(),
		MaxSize: c.size,
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
	}
}

func makeKey(query, fingerprint string) string {
	return fmt.Sprintf("%s:%s", fingerprint, query)
}

// Fingerprint identifies an application list by every name it contains, in
// order. Two lists with the same fingerprint score identically.
func Fingerprint(apps []item.Application) string {
	if len(apps) == 0 {
		return ""
	}

	h := md5.New()
	for _, app := range apps {
		fmt.Fprintf(h, "%d:%s\x00", len(app.Name), app.Name)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

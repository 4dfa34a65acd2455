// Package search turns a query plus the current windows and applications into
// an ordered result list.
package search

import (
	"log"
	"sort"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/chess10kp/lswitch/internal/item"
	"github.com/chess10kp/lswitch/internal/rank"
)

// Result is one ranked entry. Matches holds byte offsets into the item label
// for highlighting; it never affects ordering.
type Result struct {
	Score   int
	Item    item.Item
	Matches []int
}

// Coordinator ranks windows and applications for a query.
type Coordinator struct {
	threshold  int
	maxResults int
	memo       *scoreCache
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithThreshold overrides the minimum score a candidate must exceed.
func WithThreshold(n int) Option {
	return func(c *Coordinator) { c.threshold = n }
}

// WithMaxResults truncates non-empty query results to n entries. Zero means
// no limit.
func WithMaxResults(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.maxResults = n
		}
	}
}

// WithCacheSize bounds how many queries keep memoised application scores.
func WithCacheSize(n int) Option {
	return func(c *Coordinator) {
		if memo, err := newScoreCache(n); err == nil {
			c.memo = memo
		}
	}
}

func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{threshold: rank.Threshold}
	for _, opt := range opts {
		opt(c)
	}
	if c.memo == nil {
		c.memo, _ = newScoreCache(0)
	}
	return c
}

// Search ranks windows and apps against query.
//
// An empty query lists every window in the given order with score 0 and no
// applications. Otherwise window labels and application names are scored,
// candidates at or below the threshold are dropped, and the rest are ordered
// by descending score with windows ahead of applications on ties. The first
// occurrence of a duplicate key wins.
func (c *Coordinator) Search(query string, windows []*item.Window, apps []item.Application) []Result {
	if query == "" {
		results := make([]Result, 0, len(windows))
		seen := make(map[string]bool, len(windows))
		for _, w := range windows {
			if seen[w.Key()] {
				continue
			}
			seen[w.Key()] = true
			results = append(results, Result{Item: w})
		}
		return results
	}

	start := time.Now()
	var results []Result

	for _, w := range windows {
		if score := rank.Score(query, w.Label()); score > c.threshold {
			results = append(results, Result{Score: score, Item: w})
		}
	}

	for i, score := range c.appScores(query, apps) {
		if score > c.threshold {
			results = append(results, Result{Score: score, Item: apps[i]})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	results = dedupe(results)
	if c.maxResults > 0 && len(results) > c.maxResults {
		results = results[:c.maxResults]
	}
	for i := range results {
		results[i].Matches = highlight(query, results[i].Item.Label())
	}

	log.Printf("[SEARCH] query='%s' windows=%d apps=%d results=%d in %v",
		query, len(windows), len(apps), len(results), time.Since(start))
	return results
}

// appScores returns one score per app, memoised per query and app list.
func (c *Coordinator) appScores(query string, apps []item.Application) []int {
	if len(apps) == 0 {
		return nil
	}

	fp := Fingerprint(apps)
	if scores, ok := c.memo.get(query, fp); ok {
		return scores
	}

	scores := make([]int, len(apps))
	for i, app := range apps {
		scores[i] = rank.Score(query, app.Name)
	}
	c.memo.put(query, fp, scores)
	return scores
}

// InvalidateCache drops memoised application scores.
func (c *Coordinator) InvalidateCache() {
	c.memo.purge()
}

func (c *Coordinator) CacheStats() CacheStats {
	return c.memo.stats()
}

func dedupe(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		key := r.Item.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func highlight(query, label string) []int {
	matches := fuzzy.Find(query, []string{label})
	if len(matches) == 0 {
		return nil
	}
	return matches[0].MatchedIndexes
}

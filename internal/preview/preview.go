// Package preview captures single frames of the selected window. A new
// request supersedes the previous one and any frame it later produces is
// discarded. When every worker is still busy with superseded captures, the
// newest request waits in a single pending slot and older pending requests
// are dropped.
package preview

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/chess10kp/lswitch/internal/dispatch"
	"github.com/chess10kp/lswitch/internal/item"
	"github.com/chess10kp/lswitch/internal/platform"
)

const (
	defaultPoolSize     = 2
	defaultCacheSize    = 64
	defaultCaptureLimit = 2 * time.Second
)

// Update reports a change to the current preview.
type Update struct {
	ID    item.Identity
	Frame image.Image
	Err   error
}

// Cache maps windows to capture sources and holds their latest frames. Like
// the registry it is owned by the goroutine draining its dispatcher.
type Cache struct {
	capt    platform.Capturer
	post    dispatch.Dispatcher
	pool    *ants.Pool
	workers int
	frames  *lru.Cache[item.Identity, image.Image]
	sources map[item.Identity]platform.CaptureTarget
	timeout time.Duration

	seq      uint64
	active   bool
	want     item.Identity
	cancel   context.CancelFunc
	pending  *captureJob
	inflight int
	current  image.Image
	err      error

	listener func(Update)
}

type captureJob struct {
	seq    uint64
	id     item.Identity
	target platform.CaptureTarget
}

// Option configures a Cache.
type Option func(*Cache) error

// WithPoolSize sets how many capture workers may run at once.
func WithPoolSize(size int) Option {
	return func(c *Cache) error {
		if size < 1 {
			size = defaultPoolSize
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if c.pool != nil {
			c.pool.Release()
		}
		c.pool = pool
		c.workers = size
		return nil
	}
}

// WithCacheSize bounds how many frames are kept.
func WithCacheSize(size int) Option {
	return func(c *Cache) error {
		if size < 1 {
			size = defaultCacheSize
		}
		frames, err := lru.New[item.Identity, image.Image](size)
		if err != nil {
			return fmt.Errorf("failed to create LRU cache: %w", err)
		}
		c.frames = frames
		return nil
	}
}

// WithCaptureTimeout bounds a single capture.
func WithCaptureTimeout(d time.Duration) Option {
	return func(c *Cache) error {
		if d > 0 {
			c.timeout = d
		}
		return nil
	}
}

func New(capt platform.Capturer, d dispatch.Dispatcher, opts ...Option) (*Cache, error) {
	c := &Cache{
		capt:    capt,
		post:    d,
		sources: make(map[item.Identity]platform.CaptureTarget),
		timeout: defaultCaptureLimit,
	}

	defaults := []Option{WithPoolSize(defaultPoolSize), WithCacheSize(defaultCacheSize)}
	for _, opt := range append(defaults, opts...) {
		if err := opt(c); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// OnUpdate registers fn to run on the owner whenever the current preview
// changes.
func (c *Cache) OnUpdate(fn func(Update)) {
	c.listener = fn
}

// Refresh rebuilds the window to source mapping by matching window labels
// exactly against the capturable windows, and drops every cached frame.
func (c *Cache) Refresh(ctx context.Context, windows []*item.Window) {
	sources := make(map[item.Identity]platform.CaptureTarget, len(windows))

	targets, err := c.capt.CapturableWindows(ctx)
	if err != nil {
		log.Printf("[PREVIEW] Failed to list capturable windows: %v", err)
	} else {
		byLabel := make(map[string]platform.CaptureTarget, len(targets))
		for _, t := range targets {
			byLabel[t.Label] = t
		}
		for _, w := range windows {
			if t, ok := byLabel[w.Label()]; ok {
				sources[w.ID] = t
			}
		}
	}

	c.sources = sources
	c.frames.Purge()
	log.Printf("[PREVIEW] Mapped %d of %d windows to capture sources", len(sources), len(windows))
}

// Request starts a capture of w, superseding any capture in flight. The
// cached frame of w, or no frame, is current until the fresh one arrives.
func (c *Cache) Request(w *item.Window) {
	c.supersede()
	c.active = true
	c.want = w.ID
	seq := c.seq

	target, ok := c.sources[w.ID]
	if !ok {
		c.set(nil, &platform.CaptureError{Label: w.Label(), Err: platform.ErrNoCaptureSource})
		return
	}

	frame, _ := c.frames.Get(w.ID)
	c.set(frame, nil)

	c.pending = &captureJob{seq: seq, id: w.ID, target: target}
	c.schedule()
}

// schedule submits the pending capture once a worker is free. Submit only
// runs with inflight below the pool size, so it never waits long on the
// owner goroutine.
func (c *Cache) schedule() {
	if c.pending == nil || c.inflight >= c.workers {
		return
	}
	job := c.pending
	c.pending = nil

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.cancel = cancel
	c.inflight++

	err := c.pool.Submit(func() {
		defer cancel()
		frame, err := c.capt.CaptureFrame(ctx, job.target.Source)
		c.post.Post(func() {
			c.inflight--
			c.complete(job.seq, job.id, job.target.Label, frame, err)
			c.schedule()
		})
	})
	if err != nil {
		c.inflight--
		cancel()
		c.cancel = nil
		log.Printf("[PREVIEW] Could not schedule capture of '%s': %v", job.target.Label, err)
		if job.seq == c.seq {
			c.set(nil, &platform.CaptureError{Label: job.target.Label, Err: err})
		}
	}
}

// Clear drops the current preview; a capture in flight becomes stale.
func (c *Cache) Clear() {
	c.supersede()
	c.active = false
	c.set(nil, nil)
}

// Current returns the frame for the selected window, or the reason there is
// none.
func (c *Cache) Current() (image.Image, error) {
	return c.current, c.err
}

// Frame returns the cached frame of id.
func (c *Cache) Frame(id item.Identity) (image.Image, bool) {
	return c.frames.Peek(id)
}

// HasSource reports whether id can be captured.
func (c *Cache) HasSource(id item.Identity) bool {
	_, ok := c.sources[id]
	return ok
}

// Close cancels the capture in flight and stops the workers.
func (c *Cache) Close() {
	c.supersede()
	if c.pool != nil {
		c.pool.Release()
	}
}

func (c *Cache) supersede() {
	c.seq++
	c.pending = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Cache) complete(seq uint64, id item.Identity, label string, frame image.Image, err error) {
	if seq != c.seq || !c.active || id != c.want {
		log.Printf("[PREVIEW] Discarding stale frame for '%s'", label)
		return
	}
	c.cancel = nil

	if err != nil {
		log.Printf("[PREVIEW] Capture of '%s' failed: %v", label, err)
		c.set(nil, &platform.CaptureError{Label: label, Err: err})
		return
	}

	c.frames.Add(id, frame)
	c.set(frame, nil)
}

func (c *Cache) set(frame image.Image, err error) {
	c.current = frame
	c.err = err
	if c.listener != nil {
		c.listener(Update{ID: c.want, Frame: frame, Err: err})
	}
}

// Package registry keeps the live set of open windows. It discovers windows
// once, then follows per-process change notifications instead of
// re-enumerating on every keystroke.
//
// A Registry is owned by a single goroutine: every method must be called from
// the goroutine that drains the dispatcher it was built with. Subscription
// callbacks never touch registry state directly; they post typed events to
// that dispatcher.
package registry

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chess10kp/lswitch/internal/dispatch"
	"github.com/chess10kp/lswitch/internal/item"
	"github.com/chess10kp/lswitch/internal/platform"
)

const (
	defaultParallelism = 8
	activateTimeout    = 5 * time.Second
)

// Registry owns window items and the subscriptions that keep them current.
type Registry struct {
	ws          platform.WindowSystem
	post        dispatch.Dispatcher
	parallelism int
	ctx         context.Context

	procs   []platform.Process
	subs    map[int]platform.Subscription
	gen     uint64
	windows []*item.Window

	onChange func()
}

// Option configures a Registry.
type Option func(*Registry)

// WithParallelism bounds concurrent per-process window enumeration.
func WithParallelism(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

func New(ws platform.WindowSystem, d dispatch.Dispatcher, opts ...Option) *Registry {
	r := &Registry{
		ws:          ws,
		post:        d,
		parallelism: defaultParallelism,
		ctx:         context.Background(),
		subs:        make(map[int]platform.Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnChange registers fn to run after every change to the item collection.
func (r *Registry) OnChange(fn func()) {
	r.onChange = fn
}

// Initialize discovers every eligible process and its titled windows and
// subscribes to their change notifications. Per-process failures are logged
// and skipped.
func (r *Registry) Initialize(ctx context.Context) {
	r.ctx = ctx
	r.FullRefresh(ctx)
}

// Items returns the live window collection in discovery order. The slice is
// replaced or mutated by later registry operations.
func (r *Registry) Items() []*item.Window {
	return r.windows
}

// Refresh re-discovers windows of the processes already tracked.
func (r *Registry) Refresh(ctx context.Context) {
	log.Printf("[REGISTRY] Refresh: %d tracked processes", len(r.procs))
	r.rebuild(ctx, append([]platform.Process(nil), r.procs...))
}

// FullRefresh re-enumerates eligible processes from scratch. If the process
// list itself is unavailable the current items are kept.
func (r *Registry) FullRefresh(ctx context.Context) {
	procs, err := r.ws.Processes(ctx)
	if err != nil {
		log.Printf("[REGISTRY] Failed to enumerate processes, keeping %d windows: %v", len(r.windows), err)
		return
	}
	log.Printf("[REGISTRY] FullRefresh: %d eligible processes", len(procs))
	r.rebuild(ctx, procs)
}

// Close releases every subscription and forgets all windows.
func (r *Registry) Close() {
	r.gen++
	for pid, sub := range r.subs {
		if err := sub.Close(); err != nil {
			log.Printf("[REGISTRY] Failed to release subscription for pid %d: %v", pid, err)
		}
	}
	r.subs = make(map[int]platform.Subscription)
	r.procs = nil
	r.windows = nil
}

// rebuild discovers windows of procs and swaps in a fresh subscription
// generation. The new generation is live before the old one is released, and
// events still queued from the old generation are dropped on delivery.
func (r *Registry) rebuild(ctx context.Context, procs []platform.Process) {
	found := r.discover(ctx, procs)

	gen := r.gen + 1
	subs := make(map[int]platform.Subscription, len(procs))
	var tracked []platform.Process
	var windows []*item.Window
	seen := make(map[item.Identity]bool)

	for i, proc := range procs {
		if found[i] == nil {
			continue
		}
		sub, err := r.ws.Subscribe(ctx, proc, r.subscriber(gen))
		if err != nil {
			log.Printf("[REGISTRY] %v", &platform.SubscriptionError{PID: proc.PID, Err: err})
			continue
		}
		subs[proc.PID] = sub
		tracked = append(tracked, proc)
		for _, w := range *found[i] {
			if seen[w.ID] {
				continue
			}
			seen[w.ID] = true
			windows = append(windows, w)
		}
	}

	old := r.subs
	r.gen = gen
	r.subs = subs
	r.procs = tracked
	r.windows = windows

	for pid, sub := range old {
		if err := sub.Close(); err != nil {
			log.Printf("[REGISTRY] Failed to release subscription for pid %d: %v", pid, err)
		}
	}

	log.Printf("[REGISTRY] Generation %d: %d processes, %d windows", gen, len(tracked), len(windows))
	r.changed()
}

// discover lists windows for each process concurrently. The result is indexed
// like procs; a nil entry means enumeration failed for that process.
func (r *Registry) discover(ctx context.Context, procs []platform.Process) []*[]*item.Window {
	found := make([]*[]*item.Window, len(procs))

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, proc := range procs {
		i, proc := i, proc
		g.Go(func() error {
			refs, err := r.ws.Windows(ctx, proc)
			if err != nil {
				log.Printf("[REGISTRY] %v", &platform.EnumerationError{PID: proc.PID, Err: err})
				return nil
			}
			windows := make([]*item.Window, 0, len(refs))
			for _, ref := range refs {
				if ref.Title == "" {
					continue
				}
				windows = append(windows, item.NewWindow(proc, ref.Handle, ref.Title))
			}
			found[i] = &windows
			return nil
		})
	}
	_ = g.Wait()

	return found
}

func (r *Registry) subscriber(gen uint64) func(platform.Event) {
	return func(ev platform.Event) {
		r.post.Post(func() { r.deliver(gen, ev) })
	}
}

func (r *Registry) deliver(gen uint64, ev platform.Event) {
	if gen != r.gen {
		log.Printf("[REGISTRY] Dropping %s for window %d from retired generation %d", ev.Kind, ev.Handle, gen)
		return
	}
	r.HandleNotification(r.ctx, ev.PID, ev.Handle, ev.Kind)
}

// HandleNotification applies one change notification for a tracked process.
func (r *Registry) HandleNotification(ctx context.Context, pid int, h platform.Handle, kind platform.EventKind) {
	switch kind {
	case platform.EventTitleChanged:
		r.handleTitleChanged(ctx, pid, h)
	case platform.EventCreated:
		r.handleCreated(ctx, pid, h)
	case platform.EventDestroyed:
		if r.remove(h) {
			r.changed()
		}
	case platform.EventProcessExited:
		r.purgeProcess(pid)
	default:
		log.Printf("[REGISTRY] Ignoring %s notification for window %d", kind, h)
	}
}

// handleTitleChanged treats a title change for a window it does not know as a
// creation: sway announces new containers before they have a title.
func (r *Registry) handleTitleChanged(ctx context.Context, pid int, h platform.Handle) {
	idx := r.indexOf(h)
	if idx < 0 {
		r.handleCreated(ctx, pid, h)
		return
	}

	title, err := r.ws.Title(ctx, h)
	if err != nil || title == "" {
		log.Printf("[REGISTRY] Window %d lost its title (%v), removing", h, err)
		r.remove(h)
		r.changed()
		return
	}

	r.windows[idx].Title = title
	r.changed()
}

func (r *Registry) handleCreated(ctx context.Context, pid int, h platform.Handle) {
	if _, ok := r.subs[pid]; !ok {
		log.Printf("[REGISTRY] Created window %d for untracked pid %d", h, pid)
		return
	}
	if r.indexOf(h) >= 0 {
		return
	}

	title, err := r.ws.Title(ctx, h)
	if err != nil || title == "" {
		log.Printf("[REGISTRY] Created window %d has no title yet: %v", h, err)
		return
	}

	proc, ok := r.tracked(pid)
	if !ok {
		return
	}
	r.windows = append(r.windows, item.NewWindow(proc, h, title))
	r.changed()
}

func (r *Registry) purgeProcess(pid int) {
	sub, ok := r.subs[pid]
	if !ok {
		return
	}

	kept := r.windows[:0]
	for _, w := range r.windows {
		if w.PID != pid {
			kept = append(kept, w)
		}
	}
	r.windows = kept

	delete(r.subs, pid)
	for i, p := range r.procs {
		if p.PID == pid {
			r.procs = append(r.procs[:i], r.procs[i+1:]...)
			break
		}
	}
	if err := sub.Close(); err != nil {
		log.Printf("[REGISTRY] Failed to release subscription for pid %d: %v", pid, err)
	}

	log.Printf("[REGISTRY] Process %d exited, purged its windows", pid)
	r.changed()
}

// Focus raises w and then activates its owning process in the background.
// A raise failure is reported but activation is still attempted; a missing
// owner process is reported and nothing is activated.
func (r *Registry) Focus(ctx context.Context, w *item.Window) error {
	var errs []error

	if err := r.ws.Raise(ctx, w.Handle); err != nil {
		log.Printf("[REGISTRY] [%s] Error raising window %d: %v", w.AppName, w.Handle, err)
		errs = append(errs, &platform.FocusError{Handle: w.Handle, Err: err})
	}

	proc, err := r.ws.Process(ctx, w.PID)
	if err != nil {
		log.Printf("[REGISTRY] Could not find owner process %d of window %d: %v", w.PID, w.Handle, err)
		errs = append(errs, &platform.FocusError{Handle: w.Handle, Err: err})
		return errors.Join(errs...)
	}

	go func() {
		actx, cancel := context.WithTimeout(context.Background(), activateTimeout)
		defer cancel()
		if err := r.ws.Activate(actx, proc); err != nil {
			log.Printf("[REGISTRY] (%s/%s) Could not activate application: %v", w.AppName, w.Title, err)
		}
	}()

	return errors.Join(errs...)
}

func (r *Registry) tracked(pid int) (platform.Process, bool) {
	for _, p := range r.procs {
		if p.PID == pid {
			return p, true
		}
	}
	return platform.Process{}, false
}

func (r *Registry) indexOf(h platform.Handle) int {
	for i, w := range r.windows {
		if w.Handle == h {
			return i
		}
	}
	return -1
}

func (r *Registry) remove(h platform.Handle) bool {
	kept := r.windows[:0]
	removed := false
	for _, w := range r.windows {
		if w.Handle == h {
			removed = true
			continue
		}
		kept = append(kept, w)
	}
	r.windows = kept
	return removed
}

func (r *Registry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

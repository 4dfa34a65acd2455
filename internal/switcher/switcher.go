// Package switcher ties the registry, search, selection and preview together
// behind the surface the overlay drives.
//
// A Switcher is not safe for concurrent use. All methods must run on the
// goroutine that drains Options.Dispatcher; background work (subscription
// events, captures) reaches it only through that dispatcher.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/chess10kp/lswitch/internal/dispatch"
	"github.com/chess10kp/lswitch/internal/item"
	"github.com/chess10kp/lswitch/internal/platform"
	"github.com/chess10kp/lswitch/internal/preview"
	"github.com/chess10kp/lswitch/internal/rank"
	"github.com/chess10kp/lswitch/internal/registry"
	"github.com/chess10kp/lswitch/internal/search"
	"github.com/chess10kp/lswitch/internal/selection"
)

// ErrNoApplications is returned when an application is entered but no
// application provider is configured.
var ErrNoApplications = errors.New("no application provider")

type Options struct {
	Windows    platform.WindowSystem
	Capturer   platform.Capturer   // nil disables previews
	Apps       platform.AppProvider // nil disables application results
	Dispatcher dispatch.Dispatcher

	Threshold      *int // nil uses rank.Threshold; 0 keeps every positive score
	MaxResults     int
	ScoreCacheSize int
	Parallelism    int

	PreviewWorkers   int
	PreviewCacheSize int
	CaptureTimeout   time.Duration
}

// State is a snapshot handed to listeners after every change.
type State struct {
	Query      string
	Results    []search.Result
	Selected   int
	Preview    image.Image
	PreviewErr error
}

type Switcher struct {
	reg   *registry.Registry
	coord *search.Coordinator
	sel   *selection.Controller
	prev  *preview.Cache
	apps  platform.AppProvider

	appItems   []item.Application
	query      string
	results    []search.Result
	refreshing bool

	listeners []func(State)
}

func New(opts Options) (*Switcher, error) {
	if opts.Windows == nil {
		return nil, errors.New("switcher: window system is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("switcher: dispatcher is required")
	}

	threshold := rank.Threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	s := &Switcher{
		reg:  registry.New(opts.Windows, opts.Dispatcher, registry.WithParallelism(opts.Parallelism)),
		sel:  selection.NewController(),
		apps: opts.Apps,
		coord: search.NewCoordinator(
			search.WithThreshold(threshold),
			search.WithMaxResults(opts.MaxResults),
			search.WithCacheSize(opts.ScoreCacheSize),
		),
	}

	if opts.Capturer != nil {
		prev, err := preview.New(opts.Capturer, opts.Dispatcher,
			preview.WithPoolSize(opts.PreviewWorkers),
			preview.WithCacheSize(opts.PreviewCacheSize),
			preview.WithCaptureTimeout(opts.CaptureTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create preview cache: %w", err)
		}
		prev.OnUpdate(func(preview.Update) { s.notify() })
		s.prev = prev
	}

	s.reg.OnChange(s.registryChanged)
	return s, nil
}

// Start discovers windows and applications and runs the empty query.
func (s *Switcher) Start(ctx context.Context) {
	start := time.Now()

	s.refreshing = true
	s.reg.Initialize(ctx)
	s.loadApps(ctx)
	s.refreshPreviews(ctx)
	s.refreshing = false

	s.SetQuery("")
	log.Printf("[SWITCHER] Started in %v: %d windows, %d applications",
		time.Since(start), len(s.reg.Items()), len(s.appItems))
}

// Close releases subscriptions and capture workers.
func (s *Switcher) Close() {
	s.reg.Close()
	if s.prev != nil {
		s.prev.Close()
	}
}

// Subscribe registers fn to receive a State after every change.
func (s *Switcher) Subscribe(fn func(State)) {
	s.listeners = append(s.listeners, fn)
}

func (s *Switcher) Query() string {
	return s.query
}

// CurrentItems returns the ranked items for the current query.
func (s *Switcher) CurrentItems() []item.Item {
	return s.sel.Items()
}

// CurrentResults returns the ranked results, including scores and match
// positions.
func (s *Switcher) CurrentResults() []search.Result {
	return s.results
}

// CurrentSelectionIndex returns the selected position, or selection.None.
func (s *Switcher) CurrentSelectionIndex() int {
	return s.sel.Index()
}

// CurrentPreview returns the preview of the selected window. A nil image with
// a nil error means nothing is selected or the selection is an application.
func (s *Switcher) CurrentPreview() (image.Image, error) {
	if s.prev == nil {
		return nil, nil
	}
	return s.prev.Current()
}

// Windows returns every known window in discovery order.
func (s *Switcher) Windows() []*item.Window {
	return s.reg.Items()
}

func (s *Switcher) SetQuery(query string) {
	s.query = query
	s.search()
	s.apply(s.sel.QueryChanged(s.items()))
}

func (s *Switcher) SelectNext() {
	s.apply(s.sel.SelectNext())
}

func (s *Switcher) SelectPrevious() {
	s.apply(s.sel.SelectPrevious())
}

func (s *Switcher) Select(it item.Item) {
	s.apply(s.sel.Select(it))
}

// EnterSelected focuses the selected window or opens the selected
// application, then clears the query.
func (s *Switcher) EnterSelected(ctx context.Context) error {
	var err error

	switch it := s.sel.Selected().(type) {
	case *item.Window:
		log.Printf("[SWITCHER] Focusing '%s'", it.Label())
		err = s.reg.Focus(ctx, it)
	case item.Application:
		log.Printf("[SWITCHER] Opening %s", it.Path)
		if s.apps == nil {
			err = ErrNoApplications
		} else if err = s.apps.OpenApplication(it.Path); err != nil {
			log.Printf("[SWITCHER] Failed to open %s: %v", it.Path, err)
		}
	}

	s.SetQuery("")
	return err
}

// Refresh re-discovers windows of known processes, remaps preview sources
// and re-ranks the current query keeping the selected position.
func (s *Switcher) Refresh(ctx context.Context) {
	s.refreshing = true
	s.reg.Refresh(ctx)
	s.refreshPreviews(ctx)
	s.refreshing = false

	s.rerank()
}

// FullRefresh is Refresh over a fresh process list, and also reloads
// applications.
func (s *Switcher) FullRefresh(ctx context.Context) {
	s.refreshing = true
	if inv, ok := s.apps.(cacheInvalidator); ok {
		inv.InvalidateCache()
	}
	s.reg.FullRefresh(ctx)
	s.loadApps(ctx)
	s.refreshPreviews(ctx)
	s.refreshing = false

	s.rerank()
}

func (s *Switcher) registryChanged() {
	if s.refreshing {
		return
	}
	s.rerank()
}

func (s *Switcher) rerank() {
	s.search()
	s.apply(s.sel.ListReplaced(s.items()))
}

func (s *Switcher) search() {
	var apps []item.Application
	if s.query != "" {
		apps = s.appItems
	}
	s.results = s.coord.Search(s.query, s.reg.Items(), apps)
}

func (s *Switcher) items() []item.Item {
	items := make([]item.Item, len(s.results))
	for i, r := range s.results {
		items[i] = r.Item
	}
	return items
}

func (s *Switcher) apply(t selection.Transition) {
	if s.prev != nil {
		switch t.Effect {
		case selection.EffectFetchPreview:
			s.prev.Request(t.Item.(*item.Window))
		case selection.EffectClearPreview:
			s.prev.Clear()
		}
	}
	s.notify()
}

// cacheInvalidator is implemented by providers that keep their own list cache.
type cacheInvalidator interface {
	InvalidateCache()
}

func (s *Switcher) loadApps(ctx context.Context) {
	if s.apps == nil {
		return
	}
	entries, err := s.apps.InstalledApplications(ctx)
	if err != nil {
		log.Printf("[SWITCHER] Failed to load applications, keeping %d: %v", len(s.appItems), err)
		return
	}
	s.appItems = item.Applications(entries)
	s.coord.InvalidateCache()
}

func (s *Switcher) refreshPreviews(ctx context.Context) {
	if s.prev != nil {
		s.prev.Refresh(ctx, s.reg.Items())
	}
}

func (s *Switcher) notify() {
	if len(s.listeners) == 0 {
		return
	}
	st := State{
		Query:    s.query,
		Results:  s.results,
		Selected: s.sel.Index(),
	}
	st.Preview, st.PreviewErr = s.CurrentPreview()
	for _, fn := range s.listeners {
		fn(st)
	}
}

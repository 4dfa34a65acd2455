package sway

import (
	"context"
	"log"
	"sync"

	"github.com/joshuarubin/go-sway"

	"github.com/chess10kp/lswitch/internal/platform"
)

type deliverFunc func(pid int, h platform.Handle, change string)

// eventStream multiplexes one compositor event subscription across any number
// of per-process subscribers. The stream runs while at least one subscriber
// exists.
type eventStream struct {
	connect func(ctx context.Context, deliver deliverFunc) error
	probe   func(ctx context.Context) error
	alive   func(pid int) bool

	mu      sync.Mutex
	subs    map[int][]*subscription
	cancel  context.CancelFunc
	gen     uint64
	running bool
}

func newEventStream(connect func(context.Context, deliverFunc) error, probe func(context.Context) error, alive func(int) bool) *eventStream {
	return &eventStream{
		connect: connect,
		probe:   probe,
		alive:   alive,
		subs:    make(map[int][]*subscription),
	}
}

type subscription struct {
	stream *eventStream
	pid    int
	fn     func(platform.Event)
}

func (s *subscription) Close() error {
	s.stream.remove(s)
	return nil
}

func (s *eventStream) add(ctx context.Context, pid int, fn func(platform.Event)) (platform.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		if err := s.probe(ctx); err != nil {
			return nil, err
		}
		s.start()
	}

	sub := &subscription{stream: s, pid: pid, fn: fn}
	s.subs[pid] = append(s.subs[pid], sub)
	return sub, nil
}

func (s *eventStream) remove(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.subs[sub.pid]
	for i, candidate := range list {
		if candidate == sub {
			s.subs[sub.pid] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.subs[sub.pid]) == 0 {
		delete(s.subs, sub.pid)
	}
	if len(s.subs) == 0 {
		s.stopLocked()
	}
}

func (s *eventStream) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *eventStream) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.running = false
}

// start must be called with mu held.
func (s *eventStream) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.running = true

	go func() {
		err := s.connect(ctx, s.route)
		if err != nil && ctx.Err() == nil {
			log.Printf("[SWAY] Window event stream ended: %v", err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == gen {
			s.running = false
			s.cancel = nil
		}
		cancel()
	}()
}

// route delivers one compositor change to the subscribers of pid. A closed
// window whose process is gone also yields a process exit.
func (s *eventStream) route(pid int, h platform.Handle, change string) {
	kind := kindOf(change)
	if kind == platform.EventUnknown {
		return
	}

	s.mu.Lock()
	var fns []func(platform.Event)
	for _, sub := range s.subs[pid] {
		fns = append(fns, sub.fn)
	}
	s.mu.Unlock()

	if len(fns) == 0 {
		return
	}

	events := []platform.Event{{PID: pid, Handle: h, Kind: kind}}
	if kind == platform.EventDestroyed && !s.alive(pid) {
		events = append(events, platform.Event{PID: pid, Kind: platform.EventProcessExited})
	}

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

func kindOf(change string) platform.EventKind {
	switch change {
	case "title":
		return platform.EventTitleChanged
	case "new":
		return platform.EventCreated
	case "close":
		return platform.EventDestroyed
	default:
		return platform.EventUnknown
	}
}

type windowHandler struct {
	sway.EventHandler
	deliver deliverFunc
}

func (h *windowHandler) Window(ctx context.Context, e sway.WindowEvent) {
	node, err := decodeNode(e.Container)
	if err != nil {
		log.Printf("[SWAY] Could not decode window event: %v", err)
		return
	}
	h.deliver(node.PID, platform.Handle(node.ID), string(e.Change))
}

func (b *Backend) subscribeSway(ctx context.Context, deliver deliverFunc) error {
	handler := &windowHandler{EventHandler: sway.NoOpEventHandler(), deliver: deliver}
	return sway.Subscribe(ctx, handler, sway.EventTypeWindow)
}

func (b *Backend) probeSway(ctx context.Context) error {
	_, err := b.swayClient(ctx)
	return err
}

// Package platformtest provides an in-memory platform backend for tests.
package platformtest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/chess10kp/lswitch/internal/platform"
)

// Fake implements platform.WindowSystem, platform.Capturer and
// platform.AppProvider over in-memory state.
type Fake struct {
	mu sync.Mutex

	procs   []platform.Process
	windows map[int][]platform.WindowRef
	subs    map[int][]*fakeSub

	EnumErr     map[int]error
	SubErr      map[int]error
	RaiseErr    error
	ActivateErr error

	raised    []platform.Handle
	activated []int

	frames     map[string]image.Image
	captureErr map[string]error
	gates      map[string]chan struct{}
	captures   []string
	// CancelDelay keeps a cancelled gated capture busy this long before it
	// returns, like a grim process that is slow to die.
	CancelDelay time.Duration

	Apps    []platform.AppEntry
	opened  []string
	OpenErr error
}

type fakeSub struct {
	fake   *Fake
	pid    int
	fn     func(platform.Event)
	closed bool
}

func (s *fakeSub) Close() error {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	s.closed = true
	return nil
}

func New() *Fake {
	return &Fake{
		windows:    make(map[int][]platform.WindowRef),
		subs:       make(map[int][]*fakeSub),
		EnumErr:    make(map[int]error),
		SubErr:     make(map[int]error),
		frames:     make(map[string]image.Image),
		captureErr: make(map[string]error),
		gates:      make(map[string]chan struct{}),
	}
}

// AddProcess registers a running process.
func (f *Fake) AddProcess(pid int, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs = append(f.procs, platform.Process{PID: pid, Name: name})
}

// RemoveProcess forgets a process and all of its windows.
func (f *Fake) RemoveProcess(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.procs {
		if p.PID == pid {
			f.procs = append(f.procs[:i], f.procs[i+1:]...)
			break
		}
	}
	delete(f.windows, pid)
}

// AddWindow adds a window without emitting any event.
func (f *Fake) AddWindow(pid int, h platform.Handle, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[pid] = append(f.windows[pid], platform.WindowRef{Handle: h, Title: title})
}

// SetTitle renames a window without emitting any event.
func (f *Fake) SetTitle(h platform.Handle, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pid, refs := range f.windows {
		for i := range refs {
			if refs[i].Handle == h {
				f.windows[pid][i].Title = title
			}
		}
	}
}

// RemoveWindow deletes a window without emitting any event.
func (f *Fake) RemoveWindow(h platform.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pid, refs := range f.windows {
		for i := range refs {
			if refs[i].Handle == h {
				f.windows[pid] = append(refs[:i], refs[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers ev to every open subscription of ev.PID.
func (f *Fake) Emit(ev platform.Event) {
	f.mu.Lock()
	var fns []func(platform.Event)
	for _, s := range f.subs[ev.PID] {
		if !s.closed {
			fns = append(fns, s.fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// OpenSubscriptions counts live subscriptions for pid.
func (f *Fake) OpenSubscriptions(pid int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs[pid] {
		if !s.closed {
			n++
		}
	}
	return n
}

func (f *Fake) Raised() []platform.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Handle(nil), f.raised...)
}

func (f *Fake) Activated() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.activated...)
}

func (f *Fake) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func (f *Fake) Processes(ctx context.Context) ([]platform.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Process(nil), f.procs...), nil
}

func (f *Fake) Windows(ctx context.Context, proc platform.Process) ([]platform.WindowRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.EnumErr[proc.PID]; err != nil {
		return nil, err
	}
	return append([]platform.WindowRef(nil), f.windows[proc.PID]...), nil
}

func (f *Fake) Title(ctx context.Context, h platform.Handle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, refs := range f.windows {
		for _, r := range refs {
			if r.Handle == h {
				return r.Title, nil
			}
		}
	}
	return "", platform.ErrWindowGone
}

func (f *Fake) Process(ctx context.Context, pid int) (platform.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.procs {
		if p.PID == pid {
			return p, nil
		}
	}
	return platform.Process{}, platform.ErrProcessGone
}

func (f *Fake) Subscribe(ctx context.Context, proc platform.Process, fn func(platform.Event)) (platform.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SubErr[proc.PID]; err != nil {
		return nil, err
	}
	s := &fakeSub{fake: f, pid: proc.PID, fn: fn}
	f.subs[proc.PID] = append(f.subs[proc.PID], s)
	return s, nil
}

func (f *Fake) Raise(ctx context.Context, h platform.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raised = append(f.raised, h)
	return f.RaiseErr
}

func (f *Fake) Activate(ctx context.Context, proc platform.Process) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, proc.PID)
	return f.ActivateErr
}

// SetFrame makes label capturable, returning img when captured.
func (f *Fake) SetFrame(label string, img image.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames[label] = img
}

// FailCapture makes captures of label fail with err.
func (f *Fake) FailCapture(label string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captureErr[label] = err
}

// Gate blocks captures of label until the returned function is called.
func (f *Fake) Gate(label string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[label] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Captures lists the labels captured so far, in order.
func (f *Fake) Captures() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.captures...)
}

func (f *Fake) CapturableWindows(ctx context.Context) ([]platform.CaptureTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var targets []platform.CaptureTarget
	for label := range f.frames {
		targets = append(targets, platform.CaptureTarget{Label: label, Source: label})
	}
	for label := range f.captureErr {
		if _, ok := f.frames[label]; !ok {
			targets = append(targets, platform.CaptureTarget{Label: label, Source: label})
		}
	}
	return targets, nil
}

func (f *Fake) CaptureFrame(ctx context.Context, src platform.CaptureSource) (image.Image, error) {
	label, ok := src.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected source %T", src)
	}

	f.mu.Lock()
	gate := f.gates[label]
	delay := f.CancelDelay
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			time.Sleep(delay)
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, label)
	if err := f.captureErr[label]; err != nil {
		return nil, err
	}
	img, ok := f.frames[label]
	if !ok {
		return nil, platform.ErrWindowGone
	}
	return img, nil
}

func (f *Fake) InstalledApplications(ctx context.Context) ([]platform.AppEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.AppEntry(nil), f.Apps...), nil
}

func (f *Fake) OpenApplication(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, path)
	return f.OpenErr
}

// Solid returns a 1x1 image of the given gray level, handy for telling
// frames apart in assertions.
func Solid(level uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: level})
	return img
}

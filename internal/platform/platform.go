// Package platform describes the window-system operations the switcher core
// consumes. Backends (sway in production, fakes in tests) implement these
// interfaces; the core never touches a compositor directly.
package platform

import (
	"context"
	"image"
)

// Handle is a native window handle as understood by the backend.
type Handle int64

// Process is a user-facing application process that may own windows.
type Process struct {
	PID  int
	Name string
}

// WindowRef is one window as reported by per-process enumeration.
type WindowRef struct {
	Handle Handle
	Title  string
}

// EventKind is the kind of a per-process change notification.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventTitleChanged
	EventCreated
	EventDestroyed
	EventProcessExited
)

func (k EventKind) String() string {
	switch k {
	case EventTitleChanged:
		return "title_changed"
	case EventCreated:
		return "created"
	case EventDestroyed:
		return "destroyed"
	case EventProcessExited:
		return "process_exited"
	default:
		return "unknown"
	}
}

// Event is a typed change notification. It carries no backend pointers.
type Event struct {
	PID    int
	Handle Handle
	Kind   EventKind
}

// Subscription is a live per-process notification registration.
type Subscription interface {
	Close() error
}

// WindowSystem enumerates, observes and focuses windows.
//
// Subscribe callbacks may be invoked from any goroutine.
type WindowSystem interface {
	Processes(ctx context.Context) ([]Process, error)
	Windows(ctx context.Context, proc Process) ([]WindowRef, error)
	Title(ctx context.Context, h Handle) (string, error)
	Process(ctx context.Context, pid int) (Process, error)
	Subscribe(ctx context.Context, proc Process, fn func(Event)) (Subscription, error)
	Raise(ctx context.Context, h Handle) error
	Activate(ctx context.Context, proc Process) error
}

// CaptureSource identifies something a Capturer can take a frame of.
// Its concrete type belongs to the backend.
type CaptureSource interface{}

// CaptureTarget pairs a capturable window with the label it is matched by.
type CaptureTarget struct {
	Label  string
	Source CaptureSource
}

// Capturer takes single frames of on-screen windows.
type Capturer interface {
	CapturableWindows(ctx context.Context) ([]CaptureTarget, error)
	CaptureFrame(ctx context.Context, src CaptureSource) (image.Image, error)
}

// AppEntry is an installed application.
type AppEntry struct {
	Name string
	Path string
	Icon string
}

// AppProvider lists and opens installed applications.
type AppProvider interface {
	InstalledApplications(ctx context.Context) ([]AppEntry, error)
	OpenApplication(path string) error
}

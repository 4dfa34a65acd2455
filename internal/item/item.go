// Package item defines the switchable entities shown in results.
package item

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/chess10kp/lswitch/internal/platform"
)

// identityNamespace scopes name-based identities to window handles.
var identityNamespace = uuid.MustParse("6f1c3f7e-2b8a-4c39-9d4e-5a0b7c1e8f21")

// Identity is a stable surrogate key for a window, derived once from its
// native handle.
type Identity uuid.UUID

// IdentityOf derives the identity of a native handle. The same handle always
// yields the same identity.
func IdentityOf(h platform.Handle) Identity {
	return Identity(uuid.NewSHA1(identityNamespace, []byte(strconv.FormatInt(int64(h), 10))))
}

func (id Identity) String() string {
	return uuid.UUID(id).String()
}

// Item is either a *Window or an Application.
type Item interface {
	Label() string
	Key() string
	isItem()
}

// Window is an open window owned by a running process.
type Window struct {
	ID      Identity
	PID     int
	AppName string
	Title   string
	Handle  platform.Handle
}

// NewWindow builds a window item, deriving its identity from h.
func NewWindow(proc platform.Process, h platform.Handle, title string) *Window {
	return &Window{
		ID:      IdentityOf(h),
		PID:     proc.PID,
		AppName: proc.Name,
		Title:   title,
		Handle:  h,
	}
}

func (w *Window) Label() string {
	return WindowLabel(w.AppName, w.Title)
}

func (w *Window) Key() string {
	return "window:" + w.ID.String()
}

func (*Window) isItem() {}

// WindowLabel formats the label a window is ranked and matched by.
func WindowLabel(appName, title string) string {
	return fmt.Sprintf("%s: %s", appName, title)
}

// Application is an installed application that can be launched.
type Application struct {
	Name string
	Path string
	Icon string
}

func (a Application) Label() string {
	return "Open App: " + a.Name
}

func (a Application) Key() string {
	return "app:" + a.Path
}

func (Application) isItem() {}

// Equal reports whether a and b denote the same switchable entity.
func Equal(a, b Item) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Key() == b.Key()
}

// Applications converts provider entries into items.
func Applications(entries []platform.AppEntry) []Application {
	apps := make([]Application, 0, len(entries))
	for _, e := range entries {
		apps = append(apps, Application{Name: e.Name, Path: e.Path, Icon: e.Icon})
	}
	return apps
}

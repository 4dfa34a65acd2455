package ui

import (
	"github.com/gotk3/gotk3/glib"
)

// MainLoop posts work to the GLib main loop, which owns all switcher state
// once the overlay is running.
type MainLoop struct{}

func (MainLoop) Post(fn func()) {
	glib.IdleAdd(func() bool {
		fn()
		return false
	})
}

// Package layer binds the parts of gtk-layer-shell the switcher overlay needs.
package layer

/*
#cgo pkg-config: gtk-layer-shell-0
#include <stdlib.h>
#include <gtk-layer-shell.h>
*/
import "C"

import (
	"unsafe"

	"github.com/gotk3/gotk3/gtk"
)

type Layer int

const (
	LayerBackground Layer = 0
	LayerBottom     Layer = 1
	LayerTop        Layer = 2
	LayerOverlay    Layer = 3
)

type Edge int

const (
	EdgeLeft   Edge = 0
	EdgeRight  Edge = 1
	EdgeTop    Edge = 2
	EdgeBottom Edge = 3
)

type KeyboardMode int

const (
	KeyboardModeNone      KeyboardMode = 0
	KeyboardModeExclusive KeyboardMode = 1
	KeyboardModeOnDemand  KeyboardMode = 2
)

// Surface describes how an overlay is placed on the output.
type Surface struct {
	Namespace string
	Layer     Layer
	Keyboard  KeyboardMode
	Anchors   []Edge
	Margins   map[Edge]int
}

func native(w *gtk.Window) *C.GtkWindow {
	return (*C.GtkWindow)(unsafe.Pointer(w.Native()))
}

func gbool(b bool) C.gboolean {
	if b {
		return 1
	}
	return 0
}

// IsSupported reports whether the compositor speaks wlr-layer-shell.
func IsSupported() bool {
	return C.gtk_layer_is_supported() != 0
}

// Apply turns w into a layer surface. It must run before w is realized.
func Apply(w *gtk.Window, s Surface) {
	win := native(w)
	C.gtk_layer_init_for_window(win)

	if s.Namespace != "" {
		ns := C.CString(s.Namespace)
		defer C.free(unsafe.Pointer(ns))
		C.gtk_layer_set_namespace(win, ns)
	}

	C.gtk_layer_set_layer(win, C.GtkLayerShellLayer(s.Layer))
	C.gtk_layer_set_keyboard_mode(win, C.GtkLayerShellKeyboardMode(s.Keyboard))
	C.gtk_layer_set_exclusive_zone(win, 0)

	for _, edge := range s.Anchors {
		C.gtk_layer_set_anchor(win, C.GtkLayerShellEdge(edge), gbool(true))
	}
	for edge, margin := range s.Margins {
		C.gtk_layer_set_margin(win, C.GtkLayerShellEdge(edge), C.int(margin))
	}
}

// SetKeyboardMode changes keyboard interactivity of an existing surface.
func SetKeyboardMode(w *gtk.Window, mode KeyboardMode) {
	C.gtk_layer_set_keyboard_mode(native(w), C.GtkLayerShellKeyboardMode(mode))
}

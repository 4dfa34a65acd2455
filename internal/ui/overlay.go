package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/gtk"
	"github.com/gotk3/gotk3/pango"

	"github.com/chess10kp/lswitch/internal/config"
	"github.com/chess10kp/lswitch/internal/item"
	"github.com/chess10kp/lswitch/internal/layer"
	"github.com/chess10kp/lswitch/internal/platform"
	"github.com/chess10kp/lswitch/internal/search"
	"github.com/chess10kp/lswitch/internal/switcher"
)

// Overlay is the switcher window: a query entry over the ranked results, with
// the selected window's preview beside them.
type Overlay struct {
	cfg *config.Config
	ctx context.Context
	sw  *switcher.Switcher

	window        *gtk.Window
	entry         *gtk.Entry
	resultList    *gtk.ListBox
	previewImage  *gtk.Image
	previewStatus *gtk.Label
	icons         *IconCache

	rowKeys     []string
	shownFrame  image.Image
	visible     bool
	suppressing bool
}

func NewOverlay(ctx context.Context, cfg *config.Config, sw *switcher.Switcher, icons *IconCache) (*Overlay, error) {
	window, err := gtk.WindowNew(gtk.WINDOW_TOPLEVEL)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	window.SetDecorated(false)
	window.SetSkipTaskbarHint(true)
	window.SetSkipPagerHint(true)
	window.SetName("switcher-window")
	window.SetDefaultSize(cfg.Window.Width, cfg.Window.Height)

	outer, err := gtk.BoxNew(gtk.ORIENTATION_VERTICAL, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create box: %w", err)
	}
	window.Add(outer)

	entry, err := gtk.EntryNew()
	if err != nil {
		return nil, fmt.Errorf("failed to create search entry: %w", err)
	}
	entry.SetPlaceholderText("Switch to...")
	entry.SetName("switcher-entry")
	outer.PackStart(entry, false, false, 0)

	body, err := gtk.BoxNew(gtk.ORIENTATION_HORIZONTAL, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create box: %w", err)
	}
	outer.PackStart(body, true, true, 0)

	scrolled, err := gtk.ScrolledWindowNew(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrolled window: %w", err)
	}
	scrolled.SetPolicy(gtk.POLICY_NEVER, gtk.POLICY_AUTOMATIC)
	scrolled.SetVExpand(true)
	body.PackStart(scrolled, true, true, 0)

	resultList, err := gtk.ListBoxNew()
	if err != nil {
		return nil, fmt.Errorf("failed to create result list: %w", err)
	}
	resultList.SetName("result-list")
	scrolled.Add(resultList)

	pane, err := gtk.BoxNew(gtk.ORIENTATION_VERTICAL, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create box: %w", err)
	}
	pane.SetName("preview-pane")
	pane.SetSizeRequest(cfg.Preview.MaxWidth, -1)
	if cfg.Preview.Enabled {
		body.PackStart(pane, false, false, 0)
	}

	previewImage, err := gtk.ImageNew()
	if err != nil {
		return nil, fmt.Errorf("failed to create preview image: %w", err)
	}
	pane.PackStart(previewImage, true, true, 0)

	previewStatus, err := gtk.LabelNew("")
	if err != nil {
		return nil, fmt.Errorf("failed to create preview label: %w", err)
	}
	previewStatus.SetName("preview-status")
	previewStatus.SetEllipsize(pango.ELLIPSIZE_END)
	pane.PackStart(previewStatus, false, false, 0)

	o := &Overlay{
		cfg:           cfg,
		ctx:           ctx,
		sw:            sw,
		window:        window,
		entry:         entry,
		resultList:    resultList,
		previewImage:  previewImage,
		previewStatus: previewStatus,
		icons:         icons,
	}

	if layer.IsSupported() {
		layer.Apply(window, layer.Surface{
			Namespace: "lswitch",
			Layer:     layer.LayerOverlay,
			Keyboard:  layer.KeyboardModeExclusive,
			Anchors:   []layer.Edge{layer.EdgeTop},
			Margins:   map[layer.Edge]int{layer.EdgeTop: cfg.Window.TopMargin},
		})
	} else {
		log.Printf("[UI] Compositor lacks layer-shell, using a regular window")
	}

	o.setupSignals()
	sw.Subscribe(o.render)
	return o, nil
}

func (o *Overlay) setupSignals() {
	o.entry.Connect("changed", func() {
		if o.suppressing {
			return
		}
		text, _ := o.entry.GetText()
		o.sw.SetQuery(text)
	})

	o.entry.Connect("activate", func() {
		o.enter()
	})

	o.entry.Connect("key-press-event", func(_ *gtk.Entry, event *gdk.Event) bool {
		keyEvent := gdk.EventKeyNewFromEvent(event)
		if keyEvent == nil {
			return false
		}
		return o.onKeyPress(keyEvent)
	})

	o.resultList.Connect("row-activated", func(_ *gtk.ListBox, row *gtk.ListBoxRow) {
		items := o.sw.CurrentItems()
		if i := row.GetIndex(); i >= 0 && i < len(items) {
			o.sw.Select(items[i])
			o.enter()
		}
	})

	o.window.Connect("focus-out-event", func(*gtk.Window, *gdk.Event) bool {
		o.Hide()
		return false
	})
}

func (o *Overlay) onKeyPress(event *gdk.EventKey) bool {
	key := event.KeyVal()
	state := event.State()
	ctrl := state&gdk.CONTROL_MASK != 0
	switch {
	case key == gdk.KEY_Escape:
		o.Hide()
	case key == gdk.KEY_Down, key == gdk.KEY_Tab, ctrl && (key == gdk.KEY_n || key == gdk.KEY_j):
		o.sw.SelectNext()
	case key == gdk.KEY_Up, key == gdk.KEY_ISO_Left_Tab, ctrl && (key == gdk.KEY_p || key == gdk.KEY_k):
		o.sw.SelectPrevious()
	default:
		return false
	}
	return true
}

func (o *Overlay) enter() {
	err := o.sw.EnterSelected(o.ctx)
	if err != nil {
		var focusErr *platform.FocusError
		if errors.As(err, &focusErr) {
			log.Printf("[UI] %v", err)
		} else {
			log.Printf("[UI] Failed to enter selection: %v", err)
		}
	}
	o.Hide()
}

// render applies a switcher snapshot to the widgets.
func (o *Overlay) render(st switcher.State) {
	keys := make([]string, len(st.Results))
	for i, r := range st.Results {
		keys[i] = r.Item.Key()
	}
	if !sameKeys(keys, o.rowKeys) {
		o.rebuildRows(st.Results)
		o.rowKeys = keys
	}

	if st.Selected >= 0 {
		if row := o.resultList.GetRowAtIndex(st.Selected); row != nil {
			o.resultList.SelectRow(row)
		}
	} else {
		o.resultList.UnselectAll()
	}

	o.renderPreview(st)
}

func (o *Overlay) rebuildRows(results []search.Result) {
	children := o.resultList.GetChildren()
	children.Foreach(func(child interface{}) {
		if w, ok := child.(gtk.IWidget); ok {
			o.resultList.Remove(w)
		}
	})

	for _, r := range results {
		row, err := o.createRow(r)
		if err != nil {
			log.Printf("[UI] Failed to create row: %v", err)
			continue
		}
		o.resultList.Add(row)
	}
	o.resultList.ShowAll()
}

func (o *Overlay) createRow(r search.Result) (*gtk.ListBoxRow, error) {
	row, err := gtk.ListBoxRowNew()
	if err != nil {
		return nil, err
	}

	box, err := gtk.BoxNew(gtk.ORIENTATION_HORIZONTAL, 8)
	if err != nil {
		return nil, err
	}

	iconName, subtitle := "", ""
	switch it := r.Item.(type) {
	case *item.Window:
		iconName = it.AppName
		subtitle = fmt.Sprintf("pid %d", it.PID)
	case item.Application:
		iconName = it.Icon
		subtitle = "application"
	}

	if o.icons != nil {
		if pb := o.icons.Icon(iconName, o.cfg.Apps.IconSize); pb != nil {
			icon, err := gtk.ImageNewFromPixbuf(pb)
			if err == nil {
				box.PackStart(icon, false, false, 0)
			}
		}
	}

	label, err := gtk.LabelNew("")
	if err != nil {
		return nil, err
	}
	label.SetMarkup(highlightMarkup(r.Item.Label(), r.Matches, o.cfg.Styling.HighlightColor))
	label.SetHAlign(gtk.ALIGN_START)
	label.SetEllipsize(pango.ELLIPSIZE_END)
	box.PackStart(label, true, true, 0)

	sub, err := gtk.LabelNew(subtitle)
	if err != nil {
		return nil, err
	}
	if sc, err := sub.GetStyleContext(); err == nil {
		sc.AddClass("subtitle")
	}
	box.PackEnd(sub, false, false, 0)

	row.Add(box)
	return row, nil
}

func (o *Overlay) renderPreview(st switcher.State) {
	if !o.cfg.Preview.Enabled {
		return
	}

	switch {
	case st.Preview != nil:
		o.previewStatus.SetText("")
	case st.PreviewErr != nil:
		o.previewStatus.SetText(previewMessage(st.PreviewErr))
	case st.Selected >= 0 && isWindow(st.Results[st.Selected].Item):
		o.previewStatus.SetText("Capturing...")
	default:
		o.previewStatus.SetText("")
	}

	if st.Preview == o.shownFrame {
		return
	}
	o.shownFrame = st.Preview
	if st.Preview == nil {
		o.previewImage.Clear()
		return
	}

	pb, err := pixbufFromImage(st.Preview, o.cfg.Preview.MaxWidth)
	if err != nil {
		log.Printf("[UI] Failed to show preview: %v", err)
		o.previewImage.Clear()
		return
	}
	o.previewImage.SetFromPixbuf(pb)
}

func previewMessage(err error) string {
	if errors.Is(err, platform.ErrNoCaptureSource) {
		return "No preview: window is not on screen"
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return "Preview failed: " + msg
}

func isWindow(it item.Item) bool {
	_, ok := it.(*item.Window)
	return ok
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Show refreshes windows and previews, clears the query and presents the
// overlay.
func (o *Overlay) Show() {
	o.sw.Refresh(o.ctx)

	o.suppressing = true
	o.entry.SetText("")
	o.suppressing = false
	o.sw.SetQuery("")

	o.window.ShowAll()
	o.window.Present()
	o.entry.GrabFocus()
	o.visible = true
}

func (o *Overlay) Hide() {
	if !o.visible {
		return
	}
	o.window.Hide()
	o.suppressing = true
	o.entry.SetText("")
	o.suppressing = false
	o.visible = false
}

func (o *Overlay) Toggle() {
	if o.visible {
		o.Hide()
	} else {
		o.Show()
	}
}

func (o *Overlay) IsVisible() bool {
	return o.visible
}

func (o *Overlay) Destroy() {
	o.window.Destroy()
}

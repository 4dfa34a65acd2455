package ui

import (
	"bytes"
	"fmt"
	"html"
	"image"
	"image/png"
	"strings"

	"github.com/gotk3/gotk3/gdk"
)

// highlightMarkup renders label as Pango markup with the bytes at matches
// emphasised. Consecutive matches share one span.
func highlightMarkup(label string, matches []int, color string) string {
	if len(matches) == 0 {
		return html.EscapeString(label)
	}

	marked := make(map[int]bool, len(matches))
	for _, m := range matches {
		marked[m] = true
	}

	var b strings.Builder
	open := false
	for i, r := range label {
		switch {
		case marked[i] && !open:
			fmt.Fprintf(&b, `<span foreground="%s" weight="bold">`, color)
			open = true
		case !marked[i] && open:
			b.WriteString("</span>")
			open = false
		}
		b.WriteString(html.EscapeString(string(r)))
	}
	if open {
		b.WriteString("</span>")
	}
	return b.String()
}

// fitWidth scales w x h down to at most maxWidth wide, keeping the aspect.
func fitWidth(w, h, maxWidth int) (int, int) {
	if w <= maxWidth || w <= 0 {
		return w, h
	}
	scaled := h * maxWidth / w
	if scaled < 1 {
		scaled = 1
	}
	return maxWidth, scaled
}

// pixbufFromImage hands a captured frame to GDK through its PNG loader.
func pixbufFromImage(img image.Image, maxWidth int) (*gdk.Pixbuf, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	loader, err := gdk.PixbufLoaderNew()
	if err != nil {
		return nil, err
	}
	if _, err := loader.Write(buf.Bytes()); err != nil {
		loader.Close()
		return nil, fmt.Errorf("failed to load frame: %w", err)
	}
	if err := loader.Close(); err != nil {
		return nil, fmt.Errorf("failed to load frame: %w", err)
	}
	pb, err := loader.GetPixbuf()
	if err != nil {
		return nil, err
	}

	w, h := fitWidth(pb.GetWidth(), pb.GetHeight(), maxWidth)
	if w == pb.GetWidth() {
		return pb, nil
	}
	return pb.ScaleSimple(w, h, gdk.INTERP_BILINEAR)
}

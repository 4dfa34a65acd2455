package ui

import (
	"fmt"
	"log"
	"strings"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/gtk"
	lru "github.com/hashicorp/golang-lru/v2"
)

const fallbackIcon = "application-x-executable"

// IconCache keeps themed icons loaded at fixed sizes. It is used from the
// main loop only.
type IconCache struct {
	cache  *lru.Cache[string, *gdk.Pixbuf]
	theme  *gtk.IconTheme
	hits   int
	misses int
}

func NewIconCache(size int) (*IconCache, error) {
	if size <= 0 {
		size = 200
	}

	cache, err := lru.New[string, *gdk.Pixbuf](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create icon cache: %w", err)
	}

	theme, err := gtk.IconThemeGetDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to get default icon theme: %w", err)
	}

	return &IconCache{cache: cache, theme: theme}, nil
}

// Icon loads name at size, falling back to a generic executable icon.
func (ic *IconCache) Icon(name string, size int) *gdk.Pixbuf {
	for _, candidate := range iconCandidates(name) {
		if pb := ic.load(candidate, size); pb != nil {
			return pb
		}
	}
	return nil
}

func (ic *IconCache) load(name string, size int) *gdk.Pixbuf {
	key := fmt.Sprintf("%s@%d", name, size)
	if pb, ok := ic.cache.Get(key); ok {
		ic.hits++
		return pb
	}
	ic.misses++

	if !ic.theme.HasIcon(name) {
		return nil
	}
	pb, err := ic.theme.LoadIcon(name, size, gtk.ICON_LOOKUP_FORCE_SIZE)
	if err != nil || pb == nil {
		log.Printf("[UI] Failed to load icon %s: %v", name, err)
		return nil
	}
	ic.cache.Add(key, pb)
	return pb
}

func (ic *IconCache) Stats() (hits, misses, size int) {
	return ic.hits, ic.misses, ic.cache.Len()
}

// iconCandidates lists theme names to try for an app or window, most specific
// first. Reverse-DNS app ids also try their last component.
func iconCandidates(name string) []string {
	var out []string
	if name != "" {
		out = append(out, name)
		if lower := strings.ToLower(name); lower != name {
			out = append(out, lower)
		}
		if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
			out = append(out, strings.ToLower(name[i+1:]))
		}
	}
	return append(out, fallbackIcon)
}

// Package selection tracks which result is highlighted. Every transition
// returns the side effect the caller should perform on the preview.
package selection

import (
	"github.com/chess10kp/lswitch/internal/item"
)

// None is the index of an empty selection.
const None = -1

// Effect is the preview side effect a transition asks for.
type Effect int

const (
	EffectNone Effect = iota
	EffectFetchPreview
	EffectClearPreview
)

func (e Effect) String() string {
	switch e {
	case EffectFetchPreview:
		return "fetch-preview"
	case EffectClearPreview:
		return "clear-preview"
	default:
		return "none"
	}
}

// Transition describes the state after an operation. Item is nil when Index
// is None.
type Transition struct {
	Index  int
	Item   item.Item
	Effect Effect
}

// Controller is the selection state machine over the current result list.
type Controller struct {
	items []item.Item
	index int
}

func NewController() *Controller {
	return &Controller{index: None}
}

// Index returns the selected position, or None.
func (c *Controller) Index() int {
	return c.index
}

// Selected returns the selected item, or nil.
func (c *Controller) Selected() item.Item {
	if c.index == None {
		return nil
	}
	return c.items[c.index]
}

// Items returns the list the selection refers to.
func (c *Controller) Items() []item.Item {
	return c.items
}

// QueryChanged installs a fresh result list and selects its first entry.
func (c *Controller) QueryChanged(items []item.Item) Transition {
	c.items = items
	if len(items) == 0 {
		return c.moveTo(None)
	}
	return c.moveTo(0)
}

// SelectNext advances circularly. From an empty selection it selects the
// first entry.
func (c *Controller) SelectNext() Transition {
	n := len(c.items)
	if n == 0 {
		return c.current()
	}
	if c.index == None {
		return c.moveTo(0)
	}
	return c.moveTo((c.index + 1) % n)
}

// SelectPrevious retreats circularly. From an empty selection it selects the
// last entry.
func (c *Controller) SelectPrevious() Transition {
	n := len(c.items)
	if n == 0 {
		return c.current()
	}
	if c.index == None {
		return c.moveTo(n - 1)
	}
	return c.moveTo((c.index - 1 + n) % n)
}

// Select moves to it if it is in the list; otherwise nothing changes.
func (c *Controller) Select(it item.Item) Transition {
	for i, candidate := range c.items {
		if item.Equal(candidate, it) {
			return c.moveTo(i)
		}
	}
	return c.current()
}

// ListReplaced installs a refreshed list while keeping the selected position,
// clamped to the new length. The previously selected item is not tracked.
func (c *Controller) ListReplaced(items []item.Item) Transition {
	c.items = items
	if c.index == None {
		return c.current()
	}
	if len(items) == 0 {
		return c.moveTo(None)
	}
	i := c.index
	if i > len(items)-1 {
		i = len(items) - 1
	}
	return c.moveTo(i)
}

func (c *Controller) moveTo(i int) Transition {
	c.index = i
	t := c.current()
	switch t.Item.(type) {
	case *item.Window:
		t.Effect = EffectFetchPreview
	default:
		t.Effect = EffectClearPreview
	}
	return t
}

func (c *Controller) current() Transition {
	return Transition{Index: c.index, Item: c.Selected()}
}

package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chess10kp/lswitch/internal/item"
	"github.com/chess10kp/lswitch/internal/platform"
)

var (
	safari = item.NewWindow(platform.Process{PID: 100, Name: "Safari"}, 1, "GitHub")
	mail   = item.NewWindow(platform.Process{PID: 200, Name: "Mail"}, 3, "Inbox")
	gimp   = item.Application{Name: "Gimp", Path: "/usr/share/applications/gimp.desktop"}
)

func TestQueryChangedSelectsFirst(t *testing.T) {
	c := NewController()

	tr := c.QueryChanged([]item.Item{safari, mail})
	assert.Equal(t, Transition{Index: 0, Item: safari, Effect: EffectFetchPreview}, tr)

	tr = c.QueryChanged(nil)
	assert.Equal(t, Transition{Index: None, Effect: EffectClearPreview}, tr)
}

func TestApplicationSelectionClearsPreview(t *testing.T) {
	c := NewController()

	tr := c.QueryChanged([]item.Item{gimp, safari})

	assert.Equal(t, EffectClearPreview, tr.Effect)
	assert.Equal(t, EffectFetchPreview, c.SelectNext().Effect)
}

func TestNextAndPreviousWrap(t *testing.T) {
	c := NewController()
	c.QueryChanged([]item.Item{safari, mail, gimp})

	assert.Equal(t, 1, c.SelectNext().Index)
	assert.Equal(t, 2, c.SelectNext().Index)
	assert.Equal(t, 0, c.SelectNext().Index)
	assert.Equal(t, 2, c.SelectPrevious().Index)
}

func TestNextCyclesBackToStart(t *testing.T) {
	list := []item.Item{safari, mail, gimp}
	for start := 0; start < len(list); start++ {
		c := NewController()
		c.QueryChanged(list)
		c.Select(list[start])

		for i := 0; i < len(list); i++ {
			c.SelectNext()
		}
		assert.True(t, item.Equal(list[start], c.Selected()), "start %d", start)
	}
}

func TestFromEmptySelection(t *testing.T) {
	list := []item.Item{safari, mail, gimp}

	c := &Controller{items: list, index: None}
	assert.Equal(t, 0, c.SelectNext().Index)

	c = &Controller{items: list, index: None}
	assert.Equal(t, 2, c.SelectPrevious().Index)
}

func TestMovesOnEmptyListAreNoops(t *testing.T) {
	c := NewController()
	c.QueryChanged(nil)

	assert.Equal(t, Transition{Index: None}, c.SelectNext())
	assert.Equal(t, Transition{Index: None}, c.SelectPrevious())
}

func TestSelectExplicit(t *testing.T) {
	c := NewController()
	c.QueryChanged([]item.Item{safari, mail})

	tr := c.Select(mail)
	assert.Equal(t, 1, tr.Index)
	assert.Equal(t, EffectFetchPreview, tr.Effect)

	tr = c.Select(gimp)
	assert.Equal(t, Transition{Index: 1, Item: mail}, tr)
}

func TestListReplacedKeepsIndex(t *testing.T) {
	c := NewController()
	c.QueryChanged([]item.Item{safari, mail})

	// The selected window closed: the index stays and now names the other item.
	tr := c.ListReplaced([]item.Item{mail})
	require.Equal(t, 0, tr.Index)
	assert.Equal(t, mail, tr.Item)
}

func TestListReplacedClamps(t *testing.T) {
	c := NewController()
	c.QueryChanged([]item.Item{safari, mail, gimp})
	c.SelectPrevious()

	assert.Equal(t, 1, c.ListReplaced([]item.Item{safari, mail}).Index)
	assert.Equal(t, Transition{Index: None, Effect: EffectClearPreview}, c.ListReplaced(nil))
}

func TestListReplacedFromEmptyStaysEmpty(t *testing.T) {
	c := NewController()

	tr := c.ListReplaced([]item.Item{safari})

	assert.Equal(t, Transition{Index: None}, tr)
	assert.Len(t, c.Items(), 1)
}

package locator

import (
	"testing"

	"github.com/entrhq/renewbot/pkg/browser/browsertest"
	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	t.Run("already checked", func(t *testing.T) {
		box := browsertest.NewElement("")
		box.Checked = true
		assert.NoError(t, Check(box))
		assert.Equal(t, 0, box.ClickCount())
	})

	t.Run("click registers", func(t *testing.T) {
		box := browsertest.NewElement("")
		box.ToggleOnClick = true
		assert.NoError(t, Check(box))
		assert.True(t, box.Checked)
		assert.Equal(t, 1, box.ClickCount())
	})

	t.Run("click ignored", func(t *testing.T) {
		box := browsertest.NewElement("")
		assert.Error(t, Check(box))
	})
}

func TestSelect(t *testing.T) {
	selected := browsertest.NewElement("Yes")
	selected.Checked = true
	assert.NoError(t, Select(selected))
	assert.Equal(t, 0, selected.ClickCount())

	button := browsertest.NewElement("Store consent outside")
	assert.NoError(t, Select(button))
	assert.Equal(t, 1, button.ClickCount())
}

package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenAlert(t *testing.T) {
	t.Run("Should read the level and the message", func(t *testing.T) {
		line := FlattenAlert(`<div class="alert alert-danger alert-dismissible" role="alert">` +
			`<strong>fail</strong> <span>Action   failed.</span></div>`)
		assert.Equal(t, AlertLine{Level: "fail", Text: "Action failed."}, line)
	})

	t.Run("Should keep plain text as is", func(t *testing.T) {
		line := FlattenAlert("Fail.")
		assert.Equal(t, AlertLine{Text: "Fail."}, line)
	})

	t.Run("Should return nothing for an empty fragment", func(t *testing.T) {
		assert.Equal(t, AlertLine{}, FlattenAlert(""))
	})
}

func TestFlattenStatusbar(t *testing.T) {
	t.Run("Should list the header and both progress lines", func(t *testing.T) {
		html := `<div class="accordion-item" id="parse_accordion_item">` +
			`<h2 class="accordion-header"><button class="accordion-button">Parse progress</button></h2>` +
			`<div id="parse_accordion_collapse" class="accordion-collapse collapse show">` +
			`<div class="progress-all">All: 3/4 (75%)</div>` +
			`<div class="progress-current">favorites: 1/2</div></div></div>`

		lines := FlattenStatusbar(html)

		assert.Equal(t, []string{"Parse progress", "All: 3/4 (75%)", "favorites: 1/2"}, lines)
	})

	t.Run("Should fall back to the text of unknown markup", func(t *testing.T) {
		assert.Equal(t, []string{"working"}, FlattenStatusbar("<p>working</p>"))
		assert.Empty(t, FlattenStatusbar(""))
	})
}

func TestFlattenTitles(t *testing.T) {
	t.Run("Should read tabs with counts and the selected titles", func(t *testing.T) {
		html := `<ul class="nav nav-tabs">` +
			`<li class="nav-item">watch <span class="badge">1</span></li>` +
			`<li class="nav-item active">desired <span class="badge">2</span></li>` +
			`</ul><ul class="list-group">` +
			`<li class="list-group-item">two</li><li class="list-group-item">three</li></ul>`

		list := FlattenTitles(html)

		require.Len(t, list.Tabs, 2)
		assert.Equal(t, TitleTab{List: "watch", Count: 1}, list.Tabs[0])
		assert.Equal(t, TitleTab{List: "desired", Count: 2, Active: true}, list.Tabs[1])
		assert.Equal(t, []string{"two", "three"}, list.Items)
		assert.False(t, list.Empty)
		assert.Equal(t, "desired", list.ActiveTab())
		assert.Equal(t, 1, list.Count("watch"))
		assert.Equal(t, 0, list.Count("errors"))
	})

	t.Run("Should flag an empty list", func(t *testing.T) {
		list := FlattenTitles(`<ul class="list-group"><li class="list-group-item empty">No titles.</li></ul>`)
		assert.True(t, list.Empty)
		assert.Empty(t, list.Items)
		assert.Equal(t, "", list.ActiveTab())
	})
}

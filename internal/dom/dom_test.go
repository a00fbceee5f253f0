package dom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const timelinePage = `<html><body>
<nav><a role="tab" aria-selected="true"><span>For you</span></a></nav>
<div aria-label="Home timeline">
  <div data-testid="cellInnerDiv" id="one"><article><div data-testid="tweetText" lang="en">hello</div></article></div>
  <div data-testid="cellInnerDiv" id="two" style="color: red"><article></article></div>
</div>
</body></html>`

func mustParse(t *testing.T, opts ...Option) *Document {
	t.Helper()

	doc, err := ParseString(timelinePage, "https://x.com/home", opts...)
	require.NoError(t, err)

	return doc
}

func newCell(id string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: "div"}
	SetAttr(n, "data-testid", "cellInnerDiv")
	SetAttr(n, "id", id)

	return n
}

// ---------------------------------------------------------------------------
// Queries and attributes
// ---------------------------------------------------------------------------

func TestQueries(t *testing.T) {
	doc := mustParse(t)

	container := doc.QuerySelector(`div[aria-label="Home timeline"]`)
	require.NotNil(t, container)

	cells := QueryAll(container, `[data-testid="cellInnerDiv"]`)
	require.Len(t, cells, 2)

	text := Query(cells[0], `[data-testid="tweetText"]`)
	require.NotNil(t, text)
	assert.Equal(t, "hello", Text(text))

	lang, ok := Attr(text, "lang")
	assert.True(t, ok)
	assert.Equal(t, "en", lang)

	assert.Nil(t, Query(cells[1], `[data-testid="tweetText"]`))
	assert.Nil(t, Query(nil, "div"))
}

func TestQuery_InvalidSelectorMatchesNothing(t *testing.T) {
	doc := mustParse(t)
	assert.Nil(t, doc.QuerySelector("div[[["))
	assert.Empty(t, doc.QuerySelectorAll("div[[["))
}

func TestAttrRoundTrip(t *testing.T) {
	n := newCell("x")

	SetAttr(n, "data-feedsieve", "hidden")
	v, ok := Attr(n, "data-feedsieve")
	assert.True(t, ok)
	assert.Equal(t, "hidden", v)

	SetAttr(n, "data-feedsieve", "shown")
	v, _ = Attr(n, "data-feedsieve")
	assert.Equal(t, "shown", v)

	assert.True(t, RemoveAttr(n, "data-feedsieve"))
	assert.False(t, RemoveAttr(n, "data-feedsieve"))
}

func TestSetHiddenPreservesOtherDeclarations(t *testing.T) {
	doc := mustParse(t)
	cell := doc.QuerySelector("#two")
	require.NotNil(t, cell)

	assert.False(t, IsHidden(cell))

	SetHidden(cell, true)
	assert.True(t, IsHidden(cell))

	style, _ := Attr(cell, "style")
	assert.Equal(t, "color: red; display: none", style)

	SetHidden(cell, false)
	assert.False(t, IsHidden(cell))

	style, _ = Attr(cell, "style")
	assert.Equal(t, "color: red", style)
}

func TestSetHiddenRemovesEmptyStyle(t *testing.T) {
	n := newCell("x")

	SetHidden(n, true)
	SetHidden(n, false)

	_, ok := Attr(n, "style")
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Observation
// ---------------------------------------------------------------------------

func TestObserve_SynchronousDelivery(t *testing.T) {
	doc := mustParse(t)
	container := doc.QuerySelector(`div[aria-label="Home timeline"]`)

	var got []Record

	doc.Observe(container, func(recs []Record) { got = append(got, recs...) })

	added := newCell("three")
	doc.AppendChild(container, added)

	require.Len(t, got, 1)
	assert.Equal(t, container, got[0].Target)
	assert.Equal(t, []*html.Node{added}, got[0].Added)
	assert.True(t, doc.Attached(added))
}

func TestObserve_BatchesThroughDispatcher(t *testing.T) {
	var queue []func()

	doc := mustParse(t, WithDispatcher(func(fn func()) { queue = append(queue, fn) }))
	container := doc.QuerySelector(`div[aria-label="Home timeline"]`)

	var batches [][]Record

	doc.Observe(container, func(recs []Record) { batches = append(batches, recs) })

	doc.AppendChild(container, newCell("a"))
	doc.AppendChild(container, newCell("b"))
	first := doc.QuerySelector("#one")
	doc.RemoveChild(container, first)

	require.Len(t, queue, 1, "one delivery is scheduled per batch")

	for _, fn := range queue {
		fn()
	}

	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Equal(t, []*html.Node{first}, batches[0][2].Removed)
	assert.False(t, doc.Attached(first))
}

func TestObserve_IgnoresChangesOutsideTarget(t *testing.T) {
	doc := mustParse(t)
	container := doc.QuerySelector(`div[aria-label="Home timeline"]`)
	nav := doc.QuerySelector("nav")

	calls := 0

	doc.Observe(container, func([]Record) { calls++ })
	doc.AppendChild(nav, newCell("elsewhere"))

	assert.Zero(t, calls)
}

func TestObserve_DisconnectDiscardsPending(t *testing.T) {
	var queue []func()

	doc := mustParse(t, WithDispatcher(func(fn func()) { queue = append(queue, fn) }))
	container := doc.QuerySelector(`div[aria-label="Home timeline"]`)

	calls := 0
	obs := doc.Observe(container, func([]Record) { calls++ })

	doc.AppendChild(container, newCell("a"))
	obs.Disconnect()
	obs.Disconnect()

	for _, fn := range queue {
		fn()
	}

	assert.Zero(t, calls)
}

func TestReplaceChildren_SingleRecord(t *testing.T) {
	doc := mustParse(t)
	container := doc.QuerySelector(`div[aria-label="Home timeline"]`)

	var got []Record

	doc.Observe(container, func(recs []Record) { got = append(got, recs...) })

	fresh := newCell("fresh")
	doc.ReplaceChildren(container, fresh)

	require.Len(t, got, 1)
	assert.Equal(t, []*html.Node{fresh}, got[0].Added)
	assert.NotEmpty(t, got[0].Removed)
	assert.Len(t, QueryAll(container, `[data-testid="cellInnerDiv"]`), 1)
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

func TestNavigate(t *testing.T) {
	doc := mustParse(t)
	assert.Equal(t, "/home", doc.Path())

	var seen []string

	remove := doc.OnNavigate(func(loc string) { seen = append(seen, loc) })

	doc.Navigate("https://x.com/explore")
	assert.Equal(t, "/explore", doc.Path())

	doc.Replace("https://x.com/home")
	assert.Equal(t, "/home", doc.Path())

	remove()
	doc.Navigate("https://x.com/notifications")

	assert.Equal(t, []string{"https://x.com/explore"}, seen)
}

func TestNavigate_DeferredDispatchReachesEveryListener(t *testing.T) {
	var queued []func()

	doc := mustParse(t, WithDispatcher(func(fn func()) { queued = append(queued, fn) }))

	var first, second, third []string

	doc.OnNavigate(func(loc string) { first = append(first, loc) })
	removeSecond := doc.OnNavigate(func(loc string) { second = append(second, loc) })
	doc.OnNavigate(func(loc string) { third = append(third, loc) })

	doc.Navigate("https://x.com/explore")
	require.Len(t, queued, 3)

	removeSecond()

	for _, fn := range queued {
		fn()
	}

	assert.Equal(t, []string{"https://x.com/explore"}, first)
	assert.Empty(t, second, "removed before delivery")
	assert.Equal(t, []string{"https://x.com/explore"}, third)
}

func TestRender(t *testing.T) {
	doc := mustParse(t)
	SetHidden(doc.QuerySelector("#one"), true)

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.Contains(t, buf.String(), `id="one" style="display: none"`)
}

package visibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/html"

	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/loop"
)

func node() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "div"}
}

func TestTag(t *testing.T) {
	n := node()
	assert.Equal(t, Unknown, Tag(n))

	dom.SetAttr(n, TagAttr, "hidden")
	assert.Equal(t, Hidden, Tag(n))

	dom.SetAttr(n, TagAttr, "garbage")
	assert.Equal(t, Unknown, Tag(n))

	dom.SetAttr(n, TagAttr, "shown")
	assert.Equal(t, Shown, Tag(n))

	Forget(n)
	assert.Equal(t, Unknown, Tag(n))
	assert.NotPanics(t, func() { Forget(nil) })
}

func TestApply_TagIsSynchronousWriteIsDeferred(t *testing.T) {
	m := loop.NewManual(time.Unix(0, 0))
	a := NewApplier(m)
	n := node()

	a.Apply(n, false)

	assert.Equal(t, Hidden, Tag(n))
	assert.False(t, dom.IsHidden(n), "style must wait for the frame")
	assert.Equal(t, 1, a.Pending())

	m.Frame()

	assert.True(t, dom.IsHidden(n))
	assert.Equal(t, 1, a.Mutations())
	assert.Zero(t, a.Pending())
}

func TestApply_NilIsNoop(t *testing.T) {
	m := loop.NewManual(time.Unix(0, 0))
	a := NewApplier(m)

	a.Apply(nil, false)

	assert.Zero(t, a.Pending())
	assert.Zero(t, m.PendingFrames())
}

func TestApply_Idempotent(t *testing.T) {
	m := loop.NewManual(time.Unix(0, 0))
	a := NewApplier(m)
	n := node()

	a.Apply(n, false)
	m.Frame()
	assert.Equal(t, 1, a.Mutations())

	a.Apply(n, false)
	m.Frame()

	assert.True(t, dom.IsHidden(n))
	assert.Equal(t, 1, a.Mutations(), "second apply performs no visible mutation")
}

func TestApply_LastDecisionInFrameWins(t *testing.T) {
	m := loop.NewManual(time.Unix(0, 0))
	a := NewApplier(m)
	n := node()

	a.Apply(n, false)
	a.Apply(n, true)

	assert.Equal(t, Shown, Tag(n))
	assert.Equal(t, 1, a.Pending())
	assert.Equal(t, 1, m.PendingFrames(), "one frame per batch")

	m.Frame()

	assert.False(t, dom.IsHidden(n))
	assert.Zero(t, a.Mutations())
}

func TestApply_BatchesManyNodes(t *testing.T) {
	m := loop.NewManual(time.Unix(0, 0))
	a := NewApplier(m)

	nodes := []*html.Node{node(), node(), node()}
	for _, n := range nodes {
		a.Apply(n, false)
	}

	assert.Equal(t, 1, m.PendingFrames())
	m.Frame()

	for _, n := range nodes {
		assert.True(t, dom.IsHidden(n))
	}

	assert.Equal(t, 3, a.Mutations())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "shown", StateOf(true).String())
	assert.Equal(t, "hidden", StateOf(false).String())
	assert.Equal(t, "unknown", Unknown.String())
}

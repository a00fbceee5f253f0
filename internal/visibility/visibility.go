// Package visibility records and applies show/hide decisions on host nodes.
//
// The decision is tagged on the node synchronously so that a scan running
// before the next paint already sees it. The style write itself is batched
// and deferred to the next frame.
package visibility

import (
	"golang.org/x/net/html"

	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/loop"
)

// TagAttr is the attribute holding the applied-visibility tag.
const TagAttr = "data-feedsieve"

// State is the last decision applied to a node.
type State int

// Tag states.
const (
	Unknown State = iota
	Shown
	Hidden
)

func (s State) String() string {
	switch s {
	case Shown:
		return "shown"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// StateOf maps a visibility to its tag state.
func StateOf(visible bool) State {
	if visible {
		return Shown
	}

	return Hidden
}

// Tag reads the applied-visibility tag from n. Missing or unrecognised
// values read as Unknown.
func Tag(n *html.Node) State {
	v, _ := dom.Attr(n, TagAttr)

	switch v {
	case "shown":
		return Shown
	case "hidden":
		return Hidden
	default:
		return Unknown
	}
}

// Forget removes the tag from n.
func Forget(n *html.Node) {
	if n != nil {
		dom.RemoveAttr(n, TagAttr)
	}
}

// Applier batches visibility writes into frames.
type Applier struct {
	frames    loop.FrameRequester
	pending   map[*html.Node]bool
	order     []*html.Node
	requested bool
	mutations int
}

// NewApplier returns an applier that flushes through frames.
func NewApplier(frames loop.FrameRequester) *Applier {
	return &Applier{
		frames:  frames,
		pending: make(map[*html.Node]bool),
	}
}

// Apply records the decision on n and schedules the style write. A later
// Apply for the same node before the frame replaces the earlier one.
func (a *Applier) Apply(n *html.Node, visible bool) {
	if n == nil {
		return
	}

	dom.SetAttr(n, TagAttr, StateOf(visible).String())

	if _, queued := a.pending[n]; !queued {
		a.order = append(a.order, n)
	}

	a.pending[n] = visible

	if !a.requested {
		a.requested = true
		a.frames.RequestFrame(a.flush)
	}
}

// Pending reports the number of writes waiting for the next frame.
func (a *Applier) Pending() int { return len(a.order) }

// Mutations reports how many style writes actually changed a node.
func (a *Applier) Mutations() int { return a.mutations }

func (a *Applier) flush() {
	order, pending := a.order, a.pending
	a.order = nil
	a.pending = make(map[*html.Node]bool)
	a.requested = false

	for _, n := range order {
		hidden := !pending[n]
		if dom.IsHidden(n) == hidden {
			continue
		}

		dom.SetHidden(n, hidden)
		a.mutations++
	}
}

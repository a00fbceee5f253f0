// Package dom models the host-rendered tree the engine operates on: an HTML
// document queried with CSS selectors, mutated by the host through methods
// that emit structural change records, and navigated by route.
//
// The engine never creates or removes nodes; it only reads them, sets
// attributes and toggles inline display.
package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Record describes one structural change below an observed node.
type Record struct {
	Target  *html.Node
	Added   []*html.Node
	Removed []*html.Node
}

// Document is a mutable HTML tree with a current location.
type Document struct {
	root      *html.Node
	location  string
	dispatch  func(func())
	observers []*Observer
	listeners []*navListener
}

// Option configures a Document.
type Option func(*Document)

// WithDispatcher routes observer and navigation callbacks through post,
// typically a loop's Post. Records produced within one task are then
// delivered as a single batch. Without a dispatcher callbacks run
// synchronously, one record at a time.
func WithDispatcher(post func(func())) Option {
	return func(d *Document) { d.dispatch = post }
}

// New wraps an existing tree.
func New(root *html.Node, location string, opts ...Option) *Document {
	d := &Document{
		root:     root,
		location: location,
		dispatch: func(fn func()) { fn() },
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Parse reads an HTML document from r.
func Parse(r io.Reader, location string, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	return New(root, location, opts...), nil
}

// ParseString is Parse for an in-memory document.
func ParseString(s, location string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), location, opts...)
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Location returns the current location as given by the host.
func (d *Document) Location() string { return d.location }

// Path returns the path component of the current location.
func (d *Document) Path() string {
	u, err := url.Parse(d.location)
	if err != nil {
		return d.location
	}

	return u.Path
}

// Navigate moves to location and notifies navigation listeners, the way a
// history push or pop does.
func (d *Document) Navigate(location string) {
	d.location = location

	for _, l := range d.listeners {
		d.dispatch(func() {
			if !l.removed {
				l.fn(location)
			}
		})
	}
}

// Replace moves to location without notifying navigation listeners, the way
// a single-page app swaps its route in place.
func (d *Document) Replace(location string) {
	d.location = location
}

// OnNavigate registers fn for Navigate calls. The returned function removes
// the listener.
func (d *Document) OnNavigate(fn func(location string)) (remove func()) {
	l := &navListener{fn: fn}
	d.listeners = append(d.listeners, l)

	return func() {
		l.removed = true

		for i, c := range d.listeners {
			if c == l {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

// QuerySelector returns the first node in the document matching selector.
func (d *Document) QuerySelector(selector string) *html.Node {
	return Query(d.root, selector)
}

// QuerySelectorAll returns all nodes in the document matching selector.
func (d *Document) QuerySelectorAll(selector string) []*html.Node {
	return QueryAll(d.root, selector)
}

// Attached reports whether n is part of the document tree.
func (d *Document) Attached(n *html.Node) bool {
	return n != nil && Contains(d.root, n)
}

// AppendChild attaches child as the last child of parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	detach(child)
	parent.AppendChild(child)
	d.notify(Record{Target: parent, Added: []*html.Node{child}})
}

// InsertBefore attaches child before ref, which must be a child of parent.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	detach(child)
	parent.InsertBefore(child, ref)
	d.notify(Record{Target: parent, Added: []*html.Node{child}})
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) {
	parent.RemoveChild(child)
	d.notify(Record{Target: parent, Removed: []*html.Node{child}})
}

// ReplaceChildren swaps all children of parent for children in one record.
func (d *Document) ReplaceChildren(parent *html.Node, children ...*html.Node) {
	var removed []*html.Node

	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		parent.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}

	for _, c := range children {
		detach(c)
		parent.AppendChild(c)
	}

	d.notify(Record{Target: parent, Added: children, Removed: removed})
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

type navListener struct {
	fn      func(string)
	removed bool
}

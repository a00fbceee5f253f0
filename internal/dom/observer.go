package dom

import (
	"golang.org/x/net/html"
)

// Observer receives batches of structural change records for the subtree
// rooted at its target.
type Observer struct {
	doc          *Document
	target       *html.Node
	fn           func([]Record)
	pending      []Record
	scheduled    bool
	disconnected bool
}

// Observe starts delivering records for changes at or below target.
func (d *Document) Observe(target *html.Node, fn func([]Record)) *Observer {
	o := &Observer{doc: d, target: target, fn: fn}
	d.observers = append(d.observers, o)

	return o
}

// Target returns the observed node.
func (o *Observer) Target() *html.Node { return o.target }

// Disconnect stops delivery. Records queued but not yet delivered are
// discarded.
func (o *Observer) Disconnect() {
	if o == nil || o.disconnected {
		return
	}

	o.disconnected = true
	o.pending = nil

	obs := o.doc.observers
	for i, c := range obs {
		if c == o {
			o.doc.observers = append(obs[:i], obs[i+1:]...)
			break
		}
	}
}

func (d *Document) notify(rec Record) {
	observers := append([]*Observer(nil), d.observers...)

	for _, o := range observers {
		if o.disconnected || !Contains(o.target, rec.Target) {
			continue
		}

		o.pending = append(o.pending, rec)

		if o.scheduled {
			continue
		}

		o.scheduled = true
		d.dispatch(o.flush)
	}
}

func (o *Observer) flush() {
	o.scheduled = false

	if o.disconnected || len(o.pending) == 0 {
		return
	}

	records := o.pending
	o.pending = nil
	o.fn(records)
}

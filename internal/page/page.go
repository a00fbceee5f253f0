// Package page stands in for the host renderer when feedsieve runs against
// saved HTML snapshots. It loads a snapshot into a document, re-renders it in
// place when the file changes and writes the filtered result back out.
package page

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/net/html"

	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/output"
)

// Options configures Open.
type Options struct {
	// Location overrides the location detected from the snapshot.
	Location string

	// Host selects the feed container; nil selects config.DefaultHost.
	Host *config.HostConfig

	// Document options, typically dom.WithDispatcher.
	Document []dom.Option
}

// Page is a snapshot file rendered into a live document.
type Page struct {
	path     string
	location string
	host     *config.HostConfig
	doc      *dom.Document
}

// Open parses the snapshot at path.
func Open(path string, opts Options) (*Page, error) {
	host := opts.Host
	if host == nil {
		host = config.DefaultHost()
	}

	root, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	p := &Page{path: path, location: opts.Location, host: host}
	p.doc = dom.New(root, p.resolveLocation(root), opts.Document...)

	return p, nil
}

// Path returns the snapshot file.
func (p *Page) Path() string { return p.path }

// Document returns the live document.
func (p *Page) Document() *dom.Document { return p.doc }

// Reload re-reads the snapshot and applies it to the live document the way a
// client-side renderer would. The feed container node is kept and only its
// children are swapped, so observers attached to it stay valid. A changed
// location is reported as a navigation.
func (p *Page) Reload() error {
	root, err := parseFile(p.path)
	if err != nil {
		return err
	}

	oldBody := dom.Query(p.doc.Root(), "body")
	newBody := dom.Query(root, "body")

	if oldBody == nil || newBody == nil {
		return fmt.Errorf("page %s: missing body", p.path)
	}

	sel := p.host.Selectors.Container
	oldContainer := dom.Query(oldBody, sel)
	newContainer := dom.Query(newBody, sel)

	if oldContainer != nil && newContainer != nil {
		p.doc.ReplaceChildren(oldContainer, children(newContainer)...)

		oldContainer.Parent.RemoveChild(oldContainer)
		newContainer.Parent.InsertBefore(oldContainer, newContainer)
		newContainer.Parent.RemoveChild(newContainer)
	}

	p.doc.ReplaceChildren(oldBody, children(newBody)...)

	if loc := p.resolveLocation(root); loc != p.doc.Location() {
		p.doc.Navigate(loc)
	}

	return nil
}

// Render returns the current document as HTML.
func (p *Page) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.doc.Render(&buf); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteFile renders the document to path, creating parent directories.
func (p *Page) WriteFile(path string, opts ...output.FileWriterOption) error {
	data, err := p.Render()
	if err != nil {
		return err
	}

	return output.NewFileWriter(path, opts...).Write(data)
}

func (p *Page) resolveLocation(root *html.Node) string {
	if p.location != "" {
		return p.location
	}

	if loc := DetectLocation(root); loc != "" {
		return loc
	}

	return p.host.HomeRoute
}

// DetectLocation reads the page address from the canonical link or the
// og:url meta tag. It returns "" when neither is present.
func DetectLocation(root *html.Node) string {
	if href, ok := dom.Attr(dom.Query(root, `link[rel="canonical"]`), "href"); ok && href != "" {
		return href
	}

	if content, ok := dom.Attr(dom.Query(root, `meta[property="og:url"]`), "content"); ok && content != "" {
		return content
	}

	return ""
}

func parseFile(path string) (*html.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing page %s: %w", path, err)
	}

	return root, nil
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}

	return out
}

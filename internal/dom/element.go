package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Query returns the first descendant of n matching the CSS selector, or nil.
// An invalid selector matches nothing.
func Query(n *html.Node, selector string) *html.Node {
	if n == nil {
		return nil
	}

	sel := goquery.NewDocumentFromNode(n).Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}

	return sel.Get(0)
}

// QueryAll returns every descendant of n matching the CSS selector in
// document order.
func QueryAll(n *html.Node, selector string) []*html.Node {
	if n == nil {
		return nil
	}

	return goquery.NewDocumentFromNode(n).Find(selector).Nodes
}

// Text returns the concatenated text content of n and its descendants.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}

	return goquery.NewDocumentFromNode(n).Text()
}

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}

	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}

	return "", false
}

// SetAttr sets or replaces the attribute key on n.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}

	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the attribute key from n. It reports whether the
// attribute was present.
func RemoveAttr(n *html.Node, key string) bool {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}

	return false
}

// Contains reports whether n is ancestor or n itself.
func Contains(ancestor, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == ancestor {
			return true
		}
	}

	return false
}

// IsHidden reports whether the inline style of n sets display to none.
func IsHidden(n *html.Node) bool {
	style, _ := Attr(n, "style")

	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}

		if strings.EqualFold(strings.TrimSpace(prop), "display") &&
			strings.EqualFold(strings.TrimSpace(val), "none") {
			return true
		}
	}

	return false
}

// SetHidden toggles display:none in the inline style of n, leaving other
// declarations untouched.
func SetHidden(n *html.Node, hidden bool) {
	style, _ := Attr(n, "style")

	var decls []string

	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}

		prop, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(prop), "display") {
			continue
		}

		decls = append(decls, decl)
	}

	if hidden {
		decls = append(decls, "display: none")
	}

	if len(decls) == 0 {
		RemoveAttr(n, "style")
		return
	}

	SetAttr(n, "style", strings.Join(decls, "; "))
}

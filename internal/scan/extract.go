package scan

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/rules"
)

// Extract derives the rule attributes of one item node.
func Extract(n *html.Node, host *config.HostConfig) rules.Item {
	sel := host.Selectors

	if dom.Query(n, sel.ContentBlock) == nil {
		return rules.Item{}
	}

	item := rules.Item{
		HasContentBlock: true,
		AuthorHandle:    AuthorHandle(dom.Query(n, sel.Author)),
	}

	if text := dom.Query(n, sel.Text); text != nil {
		item.HasText = true
		item.Language, item.HasLanguage = dom.Attr(text, host.LanguageAttr)
	}

	return item
}

// AuthorHandle returns the last path segment of the author link's href, or
// "" when the link or its href is missing.
func AuthorHandle(link *html.Node) string {
	href, ok := dom.Attr(link, "href")
	if !ok || href == "" {
		return ""
	}

	path := href
	if u, err := url.Parse(href); err == nil {
		path = u.Path
	}

	return path[strings.LastIndex(path, "/")+1:]
}

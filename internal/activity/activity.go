// Package activity decides whether the filtered feed is the one the user is
// currently looking at.
package activity

import (
	"strings"

	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/dom"
)

// Status explains the outcome of an activity check.
type Status string

// Check outcomes.
const (
	StatusActive      Status = "active"
	StatusWrongRoute  Status = "wrong-route"
	StatusTabMissing  Status = "tab-missing"
	StatusTabInactive Status = "tab-inactive"
)

// Monitor reads route and tab state from the host document on every call.
type Monitor struct {
	doc  *dom.Document
	host *config.HostConfig
}

// NewMonitor returns a monitor for doc.
func NewMonitor(doc *dom.Document, host *config.HostConfig) *Monitor {
	return &Monitor{doc: doc, host: host}
}

// IsActive reports whether the home route is shown and its configured tab
// is selected.
func (m *Monitor) IsActive() bool {
	return m.Status() == StatusActive
}

// OnRoute reports whether the current location is the home route.
func (m *Monitor) OnRoute() bool {
	return m.doc.Path() == m.host.HomeRoute
}

// Status performs the same checks as IsActive and names the first failing
// one. When no tab carries the configured label the feed counts as inactive.
func (m *Monitor) Status() Status {
	if !m.OnRoute() {
		return StatusWrongRoute
	}

	for _, tab := range m.doc.QuerySelectorAll(m.host.Selectors.Tab) {
		label := dom.Query(tab, m.host.Selectors.TabLabel)
		if label == nil || strings.TrimSpace(dom.Text(label)) != m.host.TabName {
			continue
		}

		if selected, _ := dom.Attr(tab, "aria-selected"); selected == "true" {
			return StatusActive
		}

		return StatusTabInactive
	}

	return StatusTabMissing
}

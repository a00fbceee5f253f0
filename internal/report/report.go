// Package report captures what the engine did to a feed: one entry per item
// with its extracted attributes, the rule that decided it and its rendered
// visibility. Reports render as text, JSON or YAML and can be diffed.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/feedsieve/internal/activity"
	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/rules"
	"github.com/hupe1980/feedsieve/internal/scan"
	"github.com/hupe1980/feedsieve/internal/visibility"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// Report is a snapshot of the feed after filtering.
type Report struct {
	Location string  `json:"location" yaml:"location"`
	Status   string  `json:"status" yaml:"status"`
	Rules    Rules   `json:"rules" yaml:"rules"`
	Items    []Entry `json:"items" yaml:"items"`
	Summary  Summary `json:"summary" yaml:"summary"`
}

// Rules summarises the rule set in effect.
type Rules struct {
	Languages  []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	HideNoText bool     `json:"hideNoText" yaml:"hideNoText"`
	Excluded   []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

// Entry describes one item.
type Entry struct {
	ID       string `json:"id" yaml:"id"`
	Author   string `json:"author,omitempty" yaml:"author,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	HasText  bool   `json:"hasText" yaml:"hasText"`
	Valid    bool   `json:"valid" yaml:"valid"`
	Reason   string `json:"reason" yaml:"reason"`
	Tag      string `json:"tag" yaml:"tag"`
	Visible  bool   `json:"visible" yaml:"visible"`
}

// Summary counts entries.
type Summary struct {
	Total  int `json:"total" yaml:"total"`
	Valid  int `json:"valid" yaml:"valid"`
	Hidden int `json:"hidden" yaml:"hidden"`
	Shown  int `json:"shown" yaml:"shown"`
}

// Build inspects the items currently in the feed container of doc. Visible
// reflects the rendered style, so flush pending frames first.
func Build(doc *dom.Document, host *config.HostConfig, rs rules.RuleSet) *Report {
	r := &Report{
		Location: doc.Location(),
		Status:   string(activity.NewMonitor(doc, host).Status()),
		Rules: Rules{
			Languages:  rs.Languages(),
			HideNoText: rs.HideWithoutText(),
			Excluded:   rs.ExcludedAuthors(),
		},
	}

	container := doc.QuerySelector(host.Selectors.Container)

	for i, n := range dom.QueryAll(container, host.Selectors.Item) {
		item := scan.Extract(n, host)
		d := rules.Evaluate(item, rs)

		id, ok := dom.Attr(n, "id")
		if !ok || id == "" {
			id = "#" + strconv.Itoa(i+1)
		}

		e := Entry{
			ID:       id,
			Author:   item.AuthorHandle,
			Language: item.Language,
			HasText:  item.HasText,
			Valid:    d.Valid,
			Reason:   string(d.Reason),
			Tag:      visibility.Tag(n).String(),
			Visible:  !dom.IsHidden(n),
		}

		r.Items = append(r.Items, e)
		r.Summary.Total++

		if !e.Valid {
			continue
		}

		r.Summary.Valid++

		if e.Visible {
			r.Summary.Shown++
		} else {
			r.Summary.Hidden++
		}
	}

	return r
}

// Write renders r in the given format.
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatText, "":
		WriteText(w, r)
		return nil
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	default:
		return fmt.Errorf("unknown report format %q (valid: %s)", format, strings.Join(Formats, ", "))
	}
}

// WriteText writes a human-readable report.
func WriteText(w io.Writer, r *Report) {
	fmt.Fprintf(w, "Feed: %s (%s)\n", r.Location, r.Status)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "Rules: languages=[%s] hideNoText=%t excluded=[%s]\n",
		strings.Join(r.Rules.Languages, ","), r.Rules.HideNoText, strings.Join(r.Rules.Excluded, ","))

	if len(r.Items) > 0 {
		fmt.Fprintln(w, "\nItems:")
		fmt.Fprintln(w, strings.Repeat("-", 40))

		for _, e := range r.Items {
			fmt.Fprintf(w, "  %s\n", e.line())
		}
	}

	fmt.Fprintf(w, "\nSummary: %d items, %d posts, %d hidden, %d shown\n",
		r.Summary.Total, r.Summary.Valid, r.Summary.Hidden, r.Summary.Shown)
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(r)
}

// WriteYAML writes r as YAML.
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	return enc.Close()
}

// Lines returns one line per entry, the form the diff compares.
func (r *Report) Lines() string {
	var b strings.Builder

	for _, e := range r.Items {
		b.WriteString(e.line())
		b.WriteByte('\n')
	}

	return b.String()
}

func (e Entry) line() string {
	state := "shown"
	if !e.Visible {
		state = "hidden"
	}

	if !e.Valid {
		state = "skipped"
	}

	author := e.Author
	if author == "" {
		author = "-"
	}

	lang := e.Language
	if lang == "" {
		lang = "-"
	}

	return fmt.Sprintf("%-12s %-7s @%-16s lang=%-6s %s", e.ID, state, author, lang, e.Reason)
}

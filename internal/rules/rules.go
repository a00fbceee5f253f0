// Package rules decides whether a feed item is kept or hidden.
//
// A [RuleSet] is an immutable snapshot of the user's filtering preferences.
// [Evaluate] is a pure function of an [Item]'s extracted attributes and a
// rule set; it never touches the host tree.
package rules

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// RuleSet is the active filtering configuration. The zero value filters
// nothing. Construct non-empty sets with New; fields are unexported so a set
// can only be replaced, never mutated.
type RuleSet struct {
	languages       map[string]struct{}
	hideWithoutText bool
	excluded        map[string]struct{}
}

// New builds a rule set. Language tags are canonicalised; author handles are
// kept verbatim. Empty strings are ignored.
func New(allowedLanguages []string, hideWithoutText bool, excludedAuthors []string) RuleSet {
	rs := RuleSet{hideWithoutText: hideWithoutText}

	for _, tag := range allowedLanguages {
		if tag = CanonicalLanguage(tag); tag == "" {
			continue
		}

		if rs.languages == nil {
			rs.languages = make(map[string]struct{})
		}

		rs.languages[tag] = struct{}{}
	}

	for _, handle := range excludedAuthors {
		if handle == "" {
			continue
		}

		if rs.excluded == nil {
			rs.excluded = make(map[string]struct{})
		}

		rs.excluded[handle] = struct{}{}
	}

	return rs
}

// AllowsLanguage reports whether tag is in the allow-list.
func (rs RuleSet) AllowsLanguage(tag string) bool {
	_, ok := rs.languages[CanonicalLanguage(tag)]
	return ok
}

// Excludes reports whether handle is exempt from filtering.
func (rs RuleSet) Excludes(handle string) bool {
	if handle == "" {
		return false
	}

	_, ok := rs.excluded[handle]

	return ok
}

// HideWithoutText reports whether items without a text block are hidden.
func (rs RuleSet) HideWithoutText() bool { return rs.hideWithoutText }

// Filtering reports whether the set can hide any item at all. Author
// exclusions alone never hide anything.
func (rs RuleSet) Filtering() bool {
	return len(rs.languages) > 0 || rs.hideWithoutText
}

// Languages returns the canonical allow-list, sorted.
func (rs RuleSet) Languages() []string { return sortedKeys(rs.languages) }

// ExcludedAuthors returns the exempt handles, sorted.
func (rs RuleSet) ExcludedAuthors() []string { return sortedKeys(rs.excluded) }

// Equal reports whether two sets make identical decisions.
func (rs RuleSet) Equal(other RuleSet) bool {
	return rs.hideWithoutText == other.hideWithoutText &&
		sameKeys(rs.languages, other.languages) &&
		sameKeys(rs.excluded, other.excluded)
}

// CanonicalLanguage normalises a BCP 47 tag ("EN-us" -> "en-US"). Tags that
// do not parse are lower-cased and trimmed so they still compare stably.
func CanonicalLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}

	parsed, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}

	return parsed.String()
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func sameKeys(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}

	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}

	return true
}

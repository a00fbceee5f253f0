// Package settings holds the persisted user configuration the rule set is
// built from, and the stores that load it and report changes.
package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/language"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/feedsieve/internal/rules"
)

// MaxLanguages is the largest allow-list a record may carry.
const MaxLanguages = 10

// SupportedVersions is the constraint a record's version must satisfy.
const SupportedVersions = "^1"

// Record is the stored settings document. Field names follow the record the
// settings editor writes.
type Record struct {
	// Version is the optional schema version of the record.
	Version          string   `json:"version,omitempty"`
	AllowedLanguages []string `json:"allowedLangs"`
	HideNoText       bool     `json:"hideNoText"`
	ExcludeAccounts  []string `json:"excludeAccounts"`
}

// Parse decodes a YAML or JSON record, normalises and validates it.
func Parse(data []byte) (Record, error) {
	var r Record
	if err := sigsyaml.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decoding settings: %w", err)
	}

	r = r.Normalize()
	if err := r.Validate(); err != nil {
		return Record{}, err
	}

	return r, nil
}

// Marshal encodes r as YAML.
func Marshal(r Record) ([]byte, error) {
	data, err := sigsyaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}

	return data, nil
}

// ParseAccounts splits editor input into account handles, one per line or
// comma separated.
func ParseAccounts(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ',' })
	return normalizeAccounts(fields)
}

// Normalize returns a copy with canonical language tags and cleaned account
// handles. Duplicates and blanks are dropped; order is kept.
func (r Record) Normalize() Record {
	out := Record{
		Version:    strings.TrimSpace(r.Version),
		HideNoText: r.HideNoText,
	}

	for _, tag := range r.AllowedLanguages {
		tag = rules.CanonicalLanguage(tag)
		if tag != "" && !slices.Contains(out.AllowedLanguages, tag) {
			out.AllowedLanguages = append(out.AllowedLanguages, tag)
		}
	}

	out.ExcludeAccounts = normalizeAccounts(r.ExcludeAccounts)

	return out
}

// Validate reports every problem with r at once.
func (r Record) Validate() error {
	var errs []error

	if r.Version != "" {
		if err := checkVersion(r.Version); err != nil {
			errs = append(errs, err)
		}
	}

	if len(r.AllowedLanguages) > MaxLanguages {
		errs = append(errs, fmt.Errorf("at most %d languages may be selected, got %d", MaxLanguages, len(r.AllowedLanguages)))
	}

	for _, tag := range r.AllowedLanguages {
		if _, err := language.Parse(tag); err != nil {
			errs = append(errs, fmt.Errorf("invalid language tag %q: %w", tag, err))
		}
	}

	for _, acc := range r.ExcludeAccounts {
		if strings.IndexFunc(acc, unicode.IsSpace) >= 0 {
			errs = append(errs, fmt.Errorf("account name %q cannot contain spaces", acc))
		}
	}

	return errors.Join(errs...)
}

// Configured reports whether any rule has been set.
func (r Record) Configured() bool {
	return len(r.AllowedLanguages) > 0 || r.HideNoText || len(r.ExcludeAccounts) > 0
}

// RuleSet converts r into the rule set the engine evaluates.
func (r Record) RuleSet() rules.RuleSet {
	return rules.New(r.AllowedLanguages, r.HideNoText, r.ExcludeAccounts)
}

// Equal reports whether two records hold the same values.
func (r Record) Equal(o Record) bool {
	return r.Version == o.Version &&
		r.HideNoText == o.HideNoText &&
		slices.Equal(r.AllowedLanguages, o.AllowedLanguages) &&
		slices.Equal(r.ExcludeAccounts, o.ExcludeAccounts)
}

func checkVersion(v string) error {
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}

	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid settings version %q: %w", v, err)
	}

	if !c.Check(ver) {
		return fmt.Errorf("unsupported settings version %s (want %s)", v, SupportedVersions)
	}

	return nil
}

func normalizeAccounts(in []string) []string {
	var out []string

	for _, acc := range in {
		acc = strings.TrimPrefix(strings.TrimSpace(acc), "@")
		if acc != "" && !slices.Contains(out, acc) {
			out = append(out, acc)
		}
	}

	return out
}

package config

import (
	"fmt"
	"os"

	"github.com/andybalholm/cascadia"
	sigsyaml "sigs.k8s.io/yaml"
)

// Selectors locate the parts of the host markup the engine reads.
type Selectors struct {
	// Tab matches the feed-view tab elements.
	Tab string `json:"tab,omitempty"`

	// TabLabel matches the label element inside a tab.
	TabLabel string `json:"tabLabel,omitempty"`

	// Container matches the scrollable feed container.
	Container string `json:"container,omitempty"`

	// Item matches one feed entry inside the container.
	Item string `json:"item,omitempty"`

	// ContentBlock matches the element only real posts carry.
	ContentBlock string `json:"contentBlock,omitempty"`

	// Author matches the author link inside an item.
	Author string `json:"author,omitempty"`

	// Text matches the text block inside an item.
	Text string `json:"text,omitempty"`
}

// HostConfig describes the host page the engine is attached to.
type HostConfig struct {
	// HomeRoute is the location path of the filtered feed.
	HomeRoute string `json:"homeRoute,omitempty"`

	// TabName is the visible label of the filtered feed tab.
	TabName string `json:"tabName,omitempty"`

	// LanguageAttr is the attribute carrying the text block's language tag.
	LanguageAttr string `json:"languageAttr,omitempty"`

	Selectors Selectors `json:"selectors,omitempty"`
}

// DefaultHost returns the markup conventions of the home timeline.
func DefaultHost() *HostConfig {
	return &HostConfig{
		HomeRoute:    "/home",
		TabName:      "For you",
		LanguageAttr: "lang",
		Selectors: Selectors{
			Tab:          `a[role="tab"]`,
			TabLabel:     "span",
			Container:    `div[aria-label="Home timeline"]`,
			Item:         `[data-testid="cellInnerDiv"]`,
			ContentBlock: "article",
			Author:       `[data-testid="User-Name"] a`,
			Text:         `[data-testid="tweetText"]`,
		},
	}
}

// ParseHostConfig parses the host section of raw config file bytes. Keys
// missing from the file keep their defaults.
func ParseHostConfig(data []byte) (*HostConfig, error) {
	var raw struct {
		Host *HostConfig `json:"host,omitempty"`
	}

	if err := sigsyaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing host config: %w", err)
	}

	cfg := DefaultHost()
	if raw.Host != nil {
		cfg.merge(raw.Host)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadHostConfig reads the host section from path. An empty path yields
// the defaults.
func LoadHostConfig(path string) (*HostConfig, error) {
	if path == "" {
		return DefaultHost(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading host config %q: %w", path, err)
	}

	return ParseHostConfig(data)
}

// Validate checks that every selector compiles.
func (c *HostConfig) Validate() error {
	if c.HomeRoute == "" {
		return fmt.Errorf("host.homeRoute must not be empty")
	}

	if c.LanguageAttr == "" {
		return fmt.Errorf("host.languageAttr must not be empty")
	}

	for name, sel := range map[string]string{
		"tab":          c.Selectors.Tab,
		"tabLabel":     c.Selectors.TabLabel,
		"container":    c.Selectors.Container,
		"item":         c.Selectors.Item,
		"contentBlock": c.Selectors.ContentBlock,
		"author":       c.Selectors.Author,
		"text":         c.Selectors.Text,
	} {
		if sel == "" {
			return fmt.Errorf("host.selectors.%s must not be empty", name)
		}

		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("host.selectors.%s: invalid selector %q: %w", name, sel, err)
		}
	}

	return nil
}

func (c *HostConfig) merge(o *HostConfig) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&c.HomeRoute, o.HomeRoute)
	set(&c.TabName, o.TabName)
	set(&c.LanguageAttr, o.LanguageAttr)
	set(&c.Selectors.Tab, o.Selectors.Tab)
	set(&c.Selectors.TabLabel, o.Selectors.TabLabel)
	set(&c.Selectors.Container, o.Selectors.Container)
	set(&c.Selectors.Item, o.Selectors.Item)
	set(&c.Selectors.ContentBlock, o.Selectors.ContentBlock)
	set(&c.Selectors.Author, o.Selectors.Author)
	set(&c.Selectors.Text, o.Selectors.Text)
}

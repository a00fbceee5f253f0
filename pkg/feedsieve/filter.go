// Package feedsieve provides a public Go API for filtering a feed page
// snapshot without the CLI.
//
// Basic usage:
//
//	result, err := feedsieve.Filter(ctx, strings.NewReader(page),
//	    feedsieve.WithLanguages("en", "de"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(string(result.HTML))
//
// With options:
//
//	result, err := feedsieve.Filter(ctx, f,
//	    feedsieve.WithHideNoText(),
//	    feedsieve.WithExcludeAccounts("@friend"),
//	    feedsieve.WithLocation("https://x.com/home"),
//	)
package feedsieve

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/hupe1980/feedsieve/internal/activity"
	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/lifecycle"
	"github.com/hupe1980/feedsieve/internal/loop"
	"github.com/hupe1980/feedsieve/internal/page"
	"github.com/hupe1980/feedsieve/internal/report"
	"github.com/hupe1980/feedsieve/internal/settings"
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Option configures Filter.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	languages  []string
	hideNoText bool
	accounts   []string
	location   string
	hostConfig []byte
	logger     *slog.Logger
}

// WithLanguages adds to the language allow-list.
func WithLanguages(tags ...string) Option {
	return func(o *options) { o.languages = append(o.languages, tags...) }
}

// WithHideNoText hides posts without a text block.
func WithHideNoText() Option { return func(o *options) { o.hideNoText = true } }

// WithExcludeAccounts exempts these accounts from every rule. A leading @
// is ignored.
func WithExcludeAccounts(handles ...string) Option {
	return func(o *options) { o.accounts = append(o.accounts, handles...) }
}

// WithLocation sets the page location instead of detecting it from the page.
func WithLocation(loc string) Option { return func(o *options) { o.location = loc } }

// WithHostConfigData overrides the feed markup selectors. data is a config
// file holding a host section.
func WithHostConfigData(data []byte) Option { return func(o *options) { o.hostConfig = data } }

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option { return func(o *options) { o.logger = logger } }

// Result holds the output of a filtering pass.
type Result struct {
	// HTML is the filtered page.
	HTML []byte

	// Location is the page location the pass ran against.
	Location string

	// Active reports whether the feed was eligible for filtering. An
	// inactive feed is returned unchanged.
	Active bool

	Items []Item

	// Hidden and Shown count posts by their final visibility.
	Hidden int
	Shown  int
}

// Item describes one feed item after the pass.
type Item struct {
	ID       string
	Author   string
	Language string
	Reason   string
	Post     bool
	Visible  bool
}

// Filter parses an HTML page, filters its feed and returns the result.
//
// Pass no options to run without rules; every post stays visible:
//
//	result, err := feedsieve.Filter(ctx, r)
func Filter(ctx context.Context, r io.Reader, opts ...Option) (*Result, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = discardLogger()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	host := config.DefaultHost()

	if o.hostConfig != nil {
		var err error
		if host, err = config.ParseHostConfig(o.hostConfig); err != nil {
			return nil, err
		}
	}

	rec := settings.Record{
		AllowedLanguages: o.languages,
		HideNoText:       o.hideNoText,
		ExcludeAccounts:  o.accounts,
	}.Normalize()

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	loc := o.location
	if loc == "" {
		loc = page.DetectLocation(root)
	}

	if loc == "" {
		loc = host.HomeRoute
	}

	l := loop.NewManual(time.Now())
	doc := dom.New(root, loc, dom.WithDispatcher(l.Post))

	ctrl := lifecycle.New(l, doc, lifecycle.Options{
		Host:     host,
		Settings: settings.NewMemory(rec),
		Logger:   o.logger,
	})

	if err := ctrl.Initialize(ctx); err != nil {
		return nil, err
	}

	l.Frame()
	ctrl.Shutdown()

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}

	rep := report.Build(doc, host, ctrl.RuleSet())

	res := &Result{
		HTML:     buf.Bytes(),
		Location: rep.Location,
		Active:   rep.Status == string(activity.StatusActive),
		Hidden:   rep.Summary.Hidden,
		Shown:    rep.Summary.Shown,
	}

	for _, e := range rep.Items {
		res.Items = append(res.Items, Item{
			ID:       e.ID,
			Author:   e.Author,
			Language: e.Language,
			Reason:   e.Reason,
			Post:     e.Valid,
			Visible:  e.Visible,
		})
	}

	return res, nil
}

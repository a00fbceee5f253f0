// Package lifecycle owns the engine's process-wide state and wires the feed
// components together: it loads the rule set, follows settings changes,
// watches the feed container and navigation, and drives the scheduler.
//
// Every method must run on the controller's loop.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/hupe1980/feedsieve/internal/activity"
	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/logging"
	"github.com/hupe1980/feedsieve/internal/loop"
	"github.com/hupe1980/feedsieve/internal/rules"
	"github.com/hupe1980/feedsieve/internal/scan"
	"github.com/hupe1980/feedsieve/internal/schedule"
	"github.com/hupe1980/feedsieve/internal/settings"
	"github.com/hupe1980/feedsieve/internal/visibility"
)

const (
	// RetryInterval is the delay between attempts to find a missing feed
	// container.
	RetryInterval = 500 * time.Millisecond

	// ReconcileInterval is the period of the safety-net reconciliation.
	ReconcileInterval = 2 * time.Second
)

var (
	// ErrInitialized is returned by a second Initialize call.
	ErrInitialized = errors.New("controller already initialized")

	// ErrShutdown is returned by Initialize after Shutdown.
	ErrShutdown = errors.New("controller shut down")
)

// ScanHook observes every scan the controller runs.
type ScanHook func(reason schedule.Reason, res scan.Result)

// Options configures a Controller.
type Options struct {
	// Host selects the feed markup; nil selects config.DefaultHost.
	Host *config.HostConfig

	// Settings is the rule-set source; nil means no filtering.
	Settings settings.Source

	// OnScan, when set, is called after each scan.
	OnScan ScanHook

	Logger *slog.Logger
}

// Controller is the owned context of one running engine.
type Controller struct {
	loop   loop.Loop
	doc    *dom.Document
	host   *config.HostConfig
	source settings.Source
	onScan ScanHook
	logger *slog.Logger

	monitor   *activity.Monitor
	applier   *visibility.Applier
	scanner   *scan.Scanner
	scheduler *schedule.Scheduler

	rules        rules.RuleSet
	container    *html.Node
	observer     *dom.Observer
	rootObserver *dom.Observer
	retry        loop.Timer
	ticker       loop.Timer
	removeNav    func()
	unsubscribe  func()
	lastLocation string

	initialized bool
	shutdown    bool
}

// New wires a controller for doc on l. The document should dispatch its
// notifications through l.
func New(l loop.Loop, doc *dom.Document, opts Options) *Controller {
	host := opts.Host
	if host == nil {
		host = config.DefaultHost()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		loop:   l,
		doc:    doc,
		host:   host,
		source: opts.Settings,
		onScan: opts.OnScan,
		logger: logging.Component(logger, "lifecycle"),
	}

	c.monitor = activity.NewMonitor(doc, host)
	c.applier = visibility.NewApplier(l)
	c.scanner = scan.New(doc, host, c.monitor, c.applier, l, scan.Options{Logger: logger})
	c.scheduler = schedule.New(l, c.runScan, schedule.Options{
		Gate:   func() bool { return c.rules.Filtering() },
		Logger: logger,
	})

	return c
}

// Initialize loads settings, subscribes to changes, starts observation and
// periodic reconciliation, and runs the initial forced scan. A settings load
// failure disables filtering instead of failing.
func (c *Controller) Initialize(ctx context.Context) error {
	switch {
	case c.shutdown:
		return ErrShutdown
	case c.initialized:
		return ErrInitialized
	}

	c.initialized = true

	if c.source != nil {
		rec, err := c.source.Load(ctx)
		if err != nil {
			c.logger.Warn("loading settings failed, filtering disabled", slog.String("error", err.Error()))
			rec = settings.Record{}
		}

		c.rules = rec.RuleSet()

		c.unsubscribe = c.source.Subscribe(func(_, updated settings.Record) {
			rs := updated.RuleSet()
			c.loop.Post(func() { c.OnRuleSetChanged(rs) })
		})
	}

	c.removeNav = c.doc.OnNavigate(func(string) { c.OnNavigation() })
	c.rootObserver = c.doc.Observe(c.doc.Root(), func([]dom.Record) { c.checkNavigation() })
	c.lastLocation = c.doc.Location()

	if c.monitor.OnRoute() {
		c.attach()
	}

	c.ticker = loop.Every(c.loop, ReconcileInterval, c.tick)

	c.logger.Debug("initialized",
		slog.Any("languages", c.rules.Languages()),
		slog.Bool("hideNoText", c.rules.HideWithoutText()),
		slog.Bool("observing", c.observer != nil),
	)

	c.scheduler.Force(schedule.ReasonActivation)

	return nil
}

// OnRuleSetChanged replaces the rule set, makes every item visible again and
// rescans under the new rules.
func (c *Controller) OnRuleSetChanged(rs rules.RuleSet) {
	if c.shutdown {
		return
	}

	c.rules = rs

	n := c.scanner.ResetAll()
	c.logger.Info("rules changed",
		slog.Any("languages", rs.Languages()),
		slog.Bool("hideNoText", rs.HideWithoutText()),
		slog.Any("excluded", rs.ExcludedAuthors()),
		slog.Int("reset", n),
	)

	c.scheduler.Force(schedule.ReasonRules)
}

// OnNavigation re-attaches observation and rescans when the home route is
// shown, and stops observing when it is left.
func (c *Controller) OnNavigation() {
	if c.shutdown || !c.initialized {
		return
	}

	c.lastLocation = c.doc.Location()

	if !c.monitor.OnRoute() {
		c.logger.Debug("left feed route", slog.String("location", c.lastLocation))
		c.detach()
		c.scheduler.Cancel()

		return
	}

	c.attach()
	c.scheduler.Force(schedule.ReasonNavigation)
}

// Shutdown releases every observer, listener and timer. It is safe to call
// more than once.
func (c *Controller) Shutdown() {
	if c.shutdown {
		return
	}

	c.shutdown = true

	c.detach()
	c.rootObserver.Disconnect()
	c.rootObserver = nil

	if c.removeNav != nil {
		c.removeNav()
		c.removeNav = nil
	}

	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}

	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}

	c.scheduler.Stop()
}

// RuleSet returns the current rule set.
func (c *Controller) RuleSet() rules.RuleSet { return c.rules }

// Observing reports whether the feed container is under observation.
func (c *Controller) Observing() bool { return c.observer != nil }

// Scanner exposes the feed scanner.
func (c *Controller) Scanner() *scan.Scanner { return c.scanner }

// Applier exposes the visibility applier.
func (c *Controller) Applier() *visibility.Applier { return c.applier }

// Scheduler exposes the reconciliation scheduler.
func (c *Controller) Scheduler() *schedule.Scheduler { return c.scheduler }

func (c *Controller) runScan(reason schedule.Reason, force bool) {
	res := c.scanner.Scan(c.rules, force)

	if c.onScan != nil {
		c.onScan(reason, res)
	}
}

func (c *Controller) tick() {
	c.checkNavigation()
	c.scheduler.Notify(schedule.ReasonTick)
}

// checkNavigation catches route changes that did not go through history and
// containers the host swapped out from under the observer.
func (c *Controller) checkNavigation() {
	if c.shutdown {
		return
	}

	if c.doc.Location() != c.lastLocation {
		c.OnNavigation()
		return
	}

	if c.monitor.OnRoute() && c.scanner.Container() != c.container {
		c.logger.Debug("feed container replaced")
		c.OnNavigation()
	}
}

func (c *Controller) attach() {
	c.detach()

	container := c.scanner.Container()
	if container == nil {
		c.retry = c.loop.AfterFunc(RetryInterval, c.retryAttach)
		return
	}

	c.container = container
	c.observer = c.doc.Observe(container, c.onMutations)
}

func (c *Controller) retryAttach() {
	c.retry = nil

	if c.shutdown || !c.monitor.OnRoute() {
		return
	}

	c.attach()

	if c.observer != nil {
		c.scheduler.Force(schedule.ReasonActivation)
	}
}

func (c *Controller) detach() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}

	c.observer.Disconnect()
	c.observer = nil
	c.container = nil
}

func (c *Controller) onMutations(records []dom.Record) {
	for _, rec := range records {
		for _, n := range rec.Removed {
			c.forget(n)
		}
	}

	c.scheduler.Notify(schedule.ReasonMutation)
}

// forget drops the tags of removed items so a node the host re-inserts is
// decided again.
func (c *Controller) forget(n *html.Node) {
	if n.Type != html.ElementNode {
		return
	}

	visibility.Forget(n)

	for _, item := range dom.QueryAll(n, c.host.Selectors.Item) {
		visibility.Forget(item)
	}
}

// Package scan walks the live feed, evaluates every item against the current
// rule set and hands changed decisions to the visibility applier.
package scan

import (
	"log/slog"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/hupe1980/feedsieve/internal/activity"
	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/logging"
	"github.com/hupe1980/feedsieve/internal/loop"
	"github.com/hupe1980/feedsieve/internal/rules"
	"github.com/hupe1980/feedsieve/internal/visibility"
)

// MinInterval is the shortest gap between two non-forced scans.
const MinInterval = 250 * time.Millisecond

// SkipReason explains why a scan did not look at any item.
type SkipReason string

// Skip reasons. The empty reason means the scan ran.
const (
	SkipNone      SkipReason = ""
	SkipInactive  SkipReason = "inactive"
	SkipThrottled SkipReason = "throttled"
)

// Result summarises one scan.
type Result struct {
	Forced  bool
	Skipped SkipReason
	// Items is the number of item nodes enumerated.
	Items int
	// Valid is the number of items that are real posts.
	Valid int
	// Hidden and Shown count the decisions for valid items.
	Hidden int
	Shown  int
	// Changed is the number of decisions handed to the applier.
	Changed int
}

// Ran reports whether the scan evaluated items.
func (r Result) Ran() bool { return r.Skipped == SkipNone }

// Options configures a Scanner.
type Options struct {
	// MinInterval overrides the non-forced scan throttle; zero selects
	// MinInterval.
	MinInterval time.Duration
	Logger      *slog.Logger
}

// Scanner reconciles the visibility of every item in the feed container.
type Scanner struct {
	doc      *dom.Document
	host     *config.HostConfig
	monitor  *activity.Monitor
	applier  *visibility.Applier
	clock    loop.Clock
	throttle *throttle
	logger   *slog.Logger
	scans    int
}

// New creates a scanner for doc.
func New(doc *dom.Document, host *config.HostConfig, monitor *activity.Monitor, applier *visibility.Applier, clock loop.Clock, opts Options) *Scanner {
	interval := opts.MinInterval
	if interval <= 0 {
		interval = MinInterval
	}

	return &Scanner{
		doc:      doc,
		host:     host,
		monitor:  monitor,
		applier:  applier,
		clock:    clock,
		throttle: newThrottle(interval),
		logger:   logging.Component(opts.Logger, "scanner"),
	}
}

// Container returns the feed container currently in the document, or nil.
func (s *Scanner) Container() *html.Node {
	return s.doc.QuerySelector(s.host.Selectors.Container)
}

// Items enumerates the item nodes under the container at call time.
func (s *Scanner) Items() []*html.Node {
	return dom.QueryAll(s.Container(), s.host.Selectors.Item)
}

// Scans reports how many scans evaluated items.
func (s *Scanner) Scans() int { return s.scans }

// Scan evaluates every item against rs. A non-forced scan is skipped when
// it follows the previous completed scan too closely. Both kinds are skipped
// while the feed is not active.
func (s *Scanner) Scan(rs rules.RuleSet, force bool) Result {
	res := Result{Forced: force}

	if status := s.monitor.Status(); status != activity.StatusActive {
		s.logger.Debug("scan skipped", slog.String("reason", string(status)), slog.Bool("forced", force))
		res.Skipped = SkipInactive

		return res
	}

	now := s.clock.Now()
	if !force && !s.throttle.allow(now) {
		res.Skipped = SkipThrottled
		return res
	}

	for _, n := range s.Items() {
		res.Items++

		d := rules.Evaluate(Extract(n, s.host), rs)
		if !d.Valid {
			continue
		}

		res.Valid++

		visible := !d.Filter
		if visible {
			res.Shown++
		} else {
			res.Hidden++
		}

		if visibility.Tag(n) == visibility.StateOf(visible) {
			continue
		}

		s.applier.Apply(n, visible)
		res.Changed++
	}

	s.throttle.mark(s.clock.Now())
	s.scans++

	s.logger.Debug("scan finished",
		slog.Bool("forced", force),
		slog.Int("items", res.Items),
		slog.Int("valid", res.Valid),
		slog.Int("hidden", res.Hidden),
		slog.Int("changed", res.Changed),
	)

	return res
}

// ResetAll drops every tag and makes every valid item visible. It returns
// the number of items reset.
func (s *Scanner) ResetAll() int {
	count := 0

	for _, n := range s.Items() {
		visibility.Forget(n)

		if !Extract(n, s.host).HasContentBlock {
			continue
		}

		s.applier.Apply(n, true)
		count++
	}

	return count
}

// throttle bounds the rate of non-forced scans. The limiter holds at most
// one token; a completed scan always leaves it empty.
type throttle struct {
	interval time.Duration
	limiter  *rate.Limiter
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (t *throttle) allow(now time.Time) bool {
	return t.limiter.TokensAt(now) >= 1
}

func (t *throttle) mark(now time.Time) {
	limiter := rate.NewLimiter(rate.Every(t.interval), 1)
	limiter.AllowN(now, 1)
	t.limiter = limiter
}

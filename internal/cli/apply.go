package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/lifecycle"
	"github.com/hupe1980/feedsieve/internal/logging"
	"github.com/hupe1980/feedsieve/internal/loop"
	"github.com/hupe1980/feedsieve/internal/output"
	"github.com/hupe1980/feedsieve/internal/page"
	"github.com/hupe1980/feedsieve/internal/report"
	"github.com/hupe1980/feedsieve/internal/schedule"
	"github.com/hupe1980/feedsieve/internal/scan"
	"github.com/hupe1980/feedsieve/internal/settings"
)

type applyOptions struct {
	output   string
	report   string
	diff     bool
	location string
}

func newApplyCommand() *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply <page.html>",
		Short: "Filter a saved feed page once",
		Long: `Apply loads a saved feed page, runs one reconciliation pass with the
current filtering settings and writes the filtered page.

Without --output, --report or --diff the filtered page is printed to
stdout. --report prints what happened to every feed item and --diff
shows the visibility changes the pass made.`,
		Example: `  feedsieve apply home.html -o filtered.html
  feedsieve apply home.html --report json
  feedsieve apply home.html --diff --settings ./settings.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "write the filtered page to this file")
	f.StringVar(&opts.report, "report", "", "print a report: "+strings.Join(report.Formats, ", "))
	f.BoolVar(&opts.diff, "diff", false, "print the visibility changes")
	f.StringVar(&opts.location, "location", "", "page location (default: detected from the page)")

	return cmd
}

func runApply(ctx context.Context, cmd *cobra.Command, path string, opts *applyOptions) error {
	if opts.report != "" && !slices.Contains(report.Formats, opts.report) {
		return &ExitError{Code: 2, Err: fmt.Errorf("invalid report format %q: must be one of %s",
			opts.report, strings.Join(report.Formats, ", "))}
	}

	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	host, err := config.LoadHostConfig(cfg.ConfigFile)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	l := loop.NewManual(time.Now())

	p, err := page.Open(path, page.Options{
		Location: opts.location,
		Host:     host,
		Document: []dom.Option{dom.WithDispatcher(l.Post)},
	})
	if err != nil {
		return err
	}

	ctrl := lifecycle.New(l, p.Document(), lifecycle.Options{
		Host:     host,
		Settings: settings.NewFileStore(cfg.SettingsPath()),
		OnScan: func(reason schedule.Reason, res scan.Result) {
			logger.Debug("scan",
				slog.String("reason", string(reason)),
				slog.Int("items", res.Items),
				slog.Int("hidden", res.Hidden),
				slog.Int("changed", res.Changed),
			)
		},
		Logger: logger,
	})

	if err := ctrl.Initialize(ctx); err != nil {
		return err
	}

	before := report.Build(p.Document(), host, ctrl.RuleSet())

	l.Frame()
	ctrl.Shutdown()

	after := report.Build(p.Document(), host, ctrl.RuleSet())

	logger.Info("feed filtered",
		slog.String("location", after.Location),
		slog.String("status", after.Status),
		slog.Int("items", after.Summary.Total),
		slog.Int("hidden", after.Summary.Hidden),
	)

	w := cmd.OutOrStdout()

	if opts.output != "" {
		if err := p.WriteFile(opts.output, output.WithLogger(logger)); err != nil {
			return err
		}
	}

	if opts.report != "" {
		if err := report.Write(w, after, opts.report); err != nil {
			return err
		}
	}

	if opts.diff {
		res, err := report.Diff(before, after, report.DefaultDiffOptions())
		if err != nil {
			return err
		}

		report.WriteDiff(w, res, !cfg.NoColor)
	}

	if opts.output == "" && opts.report == "" && !opts.diff {
		data, err := p.Render()
		if err != nil {
			return err
		}

		return output.NewStdoutWriter(w).Write(data)
	}

	return nil
}

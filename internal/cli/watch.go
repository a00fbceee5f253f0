package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/dom"
	"github.com/hupe1980/feedsieve/internal/lifecycle"
	"github.com/hupe1980/feedsieve/internal/logging"
	"github.com/hupe1980/feedsieve/internal/loop"
	"github.com/hupe1980/feedsieve/internal/output"
	"github.com/hupe1980/feedsieve/internal/page"
	"github.com/hupe1980/feedsieve/internal/scan"
	"github.com/hupe1980/feedsieve/internal/schedule"
	"github.com/hupe1980/feedsieve/internal/settings"
	"github.com/hupe1980/feedsieve/internal/watch"
)

type watchOptions struct {
	output   string
	location string
	debounce time.Duration
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <page.html>",
		Short: "Keep a feed page filtered while it changes",
		Long: `Watch runs the filtering engine continuously against a saved feed page.

Whenever the page file is rewritten it is re-rendered into the live
document, so new feed items arrive as mutations and are reconciled like
they would be in the browser. Changes to the settings file re-filter the
whole feed. The filtered page is written to --output after every frame
that follows a scan.

Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file path (required)")
	f.StringVar(&opts.location, "location", "", "page location (default: detected from the page)")
	f.DurationVar(&opts.debounce, "debounce", 200*time.Millisecond, "debounce interval for file changes")

	return cmd
}

func runWatch(ctx context.Context, path string, opts *watchOptions) error {
	if opts.output == "" {
		return &ExitError{Code: 2, Err: errors.New("--output (-o) is required for watch mode")}
	}

	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	host, err := config.LoadHostConfig(cfg.ConfigFile)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	var (
		p     *page.Page
		dirty bool
	)

	// Output is written once per frame, after the visibility writes of that
	// frame have landed.
	l := loop.NewEventLoop(
		loop.WithLogger(logger),
		loop.WithAfterFrame(func() {
			if !dirty {
				return
			}

			dirty = false

			if err := p.WriteFile(opts.output, output.WithLogger(logger)); err != nil {
				logger.Error("writing output failed", slog.String("error", err.Error()))
			}
		}),
	)

	markDirty := func() {
		dirty = true
		l.RequestFrame(func() {})
	}

	p, err = page.Open(path, page.Options{
		Location: opts.location,
		Host:     host,
		Document: []dom.Option{dom.WithDispatcher(l.Post)},
	})
	if err != nil {
		return err
	}

	store := settings.NewFileStore(cfg.SettingsPath())

	ctrl := lifecycle.New(l, p.Document(), lifecycle.Options{
		Host:     host,
		Settings: store,
		OnScan: func(reason schedule.Reason, res scan.Result) {
			if !res.Ran() {
				logger.Debug("scan skipped",
					slog.String("reason", string(reason)),
					slog.String("skipped", string(res.Skipped)),
				)

				return
			}

			level := slog.LevelDebug
			if res.Changed > 0 {
				level = slog.LevelInfo
			}

			logger.Log(ctx, level, "feed reconciled",
				slog.String("reason", string(reason)),
				slog.Int("items", res.Items),
				slog.Int("hidden", res.Hidden),
				slog.Int("changed", res.Changed),
			)

			markDirty()
		},
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.Post(func() {
		if err := ctrl.Initialize(ctx); err != nil {
			logger.Error("starting engine failed", slog.String("error", err.Error()))
			cancel()

			return
		}

		markDirty()
	})

	files := []string{path}
	settingsPath := store.Path()

	if _, err := os.Stat(filepath.Dir(settingsPath)); err == nil {
		files = append(files, settingsPath)
	} else {
		logger.Warn("settings directory missing, settings changes are not watched",
			slog.String("path", settingsPath))
	}

	// Changes are reported with absolute paths.
	settingsAbs, err := filepath.Abs(settingsPath)
	if err != nil {
		settingsAbs = settingsPath
	}

	onChange := func(changed string) {
		l.Post(func() {
			if changed == settingsAbs {
				if err := store.Reload(ctx); err != nil {
					logger.Error("reloading settings failed, filtering disabled", slog.String("error", err.Error()))
				}

				return
			}

			if err := p.Reload(); err != nil {
				logger.Error("reloading page failed", slog.String("error", err.Error()))
				return
			}

			// Without rules no scan follows the mutations; the page is still
			// mirrored to the output.
			if !ctrl.RuleSet().Filtering() {
				markDirty()
			}
		})
	}

	watchErr := make(chan error, 1)

	go func() {
		watchErr <- watch.Run(ctx, watch.Options{
			Files:    files,
			Debounce: opts.debounce,
			Logger:   logger,
		}, onChange)

		cancel()
	}()

	logger.Info("watching",
		slog.String("page", path),
		slog.String("settings", settingsPath),
		slog.String("output", opts.output),
	)

	if err := l.Run(ctx); err != nil {
		return err
	}

	ctrl.Shutdown()

	if err := <-watchErr; err != nil {
		return fmt.Errorf("watching files: %w", err)
	}

	return nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/feedsieve/internal/config"
	"github.com/hupe1980/feedsieve/internal/logging"
	"github.com/hupe1980/feedsieve/internal/settings"
)

const setupNotice = `No filters configured yet. Every post stays visible.
Pick up to %d languages with "feedsieve settings set --lang en,de".
`

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the filtering settings",
		Long: `Settings manages the record the filtering rules are built from: the
allowed languages, whether posts without text are hidden and the
accounts that are never filtered.

The record lives in the file given by --settings. A running watch picks
up every change.`,
	}

	cmd.AddCommand(newSettingsShowCommand(), newSettingsSetCommand())

	return cmd
}

func newSettingsShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			store := settings.NewFileStore(cfg.SettingsPath())

			rec, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			if !rec.Configured() && format == "yaml" {
				_, _ = fmt.Fprintf(w, setupNotice, settings.MaxLanguages)
				return nil
			}

			return writeRecord(w, rec, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml, json")

	return cmd
}

type settingsSetOptions struct {
	languages  []string
	hideNoText bool
	exclude    string
	clear      bool
}

func newSettingsSetCommand() *cobra.Command {
	opts := &settingsSetOptions{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the settings",
		Long: `Set updates the settings record. Only the given flags are changed.

Languages are ISO 639-1 codes, at most 10. Accounts are handles with or
without a leading @, separated by commas or newlines.`,
		Example: `  feedsieve settings set --lang en,de
  feedsieve settings set --hide-no-text --exclude "@friend,news"
  feedsieve settings set --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSettingsSet(cmd.Context(), cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.languages, "lang", nil, "allowed languages")
	f.BoolVar(&opts.hideNoText, "hide-no-text", false, "hide posts without text")
	f.StringVar(&opts.exclude, "exclude", "", "accounts exempt from filtering")
	f.BoolVar(&opts.clear, "clear", false, "remove all filters before applying the other flags")

	return cmd
}

func runSettingsSet(ctx context.Context, cmd *cobra.Command, opts *settingsSetOptions) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)
	store := settings.NewFileStore(cfg.SettingsPath())

	rec, err := store.Load(ctx)
	if err != nil {
		if !opts.clear {
			return &ExitError{Code: 2, Err: fmt.Errorf("existing settings %s unreadable (use --clear to replace them): %w", store.Path(), err)}
		}

		logger.Warn("replacing unreadable settings", slog.String("path", store.Path()), slog.String("error", err.Error()))
	}

	if opts.clear {
		rec = settings.Record{}
	}

	f := cmd.Flags()

	if f.Changed("lang") {
		rec.AllowedLanguages = opts.languages
	}

	if f.Changed("hide-no-text") {
		rec.HideNoText = opts.hideNoText
	}

	if f.Changed("exclude") {
		rec.ExcludeAccounts = settings.ParseAccounts(opts.exclude)
	}

	if err := store.Save(ctx, rec); err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	logger.Info("settings saved", slog.String("path", store.Path()))

	saved, err := store.Load(ctx)
	if err != nil {
		return err
	}

	return writeRecord(cmd.OutOrStdout(), saved, "yaml")
}

func writeRecord(w io.Writer, rec settings.Record, format string) error {
	switch format {
	case "yaml":
		data, err := settings.Marshal(rec)
		if err != nil {
			return err
		}

		_, err = w.Write(data)

		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(rec)
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("invalid format %q: must be one of yaml, json", format)}
	}
}

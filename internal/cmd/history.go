package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/history"
	"github.com/ebarretto/sideload/internal/ui"
)

// NewHistoryCmd creates the history command group
func NewHistoryCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the installation history",
		Long:  `Query, prune, export and import the durable record of every installation attempt.`,
	}

	cmd.AddCommand(newHistoryListCmd(cfg, log))
	cmd.AddCommand(newHistoryStatsCmd(cfg, log))
	cmd.AddCommand(newHistoryClearCmd(cfg, log))
	cmd.AddCommand(newHistoryExportCmd(cfg, log))
	cmd.AddCommand(newHistoryImportCmd(cfg, log))

	return cmd
}

func newHistoryListCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		search    string
		onlyOK    bool
		onlyFail  bool
		pkgFormat string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded installation attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if onlyOK && onlyFail {
				return core.NewError(core.KindInvalidPackage, "--ok and --failed are mutually exclusive")
			}

			filter := core.HistoryFilter{Limit: limit}
			if onlyOK {
				t := true
				filter.Success = &t
			}
			if onlyFail {
				f := false
				filter.Success = &f
			}
			if pkgFormat != "" {
				format, err := parseFormatFlag(pkgFormat)
				if err != nil {
					return err
				}
				filter.Format = format
			}

			store, err := history.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Filtered(ctx, filter)
			if err != nil {
				return err
			}

			if search != "" {
				entries = fuzzyFilter(entries, search)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				ui.PrintInfo("no matching history entries")
				return nil
			}

			renderHistoryTable(cmd, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "fuzzy match on the package name")
	cmd.Flags().BoolVar(&onlyOK, "ok", false, "only successful installations")
	cmd.Flags().BoolVar(&onlyFail, "failed", false, "only failed installations")
	cmd.Flags().StringVar(&pkgFormat, "package-format", "", "filter by format: deb, rpm, snap, flatpak")
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the most recent N entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")

	return cmd
}

// fuzzyFilter keeps entries whose name or file name loosely matches the
// query, so "ffox" still finds firefox_128.0_amd64.deb.
func fuzzyFilter(entries []core.HistoryEntry, query string) []core.HistoryEntry {
	matched := make([]core.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if fuzzy.MatchNormalizedFold(query, entry.Name) ||
			fuzzy.MatchNormalizedFold(query, filepath.Base(entry.Path)) {
			matched = append(matched, entry)
		}
	}
	return matched
}

func renderHistoryTable(cmd *cobra.Command, entries []core.HistoryEntry) {
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Date", "Package", "Format", "Status", "Message"}),
		tablewriter.WithAlignment(tw.MakeAlign(5, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, entry := range entries {
		status := ui.SprintSuccess("ok")
		if !entry.Success {
			status = ui.SprintError("failed")
		}

		// Truncate long failure messages so the table stays readable
		message := entry.Message
		if len(message) > 48 {
			message = message[:45] + "..."
		}

		table.Append(
			entry.Timestamp.Format("2006-01-02 15:04"),
			entry.Name,
			ui.ColorizeFormat(string(entry.Format)),
			status,
			message,
		)
	}

	table.Render()
}

func newHistoryStatsCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the installation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := history.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			ui.PrintHeader("Installation History")
			ui.PrintKeyValue("Total", strconv.Itoa(stats.Total))
			ui.PrintKeyValue("Succeeded", ui.SprintSuccess("%d", stats.Succeeded))
			ui.PrintKeyValue("Failed", ui.SprintError("%d", stats.Failed))
			ui.PrintKeyValue("Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate()*100))

			if stats.Total > 0 {
				ui.PrintKeyValue("First", stats.First.Format("2006-01-02 15:04"))
				ui.PrintKeyValue("Last", stats.Last.Format("2006-01-02 15:04"))

				ui.PrintSubheader("By format")
				for _, format := range core.SupportedFormats() {
					if n := stats.ByFormat[format]; n > 0 {
						ui.PrintKeyValue(string(format), strconv.Itoa(n))
					}
				}
				if n := stats.ByFormat[core.FormatUnknown]; n > 0 {
					ui.PrintKeyValue(string(core.FormatUnknown), strconv.Itoa(n))
				}
			}

			return nil
		},
	}

	return cmd
}

func newHistoryClearCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every history entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !yes {
				confirmed, err := ui.ConfirmDangerousAction("clear", "the installation history")
				if err != nil {
					return err
				}
				if !confirmed {
					ui.PrintInfo("aborted")
					return nil
				}
			}

			store, err := history.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Clear(ctx); err != nil {
				return err
			}

			ui.PrintSuccess("history cleared")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func newHistoryExportCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write the history to a JSON or CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			format, err := resolveExportFormat(formatFlag, args[0])
			if err != nil {
				return err
			}

			store, err := history.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ExportTo(ctx, args[0], format); err != nil {
				return err
			}

			ui.PrintSuccess("history exported to %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "", "output format: json or csv (default from the file extension)")

	return cmd
}

// resolveExportFormat uses the explicit flag when given, otherwise infers
// the format from the target extension.
func resolveExportFormat(flag, path string) (core.ExportFormat, error) {
	switch strings.ToLower(flag) {
	case "":
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			return core.ExportCSV, nil
		}
		return core.ExportJSON, nil
	case "json":
		return core.ExportJSON, nil
	case "csv":
		return core.ExportCSV, nil
	default:
		return "", core.NewError(core.KindInvalidPackage, "unknown export format: "+flag).
			WithSuggestion("use json or csv")
	}
}

func newHistoryImportCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Load history entries from a JSON or CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			parsed, err := parseImportMode(mode)
			if err != nil {
				return err
			}

			store, err := history.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ImportFrom(ctx, args[0], parsed); err != nil {
				return err
			}

			ui.PrintSuccess("history imported from %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "merge", "merge keeps existing entries, replace clears them first")

	return cmd
}

func parseImportMode(mode string) (core.ImportMode, error) {
	switch strings.ToLower(mode) {
	case "merge":
		return core.ImportMerge, nil
	case "replace":
		return core.ImportReplace, nil
	default:
		return "", core.NewError(core.KindInvalidPackage, "unknown import mode: "+mode).
			WithSuggestion("use merge or replace")
	}
}

func parseFormatFlag(name string) (core.Format, error) {
	format := core.Format(strings.ToLower(name))
	for _, known := range core.SupportedFormats() {
		if format == known {
			return format, nil
		}
	}
	return "", core.NewError(core.KindInvalidPackage, "unknown package format: "+name).
		WithSuggestion("use one of: deb, rpm, snap, flatpak")
}

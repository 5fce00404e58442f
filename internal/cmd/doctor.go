package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ebarretto/sideload/internal/backends"
	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/fsops"
	"github.com/ebarretto/sideload/internal/helpers"
	"github.com/ebarretto/sideload/internal/history"
	"github.com/ebarretto/sideload/internal/ui"
)

// lowDiskBytes is the free-space level below which doctor warns
const lowDiskBytes = 500 * 1024 * 1024

// NewDoctorCmd creates the doctor command
func NewDoctorCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check backends, tools and data directories",
		Long: `Check which installation backends are present, whether the elevation
helper and verification tools exist, the snapd service state, data
directory access, and the history database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, cfg, log)
		},
	}

	return cmd
}

func runDoctor(cmd *cobra.Command, cfg *config.Config, log *zerolog.Logger) error {
	ctx := cmd.Context()
	runner := helpers.NewOSCommandRunner()
	fs := afero.NewOsFs()

	var issues []string
	var warnings []string

	ui.PrintHeader("System Diagnostics")
	fmt.Println()

	// 1. Installation backends per format
	ui.PrintSubheader("Installation Backends")
	renderBackendTable(cmd, backends.NewSelector(runner), &warnings)

	fmt.Println()

	// 2. Supporting tools
	ui.PrintSubheader("Tools")
	if runner.CommandExists(cfg.Install.Elevate) {
		ui.PrintSuccess("%s: found", cfg.Install.Elevate)
	} else {
		ui.PrintError("%s: NOT FOUND", cfg.Install.Elevate)
		issues = append(issues, fmt.Sprintf("Missing elevation helper: %s (installations need elevated rights)", cfg.Install.Elevate))
	}
	if runner.CommandExists("gpg") {
		ui.PrintSuccess("gpg: found")
	} else {
		ui.PrintWarning("gpg: not found (needed for signature verification)")
		warnings = append(warnings, "gpg missing: --signature verification will fail without a configured keyring")
	}

	fmt.Println()

	// 3. snapd service state, only meaningful when snap exists at all
	if runner.CommandExists("snap") {
		ui.PrintSubheader("Services")
		out, err := runner.RunCommand(ctx, "systemctl", "is-active", "snapd")
		state := strings.TrimSpace(out)
		if err == nil && state == "active" {
			ui.PrintSuccess("snapd: active")
		} else {
			if state == "" {
				state = "unknown"
			}
			ui.PrintWarning("snapd: %s", state)
			warnings = append(warnings, "snapd service is not active; snap installations will fail")
		}
		fmt.Println()
	}

	// 4. Data directories
	ui.PrintSubheader("Directories")
	dataDir := filepath.Dir(cfg.History.DBFile)
	logDir := filepath.Dir(cfg.Logging.File)
	checkDirectory(fs, dataDir, "Data directory", &issues)
	if logDir != dataDir {
		checkDirectory(fs, logDir, "Log directory", &issues)
	}

	if free, err := fsops.DiskFree(dataDir); err == nil {
		if free < lowDiskBytes {
			ui.PrintWarning("Free disk space: %s", humanSize(int64(free)))
			warnings = append(warnings, "Less than 500 MB free in the data directory")
		} else {
			ui.PrintSuccess("Free disk space: %s", humanSize(int64(free)))
		}
	}

	fmt.Println()

	// 5. History database
	ui.PrintSubheader("History Database")
	store, err := history.New(ctx, cfg, log)
	if err != nil {
		ui.PrintError("Database: NOT ACCESSIBLE")
		issues = append(issues, fmt.Sprintf("Cannot open history database: %v", err))
	} else {
		stats, serr := store.Stats(ctx)
		_ = store.Close()
		if serr != nil {
			ui.PrintWarning("Database: opened but unreadable: %v", serr)
			warnings = append(warnings, "History database opened but could not be queried")
		} else {
			ui.PrintSuccess("Database: accessible (%d entries)", stats.Total)
		}
	}

	fmt.Println()

	// Summary
	ui.PrintHeader("Summary")
	fmt.Println()

	if len(issues) == 0 {
		ui.PrintSuccess("All critical checks passed!")
	} else {
		ui.PrintError("Found %d issue(s):", len(issues))
		ui.PrintList(issues)
		fmt.Println()
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Found %d warning(s):", len(warnings))
		ui.PrintList(warnings)
	}

	fmt.Println()

	if len(issues) > 0 {
		return fmt.Errorf("system check failed with %d issue(s)", len(issues))
	}

	return nil
}

// renderBackendTable lists, per format, the backend that would be used and
// every candidate found on the host.
func renderBackendTable(cmd *cobra.Command, selector *backends.Selector, warnings *[]string) {
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Format", "Backend", "Available"}),
		tablewriter.WithAlignment(tw.MakeAlign(3, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleLight)),
	)

	for _, format := range core.SupportedFormats() {
		available := selector.AvailableBackends(format)
		selected, ok := selector.SelectedBackend(format)
		if !ok {
			selected = ui.SprintWarning("none")
			*warnings = append(*warnings, fmt.Sprintf("No %s backend installed (candidates: %s)",
				format, strings.Join(selector.Candidates(format), ", ")))
		}

		list := strings.Join(available, ", ")
		if list == "" {
			list = "-"
		}

		table.Append(ui.ColorizeFormat(string(format)), selected, list)
	}

	table.Render()
}

// checkDirectory ensures the directory exists and is writable, creating it
// the same way the first install would.
func checkDirectory(fs afero.Fs, path, name string, issues *[]string) {
	if err := fsops.EnsureDir(fs, path, 0o755); err != nil {
		ui.PrintError("%s: NOT ACCESSIBLE (%s)", name, path)
		*issues = append(*issues, fmt.Sprintf("Cannot create %s: %v", path, err))
		return
	}
	if err := fsops.CheckWritable(fs, path); err != nil {
		ui.PrintError("%s: NOT WRITABLE (%s)", name, path)
		*issues = append(*issues, fmt.Sprintf("Cannot write to %s: %v", path, err))
		return
	}
	ui.PrintSuccess("%s: %s", name, path)
}

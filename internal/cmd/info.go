package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/debmeta"
	"github.com/ebarretto/sideload/internal/helpers"
	"github.com/ebarretto/sideload/internal/security"
	"github.com/ebarretto/sideload/internal/ui"
)

// debInfoFields is the display order for .deb control fields
var debInfoFields = []string{
	"Package",
	"Version",
	"Architecture",
	"Maintainer",
	"Installed-Size",
	"Section",
	"Priority",
	"Depends",
	"Homepage",
}

// NewInfoCmd creates the info command
func NewInfoCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <package>",
		Short: "Show package metadata",
		Long: `Show metadata for a local package file: name, format, size, and the
format-specific fields read with the package manager's query tools.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := security.ValidateArtifactPath(args[0]); err != nil {
				return core.WrapError(core.KindInvalidPackage, "invalid package path", err)
			}

			artifact, err := core.NewArtifact(args[0])
			if err != nil {
				return err
			}

			stat, err := os.Stat(artifact.Path)
			if err != nil {
				return core.WrapError(core.KindPackageNotFound, "package not found: "+artifact.Path, err)
			}

			ui.PrintHeader(artifact.Name())
			ui.PrintKeyValue("File", artifact.Path)
			ui.PrintKeyValue("Format", ui.ColorizeFormat(string(artifact.Format)))
			ui.PrintKeyValue("Size", humanSize(artifact.Size))
			ui.PrintKeyValue("Modified", stat.ModTime().Format("2006-01-02 15:04:05"))

			runner := helpers.NewOSCommandRunner()
			switch artifact.Format {
			case core.FormatDeb:
				printDebInfo(ctx, runner, artifact.Path)
			case core.FormatRpm:
				printRpmInfo(ctx, runner, artifact.Path)
			}

			log.Debug().Str("package", artifact.Path).Msg("showed package info")
			return nil
		},
	}

	return cmd
}

// printDebInfo reads the control fields through dpkg-deb, falling back to
// the native ar reader on hosts without it.
func printDebInfo(ctx context.Context, runner helpers.CommandRunner, path string) {
	ctrl, err := readDebControl(ctx, runner, path)
	if err != nil {
		ui.PrintWarning("control data unavailable: %v", err)
		return
	}

	ui.PrintSubheader("Control fields")
	for _, field := range debInfoFields {
		if value := ctrl.Get(field); value != "" {
			ui.PrintKeyValue(field, value)
		}
	}
	if desc := ctrl.Get("Description"); desc != "" {
		ui.PrintKeyValue("Description", firstLine(desc))
	}
}

func readDebControl(ctx context.Context, runner helpers.CommandRunner, path string) (*debmeta.Control, error) {
	if runner.CommandExists("dpkg-deb") {
		out, err := runner.RunCommand(ctx, "dpkg-deb", "--field", path)
		if err == nil {
			return debmeta.Parse(strings.NewReader(out))
		}
		// dpkg-deb rejected the file; fall through to the native reader
	}
	return debmeta.Read(path)
}

// printRpmInfo shells out to rpm's query mode; there is no native fallback
// for the RPM header format.
func printRpmInfo(ctx context.Context, runner helpers.CommandRunner, path string) {
	if !runner.CommandExists("rpm") {
		ui.PrintWarning("rpm tool not found; detailed metadata unavailable")
		return
	}

	out, err := runner.RunCommand(ctx, "rpm", "-qpi", path)
	if err != nil {
		ui.PrintWarning("rpm query failed: %v", err)
		return
	}

	ui.PrintSubheader("Package details")
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		ui.PrintKeyValue(strings.TrimSpace(key), strings.TrimSpace(value))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// humanSize formats a byte size in human readable form
func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/logging"
	"github.com/ebarretto/sideload/internal/ui"
)

// NewRootCmd creates the root command
func NewRootCmd(cfg *config.Config, log *zerolog.Logger, version string) *cobra.Command {
	var (
		cfgFile  string
		logLevel string
		noColor  bool
	)

	cmd := &cobra.Command{
		Use:   "sideload",
		Short: "Install local Linux packages safely",
		Long: `Verify and install local .deb, .rpm, .snap and .flatpak files through
the system package managers, with integrity and signature checks, bounded
timeouts and retries, and a durable installation history.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				loaded, err := config.LoadFile(cfgFile)
				if err != nil {
					return err
				}
				*cfg = *loaded
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if noColor {
				cfg.Logging.NoColor = true
			}
			// Subcommands hold the same pointers, so a rebuilt logger is
			// visible everywhere. Only rebuild when a flag changed something.
			if cfgFile != "" || logLevel != "" || noColor {
				*log = *logging.NewLogger(logging.Config{
					Level:   cfg.Logging.Level,
					LogFile: cfg.Logging.File,
					NoColor: cfg.Logging.NoColor,
				})
			}

			ui.InitColors()
			if cfg.Logging.NoColor {
				ui.DisableColors()
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/sideload/config.toml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Add subcommands
	cmd.AddCommand(NewInstallCmd(cfg, log))
	cmd.AddCommand(NewVerifyCmd(cfg, log))
	cmd.AddCommand(NewChecksumCmd(cfg, log))
	cmd.AddCommand(NewInfoCmd(cfg, log))
	cmd.AddCommand(NewHistoryCmd(cfg, log))
	cmd.AddCommand(NewDoctorCmd(cfg, log))
	cmd.AddCommand(NewCompletionCmd(cfg, log))
	cmd.AddCommand(NewVersionCmd(version))

	return cmd
}

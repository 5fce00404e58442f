// Package rpm installs RPM packages through whichever manager the host
// carries, preferring the feature-rich ones over the low-level tool.
package rpm

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ebarretto/sideload/internal/backends/base"
	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/helpers"
)

// Candidates lists the install commands this backend can use, in
// preference order: dnf and yum resolve dependencies, zypper covers SUSE,
// bare rpm is the last resort.
var Candidates = []string{"dnf", "yum", "zypper", "rpm"}

// Backend handles RPM package installations
type Backend struct {
	*base.Backend
}

// New creates a new RPM backend
func New(cfg *config.Config, log *zerolog.Logger) *Backend {
	return &Backend{Backend: base.New(cfg, log)}
}

// NewWithDeps creates an RPM backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *Backend {
	return &Backend{Backend: base.NewWithDeps(cfg, log, fs, runner)}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "rpm"
}

// Format returns the package format this backend handles
func (b *Backend) Format() core.Format {
	return core.FormatRpm
}

// Install installs the package with the first present manager
func (b *Backend) Install(ctx context.Context, artifact core.PackageArtifact, opts core.InstallOptions) core.InstallOutcome {
	b.Log.Info().
		Str("package", artifact.Path).
		Msg("installing RPM package")
	b.Progress(opts, 10, "choosing backend")

	manager := ""
	for _, candidate := range Candidates {
		if b.Runner.CommandExists(candidate) {
			manager = candidate
			break
		}
	}
	if manager == "" {
		return b.Unavailable(core.FormatRpm)
	}

	b.Progress(opts, 30, "installing with "+manager)

	var argv []string
	if manager == "rpm" {
		argv = b.Elevated("rpm", "-ivh", artifact.Path)
	} else {
		argv = b.Elevated(manager, "install", "-y", artifact.Path)
	}

	outcome := b.Execute(ctx, opts, manager, argv)
	if outcome.Success {
		b.Progress(opts, 100, "installation complete")
	}
	return outcome
}

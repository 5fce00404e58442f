// Package deb installs Debian packages. The dependency-aware manager (apt)
// is preferred; hosts with only the low-level tool fall back to dpkg plus a
// best-effort dependency fix pass.
package deb

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
// preference order.
var Candidates = []string{"apt", "dpkg"}

// Backend handles Debian package installations
type Backend struct {
	*base.Backend
}

// New creates a new Debian backend
func New(cfg *config.Config, log *zerolog.Logger) *Backend {
	return &Backend{Backend: base.New(cfg, log)}
}

// NewWithDeps creates a Debian backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *Backend {
	return &Backend{Backend: base.NewWithDeps(cfg, log, fs, runner)}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "deb"
}

// Format returns the package format this backend handles
func (b *Backend) Format() core.Format {
	return core.FormatDeb
}

// Install installs the package with apt when present, otherwise dpkg.
// A dpkg failure triggers one best-effort "fix missing dependencies" pass;
// its result is logged but never overrides the primary outcome.
func (b *Backend) Install(ctx context.Context, artifact core.PackageArtifact, opts core.InstallOptions) core.InstallOutcome {
	b.Log.Info().
		Str("package", artifact.Path).
		Msg("installing Debian package")
	b.Progress(opts, 10, "choosing backend")

	switch {
	case b.Runner.CommandExists("apt"):
		b.Progress(opts, 30, "installing with apt")
		outcome := b.Execute(ctx, opts, "apt",
			b.Elevated("apt", "install", "-y", artifact.Path))
		if outcome.Success {
			b.Progress(opts, 100, "installation complete")
		}
		return outcome

	case b.Runner.CommandExists("dpkg"):
		b.Progress(opts, 30, "installing with dpkg")
		outcome := b.Execute(ctx, opts, "dpkg",
			b.Elevated("dpkg", "-i", artifact.Path))
		if outcome.Success {
			b.Progress(opts, 100, "installation complete")
			return outcome
		}
		b.fixDependencies(ctx, opts)
		return outcome

	default:
		return b.Unavailable(core.FormatDeb)
	}
}

// fixDependencies runs apt-get's repair pass after a dpkg failure. dpkg
// leaves the package half-configured when dependencies are missing, so the
// attempt is worth making even though the original outcome stands.
func (b *Backend) fixDependencies(ctx context.Context, opts core.InstallOptions) {
	if ctx.Err() != nil || !b.Runner.CommandExists("apt-get") {
		return
	}

	b.Progress(opts, 70, "attempting dependency fix")
	fix := b.Execute(ctx, opts, "apt-get",
		b.Elevated("apt-get", "install", "-f", "-y"))
	if fix.Success {
		b.Log.Info().Msg("dependency fix pass succeeded")
	} else {
		b.Log.Warn().
			Str("message", fix.Message).
			Msg("dependency fix pass failed")
	}
}

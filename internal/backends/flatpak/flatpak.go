// Package flatpak installs flatpak bundles. A user-scope install is tried
// first since it needs no elevation; on failure a single system-scope
// elevated attempt follows within the same call.
package flatpak

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ebarretto/sideload/internal/backends/base"
	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/helpers"
)

// Candidates lists the install commands this backend can use
var Candidates = []string{"flatpak"}

// Backend handles flatpak bundle installations
type Backend struct {
	*base.Backend
}

// New creates a new flatpak backend
func New(cfg *config.Config, log *zerolog.Logger) *Backend {
	return &Backend{Backend: base.New(cfg, log)}
}

// NewWithDeps creates a flatpak backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *Backend {
	return &Backend{Backend: base.NewWithDeps(cfg, log, fs, runner)}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "flatpak"
}

// Format returns the package format this backend handles
func (b *Backend) Format() core.Format {
	return core.FormatFlatpak
}

// Install tries a user-scope bundle install and falls back to an elevated
// system-scope install. The fallback is part of this call, not the general
// retry machinery: the second attempt addresses a scope problem, not a
// transient one.
func (b *Backend) Install(ctx context.Context, artifact core.PackageArtifact, opts core.InstallOptions) core.InstallOutcome {
	b.Log.Info().
		Str("package", artifact.Path).
		Msg("installing flatpak bundle")
	b.Progress(opts, 10, "choosing backend")

	if !b.Runner.CommandExists("flatpak") {
		return b.Unavailable(core.FormatFlatpak)
	}

	b.Progress(opts, 30, "installing for current user")
	outcome := b.Execute(ctx, opts, "flatpak",
		[]string{"flatpak", "install", "-y", "--bundle", artifact.Path})
	if outcome.Success {
		b.Progress(opts, 100, "installation complete")
		return outcome
	}

	// Timeouts and cancellations are final; re-running system-wide would
	// just block for another full window.
	if outcome.Kind == core.KindInstallationTimeout || outcome.Kind == core.KindInstallationCancelled {
		return outcome
	}

	b.Log.Warn().
		Str("message", outcome.Message).
		Msg("user-scope install failed, trying system scope")
	b.Progress(opts, 60, "installing system-wide")

	outcome = b.Execute(ctx, opts, "flatpak",
		b.Elevated("flatpak", "install", "-y", "--system", "--bundle", artifact.Path))
	if outcome.Success {
		b.Progress(opts, 100, "installation complete")
	}
	return outcome
}

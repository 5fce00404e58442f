// Package snappkg installs local snap packages. Installs require the snapd
// service to be running; the service state is checked before any subprocess
// is spawned and a stopped daemon fails with a service error.
package snappkg

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ebarretto/sideload/internal/backends/base"
	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/helpers"
)

// Candidates lists the install commands this backend can use
var Candidates = []string{"snap"}

// serviceProbeTimeout bounds the systemctl status query
const serviceProbeTimeout = 10 * time.Second

// Backend handles snap package installations
type Backend struct {
	*base.Backend
}

// New creates a new snap backend
func New(cfg *config.Config, log *zerolog.Logger) *Backend {
	return &Backend{Backend: base.New(cfg, log)}
}

// NewWithDeps creates a snap backend with injected dependencies
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *Backend {
	return &Backend{Backend: base.NewWithDeps(cfg, log, fs, runner)}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "snap"
}

// Format returns the package format this backend handles
func (b *Backend) Format() core.Format {
	return core.FormatSnap
}

// Install checks that snapd is active and installs the local snap.
// Local files are unsigned from snapd's point of view, so the install
// needs the --dangerous flag.
func (b *Backend) Install(ctx context.Context, artifact core.PackageArtifact, opts core.InstallOptions) core.InstallOutcome {
	b.Log.Info().
		Str("package", artifact.Path).
		Msg("installing snap package")
	b.Progress(opts, 10, "choosing backend")

	if !b.Runner.CommandExists("snap") {
		return b.Unavailable(core.FormatSnap)
	}

	if outcome, ok := b.checkSnapdActive(ctx); !ok {
		return outcome
	}

	b.Progress(opts, 30, "installing with snap")
	outcome := b.Execute(ctx, opts, "snap",
		b.Elevated("snap", "install", "--dangerous", artifact.Path))
	if outcome.Success {
		b.Progress(opts, 100, "installation complete")
	}
	return outcome
}

// checkSnapdActive queries the service manager for snapd's state. Anything
// but an affirmative "active" blocks the install.
func (b *Backend) checkSnapdActive(ctx context.Context) (core.InstallOutcome, bool) {
	notRunning := func(message string) core.InstallOutcome {
		return core.InstallOutcome{
			Success: false,
			Message: message,
			Kind:    core.KindServiceNotRunning,
			Backend: "snap",
		}
	}

	if !b.Runner.CommandExists("systemctl") {
		return notRunning("cannot confirm the snapd service is running: systemctl not found"), false
	}

	probeCtx, cancel := context.WithTimeout(ctx, serviceProbeTimeout)
	defer cancel()

	stdout, _, _ := b.Runner.RunCommandWithOutput(probeCtx, "systemctl", "is-active", "snapd")
	state := strings.TrimSpace(stdout)
	if state != "active" {
		b.Log.Warn().
			Str("state", state).
			Msg("snapd service is not active")
		return notRunning("the snapd service is not running (state: " + orUnknown(state) + "); start it with: systemctl start snapd"), false
	}

	return core.InstallOutcome{}, true
}

func orUnknown(state string) string {
	if state == "" {
		return "unknown"
	}
	return state
}

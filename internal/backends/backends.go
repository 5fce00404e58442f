package backends

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ebarretto/sideload/internal/backends/deb"
	"github.com/ebarretto/sideload/internal/backends/flatpak"
	"github.com/ebarretto/sideload/internal/backends/rpm"
	"github.com/ebarretto/sideload/internal/backends/snappkg"
	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/helpers"
)

// Installer is implemented by every format-specific installation backend
type Installer interface {
	// Name returns the backend name
	Name() string

	// Format returns the package format the backend handles
	Format() core.Format

	// Install runs the installation and reports its outcome. It never
	// returns an error: every failure is a definite outcome with a kind.
	Install(ctx context.Context, artifact core.PackageArtifact, opts core.InstallOptions) core.InstallOutcome
}

// Registry dispatches installations to the format-specific backends
type Registry struct {
	installers map[core.Format]Installer
	order      []core.Format
	selector   *Selector
	logger     *zerolog.Logger
}

// NewRegistry creates a registry with all backends on system dependencies
func NewRegistry(cfg *config.Config, log *zerolog.Logger) *Registry {
	return NewRegistryWithDeps(cfg, log, afero.NewOsFs(), helpers.NewOSCommandRunner())
}

// NewRegistryWithDeps creates a registry with injected dependencies,
// shared by every backend.
func NewRegistryWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *Registry {
	registry := &Registry{
		installers: make(map[core.Format]Installer),
		selector:   NewSelector(runner),
		logger:     log,
	}
	for _, installer := range []Installer{
		deb.NewWithDeps(cfg, log, fs, runner),
		rpm.NewWithDeps(cfg, log, fs, runner),
		snappkg.NewWithDeps(cfg, log, fs, runner),
		flatpak.NewWithDeps(cfg, log, fs, runner),
	} {
		registry.installers[installer.Format()] = installer
		registry.order = append(registry.order, installer.Format())
	}
	return registry
}

// Install dispatches by format. Formats outside the supported set produce
// an unsupported-format outcome without spawning any subprocess.
func (r *Registry) Install(ctx context.Context, artifact core.PackageArtifact, opts core.InstallOptions) core.InstallOutcome {
	installer, ok := r.installers[artifact.Format]
	if !ok {
		r.logger.Warn().
			Str("package", artifact.Path).
			Str("format", string(artifact.Format)).
			Msg("no installer for format")
		err := core.NewUnsupportedFormatError(artifact.Path)
		return core.InstallOutcome{
			Success: false,
			Message: err.Message,
			Kind:    core.KindUnsupportedFormat,
		}
	}
	return installer.Install(ctx, artifact, opts)
}

// InstallerFor returns the backend responsible for a format
func (r *Registry) InstallerFor(format core.Format) (Installer, bool) {
	installer, ok := r.installers[format]
	return installer, ok
}

// ListBackends returns the backend names in registration order
func (r *Registry) ListBackends() []string {
	names := make([]string, 0, len(r.order))
	for _, format := range r.order {
		names = append(names, r.installers[format].Name())
	}
	return names
}

// Selector exposes the host-probe view shared with the backends
func (r *Registry) Selector() *Selector {
	return r.selector
}

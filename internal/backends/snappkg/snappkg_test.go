package snappkg

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/helpers"
)

func newTestBackend(runner *helpers.MockCommandRunner) *Backend {
	logger := zerolog.New(io.Discard)
	cfg := &config.Config{
		Install: config.InstallConfig{TimeoutSeconds: 300, Elevate: "pkexec"},
	}
	return NewWithDeps(cfg, &logger, afero.NewMemMapFs(), runner)
}

func snapArtifact() core.PackageArtifact {
	return core.PackageArtifact{Path: "/tmp/baz.snap", Format: core.FormatSnap, Size: 8192}
}

func TestInstall_ServiceActive(t *testing.T) {
	t.Parallel()
	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return true },
		RunCommandWithOutputFunc: func(ctx context.Context, name string, args ...string) (string, string, error) {
			if name == "systemctl" {
				return "active\n", "", nil
			}
			return "baz 1.0 installed", "", nil
		},
	}
	b := newTestBackend(runner)

	outcome := b.Install(context.Background(), snapArtifact(), core.InstallOptions{})

	require.True(t, outcome.Success)
	require.Equal(t, "snap", outcome.Backend)
	require.Equal(t, []string{
		"systemctl is-active snapd",
		"pkexec snap install --dangerous /tmp/baz.snap",
	}, runner.Calls)
}

func TestInstall_ServiceInactive(t *testing.T) {
	t.Parallel()
	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return true },
		RunCommandWithOutputFunc: func(ctx context.Context, name string, args ...string) (string, string, error) {
			return "inactive\n", "", errors.New("exit status 3")
		},
	}
	b := newTestBackend(runner)

	outcome := b.Install(context.Background(), snapArtifact(), core.InstallOptions{})

	// The service gate fails before any install subprocess runs.
	require.False(t, outcome.Success)
	require.Equal(t, core.KindServiceNotRunning, outcome.Kind)
	require.Contains(t, outcome.Message, "snapd service is not running")
	require.Equal(t, []string{"systemctl is-active snapd"}, runner.Calls)
}

func TestInstall_SystemctlAbsent(t *testing.T) {
	t.Parallel()
	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return name == "snap" },
	}
	b := newTestBackend(runner)

	outcome := b.Install(context.Background(), snapArtifact(), core.InstallOptions{})

	require.False(t, outcome.Success)
	require.Equal(t, core.KindServiceNotRunning, outcome.Kind)
	require.Empty(t, runner.Calls)
}

func TestInstall_SnapAbsent(t *testing.T) {
	t.Parallel()
	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return name == "systemctl" },
	}
	b := newTestBackend(runner)

	outcome := b.Install(context.Background(), snapArtifact(), core.InstallOptions{})

	require.False(t, outcome.Success)
	require.Equal(t, core.KindBackendNotFound, outcome.Kind)
	require.Empty(t, runner.Calls)
}

package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommandExists(t *testing.T) {
	runner := NewOSCommandRunner()

	t.Run("existing command", func(t *testing.T) {
		assert.True(t, runner.CommandExists("sh"))
	})

	t.Run("missing command", func(t *testing.T) {
		assert.False(t, runner.CommandExists("definitely-not-a-command-12345"))
	})

	t.Run("result is cached", func(t *testing.T) {
		runner.CommandExists("sh")
		cached, ok := runner.commandCache.Load("sh")
		assert.True(t, ok)
		assert.Equal(t, true, cached)
	})
}

func TestRequireCommand(t *testing.T) {
	runner := NewOSCommandRunner()

	t.Run("existing command", func(t *testing.T) {
		assert.NoError(t, runner.RequireCommand("sh"))
	})

	t.Run("missing command", func(t *testing.T) {
		err := runner.RequireCommand("definitely-not-a-command-12345")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found in PATH")
	})
}

func TestRefreshCommands(t *testing.T) {
	runner := NewOSCommandRunner()
	runner.CommandExists("sh")
	runner.CommandExists("definitely-not-a-command-12345")

	runner.RefreshCommands()

	_, ok := runner.commandCache.Load("sh")
	assert.False(t, ok, "cache should be empty after refresh")
	_, ok = runner.commandCache.Load("definitely-not-a-command-12345")
	assert.False(t, ok, "cache should be empty after refresh")
}

func TestRunCommand(t *testing.T) {
	runner := NewOSCommandRunner()
	ctx := context.Background()

	t.Run("successful command", func(t *testing.T) {
		out, err := runner.RunCommand(ctx, "sh", "-c", "echo hello")
		assert.NoError(t, err)
		assert.Equal(t, "hello\n", out)
	})

	t.Run("failing command includes stderr", func(t *testing.T) {
		_, err := runner.RunCommand(ctx, "sh", "-c", "echo oops >&2; exit 3")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "oops")
	})

	t.Run("context timeout kills the process", func(t *testing.T) {
		timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := runner.RunCommand(timeoutCtx, "sh", "-c", "sleep 5")
		assert.Error(t, err)
	})
}

func TestRunCommandWithOutput(t *testing.T) {
	runner := NewOSCommandRunner()
	ctx := context.Background()

	t.Run("captures both streams", func(t *testing.T) {
		stdout, stderr, err := runner.RunCommandWithOutput(ctx, "sh", "-c", "echo out; echo err >&2")
		assert.NoError(t, err)
		assert.Equal(t, "out\n", stdout)
		assert.Equal(t, "err\n", stderr)
	})

	t.Run("streams survive failure", func(t *testing.T) {
		stdout, stderr, err := runner.RunCommandWithOutput(ctx, "sh", "-c", "echo partial; echo broken >&2; exit 1")
		assert.Error(t, err)
		assert.Equal(t, "partial\n", stdout)
		assert.Equal(t, "broken\n", stderr)
	})
}

func TestGetExitCode(t *testing.T) {
	runner := NewOSCommandRunner()
	ctx := context.Background()

	t.Run("nil error", func(t *testing.T) {
		assert.Equal(t, 0, runner.GetExitCode(nil))
	})

	t.Run("exit error preserved through wrapping", func(t *testing.T) {
		_, _, err := runner.RunCommandWithOutput(ctx, "sh", "-c", "exit 42")
		assert.Error(t, err)
		assert.Equal(t, 42, runner.GetExitCode(err))
	})

	t.Run("non-exec error", func(t *testing.T) {
		assert.Equal(t, -1, runner.GetExitCode(errors.New("not an exec error")))
	})
}

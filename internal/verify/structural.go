package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/ebarretto/sideload/internal/core"
)

// structuralCommands maps each format to its read-only metadata inspection.
// Inspection never modifies the system; it only asks the package manager to
// parse the file.
var structuralCommands = map[core.Format][]string{
	core.FormatDeb: {"dpkg-deb", "--info"},
	core.FormatRpm: {"rpm", "-qp"},
}

// CheckStructuralIntegrity runs the format-specific inspection command
// against the file. A missing inspection tool is not a package defect: the
// check passes by default with a note in detail. Exit status 0 is success;
// any other status or a timeout is failure.
func (v *Verifier) CheckStructuralIntegrity(ctx context.Context, path string, format core.Format) (bool, string) {
	cmd, ok := structuralCommands[format]
	if !ok {
		return true, fmt.Sprintf("no structural inspection available for %s packages", format)
	}

	tool := cmd[0]
	if !v.runner.CommandExists(tool) {
		v.log.Debug().
			Str("tool", tool).
			Str("format", string(format)).
			Msg("inspection tool absent, structural check passed by default")
		return true, fmt.Sprintf("%s not available, structural check skipped", tool)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, v.cfg.Verify.StructuralTimeout())
	defer cancel()

	args := append(cmd[1:], path)
	_, stderr, err := v.runner.RunCommandWithOutput(timeoutCtx, tool, args...)
	if err != nil {
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return false, fmt.Sprintf("structural inspection timed out after %s", v.cfg.Verify.StructuralTimeout())
		}
		detail := stderr
		if detail == "" {
			detail = err.Error()
		}
		return false, fmt.Sprintf("%s rejected the package: %s", tool, detail)
	}

	return true, ""
}

package backends

import (
	"github.com/ebarretto/sideload/internal/backends/deb"
	"github.com/ebarretto/sideload/internal/backends/flatpak"
	"github.com/ebarretto/sideload/internal/backends/rpm"
	"github.com/ebarretto/sideload/internal/backends/snappkg"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/helpers"
)

// candidates maps each format to its install commands in preference order.
// The per-format packages own the orderings; this table only aggregates
// them for host probing.
var candidates = map[core.Format][]string{
	core.FormatDeb:     deb.Candidates,
	core.FormatRpm:     rpm.Candidates,
	core.FormatSnap:    snappkg.Candidates,
	core.FormatFlatpak: flatpak.Candidates,
}

// Selector answers which install commands exist on this host. Probe
// results are cached by the runner for the life of the process; Refresh
// is the explicit way to re-probe after the host's tool set changes.
type Selector struct {
	runner helpers.CommandRunner
}

// NewSelector creates a Selector over the given command runner
func NewSelector(runner helpers.CommandRunner) *Selector {
	return &Selector{runner: runner}
}

// AvailableBackends returns the candidate commands present on the host for
// a format, preserving preference order. An empty slice means installation
// of that format cannot proceed.
func (s *Selector) AvailableBackends(format core.Format) []string {
	available := make([]string, 0, len(candidates[format]))
	for _, command := range candidates[format] {
		if s.runner.CommandExists(command) {
			available = append(available, command)
		}
	}
	return available
}

// SelectedBackend returns the command an installation of this format would
// use, which is the first available candidate.
func (s *Selector) SelectedBackend(format core.Format) (string, bool) {
	for _, command := range candidates[format] {
		if s.runner.CommandExists(command) {
			return command, true
		}
	}
	return "", false
}

// Candidates returns every install command the backend for a format knows
// about, present or not.
func (s *Selector) Candidates(format core.Format) []string {
	return candidates[format]
}

// Refresh drops the cached probe results so the next query re-detects
// the host's tools.
func (s *Selector) Refresh() {
	s.runner.RefreshCommands()
}

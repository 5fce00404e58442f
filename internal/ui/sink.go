package ui

import (
	"github.com/ebarretto/sideload/internal/core"
)

// InstallSink renders installation progress on the terminal: a percent
// bar per package, plus a position header whenever a batch advances to
// its next item. A quiet sink drops the bars and keeps the headers.
type InstallSink struct {
	quiet bool
	bar   *ProgressBar
}

var _ core.ProgressSink = (*InstallSink)(nil)

// NewInstallSink creates the terminal progress sink
func NewInstallSink(quiet bool) *InstallSink {
	return &InstallSink{quiet: quiet}
}

// InstallProgress advances the current package's bar
func (s *InstallSink) InstallProgress(percent int, step string) {
	if s.quiet {
		return
	}
	if s.bar == nil {
		s.bar = NewPercentBar(step)
	}
	s.bar.Describe(step)
	s.bar.Set(percent)
	if percent >= 100 {
		s.bar.Finish()
		s.bar = nil
	}
}

// BatchProgress prints the position of the next package and retires
// the previous bar
func (s *InstallSink) BatchProgress(current, total int) {
	if s.bar != nil {
		s.bar.Clear()
		s.bar = nil
	}
	PrintStep(current, total, "installing")
}

package core

import (
	"context"
	"time"
)

// InstallOptions contains options for one installation attempt
type InstallOptions struct {
	Timeout  time.Duration // 0 means the configured default
	Progress ProgressSink  // nil means no progress reporting
}

// ProgressSink receives observational progress updates. Implementations
// must not block; no return value is consumed.
type ProgressSink interface {
	// InstallProgress reports fine-grained progress of the in-flight
	// installation as a percentage (0-100) and a step label.
	InstallProgress(percent int, step string)

	// BatchProgress reports the 1-based ordinal of the item about to be
	// processed and the total queue length.
	BatchProgress(current, total int)
}

// NopProgress discards all progress updates
type NopProgress struct{}

func (NopProgress) InstallProgress(int, string) {}
func (NopProgress) BatchProgress(int, int)      {}

// ExportFormat selects the on-disk representation of an export
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// ImportMode controls how imported entries combine with existing ones
type ImportMode string

const (
	ImportMerge   ImportMode = "merge"
	ImportReplace ImportMode = "replace"
)

// HistoryFilter restricts a ledger query. Nil/zero fields do not filter.
type HistoryFilter struct {
	Success *bool
	Format  Format
	Limit   int
}

// LedgerStats aggregates the recorded outcomes
type LedgerStats struct {
	Total     int
	Succeeded int
	Failed    int
	ByFormat  map[Format]int
	First     time.Time
	Last      time.Time
}

// SuccessRate returns the fraction of successful entries, 0 when empty.
func (s LedgerStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// Ledger is the durable history collaborator. Entries are append-only
// and returned oldest first.
type Ledger interface {
	Append(ctx context.Context, entry HistoryEntry) error
	All(ctx context.Context) ([]HistoryEntry, error)
	Filtered(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error)
	Clear(ctx context.Context) error
	ExportTo(ctx context.Context, path string, format ExportFormat) error
	ImportFrom(ctx context.Context, path string, mode ImportMode) error
	Stats(ctx context.Context) (LedgerStats, error)
	Close() error
}

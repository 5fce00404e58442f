package history

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
)

func testConfig(t *testing.T, maxEntries int) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.History.DBFile = filepath.Join(t.TempDir(), "history.db")
	cfg.History.MaxEntries = maxEntries
	return cfg
}

func openStore(t *testing.T, cfg *config.Config, fs afero.Fs) *Store {
	t.Helper()
	log := zerolog.New(io.Discard)
	store, err := NewWithFs(context.Background(), cfg, &log, fs)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func entryAt(minute int, path string, format core.Format, success bool) core.HistoryEntry {
	return core.HistoryEntry{
		Timestamp: time.Date(2026, 3, 14, 12, minute, 0, 0, time.UTC),
		Path:      path,
		Name:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Format:    format,
		Success:   success,
		Message:   "recorded",
	}
}

func TestStoreOperations(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, testConfig(t, 0), afero.NewMemMapFs())

	seed := []core.HistoryEntry{
		entryAt(1, "/tmp/a.deb", core.FormatDeb, true),
		entryAt(2, "/tmp/b.rpm", core.FormatRpm, false),
		entryAt(3, "/tmp/c.deb", core.FormatDeb, true),
	}
	for _, entry := range seed {
		if err := store.Append(ctx, entry); err != nil {
			t.Fatalf("Failed to append entry: %v", err)
		}
	}

	// All returns every entry, oldest first
	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("All() length = %d, want 3", len(all))
	}
	for i, want := range []string{"/tmp/a.deb", "/tmp/b.rpm", "/tmp/c.deb"} {
		if all[i].Path != want {
			t.Errorf("All()[%d].Path = %v, want %v", i, all[i].Path, want)
		}
	}
	if all[0].ID == 0 {
		t.Error("All()[0].ID = 0, want assigned row id")
	}
	if !all[0].Timestamp.Equal(seed[0].Timestamp) {
		t.Errorf("All()[0].Timestamp = %v, want %v", all[0].Timestamp, seed[0].Timestamp)
	}

	// Filter by outcome
	success := true
	succeeded, err := store.Filtered(ctx, core.HistoryFilter{Success: &success})
	if err != nil {
		t.Fatalf("Failed to filter by success: %v", err)
	}
	if len(succeeded) != 2 {
		t.Errorf("Filtered(success) length = %d, want 2", len(succeeded))
	}

	// Filter by format
	debs, err := store.Filtered(ctx, core.HistoryFilter{Format: core.FormatDeb})
	if err != nil {
		t.Fatalf("Failed to filter by format: %v", err)
	}
	if len(debs) != 2 {
		t.Errorf("Filtered(format) length = %d, want 2", len(debs))
	}

	// Limit selects the most recent entries, still oldest first
	recent, err := store.Filtered(ctx, core.HistoryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Failed to filter with limit: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Filtered(limit) length = %d, want 2", len(recent))
	}
	if recent[0].Path != "/tmp/b.rpm" || recent[1].Path != "/tmp/c.deb" {
		t.Errorf("Filtered(limit) paths = %v, %v, want /tmp/b.rpm, /tmp/c.deb", recent[0].Path, recent[1].Path)
	}

	// Clear removes everything
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Failed to clear history: %v", err)
	}
	all, err = store.All(ctx)
	if err != nil {
		t.Fatalf("Failed to list after clear: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("All() after Clear length = %d, want 0", len(all))
	}
}

func TestAppendFillsMissingTimestamp(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, testConfig(t, 0), afero.NewMemMapFs())

	if err := store.Append(ctx, core.HistoryEntry{Path: "/tmp/a.deb", Name: "a", Format: core.FormatDeb, Success: true}); err != nil {
		t.Fatalf("Failed to append entry: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All() length = %d, want 1", len(all))
	}
	if all[0].Timestamp.IsZero() {
		t.Error("Append() stored a zero timestamp")
	}
}

func TestPruneKeepsNewestEntries(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, testConfig(t, 3), afero.NewMemMapFs())

	paths := []string{"/tmp/a.deb", "/tmp/b.deb", "/tmp/c.deb", "/tmp/d.deb", "/tmp/e.deb"}
	for i, path := range paths {
		if err := store.Append(ctx, entryAt(i, path, core.FormatDeb, true)); err != nil {
			t.Fatalf("Failed to append entry: %v", err)
		}
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("All() length after prune = %d, want 3", len(all))
	}
	for i, want := range []string{"/tmp/c.deb", "/tmp/d.deb", "/tmp/e.deb"} {
		if all[i].Path != want {
			t.Errorf("All()[%d].Path = %v, want %v", i, all[i].Path, want)
		}
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, testConfig(t, 0), afero.NewMemMapFs())

	seed := []core.HistoryEntry{
		entryAt(1, "/tmp/a.deb", core.FormatDeb, true),
		entryAt(2, "/tmp/b.rpm", core.FormatRpm, false),
		entryAt(3, "/tmp/c.deb", core.FormatDeb, true),
	}
	for _, entry := range seed {
		if err := store.Append(ctx, entry); err != nil {
			t.Fatalf("Failed to append entry: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if stats.Total != 3 || stats.Succeeded != 2 || stats.Failed != 1 {
		t.Errorf("Stats() = %d/%d/%d, want 3/2/1", stats.Total, stats.Succeeded, stats.Failed)
	}
	if stats.ByFormat[core.FormatDeb] != 2 || stats.ByFormat[core.FormatRpm] != 1 {
		t.Errorf("Stats() ByFormat = %v, want deb:2 rpm:1", stats.ByFormat)
	}
	if !stats.First.Equal(seed[0].Timestamp) {
		t.Errorf("Stats() First = %v, want %v", stats.First, seed[0].Timestamp)
	}
	if !stats.Last.Equal(seed[2].Timestamp) {
		t.Errorf("Stats() Last = %v, want %v", stats.Last, seed[2].Timestamp)
	}
	if rate := stats.SuccessRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("SuccessRate() = %v, want about 0.67", rate)
	}
}

func TestStatsEmpty(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, testConfig(t, 0), afero.NewMemMapFs())

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Stats() Total = %d, want 0", stats.Total)
	}
	if !stats.First.IsZero() || !stats.Last.IsZero() {
		t.Errorf("Stats() First/Last = %v/%v, want zero times", stats.First, stats.Last)
	}
	if stats.SuccessRate() != 0 {
		t.Errorf("SuccessRate() = %v, want 0", stats.SuccessRate())
	}
}

func TestExportImportJSON(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	source := openStore(t, testConfig(t, 0), fs)

	seed := []core.HistoryEntry{
		entryAt(1, "/tmp/a.deb", core.FormatDeb, true),
		entryAt(2, "/tmp/b.rpm", core.FormatRpm, false),
	}
	for _, entry := range seed {
		if err := source.Append(ctx, entry); err != nil {
			t.Fatalf("Failed to append entry: %v", err)
		}
	}

	if err := source.ExportTo(ctx, "/export.json", core.ExportJSON); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}
	data, err := afero.ReadFile(fs, "/export.json")
	if err != nil {
		t.Fatalf("Failed to read export file: %v", err)
	}
	if !strings.Contains(string(data), `"package_name"`) {
		t.Errorf("export missing package_name field: %s", data)
	}

	target := openStore(t, testConfig(t, 0), fs)
	if err := target.ImportFrom(ctx, "/export.json", core.ImportMerge); err != nil {
		t.Fatalf("Failed to import: %v", err)
	}

	all, err := target.All(ctx)
	if err != nil {
		t.Fatalf("Failed to list imported entries: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("All() length after import = %d, want 2", len(all))
	}
	if all[0].Path != "/tmp/a.deb" || !all[0].Success {
		t.Errorf("imported entry mismatch: %+v", all[0])
	}
	if !all[1].Timestamp.Equal(seed[1].Timestamp) {
		t.Errorf("imported timestamp = %v, want %v", all[1].Timestamp, seed[1].Timestamp)
	}
}

func TestExportImportCSV(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	source := openStore(t, testConfig(t, 0), fs)

	if err := source.Append(ctx, entryAt(1, "/tmp/a.deb", core.FormatDeb, true)); err != nil {
		t.Fatalf("Failed to append entry: %v", err)
	}
	if err := source.ExportTo(ctx, "/export.csv", core.ExportCSV); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	data, err := afero.ReadFile(fs, "/export.csv")
	if err != nil {
		t.Fatalf("Failed to read export file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("export line count = %d, want 2 (header + entry)", len(lines))
	}
	if !strings.HasPrefix(lines[0], "timestamp,package,") {
		t.Errorf("unexpected header: %s", lines[0])
	}

	target := openStore(t, testConfig(t, 0), fs)
	if err := target.ImportFrom(ctx, "/export.csv", core.ImportMerge); err != nil {
		t.Fatalf("Failed to import: %v", err)
	}
	all, err := target.All(ctx)
	if err != nil {
		t.Fatalf("Failed to list imported entries: %v", err)
	}
	if len(all) != 1 || all[0].Format != core.FormatDeb {
		t.Errorf("imported entries = %+v, want one deb entry", all)
	}
}

func TestImportMergeKeepsExisting(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	source := openStore(t, testConfig(t, 0), fs)
	if err := source.Append(ctx, entryAt(1, "/tmp/a.deb", core.FormatDeb, true)); err != nil {
		t.Fatalf("Failed to append entry: %v", err)
	}
	if err := source.ExportTo(ctx, "/export.json", core.ExportJSON); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	target := openStore(t, testConfig(t, 0), fs)
	if err := target.Append(ctx, entryAt(2, "/tmp/b.rpm", core.FormatRpm, false)); err != nil {
		t.Fatalf("Failed to append entry: %v", err)
	}
	if err := target.ImportFrom(ctx, "/export.json", core.ImportMerge); err != nil {
		t.Fatalf("Failed to import: %v", err)
	}

	all, err := target.All(ctx)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("All() length after merge = %d, want 2", len(all))
	}
}

func TestImportReplaceClearsExisting(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	source := openStore(t, testConfig(t, 0), fs)
	if err := source.Append(ctx, entryAt(1, "/tmp/a.deb", core.FormatDeb, true)); err != nil {
		t.Fatalf("Failed to append entry: %v", err)
	}
	if err := source.ExportTo(ctx, "/export.json", core.ExportJSON); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	target := openStore(t, testConfig(t, 0), fs)
	if err := target.Append(ctx, entryAt(2, "/tmp/b.rpm", core.FormatRpm, false)); err != nil {
		t.Fatalf("Failed to append entry: %v", err)
	}
	if err := target.ImportFrom(ctx, "/export.json", core.ImportReplace); err != nil {
		t.Fatalf("Failed to import: %v", err)
	}

	all, err := target.All(ctx)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All() length after replace = %d, want 1", len(all))
	}
	if all[0].Path != "/tmp/a.deb" {
		t.Errorf("All()[0].Path = %v, want /tmp/a.deb", all[0].Path)
	}
}

func TestImportRejectsUnknownMode(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, testConfig(t, 0), afero.NewMemMapFs())

	err := store.ImportFrom(ctx, "/export.json", core.ImportMode("overwrite"))
	if err == nil {
		t.Fatal("Expected error for unknown import mode, got nil")
	}
	if core.KindOf(err) != core.KindHistory {
		t.Errorf("KindOf(err) = %v, want history", core.KindOf(err))
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, testConfig(t, 0), afero.NewMemMapFs())

	if err := store.ExportTo(ctx, "/export.xml", core.ExportFormat("xml")); err == nil {
		t.Fatal("Expected error for unknown export format, got nil")
	}
}

func TestMigrationsRecorded(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, testConfig(t, 0), afero.NewMemMapFs())

	var count int
	err := store.read.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query schema_migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("schema_migrations count = %d, want 1", count)
	}
}

func TestNewRequiresPath(t *testing.T) {
	log := zerolog.New(io.Discard)
	_, err := NewWithFs(context.Background(), &config.Config{}, &log, afero.NewMemMapFs())
	if err == nil {
		t.Fatal("Expected error for missing database path, got nil")
	}
}

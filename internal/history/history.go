// Package history persists installation attempts in a local SQLite
// database and answers queries, exports and imports over them.
package history

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	_ "modernc.org/sqlite"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
)

// Store is the SQLite-backed ledger with separate read/write pools
type Store struct {
	write      *sql.DB
	read       *sql.DB
	fs         afero.Fs
	path       string
	maxEntries int
	log        *zerolog.Logger
}

var _ core.Ledger = (*Store)(nil)

// New opens (or creates) the history database at the configured path
func New(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*Store, error) {
	return NewWithFs(ctx, cfg, log, afero.NewOsFs())
}

// NewWithFs opens the store with an explicit filesystem for export and
// import files. Used in tests.
func NewWithFs(ctx context.Context, cfg *config.Config, log *zerolog.Logger, fs afero.Fs) (*Store, error) {
	dbPath := cfg.History.DBFile
	if dbPath == "" {
		return nil, fmt.Errorf("history database path is not configured")
	}
	if err := fs.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	// Connection string with pragmas
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)

	// Write pool: MUST be 1 connection only
	write, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxIdleTime(time.Minute)
	write.SetConnMaxLifetime(time.Hour)

	// Read pool: Can have multiple connections
	read, err := sql.Open("sqlite", connStr)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}
	read.SetMaxOpenConns(10)
	read.SetMaxIdleConns(5)
	read.SetConnMaxIdleTime(time.Minute)
	read.SetConnMaxLifetime(time.Hour)

	store := &Store{
		write:      write,
		read:       read,
		fs:         fs,
		path:       dbPath,
		maxEntries: cfg.History.MaxEntries,
		log:        log,
	}

	if err := store.initSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// Close closes both database connections
func (s *Store) Close() error {
	writeErr := s.write.Close()
	readErr := s.read.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// initSchema creates the schema if it doesn't exist
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME NOT NULL,
    path TEXT NOT NULL,
    name TEXT NOT NULL,
    format TEXT NOT NULL,
    success INTEGER NOT NULL,
    message TEXT
);

CREATE INDEX IF NOT EXISTS idx_history_format ON history(format);
CREATE INDEX IF NOT EXISTS idx_history_success ON history(success);

CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    description TEXT
);

INSERT OR IGNORE INTO schema_migrations (version, description)
VALUES (1, 'initial history schema');
	`

	_, err := s.write.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Append inserts one attempt record, then prunes the oldest rows when
// the configured cap is exceeded.
func (s *Store) Append(ctx context.Context, entry core.HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := `
INSERT INTO history (timestamp, path, name, format, success, message)
VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.write.ExecContext(ctx, query,
		entry.Timestamp,
		entry.Path,
		entry.Name,
		string(entry.Format),
		entry.Success,
		entry.Message,
	)
	if err != nil {
		return core.WrapError(core.KindHistory, "insert history entry", err)
	}

	return s.prune(ctx)
}

// prune keeps the newest maxEntries rows. A cap of zero or less means
// no limit.
func (s *Store) prune(ctx context.Context) error {
	if s.maxEntries <= 0 {
		return nil
	}

	query := `
DELETE FROM history
WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)
	`

	result, err := s.write.ExecContext(ctx, query, s.maxEntries)
	if err != nil {
		return core.WrapError(core.KindHistory, "prune history", err)
	}
	if removed, err := result.RowsAffected(); err == nil && removed > 0 {
		s.log.Debug().Int64("removed", removed).Int("cap", s.maxEntries).Msg("pruned history entries")
	}

	return nil
}

// All returns every entry, oldest first
func (s *Store) All(ctx context.Context) ([]core.HistoryEntry, error) {
	return s.Filtered(ctx, core.HistoryFilter{})
}

// Filtered returns the entries matching the filter, oldest first. A
// positive Limit selects the most recent entries only.
func (s *Store) Filtered(ctx context.Context, filter core.HistoryFilter) ([]core.HistoryEntry, error) {
	query := "SELECT id, timestamp, path, name, format, success, message FROM history"
	var conds []string
	var args []interface{}

	if filter.Success != nil {
		conds = append(conds, "success = ?")
		args = append(args, *filter.Success)
	}
	if filter.Format != "" {
		conds = append(conds, "format = ?")
		args = append(args, string(filter.Format))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// Fetch newest-first so LIMIT trims the oldest entries, then flip
	// back to the oldest-first contract.
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.KindHistory, "query history", err)
	}
	defer rows.Close()

	var entries []core.HistoryEntry
	for rows.Next() {
		var entry core.HistoryEntry
		var format string

		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.Path,
			&entry.Name,
			&format,
			&entry.Success,
			&entry.Message,
		)
		if err != nil {
			return nil, core.WrapError(core.KindHistory, "scan history entry", err)
		}
		entry.Format = core.Format(format)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.KindHistory, "iterate history", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Clear removes every entry
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.write.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return core.WrapError(core.KindHistory, "clear history", err)
	}
	return nil
}

// Stats aggregates the recorded outcomes
func (s *Store) Stats(ctx context.Context) (core.LedgerStats, error) {
	stats := core.LedgerStats{ByFormat: make(map[core.Format]int)}

	row := s.read.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(success), 0) FROM history")
	if err := row.Scan(&stats.Total, &stats.Succeeded); err != nil {
		return stats, core.WrapError(core.KindHistory, "aggregate history", err)
	}
	stats.Failed = stats.Total - stats.Succeeded

	rows, err := s.read.QueryContext(ctx, "SELECT format, COUNT(*) FROM history GROUP BY format")
	if err != nil {
		return stats, core.WrapError(core.KindHistory, "aggregate history formats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var format string
		var count int
		if err := rows.Scan(&format, &count); err != nil {
			return stats, core.WrapError(core.KindHistory, "scan format count", err)
		}
		stats.ByFormat[core.Format(format)] = count
	}
	if err := rows.Err(); err != nil {
		return stats, core.WrapError(core.KindHistory, "iterate format counts", err)
	}

	if stats.Total > 0 {
		// Select the raw column so the driver hands back time.Time
		if err := s.read.QueryRowContext(ctx, "SELECT timestamp FROM history ORDER BY id ASC LIMIT 1").Scan(&stats.First); err != nil {
			return stats, core.WrapError(core.KindHistory, "read first timestamp", err)
		}
		if err := s.read.QueryRowContext(ctx, "SELECT timestamp FROM history ORDER BY id DESC LIMIT 1").Scan(&stats.Last); err != nil {
			return stats, core.WrapError(core.KindHistory, "read last timestamp", err)
		}
	}

	return stats, nil
}

// ExportTo writes every entry to a file in the requested format
func (s *Store) ExportTo(ctx context.Context, path string, format core.ExportFormat) error {
	entries, err := s.All(ctx)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case core.ExportJSON:
		data, err = json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return core.WrapError(core.KindHistory, "encode history export", err)
		}
		data = append(data, '\n')
	case core.ExportCSV:
		data, err = encodeCSV(entries)
		if err != nil {
			return core.WrapError(core.KindHistory, "encode history export", err)
		}
	default:
		return core.NewError(core.KindHistory, fmt.Sprintf("unsupported export format: %s", format))
	}

	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return core.WrapError(core.KindHistory, "write export file", err)
	}
	s.log.Info().Str("file", path).Str("format", string(format)).Int("entries", len(entries)).Msg("exported history")
	return nil
}

// ImportFrom reads entries from a file and adds them to the ledger.
// The format is inferred from the file extension (.csv, otherwise
// JSON). Merge keeps existing entries; replace clears them first.
func (s *Store) ImportFrom(ctx context.Context, path string, mode core.ImportMode) error {
	if mode != core.ImportMerge && mode != core.ImportReplace {
		return core.NewError(core.KindHistory, fmt.Sprintf("unsupported import mode: %s", mode))
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return core.WrapError(core.KindHistory, "read import file", err)
	}

	var entries []core.HistoryEntry
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		entries, err = decodeCSV(data)
	} else {
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return core.WrapError(core.KindHistory, "decode import file", err)
	}

	if mode == core.ImportReplace {
		if err := s.Clear(ctx); err != nil {
			return err
		}
	}

	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.KindHistory, "begin import transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO history (timestamp, path, name, format, success, message) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return core.WrapError(core.KindHistory, "prepare import insert", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, entry.Timestamp, entry.Path, entry.Name, string(entry.Format), entry.Success, entry.Message); err != nil {
			return core.WrapError(core.KindHistory, "insert imported entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.KindHistory, "commit import", err)
	}

	s.log.Info().Str("file", path).Str("mode", string(mode)).Int("entries", len(entries)).Msg("imported history")
	return s.prune(ctx)
}

var csvHeader = []string{"timestamp", "package", "package_name", "format", "success", "message"}

func encodeCSV(entries []core.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		record := []string{
			entry.Timestamp.Format(time.RFC3339),
			entry.Path,
			entry.Name,
			string(entry.Format),
			strconv.FormatBool(entry.Success),
			entry.Message,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCSV(data []byte) ([]core.HistoryEntry, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var entries []core.HistoryEntry
	for i, record := range records {
		if i == 0 && len(record) > 0 && record[0] == csvHeader[0] {
			continue
		}
		if len(record) != len(csvHeader) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", i+1, len(csvHeader), len(record))
		}
		timestamp, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		success, err := strconv.ParseBool(record[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		entries = append(entries, core.HistoryEntry{
			Timestamp: timestamp,
			Path:      record[1],
			Name:      record[2],
			Format:    core.Format(record[3]),
			Success:   success,
			Message:   record[5],
		})
	}
	return entries, nil
}

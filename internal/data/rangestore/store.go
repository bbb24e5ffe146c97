package rangestore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"rangefinder/internal/engine/syntax"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	listSep     = "\n"
)

// ErrRunNotFound is returned for operations on an unknown run id.
var ErrRunNotFound = errors.New("run not found")

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open opens or creates the store at path. busyTimeout <= 0 uses 2s.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	// busy_timeout + WAL reduce lock conflicts while watch mode writes.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// BeginRun records a new run and returns it with a fresh id.
func (s *Store) BeginRun(roots, capabilities []string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := Run{
		ID:           uuid.NewString(),
		StartedAt:    time.Now().UTC(),
		Roots:        append([]string(nil), roots...),
		Capabilities: append([]string(nil), capabilities...),
	}
	err := s.withRetry("begin run", func() error {
		_, err := s.db.Exec(
			`INSERT INTO runs (id, started_at_utc, roots, capabilities) VALUES (?, ?, ?, ?)`,
			run.ID,
			run.StartedAt.Format(time.RFC3339Nano),
			strings.Join(run.Roots, listSep),
			strings.Join(run.Capabilities, listSep),
		)
		return err
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// FinishRun stamps the run's end time and final counters.
func (s *Store) FinishRun(runID string, stats RunStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := s.withRetry("finish run", func() error {
		res, err := s.db.Exec(`
UPDATE runs SET finished_at_utc = ?, files_scanned = ?, files_skipped = ?, files_failed = ?, range_count = ?
WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339Nano),
			stats.FilesScanned, stats.FilesSkipped, stats.FilesFailed, stats.RangeCount,
			runID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("finish run %q: %w", runID, ErrRunNotFound)
	}
	return nil
}

// SaveFiles writes a batch of file records for runID in one transaction.
// A record for a path already stored in the run replaces it.
func (s *Store) SaveFiles(runID string, records []FileRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("save files", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if err := saveFilesTx(tx, runID, records); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func saveFilesTx(tx *sql.Tx, runID string, records []FileRecord) error {
	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
	}

	insertRange, err := tx.Prepare(`
INSERT INTO ranges (
  run_id, path, capability, ordinal, kind, name,
  ident_start_byte, ident_end_byte, ident_start_line, ident_start_col, ident_end_line, ident_end_col,
  block_start_byte, block_end_byte, block_start_line, block_start_col, block_end_line, block_end_col
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertRange.Close()

	for _, rec := range records {
		if _, err := tx.Exec(`DELETE FROM files WHERE run_id = ? AND path = ?`, runID, rec.Path); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO files (run_id, path, language, error_code, error_message) VALUES (?, ?, ?, ?, ?)`,
			runID, rec.Path, rec.Language, rec.ErrorCode, rec.ErrorMessage,
		); err != nil {
			return err
		}
		for _, r := range rec.Ranges {
			if _, err := insertRange.Exec(
				runID, rec.Path, r.Capability, r.Ordinal, r.Kind, r.Name,
				r.Identifier.StartByte, r.Identifier.EndByte,
				r.Identifier.Start.Line, r.Identifier.Start.Column, r.Identifier.End.Line, r.Identifier.End.Column,
				r.Block.StartByte, r.Block.EndByte,
				r.Block.Start.Line, r.Block.Start.Column, r.Block.End.Line, r.Block.End.Column,
			); err != nil {
				return fmt.Errorf("insert range %s#%d for %s: %w", r.Capability, r.Ordinal, rec.Path, err)
			}
		}
	}
	return nil
}

// LoadRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) LoadRuns(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, started_at_utc, finished_at_utc, roots, capabilities, files_scanned, files_skipped, files_failed, range_count
FROM runs ORDER BY started_at_utc DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run                     Run
			startedRaw, finishedRaw string
			rootsRaw, capsRaw       string
		)
		if err := rows.Scan(
			&run.ID, &startedRaw, &finishedRaw, &rootsRaw, &capsRaw,
			&run.Stats.FilesScanned, &run.Stats.FilesSkipped, &run.Stats.FilesFailed, &run.Stats.RangeCount,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		started, err := time.Parse(time.RFC3339Nano, startedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run start %q: %w", startedRaw, err)
		}
		run.StartedAt = started.UTC()
		if finishedRaw != "" {
			finished, err := time.Parse(time.RFC3339Nano, finishedRaw)
			if err != nil {
				return nil, fmt.Errorf("parse run finish %q: %w", finishedRaw, err)
			}
			run.FinishedAt = finished.UTC()
		}
		run.Roots = splitList(rootsRaw)
		run.Capabilities = splitList(capsRaw)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// LoadFile returns the stored record for path in runID, ranges ordered by
// capability then ordinal.
func (s *Store) LoadFile(runID, path string) (FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := FileRecord{Path: path}
	err := s.db.QueryRow(
		`SELECT language, error_code, error_message FROM files WHERE run_id = ? AND path = ?`,
		runID, path,
	).Scan(&rec.Language, &rec.ErrorCode, &rec.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return FileRecord{}, fmt.Errorf("file %q in run %q: %w", path, runID, sql.ErrNoRows)
	}
	if err != nil {
		return FileRecord{}, fmt.Errorf("load file %q: %w", path, err)
	}

	rows, err := s.db.Query(`
SELECT capability, ordinal, kind, name,
  ident_start_byte, ident_end_byte, ident_start_line, ident_start_col, ident_end_line, ident_end_col,
  block_start_byte, block_end_byte, block_start_line, block_start_col, block_end_line, block_end_col
FROM ranges WHERE run_id = ? AND path = ?
ORDER BY capability ASC, ordinal ASC`, runID, path)
	if err != nil {
		return FileRecord{}, fmt.Errorf("load ranges for %q: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r RangeRecord
		if err := rows.Scan(
			&r.Capability, &r.Ordinal, &r.Kind, &r.Name,
			&r.Identifier.StartByte, &r.Identifier.EndByte,
			&r.Identifier.Start.Line, &r.Identifier.Start.Column, &r.Identifier.End.Line, &r.Identifier.End.Column,
			&r.Block.StartByte, &r.Block.EndByte,
			&r.Block.Start.Line, &r.Block.Start.Column, &r.Block.End.Line, &r.Block.End.Column,
		); err != nil {
			return FileRecord{}, fmt.Errorf("scan range row: %w", err)
		}
		rec.Ranges = append(rec.Ranges, r)
	}
	if err := rows.Err(); err != nil {
		return FileRecord{}, fmt.Errorf("iterate range rows: %w", err)
	}
	return rec, nil
}

// FindByName returns ranges whose name equals name across all runs, newest
// run first.
func (s *Store) FindByName(name string) ([]NamedRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
SELECT r.run_id, r.path, r.capability, r.ordinal, r.kind,
  r.ident_start_byte, r.ident_end_byte, r.block_start_byte, r.block_end_byte,
  r.block_start_line, r.block_end_line
FROM ranges r JOIN runs ON runs.id = r.run_id
WHERE r.name = ?
ORDER BY runs.started_at_utc DESC, r.path ASC, r.capability ASC, r.ordinal ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("find ranges named %q: %w", name, err)
	}
	defer rows.Close()

	out := make([]NamedRange, 0)
	for rows.Next() {
		var nr NamedRange
		nr.Name = name
		if err := rows.Scan(
			&nr.RunID, &nr.Path, &nr.Capability, &nr.Ordinal, &nr.Kind,
			&nr.Identifier.StartByte, &nr.Identifier.EndByte, &nr.Block.StartByte, &nr.Block.EndByte,
			&nr.Block.Start.Line, &nr.Block.End.Line,
		); err != nil {
			return nil, fmt.Errorf("scan named range: %w", err)
		}
		out = append(out, nr)
	}
	return out, rows.Err()
}

// NamedRange locates one stored range by run and path.
type NamedRange struct {
	RunID      string
	Path       string
	Capability string
	Ordinal    int
	Kind       string
	Name       string
	Identifier syntax.TextRange
	Block      syntax.TextRange
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, listSep)
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}

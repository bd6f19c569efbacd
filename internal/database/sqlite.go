package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mactime-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNoBatch is returned by InsertEntry outside of a batch.
var ErrNoBatch = errors.New("no entry batch in progress")

// Run is one invocation of mactime whose timeline is stored.
type Run struct {
	ID          string
	StartedAt   time.Time
	Source      string
	InputDigest string
	Strict      bool
	FinishedAt  *time.Time
	EntryCount  int64
}

// EntryRow is one stored timeline line.
type EntryRow struct {
	RunID     string
	Timestamp int64
	Date      string
	MACB      string
	Size      uint64
	Mode      string
	UID       uint64
	GID       uint64
	Inode     string
	Name      string
}

// SQLiteStore keeps timelines in a SQLite file. Entries are inserted in
// batches, one transaction per batch.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	tx     *sql.Tx
	insert *sql.Stmt
}

// NewSQLiteStore opens or creates the database at path and migrates it to the
// latest schema. path can be ":memory:".
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases and the per-connection
	// PRAGMAs below consistent.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Path returns the file the store writes to.
func (s *SQLiteStore) Path() string {
	return s.path
}

// CreateRun records the start of a run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, source, input_digest, strict) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339), run.Source, run.InputDigest, run.Strict)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the input digest and entry count of a completed run.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID, digest string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs
		    SET input_digest = ?,
		        finished_at = ?,
		        entry_count = (SELECT COUNT(*) FROM entries WHERE run_id = ?)
		  WHERE id = ?`,
		digest, finishedAt.UTC().Format(time.RFC3339), runID, runID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// GetRun loads a run. It returns nil if the run does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, source, input_digest, strict, finished_at, entry_count FROM runs WHERE id = ?`, runID).
		Scan(&run.ID, &startedAt, &run.Source, &run.InputDigest, &run.Strict, &finishedAt, &run.EntryCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}

	if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("loading run %s: started_at: %w", runID, err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("loading run %s: finished_at: %w", runID, err)
		}
		run.FinishedAt = &t
	}

	return &run, nil
}

// BeginBatch starts the transaction subsequent InsertEntry calls write to.
func (s *SQLiteStore) BeginBatch(ctx context.Context) error {
	if s.tx != nil {
		return errors.New("entry batch already in progress")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (run_id, timestamp, date, macb, size, mode, uid, gid, inode, name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing entry insert: %w", err)
	}

	s.tx, s.insert = tx, stmt
	return nil
}

// InsertEntry adds e to the current batch.
func (s *SQLiteStore) InsertEntry(ctx context.Context, e EntryRow) error {
	if s.tx == nil {
		return ErrNoBatch
	}

	// SQLite integers are signed; sizes and ids are stored bit for bit.
	_, err := s.insert.ExecContext(ctx,
		e.RunID, e.Timestamp, e.Date, e.MACB, int64(e.Size), e.Mode, int64(e.UID), int64(e.GID), e.Inode, []byte(e.Name))
	if err != nil {
		return fmt.Errorf("inserting entry %q: %w", e.Name, err)
	}
	return nil
}

// CommitBatch commits the current batch.
func (s *SQLiteStore) CommitBatch() error {
	if s.tx == nil {
		return ErrNoBatch
	}
	defer s.endBatch()

	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

// RollbackBatch discards the current batch, if any.
func (s *SQLiteStore) RollbackBatch() error {
	if s.tx == nil {
		return nil
	}
	defer s.endBatch()

	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rolling back batch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) endBatch() {
	s.insert.Close()
	s.tx, s.insert = nil, nil
}

// ListEntries returns the entries of a run in timeline order.
func (s *SQLiteStore) ListEntries(ctx context.Context, runID string) ([]EntryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, timestamp, date, macb, size, mode, uid, gid, inode, name
		   FROM entries WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing entries of run %s: %w", runID, err)
	}
	defer rows.Close()

	var entries []EntryRow
	for rows.Next() {
		var (
			e              EntryRow
			size, uid, gid int64
			name           []byte
		)
		if err := rows.Scan(&e.RunID, &e.Timestamp, &e.Date, &e.MACB, &size, &e.Mode, &uid, &gid, &e.Inode, &name); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Size, e.UID, e.GID, e.Name = uint64(size), uint64(uid), uint64(gid), string(name)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing entries of run %s: %w", runID, err)
	}

	return entries, nil
}

// Close rolls back an unfinished batch and closes the database.
func (s *SQLiteStore) Close() error {
	rollbackErr := s.RollbackBatch()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return rollbackErr
}

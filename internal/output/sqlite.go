package output

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mactime-go/internal/database"
	"mactime-go/internal/timeline"
)

// Clock abstracts time retrieval so stored runs are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SQLiteWriter stores the timeline as the entries of one run in a SQLite
// database. All entries of a run are committed together on Close.
type SQLiteWriter struct {
	ctx    context.Context
	store  *database.SQLiteStore
	runID  string
	zones  Zones
	clock  Clock
	digest string
}

// NewSQLiteWriter records run in store and opens the batch its entries go to.
// The writer owns store from here on.
func NewSQLiteWriter(ctx context.Context, store *database.SQLiteStore, run database.Run, zones Zones, clock Clock) (*SQLiteWriter, error) {
	if err := store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	if err := store.BeginBatch(ctx); err != nil {
		return nil, err
	}

	return &SQLiteWriter{
		ctx:   ctx,
		store: store,
		runID: run.ID,
		zones: zones,
		clock: clock,
	}, nil
}

// SetInputDigest sets the digest recorded for the run when it is closed.
func (w *SQLiteWriter) SetInputDigest(digest string) {
	w.digest = digest
}

func (w *SQLiteWriter) Write(timestamp int64, e timeline.Entry) error {
	r := e.Record
	return w.store.InsertEntry(w.ctx, database.EntryRow{
		RunID:     w.runID,
		Timestamp: timestamp,
		Date:      FormatDate(timestamp, w.zones),
		MACB:      e.Flags.String(),
		Size:      r.Size,
		Mode:      r.Mode,
		UID:       r.UID,
		GID:       r.GID,
		Inode:     r.Inode,
		Name:      r.Name,
	})
}

// Close commits the run's entries, marks the run finished and closes the
// database.
func (w *SQLiteWriter) Close() error {
	if err := w.store.CommitBatch(); err != nil {
		return errors.Join(err, w.store.Close())
	}
	if err := w.store.FinishRun(w.ctx, w.runID, w.digest, w.clock.Now()); err != nil {
		return errors.Join(err, w.store.Close())
	}
	return w.store.Close()
}

// Abort discards the run's entries and closes the database. The run row
// stays behind unfinished.
func (w *SQLiteWriter) Abort() error {
	if err := w.store.RollbackBatch(); err != nil {
		return errors.Join(fmt.Errorf("aborting run %s: %w", w.runID, err), w.store.Close())
	}
	return w.store.Close()
}

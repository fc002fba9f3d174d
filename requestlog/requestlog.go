// Package requestlog journals fetch settlements into a SQLite database
// without blocking the fetch path. Entries are buffered on a bounded
// channel; when the buffer is full, records are dropped and counted.
package requestlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

const defaultQueueSize = 4096

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	coordinator TEXT NOT NULL,
	outcome TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	params TEXT NOT NULL DEFAULT '',
	issued_at INTEGER NOT NULL,
	settled_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_settlements_coordinator ON settlements(coordinator);
CREATE INDEX IF NOT EXISTS idx_settlements_outcome ON settlements(outcome);
`

// Record is one journaled settlement
type Record struct {
	RequestID   string
	Coordinator string
	Outcome     string
	Error       string
	DurationMS  int64
	Params      string
	IssuedAt    time.Time
	SettledAt   time.Time
}

type entry struct {
	rec  Record
	sync chan struct{}
}

// Journal writes settlement records to SQLite on its own goroutine
type Journal struct {
	db     *sql.DB
	insert *sql.Stmt
	queue  chan entry

	mu     sync.Mutex
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	dropped  atomic.Int64
	errCount atomic.Int64
}

// Open creates or opens the journal database at path. queueSize bounds the
// in-flight buffer; values <= 0 pick a default.
func Open(path string, queueSize int) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("requestlog: path is empty")
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("requestlog: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("requestlog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("requestlog: pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("requestlog: schema: %w", err)
	}

	insert, err := db.Prepare(`INSERT INTO settlements
		(request_id, coordinator, outcome, error, duration_ms, params, issued_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("requestlog: prepare insert: %w", err)
	}

	j := &Journal{
		db:     db,
		insert: insert,
		queue:  make(chan entry, queueSize),
	}
	j.wg.Add(1)
	go j.run()
	return j, nil
}

// Append buffers one record without blocking. Full buffers and closed
// journals drop the record and increment the dropped counter.
func (j *Journal) Append(rec Record) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.queue <- entry{rec: rec}:
	default:
		j.dropped.Add(1)
	}
}

// Sync blocks until every record buffered before the call has been written
func (j *Journal) Sync() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return errors.New("requestlog: journal is closed")
	}
	done := make(chan struct{})
	j.queue <- entry{sync: done}
	j.mu.Unlock()

	<-done
	return nil
}

// Dropped returns how many records were discarded due to backpressure
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Close flushes the buffer and releases the database
func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.queue)
		j.mu.Unlock()

		j.wg.Wait()
		_ = j.insert.Close()
		j.closeErr = j.db.Close()
	})
	return j.closeErr
}

func (j *Journal) run() {
	defer j.wg.Done()
	for e := range j.queue {
		if e.sync != nil {
			close(e.sync)
			continue
		}
		if err := j.write(e.rec); err != nil {
			j.errCount.Add(1)
		}
	}
}

func (j *Journal) write(rec Record) error {
	_, err := j.insert.Exec(
		rec.RequestID,
		rec.Coordinator,
		rec.Outcome,
		rec.Error,
		rec.DurationMS,
		rec.Params,
		rec.IssuedAt.UnixNano(),
		rec.SettledAt.UnixNano(),
	)
	return err
}

// Recent returns the newest records first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT request_id, coordinator, outcome, error, duration_ms, params, issued_at, settled_at
		FROM settlements ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("requestlog: query recent: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByCoordinator returns the newest records for one coordinator
func (j *Journal) ByCoordinator(ctx context.Context, coordinator string, limit int) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT request_id, coordinator, outcome, error, duration_ms, params, issued_at, settled_at
		FROM settlements WHERE coordinator = ? ORDER BY id DESC LIMIT ?`, coordinator, limit)
	if err != nil {
		return nil, fmt.Errorf("requestlog: query by coordinator: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// CountByOutcome returns settlement counts grouped by outcome
func (j *Journal) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM settlements GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("requestlog: query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("requestlog: scan count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		var issuedAt, settledAt int64
		if err := rows.Scan(
			&rec.RequestID,
			&rec.Coordinator,
			&rec.Outcome,
			&rec.Error,
			&rec.DurationMS,
			&rec.Params,
			&issuedAt,
			&settledAt,
		); err != nil {
			return nil, fmt.Errorf("requestlog: scan record: %w", err)
		}
		rec.IssuedAt = time.Unix(0, issuedAt)
		rec.SettledAt = time.Unix(0, settledAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

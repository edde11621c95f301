package workqueue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, matching internal/db's choice

	"jotnar/internal/schema"
)

// SQLiteStore implements Store on top of database/sql + modernc.org/sqlite,
// in WAL mode with a busy timeout so concurrent workers don't trip over
// each other's writes.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path (creating it if absent) and applies migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite work queue: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite work queue: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite work queue: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS queue_items (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			queue TEXT NOT NULL,
			issue_key TEXT NOT NULL,
			metadata TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			ready_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_queue_items_queue_ready ON queue_items (queue, ready_at, seq);
	`)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) PushTail(ctx context.Context, queue Queue, t schema.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_items (id, queue, issue_key, metadata, attempts, created_at, ready_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(queue), string(t.IssueKey), string(t.Metadata), t.Attempts, t.CreatedAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("push_tail %s: %w", queue, err)
	}
	return nil
}

func (s *SQLiteStore) claimOne(ctx context.Context, query string, args ...interface{}) (schema.Task, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.Task{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, query, args...)

	var t schema.Task
	var metadata string
	var seq int64
	if err := row.Scan(&seq, &t.ID, &t.IssueKey, &metadata, &t.Attempts, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return schema.Task{}, false, nil
		}
		return schema.Task{}, false, err
	}
	t.Metadata = []byte(metadata)

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items WHERE seq = ?`, seq); err != nil {
		return schema.Task{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return schema.Task{}, false, err
	}
	return t, true, nil
}

func (s *SQLiteStore) BlockingPopHead(ctx context.Context, queues []Queue, timeout time.Duration) (schema.Task, bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		for _, q := range queues {
			t, ok, err := s.claimOne(ctx,
				`SELECT seq, id, issue_key, metadata, attempts, created_at FROM queue_items
				 WHERE queue = ? AND ready_at <= ? ORDER BY seq ASC LIMIT 1`,
				string(q), time.Now())
			if err != nil {
				return schema.Task{}, false, fmt.Errorf("blocking_pop_head %s: %w", q, err)
			}
			if ok {
				return t, true, nil
			}
		}

		if time.Now().After(deadline) {
			return schema.Task{}, false, nil
		}
		select {
		case <-ctx.Done():
			return schema.Task{}, false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *SQLiteStore) DelaySchedule(ctx context.Context, t schema.Task, readyAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_items (id, queue, issue_key, metadata, attempts, created_at, ready_at)
		 VALUES (?, '__scheduled__', ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET ready_at = excluded.ready_at, attempts = excluded.attempts`,
		t.ID, string(t.IssueKey), string(t.Metadata), t.Attempts, t.CreatedAt, readyAt)
	if err != nil {
		return fmt.Errorf("delay_schedule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PopFirstReady(ctx context.Context, now time.Time, retryWindow time.Duration) (schema.Task, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.Task{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT seq, id, issue_key, metadata, attempts, created_at FROM queue_items
		 WHERE queue = '__scheduled__' AND ready_at <= ? ORDER BY ready_at ASC LIMIT 1`, now)

	var t schema.Task
	var metadata string
	var seq int64
	if err := row.Scan(&seq, &t.ID, &t.IssueKey, &metadata, &t.Attempts, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return schema.Task{}, false, nil
		}
		return schema.Task{}, false, fmt.Errorf("pop_first_ready: %w", err)
	}
	t.Metadata = []byte(metadata)

	if _, err := tx.ExecContext(ctx, `UPDATE queue_items SET ready_at = ?, attempts = attempts + 1 WHERE seq = ?`,
		now.Add(retryWindow), seq); err != nil {
		return schema.Task{}, false, fmt.Errorf("pop_first_ready reschedule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return schema.Task{}, false, err
	}
	t.Attempts++
	return t, true, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, queue Queue, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE queue = ? AND id = ?`, string(queue), taskID)
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", queue, taskID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, queue Queue, offset, limit int) ([]schema.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_key, metadata, attempts, created_at FROM queue_items
		 WHERE queue = ? ORDER BY seq ASC LIMIT ? OFFSET ?`, string(queue), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", queue, err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *SQLiteStore) AllItems(ctx context.Context, queue Queue) ([]schema.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_key, metadata, attempts, created_at FROM queue_items WHERE queue = ? ORDER BY seq ASC`,
		string(queue))
	if err != nil {
		return nil, fmt.Errorf("all_items %s: %w", queue, err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]schema.Task, error) {
	var out []schema.Task
	for rows.Next() {
		var t schema.Task
		var metadata string
		if err := rows.Scan(&t.ID, &t.IssueKey, &metadata, &t.Attempts, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Metadata = []byte(metadata)
		out = append(out, t)
	}
	return out, rows.Err()
}

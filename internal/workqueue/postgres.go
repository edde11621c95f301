package workqueue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"jotnar/internal/schema"
)

// PostgresStore implements Store on top of database/sql + github.com/lib/pq,
// for deployments that already run Postgres for other durable state.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens dsn and applies migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres work queue: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres work queue: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate postgres work queue: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS queue_items (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			queue TEXT NOT NULL,
			issue_key TEXT NOT NULL,
			metadata TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			ready_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_queue_items_queue_ready ON queue_items (queue, ready_at, seq);
	`)
	return err
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) PushTail(ctx context.Context, queue Queue, t schema.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_items (id, queue, issue_key, metadata, attempts, created_at, ready_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, string(queue), string(t.IssueKey), string(t.Metadata), t.Attempts, t.CreatedAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("push_tail %s: %w", queue, err)
	}
	return nil
}

func (s *PostgresStore) claimOne(ctx context.Context, query string, args ...interface{}) (schema.Task, bool, error) {
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items WHERE seq = $1`, seq); err != nil {
		return schema.Task{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return schema.Task{}, false, err
	}
	return t, true, nil
}

func (s *PostgresStore) BlockingPopHead(ctx context.Context, queues []Queue, timeout time.Duration) (schema.Task, bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		for _, q := range queues {
			t, ok, err := s.claimOne(ctx,
				`SELECT seq, id, issue_key, metadata, attempts, created_at FROM queue_items
				 WHERE queue = $1 AND ready_at <= $2 ORDER BY seq ASC LIMIT 1 FOR UPDATE SKIP LOCKED`,
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

func (s *PostgresStore) DelaySchedule(ctx context.Context, t schema.Task, readyAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_items (id, queue, issue_key, metadata, attempts, created_at, ready_at)
		 VALUES ($1, '__scheduled__', $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET ready_at = excluded.ready_at, attempts = excluded.attempts`,
		t.ID, string(t.IssueKey), string(t.Metadata), t.Attempts, t.CreatedAt, readyAt)
	if err != nil {
		return fmt.Errorf("delay_schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) PopFirstReady(ctx context.Context, now time.Time, retryWindow time.Duration) (schema.Task, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.Task{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT seq, id, issue_key, metadata, attempts, created_at FROM queue_items
		 WHERE queue = '__scheduled__' AND ready_at <= $1 ORDER BY ready_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`, now)

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

	if _, err := tx.ExecContext(ctx, `UPDATE queue_items SET ready_at = $1, attempts = attempts + 1 WHERE seq = $2`,
		now.Add(retryWindow), seq); err != nil {
		return schema.Task{}, false, fmt.Errorf("pop_first_ready reschedule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return schema.Task{}, false, err
	}
	t.Attempts++
	return t, true, nil
}

func (s *PostgresStore) Remove(ctx context.Context, queue Queue, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE queue = $1 AND id = $2`, string(queue), taskID)
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", queue, taskID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, queue Queue, offset, limit int) ([]schema.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_key, metadata, attempts, created_at FROM queue_items
		 WHERE queue = $1 ORDER BY seq ASC LIMIT $2 OFFSET $3`, string(queue), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", queue, err)
	}
	defer rows.Close()
	return scanTasksPg(rows)
}

func (s *PostgresStore) AllItems(ctx context.Context, queue Queue) ([]schema.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_key, metadata, attempts, created_at FROM queue_items WHERE queue = $1 ORDER BY seq ASC`,
		string(queue))
	if err != nil {
		return nil, fmt.Errorf("all_items %s: %w", queue, err)
	}
	defer rows.Close()
	return scanTasksPg(rows)
}

func scanTasksPg(rows *sql.Rows) ([]schema.Task, error) {
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

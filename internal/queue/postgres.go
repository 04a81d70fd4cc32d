package queue

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PostgresQueue stores each day-queue as its own table, leasing messages
// with FOR UPDATE SKIP LOCKED and a vt (visible-at) column. The table for
// "drip-messages-2025-01-15" is q_drip_messages_2025_01_15.
type PostgresQueue struct {
	db *sql.DB

	// pollWait bounds how long Read lingers waiting for a message to
	// appear; pollStep is the re-check interval within that window.
	pollWait time.Duration
	pollStep time.Duration
}

// NewPostgresQueue creates a queue backed by the given database.
func NewPostgresQueue(db *sql.DB) *PostgresQueue {
	return &PostgresQueue{
		db:       db,
		pollWait: 1 * time.Second,
		pollStep: 100 * time.Millisecond,
	}
}

var queueNameRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// tableName maps a queue name to its backing table. Queue names are
// system-derived, but the name still becomes a SQL identifier, so
// anything outside [a-z0-9-] is rejected.
func tableName(name string) (string, error) {
	if name == "" || len(name) > 48 || !queueNameRe.MatchString(name) {
		return "", fmt.Errorf("invalid queue name %q", name)
	}
	return "q_" + strings.ReplaceAll(name, "-", "_"), nil
}

// Create makes the queue's table exist. IF NOT EXISTS keeps it idempotent
// under concurrent creates.
func (q *PostgresQueue) Create(ctx context.Context, name string) error {
	tbl, err := tableName(name)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			msg_id      BIGSERIAL PRIMARY KEY,
			read_ct     INT NOT NULL DEFAULT 0,
			enqueued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			vt          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			message     JSONB NOT NULL
		)
	`, tbl))
	if err != nil {
		return fmt.Errorf("create queue %s: %w", name, err)
	}
	return nil
}

// Drop destroys the queue and all its messages.
func (q *PostgresQueue) Drop(ctx context.Context, name string) error {
	tbl, err := tableName(name)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tbl)); err != nil {
		return fmt.Errorf("drop queue %s: %w", name, err)
	}
	return nil
}

// Send appends one entry and returns its id.
func (q *PostgresQueue) Send(ctx context.Context, name string, payload []byte) (int64, error) {
	tbl, err := tableName(name)
	if err != nil {
		return 0, err
	}
	var msgID int64
	err = q.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (message) VALUES ($1) RETURNING msg_id
	`, tbl), payload).Scan(&msgID)
	if err != nil {
		return 0, fmt.Errorf("send to queue %s: %w", name, err)
	}
	return msgID, nil
}

// Read leases up to qty visible messages for vt seconds. The SKIP LOCKED
// claim plus the vt bump makes each message invisible to other readers
// until the lease expires. If nothing is visible, Read re-checks for up
// to pollWait before returning an empty slice.
func (q *PostgresQueue) Read(ctx context.Context, name string, vt time.Duration, qty int) ([]Message, error) {
	deadline := time.Now().Add(q.pollWait)
	for {
		msgs, err := q.readOnce(ctx, name, vt, qty)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollStep):
		}
	}
}

func (q *PostgresQueue) readOnce(ctx context.Context, name string, vt time.Duration, qty int) ([]Message, error) {
	tbl, err := tableName(name)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(`
		WITH ready AS (
			SELECT msg_id FROM %s
			WHERE vt <= NOW()
			ORDER BY msg_id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %s t
		SET vt = NOW() + make_interval(secs => $2), read_ct = t.read_ct + 1
		FROM ready
		WHERE t.msg_id = ready.msg_id
		RETURNING t.msg_id, t.read_ct, t.enqueued_at, t.vt, t.message
	`, tbl, tbl), qty, vt.Seconds())
	if err != nil {
		return nil, fmt.Errorf("read queue %s: %w", name, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ReadCount, &m.EnqueuedAt, &m.VisibleAt, &m.Payload); err != nil {
			return nil, fmt.Errorf("scan queue %s message: %w", name, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Archive deletes the entry. Deleting an id that is already gone affects
// zero rows, which keeps Archive idempotent.
func (q *PostgresQueue) Archive(ctx context.Context, name string, msgID int64) error {
	tbl, err := tableName(name)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE msg_id = $1`, tbl), msgID); err != nil {
		return fmt.Errorf("archive %d from queue %s: %w", msgID, name, err)
	}
	return nil
}

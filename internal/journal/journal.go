// Package journal keeps a SQLite log of messages sent and received by a node.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/loralink/internal/session"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		node      TEXT    NOT NULL,
		direction TEXT    NOT NULL,
		body      BLOB    NOT NULL,
		rssi      INTEGER NOT NULL DEFAULT 0,
		snr       INTEGER NOT NULL DEFAULT 0,
		at_ms     INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_at ON messages (at_ms)`,
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store is a session.Sink backed by SQLite.
type Store struct {
	sqlDB *sql.DB
	node  string
}

var _ session.Sink = (*Store)(nil)

// Open opens or creates the journal at path. Rows are tagged with node.
func Open(path, node string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{sqlDB: sqlDB, node: node}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Record appends msg. A zero timestamp is replaced with the current time.
func (s *Store) Record(ctx context.Context, msg session.Message) error {
	at := msg.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO messages (node, direction, body, rssi, snr, at_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		s.node, string(msg.Direction), msg.Body, int64(msg.RSSI), int64(msg.SNR), toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest messages, oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]session.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT direction, body, rssi, snr, at_ms FROM messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []session.Message
	for rows.Next() {
		var (
			direction string
			body      []byte
			rssi      int64
			snr       int64
			atMillis  int64
		)
		if err := rows.Scan(&direction, &body, &rssi, &snr, &atMillis); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		out = append(out, session.Message{
			Direction: session.Direction(direction),
			Body:      body,
			RSSI:      int16(rssi),
			SNR:       int8(snr),
			At:        fromMillis(atMillis),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal rows: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the number of journaled messages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}

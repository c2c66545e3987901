package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/frpdeck/internal/history"
)

// Sink appends history events to a SQLite table.
type Sink struct {
	db *sql.DB
}

// New opens a SQLite history sink.
// DSN forms: "sqlite:///path/to/file.db", "sqlite://:memory:", "/path/to/file.db", ":memory:".
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// :memory: databases are per-connection.
	db.SetMaxOpenConns(1)

	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS frpc_history(
		occurred_at TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
		type TEXT NOT NULL,
		profile_id TEXT NOT NULL,
		pid INTEGER NOT NULL,
		log_path TEXT,
		detail TEXT
	);`)
	return err
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO frpc_history(occurred_at, type, profile_id, pid, log_path, detail)
		VALUES(?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC(), string(e.Type), e.ProfileID, e.PID, e.LogPath, e.Detail)
	return err
}

// Count returns how many events of type t were recorded for profile.
func (s *Sink) Count(ctx context.Context, profile string, t history.EventType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM frpc_history WHERE profile_id = ? AND type = ?`,
		profile, string(t)).Scan(&n)
	return n, err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

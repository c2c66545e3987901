package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/loykin/frpdeck/internal/profile"
)

// Dialect differences between the SQL backends.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Upsert is the settings upsert statement using Placeholder(1), Placeholder(2).
	Upsert string
}

var (
	QuestionMark = func(int) string { return "?" }
	Dollar       = func(n int) string { return "$" + strconv.Itoa(n) }
)

// SQLStore keeps profiles as JSON bodies in a profiles table ordered by
// position, plus a key/value settings table for frpc_path.
type SQLStore struct {
	db *sql.DB
	d  Dialect
}

func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{db: db, d: d}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings(
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS profiles(
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			body TEXT NOT NULL
		);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%w: schema: %w", ErrIO, err)
		}
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (profile.Set, error) {
	var set profile.Set
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = `+s.d.Placeholder(1), "frpc_path").Scan(&set.FrpcPath)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return profile.Set{}, fmt.Errorf("%w: %w", ErrIO, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT body FROM profiles ORDER BY position`)
	if err != nil {
		return profile.Set{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return profile.Set{}, fmt.Errorf("%w: %w", ErrIO, err)
		}
		var p profile.Profile
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return profile.Set{}, fmt.Errorf("decode profile: %w", err)
		}
		set.Servers = append(set.Servers, p)
	}
	if err := rows.Err(); err != nil {
		return profile.Set{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return set, nil
}

// Save replaces all rows in one transaction.
func (s *SQLStore) Save(ctx context.Context, set profile.Set) error {
	if err := set.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.d.Upsert, "frpc_path", set.FrpcPath); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	insert := fmt.Sprintf(`INSERT INTO profiles(id, position, body) VALUES(%s)`,
		strings.Join([]string{s.d.Placeholder(1), s.d.Placeholder(2), s.d.Placeholder(3)}, ", "))
	for i, p := range set.Servers {
		body, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, p.ID, i, string(body)); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

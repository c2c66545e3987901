package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/frpdeck/internal/store"
)

// DB is a store.Store on SQLite (modernc.org/sqlite, CGO-free).
type DB struct {
	*store.SQLStore
}

// New opens the database at path ("sqlite://" prefix optional, ":memory:" allowed)
// and ensures the schema.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if strings.HasPrefix(strings.ToLower(p), "sqlite://") {
		p = p[len("sqlite://"):]
	}
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(1)
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")

	s := &DB{SQLStore: store.NewSQLStore(d, store.Dialect{
		Placeholder: store.QuestionMark,
		Upsert:      `INSERT INTO settings(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
	})}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

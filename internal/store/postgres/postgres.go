package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/frpdeck/internal/store"
)

// DB is a store.Store on PostgreSQL through pgx's database/sql driver.
type DB struct {
	*store.SQLStore
}

// New connects with a postgres:// DSN and ensures the schema.
func New(dsn string) (*DB, error) {
	d := strings.TrimSpace(dsn)
	if d == "" {
		return nil, errors.New("empty postgres dsn")
	}
	db, err := sql.Open("pgx", d)
	if err != nil {
		return nil, err
	}
	s := &DB{SQLStore: store.NewSQLStore(db, store.Dialect{
		Placeholder: store.Dollar,
		Upsert:      `INSERT INTO settings(key, value) VALUES($1, $2) ON CONFLICT(key) DO UPDATE SET value = EXCLUDED.value`,
	})}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

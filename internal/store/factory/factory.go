package factory

import (
	"errors"
	"strings"

	"github.com/loykin/frpdeck/internal/store"
	"github.com/loykin/frpdeck/internal/store/jsonfile"
	pg "github.com/loykin/frpdeck/internal/store/postgres"
	sq "github.com/loykin/frpdeck/internal/store/sqlite"
)

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - postgres: "postgres://..." or "postgresql://..."
//   - sqlite:   "sqlite:///<path>" or a path ending in .db/.sqlite/.sqlite3
//   - json:     "json:///<path>" or any other bare path (the config.json layout)
func NewFromDSN(dsn string) (store.Store, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	switch {
	case ld == "":
		return nil, errors.New("empty DSN")
	case strings.HasPrefix(ld, "postgres://"), strings.HasPrefix(ld, "postgresql://"):
		return pg.New(d)
	case strings.HasPrefix(ld, "sqlite://"),
		strings.HasSuffix(ld, ".db"), strings.HasSuffix(ld, ".sqlite"), strings.HasSuffix(ld, ".sqlite3"):
		return sq.New(d)
	case strings.HasPrefix(ld, "json://"), !strings.Contains(ld, "://"):
		return jsonfile.New(d)
	}
	return nil, errors.New("unsupported store DSN: " + d)
}

package store

import (
	"context"
	"errors"

	"github.com/loykin/frpdeck/internal/profile"
)

// ErrIO marks storage failures (file system or database).
var ErrIO = errors.New("store io")

// Store persists the profile set. Load on an empty store returns a set with
// no servers; Save validates before writing and replaces everything.
type Store interface {
	Load(ctx context.Context) (profile.Set, error)
	Save(ctx context.Context, set profile.Set) error
	Close() error
}

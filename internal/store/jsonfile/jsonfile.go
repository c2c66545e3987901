package jsonfile

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/loykin/frpdeck/internal/profile"
	"github.com/loykin/frpdeck/internal/store"
)

// Store keeps the profile set in a single config.json document.
type Store struct {
	mu   sync.Mutex
	path string
}

// New accepts "json:///path/to/profiles.json" or a bare path.
func New(dsn string) (*Store, error) {
	p := strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(p), "json://") {
		p = p[len("json://"):]
	}
	if p == "" {
		return nil, errors.New("empty json store path")
	}
	return &Store{path: p}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(_ context.Context) (profile.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.ReadSetFile(s.path)
}

func (s *Store) Save(_ context.Context, set profile.Set) error {
	if err := set.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.WriteSetFile(s.path, set)
}

func (s *Store) Close() error { return nil }

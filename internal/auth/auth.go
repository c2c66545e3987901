package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("missing credentials")
)

// User is a basic-auth account. PasswordHash is a bcrypt hash, see HashPassword.
type User struct {
	Username     string `mapstructure:"username" json:"username"`
	PasswordHash string `mapstructure:"password_hash" json:"password_hash"`
}

// Config guards the control API. With Enabled false every request passes.
type Config struct {
	Enabled bool     `mapstructure:"enabled"`
	Users   []User   `mapstructure:"users"`
	Tokens  []string `mapstructure:"tokens"` // static bearer tokens
}

// Service checks request credentials against a Config.
type Service struct {
	enabled bool
	users   map[string][]byte
	tokens  [][sha256.Size]byte
}

// NewService validates cfg. Enabling auth without any user or token is an error.
func NewService(cfg Config) (*Service, error) {
	s := &Service{enabled: cfg.Enabled, users: make(map[string][]byte)}
	if !cfg.Enabled {
		return s, nil
	}
	for _, u := range cfg.Users {
		name := strings.TrimSpace(u.Username)
		if name == "" {
			return nil, errors.New("auth user without username")
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth user %q: password_hash is not a bcrypt hash: %w", name, err)
		}
		s.users[name] = []byte(u.PasswordHash)
	}
	for _, t := range cfg.Tokens {
		if t = strings.TrimSpace(t); t != "" {
			s.tokens = append(s.tokens, sha256.Sum256([]byte(t)))
		}
	}
	if len(s.users) == 0 && len(s.tokens) == 0 {
		return nil, errors.New("auth enabled but no users or tokens configured")
	}
	return s, nil
}

func (s *Service) Enabled() bool { return s != nil && s.enabled }

// Authenticate accepts "Authorization: Bearer <token>" or basic auth and
// returns the principal name.
func (s *Service) Authenticate(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
			return s.checkToken(strings.TrimSpace(tok))
		}
	}
	if user, pass, ok := r.BasicAuth(); ok {
		return s.checkPassword(user, pass)
	}
	return "", ErrMissingCredentials
}

func (s *Service) checkToken(tok string) (string, error) {
	sum := sha256.Sum256([]byte(tok))
	found := 0
	for _, t := range s.tokens {
		found |= subtle.ConstantTimeCompare(sum[:], t[:])
	}
	if found == 1 {
		return "token", nil
	}
	return "", ErrInvalidCredentials
}

func (s *Service) checkPassword(user, pass string) (string, error) {
	hash, ok := s.users[user]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pass)); err != nil {
		return "", ErrInvalidCredentials
	}
	return user, nil
}

// HashPassword produces a password_hash value for the config file.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

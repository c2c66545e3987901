package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	s, err := NewService(Config{
		Enabled: true,
		Users:   []User{{Username: "admin", PasswordHash: string(hash)}},
		Tokens:  []string{"tok-123"},
	})
	require.NoError(t, err)
	return s
}

func TestAuthenticate(t *testing.T) {
	s := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := s.Authenticate(req)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	req.SetBasicAuth("admin", "s3cret")
	who, err := s.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "admin", who)

	req.SetBasicAuth("admin", "wrong")
	_, err = s.Authenticate(req)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	req.SetBasicAuth("ghost", "s3cret")
	_, err = s.Authenticate(req)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	who, err = s.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "token", who)

	req.Header.Set("Authorization", "bearer nope")
	_, err = s.Authenticate(req)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewServiceValidation(t *testing.T) {
	s, err := NewService(Config{})
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	_, err = NewService(Config{Enabled: true})
	assert.Error(t, err)

	_, err = NewService(Config{Enabled: true, Users: []User{{Username: "a", PasswordHash: "plain"}}})
	assert.Error(t, err)

	_, err = NewService(Config{Enabled: true, Users: []User{{PasswordHash: "x"}}})
	assert.Error(t, err)

	_, err = NewService(Config{Enabled: true, Tokens: []string{"  "}})
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestGinAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestService(t)
	g := gin.New()
	g.Use(s.GinAuth())
	g.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(PrincipalKey)) })

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = httptest.NewRecorder()
	g.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Body.String())

	open, err := NewService(Config{})
	require.NoError(t, err)
	g = gin.New()
	g.Use(open.GinAuth())
	g.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	rec = httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

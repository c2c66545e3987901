//go:build !windows

package client

import (
	"context"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/frpdeck/internal/auth"
	"github.com/loykin/frpdeck/internal/manager"
	"github.com/loykin/frpdeck/internal/profile"
	"github.com/loykin/frpdeck/internal/server"
	"github.com/loykin/frpdeck/internal/store/jsonfile"
)

func newDaemon(t *testing.T) (*Client, *manager.Supervisor) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	bin := filepath.Join(dir, "frpc")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho \"login ok\"\nexec sleep 30\n"), 0o755))

	sup := manager.NewSupervisor(manager.Options{Binary: bin, WorkDir: dir})
	t.Cleanup(func() { _ = sup.Shutdown(context.Background()) })
	st, err := jsonfile.New(filepath.Join(dir, "profiles.json"))
	require.NoError(t, err)

	ts := httptest.NewServer(server.NewRouter(sup, st, "/api", nil).Handler())
	t.Cleanup(ts.Close)

	c, err := New(Config{BaseURL: ts.URL + "/api/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c, sup
}

func TestClientRoundTrip(t *testing.T) {
	c, sup := newDaemon(t)
	ctx := context.Background()
	require.True(t, c.IsReachable(ctx))

	rp := 6000
	set := profile.Set{Servers: []profile.Profile{{
		ID:     "home",
		Common: profile.Common{ServerAddr: "frp.example.com", ServerPort: 7000},
		Nodes:  []profile.Endpoint{{Name: "ssh", Type: "tcp", LocalPort: 22, RemotePort: &rp}},
	}}}
	require.NoError(t, c.SaveProfiles(ctx, set))

	got, err := c.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, got.Servers, 1)
	p, err := c.Profile(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, "frp.example.com", p.Common.ServerAddr)

	text, err := c.Render(ctx, "home")
	require.NoError(t, err)
	assert.Contains(t, text, "remote_port = 6000")

	path, err := c.WriteConfig(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, sup.ConfigPath("home"), path)

	pid, err := c.StartRendered(ctx, "home")
	require.NoError(t, err)
	assert.Greater(t, pid, 0)

	st, err := c.Status(ctx, "home")
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, pid, st.PID)

	all, err := c.StatusAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.Eventually(t, func() bool {
		out, err := c.Logs(ctx, "home")
		return err == nil && strings.Contains(out, "login ok")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Stop(ctx, "home"))
	st, err = c.Status(ctx, "home")
	require.NoError(t, err)
	assert.False(t, st.Running)
}

func TestClientAPIError(t *testing.T) {
	c, _ := newDaemon(t)
	ctx := context.Background()

	err := c.Stop(ctx, "home")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "not running")

	_, err = c.Start(ctx, "nope")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = c.Status(ctx, "bad id")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestClientUnreachable(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 500 * time.Millisecond})
	require.NoError(t, err)
	assert.False(t, c.IsReachable(context.Background()))
	_, err = c.StatusAll(context.Background())
	assert.Error(t, err)
}

func TestClientTLS(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()
	ctx := context.Background()

	plain, err := New(Config{BaseURL: ts.URL})
	require.NoError(t, err)
	assert.False(t, plain.IsReachable(ctx), "unknown authority")

	insecure, err := New(Config{BaseURL: ts.URL, Insecure: true})
	require.NoError(t, err)
	assert.True(t, insecure.IsReachable(ctx))

	ca := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ts.Certificate().Raw})
	require.NoError(t, os.WriteFile(ca, pemBytes, 0o600))
	trusted, err := New(Config{BaseURL: ts.URL, CACert: ca})
	require.NoError(t, err)
	assert.True(t, trusted.IsReachable(ctx))

	_, err = New(Config{CACert: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)
}

func TestClientAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	sup := manager.NewSupervisor(manager.Options{Binary: filepath.Join(dir, "frpc"), WorkDir: dir})
	st, err := jsonfile.New(filepath.Join(dir, "profiles.json"))
	require.NoError(t, err)
	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	svc, err := auth.NewService(auth.Config{Enabled: true, Users: []auth.User{{Username: "ops", PasswordHash: hash}}, Tokens: []string{"t0k"}})
	require.NoError(t, err)
	r := server.NewRouter(sup, st, "/api", nil)
	r.SetAuth(svc)
	ts := httptest.NewServer(r.Handler())
	defer ts.Close()
	ctx := context.Background()

	anon, err := New(Config{BaseURL: ts.URL + "/api"})
	require.NoError(t, err)
	_, err = anon.StatusAll(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	basic, err := New(Config{BaseURL: ts.URL + "/api", Username: "ops", Password: "pw"})
	require.NoError(t, err)
	_, err = basic.StatusAll(ctx)
	assert.NoError(t, err)

	bearer, err := New(Config{BaseURL: ts.URL + "/api", Token: "t0k"})
	require.NoError(t, err)
	assert.True(t, bearer.IsReachable(ctx))
}

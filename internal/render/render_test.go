package render

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loykin/frpdeck/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestRenderScenario(t *testing.T) {
	p := profile.Profile{
		ID:     "p1",
		Common: profile.Common{ServerAddr: "frp.example.com", ServerPort: 7000, User: "alice", Token: "s3cret"},
		Nodes: []profile.Endpoint{
			{Name: "web", Type: "tcp", LocalPort: 8080, RemotePort: intPtr(6000)},
		},
	}
	want := "[common]\n" +
		"server_addr = frp.example.com\n" +
		"server_port = 7000\n" +
		"tls_enable = false\n" +
		"user = alice\n" +
		"token = s3cret\n" +
		"\n" +
		"[web]\n" +
		"type = tcp\n" +
		"local_port = 8080\n" +
		"remote_port = 6000\n" +
		"\n"
	assert.Equal(t, want, Render(p))
	assert.Contains(t, Render(p), "[web]\ntype = tcp\nlocal_port = 8080\nremote_port = 6000")
}

func TestRenderWritesExplicitLocalIPAndTrimmedName(t *testing.T) {
	p := profile.Profile{
		ID:     "p",
		Common: profile.Common{ServerAddr: "h", ServerPort: 1},
		Nodes:  []profile.Endpoint{{Name: " web ", Type: "tcp", LocalIP: " 10.0.0.5 ", LocalPort: 80}},
	}
	assert.Contains(t, Render(p), "[web]\ntype = tcp\nlocal_ip = 10.0.0.5\nlocal_port = 80\n")
}

func TestRenderAllOptionalFieldsOnceInOrder(t *testing.T) {
	p := profile.Profile{
		ID:     "full",
		Common: profile.Common{ServerAddr: "10.0.0.1", ServerPort: 7000, TLSEnable: true},
		Nodes: []profile.Endpoint{
			{
				Name: "site", Type: "http", LocalIP: "192.168.1.2", LocalPort: 80,
				RemotePort:     intPtr(8080),
				CustomDomains:  strPtr("a.example.com,b.example.com"),
				Subdomain:      strPtr("blog"),
				UseEncryption:  boolPtr(true),
				UseCompression: boolPtr(false),
			},
			{Name: "ssh", Type: "tcp", LocalPort: 22},
		},
	}
	out := Render(p)

	keys := []string{
		"[common]", "server_addr = ", "server_port = ", "tls_enable = true",
		"[site]", "type = http", "local_ip = 192.168.1.2", "local_port = 80", "remote_port = 8080",
		"custom_domains = a.example.com,b.example.com", "subdomain = blog",
		"use_encryption = true", "use_compression = false",
		"[ssh]",
	}
	last := -1
	for _, k := range keys {
		assert.Equal(t, 1, strings.Count(out, k), "expected exactly one %q", k)
		idx := strings.Index(out, k)
		assert.Greater(t, idx, last, "%q out of order", k)
		last = idx
	}
	assert.NotContains(t, out, "user = ")
	assert.NotContains(t, out, "token = ")
}

func TestRenderOmitsAbsentAndEmptyFields(t *testing.T) {
	p := profile.Profile{
		ID:     "p",
		Common: profile.Common{ServerAddr: "h", ServerPort: 1},
		Nodes: []profile.Endpoint{{
			Name: "dns", Type: "udp", LocalPort: 53,
			RemotePort:    intPtr(0),
			CustomDomains: strPtr("   "),
			Subdomain:     strPtr(""),
		}},
	}
	out := Render(p)
	for _, k := range []string{"local_ip", "remote_port", "custom_domains", "subdomain", "use_encryption", "use_compression"} {
		assert.NotContains(t, out, k)
	}
	for _, line := range strings.Split(out, "\n") {
		assert.False(t, strings.HasSuffix(line, "= "), "empty-valued line %q", line)
	}
}

func TestRenderDeterministic(t *testing.T) {
	p := profile.Profile{ID: "x", Common: profile.Common{ServerAddr: "h", ServerPort: 2}}
	assert.Equal(t, Render(p), Render(p))
	assert.Equal(t, "[common]\nserver_addr = h\nserver_port = 2\ntls_enable = false\n\n", Render(p))
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf")
	p := profile.Profile{ID: "p1", Common: profile.Common{ServerAddr: "h", ServerPort: 7000}}

	path, err := WriteFile(dir, p)
	require.NoError(t, err)
	assert.Equal(t, Path(dir, "p1"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Render(p), string(b))

	_, err = WriteFile(dir, profile.Profile{ID: "../escape"})
	assert.Error(t, err)
}

func TestWriteFileReplacesWithoutTruncating(t *testing.T) {
	dir := t.TempDir()
	p := profile.Profile{ID: "p1", Common: profile.Common{ServerAddr: "old", ServerPort: 7000}}
	path, err := WriteFile(dir, p)
	require.NoError(t, err)

	// A reader that opened the file before the rewrite keeps the full old content.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	p.Common.ServerAddr = "new"
	_, err = WriteFile(dir, p)
	require.NoError(t, err)

	old, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, Render(profile.Profile{ID: "p1", Common: profile.Common{ServerAddr: "old", ServerPort: 7000}}), string(old))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "server_addr = new\n")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/loykin/frpdeck/internal/profile"
)

// Render converts a profile into frpc's INI configuration.
// Optional endpoint fields are written only when present; an empty value never
// produces a line. Sections follow the endpoint order of the profile.
func Render(p profile.Profile) string {
	var b strings.Builder

	b.WriteString("[common]\n")
	kv(&b, "server_addr", p.Common.ServerAddr)
	kv(&b, "server_port", strconv.Itoa(p.Common.ServerPort))
	kv(&b, "tls_enable", strconv.FormatBool(p.Common.TLSEnable))
	if p.Common.User != "" {
		kv(&b, "user", p.Common.User)
	}
	if p.Common.Token != "" {
		kv(&b, "token", p.Common.Token)
	}
	b.WriteString("\n")

	for _, n := range p.Nodes {
		fmt.Fprintf(&b, "[%s]\n", strings.TrimSpace(n.Name))
		kv(&b, "type", n.Type)
		// frpc falls back to 127.0.0.1 itself.
		if ip := strings.TrimSpace(n.LocalIP); ip != "" {
			kv(&b, "local_ip", ip)
		}
		kv(&b, "local_port", strconv.Itoa(n.LocalPort))
		if n.RemotePort != nil && *n.RemotePort > 0 {
			kv(&b, "remote_port", strconv.Itoa(*n.RemotePort))
		}
		if s := trimmed(n.CustomDomains); s != "" {
			kv(&b, "custom_domains", s)
		}
		if s := trimmed(n.Subdomain); s != "" {
			kv(&b, "subdomain", s)
		}
		if n.UseEncryption != nil {
			kv(&b, "use_encryption", strconv.FormatBool(*n.UseEncryption))
		}
		if n.UseCompression != nil {
			kv(&b, "use_compression", strconv.FormatBool(*n.UseCompression))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func kv(b *strings.Builder, k, v string) {
	b.WriteString(k)
	b.WriteString(" = ")
	b.WriteString(v)
	b.WriteByte('\n')
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// Path returns the rendered config location for a profile id inside dir.
func Path(dir, id string) string {
	return filepath.Join(dir, id+".ini")
}

// WriteFile renders p into dir/<id>.ini and returns the written path.
func WriteFile(dir string, p profile.Profile) (string, error) {
	if !profile.ValidID(p.ID) {
		return "", fmt.Errorf("invalid profile id %q", p.ID)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	path := Path(dir, p.ID)
	if err := writeAtomic(path, []byte(Render(p))); err != nil {
		return "", fmt.Errorf("write config %s: %w", path, err)
	}
	return path, nil
}

// writeAtomic replaces path through a temp file and rename, so a running frpc
// reading the old file never sees it truncated.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	certName = "tls.crt"
	keyName  = "tls.key"
)

// Config enables HTTPS for the control API. Explicit cert_file/key_file win
// over dir; with auto_generate a self-signed pair is created in dir when absent.
type Config struct {
	Enabled      bool     `mapstructure:"enabled"`
	CertFile     string   `mapstructure:"cert_file"`
	KeyFile      string   `mapstructure:"key_file"`
	Dir          string   `mapstructure:"dir"`
	AutoGenerate bool     `mapstructure:"auto_generate"`
	MinVersion   string   `mapstructure:"min_version"`
	Hosts        []string `mapstructure:"hosts"`
	ValidDays    int      `mapstructure:"valid_days"`
}

// Paths returns the certificate and key locations Setup will use.
func (c Config) Paths() (cert, key string) {
	if c.CertFile != "" && c.KeyFile != "" {
		return c.CertFile, c.KeyFile
	}
	if c.Dir != "" {
		return filepath.Join(c.Dir, certName), filepath.Join(c.Dir, keyName)
	}
	return "", ""
}

func parseVersion(v string) (uint16, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "default", "1.2", "tls1.2":
		return tls.VersionTLS12, nil
	case "1.3", "tls1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported tls version %q", v)
	}
}

// Setup builds the server tls.Config, or nil when TLS is disabled.
// Certificates are re-read on every handshake so rotated files take effect
// without a restart.
func Setup(c Config) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	minVer, err := parseVersion(c.MinVersion)
	if err != nil {
		return nil, err
	}
	certPath, keyPath := c.Paths()
	if certPath == "" {
		return nil, errors.New("tls enabled but neither cert_file/key_file nor dir is set")
	}
	if !exists(certPath) || !exists(keyPath) {
		if !c.AutoGenerate {
			return nil, fmt.Errorf("tls certificate %s or key %s missing", certPath, keyPath)
		}
		if err := generate(c, certPath, keyPath); err != nil {
			return nil, fmt.Errorf("generate certificate: %w", err)
		}
	}
	// fail fast on a broken pair instead of on the first handshake
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		MinVersion: minVer,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			cert, err := tls.LoadX509KeyPair(certPath, keyPath)
			return &cert, err
		},
	}, nil
}

func generate(c Config, certPath, keyPath string) error {
	hosts := c.Hosts
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}
	days := c.ValidDays
	if days <= 0 {
		days = 365
	}
	return GenerateSelfSignedCert(CertConfig{
		CommonName:   hosts[0],
		Organization: "frpdeck",
		Hosts:        hosts,
		NotAfter:     time.Now().AddDate(0, 0, days),
		CertPath:     certPath,
		KeyPath:      keyPath,
	})
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/frpdeck/internal/auth"
	"github.com/loykin/frpdeck/internal/logger"
	apitls "github.com/loykin/frpdeck/internal/tls"
)

// Config is the daemon's TOML configuration. Every key may be overridden by
// an FRPDECK_ environment variable, e.g. FRPDECK_SERVER_LISTEN.
type Config struct {
	FrpcPath string   `mapstructure:"frpc_path"`
	WorkDir  string   `mapstructure:"work_dir"`
	Env      []string `mapstructure:"env"`
	EnvFiles []string `mapstructure:"env_files"`
	// profile ids started when the daemon comes up
	Autostart []string `mapstructure:"autostart"`

	Store   StoreConfig   `mapstructure:"store"`
	History HistoryConfig `mapstructure:"history"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     logger.Config `mapstructure:"log"`
	Health  HealthConfig  `mapstructure:"health"`

	// path of the file this configuration was read from, empty for defaults
	source string
}

type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

type HistoryConfig struct {
	Sinks   []string      `mapstructure:"sinks"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
	Engine   string        `mapstructure:"engine"` // gin | echo
	TLS      apitls.Config `mapstructure:"tls"`
	Auth     auth.Config   `mapstructure:"auth"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type HealthConfig struct {
	Schedule string `mapstructure:"schedule"`
	Stats    bool   `mapstructure:"stats"`
}

// DefaultFrpcPath mirrors the desktop panel's default install location.
func DefaultFrpcPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "frpc"
	}
	return filepath.Join(home, ".frpdeck", "frpc")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("frpc_path", DefaultFrpcPath())
	v.SetDefault("work_dir", "")
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("autostart", []string{})
	v.SetDefault("store.dsn", "profiles.json")
	v.SetDefault("history.sinks", []string{})
	v.SetDefault("history.timeout", "5s")
	v.SetDefault("server.listen", "127.0.0.1:7800")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.engine", "gin")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.auto_generate", false)
	v.SetDefault("server.tls.min_version", "1.2")
	v.SetDefault("server.auth.enabled", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:7801")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("health.schedule", "@every 5s")
	v.SetDefault("health.stats", true)
}

// Load reads path (TOML) on top of the defaults. An empty path yields the
// defaults plus environment overrides. Relative paths inside the file resolve
// against the file's directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FRPDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.source = path
	c.resolvePaths()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Source is the file the configuration came from.
func (c *Config) Source() string { return c.source }

func (c *Config) baseDir() string {
	if c.source == "" {
		return ""
	}
	return filepath.Dir(c.source)
}

func (c *Config) resolve(p string) string {
	base := c.baseDir()
	if p == "" || base == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// resolveDSN only rewrites bare or file-scheme paths; network DSNs are left alone.
func (c *Config) resolveDSN(dsn string) string {
	for _, scheme := range []string{"sqlite://", "json://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			if rest == ":memory:" {
				return dsn
			}
			return scheme + c.resolve(rest)
		}
	}
	if strings.Contains(dsn, "://") || dsn == ":memory:" {
		return dsn
	}
	return c.resolve(dsn)
}

func (c *Config) resolvePaths() {
	if strings.ContainsRune(c.FrpcPath, filepath.Separator) {
		c.FrpcPath = c.resolve(c.FrpcPath)
	}
	c.WorkDir = c.resolve(c.WorkDir)
	c.Store.DSN = c.resolveDSN(c.Store.DSN)
	for i, s := range c.History.Sinks {
		c.History.Sinks[i] = c.resolveDSN(s)
	}
	for i, f := range c.EnvFiles {
		c.EnvFiles[i] = c.resolve(f)
	}
	c.Log.File = c.resolve(c.Log.File)
	c.Server.TLS.CertFile = c.resolve(c.Server.TLS.CertFile)
	c.Server.TLS.KeyFile = c.resolve(c.Server.TLS.KeyFile)
	c.Server.TLS.Dir = c.resolve(c.Server.TLS.Dir)
}

// Validate checks values that cannot be fixed with a default.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.FrpcPath) == "" {
		errs = append(errs, errors.New("frpc_path is required"))
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		errs = append(errs, errors.New("store.dsn is required"))
	}
	switch c.Server.Engine {
	case "", "gin", "echo":
	default:
		errs = append(errs, fmt.Errorf("server.engine %q: want gin or echo", c.Server.Engine))
	}
	if t := c.Server.TLS; t.Enabled {
		if t.Dir == "" && (t.CertFile == "" || t.KeyFile == "") {
			errs = append(errs, errors.New("server.tls: set cert_file and key_file, or dir"))
		}
	}
	if _, err := auth.NewService(c.Server.Auth); err != nil {
		errs = append(errs, fmt.Errorf("server.auth: %w", err))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// EffectiveWorkDir is WorkDir, or the directory of FrpcPath when unset.
func (c *Config) EffectiveWorkDir() string {
	if c.WorkDir != "" {
		return c.WorkDir
	}
	return filepath.Dir(c.FrpcPath)
}

// EnvVars merges env_files (in order) and then the env list into one map.
func (c *Config) EnvVars() (map[string]string, error) {
	m := make(map[string]string)
	for _, f := range c.EnvFiles {
		pairs, err := LoadEnvFile(f)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	for _, kv := range c.Env {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.TrimSpace(k) != "" {
			m[strings.TrimSpace(k)] = v
		}
	}
	return m, nil
}

// LoadEnvFile parses KEY=VALUE lines; blank lines and # comments are skipped,
// an optional "export " prefix and surrounding quotes are removed.
func LoadEnvFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		if k != "" {
			m[k] = v
		}
	}
	return m, nil
}

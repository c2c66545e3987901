package profile

import (
	"errors"
	"fmt"
	"strings"
)

// Common holds the connection settings shared by every endpoint of a profile.
type Common struct {
	ServerAddr string `json:"server_addr" mapstructure:"server_addr"`
	ServerPort int    `json:"server_port" mapstructure:"server_port"`
	TLSEnable  bool   `json:"tls_enable" mapstructure:"tls_enable"`
	User       string `json:"user" mapstructure:"user"`
	Token      string `json:"token" mapstructure:"token"`
}

// Endpoint is one local service exposed through the tunnel.
// Pointer fields are optional; nil means "not configured".
type Endpoint struct {
	Name           string  `json:"name" mapstructure:"name"`
	Type           string  `json:"type" mapstructure:"type"`
	LocalIP        string  `json:"local_ip" mapstructure:"local_ip"`
	LocalPort      int     `json:"local_port" mapstructure:"local_port"`
	RemotePort     *int    `json:"remote_port,omitempty" mapstructure:"remote_port"`
	CustomDomains  *string `json:"custom_domains,omitempty" mapstructure:"custom_domains"`
	Subdomain      *string `json:"subdomain,omitempty" mapstructure:"subdomain"`
	UseEncryption  *bool   `json:"use_encryption,omitempty" mapstructure:"use_encryption"`
	UseCompression *bool   `json:"use_compression,omitempty" mapstructure:"use_compression"`
}

// Profile is a named set of tunnel credentials plus its endpoints.
// ID keys process supervision and derived file names.
type Profile struct {
	ID     string     `json:"id" mapstructure:"id"`
	Name   string     `json:"name" mapstructure:"name"`
	Common Common     `json:"common" mapstructure:"common"`
	Nodes  []Endpoint `json:"nodes" mapstructure:"nodes"`
}

// Set is the persisted document: the frpc binary location and all profiles.
type Set struct {
	FrpcPath string    `json:"frpc_path" mapstructure:"frpc_path"`
	Servers  []Profile `json:"servers" mapstructure:"servers"`
}

// Endpoint types understood by frpc.
const (
	TypeTCP   = "tcp"
	TypeUDP   = "udp"
	TypeHTTP  = "http"
	TypeHTTPS = "https"
	TypeSTCP  = "stcp"
	TypeXTCP  = "xtcp"
)

var validTypes = map[string]struct{}{
	TypeTCP: {}, TypeUDP: {}, TypeHTTP: {}, TypeHTTPS: {}, TypeSTCP: {}, TypeXTCP: {},
}

var ErrInvalid = errors.New("invalid profile")

// ValidID reports whether id can be used to derive file names.
// Allowed characters: A-Z a-z 0-9 . _ - and no "..".
func ValidID(id string) bool {
	if id == "" || strings.Contains(id, "..") {
		return false
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

// multiline reports a value that would split into extra INI lines.
func multiline(v string) bool { return strings.ContainsAny(v, "\r\n") }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the profile for values that would produce a broken frpc config.
func (p Profile) Validate() error {
	if !ValidID(p.ID) {
		return invalidf("id %q: allowed [A-Za-z0-9._-] and no '..'", p.ID)
	}
	if strings.TrimSpace(p.Common.ServerAddr) == "" {
		return invalidf("profile %s: server_addr required", p.ID)
	}
	if !validPort(p.Common.ServerPort) {
		return invalidf("profile %s: server_port %d out of range", p.ID, p.Common.ServerPort)
	}
	for key, v := range map[string]string{
		"server_addr": p.Common.ServerAddr,
		"user":        p.Common.User,
		"token":       p.Common.Token,
	} {
		if multiline(v) {
			return invalidf("profile %s: %s must be a single line", p.ID, key)
		}
	}
	seen := make(map[string]struct{}, len(p.Nodes))
	for i, n := range p.Nodes {
		name := strings.TrimSpace(n.Name)
		if name == "" {
			return invalidf("profile %s: node %d requires name", p.ID, i)
		}
		if strings.ContainsAny(name, "[]\r\n") || name == "common" {
			return invalidf("profile %s: node name %q not allowed", p.ID, n.Name)
		}
		if _, dup := seen[name]; dup {
			return invalidf("profile %s: duplicate node name %q", p.ID, name)
		}
		seen[name] = struct{}{}
		if _, ok := validTypes[n.Type]; !ok {
			return invalidf("profile %s: node %s has unknown type %q", p.ID, name, n.Type)
		}
		if !validPort(n.LocalPort) {
			return invalidf("profile %s: node %s local_port %d out of range", p.ID, name, n.LocalPort)
		}
		if n.RemotePort != nil && *n.RemotePort != 0 && !validPort(*n.RemotePort) {
			return invalidf("profile %s: node %s remote_port %d out of range", p.ID, name, *n.RemotePort)
		}
		for key, v := range map[string]*string{
			"local_ip":       &n.LocalIP,
			"custom_domains": n.CustomDomains,
			"subdomain":      n.Subdomain,
		} {
			if v != nil && multiline(*v) {
				return invalidf("profile %s: node %s %s must be a single line", p.ID, name, key)
			}
		}
	}
	return nil
}

// Validate validates every profile and rejects duplicate ids.
func (s Set) Validate() error {
	ids := make(map[string]struct{}, len(s.Servers))
	for _, p := range s.Servers {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := ids[p.ID]; dup {
			return invalidf("duplicate profile id %q", p.ID)
		}
		ids[p.ID] = struct{}{}
	}
	return nil
}

// Find returns the profile with the given id.
func (s Set) Find(id string) (Profile, bool) {
	for _, p := range s.Servers {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}

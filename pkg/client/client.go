package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/loykin/frpdeck/internal/profile"
)

const (
	DefaultBaseURL = "http://127.0.0.1:7800/api"
	DefaultTimeout = 10 * time.Second
)

// Client talks to a running frpdeck daemon.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	token    string
	username string
	password string
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger
	CACert   string // PEM bundle used as the root pool
	Insecure bool   // skip certificate verification

	// Token is sent as a bearer token; otherwise Username/Password use basic auth.
	Token    string
	Username string
	Password string
}

func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
}

// New builds a client. A CA file that cannot be read is an error.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure || cfg.CACert != "" {
		tc, err := clientTLS(cfg)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tc
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  cfg.Logger,
		client:  &http.Client{Timeout: cfg.Timeout, Transport: transport},

		token:    cfg.Token,
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

func clientTLS(cfg Config) (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.Insecure {
		tc.InsecureSkipVerify = true // #nosec G402 explicit operator opt-in
		return tc, nil
	}
	pem, err := os.ReadFile(cfg.CACert)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("no certificates found in CA file")
	}
	tc.RootCAs = pool
	return tc, nil
}

// IsReachable reports whether the daemon answers on its status endpoint.
func (c *Client) IsReachable(ctx context.Context) bool {
	var sts []Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &sts)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
	}
	return err == nil
}

func (c *Client) Start(ctx context.Context, id string) (int, error) {
	return c.start(ctx, id, "")
}

// StartRendered starts id from the config file already on disk.
func (c *Client) StartRendered(ctx context.Context, id string) (int, error) {
	return c.start(ctx, id, "?render=false")
}

func (c *Client) start(ctx context.Context, id, query string) (int, error) {
	var r pidResp
	if err := c.do(ctx, http.MethodPost, "/profiles/"+url.PathEscape(id)+"/start"+query, nil, &r); err != nil {
		return 0, err
	}
	c.logger.Debug("started", "profile", id, "pid", r.PID)
	return r.PID, nil
}

func (c *Client) Stop(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/profiles/"+url.PathEscape(id)+"/stop", nil, nil)
}

func (c *Client) Status(ctx context.Context, id string) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(id)+"/status", nil, &st)
	return st, err
}

// StatusAll lists every tracked or stored profile.
func (c *Client) StatusAll(ctx context.Context) ([]Status, error) {
	var sts []Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &sts)
	return sts, err
}

func (c *Client) Logs(ctx context.Context, id string) (string, error) {
	return c.text(ctx, "/profiles/"+url.PathEscape(id)+"/logs")
}

func (c *Client) Profiles(ctx context.Context) (profile.Set, error) {
	var set profile.Set
	err := c.do(ctx, http.MethodGet, "/profiles", nil, &set)
	return set, err
}

func (c *Client) Profile(ctx context.Context, id string) (profile.Profile, error) {
	var p profile.Profile
	err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(id), nil, &p)
	return p, err
}

// SaveProfiles replaces the whole stored set.
func (c *Client) SaveProfiles(ctx context.Context, set profile.Set) error {
	return c.do(ctx, http.MethodPut, "/profiles", set, nil)
}

// Render returns the frpc configuration text for id without writing it.
func (c *Client) Render(ctx context.Context, id string) (string, error) {
	return c.text(ctx, "/profiles/"+url.PathEscape(id)+"/render")
}

// WriteConfig renders id on the daemon host and returns the file path.
func (c *Client) WriteConfig(ctx context.Context, id string) (string, error) {
	var r pathResp
	err := c.do(ctx, http.MethodPost, "/profiles/"+url.PathEscape(id)+"/render", nil, &r)
	return r.Path, err
}

func (c *Client) text(ctx context.Context, path string) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := c.checkResponse(resp); err != nil {
		return "", err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = b
	}
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := c.checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func (c *Client) checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Message = er.Error
	}
	c.logger.Debug("api error", "status", resp.StatusCode, "error", apiErr.Message)
	return apiErr
}

package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 4 << 10

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// Paths locates the auth endpoints relative to the base URL.
type Paths struct {
	Login    string
	Refresh  string
	Register string
}

// Config configures a [Client].
type Config struct {
	BaseURL    string
	APIVersion string
	Paths      Paths
	HTTPClient *http.Client
}

// Client calls the auth service's unauthenticated endpoints.
type Client struct {
	base       *url.URL
	apiVersion string
	paths      Paths
	http       *http.Client
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("authapi: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("authapi: base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Paths.Login == "" || cfg.Paths.Refresh == "" || cfg.Paths.Register == "" {
		return nil, errors.New("authapi: login, refresh and register paths are required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: base, apiVersion: cfg.APIVersion, paths: cfg.Paths, http: hc}, nil
}

// Login exchanges a username and password for a login payload.
func (c *Client) Login(ctx context.Context, creds Credentials) (Login, error) {
	var out Login
	err := c.post(ctx, "login", c.paths.Login, creds, &out, http.StatusOK)
	return out, err
}

// Refresh exchanges a refresh token for a rotated login payload.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Login, error) {
	var out Login
	err := c.post(ctx, "refresh", c.paths.Refresh, refreshRequest{RefreshToken: refreshToken}, &out, http.StatusOK)
	return out, err
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, in SignUp) (User, error) {
	var out User
	err := c.post(ctx, "register", c.paths.Register, in, &out, http.StatusCreated, http.StatusOK)
	return out, err
}

// URL resolves path, which may carry an escaped query, against the base URL.
func (c *Client) URL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		ref = &url.URL{Path: path}
	}
	return c.base.ResolveReference(ref).String()
}

// IsAuthPath reports whether path is one of the auth exchanges.
func (c *Client) IsAuthPath(path string) bool {
	switch path {
	case c.resolvedPath(c.paths.Login), c.resolvedPath(c.paths.Refresh), c.resolvedPath(c.paths.Register):
		return true
	}
	return false
}

func (c *Client) resolvedPath(p string) string {
	return c.base.ResolveReference(&url.URL{Path: p}).Path
}

func (c *Client) post(ctx context.Context, op, path string, in, out any, accept ...int) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiVersion != "" {
		req.Header.Set("X-API-Version", c.apiVersion)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	for _, status := range accept {
		if resp.StatusCode == status {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("%s: decode response: %w", op, err)
			}
			return nil
		}
	}
	return ReadStatusError(op, resp)
}

// ReadStatusError builds a [StatusError] from resp, reading the server's
// message from a JSON error body when present.
func ReadStatusError(op string, resp *http.Response) *StatusError {
	se := &StatusError{Op: op, Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body ErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		se.Message = body.Message
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	if se.Message == "" {
		se.Message = http.StatusText(resp.StatusCode)
	}
	return se
}

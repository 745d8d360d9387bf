// Package backend is the client for the account API: login, profile and
// SOS contacts. Authenticated calls carry the saved bearer token; the
// refresh token lives in a cookie jar.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teslashibe/go-wayfinder/internal/httpc"
)

// DefaultTimeout matches the mobile client.
const DefaultTimeout = 15 * time.Second

// TokenStore persists the bearer token.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
}

// Client talks to the account API.
type Client struct {
	baseURL string
	tokens  TokenStore
	anon    *http.Client
	authed  *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	logger  *slog.Logger
	base    http.RoundTripper
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// WithTransport replaces the underlying transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.base = rt
	}
}

// New creates a client for baseURL. tokens may be nil, in which case the
// token is kept in memory only.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	o := clientOptions{timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.base == nil {
		o.base = httpc.NewTransport()
	}
	if tokens == nil {
		tokens = &memoryTokens{}
	}

	jar, _ := cookiejar.New(nil)
	logger := o.logger.With("component", "backend")

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		anon: &http.Client{
			Timeout:   o.timeout,
			Transport: o.base,
			Jar:       jar,
		},
		authed: &http.Client{
			Timeout: o.timeout,
			Transport: &oauth2.Transport{
				Source: &storeTokenSource{tokens: tokens},
				Base:   o.base,
			},
			Jar: jar,
		},
		logger: logger,
	}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticated reports whether a token is saved.
func (c *Client) Authenticated(ctx context.Context) bool {
	tok, err := c.tokens.Token(ctx)
	return err == nil && tok != ""
}

// storeTokenSource adapts a TokenStore to oauth2.TokenSource.
type storeTokenSource struct {
	tokens TokenStore
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if tok == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

type memoryTokens struct {
	tok string
}

func (m *memoryTokens) Token(ctx context.Context) (string, error) { return m.tok, nil }

func (m *memoryTokens) SaveToken(ctx context.Context, token string) error {
	m.tok = token
	return nil
}

// envelope is the common {ok, error} response wrapper.
type envelope struct {
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
}

// do sends body as JSON and decodes the response into out. A 2xx reply
// with ok=false becomes ErrRejected.
func (c *Client) do(ctx context.Context, authed bool, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	hc := c.anon
	if authed {
		hc = c.authed
	}

	resp, err := httpc.Do(hc, req)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return ErrNotAuthenticated
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	raw := resp.Body

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if !resp.OK() {
		msg := env.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		c.logger.Debug("request failed", "path", path, "status", resp.StatusCode, "error", msg)
		return &APIError{StatusCode: resp.StatusCode, Message: msg, Path: path}
	}
	if env.OK != nil && !*env.OK {
		if env.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, env.Error)
		}
		return ErrRejected
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

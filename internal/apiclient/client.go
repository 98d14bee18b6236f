// Package apiclient talks to the portfolio HTTP API. A Client is both the
// identity provider the session gate consumes and the document store the
// inbox adapter consumes.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/broadcast"
	"portfolio-backend/pkg/logger"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMinBackoff  = time.Second
	defaultMaxBackoff  = 30 * time.Second
	federatedTimeout   = 5 * time.Minute
	callbackPath       = "/callback"
	authorizationField = "Authorization"
)

// APIError is a non-2xx response decoded from the JSON envelope.
type APIError struct {
	Status    int
	Message   string
	Kind      string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("api %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind string `json:"kind"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

type Client struct {
	base       *url.URL
	http       *http.Client
	stream     *http.Client
	tokenFile  string
	openURL    func(string) error
	minBackoff time.Duration
	maxBackoff time.Duration

	mu       sync.Mutex
	token    string
	restored bool

	sessions *broadcast.Broadcaster[*domain.Session]
}

type Option func(*Client)

// WithHTTPClient replaces the client used for plain requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTokenFile persists the session token across runs.
func WithTokenFile(path string) Option {
	return func(c *Client) { c.tokenFile = path }
}

// WithBrowser sets how the federated consent URL is opened.
func WithBrowser(open func(string) error) Option {
	return func(c *Client) { c.openURL = open }
}

// WithReconnectBackoff bounds the delay between live query reconnects.
func WithReconnectBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https, got %q", baseURL)
	}
	c := &Client{
		base:       u,
		http:       &http.Client{Timeout: defaultTimeout},
		stream:     &http.Client{},
		openURL:    openInBrowser,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
		sessions:   broadcast.New[*domain.Session](),
	}
	for _, o := range opts {
		o(c)
	}
	if c.tokenFile != "" {
		if b, err := os.ReadFile(c.tokenFile); err == nil {
			c.token = strings.TrimSpace(string(b))
		}
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/v1" + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// setToken stores token and publishes s, which is nil when signed out.
func (c *Client) setToken(token string, s *domain.Session) {
	c.mu.Lock()
	c.token = token
	c.restored = true
	path := c.tokenFile
	c.mu.Unlock()

	if path != "" {
		var err error
		if token == "" {
			err = os.Remove(path)
			if errors.Is(err, os.ErrNotExist) {
				err = nil
			}
		} else {
			err = os.WriteFile(path, []byte(token+"\n"), 0o600)
		}
		if err != nil {
			logger.Log.Warn("Failed to persist session token", "path", path, "error", err)
		}
	}
	c.sessions.Publish(s)
}

// expire drops a token the server rejected. Only the token that failed is
// dropped, so a concurrent fresh sign-in survives.
func (c *Client) expire(token string) {
	c.mu.Lock()
	stale := token != "" && c.token == token
	c.mu.Unlock()
	if stale {
		logger.Log.Info("Session rejected by server, signing out locally")
		c.setToken("", nil)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}, token string) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(authorizationField, "Bearer "+token)
	}
	return req, nil
}

// do sends a request and decodes the envelope's data into out. With authed
// set, the current token is attached and a 401 signs the client out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, authed bool) error {
	token := ""
	if authed {
		token = c.currentToken()
		if token == "" {
			return domain.ErrNotAuthenticated
		}
	}
	req, err := c.newRequest(ctx, method, path, query, body, token)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := decode(resp, out); err != nil {
		var apiErr *APIError
		if authed && errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.expire(token)
			return fmt.Errorf("%w: %w", domain.ErrNotAuthenticated, err)
		}
		return err
	}
	return nil
}

func decode(resp *http.Response, out interface{}) error {
	var env envelope
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if jerr := json.Unmarshal(raw, &env); jerr != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", jerr)
	}
	if resp.StatusCode >= 300 || !env.Success {
		e := &APIError{Status: resp.StatusCode, Message: env.Message, RequestID: env.RequestID}
		if env.Error != nil {
			e.Kind = env.Error.Kind
		}
		return e
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

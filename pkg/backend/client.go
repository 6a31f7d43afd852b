package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout               = 10 * time.Second
	defaultCommentCacheTTL       = 30 * time.Second
	errorBodyReadLimit     int64 = 4096

	// CSRFCookieName and CSRFHeader follow the backend's Django defaults.
	CSRFCookieName = "csrftoken"
	CSRFHeader     = "X-CSRFToken"
)

var errBaseURLRequired = errors.New("backend base url is required")

// Client talks to the storefront REST backend on behalf of one browser
// session. It owns the cookie jar carrying the backend session and the CSRF
// token, so it must not be shared between sessions.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	metrics    *metrics.BackendMetrics
	now        func() time.Time
	commentTTL time.Duration

	csrfGroup singleflight.Group
	csrfMu    sync.RWMutex
	csrfToken string
	csrfReady bool

	commentsMu sync.Mutex
	comments   map[string]cachedComments
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. A private cookie jar is
// attached when the supplied client has none.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			clone := *client
			c.httpClient = &clone
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithMetrics(m *metrics.BackendMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithClock injects the time source used by the comment cache.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCommentCacheTTL sets how long a product's comment list is reused.
func WithCommentCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.commentTTL = ttl
	}
}

// NewClient builds a backend client rooted at baseURL (for example
// http://localhost:8000/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing backend base url: %w", err)
	}

	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
		commentTTL: defaultCommentCacheTTL,
		comments:   make(map[string]cachedComments),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		client.httpClient.Jar = jar
	}
	return client, nil
}

// EnsureCSRF performs the CSRF handshake once per session. Concurrent callers
// share the single in-flight handshake.
func (c *Client) EnsureCSRF(ctx context.Context) (string, error) {
	c.csrfMu.RLock()
	if c.csrfReady {
		token := c.csrfToken
		c.csrfMu.RUnlock()
		return token, nil
	}
	c.csrfMu.RUnlock()

	v, err, _ := c.csrfGroup.Do("csrf", func() (any, error) {
		c.csrfMu.RLock()
		if c.csrfReady {
			token := c.csrfToken
			c.csrfMu.RUnlock()
			return token, nil
		}
		c.csrfMu.RUnlock()

		token, err := c.fetchCSRF(ctx)
		if err != nil {
			return "", err
		}
		c.csrfMu.Lock()
		c.csrfToken = token
		c.csrfReady = true
		c.csrfMu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ResetCSRF forgets the cached token. The backend rotates it on login and logout.
func (c *Client) ResetCSRF() {
	c.csrfMu.Lock()
	c.csrfToken = ""
	c.csrfReady = false
	c.csrfMu.Unlock()
}

func (c *Client) fetchCSRF(ctx context.Context) (string, error) {
	c.metrics.IncCSRFHandshake()
	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := c.send(ctx, http.MethodGet, "csrf", "csrf/", nil, nil, "", &body); err != nil {
		return "", err
	}
	if token := strings.TrimSpace(body.CSRFToken); token != "" {
		return token, nil
	}
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == CSRFCookieName {
			return cookie.Value, nil
		}
	}
	return "", nil
}

// doJSON sends an optional JSON payload and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, resource, path string, query url.Values, payload, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+resource+" request")
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.send(ctx, method, resource, path, query, body, contentType, out)
}

func (c *Client) send(ctx context.Context, method, resource, path string, query url.Values, body io.Reader, contentType string, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}

	var csrfToken string
	if isMutating(method) {
		token, err := c.EnsureCSRF(ctx)
		if err != nil {
			return err
		}
		csrfToken = token
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path, query), body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+resource+" request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if csrfToken != "" {
		httpReq.Header.Set(CSRFHeader, csrfToken)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.Observe(resource, method, 0, time.Since(started))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, resource+" request failed")
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.Observe(resource, method, resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		apiErr := &APIError{
			Method:  method,
			Path:    httpReq.URL.Path,
			Status:  resp.StatusCode,
			Message: extractDetail(raw, resp.Status),
		}
		return pkgerrors.Wrap(codeForStatus(resp.StatusCode), apiErr, apiErr.Message)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+resource+" response")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+resource+" response")
	}
	return nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func resourcePath(resource, id string, suffix ...string) string {
	parts := []string{resource}
	if id != "" {
		parts = append(parts, url.PathEscape(id))
	}
	parts = append(parts, suffix...)
	return strings.Join(parts, "/") + "/"
}

// Package httpclient provides the chainable request builder handed to scripts.
// Building a request performs no I/O; only the verb methods (Get, Post, ...)
// touch the network.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"time"
)

const maxResponseBytes = 10 << 20

// Options are shared by every ScopedClient a robot creates.
type Options struct {
	Client     *http.Client
	MaxRetries int
	UserAgent  string
	Logger     *slog.Logger
}

// ScopedClient is an immutable request description bound to one URL.
// Every chain method returns a modified copy.
type ScopedClient struct {
	opts    Options
	base    *url.URL
	err     error
	headers http.Header
	query   url.Values
	timeout time.Duration

	user     string
	password string
	hasAuth  bool
}

// Result is a fully read HTTP response.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the body into v.
func (r *Result) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// New binds a client to rawURL. A malformed URL is reported by the first verb call.
func New(rawURL string, opts Options) *ScopedClient {
	if opts.Client == nil {
		opts.Client = Shared(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &ScopedClient{
		opts:    opts,
		headers: make(http.Header),
		query:   make(url.Values),
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		c.err = fmt.Errorf("parse url %q: %w", rawURL, err)
		return c
	}
	c.base = u
	for k, vs := range u.Query() {
		c.query[k] = append([]string(nil), vs...)
	}
	return c
}

func (c *ScopedClient) clone() *ScopedClient {
	cp := *c
	cp.headers = c.headers.Clone()
	cp.query = make(url.Values, len(c.query))
	for k, vs := range c.query {
		cp.query[k] = append([]string(nil), vs...)
	}
	if c.base != nil {
		u := *c.base
		cp.base = &u
	}
	return &cp
}

// Header sets a request header.
func (c *ScopedClient) Header(key, value string) *ScopedClient {
	cp := c.clone()
	cp.headers.Set(key, value)
	return cp
}

// Headers sets several request headers at once.
func (c *ScopedClient) Headers(h map[string]string) *ScopedClient {
	cp := c.clone()
	for k, v := range h {
		cp.headers.Set(k, v)
	}
	return cp
}

// Query adds a query-string parameter.
func (c *ScopedClient) Query(key, value string) *ScopedClient {
	cp := c.clone()
	cp.query.Add(key, value)
	return cp
}

// Path appends path segments to the bound URL.
func (c *ScopedClient) Path(elem ...string) *ScopedClient {
	cp := c.clone()
	if cp.err != nil || cp.base == nil {
		return cp
	}
	cp.base = cp.base.JoinPath(elem...)
	return cp
}

// Auth sets HTTP basic credentials.
func (c *ScopedClient) Auth(user, password string) *ScopedClient {
	cp := c.clone()
	cp.user, cp.password, cp.hasAuth = user, password, true
	return cp
}

// Timeout bounds a single verb call, retries included.
func (c *ScopedClient) Timeout(d time.Duration) *ScopedClient {
	cp := c.clone()
	cp.timeout = d
	return cp
}

// URL returns the URL the request would be sent to.
func (c *ScopedClient) URL() string {
	if c.base == nil {
		return ""
	}
	u := *c.base
	u.RawQuery = c.query.Encode()
	return u.String()
}

func (c *ScopedClient) Get(ctx context.Context) (*Result, error) {
	return c.do(ctx, http.MethodGet, nil)
}

func (c *ScopedClient) Head(ctx context.Context) (*Result, error) {
	return c.do(ctx, http.MethodHead, nil)
}

func (c *ScopedClient) Delete(ctx context.Context) (*Result, error) {
	return c.do(ctx, http.MethodDelete, nil)
}

func (c *ScopedClient) Post(ctx context.Context, body []byte) (*Result, error) {
	return c.do(ctx, http.MethodPost, body)
}

func (c *ScopedClient) Put(ctx context.Context, body []byte) (*Result, error) {
	return c.do(ctx, http.MethodPut, body)
}

func (c *ScopedClient) Patch(ctx context.Context, body []byte) (*Result, error) {
	return c.do(ctx, http.MethodPatch, body)
}

func (c *ScopedClient) do(ctx context.Context, method string, body []byte) (*Result, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.URL()
	buildReq := func() (*http.Request, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, r)
		if err != nil {
			return nil, err
		}
		maps.Copy(req.Header, c.headers.Clone())
		if c.opts.UserAgent != "" && req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.opts.UserAgent)
		}
		if c.hasAuth {
			req.SetBasicAuth(c.user, c.password)
		}
		return req, nil
	}

	retries := c.opts.MaxRetries
	if !retryable(method) {
		retries = 0
	}
	resp, err := doWithRetry(ctx, c.opts.Client, retries, buildReq, c.opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Package api is the client adapter for the DevTrack HTTP backend. Every
// operation is a single round trip; the bearer credential is attached by
// the transport from a TokenSource.
package api

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
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// Client talks to one backend base URL.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	validate *validator.Validate
	logger   *zap.Logger
}

type options struct {
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
	timeout    time.Duration
	caFile     string
	validate   *validator.Validate
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient uses hc's transport and timeout as the base of the chain.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTokenSource sets where the bearer credential comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(o *options) { o.tokens = ts }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout bounds every request. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithCAFile trusts the CA certificates in the given PEM file.
func WithCAFile(path string) Option {
	return func(o *options) { o.caFile = path }
}

func WithValidator(v *validator.Validate) Option {
	return func(o *options) { o.validate = v }
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.validate == nil {
		o.validate = NewValidator()
	}

	var base http.RoundTripper
	hc := &http.Client{Timeout: o.timeout}
	if o.httpClient != nil {
		cp := *o.httpClient
		hc = &cp
		base = cp.Transport
		if hc.Timeout == 0 {
			hc.Timeout = o.timeout
		}
	}
	if o.caFile != "" {
		if base, err = transportWithCA(o.caFile); err != nil {
			return nil, err
		}
	}
	hc.Transport = chain(base, o.tokens, o.logger)

	return &Client{
		baseURL:  u,
		http:     hc,
		validate: o.validate,
		logger:   o.logger,
	}, nil
}

// BaseURL returns the backend address the client was built for.
func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs one round trip. A nil out discards the response body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{Op: op, Status: resp.StatusCode, Detail: parseDetail(data)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &Error{Op: op, Status: resp.StatusCode, Err: io.ErrUnexpectedEOF}
		}
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenSource supplies the bearer credential for each request. An empty
// token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

const headerRequestID = "X-Request-ID"

// requestIDTransport stamps every outgoing request with a fresh id unless
// the caller already set one.
type requestIDTransport struct {
	next http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(headerRequestID) != "" {
		return t.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set(headerRequestID, uuid.NewString())
	return t.next.RoundTrip(req)
}

// bearerTransport reads the token on every request, so a login or logout is
// visible to the very next call.
type bearerTransport struct {
	tokens TokenSource
	next   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	token := ""
	if t.tokens != nil {
		token = t.tokens.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Del("Authorization")
	}
	return t.next.RoundTrip(req)
}

type loggingTransport struct {
	logger *zap.Logger
	next   http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", req.Header.Get(headerRequestID)),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		t.logger.Warn("request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	t.logger.Debug("request", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

func chain(base http.RoundTripper, tokens TokenSource, logger *zap.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &requestIDTransport{
		next: &bearerTransport{
			tokens: tokens,
			next:   &loggingTransport{logger: logger, next: base},
		},
	}
}

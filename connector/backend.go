package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// RawResponse is one HTTP exchange as received, before decoding.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Backend performs a single HTTP attempt.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Execute must abort when ctx ends.
// - Errors: a nil error means a response was received, whatever its status.
//   Failures to obtain a response should be *TransportError values.
type Backend interface {
	Execute(ctx context.Context, method, path string, query url.Values, body []byte) (*RawResponse, error)
}

// TransportError is a failure to obtain a response.
type TransportError struct {
	// RequestSent reports whether the request was fully written before the
	// failure. When false the backend cannot have acted on it.
	RequestSent bool
	Err         error
}

func (e *TransportError) Error() string {
	if e.RequestSent {
		return "transport error after request was sent: " + e.Err.Error()
	}
	return "transport error before request was sent: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// unsent reports whether err proves the request never reached the backend.
func unsent(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return !te.RequestSent
	}
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

// HTTPConfig configures an HTTPBackend.
type HTTPConfig struct {
	// BaseURL is the ERP root, with or without the /api/index.php suffix.
	BaseURL string

	// APIKey is sent in the DOLAPIKEY header.
	APIKey string

	// UserAgent defaults to "erpgate".
	UserAgent string

	// Client defaults to an http.Client with a 30 second timeout.
	Client *http.Client
}

const apiRoot = "/api/index.php"

// HTTPBackend talks to a Dolibarr-style REST API.
type HTTPBackend struct {
	base      *url.URL
	apiKey    string
	userAgent string
	client    *http.Client
}

// NewHTTPBackend validates cfg and returns a backend.
func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("connector: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("connector: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("connector: base URL scheme %q is not http(s)", base.Scheme)
	}
	if !strings.HasSuffix(base.Path, apiRoot) {
		base.Path = strings.TrimSuffix(base.Path, "/api") + apiRoot
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "erpgate"
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPBackend{
		base:      base,
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		client:    cfg.Client,
	}, nil
}

// URL returns the absolute URL for an API path.
func (b *HTTPBackend) URL(path string, query url.Values) string {
	u := *b.base
	u.Path = b.base.Path + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

func (b *HTTPBackend) Execute(ctx context.Context, method, path string, query url.Values, body []byte) (*RawResponse, error) {
	var sent atomic.Bool
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				sent.Store(true)
			}
		},
	})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.URL(path, query), reader)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("DOLAPIKEY", b.apiKey)
	req.Header.Set("Accept", "application/json")
	// Set explicitly so net/http leaves the body compressed and the
	// connector owns decompression.
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", b.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &TransportError{RequestSent: sent.Load(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{RequestSent: true, Err: err}
	}
	return &RawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

var _ Backend = (*HTTPBackend)(nil)

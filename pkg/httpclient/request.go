package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrEmptyURL is returned by Build when no URL was set.
var ErrEmptyURL = errors.New("httpclient: request url is required")

// Request is an immutable outbound request description produced by RequestBuilder.
type Request struct {
	Method  string
	URL     string
	Header  map[string]string
	Query   map[string]string
	Body    []byte
	Timeout time.Duration
}

// HTTPRequest materialises r as an *http.Request bound to ctx. When r carries a
// timeout the returned cancel func must be called once the response is consumed.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if r.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("parse url %q: %w", r.URL, err)
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, v := range r.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("build http request: %w", err)
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	return req, cancel, nil
}

// RequestBuilder assembles a Request step by step. The zero value is not
// usable; call NewRequestBuilder.
type RequestBuilder struct {
	method  string
	url     string
	header  map[string]string
	query   map[string]string
	body    []byte
	timeout time.Duration
	err     error
}

// NewRequestBuilder returns a builder defaulting to GET with no timeout.
func NewRequestBuilder() *RequestBuilder {
	b := &RequestBuilder{}
	return b.Reset()
}

// Reset restores the builder defaults.
func (b *RequestBuilder) Reset() *RequestBuilder {
	*b = RequestBuilder{
		method: http.MethodGet,
		header: make(map[string]string),
		query:  make(map[string]string),
	}
	return b
}

func (b *RequestBuilder) Method(m string) *RequestBuilder {
	b.method = strings.ToUpper(m)
	return b
}

func (b *RequestBuilder) URL(u string) *RequestBuilder {
	b.url = u
	return b
}

// Header sets a header. Names are stored lower-cased so repeated sets with
// different casing overwrite each other.
func (b *RequestBuilder) Header(name, value string) *RequestBuilder {
	b.header[strings.ToLower(name)] = value
	return b
}

func (b *RequestBuilder) Query(name, value string) *RequestBuilder {
	b.query[name] = value
	return b
}

// JSONBody encodes v as the request body and sets the content type.
func (b *RequestBuilder) JSONBody(v any) *RequestBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("encode request body: %w", err)
		return b
	}
	b.body = data
	return b.Header("Content-Type", "application/json")
}

// Timeout bounds the whole request. Zero disables the bound; negative values
// are rejected at Build.
func (b *RequestBuilder) Timeout(d time.Duration) *RequestBuilder {
	if d < 0 {
		b.err = fmt.Errorf("httpclient: timeout must be >= 0, got %s", d)
		return b
	}
	b.timeout = d
	return b
}

// Build returns an immutable snapshot of the builder state.
func (b *RequestBuilder) Build() (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.url == "" {
		return nil, ErrEmptyURL
	}
	var body []byte
	if b.body != nil {
		body = bytes.Clone(b.body)
	}
	return &Request{
		Method:  b.method,
		URL:     b.url,
		Header:  maps.Clone(b.header),
		Query:   maps.Clone(b.query),
		Body:    body,
		Timeout: b.timeout,
	}, nil
}

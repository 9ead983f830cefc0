package request

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
)

// ErrTooLarge is wrapped in the *Error returned for a body over MaxBytes.
var ErrTooLarge = errors.New("response exceeds max bytes")

// Config configures the HTTP transport.
type Config struct {
	// BaseURL resolves relative paths ("/about" → BaseURL + "/about").
	BaseURL      string
	Timeout      time.Duration // Default: 30s.
	MaxBytes     int64         // Max response body size. Default: 10MB.
	UserAgent    string        // Default: "reflinks/1.0".
	MaxRedirects int           // Default: 10.
	// Client overrides the http.Client built from the settings above.
	Client *http.Client
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "reflinks/1.0"
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 10
	}
}

// HTTP sends requests with net/http.
type HTTP struct {
	client *http.Client
	base   *url.URL
	config Config
}

// NewHTTP builds an HTTP transport. It fails when BaseURL does not parse.
func NewHTTP(cfg Config) (*HTTP, error) {
	cfg.defaults()
	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("request: base url: %w", err)
		}
		base = u
	}
	client := cfg.Client
	if client == nil {
		maxRedirects := cfg.MaxRedirects
		client = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		}
	}
	return &HTTP{client: client, base: base, config: cfg}, nil
}

// Resolve turns path into an absolute URL against the base URL.
func (t *HTTP) Resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path: %w", err)
	}
	if t.base == nil {
		if !ref.IsAbs() {
			return "", fmt.Errorf("relative path %q without base url", path)
		}
		return ref.String(), nil
	}
	return t.base.ResolveReference(ref).String(), nil
}

// Send performs one request. Non-2xx statuses return the response wrapped in
// an *Error.
func (t *HTTP) Send(ctx context.Context, method, path string, opts *Options) (*Response, error) {
	method = strings.ToUpper(method)
	fail := func(resp *Response, err error) (*Response, error) {
		return resp, &Error{Method: method, Path: path, Response: resp, Err: err}
	}

	target, err := t.Resolve(path)
	if err != nil {
		return fail(nil, err)
	}

	body, contentType, err := encodeBody(opts)
	if err != nil {
		return fail(nil, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fail(nil, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", t.config.UserAgent)
	req.Header.Set(HeaderReflinks, "true")
	req.Header.Set(HeaderRequestedWith, "XMLHttpRequest")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if opts != nil {
		for k, vs := range opts.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	httpResp, err := t.client.Do(req)
	if err != nil {
		return fail(nil, fmt.Errorf("http %s: %w", strings.ToLower(method), err))
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, t.config.MaxBytes+1))
	if err != nil {
		return fail(nil, fmt.Errorf("read body: %w", err))
	}
	if int64(len(raw)) > t.config.MaxBytes {
		return fail(nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, t.config.MaxBytes))
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       raw,
		FinalURL:   httpResp.Request.URL.String(),
	}
	resp.Data = decodeData(resp)

	if !resp.OK() {
		return fail(resp, nil)
	}
	return resp, nil
}

func encodeBody(opts *Options) (io.Reader, string, error) {
	if opts == nil || opts.Data == nil {
		return nil, "", nil
	}
	if r, ok := opts.Data.(io.Reader); ok {
		return r, "", nil
	}
	data, err := json.Marshal(opts.Data)
	if err != nil {
		return nil, "", fmt.Errorf("encode json body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

// decodeData parses JSON bodies and falls back to the raw text. A JSON body
// that fails to decode is kept as text.
func decodeData(resp *Response) any {
	if strings.Contains(resp.ContentType(), "json") {
		var v any
		if err := json.Unmarshal(resp.Body, &v); err == nil {
			return v
		}
	}
	return string(resp.Body)
}

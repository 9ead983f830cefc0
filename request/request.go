// Package request is the transport collaborator of the transition engine:
// one call sends one request and returns status, headers and body.
//
// Every request is marked with the X-Reflinks header so server code can tell
// engine navigations apart from full page loads (see package server).
package request

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Headers set on every outgoing request.
const (
	HeaderReflinks      = "X-Reflinks"
	HeaderRequestedWith = "X-Requested-With"
)

// Transport performs one request. A non-nil error is always an *Error.
type Transport interface {
	Send(ctx context.Context, method, path string, opts *Options) (*Response, error)
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, method, path string, opts *Options) (*Response, error)

// Send calls f.
func (f Func) Send(ctx context.Context, method, path string, opts *Options) (*Response, error) {
	return f(ctx, method, path, opts)
}

// Options are per-request settings.
type Options struct {
	// Data is the request body. io.Reader values are streamed as-is, other
	// non-nil values are JSON-encoded.
	Data   any
	Header http.Header
}

// Response is the outcome of a request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Data is the decoded body: the JSON value when the content type
	// mentions json, the body as a string otherwise.
	Data     any
	FinalURL string
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// ContentType returns the Content-Type header, lower-cased.
func (r *Response) ContentType() string {
	if r.Header == nil {
		return ""
	}
	return strings.ToLower(r.Header.Get("Content-Type"))
}

// Error is returned for a non-2xx status (Response set) or a transport-level
// failure (Err set, Response possibly nil).
type Error struct {
	Method   string
	Path     string
	Response *Response
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request: %s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("request: %s %s: http %d", e.Method, e.Path, e.StatusCode())
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the response status, or 0 when no response was received.
func (e *Error) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

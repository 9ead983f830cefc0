// Package requesttest provides an in-memory request.Transport for tests: it
// answers from canned responses and records every call.
package requesttest

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/hazyhaar/reflinks/request"
)

// Call is one recorded Send.
type Call struct {
	Method string
	Path   string
	Opts   *request.Options
}

// Transport answers each path with a canned status and body. Unknown paths
// get 404.
type Transport struct {
	mu    sync.Mutex
	pages map[string]page
	calls []Call
	// Err, when set, fails every call at the transport level.
	Err error
}

type page struct {
	status int
	header http.Header
	body   string
}

// New creates an empty fake transport.
func New() *Transport {
	return &Transport{pages: make(map[string]page)}
}

// Respond registers the response for path.
func (t *Transport) Respond(path string, status int, body string) *Transport {
	return t.RespondWithHeader(path, status, http.Header{"Content-Type": {"text/html; charset=utf-8"}}, body)
}

// RespondWithHeader registers the response for path with explicit headers.
func (t *Transport) RespondWithHeader(path string, status int, header http.Header, body string) *Transport {
	t.mu.Lock()
	t.pages[path] = page{status: status, header: header, body: body}
	t.mu.Unlock()
	return t
}

// Send implements request.Transport.
func (t *Transport) Send(ctx context.Context, method, path string, opts *request.Options) (*request.Response, error) {
	t.mu.Lock()
	t.calls = append(t.calls, Call{Method: strings.ToUpper(method), Path: path, Opts: opts})
	p, ok := t.pages[path]
	failure := t.Err
	t.mu.Unlock()

	if failure != nil {
		return nil, &request.Error{Method: method, Path: path, Err: failure}
	}
	if err := ctx.Err(); err != nil {
		return nil, &request.Error{Method: method, Path: path, Err: err}
	}
	if !ok {
		p = page{status: http.StatusNotFound, body: "not found"}
	}
	resp := &request.Response{
		StatusCode: p.status,
		Header:     p.header,
		Body:       []byte(p.body),
		Data:       p.body,
		FinalURL:   path,
	}
	if !resp.OK() {
		return resp, &request.Error{Method: method, Path: path, Response: resp}
	}
	return resp, nil
}

// Calls returns a copy of the recorded calls.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

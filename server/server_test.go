package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/hazyhaar/reflinks/idgen"
	"github.com/hazyhaar/reflinks/request"
)

func TestDetect(t *testing.T) {
	var seen []bool
	h := Detect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, IsVisit(r.Context()))
	}))

	plain := httptest.NewRecorder()
	h.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/", nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(request.HeaderReflinks, "true")
	visit := httptest.NewRecorder()
	h.ServeHTTP(visit, req)

	if len(seen) != 2 || seen[0] || !seen[1] {
		t.Errorf("IsVisit: %v", seen)
	}
	if got := visit.Header().Get("Vary"); got != request.HeaderReflinks {
		t.Errorf("Vary: %q", got)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLogger(logger, idgen.Sequence("req_"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Logger(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Header().Get("X-Request-ID") != "req_1" {
		t.Errorf("request id: %q", rec.Header().Get("X-Request-ID"))
	}
	out := buf.String()
	if !strings.Contains(out, `"msg":"inside"`) || !strings.Contains(out, `"request_id":"req_1"`) {
		t.Errorf("handler log line missing request id:\n%s", out)
	}
	if !strings.Contains(out, `"status":418`) {
		t.Errorf("status not logged:\n%s", out)
	}
}

func TestPageFile(t *testing.T) {
	cases := map[string]string{
		"/":              "index.html",
		"":               "index.html",
		"/about":         "about.html",
		"/about.html":    "about.html",
		"/docs/":         "docs/index.html",
		"/docs/intro":    "docs/intro.html",
		"/../etc/passwd": "etc/passwd.html",
	}
	for in, want := range cases {
		if got := pageFile(in); got != want {
			t.Errorf("pageFile(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSiteRouter(t *testing.T) {
	pages := fstest.MapFS{
		"index.html":      {Data: []byte(`<html><head><title>Home</title></head><body>home</body></html>`)},
		"about.html":      {Data: []byte(`<html><head><title>About</title></head><body>about</body></html>`)},
		"docs/index.html": {Data: []byte(`<html><body>docs</body></html>`)},
	}
	srv := httptest.NewServer(NewSiteRouterFS(pages, slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer srv.Close()

	for path, want := range map[string]string{"/": "home", "/about": "about", "/docs/": "docs"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), want) {
			t.Errorf("GET %s: %d %s", path, resp.StatusCode, body)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s content type: %q", path, ct)
		}
	}

	resp, err := http.Get(srv.URL + "/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing page: %d", resp.StatusCode)
	}

	head, err := http.Head(srv.URL + "/about")
	if err != nil {
		t.Fatal(err)
	}
	head.Body.Close()
	if head.StatusCode != http.StatusOK {
		t.Errorf("HEAD /about: %d", head.StatusCode)
	}
}

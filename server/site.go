package server

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewSiteRouter serves the .html pages of dir: "/" is index.html, "/about"
// is about.html, "/docs/" is docs/index.html. Any other path is 404.
func NewSiteRouter(dir string, logger *slog.Logger) http.Handler {
	return NewSiteRouterFS(os.DirFS(dir), logger)
}

// NewSiteRouterFS is NewSiteRouter over any file system.
func NewSiteRouterFS(pages fs.FS, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(HeadToGet)
	r.Use(Detect)
	r.Use(RequestLogger(logger, nil))
	r.Use(SecurityHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		name := pageFile(r.URL.Path)
		data, err := fs.ReadFile(pages, name)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
				status = http.StatusNotFound
			} else {
				Logger(r.Context()).Error("site: read page", "file", name, "error", err)
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	})
	return r
}

// pageFile maps a URL path to a file name inside the page tree.
func pageFile(urlPath string) string {
	p := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	switch {
	case p == "":
		return "index.html"
	case strings.HasSuffix(urlPath, "/"):
		return p + "/index.html"
	case strings.HasSuffix(p, ".html"):
		return p
	default:
		return p + ".html"
	}
}

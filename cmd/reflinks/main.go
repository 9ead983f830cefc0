// Command reflinks drives a headless reflinks session, or serves a directory
// of pages for one.
//
// Usage:
//
//	reflinks -base http://localhost:8080 -visit /about,/team -format markdown
//	reflinks -config reflinks.yaml -mcp stdio      # session tools over MCP
//	reflinks -serve ./site -addr :8080             # dev site server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/reflinks/config"
	"github.com/hazyhaar/reflinks/metrics"
	"github.com/hazyhaar/reflinks/server"
	"github.com/hazyhaar/reflinks/session"
)

type flags struct {
	configPath  string
	base        string
	start       string
	visits      string
	format      string
	serveDir    string
	addr        string
	mcp         string
	metricsAddr string
	logLevel    string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to reflinks.yaml")
	flag.StringVar(&f.base, "base", "", "site base URL (overrides base_url)")
	flag.StringVar(&f.start, "start", "", "start path (overrides start_path)")
	flag.StringVar(&f.visits, "visit", "", "comma-separated paths to visit in order")
	flag.StringVar(&f.format, "format", "markdown", "output of the final page: markdown, html, document, title")
	flag.StringVar(&f.serveDir, "serve", "", "serve the .html pages of this directory instead of browsing")
	flag.StringVar(&f.addr, "addr", ":8080", "listen address for -serve")
	flag.StringVar(&f.mcp, "mcp", "", "expose the session over MCP: stdio")
	flag.StringVar(&f.metricsAddr, "metrics", "", "serve /metrics on this address (overrides metrics_addr)")
	flag.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log_level)")
	flag.Parse()

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, f, os.Stdout); err != nil {
		logger.Error("reflinks: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(f flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if f.base != "" {
		cfg.BaseURL = f.base
	}
	if f.start != "" {
		cfg.StartPath = f.start
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, f flags, out io.Writer) error {
	if f.serveDir != "" {
		return serve(ctx, logger, f.addr, server.NewSiteRouter(f.serveDir, logger))
	}
	if cfg.BaseURL == "" {
		return errors.New("a base URL is required (-base or base_url)")
	}

	var opts []session.Option
	opts = append(opts, session.WithLogger(logger))
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		opts = append(opts, session.WithMetrics(m))
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		go func() {
			if err := serve(ctx, logger, cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	s, err := session.Open(ctx, *cfg, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	switch f.mcp {
	case "":
	case "stdio":
		srv := mcp.NewServer(&mcp.Implementation{Name: "reflinks", Version: "1.0.0"}, nil)
		s.RegisterMCP(srv)
		logger.Info("mcp: serving on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	default:
		return fmt.Errorf("unknown -mcp transport %q", f.mcp)
	}

	for _, path := range splitPaths(f.visits) {
		if err := s.Visit(ctx, path); err != nil {
			return fmt.Errorf("visit %s: %w", path, err)
		}
	}
	return printPage(out, s, f.format)
}

func splitPaths(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func printPage(out io.Writer, s *session.Session, format string) error {
	var content string
	switch format {
	case "markdown", "":
		md, err := s.Markdown()
		if err != nil {
			return err
		}
		content = md
	case "html":
		content = s.RootHTML()
	case "document":
		content = s.HTML()
	case "title":
		content = s.Title()
	default:
		return fmt.Errorf("unknown -format %q", format)
	}
	_, err := fmt.Fprintln(out, content)
	return err
}

func serve(ctx context.Context, logger *slog.Logger, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped", "addr", addr)
	return nil
}

// Package session is a headless browsing session: one live document loaded
// from a site, driven by the navigation engine, with the component registry,
// journal and metrics wired onto its lifecycle bus.
//
//	cfg, _ := config.Load("reflinks.yaml")
//	s, err := session.Open(ctx, *cfg)
//	defer s.Close()
//	s.Visit(ctx, "/about")
//	md, _ := s.Markdown()
//
// A session serialises its own visits. Observers registered on Bus() run
// with the session lock held and must not call back into the session.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/reflinks/component"
	"github.com/hazyhaar/reflinks/config"
	"github.com/hazyhaar/reflinks/dom"
	"github.com/hazyhaar/reflinks/events"
	"github.com/hazyhaar/reflinks/history"
	"github.com/hazyhaar/reflinks/idgen"
	"github.com/hazyhaar/reflinks/journal"
	"github.com/hazyhaar/reflinks/kit"
	"github.com/hazyhaar/reflinks/metrics"
	"github.com/hazyhaar/reflinks/navigation"
	"github.com/hazyhaar/reflinks/permanent"
	"github.com/hazyhaar/reflinks/request"
)

// ErrNoElement is returned by Click when the selector matches nothing.
var ErrNoElement = errors.New("session: no element matches selector")

// Session owns one live document.
type Session struct {
	id         string
	cfg        config.Config
	logger     *slog.Logger
	engine     *navigation.Engine
	history    *history.Memory
	components *component.Registry
	journal    *journal.Store
	ownJournal bool
	md         *converter.Converter

	mu     sync.Mutex
	unbind []func()
	closed bool
}

type options struct {
	transport  request.Transport
	logger     *slog.Logger
	components *component.Registry
	journal    *journal.Store
	metrics    *metrics.Metrics
	newID      idgen.Generator
}

// Option configures Open.
type Option func(*options)

// WithTransport replaces the HTTP transport built from the config.
func WithTransport(tr request.Transport) Option { return func(o *options) { o.transport = tr } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithComponents uses a registry prepared by the caller. Its components are
// attached to the initial page and follow every visit.
func WithComponents(r *component.Registry) Option { return func(o *options) { o.components = r } }

// WithJournal reports visits to j instead of opening cfg.JournalPath. The
// caller keeps ownership of j.
func WithJournal(j *journal.Store) Option { return func(o *options) { o.journal = j } }

// WithMetrics counts events and visits on m.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithIDGenerator sets the visit id generator.
func WithIDGenerator(gen idgen.Generator) Option { return func(o *options) { o.newID = gen } }

// Open loads cfg.StartPath as a full page and builds the session around it.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	o := options{logger: slog.Default(), newID: idgen.Visit}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.StartPath == "" {
		cfg.StartPath = "/"
	}

	if o.transport == nil {
		tr, err := request.NewHTTP(request.Config{
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
			MaxBytes:  cfg.MaxBytes,
			UserAgent: cfg.UserAgent,
		})
		if err != nil {
			return nil, fmt.Errorf("session: transport: %w", err)
		}
		o.transport = tr
	}

	s := &Session{
		id:         idgen.Session(),
		cfg:        cfg,
		history:    history.NewMemory(),
		components: o.components,
		journal:    o.journal,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
	s.logger = o.logger.With("session_id", s.id)
	if s.components == nil {
		s.components = component.NewRegistry()
	}

	doc, err := s.load(ctx, o.transport)
	if err != nil {
		return nil, err
	}

	if s.journal == nil && cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath, journal.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		s.journal, s.ownJournal = j, true
	}

	bus := events.NewBus()
	engineOpts := []navigation.Option{
		navigation.WithBus(bus),
		navigation.WithCache(permanent.New(permanent.WithMarker(cfg.PermanentAttr, cfg.PermanentValue))),
		navigation.WithHistory(s.history),
		navigation.WithRootSelector(cfg.RootSelector),
		navigation.WithLogger(s.logger),
		navigation.WithIDGenerator(o.newID),
	}
	if s.journal != nil {
		engineOpts = append(engineOpts, navigation.WithReporter(s.journal))
	}
	if o.metrics != nil {
		engineOpts = append(engineOpts, navigation.WithReporter(o.metrics))
		s.unbind = append(s.unbind, o.metrics.Bind(bus, doc.Root()))
	}
	s.engine = navigation.New(doc, o.transport, engineOpts...)

	s.unbind = append(s.unbind, s.components.Bind(bus, doc.Root()))
	s.components.Attach(doc.Root())

	s.logger.Info("session opened", "start_path", cfg.StartPath, "title", doc.Title())
	return s, nil
}

// load fetches the start page and records it as the first history entry.
func (s *Session) load(ctx context.Context, tr request.Transport) (*dom.Document, error) {
	resp, err := tr.Send(ctx, http.MethodGet, s.cfg.StartPath, nil)
	if err != nil {
		return nil, fmt.Errorf("session: initial load: %w", err)
	}
	node, err := dom.ParseDocument(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("session: initial load: %w", err)
	}
	doc := dom.NewDocument(node)
	s.history.Push(history.State{Action: "load"}, doc.Title(), s.cfg.StartPath)
	return doc, nil
}

// ID returns the session id ("ses_" prefix).
func (s *Session) ID() string { return s.id }

// Engine exposes the underlying engine.
func (s *Session) Engine() *navigation.Engine { return s.engine }

// Bus returns the lifecycle bus; events fire on the document node.
func (s *Session) Bus() *events.Bus { return s.engine.Bus() }

// Components returns the component registry bound to this session.
func (s *Session) Components() *component.Registry { return s.components }

// Journal returns the visit journal, or nil when none is configured.
func (s *Session) Journal() *journal.Store { return s.journal }

func (s *Session) context(ctx context.Context) context.Context {
	return kit.WithSessionID(ctx, s.id)
}

// Visit navigates to path.
func (s *Session) Visit(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	return s.engine.Visit(s.context(ctx), path, nil)
}

// Click follows the first link matching selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	n := s.engine.Document().QuerySelector(selector)
	if n == nil {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return s.engine.Follow(s.context(ctx), n)
}

// Title returns the live document title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Document().Title()
}

// HTML renders the whole live document.
func (s *Session) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Document().HTML()
}

// RootHTML renders the current root element, or "" when it is missing.
func (s *Session) RootHTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootHTML()
}

func (s *Session) rootHTML() string {
	root := s.engine.Document().QuerySelector(s.engine.RootSelector())
	if root == nil {
		return ""
	}
	return dom.Render(root)
}

// Markdown converts the current root to Markdown; links resolve against
// the base URL.
func (s *Session) Markdown() (string, error) {
	s.mu.Lock()
	src := s.rootHTML()
	s.mu.Unlock()

	var (
		md  string
		err error
	)
	if s.cfg.BaseURL != "" {
		md, err = s.md.ConvertString(src, converter.WithDomain(s.cfg.BaseURL))
	} else {
		md, err = s.md.ConvertString(src)
	}
	if err != nil {
		return "", fmt.Errorf("session: markdown: %w", err)
	}
	return md, nil
}

// PermanentIDs lists the cached permanent element ids.
func (s *Session) PermanentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.PermanentIDs()
}

// History returns the session history, oldest first.
func (s *Session) History() []history.Entry { return s.history.Entries() }

var errClosed = errors.New("session: closed")

// Close detaches components and observers and closes a journal the session
// opened itself.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.components.Detach(s.engine.Document().Root())
	for _, off := range s.unbind {
		off()
	}
	s.unbind = nil
	if s.ownJournal {
		if err := s.journal.Close(); err != nil {
			return fmt.Errorf("session: close journal: %w", err)
		}
	}
	s.logger.Info("session closed")
	return nil
}

// Package navigation is the transition engine: it turns a destination path
// into a committed swap of the live document's root element.
//
// A visit runs these steps, in order:
//
//	before-visit (vetoable) → GET path → before-cache → parse response,
//	locate new root → capture permanent elements → before-render →
//	title + meta merge → swap roots → restore permanent elements →
//	render → history push
//
// Nothing in the live tree is modified before the swap except by observers
// and by the placeholder swap of permanent capture, which only runs once
// the new root is known to exist. Visits are not serialised: callers that
// may start a visit while another is in flight must queue them.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/reflinks/dom"
	"github.com/hazyhaar/reflinks/events"
	"github.com/hazyhaar/reflinks/head"
	"github.com/hazyhaar/reflinks/history"
	"github.com/hazyhaar/reflinks/idgen"
	"github.com/hazyhaar/reflinks/kit"
	"github.com/hazyhaar/reflinks/permanent"
	"github.com/hazyhaar/reflinks/request"
)

// DefaultRootSelector selects the element swapped on each visit.
const DefaultRootSelector = "body"

// ActionAdvance is the default visit action. It is recorded in history
// state and otherwise not interpreted.
const ActionAdvance = "advance"

// VisitOptions are per-visit settings. A nil *VisitOptions means defaults.
type VisitOptions struct {
	Action string
}

// Engine runs visits against one live document.
type Engine struct {
	doc          *dom.Document
	transport    request.Transport
	bus          *events.Bus
	cache        *permanent.Cache
	history      history.History
	rootSelector string
	logger       *slog.Logger
	newID        idgen.Generator
	reporters    []Reporter
	now          func() time.Time
	selectorErr  error
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus shares a bus with other subsystems (component registry, metrics).
func WithBus(b *events.Bus) Option { return func(e *Engine) { e.bus = b } }

// WithCache sets the permanent-element cache.
func WithCache(c *permanent.Cache) Option { return func(e *Engine) { e.cache = c } }

// WithHistory sets the history adapter.
func WithHistory(h history.History) Option { return func(e *Engine) { e.history = h } }

// WithRootSelector sets the selector of the swapped root. Default: "body".
func WithRootSelector(sel string) Option {
	return func(e *Engine) {
		if strings.TrimSpace(sel) != "" {
			e.rootSelector = sel
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithIDGenerator sets the visit id generator. Default: idgen.Visit.
func WithIDGenerator(gen idgen.Generator) Option { return func(e *Engine) { e.newID = gen } }

// WithReporter adds a sink notified once per finished visit.
func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.reporters = append(e.reporters, r) }
}

// New creates an engine for doc. Missing collaborators get in-memory
// defaults: a fresh bus, cache and history stack.
func New(doc *dom.Document, tr request.Transport, opts ...Option) *Engine {
	e := &Engine{
		doc:          doc,
		transport:    tr,
		rootSelector: DefaultRootSelector,
		logger:       slog.Default(),
		newID:        idgen.Visit,
		now:          time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.bus == nil {
		e.bus = events.NewBus()
	}
	if e.cache == nil {
		e.cache = permanent.New()
	}
	if e.history == nil {
		e.history = history.NewMemory()
	}
	if err := dom.ValidateSelector(e.rootSelector); err != nil {
		e.selectorErr = fmt.Errorf("navigation: root selector: %w", err)
	}
	return e
}

// Document returns the live document.
func (e *Engine) Document() *dom.Document { return e.doc }

// Bus returns the lifecycle bus. Events are fired on Document().Root().
func (e *Engine) Bus() *events.Bus { return e.bus }

// History returns the history adapter.
func (e *Engine) History() history.History { return e.history }

// RootSelector returns the configured root selector.
func (e *Engine) RootSelector() string { return e.rootSelector }

// PermanentIDs lists the ids held by the permanent-element cache.
func (e *Engine) PermanentIDs() []string { return e.cache.IDs() }

// Visit navigates to path and returns once the new root is live and the
// history entry pushed, or on the first failure.
func (e *Engine) Visit(ctx context.Context, path string, opts *VisitOptions) error {
	v, err := e.begin(ctx, path, opts)
	if err != nil {
		return err
	}
	return v.run()
}

// VisitAsync fires before-visit before returning, then runs the rest of the
// visit in a goroutine. The channel yields the visit result once.
func (e *Engine) VisitAsync(ctx context.Context, path string, opts *VisitOptions) <-chan error {
	done := make(chan error, 1)
	v, err := e.begin(ctx, path, opts)
	if err != nil {
		done <- err
		close(done)
		return done
	}
	go func() {
		done <- v.run()
		close(done)
	}()
	return done
}

// Follow visits the href of anchor when ShouldTriggerVisit allows it.
func (e *Engine) Follow(ctx context.Context, anchor *html.Node) error {
	href := dom.Attr(anchor, "href")
	if href == "" {
		return fmt.Errorf("navigation: <%s> has no href", anchor.Data)
	}
	if !ShouldTriggerVisit(anchor) {
		return ErrNotFollowable
	}
	return e.Visit(ctx, href, nil)
}

// ErrNotFollowable is returned by Follow for links opted out with
// data-reflinks="false".
var ErrNotFollowable = errors.New("navigation: link opted out of visits")

// ShouldTriggerVisit walks from n up to the document: the nearest
// data-reflinks="true" or "false" decides, and visits are on by default.
func ShouldTriggerVisit(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		switch dom.Attr(n, "data-reflinks") {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return true
}

// visit is the state of one pipeline run.
type visit struct {
	e       *Engine
	ctx     context.Context
	id      string
	path    string
	action  string
	started time.Time
	status  int
}

// begin runs step 1: the vetoable before-visit.
func (e *Engine) begin(ctx context.Context, path string, opts *VisitOptions) (*visit, error) {
	action := ActionAdvance
	if opts != nil && opts.Action != "" {
		action = opts.Action
	}
	id := e.newID()
	v := &visit{
		e:       e,
		ctx:     kit.WithVisitID(ctx, id),
		id:      id,
		path:    path,
		action:  action,
		started: e.now(),
	}
	e.logger.Debug("visit start", "visit_id", id, "path", path, "action", action)
	if e.selectorErr != nil {
		return nil, v.finish(e.selectorErr)
	}

	proceed, err := e.bus.Emit(e.doc.Root(), events.BeforeVisit, events.Detail{Path: path})
	if err != nil {
		return nil, v.finish(&ObserverError{Event: events.BeforeVisit, Err: err})
	}
	if !proceed {
		return nil, v.finish(ErrVisitCanceled)
	}
	return v, nil
}

// run executes steps 2 to 11.
func (v *visit) run() error {
	e := v.e
	root := e.doc.Root()

	resp, err := e.transport.Send(v.ctx, http.MethodGet, v.path, nil)
	if resp != nil {
		v.status = resp.StatusCode
	}
	if err != nil {
		return v.finish(err)
	}

	currentRoot := e.doc.QuerySelector(e.rootSelector)
	if currentRoot == nil {
		return v.finish(&MissingRootError{Selector: e.rootSelector, Live: true})
	}
	if _, err := e.bus.Emit(root, events.BeforeCache, events.Detail{Response: resp, Root: currentRoot}); err != nil {
		return v.finish(&ObserverError{Event: events.BeforeCache, Err: err})
	}

	page, err := dom.Parse(resp.Body)
	if err != nil {
		return v.finish(fmt.Errorf("navigation: parse response: %w", err))
	}
	newRoot := dom.QuerySelector(page, e.rootSelector)
	if newRoot == nil {
		return v.finish(&MissingRootError{Selector: e.rootSelector})
	}

	if err := e.cache.Capture(currentRoot); err != nil {
		return v.finish(err)
	}

	if _, err := e.bus.Emit(root, events.BeforeRender, events.Detail{Root: currentRoot, NewRoot: newRoot}); err != nil {
		e.cache.Revert(currentRoot)
		return v.finish(&ObserverError{Event: events.BeforeRender, Err: err})
	}

	// Fragments have no head to merge. A root that contains the page head
	// (selector "html") carries its own title and metas.
	newHead := dom.FindHead(page)
	if newHead != page && !isAncestor(newRoot, newHead) {
		head.UpdateTitle(e.doc, newHead)
		head.MergeMeta(e.doc, newHead)
	}

	dom.ReplaceWith(currentRoot, newRoot)

	for _, evicted := range e.cache.Restore(root) {
		if _, err := e.bus.Emit(root, events.PermanentEvicted, events.Detail{Root: evicted}); err != nil {
			return v.finish(&ObserverError{Event: events.PermanentEvicted, Err: err})
		}
	}

	if _, err := e.bus.Emit(root, events.Render, events.Detail{Root: newRoot}); err != nil {
		return v.finish(&ObserverError{Event: events.Render, Err: err})
	}

	e.history.Push(history.State{Reflinks: true, Action: v.action, VisitID: v.id}, e.doc.Title(), v.path)
	return v.finish(nil)
}

// finish logs and reports the visit outcome and returns err unchanged.
func (v *visit) finish(err error) error {
	e := v.e
	r := Report{
		VisitID:    v.id,
		Path:       v.path,
		Action:     v.action,
		Outcome:    OutcomeOf(err),
		StatusCode: v.status,
		Err:        err,
		Duration:   e.now().Sub(v.started),
		At:         v.started,
		Permanent:  e.cache.Len(),
	}

	switch r.Outcome {
	case OutcomeRendered:
		e.logger.Info("visit rendered", "visit_id", v.id, "path", v.path, "status", v.status, "duration", r.Duration)
	case OutcomeCanceled:
		e.logger.Info("visit canceled", "visit_id", v.id, "path", v.path)
	default:
		e.logger.Warn("visit failed", "visit_id", v.id, "path", v.path, "outcome", r.Outcome, "error", err)
	}

	for _, rep := range e.reporters {
		rep.ReportVisit(v.ctx, r)
	}
	return err
}

func isAncestor(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

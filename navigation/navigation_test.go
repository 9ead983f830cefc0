package navigation

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/reflinks/component"
	"github.com/hazyhaar/reflinks/dom"
	"github.com/hazyhaar/reflinks/events"
	"github.com/hazyhaar/reflinks/head"
	"github.com/hazyhaar/reflinks/history"
	"github.com/hazyhaar/reflinks/idgen"
	"github.com/hazyhaar/reflinks/kit"
	"github.com/hazyhaar/reflinks/permanent"
	"github.com/hazyhaar/reflinks/request"
	"github.com/hazyhaar/reflinks/request/requesttest"
)

const emptyPage = `<html><body></body></html>`

type fixture struct {
	engine    *Engine
	transport *requesttest.Transport
	history   *history.Memory
	bus       *events.Bus
	reports   []Report
}

func newFixture(t *testing.T, live string, opts ...Option) *fixture {
	t.Helper()
	node, err := dom.ParseDocument(strings.NewReader(live))
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		transport: requesttest.New(),
		history:   history.NewMemory(),
		bus:       events.NewBus(),
	}
	base := []Option{
		WithBus(f.bus),
		WithHistory(f.history),
		WithIDGenerator(idgen.Sequence("vis_")),
		WithReporter(ReporterFunc(func(_ context.Context, r Report) { f.reports = append(f.reports, r) })),
	}
	f.engine = New(dom.NewDocument(node), f.transport, append(base, opts...)...)
	return f
}

func (f *fixture) on(name string, fn events.Observer) {
	f.bus.On(f.engine.Document().Root(), name, fn)
}

func TestShouldTriggerVisit(t *testing.T) {
	cases := []struct {
		name string
		html string
		want bool
	}{
		{"no attribute", `<a href="/"></a>`, true},
		{"opted in", `<a href="/" data-reflinks="true"></a>`, true},
		{"opted out", `<a href="/" data-reflinks="false"></a>`, false},
		{"parent opted out", `<div data-reflinks="false"><a href="/"></a></div>`, false},
		{"nearest wins", `<div data-reflinks="false"><p data-reflinks="true"><a href="/"></a></p></div>`, true},
		{"permanent marker is not an opt out", `<div data-reflinks="permanent" id="x"><a href="/"></a></div>`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root, err := dom.ParseElement(tc.html)
			if err != nil {
				t.Fatal(err)
			}
			a := dom.QuerySelector(root, "a")
			if got := ShouldTriggerVisit(a); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVisit_PushesHistory(t *testing.T) {
	f := newFixture(t, emptyPage)
	f.transport.Respond("/some-path", http.StatusOK, emptyPage)

	if f.history.Len() != 0 {
		t.Fatal("history should start empty")
	}
	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}

	latest, ok := f.history.Latest()
	if !ok || f.history.Len() != 1 {
		t.Fatalf("history len: %d", f.history.Len())
	}
	if latest.Path != "/some-path" {
		t.Errorf("path: %q", latest.Path)
	}
	if !latest.State.Reflinks || latest.State.Action != ActionAdvance || latest.State.VisitID != "vis_1" {
		t.Errorf("state: %+v", latest.State)
	}
}

func TestVisit_SendsOneGET(t *testing.T) {
	f := newFixture(t, emptyPage)
	f.transport.Respond("/some-path", http.StatusOK, emptyPage)

	f.engine.Visit(context.Background(), "/some-path", &VisitOptions{Action: "replace"})

	calls := f.transport.Calls()
	if len(calls) != 1 || calls[0].Method != http.MethodGet || calls[0].Path != "/some-path" {
		t.Fatalf("calls: %+v", calls)
	}
	latest, _ := f.history.Latest()
	if latest.State.Action != "replace" {
		t.Errorf("action: %q", latest.State.Action)
	}
}

func TestVisit_EmitsLifecycleInOrder(t *testing.T) {
	f := newFixture(t, emptyPage)
	f.transport.Respond("/some-path", http.StatusOK, `<html><body id="new-root"></body></html>`)

	var seen []string
	f.on(events.BeforeVisit, func(ev *events.Event) error {
		seen = append(seen, "before-visit")
		if ev.Detail.Path != "/some-path" {
			t.Errorf("before-visit path: %q", ev.Detail.Path)
		}
		return nil
	})
	f.on(events.BeforeCache, func(ev *events.Event) error {
		seen = append(seen, "before-cache")
		if ev.Detail.Response == nil || ev.Detail.Response.StatusCode != http.StatusOK {
			t.Errorf("before-cache response: %+v", ev.Detail.Response)
		}
		if ev.Detail.Response != nil && ev.Detail.Response.FinalURL != "/some-path" {
			t.Errorf("before-cache url: %q", ev.Detail.Response.FinalURL)
		}
		if ev.Detail.Root == nil {
			t.Error("before-cache root missing")
		}
		return nil
	})
	f.on(events.BeforeRender, func(ev *events.Event) error {
		seen = append(seen, "before-render")
		if dom.Attr(ev.Detail.NewRoot, "id") != "new-root" {
			t.Errorf("before-render new root: %v", ev.Detail.NewRoot)
		}
		return nil
	})
	f.on(events.Render, func(ev *events.Event) error {
		seen = append(seen, "render")
		if dom.Attr(ev.Detail.Root, "id") != "new-root" {
			t.Errorf("render root: %v", ev.Detail.Root)
		}
		if f.history.Len() != 0 {
			t.Error("render must fire before the history push")
		}
		return nil
	})

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	if got := strings.Join(seen, ","); got != "before-visit,before-cache,before-render,render" {
		t.Errorf("events: %s", got)
	}
}

func TestVisit_BeforeVisitFiresBeforeRequest(t *testing.T) {
	f := newFixture(t, emptyPage)
	f.transport.Respond("/some-path", http.StatusOK, emptyPage)

	called := false
	f.on(events.BeforeVisit, func(*events.Event) error {
		called = true
		if len(f.transport.Calls()) != 0 {
			t.Error("request sent before before-visit")
		}
		return nil
	})

	done := f.engine.VisitAsync(context.Background(), "/some-path", nil)
	// WHAT: before-visit has run by the time VisitAsync returns.
	// WHY: observers must be able to veto synchronously.
	if !called {
		t.Fatal("before-visit not fired synchronously")
	}
	if err := <-done; err != nil {
		t.Fatalf("async visit: %v", err)
	}
}

func TestVisit_MissingRootInResponse(t *testing.T) {
	live := `<html><head><title>old</title></head><body><div id="something-else"><span data-reflinks="permanent" id="p">x</span></div></body></html>`
	f := newFixture(t, live, WithRootSelector("#something-else"))
	f.transport.Respond("/some-path", http.StatusOK, `<html><head><title>new</title></head><body></body></html>`)
	before := f.engine.Document().HTML()

	err := f.engine.Visit(context.Background(), "/some-path", nil)

	var rootErr *MissingRootError
	if !errors.As(err, &rootErr) || rootErr.Live {
		t.Fatalf("got %v, want MissingRootError for the response", err)
	}
	if !strings.Contains(err.Error(), "root element") || !strings.Contains(err.Error(), "#something-else") {
		t.Errorf("message: %q", err.Error())
	}
	// WHAT: the live tree is untouched, permanent elements included.
	// WHY: a failed visit must not leave placeholders or a new title behind.
	if after := f.engine.Document().HTML(); after != before {
		t.Errorf("live document mutated:\n%s\n%s", before, after)
	}
	if len(f.engine.PermanentIDs()) != 0 {
		t.Errorf("cache filled on failure: %v", f.engine.PermanentIDs())
	}
	if f.history.Len() != 0 {
		t.Error("history pushed on failure")
	}
}

func TestVisit_MissingRootInLiveDocument(t *testing.T) {
	f := newFixture(t, emptyPage, WithRootSelector("#my-root"))
	f.transport.Respond("/some-path", http.StatusOK, `<html><body><div id="my-root"></div></body></html>`)

	err := f.engine.Visit(context.Background(), "/some-path", nil)

	var rootErr *MissingRootError
	if !errors.As(err, &rootErr) || !rootErr.Live {
		t.Fatalf("got %v, want MissingRootError for the live document", err)
	}
}

func TestVisit_CanceledByObserver(t *testing.T) {
	f := newFixture(t, emptyPage)
	f.on(events.BeforeVisit, func(ev *events.Event) error {
		ev.PreventDefault()
		return nil
	})
	rendered := false
	f.on(events.Render, func(*events.Event) error { rendered = true; return nil })

	err := f.engine.Visit(context.Background(), "/some-path", nil)

	if !errors.Is(err, ErrVisitCanceled) {
		t.Fatalf("got %v, want ErrVisitCanceled", err)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "visit canceled") {
		t.Errorf("message: %q", err.Error())
	}
	if n := len(f.transport.Calls()); n != 0 {
		t.Errorf("%d requests sent after veto", n)
	}
	if rendered || f.history.Len() != 0 {
		t.Error("canceled visit should not render or push history")
	}
	if len(f.reports) != 1 || f.reports[0].Outcome != OutcomeCanceled {
		t.Errorf("reports: %+v", f.reports)
	}
}

func TestVisit_ReplacesRoot(t *testing.T) {
	f := newFixture(t, `<html><body><h1>keep</h1><div id="my-root">old</div></body></html>`, WithRootSelector("#my-root"))
	f.transport.Respond("/some-path", http.StatusOK, `<html><body><div id="my-root">new</div></body></html>`)

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}

	doc := f.engine.Document()
	if got := dom.InnerHTML(doc.QuerySelector("#my-root")); got != "new" {
		t.Errorf("root content: %q", got)
	}
	if len(dom.QuerySelectorAll(doc.Root(), "#my-root")) != 1 {
		t.Error("old root still present")
	}
	if doc.QuerySelector("h1") == nil {
		t.Error("content outside the root was lost")
	}
}

func TestVisit_FragmentResponse(t *testing.T) {
	f := newFixture(t, `<html><body><main id="app">old</main></body></html>`, WithRootSelector("#app"))
	f.transport.Respond("/partial", http.StatusOK, `<main id="app">partial</main>`)

	if err := f.engine.Visit(context.Background(), "/partial", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	if got := dom.Text(f.engine.Document().QuerySelector("#app")); got != "partial" {
		t.Errorf("root text: %q", got)
	}
}

func TestVisit_HTMLRoot(t *testing.T) {
	f := newFixture(t, `<html><head><title>old</title></head><body>old</body></html>`, WithRootSelector("html"))
	f.transport.Respond("/p", http.StatusOK, `<html><head><title>new</title><meta name="m" content="1"></head><body>new</body></html>`)

	if err := f.engine.Visit(context.Background(), "/p", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	doc := f.engine.Document()
	if doc.Title() != "new" {
		t.Errorf("title: %q", doc.Title())
	}
	if len(head.Metas(doc, "m")) != 1 {
		t.Errorf("the new head should keep its metas")
	}
	if got := dom.Text(doc.Body()); got != "new" {
		t.Errorf("body: %q", got)
	}
}

func TestVisit_MergesMeta(t *testing.T) {
	f := newFixture(t, `<html><head><meta name="existing-meta" content="old-value"></head><body></body></html>`)
	f.transport.Respond("/some-path", http.StatusOK, `
		<html>
			<head>
				<meta name="new-meta" content="new-value">
				<meta name="existing-meta" content="new-value">
			</head>
			<body></body>
		</html>`)

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}

	doc := f.engine.Document()
	newMeta := head.Metas(doc, "new-meta")
	if len(newMeta) != 1 || dom.Attr(newMeta[0], "content") != "new-value" {
		t.Errorf("new meta: %v", newMeta)
	}
	existing := head.Metas(doc, "existing-meta")
	if len(existing) != 1 || dom.Attr(existing[0], "content") != "new-value" {
		t.Errorf("existing meta: %v", existing)
	}
}

func TestVisit_UpdatesTitle(t *testing.T) {
	f := newFixture(t, `<html><head><title>old-title</title></head><body></body></html>`)
	f.transport.Respond("/some-path", http.StatusOK, `<html><head><title>new-title</title></head><body></body></html>`)

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	if got := f.engine.Document().Title(); got != "new-title" {
		t.Errorf("title: %q", got)
	}
	if latest, _ := f.history.Latest(); latest.Title != "new-title" {
		t.Errorf("history title: %q", latest.Title)
	}
}

func TestVisit_KeepsTitleWhenResponseHasNone(t *testing.T) {
	f := newFixture(t, `<html><head><title>old-title</title></head><body></body></html>`)
	f.transport.Respond("/some-path", http.StatusOK, emptyPage)

	f.engine.Visit(context.Background(), "/some-path", nil)
	if got := f.engine.Document().Title(); got != "old-title" {
		t.Errorf("title: %q", got)
	}
}

func TestVisit_TransportErrorLeavesDocument(t *testing.T) {
	f := newFixture(t, `<html><head><title>t</title></head><body>live</body></html>`)
	f.transport.Respond("/boom", http.StatusInternalServerError, `<html><body>error page</body></html>`)
	before := f.engine.Document().HTML()

	err := f.engine.Visit(context.Background(), "/boom", nil)

	var reqErr *request.Error
	if !errors.As(err, &reqErr) || reqErr.StatusCode() != http.StatusInternalServerError {
		t.Fatalf("got %v, want request.Error with status 500", err)
	}
	if f.engine.Document().HTML() != before {
		t.Error("live document mutated after a transport error")
	}
	if len(f.reports) != 1 || f.reports[0].Outcome != OutcomeTransport || f.reports[0].StatusCode != 500 {
		t.Errorf("reports: %+v", f.reports)
	}
}

func TestVisit_ObserverErrorPropagates(t *testing.T) {
	f := newFixture(t, emptyPage)
	f.transport.Respond("/some-path", http.StatusOK, emptyPage)
	boom := errors.New("boom")
	f.on(events.BeforeRender, func(*events.Event) error { return boom })

	err := f.engine.Visit(context.Background(), "/some-path", nil)

	var obsErr *ObserverError
	if !errors.Is(err, boom) || !errors.As(err, &obsErr) || obsErr.Event != events.BeforeRender {
		t.Fatalf("got %v", err)
	}
	if f.history.Len() != 0 {
		t.Error("history pushed after observer failure")
	}
}

func TestVisit_ObserverErrorKeepsPermanentContent(t *testing.T) {
	f := newFixture(t, `<html><body><div id="p-elm" data-reflinks="permanent">hello</div></body></html>`)
	f.transport.Respond("/some-path", http.StatusOK, `<html><body><div id="p-elm" data-reflinks="permanent"></div></body></html>`)
	failed := false
	f.on(events.BeforeRender, func(*events.Event) error {
		if !failed {
			failed = true
			return errors.New("boom")
		}
		return nil
	})

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err == nil {
		t.Fatal("first visit should fail")
	}
	// WHAT: the failed visit puts the captured originals back.
	// WHY: otherwise the next capture caches the empty placeholder.
	if got := dom.InnerHTML(f.engine.Document().GetElementByID("p-elm")); got != "hello" {
		t.Errorf("live after failed visit: %q", got)
	}

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("second visit: %v", err)
	}
	if got := dom.InnerHTML(f.engine.Document().GetElementByID("p-elm")); got != "hello" {
		t.Errorf("live after second visit: %q", got)
	}
}

func TestVisit_BodyFragmentWithDefaultRoot(t *testing.T) {
	f := newFixture(t, `<html><body><p>old</p></body></html>`)
	f.transport.Respond("/some-path", http.StatusOK, `<body><p>new</p></body>`)

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	body := f.engine.Document().Body()
	if got := dom.InnerHTML(body); got != "<p>new</p>" {
		t.Errorf("body: %q", got)
	}
}

func TestVisit_UnsupportedRootSelector(t *testing.T) {
	f := newFixture(t, emptyPage, WithRootSelector("main > article"))
	f.transport.Respond("/some-path", http.StatusOK, emptyPage)

	err := f.engine.Visit(context.Background(), "/some-path", nil)
	if !errors.Is(err, dom.ErrUnsupportedSelector) {
		t.Fatalf("got %v, want ErrUnsupportedSelector", err)
	}
	if OutcomeOf(err) != OutcomeConfiguration {
		t.Errorf("outcome: %s", OutcomeOf(err))
	}
	if len(f.transport.Calls()) != 0 {
		t.Error("no request should be sent with a broken root selector")
	}
}

func TestVisit_KeepsPermanentElements(t *testing.T) {
	f := newFixture(t, `<html><body><div id="p-elm" data-reflinks="permanent">hello</div></body></html>`)
	f.transport.Respond("/some-path", http.StatusOK, `
		<html>
			<body>
				<div id="p-elm" data-reflinks="permanent"></div>
			</body>
		</html>`)

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	p := f.engine.Document().GetElementByID("p-elm")
	if got := dom.InnerHTML(p); got != "hello" {
		t.Errorf("permanent content: %q", got)
	}
	if ids := f.engine.PermanentIDs(); len(ids) != 1 || ids[0] != "p-elm" {
		t.Errorf("ids: %v", ids)
	}
}

func TestVisit_EvictsPermanentMissingFromNextPage(t *testing.T) {
	f := newFixture(t, `<html><body><div id="p-elm" data-reflinks="permanent">hello</div></body></html>`)
	f.transport.
		Respond("/without", http.StatusOK, `<html><body><div>no permanent element in this page</div></body></html>`).
		Respond("/with", http.StatusOK, `<html><body><div id="p-elm" data-reflinks="permanent">fresh</div></body></html>`)

	var evicted []*html.Node
	f.on(events.PermanentEvicted, func(ev *events.Event) error {
		evicted = append(evicted, ev.Detail.Root)
		return nil
	})

	if err := f.engine.Visit(context.Background(), "/without", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	if ids := f.engine.PermanentIDs(); len(ids) != 0 {
		t.Errorf("ids after eviction: %v", ids)
	}
	if len(evicted) != 1 || dom.InnerHTML(evicted[0]) != "hello" {
		t.Errorf("evicted: %v", evicted)
	}

	if err := f.engine.Visit(context.Background(), "/with", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	if got := dom.InnerHTML(f.engine.Document().GetElementByID("p-elm")); got != "fresh" {
		t.Errorf("evicted element resurrected: %q", got)
	}
}

func TestVisit_PermanentWithoutID(t *testing.T) {
	f := newFixture(t, `<html><body><div data-reflinks="permanent">no id</div></body></html>`)
	f.transport.Respond("/some-path", http.StatusOK, emptyPage)
	before := f.engine.Document().HTML()

	err := f.engine.Visit(context.Background(), "/some-path", nil)

	var cfgErr *permanent.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want permanent.ConfigurationError", err)
	}
	if f.engine.Document().HTML() != before {
		t.Error("live document mutated")
	}
}

func bindComponents(t *testing.T, f *fixture, def component.Definition) *component.Registry {
	t.Helper()
	r := component.NewRegistry()
	if err := r.Register("my-component", def); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Bind(f.bus, f.engine.Document().Root()))
	return r
}

func TestVisit_AttachesNewComponents(t *testing.T) {
	f := newFixture(t, emptyPage)
	f.transport.Respond("/some-path", http.StatusOK, `<html><body><my-component>hello</my-component></body></html>`)
	called := false
	bindComponents(t, f, component.Definition{Attached: func(*html.Node) { called = true }})

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	if !called {
		t.Error("attached not called")
	}
}

func TestVisit_DetachesOldComponents(t *testing.T) {
	f := newFixture(t, `<html><body><my-component></my-component></body></html>`)
	f.transport.Respond("/some-path", http.StatusOK, `<html><body><h1>new body here :)</h1></body></html>`)
	called := false
	r := bindComponents(t, f, component.Definition{
		Attached: func(*html.Node) {},
		Detached: func(*html.Node) { called = true },
	})
	r.Attach(f.engine.Document().Body())

	if err := f.engine.Visit(context.Background(), "/some-path", nil); err != nil {
		t.Fatalf("visit: %v", err)
	}
	if !called {
		t.Error("detached not called")
	}
}

func TestVisit_PermanentComponentLifecycle(t *testing.T) {
	live := `<html><body><my-component id="player" data-reflinks="permanent">playing</my-component></body></html>`
	f := newFixture(t, live)
	f.transport.
		Respond("/next", http.StatusOK, `<html><body><my-component id="player" data-reflinks="permanent"></my-component></body></html>`).
		Respond("/gone", http.StatusOK, `<html><body><p>no player</p></body></html>`)

	var log []string
	r := bindComponents(t, f, component.Definition{
		Attached: func(n *html.Node) { log = append(log, "attached:"+dom.Text(n)) },
		Detached: func(n *html.Node) { log = append(log, "detached:"+dom.Text(n)) },
	})
	r.Attach(f.engine.Document().Body())

	// WHAT: a permanent component carried to the next page is neither
	// detached nor attached again.
	if err := f.engine.Visit(context.Background(), "/next", nil); err != nil {
		t.Fatalf("visit /next: %v", err)
	}
	if got := strings.Join(log, ","); got != "attached:playing" {
		t.Errorf("after /next: %s", got)
	}

	// WHAT: once a page drops it, the evicted component is detached.
	if err := f.engine.Visit(context.Background(), "/gone", nil); err != nil {
		t.Fatalf("visit /gone: %v", err)
	}
	if got := strings.Join(log, ","); got != "attached:playing,detached:playing" {
		t.Errorf("after /gone: %s", got)
	}
}

func TestFollow(t *testing.T) {
	f := newFixture(t, `<html><body><a id="in" href="/next">go</a><div data-reflinks="false"><a id="out" href="/x">x</a></div></body></html>`)
	f.transport.Respond("/next", http.StatusOK, emptyPage)
	doc := f.engine.Document()

	if err := f.engine.Follow(context.Background(), doc.GetElementByID("out")); !errors.Is(err, ErrNotFollowable) {
		t.Errorf("opted-out link: %v", err)
	}
	if err := f.engine.Follow(context.Background(), doc.GetElementByID("in")); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if latest, _ := f.history.Latest(); latest.Path != "/next" {
		t.Errorf("history: %+v", latest)
	}
}

func TestReport(t *testing.T) {
	f := newFixture(t, emptyPage)
	f.transport.Respond("/some-path", http.StatusOK, emptyPage)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.engine.now = func() time.Time {
		clock = clock.Add(10 * time.Millisecond)
		return clock
	}

	f.engine.Visit(context.Background(), "/some-path", nil)

	if len(f.reports) != 1 {
		t.Fatalf("reports: %d", len(f.reports))
	}
	r := f.reports[0]
	if r.Outcome != OutcomeRendered || r.Err != nil || r.StatusCode != 200 || r.VisitID != "vis_1" {
		t.Errorf("report: %+v", r)
	}
	if r.Duration != 10*time.Millisecond {
		t.Errorf("duration: %v", r.Duration)
	}
}

func TestOutcomeOf(t *testing.T) {
	cases := map[Outcome]error{
		OutcomeRendered:      nil,
		OutcomeCanceled:      ErrVisitCanceled,
		OutcomeTransport:     &request.Error{Method: "GET", Path: "/"},
		OutcomeMissingRoot:   &MissingRootError{Selector: "body"},
		OutcomeConfiguration: &permanent.ConfigurationError{Tag: "div"},
		OutcomeObserver:      &ObserverError{Event: events.Render, Err: errors.New("x")},
		OutcomeError:         errors.New("other"),
	}
	for want, err := range cases {
		if got := OutcomeOf(err); got != want {
			t.Errorf("OutcomeOf(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestVisit_ContextCarriesVisitID(t *testing.T) {
	node, _ := dom.ParseDocument(strings.NewReader(emptyPage))
	var seen string
	tr := request.Func(func(ctx context.Context, method, path string, _ *request.Options) (*request.Response, error) {
		seen = kit.GetVisitID(ctx)
		return &request.Response{StatusCode: http.StatusOK, Body: []byte(emptyPage), FinalURL: path}, nil
	})
	e := New(dom.NewDocument(node), tr, WithIDGenerator(idgen.Sequence("vis_")))

	if err := e.Visit(context.Background(), "/p", nil); err != nil {
		t.Fatal(err)
	}
	if seen != "vis_1" {
		t.Errorf("visit id in transport context: %q", seen)
	}
}

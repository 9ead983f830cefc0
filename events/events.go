// Package events is the lifecycle event bus of the transition engine.
//
// Observers register against a target node and an event name. Emit calls
// them synchronously, in registration order, before returning. A cancelable
// event is vetoed by any observer calling PreventDefault; Emit then reports
// proceeded == false. An observer error stops the dispatch and is returned to
// the caller of Emit as-is.
//
//	bus := events.NewBus()
//	off := bus.On(doc.Root(), events.BeforeVisit, func(ev *events.Event) error {
//		if strings.HasPrefix(ev.Detail.Path, "/admin") {
//			ev.PreventDefault()
//		}
//		return nil
//	})
//	defer off()
package events

import (
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/reflinks/request"
)

// Lifecycle event names. They are the wire contract for observers.
const (
	BeforeVisit  = "reflinks:before-visit"
	BeforeCache  = "reflinks:before-cache"
	BeforeRender = "reflinks:before-render"
	Render       = "reflinks:render"

	// PermanentEvicted fires once per permanent element dropped from the
	// cache during restore, with Detail.Root set to the evicted subtree.
	PermanentEvicted = "reflinks:permanent-evicted"
)

// Detail is the payload of a lifecycle event. Which fields are set depends
// on the event:
//
//	before-visit       Path
//	before-cache       Response, Root
//	before-render      Root, NewRoot
//	render             Root
//	permanent-evicted  Root
type Detail struct {
	Path     string
	Response *request.Response
	Root     *html.Node
	NewRoot  *html.Node
}

// Event is one dispatch of a named notification.
type Event struct {
	Name       string
	Target     *html.Node
	Detail     Detail
	Cancelable bool

	canceled bool
}

// PreventDefault vetoes a cancelable event. It is a no-op otherwise.
func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.canceled = true
	}
}

// DefaultPrevented reports whether an observer vetoed the event.
func (e *Event) DefaultPrevented() bool { return e.canceled }

// Observer handles an event. A non-nil error aborts the dispatch.
type Observer func(*Event) error

type key struct {
	target *html.Node
	name   string
}

type registration struct {
	id uint64
	fn Observer
}

// Bus holds observer registrations. The zero value is not usable; use NewBus.
type Bus struct {
	mu        sync.Mutex
	observers map[key][]registration
	nextID    uint64
	cancel    map[string]bool
}

// NewBus creates a bus where BeforeVisit is cancelable.
func NewBus() *Bus {
	return &Bus{
		observers: make(map[key][]registration),
		cancel:    map[string]bool{BeforeVisit: true},
	}
}

// SetCancelable marks name as cancelable (or not) for future dispatches.
func (b *Bus) SetCancelable(name string, cancelable bool) {
	b.mu.Lock()
	b.cancel[name] = cancelable
	b.mu.Unlock()
}

// On registers fn for name on target. The returned function unregisters it
// and may be called more than once.
func (b *Bus) On(target *html.Node, name string, fn Observer) (off func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	k := key{target, name}
	b.observers[k] = append(b.observers[k], registration{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		regs := b.observers[k]
		for i, r := range regs {
			if r.id == id {
				b.observers[k] = append(regs[:i:i], regs[i+1:]...)
				break
			}
		}
		if len(b.observers[k]) == 0 {
			delete(b.observers, k)
		}
	}
}

// Emit dispatches name on target. proceeded is false iff the event is
// cancelable and an observer called PreventDefault. Observers added or
// removed during the dispatch do not affect it.
func (b *Bus) Emit(target *html.Node, name string, detail Detail) (proceeded bool, err error) {
	b.mu.Lock()
	regs := append([]registration(nil), b.observers[key{target, name}]...)
	cancelable := b.cancel[name]
	b.mu.Unlock()

	ev := &Event{Name: name, Target: target, Detail: detail, Cancelable: cancelable}
	for _, r := range regs {
		if err := r.fn(ev); err != nil {
			return !ev.canceled, err
		}
	}
	return !ev.canceled, nil
}

// Len returns the number of observers registered for name on target.
func (b *Bus) Len(target *html.Node, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers[key{target, name}])
}

// Clear drops every registration.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.observers = make(map[key][]registration)
	b.mu.Unlock()
}

// Package component is the behavioral-component registry: named attach and
// detach hooks bound to the elements that declare them.
//
// A component named "timer" is declared by either form:
//
//	<timer>00:10</timer>
//	<div data-component="timer">00:10</div>
//
// Attach and Detach are idempotent: the names of the components attached to
// an element are recorded in its data-reflinks-attached attribute.
package component

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/reflinks/dom"
	"github.com/hazyhaar/reflinks/events"
)

// AttachedAttr records the components currently attached to an element.
const AttachedAttr = "data-reflinks-attached"

// ErrDuplicate is returned when a name is registered twice.
var ErrDuplicate = errors.New("component: duplicate name, already registered")

// ErrInvalidName is returned for names outside [a-z][a-z0-9-]*[a-z0-9].
var ErrInvalidName = errors.New("component: invalid name")

// ConfigurationError reports a precondition violation on registration.
type ConfigurationError struct {
	Name  string
	Cause error
}

func (e *ConfigurationError) Error() string {
	switch {
	case errors.Is(e.Cause, ErrDuplicate):
		return fmt.Sprintf("component: duplicate component [%s] already registered, choose a different name", e.Name)
	case errors.Is(e.Cause, ErrInvalidName):
		return fmt.Sprintf("component: [%s] has an invalid name, use lower case characters, digits and dash", e.Name)
	}
	return fmt.Sprintf("component: [%s]: %v", e.Name, e.Cause)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)

// ValidName reports whether name follows the naming rule.
func ValidName(name string) bool { return namePattern.MatchString(name) }

// Definition holds the lifecycle hooks of a component. Either may be nil.
type Definition struct {
	Attached func(*html.Node)
	Detached func(*html.Node)
}

type entry struct {
	name     string
	selector string
	def      Definition
}

// Registry holds registered components in registration order.
type Registry struct {
	mu    sync.RWMutex
	items []entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds a component. Invalid and duplicate names fail with a
// *ConfigurationError wrapping ErrInvalidName or ErrDuplicate.
func (r *Registry) Register(name string, def Definition) error {
	if !ValidName(name) {
		return &ConfigurationError{Name: name, Cause: ErrInvalidName}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.items {
		if e.name == name {
			return &ConfigurationError{Name: name, Cause: ErrDuplicate}
		}
	}
	r.items = append(r.items, entry{
		name:     name,
		selector: Selector(name),
		def:      def,
	})
	return nil
}

// Selector returns the selector matching the declarations of name.
func Selector(name string) string {
	return fmt.Sprintf(`%s,[data-component="%s"]`, name, name)
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.items))
	for i, e := range r.items {
		names[i] = e.name
	}
	return names
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}

// Attach runs the Attached hook of every component declared under root
// (inclusive) that is not attached yet.
func (r *Registry) Attach(root *html.Node) {
	if root == nil {
		return
	}
	for _, e := range r.snapshot() {
		for _, n := range dom.QuerySelectorAll(root, e.selector) {
			if isAttached(n, e.name) {
				continue
			}
			markAttached(n, e.name)
			if e.def.Attached != nil {
				e.def.Attached(n)
			}
		}
	}
}

// Detach runs the Detached hook of every component attached under root
// (inclusive) and clears the marker.
func (r *Registry) Detach(root *html.Node) {
	if root == nil {
		return
	}
	for _, e := range r.snapshot() {
		for _, n := range dom.QuerySelectorAll(root, e.selector) {
			if !isAttached(n, e.name) {
				continue
			}
			unmarkAttached(n, e.name)
			if e.def.Detached != nil {
				e.def.Detached(n)
			}
		}
	}
}

// Bind wires the registry to the lifecycle events fired on target: the
// outgoing root is detached on before-render, the new root attached on render
// and evicted permanent elements detached.
func (r *Registry) Bind(bus *events.Bus, target *html.Node) (unbind func()) {
	offs := []func(){
		bus.On(target, events.BeforeRender, func(ev *events.Event) error {
			r.Detach(ev.Detail.Root)
			return nil
		}),
		bus.On(target, events.Render, func(ev *events.Event) error {
			r.Attach(ev.Detail.Root)
			return nil
		}),
		bus.On(target, events.PermanentEvicted, func(ev *events.Event) error {
			r.Detach(ev.Detail.Root)
			return nil
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func (r *Registry) snapshot() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entry(nil), r.items...)
}

func isAttached(n *html.Node, name string) bool {
	for _, v := range strings.Fields(dom.Attr(n, AttachedAttr)) {
		if v == name {
			return true
		}
	}
	return false
}

func markAttached(n *html.Node, name string) {
	names := strings.Fields(dom.Attr(n, AttachedAttr))
	dom.SetAttr(n, AttachedAttr, strings.Join(append(names, name), " "))
}

func unmarkAttached(n *html.Node, name string) {
	var kept []string
	for _, v := range strings.Fields(dom.Attr(n, AttachedAttr)) {
		if v != name {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		dom.RemoveAttr(n, AttachedAttr)
		return
	}
	dom.SetAttr(n, AttachedAttr, strings.Join(kept, " "))
}

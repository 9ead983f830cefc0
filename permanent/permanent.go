// Package permanent keeps elements marked as permanent alive across root
// swaps.
//
// Capture runs on the outgoing root before it is replaced: each marked element
// is swapped for an empty placeholder and the original, now detached, is owned
// by the cache. Restore runs on the live document after the swap: each cached
// element replaces the live element with the same id when that element is
// still marked, and is evicted otherwise.
package permanent

import (
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/reflinks/dom"
)

// Default marker: data-reflinks="permanent".
const (
	DefaultMarkerAttr  = "data-reflinks"
	DefaultMarkerValue = "permanent"
)

// ConfigurationError reports a permanent element without an id.
type ConfigurationError struct {
	Tag string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("permanent: permanent element <%s> must have an id", e.Tag)
}

// Cache maps element ids to detached subtrees.
type Cache struct {
	mu    sync.Mutex
	attr  string
	value string
	byID  map[string]*html.Node
	order []string
}

// Option configures a Cache.
type Option func(*Cache)

// WithMarker changes the marker attribute and value. An empty value matches
// a bare attribute. An empty attr keeps the default marker.
func WithMarker(attr, value string) Option {
	return func(c *Cache) {
		if attr == "" {
			return
		}
		c.attr = attr
		c.value = value
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		attr:  DefaultMarkerAttr,
		value: DefaultMarkerValue,
		byID:  make(map[string]*html.Node),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Marked reports whether n carries the permanent marker.
func (c *Cache) Marked(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && dom.HasAttr(n, c.attr) && dom.Attr(n, c.attr) == c.value
}

// Selector returns the CSS selector matching marked elements.
func (c *Cache) Selector() string {
	return fmt.Sprintf(`[%s="%s"]`, c.attr, c.value)
}

// Capture moves every marked element under root (inclusive) into the cache
// and leaves a childless copy in its place. A marked element nested in
// another one travels with its ancestor. An element without an id fails the
// whole capture before anything is moved.
func (c *Cache) Capture(root *html.Node) error {
	if root == nil {
		return nil
	}
	var found []*html.Node
	for _, n := range dom.QuerySelectorAll(root, c.Selector()) {
		if hasMarkedAncestor(c, n, root) {
			continue
		}
		if dom.Attr(n, "id") == "" {
			return &ConfigurationError{Tag: n.Data}
		}
		found = append(found, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range found {
		id := dom.Attr(n, "id")
		if n.Parent != nil {
			dom.ReplaceWith(n, c.placeholder(n, id))
		}
		if _, ok := c.byID[id]; !ok {
			c.order = append(c.order, id)
		}
		c.byID[id] = n
	}
	return nil
}

// Restore puts cached elements back into document in capture order and
// evicts entries with no marked live counterpart. The evicted subtrees are
// returned and no longer owned by the cache.
func (c *Cache) Restore(document *html.Node) []*html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []*html.Node
	kept := c.order[:0]
	for _, id := range c.order {
		cached := c.byID[id]
		live := dom.GetElementByID(document, id)
		switch {
		case live == cached:
			kept = append(kept, id)
		case c.Marked(live):
			dom.ReplaceWith(live, cached)
			kept = append(kept, id)
		default:
			delete(c.byID, id)
			evicted = append(evicted, cached)
		}
	}
	c.order = kept
	return evicted
}

// Revert undoes a Capture on root: every placeholder left under root is
// swapped back for its cached element. Entries stay cached.
func (c *Cache) Revert(root *html.Node) {
	if root == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.order {
		cached := c.byID[id]
		live := dom.GetElementByID(root, id)
		if live != nil && live != cached && c.Marked(live) {
			dom.ReplaceWith(live, cached)
		}
	}
}

// placeholder is an empty element with the tag, id and marker of n. Other
// attributes stay with the cached original.
func (c *Cache) placeholder(n *html.Node, id string) *html.Node {
	p := &html.Node{Type: html.ElementNode, DataAtom: n.DataAtom, Data: n.Data, Namespace: n.Namespace}
	dom.SetAttr(p, "id", id)
	dom.SetAttr(p, c.attr, c.value)
	return p
}

// IDs returns the cached ids in capture order.
func (c *Cache) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.order...)
}

// Get returns the cached subtree for id.
func (c *Cache) Get(id string) (*html.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.byID[id]
	return n, ok
}

// Len returns the number of cached elements.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.byID = make(map[string]*html.Node)
	c.order = nil
	c.mu.Unlock()
}

func hasMarkedAncestor(c *Cache, n, root *html.Node) bool {
	if n == root {
		return false
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if c.Marked(p) {
			return true
		}
		if p == root {
			break
		}
	}
	return false
}

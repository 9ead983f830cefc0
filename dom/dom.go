// Package dom implements the small set of tree operations the transition
// engine needs on top of golang.org/x/net/html: single-root parsing, node
// removal and replacement, attribute helpers and a CSS selector subset.
//
// Every node handled here is a plain *html.Node. Moving a node between trees
// always detaches it first, so a subtree is never reachable from two parents.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrMultipleRoots is returned by ParseElement when the snippet has more than
// one top-level node.
var ErrMultipleRoots = errors.New("dom: HTML string contains multiple root nodes")

// ParseElement parses a snippet that must contain a single root node and
// returns it detached. Whitespace-only text between top-level nodes is
// ignored. An empty snippet yields (nil, nil).
func ParseElement(s string) (*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}

	var root *html.Node
	for _, n := range nodes {
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) == "" {
			continue
		}
		if root != nil {
			return nil, ErrMultipleRoots
		}
		root = n
	}
	return root, nil
}

// ParseDocument parses a full HTML document. The returned node is the
// html.DocumentNode; its <html> element is a child.
func ParseDocument(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse document: %w", err)
	}
	return doc, nil
}

// Parse picks ParseDocument for bodies that start with a doctype or an
// <html>, <head> or <body> tag (leading comments skipped) and ParseElement
// for anything else.
func Parse(body []byte) (*html.Node, error) {
	if IsFullDocument(body) {
		return ParseDocument(bytes.NewReader(body))
	}
	n, err := ParseElement(string(body))
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.New("dom: empty response body")
	}
	return n, nil
}

var documentPrefixes = [][]byte{[]byte("<!doctype"), []byte("<html"), []byte("<head"), []byte("<body")}

// IsFullDocument reports whether body looks like a complete HTML document,
// or a head/body-only page the document parser completes.
func IsFullDocument(body []byte) bool {
	rest := bytes.TrimSpace(body)
	for bytes.HasPrefix(rest, []byte("<!--")) {
		end := bytes.Index(rest, []byte("-->"))
		if end < 0 {
			return false
		}
		rest = bytes.TrimSpace(rest[end+3:])
	}
	if len(rest) > 64 {
		rest = rest[:64]
	}
	lower := bytes.ToLower(rest)
	for _, p := range documentPrefixes {
		if bytes.HasPrefix(lower, p) && isTagEnd(lower[len(p):]) {
			return true
		}
	}
	return false
}

func isTagEnd(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	switch b[0] {
	case '>', ' ', '\t', '\n', '\r', '\f', '/':
		return true
	}
	return false
}

// CheckHTML reports whether s survives a parse/render round trip unchanged,
// i.e. the parser did not have to repair it.
func CheckHTML(s string) bool {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return false
	}
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return false
		}
	}
	return buf.String() == s
}

// Remove detaches n from its parent. It returns false when n had no parent.
func Remove(n *html.Node) bool {
	if n == nil || n.Parent == nil {
		return false
	}
	n.Parent.RemoveChild(n)
	return true
}

// ReplaceWith puts repl where old is and leaves old detached. repl is
// detached from its current parent first.
func ReplaceWith(old, repl *html.Node) {
	parent := old.Parent
	if parent == nil || old == repl {
		return
	}
	Remove(repl)
	parent.InsertBefore(repl, old)
	parent.RemoveChild(old)
}

// Attr returns the value of attribute key, or "" when absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether n carries attribute key.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or adds attribute key.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key if present.
func RemoveAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// GetElementByID returns the first element under root (inclusive) whose id
// equals id.
func GetElementByID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && Attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Text concatenates the text nodes under n.
func Text(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// Render serialises n and its subtree.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	html.Render(&buf, n)
	return buf.String()
}

// InnerHTML serialises the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		html.Render(&buf, c)
	}
	return buf.String()
}

// walk visits n and its descendants in document order. Returning false from
// fn stops the walk.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps the live tree of a session. The zero value is not usable;
// build one with NewDocument or ParseDocument.
type Document struct {
	node *html.Node
}

// NewDocument wraps an html.DocumentNode (as returned by ParseDocument).
func NewDocument(node *html.Node) *Document {
	return &Document{node: node}
}

// Root returns the html.DocumentNode. Lifecycle events are fired on it.
func (d *Document) Root() *html.Node { return d.node }

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node { return findAtom(d.node, atom.Head) }

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node { return findAtom(d.node, atom.Body) }

// Title returns the trimmed text of the first <title> in the head.
func (d *Document) Title() string {
	head := d.Head()
	if head == nil {
		return ""
	}
	t := findAtom(head, atom.Title)
	if t == nil {
		return ""
	}
	return strings.TrimSpace(Text(t))
}

// SetTitle replaces the document title text, creating <title> (and <head>)
// when missing.
func (d *Document) SetTitle(title string) {
	head := d.Head()
	if head == nil {
		htmlEl := findAtom(d.node, atom.Html)
		if htmlEl == nil {
			return
		}
		head = &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
		htmlEl.InsertBefore(head, htmlEl.FirstChild)
	}
	t := findAtom(head, atom.Title)
	if t == nil {
		t = &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		head.AppendChild(t)
	}
	for c := t.FirstChild; c != nil; {
		next := c.NextSibling
		t.RemoveChild(c)
		c = next
	}
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
}

// QuerySelector runs QuerySelector from the document root.
func (d *Document) QuerySelector(sel string) *html.Node { return QuerySelector(d.node, sel) }

// GetElementByID looks id up anywhere in the document.
func (d *Document) GetElementByID(id string) *html.Node { return GetElementByID(d.node, id) }

// HTML renders the whole document.
func (d *Document) HTML() string { return Render(d.node) }

func findAtom(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindHead returns the <head> of a parsed page, or the page node itself when
// it is a fragment without one.
func FindHead(page *html.Node) *html.Node {
	if h := findAtom(page, atom.Head); h != nil {
		return h
	}
	return page
}

// Package head reconciles the <title> and <meta> elements of the live
// document with those of an incoming page.
package head

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/reflinks/dom"
)

// UpdateTitle copies the first <title> of newHead into doc. It returns false
// and leaves doc untouched when newHead has no title.
func UpdateTitle(doc *dom.Document, newHead *html.Node) bool {
	if newHead == nil {
		return false
	}
	t := dom.QuerySelector(newHead, "title")
	if t == nil {
		return false
	}
	doc.SetTitle(strings.TrimSpace(dom.Text(t)))
	return true
}

// MergeMeta moves every <meta> of newHead into the live head. A meta whose
// name matches a live meta replaces it; others are appended. Metas without a
// name are always appended.
func MergeMeta(doc *dom.Document, newHead *html.Node) {
	liveHead := doc.Head()
	if liveHead == nil || newHead == nil {
		return
	}
	for _, meta := range dom.QuerySelectorAll(newHead, "meta") {
		name := dom.Attr(meta, "name")
		if name != "" {
			if existing := namedMeta(liveHead, name); existing != nil {
				dom.ReplaceWith(existing, meta)
				continue
			}
		}
		dom.Remove(meta)
		liveHead.AppendChild(meta)
	}
}

// Metas returns the live metas carrying name.
func Metas(doc *dom.Document, name string) []*html.Node {
	head := doc.Head()
	if head == nil {
		return nil
	}
	var out []*html.Node
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Meta && dom.Attr(c, "name") == name {
			out = append(out, c)
		}
	}
	return out
}

func namedMeta(liveHead *html.Node, name string) *html.Node {
	for _, m := range dom.QuerySelectorAll(liveHead, "meta") {
		if dom.Attr(m, "name") == name {
			return m
		}
	}
	return nil
}

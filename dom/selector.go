package dom

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Supported selector subset:
//   - tag: "body", "main", "my-component"
//   - universal: "*"
//   - #id: "#main-content"
//   - .class: ".content" (repeatable: ".a.b")
//   - [attr], [attr=val], [attr="val"] (repeatable)
//   - compounds: "div#main.content[data-x=y]"
//   - descendant combinator (whitespace): "main article"
//   - groups: "timer,[data-component=\"timer\"]"
//
// Matching is inclusive of the root passed to QuerySelector/QuerySelectorAll.

// ErrUnsupportedSelector is wrapped by ValidateSelector errors.
var ErrUnsupportedSelector = errors.New("dom: unsupported selector")

// ValidateSelector rejects selectors outside the supported subset: child and
// sibling combinators, pseudo-classes, empty groups and unclosed brackets.
// Unsupported syntax would otherwise parse as a tag that never matches.
func ValidateSelector(sel string) error {
	fail := func(reason string) error {
		return fmt.Errorf("%w %q: %s", ErrUnsupportedSelector, sel, reason)
	}
	if strings.TrimSpace(sel) == "" {
		return fail("empty")
	}
	for _, group := range splitOutsideBrackets(sel, ',') {
		if group == "" {
			return fail("empty group")
		}
	}
	depth := 0
	var quote byte
	for i := 0; i < len(sel); i++ {
		ch := sel[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case depth > 0:
			switch ch {
			case '"', '\'':
				quote = ch
			case ']':
				depth--
			case '[':
				return fail("nested [")
			}
		case ch == '[':
			depth++
		case ch == ']':
			return fail("unmatched ]")
		case strings.IndexByte(">+~:()", ch) >= 0:
			return fail(fmt.Sprintf("%q is not supported", ch))
		}
	}
	if depth > 0 || quote != 0 {
		return fail("unclosed [")
	}
	return nil
}

// QuerySelector returns the first element under root (inclusive) matching
// sel, in document order.
func QuerySelector(root *html.Node, sel string) *html.Node {
	groups := parseSelector(sel)
	if len(groups) == 0 || root == nil {
		return nil
	}
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if matchesAny(n, groups) {
			found = n
			return false
		}
		return true
	})
	return found
}

// QuerySelectorAll returns every element under root (inclusive) matching
// sel, in document order and without duplicates.
func QuerySelectorAll(root *html.Node, sel string) []*html.Node {
	groups := parseSelector(sel)
	if len(groups) == 0 || root == nil {
		return nil
	}
	var results []*html.Node
	walk(root, func(n *html.Node) bool {
		if matchesAny(n, groups) {
			results = append(results, n)
		}
		return true
	})
	return results
}

// Matches reports whether n matches sel. Descendant chains are resolved
// against n's full ancestry.
func Matches(n *html.Node, sel string) bool {
	return matchesAny(n, parseSelector(sel))
}

// chain is one comma-separated group: compounds[len-1] must match the
// element, earlier compounds must match some ancestor in order.
type chain []compound

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	key    string
	val    string
	hasVal bool
}

func parseSelector(sel string) []chain {
	var groups []chain
	for _, group := range splitOutsideBrackets(sel, ',') {
		var c chain
		for _, part := range fieldsOutsideBrackets(group) {
			c = append(c, parseCompound(part))
		}
		if len(c) > 0 {
			groups = append(groups, c)
		}
	}
	return groups
}

// parseCompound parses "tag#id.class[attr=val]" in any order after the tag.
func parseCompound(s string) compound {
	var c compound
	i := 0
	for i < len(s) && !strings.ContainsRune("#.[", rune(s[i])) {
		i++
	}
	c.tag = strings.ToLower(s[:i])
	if c.tag == "*" {
		c.tag = ""
	}

	for i < len(s) {
		switch s[i] {
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				end = len(s) - i
			}
			body := s[i+1 : i+end]
			i += end + 1
			var am attrMatch
			if eq := strings.IndexByte(body, '='); eq >= 0 {
				am.key = strings.TrimSpace(body[:eq])
				am.val = strings.Trim(strings.TrimSpace(body[eq+1:]), `"'`)
				am.hasVal = true
			} else {
				am.key = strings.TrimSpace(body)
			}
			c.attrs = append(c.attrs, am)
		case '#', '.':
			kind := s[i]
			j := i + 1
			for j < len(s) && !strings.ContainsRune("#.[", rune(s[j])) {
				j++
			}
			if kind == '#' {
				c.id = s[i+1 : j]
			} else {
				c.classes = append(c.classes, s[i+1:j])
			}
			i = j
		default:
			i++
		}
	}
	return c
}

func matchesAny(n *html.Node, groups []chain) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range groups {
		if matchesChain(n, c) {
			return true
		}
	}
	return false
}

func matchesChain(n *html.Node, c chain) bool {
	last := len(c) - 1
	if !matchesCompound(n, c[last]) {
		return false
	}
	cur := n
	for i := last - 1; i >= 0; i-- {
		cur = ancestorMatching(cur, c[i])
		if cur == nil {
			return false
		}
	}
	return true
}

func ancestorMatching(n *html.Node, c compound) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && matchesCompound(p, c) {
			return p
		}
	}
	return nil
}

func matchesCompound(n *html.Node, c compound) bool {
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	if c.id != "" && Attr(n, "id") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(Attr(n, "class"))
		for _, want := range c.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	for _, am := range c.attrs {
		if !HasAttr(n, am.key) {
			return false
		}
		if am.hasVal && Attr(n, am.key) != am.val {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// splitOutsideBrackets splits s on sep, ignoring separators inside [...].
func splitOutsideBrackets(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

// fieldsOutsideBrackets splits s on whitespace, ignoring whitespace inside [...].
func fieldsOutsideBrackets(s string) []string {
	var fields []string
	var cur strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '[':
			depth++
		case ch == ']' && depth > 0:
			depth--
		case (ch == ' ' || ch == '\t' || ch == '\n') && depth == 0:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteByte(ch)
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

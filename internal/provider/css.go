package provider

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// selector is the small CSS subset the selector provider needs: a single
// compound selector of tag, classes, id and attribute predicates, e.g.
//
//	article
//	h3.title
//	a[href*='/journal/']
//	time[datetime]
//
// Combinators (descendant, child) are not supported; matching is applied to
// every node under a card, which is what per-card field extraction wants.
type selector struct {
	tag   string
	id    string
	class []string
	attrs []attrPred
}

type attrPred struct {
	key string
	op  byte // 0: present, '=': equals, '*': contains
	val string
}

func parseSelector(s string) (selector, error) {
	var sel selector
	s = strings.TrimSpace(s)
	if s == "" {
		return sel, fmt.Errorf("empty selector")
	}

	i := 0
	readName := func() string {
		start := i
		for i < len(s) && s[i] != '.' && s[i] != '#' && s[i] != '[' {
			i++
		}
		return s[start:i]
	}

	if s[0] != '.' && s[0] != '#' && s[0] != '[' {
		sel.tag = strings.ToLower(readName())
	}
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			name := readName()
			if name == "" {
				return sel, fmt.Errorf("selector %q: empty class", s)
			}
			sel.class = append(sel.class, name)
		case '#':
			i++
			name := readName()
			if name == "" {
				return sel, fmt.Errorf("selector %q: empty id", s)
			}
			sel.id = name
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return sel, fmt.Errorf("selector %q: unterminated attribute", s)
			}
			body := s[i+1 : i+end]
			i += end + 1
			pred, err := parseAttrPred(body)
			if err != nil {
				return sel, fmt.Errorf("selector %q: %w", s, err)
			}
			sel.attrs = append(sel.attrs, pred)
		default:
			return sel, fmt.Errorf("selector %q: unexpected %q", s, s[i])
		}
	}
	return sel, nil
}

func parseAttrPred(body string) (attrPred, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return attrPred{}, fmt.Errorf("empty attribute predicate")
	}
	for _, op := range []struct {
		tok string
		op  byte
	}{{"*=", '*'}, {"=", '='}} {
		if idx := strings.Index(body, op.tok); idx >= 0 {
			key := strings.TrimSpace(body[:idx])
			val := strings.TrimSpace(body[idx+len(op.tok):])
			val = strings.Trim(val, `'"`)
			if key == "" {
				return attrPred{}, fmt.Errorf("attribute predicate %q: empty key", body)
			}
			return attrPred{key: strings.ToLower(key), op: op.op, val: val}, nil
		}
	}
	return attrPred{key: strings.ToLower(body)}, nil
}

func (sel selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.tag != "" && sel.tag != n.Data {
		return false
	}
	if sel.id != "" && attrVal(n, "id") != sel.id {
		return false
	}
	if len(sel.class) > 0 {
		have := strings.Fields(attrVal(n, "class"))
		for _, want := range sel.class {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, p := range sel.attrs {
		v, ok := lookupAttr(n, p.key)
		if !ok {
			return false
		}
		switch p.op {
		case '=':
			if v != p.val {
				return false
			}
		case '*':
			if !strings.Contains(v, p.val) {
				return false
			}
		}
	}
	return true
}

func findAll(root *html.Node, sel selector) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if sel.matches(n) {
			out = append(out, n)
			// Cards don't nest; don't descend into a match.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, sel selector) *html.Node {
	var found *html.Node
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if sel.matches(n) {
			found = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return found
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attrVal(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

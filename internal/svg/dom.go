package svg

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	svgNamespace   = "http://www.w3.org/2000/svg"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
)

var (
	schemeRe    = regexp.MustCompile(`^[a-z][a-z0-9+.\-]*:`)
	styleURLRe  = regexp.MustCompile(`(?i)url\(\s*['"]?\s*([^)'"\s]*)`)
	deniedNames = func() map[string]bool {
		m := make(map[string]bool, len(DeniedTags))
		for _, t := range DeniedTags {
			m[strings.ToLower(t)] = true
		}
		return m
	}()
)

// domStage parses markup as an HTML fragment, so an <svg> root lands in
// foreign content, lets transform edit the tree and renders it back.
type domStage struct {
	name      string
	transform func(nodes []*html.Node) []*html.Node
}

func (s *domStage) Name() string { return s.name }

func (s *domStage) Apply(markup []byte) ([]byte, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(markup), body)
	if err != nil {
		return nil, err
	}
	nodes = s.transform(nodes)

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// prune drops every node for which keep returns false, together with its
// subtree. keep may edit the node it is given.
func prune(nodes []*html.Node, keep func(*html.Node) bool) []*html.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if !keep(n) {
			continue
		}
		pruneChildren(n, keep)
		out = append(out, n)
	}
	return out
}

func pruneChildren(n *html.Node, keep func(*html.Node) bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if keep(c) {
			pruneChildren(c, keep)
		} else {
			n.RemoveChild(c)
		}
		c = next
	}
}

// filterAttrs keeps the attributes of element nodes for which keep is true.
func filterAttrs(nodes []*html.Node, keep func(html.Attribute) bool) []*html.Node {
	return prune(nodes, func(n *html.Node) bool {
		if n.Type != html.ElementNode || len(n.Attr) == 0 {
			return true
		}
		attrs := n.Attr[:0]
		for _, a := range n.Attr {
			if keep(a) {
				attrs = append(attrs, a)
			}
		}
		n.Attr = attrs
		return true
	})
}

func attrName(a html.Attribute) string {
	if a.Namespace != "" {
		return strings.ToLower(a.Namespace + ":" + a.Key)
	}
	return strings.ToLower(a.Key)
}

func isNamespaceDecl(a html.Attribute) bool {
	switch attrName(a) {
	case "xmlns":
		return a.Val == svgNamespace
	case "xmlns:xlink":
		return a.Val == xlinkNamespace
	}
	return false
}

// compactValue lower-cases v and strips whitespace and control characters,
// which browsers ignore inside a scheme.
func compactValue(v string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, v)
}

func hasScheme(v string) bool {
	return schemeRe.MatchString(compactValue(v))
}

func hasExternalURL(v string) bool {
	for _, m := range styleURLRe.FindAllStringSubmatch(v, -1) {
		if !strings.HasPrefix(m[1], "#") {
			return true
		}
	}
	return false
}

func dropComments(nodes []*html.Node) []*html.Node {
	return prune(nodes, func(n *html.Node) bool {
		return n.Type != html.CommentNode
	})
}

func dropEventHandlers(nodes []*html.Node) []*html.Node {
	return filterAttrs(nodes, func(a html.Attribute) bool {
		return !strings.HasPrefix(attrName(a), "on")
	})
}

func dropSchemeValues(nodes []*html.Node) []*html.Node {
	return filterAttrs(nodes, func(a html.Attribute) bool {
		if isNamespaceDecl(a) || isFragment(a.Val) {
			return true
		}
		if hasExternalURL(a.Val) {
			return false
		}
		if attrName(a) == "style" {
			return true
		}
		return !hasScheme(a.Val)
	})
}

func dropDeniedElements(nodes []*html.Node) []*html.Node {
	return prune(nodes, func(n *html.Node) bool {
		return n.Type != html.ElementNode || !deniedNames[strings.ToLower(n.Data)]
	})
}

func dropExternalReferences(nodes []*html.Node) []*html.Node {
	return filterAttrs(nodes, func(a html.Attribute) bool {
		switch attrName(a) {
		case "href", "xlink:href", "src":
			return isFragment(a.Val)
		}
		return true
	})
}

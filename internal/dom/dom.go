// Package dom exposes a read-only tree view over a fetched HTML document.
//
// The extraction heuristics only ever talk to the Node interface, so they can
// run against a parsed page or against a hand-built tree in tests. Parsing is
// lenient: malformed or truncated markup yields a partial tree, never an error.
package dom

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Node is one element or text node of a document.
type Node interface {
	// Parent returns nil at the top of the tree.
	Parent() Node
	// Ancestors returns up to n ancestors, nearest first. n <= 0 means all.
	Ancestors(n int) []Node
	// NextSiblings returns up to limit following element siblings.
	NextSiblings(limit int) []Node
	// PreviousNodes returns up to limit elements and non-blank text nodes
	// that precede this node, nearest first. The node's own ancestors are
	// skipped because their text contains the node itself.
	PreviousNodes(limit int) []Node
	// DescendantsOfTag returns descendant elements with one of the given
	// tag names, in document order.
	DescendantsOfTag(tags ...string) []Node
	// Text returns the trimmed text content; each inner line is trimmed and
	// blank lines are dropped.
	Text() string
	// Tag returns the lower-case element name, or "" for text nodes.
	Tag() string
	Attr(name string) (string, bool)
	IsText() bool
}

// Document is a parsed page.
type Document struct {
	doc *goquery.Document
}

// Parse reads markup from r. Read errors keep whatever was read so far.
func Parse(r io.Reader) *Document {
	data, _ := io.ReadAll(r)
	return ParseBytes(data)
}

// ParseString parses markup held in a string.
func ParseString(s string) *Document {
	return ParseBytes([]byte(s))
}

// ParseBytes parses markup held in memory.
func ParseBytes(data []byte) *Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		// html.Parse only fails on reader errors; an empty tree keeps
		// traversal working.
		doc = goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}
	return &Document{doc: doc}
}

// FindAllText returns text nodes whose raw content satisfies pred, in
// document order. Script and style contents are not visible text.
func (d *Document) FindAllText(pred func(string) bool) []Node {
	var out []Node
	for _, root := range d.doc.Nodes {
		walk(root, func(n *html.Node) bool {
			if n.Type == html.ElementNode && invisible(n) {
				return false
			}
			if n.Type == html.TextNode && pred(n.Data) {
				out = append(out, d.wrap(n))
			}
			return true
		})
	}
	return out
}

// find returns elements matching a CSS selector.
func (d *Document) find(selector string) []Node {
	var out []Node
	d.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, d.wrap(sel.Get(0)))
	})
	return out
}

func (d *Document) wrap(n *html.Node) Node {
	if n == nil {
		return nil
	}
	return &htmlNode{n: n, doc: d}
}

type htmlNode struct {
	n   *html.Node
	doc *Document
}

func (h *htmlNode) Parent() Node {
	p := h.n.Parent
	if p == nil || p.Type == html.DocumentNode {
		return nil
	}
	return h.doc.wrap(p)
}

func (h *htmlNode) Ancestors(n int) []Node {
	var out []Node
	for p := h.Parent(); p != nil; p = p.Parent() {
		if n > 0 && len(out) >= n {
			break
		}
		out = append(out, p)
	}
	return out
}

func (h *htmlNode) NextSiblings(limit int) []Node {
	var out []Node
	for s := h.n.NextSibling; s != nil && len(out) < limit; s = s.NextSibling {
		if s.Type == html.ElementNode {
			out = append(out, h.doc.wrap(s))
		}
	}
	return out
}

func (h *htmlNode) PreviousNodes(limit int) []Node {
	ancestors := make(map[*html.Node]bool)
	for p := h.n.Parent; p != nil; p = p.Parent {
		ancestors[p] = true
	}

	var out []Node
	cur := h.n
	for len(out) < limit {
		if cur.PrevSibling != nil {
			cur = lastDescendant(cur.PrevSibling)
		} else {
			cur = cur.Parent
			if cur == nil {
				break
			}
		}
		if ancestors[cur] || insideInvisible(cur) {
			continue
		}
		switch cur.Type {
		case html.ElementNode:
			out = append(out, h.doc.wrap(cur))
		case html.TextNode:
			if strings.TrimSpace(cur.Data) != "" {
				out = append(out, h.doc.wrap(cur))
			}
		}
	}
	return out
}

func (h *htmlNode) DescendantsOfTag(tags ...string) []Node {
	if h.n.Type != html.ElementNode || len(tags) == 0 {
		return nil
	}
	var out []Node
	h.doc.doc.FindNodes(h.n).Find(strings.Join(tags, ", ")).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, h.doc.wrap(sel.Get(0)))
	})
	return out
}

func (h *htmlNode) Text() string {
	if h.n.Type == html.TextNode {
		return normalizeText(h.n.Data)
	}
	var b strings.Builder
	collectText(&b, h.n)
	return normalizeText(b.String())
}

func (h *htmlNode) Tag() string {
	if h.n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(h.n.Data)
}

func (h *htmlNode) Attr(name string) (string, bool) {
	for _, a := range h.n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func (h *htmlNode) IsText() bool {
	return h.n.Type == html.TextNode
}

// normalizeText trims every line of s, drops blank lines and joins the rest
// with newlines.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// walk visits n and its descendants in document order. Returning false from
// fn skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// collectText writes the visible text under n. Block-level elements start
// and end a line, so "<p>Show: 8 pm</p><p>Doors: 7 pm</p>" reads as two lines.
func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if invisible(n) {
			return
		}
	}

	block := n.Type == html.ElementNode && blockTags[strings.ToLower(n.Data)]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

func lastDescendant(n *html.Node) *html.Node {
	for n.LastChild != nil {
		n = n.LastChild
	}
	return n
}

func invisible(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

func insideInvisible(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && invisible(p) {
			return true
		}
	}
	return false
}

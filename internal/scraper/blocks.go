package scraper

import (
	"strings"

	"github.com/pfrederiksen/uct-events/internal/dom"
)

// maxClimb bounds how far above an anchor the block root may be.
const maxClimb = 6

var structuralTags = map[string]bool{
	"div":     true,
	"section": true,
	"article": true,
	"li":      true,
	"ul":      true,
	"ol":      true,
	"tr":      true,
	"td":      true,
	"table":   true,
	"main":    true,
	"aside":   true,
	"header":  true,
	"footer":  true,
	"dl":      true,
	"dd":      true,
	"figure":  true,
}

// Document is the part of the document model the locator needs.
type Document interface {
	FindAllText(pred func(string) bool) []dom.Node
}

// Block is the region of the page that belongs to one anchor occurrence.
type Block struct {
	// Root is the nearest structural ancestor of Anchor.
	Root dom.Node
	// Anchor is the text node holding the anchor phrase.
	Anchor dom.Node
}

// LocateBlocks returns one block per anchor occurrence, in document order.
// Blocks are not deduplicated: two anchors may share a root.
func LocateBlocks(doc Document, anchors []string) []Block {
	nodes := doc.FindAllText(func(s string) bool {
		return containsAny(s, anchors)
	})

	blocks := make([]Block, 0, len(nodes))
	for _, n := range nodes {
		blocks = append(blocks, Block{Root: blockRoot(n), Anchor: n})
	}
	return blocks
}

func blockRoot(anchor dom.Node) dom.Node {
	for _, a := range anchor.Ancestors(maxClimb) {
		if structuralTags[a.Tag()] {
			return a
		}
	}
	if p := anchor.Parent(); p != nil {
		return p
	}
	// degenerate block: nothing encloses the anchor
	return anchor
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

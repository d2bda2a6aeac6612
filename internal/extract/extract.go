package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Cell is the text content of one table cell in the three shapes the field
// extractors need.
type Cell struct {
	// Lines holds the non-empty lines of the cell text, each trimmed and with
	// internal whitespace runs collapsed. <br> and block elements break lines.
	Lines []string
	// Segments holds every non-empty text node, trimmed, in document order.
	Segments []string
	// Anchor is the text of the first <a> in the cell.
	Anchor    string
	HasAnchor bool
}

// Text returns the cell lines joined by newlines.
func (c Cell) Text() string {
	return strings.Join(c.Lines, "\n")
}

// CellFromText builds a Cell from plain text. Segments mirror Lines and no
// anchor is present.
func CellFromText(s string) Cell {
	lines := splitLines(norm.NFKC.String(s))
	return Cell{Lines: lines, Segments: append([]string(nil), lines...)}
}

// CellFromNode walks an element and collects its text.
func CellFromNode(n *html.Node) Cell {
	if n == nil {
		return Cell{}
	}
	var b strings.Builder
	var c Cell
	collectText(&b, &c, n)
	c.Lines = splitLines(b.String())
	return c
}

func collectText(b *strings.Builder, c *Cell, n *html.Node) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript":
			return
		case "br", "hr":
			b.WriteString("\n")
		case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n")
		case "a":
			if !c.HasAnchor {
				c.HasAnchor = true
				c.Anchor = strings.TrimSpace(collapseSpaces(norm.NFKC.String(nodeText(n))))
			}
		}
	}

	if n.Type == html.TextNode {
		data := norm.NFKC.String(n.Data)
		if seg := strings.TrimSpace(collapseSpaces(data)); seg != "" {
			c.Segments = append(c.Segments, seg)
		}
		b.WriteString(strings.ReplaceAll(data, "\r", "\n"))
	}

	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		collectText(b, c, ch)
	}

	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n")
		}
	}
}

// nodeText concatenates every text node below n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for ch := cur.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return b.String()
}

func splitLines(s string) []string {
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(collapseSpaces(line))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\v' || r == '\f' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}

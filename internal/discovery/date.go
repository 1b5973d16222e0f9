package discovery

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxAncestorDepth bounds the walk from a link up to its table row.
const maxAncestorDepth = 64

// FallbackDateLayout is used when the page carries no date next to the link.
const FallbackDateLayout = "2 January 2006"

// ExtractDate returns the trimmed text of the second cell in the table row
// that contains node. ok is false when there is no row, the row has fewer
// than two cells, or the cell is blank.
func ExtractDate(node *html.Node) (date string, ok bool) {
	row := ancestor(node, atom.Tr)
	if row == nil {
		return "", false
	}

	cells := cells(row)
	if len(cells) < 2 {
		return "", false
	}

	text := strings.TrimSpace(goquery.NewDocumentFromNode(cells[1]).Text())
	if text == "" {
		return "", false
	}
	return text, true
}

// FallbackDate formats t the way the run reports a missing provenance date
func FallbackDate(t time.Time) string {
	return t.Format(FallbackDateLayout)
}

func ancestor(node *html.Node, tag atom.Atom) *html.Node {
	if node == nil {
		return nil
	}
	n := node.Parent
	for depth := 0; n != nil && depth < maxAncestorDepth; depth++ {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			return n
		}
		n = n.Parent
	}
	return nil
}

func cells(row *html.Node) []*html.Node {
	var out []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			out = append(out, c)
		}
	}
	return out
}

// Package sheet fetches published spreadsheet pages and extracts the
// text of their table cells.
package sheet

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// textKey holds text that sits next to child elements.
const textKey = "#text"

var skippedTags = map[string]bool{
	"script": true,
	"style":  true,
	"head":   true,
}

// ParseTree converts an HTML document into a generic tree:
//
//   - an element with child elements becomes a map keyed by tag name;
//   - a tag repeated under one parent becomes a []any in document order;
//   - an element holding only text becomes a string;
//   - text mixed with child elements is kept under "#text";
//   - a table cell (td, th) becomes its full text in document order, so
//     inline markup such as <b> or <a> does not reorder the words.
//
// Attributes are dropped.
func ParseTree(r io.Reader) (map[string]any, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	tree, ok := convertNode(doc).(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return tree, nil
}

// cellTags are flattened to text by convertNode.
var cellTags = map[string]bool{"td": true, "th": true}

// blockTags separate their text from neighbouring text inside a cell.
var blockTags = map[string]bool{"br": true, "div": true, "p": true, "li": true}

func convertNode(n *html.Node) any {
	if n.Type == html.ElementNode && cellTags[n.Data] {
		var b strings.Builder
		cellText(n, &b)
		return strings.Join(strings.Fields(b.String()), " ")
	}

	children := make(map[string]any)
	var texts []string

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				texts = append(texts, t)
			}
		case html.ElementNode:
			if skippedTags[c.Data] {
				continue
			}
			addChild(children, c.Data, convertNode(c))
		}
	}

	text := strings.Join(texts, " ")
	if len(children) == 0 {
		return text
	}
	if text != "" {
		children[textKey] = text
	}
	return children
}

func addChild(m map[string]any, tag string, v any) {
	existing, ok := m[tag]
	if !ok {
		m[tag] = v
		return
	}
	if list, ok := existing.([]any); ok {
		m[tag] = append(list, v)
		return
	}
	m[tag] = []any{existing, v}
}

// cellText appends the text below n in sibling order.
func cellText(n *html.Node, b *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode:
			if skippedTags[c.Data] {
				continue
			}
			if blockTags[c.Data] {
				b.WriteByte(' ')
			}
			cellText(c, b)
			if blockTags[c.Data] {
				b.WriteByte(' ')
			}
		}
	}
}

package sheet

import (
	"slices"
	"strings"
)

// ExtractCells walks a tree produced by ParseTree and returns the cleaned
// text of every non-empty <td> cell of every <tr> row. Rows keep document
// order; sibling containers of different tags are visited in tag order.
// Nodes that do not have the expected shape contribute nothing.
func ExtractCells(tree any) []string {
	var out []string
	walk(tree, &out)
	return out
}

func walk(node any, out *[]string) {
	switch n := node.(type) {
	case []any:
		for _, child := range n {
			walk(child, out)
		}
	case map[string]any:
		if rows, ok := n["tr"]; ok {
			for _, row := range asList(rows) {
				*out = append(*out, rowCells(row)...)
			}
		}
		for _, key := range sortedKeys(n) {
			switch key {
			case "tr", "td", "th", textKey:
				continue
			}
			walk(n[key], out)
		}
	}
}

func rowCells(row any) []string {
	m, ok := row.(map[string]any)
	if !ok {
		return nil
	}
	var cells []string
	for _, cell := range asList(m["td"]) {
		if text := CleanCell(textOf(cell)); text != "" {
			cells = append(cells, text)
		}
	}
	return cells
}

// CleanCell collapses whitespace, strips one pair of enclosing
// parentheses and turns en dashes into hyphens.
func CleanCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if enclosedInParens(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return strings.ReplaceAll(s, "–", "-")
}

// enclosedInParens reports whether the opening "(" of s is closed by its
// last byte.
func enclosedInParens(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

func textOf(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case []any:
		parts := make([]string, 0, len(n))
		for _, c := range n {
			parts = append(parts, textOf(c))
		}
		return strings.Join(parts, " ")
	case map[string]any:
		parts := []string{}
		if t, ok := n[textKey].(string); ok {
			parts = append(parts, t)
		}
		for _, key := range sortedKeys(n) {
			if key != textKey {
				parts = append(parts, textOf(n[key]))
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func asList(v any) []any {
	switch n := v.(type) {
	case nil:
		return nil
	case []any:
		return n
	default:
		return []any{n}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

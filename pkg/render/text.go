package render

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/openfroyo/typist/pkg/content"
	"github.com/openfroyo/typist/pkg/engine"
)

// RuleWidth is the width of an <hr/> when the terminal width is unknown.
const RuleWidth = 40

// Text flattens a snapshot into display text. Lines are concatenated the way
// inline fragments are: text lines as typed, null lines as nothing. Elements
// render as text: <br/> breaks the line, <hr/> draws a rule of width cells
// and any other element shows its inner text, or its markup when it has none.
func Text(lines engine.Lines, width int) string {
	var b strings.Builder
	for _, l := range lines {
		switch l.Kind {
		case engine.LineText:
			b.WriteString(l.Text)
		case engine.LineNode:
			b.WriteString(nodeText(l.Node, width))
		}
	}
	return b.String()
}

func nodeText(n engine.Node, width int) string {
	el, ok := n.(*content.Element)
	if !ok {
		return n.String()
	}
	switch el.Name {
	case "br":
		return "\n"
	case "hr":
		if width <= 0 {
			width = RuleWidth
		}
		return "\n" + strings.Repeat("─", width) + "\n"
	}
	if el.Text != "" {
		return el.Text
	}
	return el.String()
}

// Rows splits text into display rows, truncating each to width cells. A
// non-positive width disables truncation.
func Rows(text string, width int) []string {
	rows := strings.Split(text, "\n")
	if width <= 0 {
		return rows
	}
	for i, row := range rows {
		if runewidth.StringWidth(row) > width {
			rows[i] = runewidth.Truncate(row, width, "")
		}
	}
	return rows
}

package engine

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// Splitter breaks text into the units that are typed and erased atomically.
// Joining the units must reproduce the input.
type Splitter func(text string) []string

// SplitCodePoints yields one unit per code point. It is the default splitter.
func SplitCodePoints(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

// SplitGraphemes yields one unit per extended grapheme cluster.
func SplitGraphemes(text string) []string {
	if text == "" {
		return nil
	}
	g := uniseg.NewGraphemes(text)
	out := make([]string, 0, len(text))
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

// SplitWords yields one unit per word, each carrying the whitespace that
// follows it. Leading whitespace forms its own unit.
func SplitWords(text string) []string {
	var (
		out     []string
		current strings.Builder
		inSpace bool
	)
	for _, r := range text {
		space := unicode.IsSpace(r)
		if !space && inSpace && current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
		inSpace = space
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// Splitter names accepted by SplitterByName.
const (
	SplitterCodePoint = "codepoint"
	SplitterGrapheme  = "grapheme"
	SplitterWord      = "word"
)

// SplitterByName resolves a splitter from its configuration name. The empty
// name selects the default.
func SplitterByName(name string) (Splitter, error) {
	switch name {
	case "", SplitterCodePoint:
		return SplitCodePoints, nil
	case SplitterGrapheme:
		return SplitGraphemes, nil
	case SplitterWord:
		return SplitWords, nil
	default:
		return nil, fmt.Errorf("unknown splitter: %s", name)
	}
}

package content

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openfroyo/typist/pkg/engine"
)

// Node is one node of a content tree.
type Node interface {
	compile(c *compiler)
}

// Text is a string typed unit by unit. Empty text compiles to nothing.
type Text string

func (t Text) compile(c *compiler) {
	if t == "" {
		return
	}
	if c.pasting {
		c.out = append(c.out, engine.Paste(engine.TextLine(string(t))))
		return
	}
	c.out = append(c.out, engine.TypeString(string(t)))
}

// Element is an opaque node revealed as a whole line. Use it by pointer: the
// engine compares nodes by identity.
type Element struct {
	// Name is the element kind, e.g. "b", "img" or "hr".
	Name string `json:"name"`

	// Text is the element's inner text. It is never typed unit by unit.
	Text string `json:"text,omitempty"`

	// Attrs are free-form attributes passed through to the renderer.
	Attrs map[string]string `json:"attrs,omitempty"`
}

// NewElement returns an element node.
func NewElement(name, text string, attrs map[string]string) *Element {
	return &Element{Name: name, Text: text, Attrs: attrs}
}

func (e *Element) compile(c *compiler) {
	if c.pasting {
		c.out = append(c.out, engine.Paste(engine.NodeLine(e)))
		return
	}
	c.out = append(c.out, engine.TypeElement(e))
}

// String renders the element as markup, e.g. <a href="/">home</a>.
// Attributes are sorted by key.
func (e *Element) String() string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(e.Name)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, e.Attrs[k])
	}

	if e.Text == "" {
		b.WriteString("/>")
		return b.String()
	}
	b.WriteString(">")
	b.WriteString(e.Text)
	b.WriteString("</")
	b.WriteString(e.Name)
	b.WriteString(">")
	return b.String()
}

// MarshalJSON encodes the element structurally.
func (e *Element) MarshalJSON() ([]byte, error) {
	type alias Element
	return json.Marshal((*alias)(e))
}

// BackspaceNode erases Count units.
type BackspaceNode struct {
	Count int
}

// Backspace returns a node erasing n units.
func Backspace(n int) BackspaceNode {
	return BackspaceNode{Count: n}
}

func (b BackspaceNode) compile(c *compiler) {
	if c.pasting || b.Count <= 0 {
		return
	}
	c.out = append(c.out, engine.Backspace(b.Count))
}

// PauseNode waits for Duration.
type PauseNode struct {
	Duration time.Duration
}

// Pause returns a node waiting for d.
func Pause(d time.Duration) PauseNode {
	return PauseNode{Duration: d}
}

func (p PauseNode) compile(c *compiler) {
	if c.pasting {
		return
	}
	c.out = append(c.out, engine.Pause(p.Duration))
}

// PasteNode reveals every leaf below it at once, one line per leaf.
// Backspaces and pauses inside a paste are ignored.
type PasteNode struct {
	Children []Node
}

// Paste returns a node pasting children.
func Paste(children ...Node) PasteNode {
	return PasteNode{Children: children}
}

func (p PasteNode) compile(c *compiler) {
	prev := c.pasting
	c.pasting = true
	for _, child := range p.Children {
		child.compile(c)
	}
	c.pasting = prev
}

// GroupNode sequences its children.
type GroupNode struct {
	Children []Node
}

// Group returns a node sequencing children.
func Group(children ...Node) GroupNode {
	return GroupNode{Children: children}
}

func (g GroupNode) compile(c *compiler) {
	for _, child := range g.Children {
		child.compile(c)
	}
}

type compiler struct {
	out     []engine.Action
	pasting bool
}

// Tree is an ordered list of content nodes. It implements engine.Content.
type Tree []Node

// Compile walks the tree depth-first and returns its instruction list. Each
// call returns a fresh slice.
func (t Tree) Compile() []engine.Action {
	c := &compiler{}
	for _, n := range t {
		if n != nil {
			n.compile(c)
		}
	}
	return c.out
}

// Static wraps a ready instruction list as content.
func Static(actions ...engine.Action) engine.Content {
	return engine.Actions(actions)
}

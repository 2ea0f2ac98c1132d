package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Node is an opaque, non-text unit of content. The engine never looks inside
// a node: it is typed and erased as a whole.
type Node interface {
	fmt.Stringer
}

// LineKind discriminates the three shapes a typed line can take.
type LineKind uint8

const (
	// LineNull is a fully backspaced line kept as a positional placeholder.
	LineNull LineKind = iota

	// LineText is a partial or complete string.
	LineText

	// LineNode is an opaque node.
	LineNode
)

// Line is one element of the typed-lines buffer. The zero value is a null line.
type Line struct {
	Kind LineKind
	Text string
	Node Node
}

// TextLine returns a text line.
func TextLine(s string) Line {
	return Line{Kind: LineText, Text: s}
}

// NodeLine returns a node line. A nil node yields a null line.
func NodeLine(n Node) Line {
	if n == nil {
		return Line{}
	}
	return Line{Kind: LineNode, Node: n}
}

// IsNull reports whether the line is a null placeholder.
func (l Line) IsNull() bool {
	return l.Kind == LineNull
}

// String renders the line for display. Null lines render empty.
func (l Line) String() string {
	switch l.Kind {
	case LineText:
		return l.Text
	case LineNode:
		return l.Node.String()
	default:
		return ""
	}
}

// MarshalJSON encodes text lines as strings, null lines as null and node
// lines as {"node": "<rendered>"}.
func (l Line) MarshalJSON() ([]byte, error) {
	switch l.Kind {
	case LineText:
		return json.Marshal(l.Text)
	case LineNode:
		if m, ok := l.Node.(json.Marshaler); ok {
			raw, err := m.MarshalJSON()
			if err != nil {
				return nil, err
			}
			return json.Marshal(map[string]json.RawMessage{"node": raw})
		}
		return json.Marshal(map[string]string{"node": l.Node.String()})
	default:
		return []byte("null"), nil
	}
}

// Lines is the typed-lines buffer.
type Lines []Line

// Clone returns a copy that shares no backing array with l.
func (ls Lines) Clone() Lines {
	out := make(Lines, len(ls))
	copy(out, ls)
	return out
}

// Strings renders every line; null lines become empty strings.
func (ls Lines) Strings() []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.String()
	}
	return out
}

// Equal reports whether two buffers hold the same lines. Nodes are compared
// by identity.
func (ls Lines) Equal(other Lines) bool {
	if len(ls) != len(other) {
		return false
	}
	for i := range ls {
		if ls[i].Kind != other[i].Kind || ls[i].Text != other[i].Text || ls[i].Node != other[i].Node {
			return false
		}
	}
	return true
}

// String renders the buffer in a compact debug form, e.g. ["Hi" <b> null].
func (ls Lines) String() string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		switch l.Kind {
		case LineText:
			parts[i] = fmt.Sprintf("%q", l.Text)
		case LineNode:
			parts[i] = "<" + l.Node.String() + ">"
		default:
			parts[i] = "null"
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Action is one compiled animation instruction.
type Action struct {
	// Type is the instruction kind.
	Type ActionType `json:"type"`

	// Text is the payload of TYPE_STRING.
	Text string `json:"text,omitempty"`

	// Node is the payload of TYPE_ELEMENT.
	Node Node `json:"-"`

	// Line is the payload of PASTE.
	Line Line `json:"line,omitempty"`

	// Count is the payload of BACKSPACE.
	Count int `json:"count,omitempty"`

	// Duration is the payload of PAUSE.
	Duration time.Duration `json:"duration,omitempty"`
}

// TypeString returns a TYPE_STRING action.
func TypeString(text string) Action {
	return Action{Type: ActionTypeString, Text: text}
}

// TypeElement returns a TYPE_ELEMENT action.
func TypeElement(n Node) Action {
	return Action{Type: ActionTypeElement, Node: n}
}

// Backspace returns a BACKSPACE action.
func Backspace(count int) Action {
	return Action{Type: ActionBackspace, Count: count}
}

// Pause returns a PAUSE action.
func Pause(d time.Duration) Action {
	return Action{Type: ActionPause, Duration: d}
}

// Paste returns a PASTE action.
func Paste(l Line) Action {
	return Action{Type: ActionPaste, Line: l}
}

// Content is compiled into the instruction list at the start of every pass.
// Compile must be pure: it is called with no engine locks held and may be
// called once per loop iteration.
type Content interface {
	Compile() []Action
}

// ContentFunc adapts a function to the Content interface.
type ContentFunc func() []Action

// Compile implements Content.
func (f ContentFunc) Compile() []Action {
	return f()
}

// Actions is a fixed instruction list.
type Actions []Action

// Compile implements Content.
func (a Actions) Compile() []Action {
	return a
}

// StateSink receives every emission. The slice is a snapshot owned by the
// receiver.
type StateSink func(Lines)

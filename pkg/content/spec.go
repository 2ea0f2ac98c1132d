package content

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeSpec is the document form of a content node as it appears in script
// files. Exactly one field must be set. A bare string decodes as text.
type NodeSpec struct {
	Text      string       `json:"text,omitempty" yaml:"text,omitempty"`
	Element   *ElementSpec `json:"element,omitempty" yaml:"element,omitempty"`
	Backspace int          `json:"backspace,omitempty" yaml:"backspace,omitempty"`
	Pause     string       `json:"pause,omitempty" yaml:"pause,omitempty"`
	Paste     []NodeSpec   `json:"paste,omitempty" yaml:"paste,omitempty"`
	Group     []NodeSpec   `json:"group,omitempty" yaml:"group,omitempty"`

	// bare is set when the node was decoded from a plain string, which makes
	// an empty string a valid (skipped) text node.
	bare bool
}

// ElementSpec is the document form of an Element.
type ElementSpec struct {
	Name  string            `json:"name" yaml:"name"`
	Text  string            `json:"text,omitempty" yaml:"text,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// Node kinds reported by NodeSpec.Kind.
const (
	KindText      = "text"
	KindElement   = "element"
	KindBackspace = "backspace"
	KindPause     = "pause"
	KindPaste     = "paste"
	KindGroup     = "group"
)

// TextSpec returns the spec of a text node.
func TextSpec(s string) NodeSpec {
	return NodeSpec{Text: s, bare: true}
}

// UnmarshalJSON accepts either a string or an object.
func (n *NodeSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = TextSpec(s)
		return nil
	}
	type alias NodeSpec
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*n = NodeSpec(a)
	return nil
}

// MarshalJSON encodes bare text nodes back as plain strings.
func (n NodeSpec) MarshalJSON() ([]byte, error) {
	if n.bare {
		return json.Marshal(n.Text)
	}
	type alias NodeSpec
	return json.Marshal(alias(n))
}

// UnmarshalYAML accepts either a scalar or a mapping.
func (n *NodeSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*n = TextSpec(value.Value)
		return nil
	}
	type alias NodeSpec
	var a alias
	if err := value.Decode(&a); err != nil {
		return err
	}
	*n = NodeSpec(a)
	return nil
}

func (n NodeSpec) kinds() []string {
	var kinds []string
	if n.Text != "" {
		kinds = append(kinds, KindText)
	}
	if n.Element != nil {
		kinds = append(kinds, KindElement)
	}
	if n.Backspace != 0 {
		kinds = append(kinds, KindBackspace)
	}
	if n.Pause != "" {
		kinds = append(kinds, KindPause)
	}
	if n.Paste != nil {
		kinds = append(kinds, KindPaste)
	}
	if n.Group != nil {
		kinds = append(kinds, KindGroup)
	}
	return kinds
}

// Kind returns the node's kind, or an error if zero or several are set.
func (n NodeSpec) Kind() (string, error) {
	kinds := n.kinds()
	switch {
	case len(kinds) == 1:
		return kinds[0], nil
	case len(kinds) == 0 && n.bare:
		return KindText, nil
	case len(kinds) == 0:
		return "", fmt.Errorf("empty content node")
	default:
		return "", fmt.Errorf("content node sets several kinds: %v", kinds)
	}
}

// FromSpec builds a content tree from its document form.
func FromSpec(specs []NodeSpec) (Tree, error) {
	return buildAll(specs, "content")
}

func buildAll(specs []NodeSpec, path string) (Tree, error) {
	tree := make(Tree, 0, len(specs))
	for i, s := range specs {
		node, err := build(s, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		tree = append(tree, node)
	}
	return tree, nil
}

func build(s NodeSpec, path string) (Node, error) {
	kind, err := s.Kind()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	switch kind {
	case KindText:
		return Text(s.Text), nil
	case KindElement:
		if s.Element.Name == "" {
			return nil, fmt.Errorf("%s.element: name is required", path)
		}
		return NewElement(s.Element.Name, s.Element.Text, s.Element.Attrs), nil
	case KindBackspace:
		if s.Backspace < 0 {
			return nil, fmt.Errorf("%s.backspace: count must be positive, got %d", path, s.Backspace)
		}
		return Backspace(s.Backspace), nil
	case KindPause:
		d, err := time.ParseDuration(s.Pause)
		if err != nil {
			return nil, fmt.Errorf("%s.pause: %w", path, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("%s.pause: duration must not be negative", path)
		}
		return Pause(d), nil
	case KindPaste:
		children, err := buildAll(s.Paste, path+".paste")
		if err != nil {
			return nil, err
		}
		return Paste(children...), nil
	default:
		children, err := buildAll(s.Group, path+".group")
		if err != nil {
			return nil, err
		}
		return Group(children...), nil
	}
}

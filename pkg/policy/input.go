package policy

import (
	"time"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/content"
	"github.com/openfroyo/typist/pkg/engine"
	"github.com/openfroyo/typist/pkg/render"
)

// Input is the document policies are evaluated against.
type Input struct {
	Script  ScriptInput   `json:"script"`
	Actions []ActionInput `json:"actions"`
	Stats   Stats         `json:"stats"`
}

// ScriptInput carries the resolved props of the script.
type ScriptInput struct {
	Name             string  `json:"name"`
	TypingDelayMs    float64 `json:"typing_delay_ms"`
	BackspaceDelayMs float64 `json:"backspace_delay_ms"`
	Loop             bool    `json:"loop"`
	Paused           bool    `json:"paused"`
	Disabled         bool    `json:"disabled"`
	Splitter         string  `json:"splitter"`
	Cursor           string  `json:"cursor,omitempty"`
}

// ActionInput is one compiled instruction.
type ActionInput struct {
	Index      int     `json:"index"`
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	Element    string  `json:"element,omitempty"`
	Count      int     `json:"count,omitempty"`
	DurationMs float64 `json:"duration_ms,omitempty"`

	// Units is the number of typing units a TYPE_STRING types.
	Units int `json:"units"`

	// OverErased is how many units of a BACKSPACE find nothing to erase.
	OverErased int `json:"over_erased,omitempty"`
}

// Stats summarizes one pass of the script.
type Stats struct {
	Actions         int      `json:"actions"`
	TypedUnits      int      `json:"typed_units"`
	ErasedUnits     int      `json:"erased_units"`
	OverErased      int      `json:"over_erased"`
	PauseMs         float64  `json:"pause_ms"`
	EstimatedPassMs float64  `json:"estimated_pass_ms"`
	Elements        []string `json:"elements"`
	FinalText       string   `json:"final_text"`
}

// NewInput compiles script and describes it for policy evaluation.
func NewInput(script *config.Script) (*Input, error) {
	props, err := script.EngineProps()
	if err != nil {
		return nil, err
	}

	splitter := script.Props.Splitter
	if splitter == "" {
		splitter = "codepoint"
	}
	in := &Input{
		Script: ScriptInput{
			Name:             script.Name,
			TypingDelayMs:    ms(props.TypingDelay),
			BackspaceDelayMs: ms(props.BackspaceDelay),
			Loop:             props.Loop,
			Paused:           props.Paused,
			Disabled:         script.Props.Disabled,
			Splitter:         splitter,
			Cursor:           script.Props.Cursor,
		},
		Stats: Stats{Elements: []string{}},
	}

	actions := props.Content.Compile()
	in.Actions = make([]ActionInput, len(actions))
	in.Stats.Actions = len(actions)

	// Erasable units per line, mirroring what the typist would hold.
	var lines []int
	for i, a := range actions {
		ai := ActionInput{Index: i, Type: string(a.Type)}

		switch a.Type {
		case engine.ActionTypeString:
			ai.Text = a.Text
			ai.Units = len(props.Splitter(a.Text))
			lines = append(lines, max(ai.Units, 1))
			in.Stats.TypedUnits += ai.Units
			in.Stats.EstimatedPassMs += float64(ai.Units) * in.Script.TypingDelayMs

		case engine.ActionTypeElement:
			ai.Element = elementName(a.Node)
			lines = append(lines, 1)
			in.Stats.Elements = append(in.Stats.Elements, ai.Element)
			in.Stats.EstimatedPassMs += in.Script.TypingDelayMs

		case engine.ActionPaste:
			lines = append(lines, lineUnits(a.Line, props.Splitter))
			if a.Line.Kind == engine.LineNode {
				in.Stats.Elements = append(in.Stats.Elements, elementName(a.Line.Node))
			}

		case engine.ActionBackspace:
			ai.Count = a.Count
			erased := 0
			for n := a.Count; n > 0; n-- {
				idx := len(lines) - 1
				for idx >= 0 && lines[idx] == 0 {
					idx--
				}
				if idx < 0 {
					ai.OverErased = n
					break
				}
				lines[idx]--
				erased++
			}
			in.Stats.ErasedUnits += erased
			in.Stats.OverErased += ai.OverErased
			in.Stats.EstimatedPassMs += float64(erased) * in.Script.BackspaceDelayMs

		case engine.ActionPause:
			ai.DurationMs = ms(a.Duration)
			in.Stats.PauseMs += ai.DurationMs
			in.Stats.EstimatedPassMs += ai.DurationMs
		}

		in.Actions[i] = ai
	}

	in.Stats.FinalText = render.Text(engine.Fold(actions, props.Splitter), 0)
	return in, nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func elementName(n engine.Node) string {
	if el, ok := n.(*content.Element); ok {
		return el.Name
	}
	if n == nil {
		return ""
	}
	return n.String()
}

func lineUnits(l engine.Line, split engine.Splitter) int {
	switch l.Kind {
	case engine.LineText:
		return max(len(split(l.Text)), 1)
	case engine.LineNode:
		return 1
	}
	return 0
}

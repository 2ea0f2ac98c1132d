package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/typist/pkg/content"
	"github.com/openfroyo/typist/pkg/engine"
)

// Default animation timings.
const (
	DefaultTypingDelay = 75 * time.Millisecond
)

// Script is a typing script as loaded from a YAML, JSON, CUE or Starlark file.
type Script struct {
	// Name is an optional human-readable name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Props are the animation settings.
	Props ScriptProps `json:"props" yaml:"props"`

	// Content is the content tree in document form.
	Content []content.NodeSpec `json:"content" yaml:"content" validate:"required,min=1"`
}

// ScriptProps are the animation settings of a script.
type ScriptProps struct {
	// TypingDelay is the time between two typed units. Defaults to 75ms.
	TypingDelay *Duration `json:"typing_delay,omitempty" yaml:"typing_delay,omitempty" validate:"omitempty,gte=0"`

	// BackspaceDelay is the time between two erased units. Defaults to TypingDelay.
	BackspaceDelay *Duration `json:"backspace_delay,omitempty" yaml:"backspace_delay,omitempty" validate:"omitempty,gte=0"`

	// Loop restarts the animation after every completed pass.
	Loop bool `json:"loop,omitempty" yaml:"loop,omitempty"`

	// Pause starts the animation paused.
	Pause bool `json:"pause,omitempty" yaml:"pause,omitempty"`

	// Splitter names the typing unit (codepoint, grapheme, word).
	Splitter string `json:"splitter,omitempty" yaml:"splitter,omitempty" validate:"omitempty,oneof=codepoint grapheme word"`

	// Cursor is drawn after the last typed character by renderers.
	Cursor string `json:"cursor,omitempty" yaml:"cursor,omitempty"`

	// Disabled shows the final result without animating.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Tree builds the script's content tree.
func (s *Script) Tree() (content.Tree, error) {
	return content.FromSpec(s.Content)
}

// EngineProps converts the script into typist props. OnDone is left unset.
func (s *Script) EngineProps() (engine.Props, error) {
	tree, err := s.Tree()
	if err != nil {
		return engine.Props{}, err
	}

	splitter, err := engine.SplitterByName(s.Props.Splitter)
	if err != nil {
		return engine.Props{}, err
	}

	typing := DefaultTypingDelay
	if s.Props.TypingDelay != nil {
		typing = s.Props.TypingDelay.Duration()
	}
	backspace := typing
	if s.Props.BackspaceDelay != nil {
		backspace = s.Props.BackspaceDelay.Duration()
	}

	return engine.Props{
		Content:        tree,
		TypingDelay:    typing,
		BackspaceDelay: backspace,
		Loop:           s.Props.Loop,
		Paused:         s.Props.Pause,
		Splitter:       splitter,
	}, nil
}

// Duration is a time.Duration that decodes from a Go duration string ("70ms")
// or from an integer number of milliseconds.
type Duration time.Duration

// NewDuration returns a pointer to d as a Duration.
func NewDuration(d time.Duration) *Duration {
	v := Duration(d)
	return &v
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("duration must be a string or a number of milliseconds: %s", data)
	}
	*d = Duration(ms * float64(time.Millisecond))
	return nil
}

// MarshalYAML encodes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if ms, err := strconv.ParseFloat(value.Value, 64); err == nil {
		*d = Duration(ms * float64(time.Millisecond))
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Script formats accepted by the parser.
const (
	FormatYAML     = "yaml"
	FormatJSON     = "json"
	FormatCUE      = "cue"
	FormatStarlark = "starlark"
)

// ParsedScript is the result of parsing one script file.
type ParsedScript struct {
	// Script is the decoded script. It is nil when Errors is non-empty.
	Script *Script `json:"script,omitempty"`

	// SourceFile is the parsed file, or "inline".
	SourceFile string `json:"source_file"`

	// Format is the detected script format.
	Format string `json:"format"`

	// ParsedAt is when the script was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists any validation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// Err folds the validation errors into a single error, or returns nil.
func (ps *ParsedScript) Err() error {
	if len(ps.Errors) == 0 {
		return nil
	}
	return &ScriptError{File: ps.SourceFile, Errors: ps.Errors}
}

// ScriptError reports every validation error of a script.
type ScriptError struct {
	File   string
	Errors []ValidationError
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: %s", e.File, e.Errors[0].String())
	}
	return fmt.Sprintf("%s: %d validation errors, first: %s", e.File, len(e.Errors), e.Errors[0].String())
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the path to the offending value (e.g., "content[2].pause").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

// String renders the error as file:line:col: path: message.
func (ve ValidationError) String() string {
	loc := ve.File
	if ve.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", ve.File, ve.Line, ve.Column)
	}
	msg := ve.Message
	if ve.Path != "" {
		msg = ve.Path + ": " + msg
	}
	if loc == "" {
		return msg
	}
	return loc + ": " + msg
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output is the output data from Starlark.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}

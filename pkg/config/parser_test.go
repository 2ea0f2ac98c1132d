package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/typist/pkg/engine"
)

const yamlScript = `
name: greeting
props:
  typing_delay: 50ms
  backspace_delay: 20
  splitter: grapheme
  loop: true
content:
  - Hello wrold
  - backspace: 4
  - pause: 500ms
  - element:
      name: br
  - paste:
      - pasted
`

const jsonScript = `{
  "name": "greeting",
  "props": {"typing_delay": "50ms", "backspace_delay": 20, "splitter": "grapheme", "loop": true},
  "content": ["Hello wrold", {"backspace": 4}, {"pause": "500ms"}, {"element": {"name": "br"}}, {"paste": ["pasted"]}]
}`

const cueScript = `
name: "greeting"
props: {
	typing_delay:    "50ms"
	backspace_delay: 20
	splitter:        "grapheme"
	loop:            true
}
content: [
	"Hello wrold",
	{backspace: 4},
	{pause: "500ms"},
	{element: name: "br"},
	{paste: ["pasted"]},
]
`

const starlarkScript = `
name = "greeting"
props = {
    "typing_delay": "50ms",
    "backspace_delay": 20,
    "splitter": "grapheme",
    "loop": True,
}
content = [
    text("Hello wrold"),
    backspace(4),
    pause("500ms"),
    element("br"),
    paste("pasted"),
]
`

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestScriptParser_Formats(t *testing.T) {
	parser := NewScriptParser(zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		file   string
		body   string
		format string
	}{
		{"greeting.yaml", yamlScript, FormatYAML},
		{"greeting.yml", yamlScript, FormatYAML},
		{"greeting.json", jsonScript, FormatJSON},
		{"greeting.cue", cueScript, FormatCUE},
		{"greeting.star", starlarkScript, FormatStarlark},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			parsed, err := parser.ParseFile(ctx, writeScript(t, tt.file, tt.body))
			if err != nil {
				t.Fatalf("ParseFile failed: %v", err)
			}
			if len(parsed.Errors) > 0 {
				t.Fatalf("unexpected validation errors: %v", parsed.Errors)
			}
			if parsed.Format != tt.format {
				t.Errorf("expected format %s, got %s", tt.format, parsed.Format)
			}

			script := parsed.Script
			if script.Name != "greeting" {
				t.Errorf("expected name greeting, got %q", script.Name)
			}
			if len(script.Content) != 5 {
				t.Fatalf("expected 5 content nodes, got %d", len(script.Content))
			}

			props, err := script.EngineProps()
			if err != nil {
				t.Fatalf("EngineProps failed: %v", err)
			}
			if props.TypingDelay != 50*time.Millisecond {
				t.Errorf("expected typing delay 50ms, got %v", props.TypingDelay)
			}
			if props.BackspaceDelay != 20*time.Millisecond {
				t.Errorf("expected backspace delay 20ms, got %v", props.BackspaceDelay)
			}
			if !props.Loop {
				t.Error("expected loop")
			}

			final := engine.Fold(props.Content.Compile(), props.Splitter).Strings()
			want := []string{"Hello w", "<br/>", "pasted"}
			if strings.Join(final, "|") != strings.Join(want, "|") {
				t.Errorf("expected %q, got %q", want, final)
			}
		})
	}
}

func TestScriptParser_Errors(t *testing.T) {
	parser := NewScriptParser(zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"yaml syntax", "bad.yaml", "content: [", "invalid YAML"},
		{"yaml unknown key", "bad.yaml", "contents: [a]", "invalid YAML"},
		{"json unknown key", "bad.json", `{"content": ["a"], "speed": 3}`, "invalid JSON"},
		{"empty content", "empty.yaml", "content: []", "min"},
		{"bad splitter", "bad.yaml", "props: {splitter: syllable}\ncontent: [a]", "oneof"},
		{"two kinds", "bad.yaml", "content:\n  - {backspace: 1, pause: 1s}", "several kinds"},
		{"cue schema", "bad.cue", `content: [{backspace: "two"}]`, ""},
		{"cue syntax", "bad.cue", `content: [`, ""},
		{"starlark without content", "bad.star", `name = "x"`, "content"},
		{"starlark failure", "bad.star", `content = [backspace(0)]`, "count must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parser.ParseFile(ctx, writeScript(t, tt.file, tt.body))
			if err != nil {
				t.Fatalf("ParseFile returned error: %v", err)
			}
			if len(parsed.Errors) == 0 {
				t.Fatal("expected validation errors")
			}
			if parsed.Script != nil {
				t.Error("expected no script alongside errors")
			}
			if tt.wantErr != "" && !strings.Contains(parsed.Err().Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, parsed.Err())
			}
		})
	}
}

func TestScriptParser_CUEErrorLocation(t *testing.T) {
	parser := NewScriptParser(zerolog.Nop())
	path := writeScript(t, "bad.cue", "content: [\n\t{backspace: \"two\"},\n]\n")

	parsed, err := parser.ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile returned error: %v", err)
	}
	if len(parsed.Errors) == 0 {
		t.Fatal("expected validation errors")
	}
	if parsed.Errors[0].Line == 0 {
		t.Errorf("expected a line number, got %+v", parsed.Errors[0])
	}
}

func TestScriptParser_Load(t *testing.T) {
	parser := NewScriptParser(zerolog.Nop())
	ctx := context.Background()

	if _, err := parser.Load(ctx, writeScript(t, "ok.yaml", "content: [hi]")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	_, err := parser.Load(ctx, writeScript(t, "bad.yaml", "content: []"))
	var scriptErr *ScriptError
	if err == nil || !asScriptError(err, &scriptErr) {
		t.Fatalf("expected *ScriptError, got %v", err)
	}

	if _, err := parser.Load(ctx, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := parser.Load(ctx, writeScript(t, "script.txt", "hi")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func asScriptError(err error, target **ScriptError) bool {
	se, ok := err.(*ScriptError)
	if ok {
		*target = se
	}
	return ok
}

func TestScript_EngineProps_Defaults(t *testing.T) {
	script := &Script{Content: nil}
	props, err := script.EngineProps()
	if err != nil {
		t.Fatalf("EngineProps failed: %v", err)
	}
	if props.TypingDelay != DefaultTypingDelay {
		t.Errorf("expected default typing delay, got %v", props.TypingDelay)
	}
	if props.BackspaceDelay != DefaultTypingDelay {
		t.Errorf("expected backspace delay to follow typing delay, got %v", props.BackspaceDelay)
	}
}

func TestDuration_Decode(t *testing.T) {
	tests := []struct {
		name string
		json string
		yaml string
		want time.Duration
	}{
		{"string", `"1.5s"`, `1.5s`, 1500 * time.Millisecond},
		{"milliseconds", `70`, `70`, 70 * time.Millisecond},
		{"zero", `0`, `0`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromJSON Duration
			if err := json.Unmarshal([]byte(tt.json), &fromJSON); err != nil {
				t.Fatalf("json: %v", err)
			}
			var fromYAML Duration
			if err := yaml.Unmarshal([]byte(tt.yaml), &fromYAML); err != nil {
				t.Fatalf("yaml: %v", err)
			}
			if fromJSON.Duration() != tt.want || fromYAML.Duration() != tt.want {
				t.Errorf("expected %v, got json=%v yaml=%v", tt.want, fromJSON.Duration(), fromYAML.Duration())
			}
		})
	}

	var d Duration
	if err := json.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Error("expected error for invalid duration")
	}
	if err := json.Unmarshal([]byte(`true`), &d); err == nil {
		t.Error("expected error for boolean duration")
	}
}

func TestValidationError_String(t *testing.T) {
	ve := ValidationError{File: "a.cue", Line: 3, Column: 5, Path: "content.0", Message: "conflict"}
	if got := ve.String(); got != "a.cue:3:5: content.0: conflict" {
		t.Errorf("unexpected rendering %q", got)
	}
}

package policy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/content"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func script(props config.ScriptProps, nodes ...content.NodeSpec) *config.Script {
	return &config.Script{Name: "test", Props: props, Content: nodes}
}

func findViolation(r *Result, policy string) *Violation {
	for i := range r.Violations {
		if r.Violations[i].Policy == policy {
			return &r.Violations[i]
		}
	}
	return nil
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	var names []string
	for _, p := range eng.ListPolicies() {
		names = append(names, p.Name)
	}
	want := "backspace-overrun,empty-result,known-elements,loop-pass-length,pause-length,typing-speed"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("policies = %s, want %s", got, want)
	}
}

func TestEvaluateScript_Clean(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.EvaluateScript(context.Background(), script(config.ScriptProps{}, content.TextSpec("Hello")))
	if err != nil {
		t.Fatalf("EvaluateScript failed: %v", err)
	}
	if !result.Allowed {
		t.Error("expected a clean script to be allowed")
	}
	if len(result.Violations) != 0 {
		t.Errorf("unexpected violations %+v", result.Violations)
	}
	if len(result.EvaluatedPolicies) != len(GetBuiltinPolicies()) {
		t.Errorf("evaluated %v", result.EvaluatedPolicies)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", result.Warnings)
	}
}

func TestEvaluateScript_BuiltinPolicies(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name     string
		script   *config.Script
		policy   string
		severity Severity
		path     string
		allowed  bool
	}{
		{
			name:     "backspace overrun",
			script:   script(config.ScriptProps{}, content.TextSpec("hey"), content.NodeSpec{Backspace: 5}),
			policy:   "backspace-overrun",
			severity: SeverityError,
			path:     "actions[1]",
			allowed:  false,
		},
		{
			name:     "long pause",
			script:   script(config.ScriptProps{}, content.TextSpec("hey"), content.NodeSpec{Pause: "20s"}),
			policy:   "pause-length",
			severity: SeverityWarning,
			path:     "actions[1]",
			allowed:  true,
		},
		{
			name: "unknown element",
			script: script(config.ScriptProps{},
				content.TextSpec("hey"), content.NodeSpec{Element: &content.ElementSpec{Name: "blink"}}),
			policy:   "known-elements",
			severity: SeverityWarning,
			path:     "actions[1]",
			allowed:  true,
		},
		{
			name:     "fast typing",
			script:   script(config.ScriptProps{TypingDelay: config.NewDuration(time.Millisecond)}, content.TextSpec("hey")),
			policy:   "typing-speed",
			severity: SeverityWarning,
			path:     "props.typing_delay",
			allowed:  true,
		},
		{
			name:     "slow typing",
			script:   script(config.ScriptProps{TypingDelay: config.NewDuration(2 * time.Second)}, content.TextSpec("hey")),
			policy:   "typing-speed",
			severity: SeverityWarning,
			path:     "props.typing_delay",
			allowed:  true,
		},
		{
			name:     "short loop",
			script:   script(config.ScriptProps{Loop: true}, content.TextSpec("hey")),
			policy:   "loop-pass-length",
			severity: SeverityWarning,
			path:     "props.loop",
			allowed:  true,
		},
		{
			name:     "empty result",
			script:   script(config.ScriptProps{}, content.TextSpec("hey"), content.NodeSpec{Backspace: 3}),
			policy:   "empty-result",
			severity: SeverityInfo,
			path:     "content",
			allowed:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluateScript(context.Background(), tt.script)
			if err != nil {
				t.Fatalf("EvaluateScript failed: %v", err)
			}

			v := findViolation(result, tt.policy)
			if v == nil {
				t.Fatalf("expected a %s violation, got %+v", tt.policy, result.Violations)
			}
			if v.Severity != tt.severity {
				t.Errorf("severity = %s, want %s", v.Severity, tt.severity)
			}
			if v.Path != tt.path {
				t.Errorf("path = %q, want %q", v.Path, tt.path)
			}
			if v.Message == "" {
				t.Error("violation has no message")
			}
			if result.Allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v", result.Allowed, tt.allowed)
			}
		})
	}
}

func TestEvaluateScript_DisabledSkipsTiming(t *testing.T) {
	eng := newTestEngine(t)

	s := script(config.ScriptProps{
		TypingDelay: config.NewDuration(0),
		Loop:        true,
		Disabled:    true,
	}, content.TextSpec("hey"))

	result, err := eng.EvaluateScript(context.Background(), s)
	if err != nil {
		t.Fatalf("EvaluateScript failed: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Errorf("unexpected violations %+v", result.Violations)
	}
}

func TestEvaluate_ErrorsFirst(t *testing.T) {
	eng := newTestEngine(t)

	s := script(config.ScriptProps{TypingDelay: config.NewDuration(time.Millisecond)},
		content.TextSpec("hey"), content.NodeSpec{Backspace: 9})

	result, err := eng.EvaluateScript(context.Background(), s)
	if err != nil {
		t.Fatalf("EvaluateScript failed: %v", err)
	}
	if len(result.Violations) != 3 {
		t.Fatalf("got %d violations, want 3: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].Severity != SeverityError {
		t.Errorf("first violation = %+v, want an error", result.Violations[0])
	}
	if last := result.Violations[2]; last.Severity != SeverityInfo {
		t.Errorf("last violation = %+v, want info", last)
	}
	if result.Count(SeverityWarning) != 1 {
		t.Errorf("warnings = %d, want 1", result.Count(SeverityWarning))
	}
}

func TestAddPolicy(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	err := eng.AddPolicy(ctx, Policy{
		Name:    "no-greetings",
		Enabled: true,
		Rego: `package custom.greetings

import rego.v1

deny contains "greetings are banned" if {
	contains(input.stats.final_text, "Hello")
}

deny contains violation if {
	some action in input.actions
	action.type == "TYPE_STRING"
	startswith(action.text, "Hello")
	violation := {"message": "starts with a greeting", "severity": "error", "path": sprintf("actions[%v]", [action.index])}
}
`,
	})
	if err != nil {
		t.Fatalf("AddPolicy failed: %v", err)
	}

	p, err := eng.GetPolicy("no-greetings")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("default severity = %s, want warning", p.Severity)
	}

	result, err := eng.EvaluateScript(ctx, script(config.ScriptProps{}, content.TextSpec("Hello world")))
	if err != nil {
		t.Fatalf("EvaluateScript failed: %v", err)
	}
	if result.Allowed {
		t.Error("expected the severity override to reject the script")
	}
	if len(result.Violations) != 2 {
		t.Fatalf("got %+v", result.Violations)
	}
	if v := result.Violations[0]; v.Severity != SeverityError || v.Path != "actions[0]" {
		t.Errorf("first violation = %+v", v)
	}
	if v := result.Violations[1]; v.Severity != SeverityWarning || v.Message != "greetings are banned" {
		t.Errorf("second violation = %+v", v)
	}
}

func TestAddPolicy_Invalid(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		policy Policy
	}{
		{"no name", Policy{Rego: "package x\n"}},
		{"bad rego", Policy{Name: "bad", Rego: "package x\n\ndeny contains if {"}},
		{"bad severity", Policy{Name: "sev", Severity: "fatal", Rego: "package x\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := eng.AddPolicy(ctx, tt.policy); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	s := script(config.ScriptProps{}, content.TextSpec("hey"), content.NodeSpec{Backspace: 5})

	if err := eng.DisablePolicy("backspace-overrun"); err != nil {
		t.Fatalf("DisablePolicy failed: %v", err)
	}
	result, err := eng.EvaluateScript(ctx, s)
	if err != nil {
		t.Fatalf("EvaluateScript failed: %v", err)
	}
	if !result.Allowed || findViolation(result, "backspace-overrun") != nil {
		t.Errorf("disabled policy still reported: %+v", result.Violations)
	}
	for _, name := range result.EvaluatedPolicies {
		if name == "backspace-overrun" {
			t.Error("disabled policy was evaluated")
		}
	}

	if err := eng.EnablePolicy("backspace-overrun"); err != nil {
		t.Fatalf("EnablePolicy failed: %v", err)
	}
	result, err = eng.EvaluateScript(ctx, s)
	if err != nil {
		t.Fatalf("EvaluateScript failed: %v", err)
	}
	if result.Allowed {
		t.Error("expected the re-enabled policy to reject the script")
	}

	if err := eng.DisablePolicy("missing"); err == nil {
		t.Error("expected an error for an unknown policy")
	}
	if _, err := eng.GetPolicy("missing"); err == nil {
		t.Error("expected an error for an unknown policy")
	}
}

func TestEvaluate_Cancelled(t *testing.T) {
	eng := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.EvaluateScript(ctx, script(config.ScriptProps{}, content.TextSpec("hey"))); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestViolationString(t *testing.T) {
	v := Violation{Policy: "pause-length", Severity: SeverityWarning, Path: "actions[2]", Message: "too long"}
	if got, want := v.String(), "warning pause-length: actions[2]: too long"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

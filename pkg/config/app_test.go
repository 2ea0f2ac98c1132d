package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultAppConfig_Valid(t *testing.T) {
	if err := DefaultAppConfig().Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadAppConfig(t *testing.T) {
	path := writeScript(t, "typist.yaml", `
logging:
  level: debug
  format: json
store:
  path: /tmp/typist.db
server:
  address: ":9000"
defaults:
  typing_delay: 40ms
  cursor: "_"
`)

	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("LoadAppConfig failed: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging section: %+v", cfg.Logging)
	}
	if cfg.Store.Path != "/tmp/typist.db" {
		t.Errorf("unexpected store path %q", cfg.Store.Path)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("unexpected address %q", cfg.Server.Address)
	}
	// Untouched sections keep their defaults.
	if cfg.Metrics.Namespace != "typist" {
		t.Errorf("expected default metrics namespace, got %q", cfg.Metrics.Namespace)
	}
	if cfg.Defaults.TypingDelay == nil || cfg.Defaults.TypingDelay.Duration() != 40*time.Millisecond {
		t.Errorf("unexpected default typing delay %v", cfg.Defaults.TypingDelay)
	}
}

func TestLoadAppConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown key", "colour: red", "failed to parse"},
		{"bad level", "logging: {level: loud, format: json}", "invalid config"},
		{"bad sampling", "tracing: {sampling_rate: 2}", "invalid config"},
		{"bad exporter", "tracing: {exporter: jaeger}", "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAppConfig(writeScript(t, "typist.yaml", tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := LoadAppConfig("/nonexistent/typist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadAppConfig_Empty(t *testing.T) {
	cfg, err := LoadAppConfig(writeScript(t, "typist.yaml", ""))
	if err != nil {
		t.Fatalf("expected empty file to yield defaults, got %v", err)
	}
	if cfg.Server.Address != DefaultAppConfig().Server.Address {
		t.Errorf("unexpected address %q", cfg.Server.Address)
	}
}

func TestAppConfig_ApplyDefaults(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Defaults = ScriptProps{
		TypingDelay:    NewDuration(10 * time.Millisecond),
		BackspaceDelay: NewDuration(5 * time.Millisecond),
		Splitter:       "word",
		Cursor:         "|",
	}

	script := &Script{Props: ScriptProps{TypingDelay: NewDuration(30 * time.Millisecond)}}
	cfg.ApplyDefaults(script)

	if script.Props.TypingDelay.Duration() != 30*time.Millisecond {
		t.Error("script value must win over the default")
	}
	if script.Props.BackspaceDelay.Duration() != 5*time.Millisecond {
		t.Error("expected default backspace delay")
	}
	if script.Props.Splitter != "word" || script.Props.Cursor != "|" {
		t.Errorf("expected defaults applied, got %+v", script.Props)
	}
}

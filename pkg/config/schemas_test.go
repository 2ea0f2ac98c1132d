package config

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/openfroyo/typist/pkg/content"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	err := sr.RegisterSchema("theme", `
#Theme: {
	cursor: string
	color:  "green" | "amber"
}
`)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("theme")
	if !ok {
		t.Fatal("expected to find theme schema")
	}
	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}

	if err := sr.RegisterSchema("broken", `#Broken: {`); err == nil {
		t.Error("expected compile error for broken schema")
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	want := []string{SchemaNode, SchemaProps, SchemaScript}
	if got := sr.ListSchemas(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	for _, name := range want {
		schema, ok := sr.GetSchema(name)
		if !ok {
			t.Fatalf("built-in schema %s not found", name)
		}
		if !schema.Exists() {
			t.Errorf("built-in schema %s does not exist", name)
		}
	}
}

func TestSchemaRegistry_ValidateScript(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		script  Script
		wantErr bool
	}{
		{
			name: "valid script",
			script: Script{
				Name: "greeting",
				Props: ScriptProps{
					TypingDelay: NewDuration(50 * time.Millisecond),
					Splitter:    "grapheme",
					Loop:        true,
				},
				Content: []content.NodeSpec{
					content.TextSpec("Hello"),
					{Pause: "1s"},
					{Backspace: 2},
					{Element: &content.ElementSpec{Name: "br"}},
					{Paste: []content.NodeSpec{content.TextSpec("a")}},
				},
			},
		},
		{
			name: "unknown splitter",
			script: Script{
				Props:   ScriptProps{Splitter: "syllable"},
				Content: []content.NodeSpec{content.TextSpec("x")},
			},
			wantErr: true,
		},
		{
			name: "nameless element",
			script: Script{
				Content: []content.NodeSpec{{Element: &content.ElementSpec{}}},
			},
			wantErr: true,
		},
		{
			name: "malformed pause",
			script: Script{
				Content: []content.NodeSpec{{Pause: "soon"}},
			},
			wantErr: true,
		},
		{
			name: "negative backspace",
			script: Script{
				Content: []content.NodeSpec{{Backspace: -1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateScript(ctx, &tt.script)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestSchemaRegistry_ValidateProps(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	if err := sr.ValidateProps(ctx, ScriptProps{Cursor: "|", Disabled: true}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := sr.ValidateAgainstSchema(ctx, "missing", ScriptProps{}); err == nil {
		t.Error("expected error for unknown schema")
	}
}

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	return newSchemaRegistry(cuecontext.New())
}

// newSchemaRegistry creates a registry whose schemas live in ctx. Values can
// only be unified with schemas built in the same context.
func newSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

// Built-in schema names.
const (
	SchemaScript = "script"
	SchemaProps  = "props"
	SchemaNode   = "node"
)

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	val := sr.ctx.CompileString(builtinScriptSchema, cue.Filename("script_schema.cue"))
	if err := val.Err(); err != nil {
		panic(fmt.Sprintf("built-in script schema: %v", err))
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.schemas[SchemaScript] = val.LookupPath(cue.ParsePath("#Script"))
	sr.schemas[SchemaProps] = val.LookupPath(cue.ParsePath("#Props"))
	sr.schemas[SchemaNode] = val.LookupPath(cue.ParsePath("#Node"))
}

// RegisterSchema compiles a CUE schema and registers it under name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Unify unifies val with the named schema and validates the result.
func (sr *SchemaRegistry) Unify(schemaName string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return unified, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates data against a named schema. data is
// encoded through its JSON form so custom marshalers apply.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	sr.mu.RLock()
	dataVal := sr.ctx.CompileBytes(raw, cue.Filename(schemaName+".json"))
	sr.mu.RUnlock()
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if _, err := sr.Unify(schemaName, dataVal); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateScript validates a script against the script schema.
func (sr *SchemaRegistry) ValidateScript(ctx context.Context, script *Script) error {
	return sr.ValidateAgainstSchema(ctx, SchemaScript, script)
}

// ValidateProps validates script props against the props schema.
func (sr *SchemaRegistry) ValidateProps(ctx context.Context, props ScriptProps) error {
	return sr.ValidateAgainstSchema(ctx, SchemaProps, props)
}

// builtinScriptSchema describes typing scripts. Exactly-one-kind per node is
// checked when the content tree is built.
const builtinScriptSchema = `
// A Go duration string ("70ms", "1.5s") or a number of milliseconds.
#Duration: (number & >=0) | #DurationString

#DurationString: string & =~"^([0-9.]+(ns|us|µs|ms|s|m|h))+$"

#Props: {
	typing_delay?:    #Duration
	backspace_delay?: #Duration
	loop?:            bool
	pause?:           bool
	splitter?:        "codepoint" | "grapheme" | "word"
	cursor?:          string
	disabled?:        bool
}

#Element: {
	name:   string & !=""
	text?:  string
	attrs?: {[string]: string}
}

#NodeFields: {
	text?:      string
	element?:   #Element
	backspace?: int & >0
	pause?:     #DurationString
	paste?: [...#Node]
	group?: [...#Node]
}

// A bare string is typed as text.
#Node: string | #NodeFields

#Script: {
	name?:   string
	props?:  #Props
	content: [...#Node]
}
`

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/typist/pkg/content"
)

// ScriptParser parses and validates typing scripts. The format is chosen by
// file extension: .yaml/.yml, .json, .cue and .star.
type ScriptParser struct {
	ctx               *cue.Context
	schemaRegistry    *SchemaRegistry
	starlarkEvaluator *StarlarkEvaluator
	validator         *validator.Validate
	logger            zerolog.Logger
}

// NewScriptParser creates a new script parser.
func NewScriptParser(logger zerolog.Logger) *ScriptParser {
	ctx := cuecontext.New()
	return &ScriptParser{
		ctx:               ctx,
		schemaRegistry:    newSchemaRegistry(ctx),
		starlarkEvaluator: NewStarlarkEvaluator(30 * time.Second),
		validator:         validator.New(),
		logger:            logger.With().Str("component", "script-parser").Logger(),
	}
}

// FormatFromPath returns the script format implied by the file extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	case ".star":
		return FormatStarlark, nil
	default:
		return "", fmt.Errorf("unsupported script extension %q", filepath.Ext(path))
	}
}

// Load parses the script at path and fails on any validation error.
func (sp *ScriptParser) Load(ctx context.Context, path string) (*Script, error) {
	parsed, err := sp.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := parsed.Err(); err != nil {
		return nil, err
	}
	return parsed.Script, nil
}

// ParseFile parses the script at path. Syntax and validation problems are
// reported in ParsedScript.Errors; the returned error is reserved for I/O
// failures and unsupported formats.
func (sp *ScriptParser) ParseFile(ctx context.Context, path string) (*ParsedScript, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	if format == FormatCUE {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", path, err)
		}
		if info.IsDir() {
			return sp.parseCUEDirectory(path), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return sp.Parse(ctx, format, path, data)
}

// Parse parses script data in the given format. name labels error locations.
func (sp *ScriptParser) Parse(ctx context.Context, format, name string, data []byte) (*ParsedScript, error) {
	parsed := &ParsedScript{
		SourceFile: name,
		Format:     format,
		ParsedAt:   time.Now(),
	}

	var script *Script
	var errs []ValidationError

	switch format {
	case FormatYAML:
		script, errs = sp.decodeYAML(name, data)
	case FormatJSON:
		script, errs = sp.decodeJSON(name, data)
	case FormatCUE:
		script, errs = sp.decodeCUE(sp.ctx.CompileBytes(data, cue.Filename(name)))
	case FormatStarlark:
		script, errs = sp.decodeStarlark(ctx, name, data)
	default:
		return nil, fmt.Errorf("unsupported script format %q", format)
	}

	if len(errs) == 0 {
		errs = sp.validate(name, script)
	}
	if len(errs) > 0 {
		parsed.Errors = errs
		sp.logger.Debug().Str("file", name).Int("errors", len(errs)).Msg("Script failed validation")
		return parsed, nil
	}

	parsed.Script = script
	sp.logger.Debug().
		Str("file", name).
		Str("format", format).
		Int("nodes", len(script.Content)).
		Msg("Script parsed")
	return parsed, nil
}

func (sp *ScriptParser) decodeYAML(name string, data []byte) (*Script, []ValidationError) {
	var script Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&script); err != nil {
		return nil, []ValidationError{{
			File:     name,
			Message:  fmt.Sprintf("invalid YAML: %v", err),
			Severity: "error",
		}}
	}
	return &script, nil
}

func (sp *ScriptParser) decodeJSON(name string, data []byte) (*Script, []ValidationError) {
	var script Script
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&script); err != nil {
		return nil, []ValidationError{{
			File:     name,
			Message:  fmt.Sprintf("invalid JSON: %v", err),
			Severity: "error",
		}}
	}
	return &script, nil
}

// decodeCUE unifies val with the script schema and decodes it through JSON.
func (sp *ScriptParser) decodeCUE(val cue.Value) (*Script, []ValidationError) {
	if err := val.Err(); err != nil {
		return nil, sp.convertCUEErrors(err)
	}

	unified, err := sp.schemaRegistry.Unify(SchemaScript, val)
	if err != nil {
		return nil, sp.convertCUEErrors(err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, sp.convertCUEErrors(err)
	}

	var script Script
	if err := json.Unmarshal(raw, &script); err != nil {
		return nil, []ValidationError{{
			Message:  fmt.Sprintf("failed to decode script: %v", err),
			Severity: "error",
		}}
	}
	return &script, nil
}

// parseCUEDirectory loads a directory as a CUE package.
func (sp *ScriptParser) parseCUEDirectory(dir string) *ParsedScript {
	parsed := &ParsedScript{
		SourceFile: dir,
		Format:     FormatCUE,
		ParsedAt:   time.Now(),
	}

	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		parsed.Errors = []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
		return parsed
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		parsed.Errors = sp.convertCUEErrors(inst.Err)
		return parsed
	}

	script, errs := sp.decodeCUE(sp.ctx.BuildInstance(inst))
	if len(errs) == 0 {
		errs = sp.validate(dir, script)
	}
	if len(errs) > 0 {
		parsed.Errors = errs
		return parsed
	}
	parsed.Script = script
	return parsed
}

func (sp *ScriptParser) decodeStarlark(ctx context.Context, name string, data []byte) (*Script, []ValidationError) {
	result, err := sp.starlarkEvaluator.EvaluateFile(ctx, name, string(data), nil)
	if err != nil {
		return nil, []ValidationError{{
			File:     name,
			Message:  err.Error(),
			Severity: "error",
		}}
	}

	doc := map[string]interface{}{}
	for _, key := range []string{"name", "props", "content"} {
		if v, ok := result.Output[key]; ok {
			doc[key] = v
		}
	}
	if _, ok := doc["content"]; !ok {
		return nil, []ValidationError{{
			File:     name,
			Path:     "content",
			Message:  "script must assign a content list",
			Severity: "error",
		}}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, []ValidationError{{File: name, Message: err.Error(), Severity: "error"}}
	}
	return sp.decodeJSON(name, raw)
}

// validate runs struct tag validation, the CUE schema and the content tree
// builder over a decoded script.
func (sp *ScriptParser) validate(name string, script *Script) []ValidationError {
	if err := sp.validator.Struct(script); err != nil {
		var out []ValidationError
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				out = append(out, ValidationError{
					File:     name,
					Path:     fe.Namespace(),
					Message:  fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
					Severity: "error",
				})
			}
			return out
		}
		return []ValidationError{{File: name, Message: err.Error(), Severity: "error"}}
	}

	if err := sp.schemaRegistry.ValidateScript(context.Background(), script); err != nil {
		return []ValidationError{{File: name, Message: err.Error(), Severity: "error"}}
	}

	if _, err := content.FromSpec(script.Content); err != nil {
		return []ValidationError{{File: name, Message: err.Error(), Severity: "error"}}
	}
	return nil
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (sp *ScriptParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		var file string
		var line, column int
		if pos := errors.Positions(e); len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// Package config loads typing scripts and the typist application config.
//
// # Overview
//
// A script names a content tree and the props used to animate it. Scripts can
// be written in YAML, JSON, CUE or Starlark; the format is chosen by file
// extension. Every format decodes into the same Script value and goes through
// the same validation: struct tags (go-playground/validator), the built-in
// #Script CUE schema and the content tree builder.
//
// # Components
//
// ScriptParser: parses script files and reports problems as ValidationError
// values with file, line and path information where the format provides them.
//
// SchemaRegistry: holds the built-in #Script, #Props and #Node CUE schemas and
// any custom schema registered at runtime.
//
// StarlarkEvaluator: runs .star scripts with a timeout. The content builtins
// text, element, backspace, pause, paste and group build nodes; the script
// assigns the result to content and may assign props and name.
//
// Watcher: watches a script file with fsnotify and hands every valid new
// version to a reload callback, typically one that calls Typist.Reconfigure.
//
// AppConfig: the YAML application config for logging, tracing, metrics, the
// history store, the preview server and default props.
//
// # Script Example
//
//	name: greeting
//	props:
//	  typing_delay: 60ms
//	  backspace_delay: 30ms
//	  loop: true
//	content:
//	  - Hello wrold
//	  - pause: 400ms
//	  - backspace: 4
//	  - element: {name: img, attrs: {src: wave.gif}}
//	  - paste: [signed, the typist]
//
// The same script in Starlark:
//
//	props = {"typing_delay": "60ms", "backspace_delay": "30ms", "loop": True}
//	content = [
//	    text("Hello wrold"),
//	    pause("400ms"),
//	    backspace(4),
//	    element("img", attrs = {"src": "wave.gif"}),
//	    paste("signed", "the typist"),
//	]
//
// # Usage Example
//
//	parser := config.NewScriptParser(logger)
//	script, err := parser.Load(ctx, "greeting.yaml")
//	if err != nil {
//	    return err
//	}
//	props, err := script.EngineProps()
package config

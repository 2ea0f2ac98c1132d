package config

import (
	"fmt"
	"time"

	"go.starlark.net/starlark"
)

// contentBuiltins are the Starlark functions available to .star scripts. Each
// returns the document form of a content node, so the script's content list
// decodes exactly like a YAML or JSON one:
//
//	content = [
//	    text("Hello"),
//	    pause("500ms"),
//	    backspace(2),
//	    element("img", attrs = {"src": "cat.png"}),
//	    paste("a", "b"),
//	]
func contentBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"text":      starlark.NewBuiltin("text", builtinText),
		"element":   starlark.NewBuiltin("element", builtinElement),
		"backspace": starlark.NewBuiltin("backspace", builtinBackspace),
		"pause":     starlark.NewBuiltin("pause", builtinPause),
		"paste":     starlark.NewBuiltin("paste", builtinPaste),
		"group":     starlark.NewBuiltin("group", builtinGroup),
	}
}

func nodeDict(key string, val starlark.Value) (*starlark.Dict, error) {
	d := starlark.NewDict(1)
	if err := d.SetKey(starlark.String(key), val); err != nil {
		return nil, err
	}
	return d, nil
}

func builtinText(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(s), nil
}

func builtinElement(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, text string
	var attrs *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "text?", &text, "attrs?", &attrs); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%s: name must not be empty", b.Name())
	}

	el := starlark.NewDict(3)
	if err := el.SetKey(starlark.String("name"), starlark.String(name)); err != nil {
		return nil, err
	}
	if text != "" {
		if err := el.SetKey(starlark.String("text"), starlark.String(text)); err != nil {
			return nil, err
		}
	}
	if attrs != nil {
		for _, item := range attrs.Items() {
			if _, ok := item[1].(starlark.String); !ok {
				return nil, fmt.Errorf("%s: attribute values must be strings, got %s", b.Name(), item[1].Type())
			}
		}
		if err := el.SetKey(starlark.String("attrs"), attrs); err != nil {
			return nil, err
		}
	}
	return nodeDict("element", el)
}

func builtinBackspace(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var n int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%s: count must be positive, got %d", b.Name(), n)
	}
	return nodeDict("backspace", starlark.MakeInt(n))
}

// builtinPause accepts a duration string or a number of milliseconds.
func builtinPause(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}

	var d time.Duration
	switch val := v.(type) {
	case starlark.String:
		parsed, err := time.ParseDuration(string(val))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		d = parsed
	case starlark.Int:
		ms, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("%s: duration out of range", b.Name())
		}
		d = time.Duration(ms) * time.Millisecond
	case starlark.Float:
		d = time.Duration(float64(val) * float64(time.Millisecond))
	default:
		return nil, fmt.Errorf("%s: want string or number, got %s", b.Name(), v.Type())
	}
	if d < 0 {
		return nil, fmt.Errorf("%s: duration must not be negative", b.Name())
	}
	return nodeDict("pause", starlark.String(d.String()))
}

func builtinPaste(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return childrenNode(b, "paste", args, kwargs)
}

func builtinGroup(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return childrenNode(b, "group", args, kwargs)
}

func childrenNode(b *starlark.Builtin, key string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	children := make([]starlark.Value, len(args))
	copy(children, args)
	return nodeDict(key, starlark.NewList(children))
}

// Package policy lints typing scripts with Open Policy Agent.
//
// A script is compiled and summarized into an Input document (resolved
// props, the instruction list, and per-pass statistics such as typed and
// erased units or the estimated pass length). Every enabled Rego policy is
// evaluated against it and the members of its "deny" set become violations.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//
//	result, err := eng.EvaluateScript(ctx, script)
//	if err != nil {
//	    return err
//	}
//	for _, v := range result.Violations {
//	    fmt.Println(v)
//	}
//
// # Built-in Policies
//
//   - backspace-overrun (error): a backspace erases more than was typed
//   - pause-length (warning): a pause is longer than 10s
//   - typing-speed (warning): typing delay is below 10ms or above 1s
//   - known-elements (warning): an element renderers do not know
//   - empty-result (info): every pass ends with nothing on screen
//   - loop-pass-length (warning): a looping pass lasts under 500ms
//
// # Writing Policies
//
// Custom policies are .rego files using Rego v1 syntax. A deny member is
// either a message string or an object:
//
//	package custom.brand
//
//	import rego.v1
//
//	deny contains violation if {
//	    contains(input.stats.final_text, "acme")
//	    violation := {"message": "mentions acme", "severity": "error", "path": "content"}
//	}
//
// A .json file may instead carry a full Policy document with name,
// description, severity, tags and the rego source.
package policy

package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		backspaceOverrunPolicy(),
		pauseLengthPolicy(),
		typingSpeedPolicy(),
		knownElementsPolicy(),
		emptyResultPolicy(),
		loopPassLengthPolicy(),
	}
}

// backspaceOverrunPolicy rejects backspaces that erase more than was typed.
func backspaceOverrunPolicy() Policy {
	return Policy{
		Name:        "backspace-overrun",
		Description: "Backspaces must not erase more units than have been typed",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"content", "correctness"},
		Rego: `package typist.lint.backspace_overrun

import rego.v1

deny contains violation if {
	some action in input.actions
	action.type == "BACKSPACE"
	action.over_erased > 0
	violation := {
		"message": sprintf("backspace of %v erases %v more units than were typed", [action.count, action.over_erased]),
		"path": sprintf("actions[%v]", [action.index]),
	}
}
`,
	}
}

// pauseLengthPolicy flags pauses long enough to look like a hang.
func pauseLengthPolicy() Policy {
	return Policy{
		Name:        "pause-length",
		Description: "Pauses longer than 10 seconds look like a stalled animation",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"timing"},
		Rego: `package typist.lint.pause_length

import rego.v1

max_pause_ms := 10000

deny contains violation if {
	some action in input.actions
	action.type == "PAUSE"
	action.duration_ms > max_pause_ms
	violation := {
		"message": sprintf("pause of %vms is longer than %vms", [action.duration_ms, max_pause_ms]),
		"path": sprintf("actions[%v]", [action.index]),
	}
}
`,
	}
}

// typingSpeedPolicy flags typing delays outside a readable range.
func typingSpeedPolicy() Policy {
	return Policy{
		Name:        "typing-speed",
		Description: "Typing delay should be between 10ms and 1s",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"timing"},
		Rego: `package typist.lint.typing_speed

import rego.v1

deny contains violation if {
	not input.script.disabled
	input.script.typing_delay_ms < 10
	violation := {
		"message": sprintf("typing delay of %vms is too fast to follow", [input.script.typing_delay_ms]),
		"path": "props.typing_delay",
	}
}

deny contains violation if {
	not input.script.disabled
	input.script.typing_delay_ms > 1000
	violation := {
		"message": sprintf("typing delay of %vms makes typing look stalled", [input.script.typing_delay_ms]),
		"path": "props.typing_delay",
	}
}
`,
	}
}

// knownElementsPolicy flags elements most renderers do not understand.
func knownElementsPolicy() Policy {
	return Policy{
		Name:        "known-elements",
		Description: "Elements should be ones renderers know how to draw",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"content", "rendering"},
		Rego: `package typist.lint.known_elements

import rego.v1

known := {"a", "b", "br", "code", "em", "hr", "i", "img", "kbd", "mark", "span", "strong"}

deny contains violation if {
	some action in input.actions
	action.type == "TYPE_ELEMENT"
	not known[action.element]
	violation := {
		"message": sprintf("element <%v> is not known to the renderers", [action.element]),
		"path": sprintf("actions[%v]", [action.index]),
	}
}
`,
	}
}

// emptyResultPolicy notes scripts whose pass ends with nothing on screen.
func emptyResultPolicy() Policy {
	return Policy{
		Name:        "empty-result",
		Description: "A pass should leave something visible",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"content"},
		Rego: `package typist.lint.empty_result

import rego.v1

deny contains violation if {
	input.stats.final_text == ""
	violation := {
		"message": "every pass ends with an empty buffer, so a disabled render shows nothing",
		"path": "content",
	}
}
`,
	}
}

// loopPassLengthPolicy flags looping scripts whose pass is too short to read.
func loopPassLengthPolicy() Policy {
	return Policy{
		Name:        "loop-pass-length",
		Description: "A looping pass should last at least 500ms",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"timing", "loop"},
		Rego: `package typist.lint.loop_pass_length

import rego.v1

deny contains violation if {
	input.script.loop
	not input.script.disabled
	input.stats.estimated_pass_ms < 500
	violation := {
		"message": sprintf("looping pass lasts about %vms and will flicker", [input.stats.estimated_pass_ms]),
		"path": "props.loop",
	}
}
`,
	}
}

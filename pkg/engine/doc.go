// Package engine provides the typewriter animation engine.
//
// # Overview
//
// A Typist consumes an ordered list of instructions and turns it into a
// time-ordered sequence of typed-lines snapshots that simulate a person
// typing, pausing, backspacing and pasting. Each snapshot is delivered to a
// StateSink. After the last instruction the OnDone callback fires and, when
// Loop is set, the content is compiled again and a new pass begins.
//
// # Instructions
//
// Content is compiled into five kinds of Action:
//
//   - TYPE_STRING: append an empty line, then grow it one unit per TypingDelay
//   - TYPE_ELEMENT: after one TypingDelay, append an opaque Node as a whole line
//   - BACKSPACE: erase one unit per BackspaceDelay from the last non-null line
//   - PAUSE: wait for the given duration without emitting
//   - PASTE: append a line immediately
//
// Units are defined by the configured Splitter; the default is one unit per
// code point. Erased lines stay in the buffer as null placeholders so that
// line indices remain stable.
//
// # Lifecycle
//
//	typist := engine.NewTypist(engine.Props{
//	    Content:     engine.Actions{engine.TypeString("Hi")},
//	    TypingDelay: 50 * time.Millisecond,
//	}, func(lines engine.Lines) {
//	    fmt.Println(lines.Strings())
//	})
//
//	runID, err := typist.Start(ctx)
//	...
//	typist.SetPaused(true)      // freeze at the next wait
//	typist.Reconfigure(props)   // hot swap props mid-run
//	typist.Discard()            // tear down, no further emissions
//
// # Cancellation and pausing
//
// Every timed step goes through Sleep, the only suspension point. Starting a
// new run, Cancel, Discard or cancelling the context passed to Start fails the
// pending wait with ErrCancelled, which unwinds the pass silently: OnDone is
// not called and nothing more is emitted. Pausing never shortens or extends a
// wait's base duration; it only withholds its resolution, polling the pause
// flag every DefaultPollInterval (see WithPollInterval).
//
// # Thread Safety
//
// Only the run goroutine mutates the buffer and invokes callbacks. All exported
// methods are safe for concurrent use; callbacks may call back into the
// Typist, except Run which blocks.
package engine

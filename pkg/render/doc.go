// Package render turns typed-lines snapshots into display output.
//
// Terminal redraws each emission in place on an ANSI terminal, truncating
// rows to the terminal width by display cells so wide runes never wrap.
// Recorder keeps every emission for tests, simulations and fan-out.
package render

package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/openfroyo/typist/pkg/engine"
)

// ANSI control sequences.
const (
	ansiCursorUp   = "\x1b[%dA"
	ansiClearBelow = "\x1b[J"
	ansiHideCursor = "\x1b[?25l"
	ansiShowCursor = "\x1b[?25h"
)

// Terminal is a state sink that redraws the latest snapshot in place.
//
// When the output is not a terminal nothing is drawn until Finish, which
// prints the last snapshot once.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	fd     int
	ansi   bool
	width  int
	cursor string

	drawn  int
	last   engine.Lines
	hidden bool
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithCursor appends cursor after the last typed character.
func WithCursor(cursor string) TerminalOption {
	return func(t *Terminal) {
		t.cursor = cursor
	}
}

// WithWidth fixes the width rows are truncated to, instead of asking the
// terminal.
func WithWidth(width int) TerminalOption {
	return func(t *Terminal) {
		t.width = width
	}
}

// WithANSI forces in-place redrawing on or off.
func WithANSI(enabled bool) TerminalOption {
	return func(t *Terminal) {
		t.ansi = enabled
	}
}

// NewTerminal creates a terminal sink writing to out. ANSI redrawing is
// enabled when out is a terminal.
func NewTerminal(out io.Writer, opts ...TerminalOption) *Terminal {
	t := &Terminal{out: out, fd: -1}
	if f, ok := out.(*os.File); ok {
		t.fd = int(f.Fd())
		t.ansi = term.IsTerminal(t.fd)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Sink is the engine.StateSink of the terminal.
func (t *Terminal) Sink(lines engine.Lines) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = lines
	if !t.ansi {
		return
	}
	if !t.hidden && t.cursor != "" {
		io.WriteString(t.out, ansiHideCursor)
		t.hidden = true
	}
	t.redraw(t.frame(lines, true))
}

// SetCursor changes the cursor for the next redraw.
func (t *Terminal) SetCursor(cursor string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor = cursor
}

// Finish draws the last snapshot without the cursor, ends the line and
// restores the terminal cursor.
func (t *Terminal) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := t.frame(t.last, false)
	if t.ansi {
		t.redraw(rows)
		io.WriteString(t.out, "\r\n")
	} else {
		io.WriteString(t.out, strings.Join(rows, "\n")+"\n")
	}
	if t.hidden {
		io.WriteString(t.out, ansiShowCursor)
		t.hidden = false
	}
	t.drawn = 0
}

// frame renders lines into rows fitting the current width.
func (t *Terminal) frame(lines engine.Lines, withCursor bool) []string {
	width := t.currentWidth()
	text := Text(lines, width)
	if withCursor && t.cursor != "" {
		text += t.cursor
	}
	return Rows(text, width)
}

// redraw moves back to the first row of the previous frame, clears it and
// writes rows. Rows are joined with \r\n so raw mode renders the same.
func (t *Terminal) redraw(rows []string) {
	var b strings.Builder
	if t.drawn > 1 {
		fmt.Fprintf(&b, ansiCursorUp, t.drawn-1)
	}
	b.WriteString("\r")
	b.WriteString(ansiClearBelow)
	b.WriteString(strings.Join(rows, "\r\n"))
	io.WriteString(t.out, b.String())
	t.drawn = len(rows)
}

// currentWidth returns the fixed width, the terminal width, or 0 when unknown.
func (t *Terminal) currentWidth() int {
	if t.width > 0 {
		return t.width
	}
	if t.fd < 0 || !t.ansi {
		return 0
	}
	w, _, err := term.GetSize(t.fd)
	if err != nil || w <= 0 {
		return 0
	}
	// Writing into the last column wraps on some terminals.
	return w - 1
}

// Width returns the display width of the last frame's widest row.
func (t *Terminal) Width() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	max := 0
	for _, row := range t.frame(t.last, false) {
		if w := runewidth.StringWidth(row); w > max {
			max = w
		}
	}
	return max
}

package commands

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/openfroyo/typist/pkg/engine"
)

// Control bytes read in raw mode.
const (
	keyCtrlC = 0x03
	keyCtrlD = 0x04
	keyEsc   = 0x1b
)

// keyReader puts the terminal in raw mode and maps keys to typist controls.
type keyReader struct {
	in    *os.File
	fd    int
	state *term.State
}

func newKeyReader(in *os.File) (*keyReader, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("--interactive requires a terminal on stdin")
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enable raw mode: %w", err)
	}
	return &keyReader{in: in, fd: fd, state: state}, nil
}

// Run reads keys until ctx is done or a quit key is pressed, in which case
// quit is called. Raw mode swallows SIGINT, so Ctrl-C quits too.
func (k *keyReader) Run(ctx context.Context, typist *engine.Typist, quit func()) {
	buf := make([]byte, 1)
	for ctx.Err() == nil {
		n, err := k.in.Read(buf)
		if err != nil {
			quit()
			return
		}
		if n == 0 {
			continue
		}
		switch buf[0] {
		case ' ', 'p':
			typist.TogglePause()
		case 'r':
			if _, err := typist.Start(ctx); err != nil {
				quit()
				return
			}
		case 'q', keyEsc, keyCtrlC, keyCtrlD:
			quit()
			return
		}
	}
}

// Restore leaves raw mode.
func (k *keyReader) Restore() {
	_ = term.Restore(k.fd, k.state)
}

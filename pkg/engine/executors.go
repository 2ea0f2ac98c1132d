package engine

import "strings"

// step executes one instruction. Instructions of a pass run strictly one
// after another on the run goroutine.
func (t *Typist) step(r *run, a Action) error {
	switch a.Type {
	case ActionTypeString:
		return t.typeString(r, a.Text)
	case ActionTypeElement:
		return t.typeElement(r, a.Node)
	case ActionBackspace:
		return t.backspace(r, a.Count)
	case ActionPause:
		return t.wait(r, a.Duration)
	case ActionPaste:
		return t.emit(r, append(t.buffer(), a.Line))
	default:
		t.logger.Warn().Err(NewInvalidActionError(a).WithRun(r.id)).Msg("Skipping action")
		return nil
	}
}

// typeString appends an empty line and grows it one unit per TypingDelay.
func (t *Typist) typeString(r *run, text string) error {
	units := t.Props().Splitter(text)

	lines := append(t.buffer(), TextLine(""))
	last := len(lines) - 1
	if err := t.emit(r, lines); err != nil {
		return err
	}

	for n := 1; n <= len(units); n++ {
		if err := t.wait(r, t.Props().TypingDelay); err != nil {
			return err
		}
		lines := t.buffer()
		lines[last] = TextLine(strings.Join(units[:n], ""))
		if err := t.emit(r, lines); err != nil {
			return err
		}
	}
	return nil
}

// typeElement reveals a node as a whole line after one TypingDelay.
func (t *Typist) typeElement(r *run, n Node) error {
	if err := t.wait(r, t.Props().TypingDelay); err != nil {
		return err
	}
	return t.emit(r, append(t.buffer(), NodeLine(n)))
}

// backspace erases count units, one per BackspaceDelay. Once nothing is left
// to erase the remaining count is dropped.
func (t *Typist) backspace(r *run, count int) error {
	for ; count > 0; count-- {
		if err := t.wait(r, t.Props().BackspaceDelay); err != nil {
			return err
		}
		lines := t.buffer()
		idx := lastNonNull(lines)
		if idx < 0 {
			return nil
		}
		lines[idx] = eraseUnit(lines[idx], t.Props().Splitter)
		if err := t.emit(r, lines); err != nil {
			return err
		}
	}
	return nil
}

// lastNonNull scans backward for the last non-null line, stopping at index 0.
// It returns -1 when the buffer is empty or every scanned line is null.
func lastNonNull(lines Lines) int {
	if len(lines) == 0 {
		return -1
	}
	i := len(lines) - 1
	for i > 0 && lines[i].IsNull() {
		i--
	}
	if lines[i].IsNull() {
		return -1
	}
	return i
}

// eraseUnit removes the last unit of a line. Nodes vanish at once; a text
// line that becomes empty turns into a null placeholder.
func eraseUnit(l Line, split Splitter) Line {
	if l.Kind != LineText {
		return Line{}
	}
	units := split(l.Text)
	if len(units) <= 1 {
		return Line{}
	}
	return TextLine(strings.Join(units[:len(units)-1], ""))
}

// Fold applies actions to an empty buffer without any timing and returns the
// buffer a non-looping pass would end with.
func Fold(actions []Action, split Splitter) Lines {
	if split == nil {
		split = SplitCodePoints
	}
	lines := Lines{}
	for _, a := range actions {
		switch a.Type {
		case ActionTypeString:
			lines = append(lines, TextLine(strings.Join(split(a.Text), "")))
		case ActionTypeElement:
			lines = append(lines, NodeLine(a.Node))
		case ActionPaste:
			lines = append(lines, a.Line)
		case ActionBackspace:
			for n := a.Count; n > 0; n-- {
				idx := lastNonNull(lines)
				if idx < 0 {
					break
				}
				lines[idx] = eraseUnit(lines[idx], split)
			}
		}
	}
	return lines
}

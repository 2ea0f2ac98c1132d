package render

import (
	"sync"

	"github.com/openfroyo/typist/pkg/engine"
)

// Recorder is a state sink that keeps every emission in order.
type Recorder struct {
	mu     sync.Mutex
	frames []engine.Lines
	notify []chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Sink is the engine.StateSink of the recorder.
func (r *Recorder) Sink(lines engine.Lines) {
	r.mu.Lock()
	r.frames = append(r.frames, lines)
	waiters := r.notify
	r.notify = nil
	r.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// Frames returns a copy of every recorded emission.
func (r *Recorder) Frames() []engine.Lines {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Lines, len(r.frames))
	copy(out, r.frames)
	return out
}

// Texts returns every recorded emission flattened with Text.
func (r *Recorder) Texts() []string {
	frames := r.Frames()
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = Text(f, 0)
	}
	return out
}

// Last returns the most recent emission, or nil when nothing was recorded.
func (r *Recorder) Last() engine.Lines {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

// Len returns the number of recorded emissions.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Next returns a channel closed by the next emission.
func (r *Recorder) Next() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.notify = append(r.notify, ch)
	return ch
}

// Reset drops every recorded emission.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

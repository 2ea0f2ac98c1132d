package engine

import "time"

// Observer receives lifecycle notifications from a typist. Methods are called
// on the run goroutine and must not block.
type Observer interface {
	// RunStarted is called once per Start, before the first pass.
	RunStarted(runID string)

	// PassStarted is called after the pass's instructions have been compiled.
	PassStarted(runID string, pass int, actions int)

	// PassCompleted is called after OnDone for every pass that ran to the end.
	PassCompleted(runID string, pass int, elapsed time.Duration)

	// Emitted is called after every snapshot was delivered to the sink.
	Emitted(runID string, lines int)

	// RunFinished is called once when the run goroutine exits. err is nil for
	// a completed run and ErrCancelled for a cancelled one.
	RunFinished(runID string, status RunStatus, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) RunStarted(string)                        {}
func (NopObserver) PassStarted(string, int, int)             {}
func (NopObserver) PassCompleted(string, int, time.Duration) {}
func (NopObserver) Emitted(string, int)                      {}
func (NopObserver) RunFinished(string, RunStatus, error)     {}

type multiObserver []Observer

// Observers fans notifications out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) RunStarted(runID string) {
	for _, o := range m {
		o.RunStarted(runID)
	}
}

func (m multiObserver) PassStarted(runID string, pass int, actions int) {
	for _, o := range m {
		o.PassStarted(runID, pass, actions)
	}
}

func (m multiObserver) PassCompleted(runID string, pass int, elapsed time.Duration) {
	for _, o := range m {
		o.PassCompleted(runID, pass, elapsed)
	}
}

func (m multiObserver) Emitted(runID string, lines int) {
	for _, o := range m {
		o.Emitted(runID, lines)
	}
}

func (m multiObserver) RunFinished(runID string, status RunStatus, err error) {
	for _, o := range m {
		o.RunFinished(runID, status, err)
	}
}

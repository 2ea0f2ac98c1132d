package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Props is the full configuration of a typist. It can be replaced at any
// time, including mid-run, with Reconfigure.
type Props struct {
	// Content is compiled into instructions at the start of every pass.
	Content Content

	// TypingDelay is the time between two typed units.
	TypingDelay time.Duration

	// BackspaceDelay is the time between two erased units.
	BackspaceDelay time.Duration

	// Loop restarts from the first instruction after a completed pass.
	Loop bool

	// Paused withholds the resolution of waits while true.
	Paused bool

	// OnDone is invoked once per completed pass.
	OnDone func()

	// Splitter defines the typing unit. Defaults to SplitCodePoints.
	Splitter Splitter
}

// normalized fills every unset field so the engine never sees a partial config.
func (p Props) normalized() Props {
	if p.Content == nil {
		p.Content = Actions(nil)
	}
	if p.TypingDelay < 0 {
		p.TypingDelay = 0
	}
	if p.BackspaceDelay < 0 {
		p.BackspaceDelay = 0
	}
	if p.OnDone == nil {
		p.OnDone = func() {}
	}
	if p.Splitter == nil {
		p.Splitter = SplitCodePoints
	}
	return p
}

// Option configures a Typist.
type Option func(*Typist)

// WithLogger sets the logger used for lifecycle diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Typist) {
		t.logger = logger.With().Str("component", "typist").Logger()
	}
}

// WithObserver registers lifecycle hooks.
func WithObserver(obs Observer) Option {
	return func(t *Typist) {
		if obs != nil {
			t.observer = obs
		}
	}
}

// WithPollInterval sets how often an expired wait re-checks the pause flag.
func WithPollInterval(d time.Duration) Option {
	return func(t *Typist) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// run is one Start of the typist. Every pass of a looping run shares it.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	prev   *run
	err    error
}

// Typist animates content into a sequence of typed-lines snapshots.
//
// A typist owns its buffer exclusively. Only the run goroutine mutates it and
// calls the sink, so emissions are strictly ordered. All methods are safe for
// concurrent use and may be called from inside the sink or OnDone, with the
// exception of Run which blocks until the run ends.
type Typist struct {
	// mu guards everything below up to emitMu.
	mu         sync.Mutex
	props      Props
	sink       StateSink
	lines      Lines
	status     RunStatus
	current    *run
	passes     int
	waiting    bool
	discarded  bool
	inCallback int

	// emitMu serializes sink and OnDone calls.
	emitMu sync.Mutex

	logger       zerolog.Logger
	observer     Observer
	pollInterval time.Duration
}

// NewTypist creates a typist in the idle state. Nothing is emitted until Start.
func NewTypist(props Props, sink StateSink, opts ...Option) *Typist {
	if sink == nil {
		sink = func(Lines) {}
	}
	t := &Typist{
		props:        props.normalized(),
		sink:         sink,
		status:       RunStatusIdle,
		logger:       zerolog.Nop(),
		observer:     NopObserver{},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start cancels any active run and begins a new one on its own goroutine.
// It returns the new run's ID. The run ends when ctx is cancelled, when
// Start, Cancel or Discard is called, or after a pass completes with Loop off.
func (t *Typist) Start(ctx context.Context) (string, error) {
	r, err := t.begin(ctx)
	if err != nil {
		return "", err
	}
	go t.execute(r)
	return r.id, nil
}

// Run is the blocking form of Start. It returns nil when a non-looping run
// completes and ErrCancelled when the run is cancelled. It must not be called
// from the sink or OnDone.
func (t *Typist) Run(ctx context.Context) error {
	r, err := t.begin(ctx)
	if err != nil {
		return err
	}
	t.execute(r)
	return r.err
}

// begin cancels the current run and registers a new one as current.
func (t *Typist) begin(ctx context.Context) (*run, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.discarded {
		return nil, ErrDiscarded
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:     uuid.New().String(),
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		prev:   t.current,
	}
	if r.prev != nil {
		r.prev.cancel()
	}
	t.current = r
	t.status = RunStatusRunning
	t.passes = 0
	return r, nil
}

// execute drives the run to completion or cancellation.
func (t *Typist) execute(r *run) {
	defer close(r.done)
	defer r.cancel()

	// The previous run may be between two waits; wait for it to unwind so
	// emissions from both runs never interleave.
	if r.prev != nil {
		<-r.prev.done
		r.prev = nil
	}

	logger := t.logger.With().Str("run_id", r.id).Logger()
	logger.Debug().Msg("Run started")
	t.observer.RunStarted(r.id)

	err := t.passLoop(r)

	status := RunStatusCompleted
	switch {
	case err == nil:
	case IsCancelled(err):
		status = RunStatusCancelled
		logger.Debug().Msg("Run cancelled")
	default:
		status = RunStatusCancelled
		logger.Error().Err(err).Msg("Run aborted")
	}
	r.err = err

	t.mu.Lock()
	t.waiting = false
	if t.current == r {
		if t.discarded {
			status = RunStatusDiscarded
		}
		t.status = status
	}
	t.mu.Unlock()

	t.observer.RunFinished(r.id, status, err)
	logger.Debug().Str("status", string(status)).Msg("Run finished")
}

// passLoop executes passes until the run is cancelled or a pass completes
// with Loop off.
func (t *Typist) passLoop(r *run) error {
	for pass := 1; ; pass++ {
		props := t.Props()
		actions := props.Content.Compile()
		t.observer.PassStarted(r.id, pass, len(actions))
		started := time.Now()

		if err := t.emit(r, Lines{}); err != nil {
			return err
		}
		for _, a := range actions {
			if err := t.step(r, a); err != nil {
				return err
			}
		}
		if err := t.complete(r); err != nil {
			return err
		}
		t.observer.PassCompleted(r.id, pass, time.Since(started))

		// Loop is read here so a mid-pass Reconfigure applies to this pass end.
		t.mu.Lock()
		t.passes = pass
		loop := t.props.Loop
		t.mu.Unlock()
		if !loop {
			return nil
		}
	}
}

// emit is the only path that mutates the buffer. It replaces the buffer
// wholesale and forwards a copy to the sink.
func (t *Typist) emit(r *run, lines Lines) error {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	// Discard also cancels the run, so it is checked first.
	if t.discarded {
		t.mu.Unlock()
		err := ErrPostDiscard.WithRun(r.id)
		t.logger.Error().Err(err).Msg("Emission attempted on a discarded typist")
		return err
	}
	if r.ctx.Err() != nil || t.current != r {
		t.mu.Unlock()
		return ErrCancelled.WithRun(r.id)
	}
	t.lines = lines
	sink := t.sink
	t.inCallback++
	t.mu.Unlock()

	sink(lines.Clone())

	t.mu.Lock()
	t.inCallback--
	t.mu.Unlock()

	t.observer.Emitted(r.id, len(lines))
	return nil
}

// complete invokes OnDone unless the run was cancelled after its last wait.
func (t *Typist) complete(r *run) error {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	if t.discarded {
		t.mu.Unlock()
		err := ErrPostDiscard.WithRun(r.id)
		t.logger.Error().Err(err).Msg("Completion attempted on a discarded typist")
		return err
	}
	if r.ctx.Err() != nil || t.current != r {
		t.mu.Unlock()
		return ErrCancelled.WithRun(r.id)
	}
	onDone := t.props.OnDone
	t.waiting = false
	t.inCallback++
	t.mu.Unlock()

	onDone()

	t.mu.Lock()
	t.inCallback--
	t.mu.Unlock()
	return nil
}

// wait suspends the run for d, honouring the pause flag. It occupies the
// single cancellation slot for its whole duration.
func (t *Typist) wait(r *run, d time.Duration) error {
	t.mu.Lock()
	if t.waiting {
		t.mu.Unlock()
		return ErrWaitOutstanding.WithRun(r.id)
	}
	t.waiting = true
	poll := t.pollInterval
	t.mu.Unlock()

	err := Sleep(r.ctx, d, t.isPaused, poll)

	t.mu.Lock()
	t.waiting = false
	t.mu.Unlock()

	if err != nil {
		return ErrCancelled.WithRun(r.id)
	}
	return nil
}

func (t *Typist) isPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.props.Paused
}

// buffer returns a private copy of the current buffer.
func (t *Typist) buffer() Lines {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lines.Clone()
}

// Reconfigure atomically replaces the props. Delays and the pause flag apply
// from the next wait evaluation, Loop at the end of the current pass and
// Content at the start of the next pass.
func (t *Typist) Reconfigure(props Props) {
	t.mu.Lock()
	t.props = props.normalized()
	t.mu.Unlock()

	t.logger.Debug().
		Dur("typing_delay", props.TypingDelay).
		Dur("backspace_delay", props.BackspaceDelay).
		Bool("loop", props.Loop).
		Bool("paused", props.Paused).
		Msg("Props reconfigured")
}

// Update applies fn to a copy of the current props and installs the result.
func (t *Typist) Update(fn func(*Props)) {
	t.mu.Lock()
	p := t.props
	fn(&p)
	t.props = p.normalized()
	t.mu.Unlock()
}

// SetPaused sets the pause flag.
func (t *Typist) SetPaused(paused bool) {
	t.Update(func(p *Props) { p.Paused = paused })
}

// TogglePause flips the pause flag and returns the new value.
func (t *Typist) TogglePause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.props.Paused = !t.props.Paused
	return t.props.Paused
}

// Cancel abandons the active run, if any. The typist can be started again.
// As with Discard, a callback in flight may outlive the call.
func (t *Typist) Cancel() {
	t.mu.Lock()
	r := t.current
	inCallback := t.inCallback > 0
	t.mu.Unlock()

	if r == nil {
		return
	}
	r.cancel()
	t.fence(inCallback)
}

// Discard cancels any pending wait and permanently disables state emission.
// It is idempotent. A sink callback already running on the run goroutine may
// still be finishing when Discard returns.
func (t *Typist) Discard() {
	t.mu.Lock()
	if t.discarded {
		t.mu.Unlock()
		return
	}
	t.discarded = true
	t.sink = nil
	if t.current != nil {
		t.current.cancel()
	}
	t.status = RunStatusDiscarded
	inCallback := t.inCallback > 0
	t.mu.Unlock()

	t.fence(inCallback)
	t.logger.Debug().Msg("Typist discarded")
}

// fence waits for an in-flight emission to finish so that none can start
// after the caller returns. It is skipped while any callback is running,
// since the caller may be that callback. A call from another goroutine during
// a callback therefore returns before the callback does; emit and complete
// recheck the run state under mu, so no later emission can start.
func (t *Typist) fence(inCallback bool) {
	if inCallback {
		return
	}
	t.emitMu.Lock()
	//nolint:staticcheck // empty critical section is the fence
	t.emitMu.Unlock()
}

// Props returns the current props.
func (t *Typist) Props() Props {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.props
}

// Lines returns a snapshot of the most recent emission.
func (t *Typist) Lines() Lines {
	return t.buffer()
}

// Status returns the lifecycle state of the latest run.
func (t *Typist) Status() RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// RunID returns the ID of the latest run, or "" before the first Start.
func (t *Typist) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ""
	}
	return t.current.id
}

// Passes returns how many passes of the latest run have completed.
func (t *Typist) Passes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.passes
}

// Waiting reports whether a cancellable wait is currently outstanding.
func (t *Typist) Waiting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waiting
}

// Discarded reports whether Discard has been called.
func (t *Typist) Discarded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.discarded
}

// Done returns a channel closed when the latest run's goroutine has exited.
// Before the first Start the channel is already closed.
func (t *Typist) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return t.current.done
}

package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/engine"
	"github.com/openfroyo/typist/pkg/render"
	"github.com/openfroyo/typist/pkg/telemetry"
)

// subscriberBuffer is how many frames a slow stream may fall behind before
// the oldest frame is dropped.
const subscriberBuffer = 64

var (
	// ErrSessionClosed is returned by operations on a deleted session.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionDisabled is returned when animating a session whose script
	// is disabled.
	ErrSessionDisabled = errors.New("session is disabled and never animates")
)

// Session owns one typist and fans its emissions out to stream subscribers.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time

	ctx    context.Context
	tel    *telemetry.Telemetry
	logger zerolog.Logger

	mu       sync.Mutex
	props    engine.Props
	cursor   string
	disabled bool
	static   engine.Lines
	typist   *engine.Typist
	restarts int
	subs     map[chan engine.Lines]struct{}
	closed   bool

	frames  atomic.Int64
	lastErr atomic.Pointer[string]
}

// sessionObserver counts frames and keeps the error of the last failed run.
type sessionObserver struct {
	engine.NopObserver
	s *Session
}

func (o sessionObserver) Emitted(string, int) {
	o.s.frames.Add(1)
}

// RunFinished ignores discarded runs; a restart discards the previous typist.
func (o sessionObserver) RunFinished(_ string, status engine.RunStatus, err error) {
	if status == engine.RunStatusDiscarded {
		return
	}
	if err == nil || engine.IsCancelled(err) {
		o.s.lastErr.Store(nil)
		return
	}
	msg := err.Error()
	o.s.lastErr.Store(&msg)
}

func newSession(ctx context.Context, script *config.Script, tel *telemetry.Telemetry) (*Session, error) {
	props, err := script.EngineProps()
	if err != nil {
		return nil, err
	}

	name := script.Name
	if name == "" {
		name = "session"
	}
	id := uuid.New().String()

	s := &Session{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		ctx:       ctx,
		tel:       tel,
		logger:    tel.Logger.WithSession(id).Zerolog(),
		props:     props,
		cursor:    script.Props.Cursor,
		disabled:  script.Props.Disabled,
		subs:      make(map[chan engine.Lines]struct{}),
	}
	if s.disabled {
		s.static = engine.Fold(props.Content.Compile(), props.Splitter)
	}
	return s, nil
}

// start replaces the current typist with a fresh one and starts it.
func (s *Session) start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.disabled {
		s.mu.Unlock()
		return ErrSessionDisabled
	}

	old := s.typist
	props := s.props
	if old != nil {
		props = old.Props()
		s.props = props
		s.restarts++
	}
	t := engine.NewTypist(props, s.broadcast,
		engine.WithLogger(s.logger),
		engine.WithObserver(engine.Observers(
			s.tel.NewObserver(s.ctx, s.Name),
			sessionObserver{s: s},
		)),
	)
	s.typist = t
	s.mu.Unlock()

	if old != nil {
		old.Discard()
	}
	runID, err := t.Start(s.ctx)
	if err != nil {
		return err
	}
	s.logger.Debug().Str("run_id", runID).Msg("Session started")
	return nil
}

// Restart discards the current typist and animates from scratch with the
// current props.
func (s *Session) Restart() error {
	return s.start()
}

// broadcast is the typist's state sink.
func (s *Session) broadcast(lines engine.Lines) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- lines:
		default:
			// Drop the oldest frame so the subscriber always ends on the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- lines:
			default:
			}
		}
	}
}

// Subscribe returns a channel of frames and a function that ends the
// subscription. The channel is closed when the session is closed.
func (s *Session) Subscribe() (<-chan engine.Lines, func()) {
	ch := make(chan engine.Lines, subscriberBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

// SetPaused pauses or resumes the animation.
func (s *Session) SetPaused(paused bool) error {
	t, err := s.current()
	if err != nil {
		return err
	}
	t.SetPaused(paused)
	return nil
}

// UpdateProps applies patch to the running typist. Content changes are not
// accepted here; restart with a new session instead.
func (s *Session) UpdateProps(patch PropsPatch) error {
	var splitter engine.Splitter
	if patch.Splitter != nil {
		var err error
		if splitter, err = engine.SplitterByName(*patch.Splitter); err != nil {
			return err
		}
	}

	t, err := s.current()
	if err != nil {
		return err
	}
	t.Update(func(p *engine.Props) {
		if patch.TypingDelay != nil {
			p.TypingDelay = patch.TypingDelay.Duration()
		}
		if patch.BackspaceDelay != nil {
			p.BackspaceDelay = patch.BackspaceDelay.Duration()
		}
		if patch.Loop != nil {
			p.Loop = *patch.Loop
		}
		if patch.Paused != nil {
			p.Paused = *patch.Paused
		}
		if splitter != nil {
			p.Splitter = splitter
		}
	})
	return nil
}

// Lines returns the latest snapshot.
func (s *Session) Lines() engine.Lines {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return s.static.Clone()
	}
	if s.typist == nil {
		return engine.Lines{}
	}
	return s.typist.Lines()
}

// Info describes the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	t := s.typist
	info := SessionInfo{
		ID:        s.ID,
		Name:      s.Name,
		Status:    engine.RunStatusIdle,
		Restarts:  s.restarts,
		Paused:    s.props.Paused,
		Loop:      s.props.Loop,
		Disabled:  s.disabled,
		Cursor:    s.cursor,
		Frames:    s.frames.Load(),
		CreatedAt: s.CreatedAt,
	}
	if msg := s.lastErr.Load(); msg != nil {
		info.Error = *msg
	}
	if s.disabled {
		info.Status = engine.RunStatusCompleted
		info.Lines = s.static.Clone()
	}
	s.mu.Unlock()

	if t != nil {
		props := t.Props()
		info.Status = t.Status()
		info.RunID = t.RunID()
		info.Passes = t.Passes()
		info.Paused = props.Paused
		info.Loop = props.Loop
		info.Lines = t.Lines()
	}
	if info.Lines == nil {
		info.Lines = engine.Lines{}
	}
	info.Text = render.Text(info.Lines, 0)
	return info
}

// Close discards the typist and ends every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	t := s.typist
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.mu.Unlock()

	if t != nil {
		t.Discard()
	}
	s.logger.Debug().Msg("Session closed")
}

func (s *Session) current() (*engine.Typist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return nil, ErrSessionClosed
	case s.disabled:
		return nil, ErrSessionDisabled
	}
	return s.typist, nil
}

// SessionManager tracks the live sessions of a server.
type SessionManager struct {
	ctx    context.Context
	tel    *telemetry.Telemetry
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager. Every session runs under ctx.
func NewSessionManager(ctx context.Context, tel *telemetry.Telemetry) *SessionManager {
	return &SessionManager{
		ctx:      ctx,
		tel:      tel,
		logger:   tel.Logger.NewComponentLogger("sessions").Zerolog(),
		sessions: make(map[string]*Session),
	}
}

// Create builds a session from script and starts animating it.
func (m *SessionManager) Create(script *config.Script) (*Session, error) {
	s, err := newSession(m.ctx, script, m.tel)
	if err != nil {
		return nil, err
	}
	if !s.disabled {
		if err := s.start(); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info().Str("session_id", s.ID).Str("name", s.Name).Int("sessions", total).Msg("Session created")
	return s, nil
}

// Get returns the session with id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns every session, oldest first.
func (m *SessionManager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete closes and removes the session with id.
func (m *SessionManager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.Info().Str("session_id", id).Msg("Session deleted")
	}
	return ok
}

// Close closes every session.
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

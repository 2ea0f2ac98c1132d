package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/typist/pkg/engine"
)

// Event is a lifecycle record of a typist run.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated run ID.
	RunID string `json:"run_id,omitempty"`

	// Script is the name of the script being typed.
	Script string `json:"script,omitempty"`

	// Pass is the pass number, for pass events.
	Pass int `json:"pass,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeRunStarted    = "run.started"
	EventTypePassCompleted = "pass.completed"
	EventTypeRunCompleted  = "run.completed"
	EventTypeRunCancelled  = "run.cancelled"
	EventTypeRunDiscarded  = "run.discarded"
	EventTypeRunFailed     = "run.failed"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// ErrPublisherStopped is returned by Publish after Shutdown.
var ErrPublisherStopped = errors.New("event publisher stopped")

// EventSubscriber handles delivered events. In async mode subscribers are
// called from a single goroutine in publication order and must not block.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers map[int]subscriberEntry
	nextID      int
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config:      cfg,
		subscribers: make(map[int]subscriberEntry),
		ctx:         ctx,
		cancel:      cancel,
	}
	if !cfg.Enabled {
		return ep, nil
	}

	if cfg.EnableAsync {
		if cfg.BufferSize <= 0 || cfg.MaxBatchSize <= 0 {
			cancel()
			return nil, fmt.Errorf("async events need a positive buffer and batch size")
		}
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish stamps the event and delivers it to every matching subscriber.
// In async mode it returns an error instead of blocking when the buffer is full.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}
	if ep.ctx.Err() != nil {
		return ErrPublisherStopped
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = "typist"
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	if !ep.config.EnableAsync {
		ep.deliverEvent(event)
		return nil
	}

	select {
	case ep.buffer <- event:
		return nil
	case <-ep.ctx.Done():
		return ErrPublisherStopped
	default:
		return fmt.Errorf("event buffer full, %s event dropped", event.Type)
	}
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(runID, script string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStarted,
		RunID:   runID,
		Script:  script,
		Message: fmt.Sprintf("Run %s started", runID),
	})
}

// PublishPassCompleted publishes a pass completed event.
func (ep *EventPublisher) PublishPassCompleted(runID, script string, pass int, elapsed time.Duration, emissions int) error {
	return ep.Publish(Event{
		Type:    EventTypePassCompleted,
		RunID:   runID,
		Script:  script,
		Pass:    pass,
		Message: fmt.Sprintf("Pass %d of run %s completed", pass, runID),
		Data: map[string]interface{}{
			"duration":  elapsed.Seconds(),
			"emissions": emissions,
		},
	})
}

// PublishRunFinished publishes the terminal event matching status. A non-nil
// err that is not a cancellation produces a run.failed event.
func (ep *EventPublisher) PublishRunFinished(runID, script string, status engine.RunStatus, passes int, err error) error {
	event := Event{
		RunID:  runID,
		Script: script,
		Data: map[string]interface{}{
			"status": string(status),
			"passes": passes,
		},
	}

	switch {
	case status == engine.RunStatusDiscarded:
		event.Type = EventTypeRunDiscarded
		event.Message = fmt.Sprintf("Run %s discarded", runID)
	case err != nil && !engine.IsCancelled(err):
		event.Type = EventTypeRunFailed
		event.Level = EventLevelError
		event.Message = fmt.Sprintf("Run %s failed: %v", runID, err)
		event.Data["error"] = err.Error()
	case status == engine.RunStatusCancelled:
		event.Type = EventTypeRunCancelled
		event.Level = EventLevelWarning
		event.Message = fmt.Sprintf("Run %s cancelled", runID)
	default:
		event.Type = EventTypeRunCompleted
		event.Message = fmt.Sprintf("Run %s completed after %d passes", runID, passes)
	}
	return ep.Publish(event)
}

// Subscribe registers a subscriber and returns a function that removes it.
// A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) func() {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	id := ep.nextID
	ep.nextID++
	ep.subscribers[id] = subscriberEntry{subscriber: subscriber, filter: filter}

	return func() {
		ep.mu.Lock()
		delete(ep.subscribers, id)
		ep.mu.Unlock()
	}
}

// processEvents delivers buffered events in batches, on size or on the
// flush interval, and drains the buffer on shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	interval := ep.config.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	entries := make([]subscriberEntry, 0, len(ep.subscribers))
	for _, entry := range ep.subscribers {
		entries = append(entries, entry)
	}
	ep.mu.RUnlock()

	for _, entry := range entries {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops accepting events and waits for buffered ones to be delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel allows events of minLevel or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType allows events of the given types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRunID allows events of a single run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}

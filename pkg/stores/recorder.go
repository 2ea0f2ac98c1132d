package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/typist/pkg/engine"
	"github.com/openfroyo/typist/pkg/telemetry"
)

// DefaultWriteTimeout bounds every write the recorder makes.
const DefaultWriteTimeout = 5 * time.Second

// Recorder persists telemetry events as run history.
type Recorder struct {
	store   Store
	logger  zerolog.Logger
	timeout time.Duration
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:   store,
		logger:  logger.With().Str("component", "recorder").Logger(),
		timeout: DefaultWriteTimeout,
	}
}

// Attach subscribes the recorder to every run event of ep and returns the
// unsubscribe function.
func (r *Recorder) Attach(ep *telemetry.EventPublisher) func() {
	return ep.Subscribe(func(e telemetry.Event) {
		if err := r.Record(e); err != nil {
			r.logger.Warn().Err(err).Str("event", e.Type).Str("run_id", e.RunID).Msg("Failed to record event")
		}
	}, telemetry.FilterByType(
		telemetry.EventTypeRunStarted,
		telemetry.EventTypePassCompleted,
		telemetry.EventTypeRunCompleted,
		telemetry.EventTypeRunCancelled,
		telemetry.EventTypeRunDiscarded,
		telemetry.EventTypeRunFailed,
	))
}

// Record updates the run row for e and appends e to the event log.
func (r *Recorder) Record(e telemetry.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	switch e.Type {
	case telemetry.EventTypeRunStarted:
		err := r.store.CreateRun(ctx, &Run{
			ID:        e.RunID,
			Script:    e.Script,
			Status:    engine.RunStatusRunning,
			StartedAt: e.Timestamp,
		})
		if err != nil {
			return err
		}

	case telemetry.EventTypePassCompleted:
		if err := r.store.IncrementRunCounters(ctx, e.RunID, 1, intData(e.Data, "emissions")); err != nil {
			return err
		}

	case telemetry.EventTypeRunCompleted:
		if err := r.store.UpdateRunStatus(ctx, e.RunID, engine.RunStatusCompleted, nil); err != nil {
			return err
		}

	case telemetry.EventTypeRunCancelled:
		if err := r.store.UpdateRunStatus(ctx, e.RunID, engine.RunStatusCancelled, nil); err != nil {
			return err
		}

	case telemetry.EventTypeRunDiscarded:
		if err := r.store.UpdateRunStatus(ctx, e.RunID, engine.RunStatusDiscarded, nil); err != nil {
			return err
		}

	case telemetry.EventTypeRunFailed:
		msg := e.Message
		if s, ok := e.Data["error"].(string); ok {
			msg = s
		}
		if err := r.store.UpdateRunStatus(ctx, e.RunID, engine.RunStatusCancelled, &msg); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported event type %q", e.Type)
	}

	return r.store.AppendEvent(ctx, toStoreEvent(e))
}

func toStoreEvent(e telemetry.Event) *Event {
	event := &Event{
		EventID:   e.ID,
		Type:      e.Type,
		Level:     EventLevel(e.Level),
		Pass:      e.Pass,
		Message:   e.Message,
		Timestamp: e.Timestamp,
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}
	if e.RunID != "" {
		runID := e.RunID
		event.RunID = &runID
	}
	if len(e.Data) > 0 {
		if data, err := json.Marshal(e.Data); err == nil {
			details := string(data)
			event.Details = &details
		}
	}
	return event
}

func intData(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

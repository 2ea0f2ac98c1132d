package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/engine"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"no service", func(c *Config) { c.ServiceName = "" }, "service name"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"jaeger", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, "invalid trace exporter"},
		{"otlp without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, "requires an endpoint"},
		{"sampling", func(c *Config) { c.Tracing.SamplingRate = 1.5 }, "sampling rate"},
		{"metrics namespace", func(c *Config) { c.Metrics.Namespace = "" }, "namespace"},
		{"event buffer", func(c *Config) { c.Events.BufferSize = 0 }, "buffer size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := config.DefaultAppConfig()
	app.Logging.Level = "debug"
	app.Tracing.Enabled = true
	app.Tracing.Exporter = "none"
	app.Metrics.Namespace = "demo"

	cfg := FromAppConfig(app, "1.2.3")
	if cfg.ServiceVersion != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", cfg.ServiceVersion)
	}
	if cfg.Logging.Level != "debug" || !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "none" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Metrics.Namespace != "demo" {
		t.Errorf("expected namespace demo, got %q", cfg.Metrics.Namespace)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("derived config is invalid: %v", err)
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerFrom(zerolog.New(&buf)).
		NewComponentLogger("server").
		WithSession("s-1").
		WithRunID("run-1").
		WithScript("greeting").
		WithPass(3)

	logger.Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	want := map[string]interface{}{
		"component":  "server",
		"session_id": "s-1",
		"run_id":     "run-1",
		"script":     "greeting",
		"pass":       float64(3),
		"message":    "hello",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("expected %s=%v, got %v", k, v, entry[k])
		}
	}
}

func TestLogger_Context(t *testing.T) {
	logger := NewLoggerFrom(zerolog.Nop())
	ctx := logger.WithContext(context.Background())
	if FromContext(ctx) != logger {
		t.Error("expected logger from context")
	}
	if FromContext(context.Background()) == nil {
		t.Error("expected fallback logger")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Error("expected debug level")
	}
	if ParseLevel("chatty") != zerolog.InfoLevel {
		t.Error("expected info level for unknown names")
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func TestEventPublisher_Sync(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	var all, warnings eventLog
	ep.Subscribe(all.add, nil)
	unsubscribe := ep.Subscribe(warnings.add, FilterByLevel(EventLevelWarning))

	_ = ep.PublishRunStarted("run-1", "greeting")
	_ = ep.PublishRunFinished("run-1", "greeting", engine.RunStatusCancelled, 0, engine.ErrCancelled)
	unsubscribe()
	_ = ep.PublishRunFinished("run-2", "greeting", engine.RunStatusCancelled, 0, engine.ErrCancelled)

	if got := all.types(); strings.Join(got, ",") != "run.started,run.cancelled,run.cancelled" {
		t.Errorf("unexpected events %v", got)
	}
	if got := warnings.types(); len(got) != 1 {
		t.Errorf("expected one warning before unsubscribe, got %v", got)
	}

	first := all.events[0]
	if first.ID == "" || first.Timestamp.IsZero() || first.Source != "typist" || first.Level != EventLevelInfo {
		t.Errorf("expected stamped event, got %+v", first)
	}
}

func TestEventPublisher_AsyncOrderAndDrain(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{
		Enabled:       true,
		EnableAsync:   true,
		BufferSize:    100,
		MaxBatchSize:  10,
		FlushInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	var log eventLog
	ep.Subscribe(log.add, FilterByRunID("run-1"))

	for i := 1; i <= 25; i++ {
		if err := ep.PublishPassCompleted("run-1", "s", i, time.Millisecond, 1); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	_ = ep.PublishRunStarted("run-2", "s")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ep.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.events) != 25 {
		t.Fatalf("expected 25 delivered events, got %d", len(log.events))
	}
	for i, e := range log.events {
		if e.Pass != i+1 {
			t.Fatalf("event %d delivered out of order (pass %d)", i, e.Pass)
		}
	}

	if err := ep.PublishRunStarted("run-3", "s"); !errors.Is(err, ErrPublisherStopped) {
		t.Errorf("expected ErrPublisherStopped after shutdown, got %v", err)
	}
}

func TestEventPublisher_RunFinishedTypes(t *testing.T) {
	tests := []struct {
		status engine.RunStatus
		err    error
		want   string
		level  string
	}{
		{engine.RunStatusCompleted, nil, EventTypeRunCompleted, EventLevelInfo},
		{engine.RunStatusCancelled, engine.ErrCancelled, EventTypeRunCancelled, EventLevelWarning},
		{engine.RunStatusDiscarded, engine.ErrCancelled, EventTypeRunDiscarded, EventLevelInfo},
		{engine.RunStatusCancelled, engine.ErrPostDiscard, EventTypeRunFailed, EventLevelError},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			ep, _ := NewEventPublisher(EventsConfig{Enabled: true})
			var log eventLog
			ep.Subscribe(log.add, nil)

			_ = ep.PublishRunFinished("run-1", "s", tt.status, 2, tt.err)

			if len(log.events) != 1 {
				t.Fatalf("expected one event, got %d", len(log.events))
			}
			e := log.events[0]
			if e.Type != tt.want || e.Level != tt.level {
				t.Errorf("expected %s/%s, got %s/%s", tt.want, tt.level, e.Type, e.Level)
			}
			if e.Data["passes"] != 2 {
				t.Errorf("expected passes in data, got %v", e.Data)
			}
		})
	}
}

func TestEventPublisher_Disabled(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}
	called := false
	ep.Subscribe(func(Event) { called = true }, nil)
	if err := ep.PublishRunStarted("run-1", "s"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if called {
		t.Error("disabled publisher delivered an event")
	}
	if err := ep.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestMetrics_Disabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	m.RecordRunStarted("s")
	m.RecordEmission("s")
	m.RecordRunFinished("completed")
	if m.Enabled() || m.Registry() != nil {
		t.Error("expected disabled metrics")
	}
}

// newTestTelemetry returns telemetry with an in-memory span recorder and
// synchronous events.
func newTestTelemetry(t *testing.T) (*Telemetry, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	metrics, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	events, err := NewEventPublisher(EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	return &Telemetry{
		Logger:  NewLoggerFrom(zerolog.Nop()),
		Tracer:  NewTracerWithProvider(provider, "test"),
		Metrics: metrics,
		Events:  events,
		Config:  DefaultConfig(),
	}, recorder
}

func TestObserver_CompletedRun(t *testing.T) {
	tel, recorder := newTestTelemetry(t)
	var log eventLog
	tel.Events.Subscribe(log.add, nil)

	obs := tel.NewObserver(context.Background(), "greeting")
	props := engine.Props{
		Content:     engine.Actions{engine.TypeString("hi")},
		TypingDelay: time.Millisecond,
	}
	typist := engine.NewTypist(props, nil, engine.WithObserver(obs))
	if err := typist.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := strings.Join(log.types(), ","); got != "run.started,pass.completed,run.completed" {
		t.Errorf("unexpected events %s", got)
	}
	// [] [""] ["h"] ["hi"]
	if got := log.events[1].Data["emissions"]; got != 4 {
		t.Errorf("expected 4 emissions in pass event, got %v", got)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected run and pass spans, got %d", len(spans))
	}
	if spans[0].Name() != SpanPass || spans[1].Name() != SpanRun {
		t.Errorf("unexpected span order %s, %s", spans[0].Name(), spans[1].Name())
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Error("pass span is not a child of the run span")
	}

	m := tel.Metrics
	if v := testutil.ToFloat64(m.runsStarted.WithLabelValues("greeting")); v != 1 {
		t.Errorf("expected 1 run started, got %v", v)
	}
	if v := testutil.ToFloat64(m.runsFinished.WithLabelValues("completed")); v != 1 {
		t.Errorf("expected 1 completed run, got %v", v)
	}
	if v := testutil.ToFloat64(m.emissions.WithLabelValues("greeting")); v != 4 {
		t.Errorf("expected 4 emissions, got %v", v)
	}
	if v := testutil.ToFloat64(m.activeRuns); v != 0 {
		t.Errorf("expected no active runs, got %v", v)
	}
	if obs.Active() != 0 {
		t.Errorf("expected observer to forget finished runs, got %d", obs.Active())
	}
}

func TestObserver_CancelledRun(t *testing.T) {
	tel, recorder := newTestTelemetry(t)
	var log eventLog
	tel.Events.Subscribe(log.add, nil)

	props := engine.Props{
		Content:     engine.Actions{engine.TypeString("a long line of text")},
		TypingDelay: 20 * time.Millisecond,
	}
	typist := engine.NewTypist(props, nil, engine.WithObserver(tel.NewObserver(context.Background(), "slow")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := typist.Run(ctx); !engine.IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}

	types := log.types()
	if types[len(types)-1] != EventTypeRunCancelled {
		t.Errorf("expected run.cancelled last, got %v", types)
	}
	if len(recorder.Ended()) != 2 {
		t.Errorf("expected the open pass span to be ended, got %d spans", len(recorder.Ended()))
	}
	if v := testutil.ToFloat64(tel.Metrics.runsFinished.WithLabelValues("cancelled")); v != 1 {
		t.Errorf("expected 1 cancelled run, got %v", v)
	}
	if v := testutil.ToFloat64(tel.Metrics.errorsByClass.WithLabelValues("cancelled")); v != 0 {
		t.Errorf("cancellations must not count as errors, got %v", v)
	}
}

func TestStartOperation(t *testing.T) {
	tel, recorder := newTestTelemetry(t)
	ctx := tel.WithContext(context.Background())

	if FromTelemetryContext(ctx) != tel {
		t.Fatal("expected telemetry in context")
	}

	ic := StartOperation(ctx, "script.compile")
	ic.End(errors.New("boom"))

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "script.compile" {
		t.Fatalf("unexpected spans %v", spans)
	}
	if spans[0].Status().Description != "boom" {
		t.Errorf("expected error status, got %+v", spans[0].Status())
	}

	// Without telemetry the operation still works.
	StartOperation(context.Background(), "noop").End(nil)
}

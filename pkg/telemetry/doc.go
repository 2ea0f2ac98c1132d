// Package telemetry provides observability for typist runs.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry), metrics
// (Prometheus) and an in-process event stream. The engine knows nothing about
// any of them: Observer adapts the engine.Observer hooks to all four.
//
// # Usage
//
// Initialize telemetry at startup and attach an observer to every typist:
//
//	cfg := telemetry.FromAppConfig(appCfg, version)
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	typist := engine.NewTypist(props, sink,
//	    engine.WithLogger(tel.Logger.Zerolog()),
//	    engine.WithObserver(tel.NewObserver(ctx, script.Name)),
//	)
//
// # Logging
//
// Logger wraps zerolog with typist fields:
//
//	logger := tel.Logger.NewComponentLogger("server").WithSession(id)
//	logger.WithRunID(runID).WithPass(2).Debug("Pass completed")
//
// Console output goes to stderr by default, leaving stdout to the animation.
//
// # Tracing
//
// Every run gets a typist.run span and every pass a typist.pass child span.
// Cancelled runs end their spans with an OK status; only real engine errors
// mark a span as failed. Exporters: "stdout", "otlp" (gRPC) and "none".
//
// # Metrics
//
// Collectors live on a private registry served by Metrics.Handler:
//
//   - typist_runs_started_total{script}
//   - typist_runs_finished_total{status}
//   - typist_passes_completed_total{script}
//   - typist_emissions_total{script}
//   - typist_pass_duration_seconds{script}
//   - typist_errors_total{class}
//   - typist_active_runs
//
// # Events
//
// EventPublisher delivers run.started, pass.completed, run.completed,
// run.cancelled, run.discarded and run.failed events to subscribers, for
// example the run history recorder in pkg/stores:
//
//	unsubscribe := tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.RunID)
//	}, telemetry.FilterByType(telemetry.EventTypeRunCompleted))
//	defer unsubscribe()
//
// In async mode events are batched and delivered from one goroutine;
// Shutdown delivers whatever is still buffered.
package telemetry

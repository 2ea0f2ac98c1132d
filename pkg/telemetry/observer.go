package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/typist/pkg/engine"
)

// Observer implements engine.Observer. It turns typist lifecycle hooks into
// log lines, spans, metrics and events. One Observer may be shared by any
// number of typists typing the same script.
type Observer struct {
	tel    *Telemetry
	script string
	parent context.Context
	logger *Logger

	mu   sync.Mutex
	runs map[string]*runState
}

type runState struct {
	ctx           context.Context
	span          trace.Span
	passSpan      trace.Span
	passes        int
	emissions     int
	passEmissions int
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver returns an observer labelling everything with script. Run spans
// are children of the span in ctx, if any.
func (t *Telemetry) NewObserver(ctx context.Context, script string) *Observer {
	if script == "" {
		script = "unnamed"
	}
	return &Observer{
		tel:    t,
		script: script,
		parent: ctx,
		logger: t.Logger.NewComponentLogger("observer").WithScript(script),
		runs:   make(map[string]*runState),
	}
}

// RunStarted opens the run span.
func (o *Observer) RunStarted(runID string) {
	ctx, span := o.tel.Tracer.StartRunSpan(o.parent, runID, o.script)

	o.mu.Lock()
	o.runs[runID] = &runState{ctx: ctx, span: span}
	o.mu.Unlock()

	o.tel.Metrics.RecordRunStarted(o.script)
	o.publish(o.tel.Events.PublishRunStarted(runID, o.script))
	o.logger.WithRunID(runID).Debug("Run started")
}

// PassStarted opens a pass span under the run span.
func (o *Observer) PassStarted(runID string, pass int, actions int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rs, ok := o.runs[runID]
	if !ok {
		return
	}
	_, rs.passSpan = o.tel.Tracer.StartPassSpan(rs.ctx, runID, pass, actions)
	rs.passEmissions = 0
}

// PassCompleted closes the pass span and records the pass.
func (o *Observer) PassCompleted(runID string, pass int, elapsed time.Duration) {
	o.mu.Lock()
	rs, ok := o.runs[runID]
	emissions := 0
	if ok {
		rs.passes = pass
		emissions = rs.passEmissions
		if rs.passSpan != nil {
			rs.passSpan.SetAttributes(AttrEmissions.Int(emissions))
			RecordSuccess(rs.passSpan)
			rs.passSpan.End()
			rs.passSpan = nil
		}
	}
	o.mu.Unlock()

	o.tel.Metrics.RecordPassCompleted(o.script, elapsed)
	o.publish(o.tel.Events.PublishPassCompleted(runID, o.script, pass, elapsed, emissions))
	o.logger.WithRunID(runID).WithPass(pass).Debugf("Pass completed in %s", elapsed.Round(time.Millisecond))
}

// Emitted counts a delivered snapshot.
func (o *Observer) Emitted(runID string, _ int) {
	o.mu.Lock()
	if rs, ok := o.runs[runID]; ok {
		rs.emissions++
		rs.passEmissions++
	}
	o.mu.Unlock()

	o.tel.Metrics.RecordEmission(o.script)
}

// RunFinished closes any open span and records the final status.
func (o *Observer) RunFinished(runID string, status engine.RunStatus, err error) {
	o.mu.Lock()
	rs, ok := o.runs[runID]
	delete(o.runs, runID)
	o.mu.Unlock()

	passes := 0
	if ok {
		passes = rs.passes
		if rs.passSpan != nil {
			rs.passSpan.SetAttributes(AttrEmissions.Int(rs.passEmissions))
			rs.passSpan.End()
		}
		rs.span.SetAttributes(AttrRunStatus.String(string(status)), AttrPass.Int(passes))
		if err != nil && !engine.IsCancelled(err) {
			RecordError(rs.span, err)
		} else {
			RecordSuccess(rs.span)
		}
		rs.span.End()
	}

	var ee *engine.EngineError
	if err != nil && !engine.IsCancelled(err) {
		class := "unknown"
		if errors.As(err, &ee) {
			class = string(ee.Class)
		}
		o.tel.Metrics.RecordError(class)
		o.logger.WithRunID(runID).WithError(err).Error("Run failed")
	}

	o.tel.Metrics.RecordRunFinished(string(status))
	o.publish(o.tel.Events.PublishRunFinished(runID, o.script, status, passes, err))
	o.logger.WithRunID(runID).WithField("status", string(status)).Debug("Run finished")
}

// Active returns the number of runs observed but not yet finished.
func (o *Observer) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs)
}

func (o *Observer) publish(err error) {
	if err != nil && !errors.Is(err, ErrPublisherStopped) {
		o.logger.WithError(err).Warn("Failed to publish event")
	}
}

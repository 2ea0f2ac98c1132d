package engine

import (
	"context"
	"time"
)

// DefaultPollInterval is how often a paused wait re-checks the pause flag
// once its base duration has elapsed.
const DefaultPollInterval = 30 * time.Millisecond

// PauseFunc reports whether the animation is currently paused.
type PauseFunc func() bool

// Sleep blocks for d and then, while paused reports true, keeps polling it
// every poll interval. The base timer always fires at its scheduled instant;
// pausing only withholds resolution afterwards.
//
// Cancelling ctx stops the timer and the poll ticker and returns ErrCancelled.
func Sleep(ctx context.Context, d time.Duration, paused PauseFunc, poll time.Duration) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ErrCancelled
	case <-timer.C:
	}

	if paused == nil || !paused() {
		return nil
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ErrCancelled
		case <-ticker.C:
			if !paused() {
				return nil
			}
		}
	}
}

// Package retry repeats an operation for as long as its target reports busy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultBudget is used for a negative budget.
	DefaultBudget = 9999 * time.Second
	// Tick is the pause between attempts, one game tick.
	Tick = 50 * time.Millisecond
)

// ErrBusy is returned by an operation whose target can't take it right now.
var ErrBusy = errors.New("busy")

// TimeoutError is returned when the target stayed busy for the whole budget.
type TimeoutError struct {
	Budget   time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("still busy after %s (%d attempts)", e.Budget, e.Attempts)
}

func (e *TimeoutError) Unwrap() error {
	return ErrBusy
}

// WhileBusy calls fn until it returns something other than ErrBusy, the
// budget runs out or ctx is done. fn is always called at least once.
func WhileBusy[T any](ctx context.Context, budget time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if budget < 0 {
		budget = DefaultBudget
	}
	deadline := time.Now().Add(budget)

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if !errors.Is(err, ErrBusy) {
			return v, err
		}
		if !time.Now().Before(deadline) {
			return zero, &TimeoutError{Budget: budget, Attempts: attempt}
		}

		wait := min(Tick, time.Until(deadline))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

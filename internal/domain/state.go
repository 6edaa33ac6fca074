package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davidbz/sidecar/internal/observability"
)

// RequestState is the lifecycle stage of one provider call.
type RequestState int

const (
	StateIdle RequestState = iota
	StateFormatting
	StateConnecting
	StateStreaming
	StateCompleted
	StateErrored
	StateCancelled
)

func (s RequestState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFormatting:
		return "formatting"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s RequestState) Terminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateCancelled
}

//nolint:gochecknoglobals // transition table
var allowedTransitions = map[RequestState][]RequestState{
	StateIdle:       {StateFormatting, StateErrored, StateCancelled},
	StateFormatting: {StateConnecting, StateErrored, StateCancelled},
	StateConnecting: {StateStreaming, StateErrored, StateCancelled},
	StateStreaming:  {StateCompleted, StateErrored, StateCancelled},
	StateErrored:    {StateConnecting},
}

// StateTracker walks a request through its lifecycle. Errored may re-enter
// Connecting when a failover retry is made.
type StateTracker struct {
	mu    sync.Mutex
	state RequestState
}

// NewStateTracker starts in StateIdle.
func NewStateTracker() *StateTracker {
	return &StateTracker{state: StateIdle}
}

// State returns the current state.
func (t *StateTracker) State() RequestState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Transition moves to next, rejecting transitions outside the lifecycle.
func (t *StateTracker) Transition(ctx context.Context, next RequestState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, allowed := range allowedTransitions[t.state] {
		if allowed == next {
			observability.FromContext(ctx).Debug("request state",
				observability.String("from", t.state.String()),
				observability.String("to", next.String()))
			t.state = next
			return nil
		}
	}
	return fmt.Errorf("illegal request state transition %s -> %s", t.state, next)
}

// Finish moves to the terminal state matching err.
func (t *StateTracker) Finish(ctx context.Context, err error) {
	next := StateCompleted
	switch {
	case err == nil:
	case isCancellation(err):
		next = StateCancelled
	default:
		next = StateErrored
	}
	if err := t.Transition(ctx, next); err != nil {
		observability.FromContext(ctx).Warn("request state not finished", observability.Error(err))
	}
}

type trackerKey struct{}

// WithStateTracker attaches t to ctx so every attempt of one request walks
// the same lifecycle.
func WithStateTracker(ctx context.Context, t *StateTracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// StateTrackerFrom returns the tracker attached to ctx.
func StateTrackerFrom(ctx context.Context) (*StateTracker, bool) {
	t, ok := ctx.Value(trackerKey{}).(*StateTracker)
	return t, ok && t != nil
}

func isCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrSinkClosed) ||
		errors.Is(err, context.Canceled)
}

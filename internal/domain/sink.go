package domain

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DeltaSink is an unbounded single-consumer queue of deltas. The producer
// calls Send and Close; the consumer calls Recv and, to stop early, Drop.
type DeltaSink struct {
	mu      sync.Mutex
	queue   []Delta
	closed  bool
	dropped bool
	ready   chan struct{}
}

// NewDeltaSink creates an empty sink.
func NewDeltaSink() *DeltaSink {
	return &DeltaSink{
		ready: make(chan struct{}, 1),
	}
}

// Send enqueues a delta. It never blocks.
func (s *DeltaSink) Send(delta Delta) error {
	s.mu.Lock()
	if s.dropped {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: send after close", ErrSinkClosed)
	}
	s.queue = append(s.queue, delta)
	s.mu.Unlock()

	s.signal()
	return nil
}

// Close marks the end of the stream. Queued deltas remain receivable.
func (s *DeltaSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

// Drop is the consumer walking away: queued deltas are discarded and every
// later Send fails with ErrSinkClosed.
func (s *DeltaSink) Drop() {
	s.mu.Lock()
	s.dropped = true
	s.queue = nil
	s.mu.Unlock()
	s.signal()
}

// Recv blocks until a delta is available. It returns false once the sink is
// closed and drained, dropped, or ctx is done.
func (s *DeltaSink) Recv(ctx context.Context) (Delta, bool) {
	for {
		s.mu.Lock()
		if s.dropped {
			s.mu.Unlock()
			return Delta{}, false
		}
		if len(s.queue) > 0 {
			delta := s.queue[0]
			s.queue[0] = Delta{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return delta, true
		}
		if s.closed {
			s.mu.Unlock()
			return Delta{}, false
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-ctx.Done():
			return Delta{}, false
		}
	}
}

func (s *DeltaSink) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(delta Delta) error

// Send calls f(delta).
func (f SinkFunc) Send(delta Delta) error {
	return f(delta)
}

// DiscardSink drops every delta.
//
//nolint:gochecknoglobals // stateless sink
var DiscardSink Sink = SinkFunc(func(Delta) error { return nil })

// Accumulator concatenates stream fragments and forwards each one to a sink
// together with the text so far.
type Accumulator struct {
	sink      Sink
	modelEcho string
	text      strings.Builder
	sent      int
}

// NewAccumulator creates an accumulator forwarding to sink.
func NewAccumulator(sink Sink, modelEcho string) *Accumulator {
	if sink == nil {
		sink = DiscardSink
	}
	return &Accumulator{sink: sink, modelEcho: modelEcho}
}

// SetModelEcho replaces the model name reported with later deltas.
func (a *Accumulator) SetModelEcho(model string) {
	if model != "" {
		a.modelEcho = model
	}
}

// Push sends fragment and appends it once the sink accepted it. Empty
// fragments are skipped.
func (a *Accumulator) Push(ctx context.Context, fragment string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if fragment == "" {
		return nil
	}

	increment := fragment
	if err := a.sink.Send(Delta{
		TextSoFar: a.text.String() + fragment,
		Delta:     &increment,
		ModelEcho: a.modelEcho,
	}); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrSinkClosed, err)
	}
	a.text.WriteString(fragment)
	a.sent++
	return nil
}

// Text returns the accumulated text.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Sent returns how many deltas reached the sink.
func (a *Accumulator) Sent() int {
	return a.sent
}

package domain

import (
	"context"
	"sync/atomic"

	"github.com/davidbz/sidecar/internal/observability"
)

// FailOver describes a secondary provider to fall back to.
type FailOver struct {
	Primary   ProviderCredentials
	Secondary ProviderCredentials
	Retries   int
}

// StreamAnswerWithFailover runs req against the primary credentials and, on a
// retryable error, re-runs it against the secondary up to Retries times. A
// retry is only made while no delta has reached the sink, so the caller never
// sees two accumulators interleaved.
func (b *Broker) StreamAnswerWithFailover(
	ctx context.Context,
	failOver FailOver,
	req AnswerRequest,
	sink Sink,
) (string, error) {
	counting := &countingSink{inner: sinkOrDiscard(sink)}
	if _, ok := StateTrackerFrom(ctx); !ok {
		ctx = WithStateTracker(ctx, NewStateTracker())
	}

	text, err := b.StreamAnswer(ctx, failOver.Primary, req, counting)
	for attempt := 1; err != nil && attempt <= failOver.Retries && failOver.Secondary != nil; attempt++ {
		if !IsRetryable(err) || counting.sent.Load() > 0 || ctx.Err() != nil {
			break
		}

		observability.FromContext(ctx).Warn("failing over to secondary provider",
			observability.String("primary", string(failOver.Primary.Identity())),
			observability.String("secondary", string(failOver.Secondary.Identity())),
			observability.Int("attempt", attempt),
			observability.Error(err))

		text, err = b.StreamAnswer(ctx, failOver.Secondary, req, counting)
	}
	return text, err
}

type countingSink struct {
	inner Sink
	sent  atomic.Int64
}

func (s *countingSink) Send(delta Delta) error {
	if err := s.inner.Send(delta); err != nil {
		return err
	}
	s.sent.Add(1)
	return nil
}

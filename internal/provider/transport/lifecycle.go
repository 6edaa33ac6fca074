package transport

import (
	"context"

	"github.com/davidbz/sidecar/internal/domain"
)

// Call drives one provider request through the request lifecycle. connect
// opens the stream and consume reads it; the tracker ends in the terminal
// state matching the returned error. The tracker attached to ctx is used when
// present, so a failover retry re-enters Connecting from Errored.
func Call[T any](
	ctx context.Context,
	connect func(ctx context.Context) (T, error),
	consume func(ctx context.Context, conn T) (string, error),
) (text string, err error) {
	tracker, ok := domain.StateTrackerFrom(ctx)
	if !ok {
		tracker = domain.NewStateTracker()
		if err = tracker.Transition(ctx, domain.StateFormatting); err != nil {
			return "", err
		}
	}
	if err = tracker.Transition(ctx, domain.StateConnecting); err != nil {
		return "", err
	}
	defer func() { tracker.Finish(ctx, err) }()

	conn, err := connect(ctx)
	if err != nil {
		return "", err
	}
	if err = tracker.Transition(ctx, domain.StateStreaming); err != nil {
		return "", err
	}
	return consume(ctx, conn)
}

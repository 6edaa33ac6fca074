package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/sidecar/internal/domain"
)

func TestStateTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("should walk the happy path to completed", func(t *testing.T) {
		tracker := domain.NewStateTracker()
		require.Equal(t, domain.StateIdle, tracker.State())

		require.NoError(t, tracker.Transition(ctx, domain.StateFormatting))
		require.NoError(t, tracker.Transition(ctx, domain.StateConnecting))
		require.NoError(t, tracker.Transition(ctx, domain.StateStreaming))
		tracker.Finish(ctx, nil)

		require.Equal(t, domain.StateCompleted, tracker.State())
		require.True(t, tracker.State().Terminal())
	})

	t.Run("should reject skipping stages", func(t *testing.T) {
		tracker := domain.NewStateTracker()

		require.Error(t, tracker.Transition(ctx, domain.StateStreaming))
		require.Equal(t, domain.StateIdle, tracker.State())
	})

	t.Run("should finish as cancelled on sink or context cancellation", func(t *testing.T) {
		for _, err := range []error{domain.ErrSinkClosed, domain.ErrCancelled, context.Canceled} {
			tracker := domain.NewStateTracker()
			require.NoError(t, tracker.Transition(ctx, domain.StateFormatting))
			tracker.Finish(ctx, err)
			require.Equal(t, domain.StateCancelled, tracker.State())
		}
	})

	t.Run("should allow reconnecting after an error", func(t *testing.T) {
		tracker := domain.NewStateTracker()
		require.NoError(t, tracker.Transition(ctx, domain.StateFormatting))
		require.NoError(t, tracker.Transition(ctx, domain.StateConnecting))
		tracker.Finish(ctx, domain.ErrNetwork)
		require.Equal(t, domain.StateErrored, tracker.State())

		require.NoError(t, tracker.Transition(ctx, domain.StateConnecting))
	})

	t.Run("should never leave completed", func(t *testing.T) {
		tracker := domain.NewStateTracker()
		require.NoError(t, tracker.Transition(ctx, domain.StateFormatting))
		require.NoError(t, tracker.Transition(ctx, domain.StateConnecting))
		require.NoError(t, tracker.Transition(ctx, domain.StateStreaming))
		tracker.Finish(ctx, nil)

		require.Error(t, tracker.Transition(ctx, domain.StateConnecting))
		require.Equal(t, "completed", tracker.State().String())
	})
}

func TestStateTrackerFrom(t *testing.T) {
	t.Run("should return the attached tracker", func(t *testing.T) {
		tracker := domain.NewStateTracker()
		ctx := domain.WithStateTracker(context.Background(), tracker)

		got, ok := domain.StateTrackerFrom(ctx)
		require.True(t, ok)
		require.Same(t, tracker, got)
	})

	t.Run("should report a context without a tracker", func(t *testing.T) {
		_, ok := domain.StateTrackerFrom(context.Background())
		require.False(t, ok)
	})
}

package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/davidbz/sidecar/internal/observability"
)

// blockingCore holds every write until release is closed.
type blockingCore struct {
	zapcore.Core
	release chan struct{}
}

func (c blockingCore) With(fields []zapcore.Field) zapcore.Core {
	return blockingCore{Core: c.Core.With(fields), release: c.release}
}

func (c blockingCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c blockingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	<-c.release
	return c.Core.Write(entry, fields)
}

func TestEventBus(t *testing.T) {
	t.Run("should log published events with context fields", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		bus := observability.NewEventBus(zap.New(core), 8)

		ctx := observability.WithRequestID(context.Background(), "req-1")
		ctx = observability.WithProvider(ctx, "anthropic")
		bus.Publish(ctx, "llm.request", map[string]interface{}{"model": "claude-sonnet"})
		bus.Close()

		entries := logs.FilterMessage("llm.request").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		require.Equal(t, "req-1", fields["request_id"])
		require.Equal(t, "anthropic", fields["provider"])
		require.Equal(t, "claude-sonnet", fields["model"])
	})

	t.Run("should drop events instead of blocking when the buffer is full", func(t *testing.T) {
		inner, logs := observer.New(zapcore.InfoLevel)
		release := make(chan struct{})
		bus := observability.NewEventBus(zap.New(blockingCore{Core: inner, release: release}), 1)

		const published = 10
		for i := 0; i < published; i++ {
			bus.Publish(context.Background(), "llm.request", map[string]interface{}{"i": i})
		}
		require.Positive(t, bus.Dropped())

		close(release)
		bus.Close()

		require.Equal(t, int64(published), int64(logs.Len())+bus.Dropped())
	})

	t.Run("should count publishes after close as dropped", func(t *testing.T) {
		core, _ := observer.New(zapcore.InfoLevel)
		bus := observability.NewEventBus(zap.New(core), 1)
		bus.Close()

		require.NotPanics(t, func() {
			bus.Publish(context.Background(), "late", nil)
		})
		require.Equal(t, int64(1), bus.Dropped())
	})

	t.Run("should ignore publishes on a nil bus", func(t *testing.T) {
		var bus *observability.EventBus
		require.NotPanics(t, func() {
			bus.Publish(context.Background(), "noop", nil)
		})
	})
}

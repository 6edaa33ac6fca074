package stream

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrIdleTimeout is returned by an IdleTimeoutReader once no byte arrived
// within the idle window.
var ErrIdleTimeout = errors.New("stream idle timeout")

// IdleTimeoutReader closes the underlying body when it stays silent for
// longer than the idle window. Each successful read restarts the window.
type IdleTimeoutReader struct {
	body     io.ReadCloser
	timeout  time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
	once     sync.Once
}

// NewIdleTimeoutReader wraps body. A non-positive timeout disables the watchdog.
func NewIdleTimeoutReader(body io.ReadCloser, timeout time.Duration) *IdleTimeoutReader {
	r := &IdleTimeoutReader{body: body, timeout: timeout}
	if timeout > 0 {
		r.timer = time.AfterFunc(timeout, func() {
			r.timedOut.Store(true)
			_ = r.body.Close()
		})
	}
	return r
}

func (r *IdleTimeoutReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if r.timedOut.Load() {
		return n, ErrIdleTimeout
	}
	if n > 0 && r.timer != nil {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

// Close stops the watchdog and closes the body.
func (r *IdleTimeoutReader) Close() error {
	var err error
	r.once.Do(func() {
		if r.timer != nil {
			r.timer.Stop()
		}
		err = r.body.Close()
	})
	return err
}

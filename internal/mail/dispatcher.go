package mail

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/samber/ro"

	"keygate/internal/ratelimit"
)

// queueDepth bounds how many messages may wait for dispatch.
const queueDepth = 128

// Dispatcher throttles and delivers messages off the request path.
// Handlers enqueue and move on; delivery happens on the dispatcher's
// stream, paced by the configured outbound rate. Anything that cannot be
// queued or sent is logged and dropped, never surfaced to the caller.
type Dispatcher struct {
	ch     chan Message
	done   chan struct{}
	closed atomic.Bool
}

// NewDispatcher starts a Dispatcher delivering through sender at most
// perMinute messages per minute.
func NewDispatcher(ctx context.Context, sender *Sender, perMinute int64) *Dispatcher {
	d := &Dispatcher{
		ch:   make(chan Message, queueDepth),
		done: make(chan struct{}),
	}

	limited := ratelimit.LimitGlobal(ro.FromChannel(d.ch), perMinute, time.Minute)
	limited.Subscribe(ro.NewObserver(
		func(msg Message) {
			if err := sender.Send(ctx, msg); err != nil {
				logger().Error().
					Err(err).
					Str("to", msg.To).
					Msg("mail delivery failed")
			}
		},
		func(err error) {
			logger().Error().Err(err).Msg("mail dispatch stream failed")
			close(d.done)
		},
		func() {
			close(d.done)
		},
	))

	return d
}

// Enqueue queues a message for delivery. Returns false when the message
// was dropped (full queue or dispatcher shut down); the caller's flow is
// unaffected either way.
func (d *Dispatcher) Enqueue(msg Message) bool {
	if d.closed.Load() {
		return false
	}
	select {
	case d.ch <- msg:
		return true
	default:
		logger().Warn().
			Str("to", msg.To).
			Msg("mail queue full, message dropped")
		return false
	}
}

// Shutdown stops intake and waits for queued messages to drain, bounded
// by the context.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(d.ch)

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

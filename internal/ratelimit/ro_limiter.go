// Reactive throttling for stream-shaped work, built on samber/ro.
//
// The mail dispatcher uses this to pace outbound magic-link email: sends
// flow through an observable and the rate limiter applies backpressure,
// fully decoupled from the request path. Use the Limiter/SurgeGuard pair
// for synchronous request checks instead.
package ratelimit

import (
	"time"

	"github.com/samber/ro"
	roratelimit "github.com/samber/ro/plugins/ratelimit/native"
)

// DefaultInterval is the default throttle interval (1 minute).
const DefaultInterval = time.Minute

// normalizeInterval returns the interval, defaulting to DefaultInterval if zero.
func normalizeInterval(interval time.Duration) time.Duration {
	if interval == 0 {
		return DefaultInterval
	}
	return interval
}

// Limit throttles an observable stream to count items per interval.
// Items exceeding the rate are delayed (backpressure), not dropped.
// The keyGetter groups items into buckets; items with the same key share
// a bucket. An empty-string key throttles globally.
func Limit[T any](
	source ro.Observable[T],
	count int64,
	interval time.Duration,
	keyGetter func(T) string,
) ro.Observable[T] {
	return ro.Pipe1(
		source,
		roratelimit.NewRateLimiter[T](count, normalizeInterval(interval), keyGetter),
	)
}

// LimitGlobal throttles all items in the stream through a single bucket.
func LimitGlobal[T any](
	source ro.Observable[T],
	count int64,
	interval time.Duration,
) ro.Observable[T] {
	return Limit(source, count, interval, func(_ T) string { return "" })
}

// NewLimitOperator creates a reusable throttle operator for ro.Pipe
// composition, useful when the same limit applies to multiple streams.
func NewLimitOperator[T any](
	count int64,
	interval time.Duration,
	keyGetter func(T) string,
) func(ro.Observable[T]) ro.Observable[T] {
	return roratelimit.NewRateLimiter[T](count, normalizeInterval(interval), keyGetter)
}

// NewGlobalLimitOperator creates a reusable single-bucket throttle operator.
func NewGlobalLimitOperator[T any](
	count int64,
	interval time.Duration,
) func(ro.Observable[T]) ro.Observable[T] {
	return NewLimitOperator[T](count, interval, func(_ T) string { return "" })
}

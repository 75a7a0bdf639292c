// Package ratelimit bounds how often a key may be admitted within a rolling
// window.
//
// SlidingWindow keeps a timestamp list per key in process memory and is the
// default for a single instance. When the number of tracked keys exceeds
// Config.SweepThreshold every key is compacted; Sweep can also be scheduled.
//
// RedisSlidingWindow applies the same predicate (drop hits older than
// now-window, reject when count >= max, else record now) against a Redis
// sorted set so replicas share one budget.
//
// Keys for public share entry are built with EntryKey:
//
//	limiter.Allow(ctx, ratelimit.EntryKey(shareToken, clientIP))
package ratelimit

// EntryKey builds the limiter key for a share entry request
func EntryKey(shareToken, clientIP string) string {
	if clientIP == "" {
		clientIP = "unknown"
	}
	return shareToken + ":" + clientIP
}

package utils

import "time"

// Now returns current time (swappable for tests).
var Now = time.Now

// IsExpired checks whether a timestamp is older than the TTL.
func IsExpired(timestamp time.Time, ttl time.Duration) bool {
	return Now().Sub(timestamp) > ttl
}

// UnixMillis renders a time as milliseconds since epoch, the wire
// timestamp format.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMillis parses a wire timestamp.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

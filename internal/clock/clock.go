// Package clock is the time source for cache idle tracking and for-each
// completion timestamps.
package clock

import "time"

// NowFunc returns the current time. Tests replace it to freeze time.
var NowFunc = time.Now

// Now returns NowFunc().
func Now() time.Time { return NowFunc() }

// Since returns the time elapsed since t according to NowFunc.
func Since(t time.Time) time.Duration { return NowFunc().Sub(t) }

// Freeze pins Now to t and returns a function restoring the previous source.
func Freeze(t time.Time) (restore func()) {
	previous := NowFunc
	NowFunc = func() time.Time { return t }
	return func() { NowFunc = previous }
}

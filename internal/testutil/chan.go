package testutil

import (
	"testing"
	"time"
)

// DefaultWait bounds how long Receive waits for a value.
const DefaultWait = 2 * time.Second

// Receive returns the next value from ch or fails the test after DefaultWait.
// It also fails if ch is closed.
func Receive[T any](t testing.TB, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for a value")
		}
		return v
	case <-time.After(DefaultWait):
		t.Fatalf("timed out after %s waiting for a value", DefaultWait)
	}
	var zero T
	return zero
}

// NoReceive fails the test if ch yields a value within d.
// A closed channel counts as no value.
func NoReceive[T any](t testing.TB, ch <-chan T, d time.Duration) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value received: %v", v)
		}
	case <-time.After(d):
	}
}

// Closed reports whether ch is closed within DefaultWait, draining any
// buffered values first.
func Closed[T any](t testing.TB, ch <-chan T) bool {
	t.Helper()
	deadline := time.After(DefaultWait)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

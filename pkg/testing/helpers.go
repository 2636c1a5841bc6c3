package testing

import (
	"testing"
	"time"
)

// AssertEventually asserts that a condition becomes true within a timeout
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within timeout: %s", message)
			return
		}
	}
}

// FixedClock returns a clock function that always reports t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

package testsupport

import (
	"testing"
	"time"
)

// WaitFor polls cond every 25ms until it reports true or the timeout
// elapses, failing the test with the given message on timeout.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf(format, args...)
}

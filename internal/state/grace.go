package state

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// WriteGrace records a pending stop request's grace period. The CLI
// writes it immediately before signaling the manager, which picks it up
// at shutdown start.
func WriteGrace(dir string, grace time.Duration) error {
	seconds := int(grace / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return os.WriteFile(GracePath(dir), []byte(strconv.Itoa(seconds)+"\n"), 0o644)
}

// TakeGrace reads and removes a pending grace request. The second
// return is false when no usable request is present.
func TakeGrace(dir string) (time.Duration, bool) {
	path := GracePath(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	_ = os.Remove(path)
	seconds, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

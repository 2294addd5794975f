package logs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"drover/internal/logmux"
)

// followInterval is how often followers poll for appended data.
const followInterval = 250 * time.Millisecond

// Follow streams lines appended to path until ctx ends, invoking fn for
// each complete line. A negative offset starts at the current end of
// the file. Truncation (the file shrinking below the remembered offset)
// restarts from the top. A file that does not exist yet is polled until
// it appears. Follow returns ctx's error on cancellation, or the first
// error from fn.
func Follow(ctx context.Context, path string, offset int64, fn func(line string) error) error {
	if offset < 0 {
		offset = 0
		if info, err := os.Stat(path); err == nil {
			offset = info.Size()
		}
	}

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	for {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Not written yet. Keep polling.
		case err != nil:
			return fmt.Errorf("stat log file: %w", err)
		default:
			if info.Size() < offset {
				offset = 0
			}
			lines, newOffset, err := readNewLines(path, offset)
			if err != nil {
				return err
			}
			offset = newOffset
			for _, line := range lines {
				if err := fn(line); err != nil {
					return err
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// readNewLines reads from offset to the last newline and returns the
// complete lines in between. A trailing partial line stays unread so it
// is emitted whole on a later poll.
func readNewLines(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, offset, fmt.Errorf("read log file: %w", err)
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, offset, nil
	}
	return strings.Split(string(data[:end]), "\n"), offset + int64(end) + 1, nil
}

// FollowFile names one log stream for FollowSet.
type FollowFile struct {
	Label  string
	Path   string
	Stderr bool
	Offset int64
}

// FollowSet follows several log files at once, rendering every line
// through printer under the file's label. It blocks until ctx ends or
// a follower fails, in which case the remaining followers are stopped
// and the first failure is returned.
func FollowSet(ctx context.Context, files []FollowFile, printer *logmux.Printer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, file := range files {
		wg.Add(1)
		go func(file FollowFile) {
			defer wg.Done()
			err := Follow(ctx, file.Path, file.Offset, func(line string) error {
				printer.Print(file.Label, file.Stderr, line)
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
			}
		}(file)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

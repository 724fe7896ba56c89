// Package debug is a categorized file logger for chasing timing and
// sequencing problems without disturbing the terminal UI. It stays disabled
// unless the host opts in, and every write is flushed so the tail of the log
// survives a crash mid-run.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
	every   = make(map[string]int)
)

// DefaultPath is where Enable logs when given an empty path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "clamp-protocol-debug.log"
	}
	return filepath.Join(home, ".config", "clamp-protocol", "debug.log")
}

// Enable starts logging to the given file, truncating it. An empty path uses
// DefaultPath. Enabling twice is a no-op.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	file = f
	enabled = true

	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-8s logging started\n", ts, "debug")
	file.Sync()
	return nil
}

// Disable stops logging and closes the file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Log writes one categorized line. Cheap no-op while disabled, so call sites
// never need to guard.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || file == nil {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-8s %s\n", ts, category, fmt.Sprintf(format, args...))
	file.Sync()
}

// LogEvery writes only every nth call with the same category and format.
// Use it on per-tick paths where a full trace would swamp the log.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	if !enabled {
		mu.Unlock()
		return
	}
	key := category + format
	every[key]++
	count := every[key]
	mu.Unlock()

	if n > 0 && count%n == 0 {
		Log(category, format+" (count=%d)", append(args, count)...)
	}
}

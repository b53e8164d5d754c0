package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

var (
	file     *os.File
	mu       sync.Mutex
	enabled  bool
	level    = charmlog.DebugLevel
	base     = newLogger(io.Discard)
	counters = make(map[string]int)
)

func newLogger(w io.Writer) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
}

// DefaultPath is ~/.config/go-flux/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-flux", "debug.log")
}

// Enable starts debug logging to path (DefaultPath when empty). The file is
// truncated.
func Enable(path string) error {
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
	EnableWriter(f)

	mu.Lock()
	file = f
	mu.Unlock()
	return nil
}

// EnableWriter sends debug logging to w.
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	base = newLogger(w)
	enabled = true
	base.WithPrefix("debug").Info("=== Debug logging started ===")
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	base = newLogger(io.Discard)
	enabled = false
}

// SetLevel sets the minimum level by name (debug, info, warn, error).
func SetLevel(name string) error {
	l, err := charmlog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	mu.Lock()
	level = l
	base.SetLevel(l)
	mu.Unlock()
	return nil
}

// Enabled reports whether logging goes anywhere.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Logger returns a structured logger for category. Take it after Enable; a
// logger taken earlier keeps writing to the old destination.
func Logger(category string) *charmlog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base.WithPrefix(category)
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	mu.Lock()
	l, on := base, enabled
	mu.Unlock()

	if !on {
		return
	}
	l.WithPrefix(category).Infof(format, args...)
}

// Warn writes a warning to the debug log
func Warn(category, format string, args ...any) {
	mu.Lock()
	l, on := base, enabled
	mu.Unlock()

	if !on {
		return
	}
	l.WithPrefix(category).Warnf(format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
func LogEvery(n int, category, format string, args ...any) {
	if n < 1 {
		n = 1
	}
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

// Since is a helper for timing log lines: debug.Log("x", "took %s", debug.Since(t0)).
func Since(t time.Time) time.Duration {
	return time.Since(t).Round(time.Microsecond)
}

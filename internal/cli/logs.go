package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/stashapp/stash/pkg/logger"
)

// logLevels in increasing severity; names match the plugin log levels
var logLevels = []string{"trace", "debug", "info", "warning", "error", "none"}

func levelRank(name string) (int, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warn" {
		name = "warning"
	}
	for i, l := range logLevels {
		if l == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q (want one of %s)", name, strings.Join(logLevels, ", "))
}

// lockedWriter serialises the progress bar and log lines sharing one terminal
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// terminalLogger prints decoded plugin log lines as "LEVEL: message"
type terminalLogger struct {
	out io.Writer
	min int
}

var _ logger.LoggerImpl = (*terminalLogger)(nil)

func (t *terminalLogger) print(rank int, label string, args ...interface{}) {
	if rank < t.min {
		return
	}
	fmt.Fprintf(t.out, "\r%s: %s\n", label, fmt.Sprint(args...))
}

func (t *terminalLogger) printf(rank int, label string, format string, args ...interface{}) {
	t.print(rank, label, fmt.Sprintf(format, args...))
}

// progress is drawn by the progress bar
func (t *terminalLogger) Progressf(format string, args ...interface{}) {}

func (t *terminalLogger) Trace(args ...interface{}) { t.print(0, "TRACE", args...) }
func (t *terminalLogger) Tracef(format string, args ...interface{}) {
	t.printf(0, "TRACE", format, args...)
}
func (t *terminalLogger) TraceFunc(fn func() (string, []interface{})) {
	format, args := fn()
	t.printf(0, "TRACE", format, args...)
}

func (t *terminalLogger) Debug(args ...interface{}) { t.print(1, "DEBUG", args...) }
func (t *terminalLogger) Debugf(format string, args ...interface{}) {
	t.printf(1, "DEBUG", format, args...)
}
func (t *terminalLogger) DebugFunc(fn func() (string, []interface{})) {
	format, args := fn()
	t.printf(1, "DEBUG", format, args...)
}

func (t *terminalLogger) Info(args ...interface{}) { t.print(2, "INFO", args...) }
func (t *terminalLogger) Infof(format string, args ...interface{}) {
	t.printf(2, "INFO", format, args...)
}
func (t *terminalLogger) InfoFunc(fn func() (string, []interface{})) {
	format, args := fn()
	t.printf(2, "INFO", format, args...)
}

func (t *terminalLogger) Warn(args ...interface{}) { t.print(3, "WARN", args...) }
func (t *terminalLogger) Warnf(format string, args ...interface{}) {
	t.printf(3, "WARN", format, args...)
}
func (t *terminalLogger) WarnFunc(fn func() (string, []interface{})) {
	format, args := fn()
	t.printf(3, "WARN", format, args...)
}

func (t *terminalLogger) Error(args ...interface{}) { t.print(4, "ERROR", args...) }
func (t *terminalLogger) Errorf(format string, args ...interface{}) {
	t.printf(4, "ERROR", format, args...)
}
func (t *terminalLogger) ErrorFunc(fn func() (string, []interface{})) {
	format, args := fn()
	t.printf(4, "ERROR", format, args...)
}

// Fatal never exits; the command returns its own errors
func (t *terminalLogger) Fatal(args ...interface{}) { t.print(4, "FATAL", args...) }
func (t *terminalLogger) Fatalf(format string, args ...interface{}) {
	t.printf(4, "FATAL", format, args...)
}

// captureLogs reroutes the plugin log stream, which is written to os.Stderr
// with level control characters, into readable lines on dst. The returned
// func restores os.Stderr and waits until every captured line is written.
func captureLogs(dst io.Writer, level string) (func(), error) {
	min, err := levelRank(level)
	if err != nil {
		return nil, err
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to capture log output: %w", err)
	}

	reader := &logger.PluginLogger{
		Logger:          &terminalLogger{out: dst, min: min},
		DefaultLogLevel: &logger.InfoLevel,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		reader.ReadLogMessages(r)
	}()

	original := os.Stderr
	os.Stderr = w

	return func() {
		os.Stderr = original
		w.Close()
		<-done
	}, nil
}

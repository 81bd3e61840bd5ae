// Package logging provides real-time console output for throttle activity.
// Pacing is invisible by design; this package makes the long waits visible
// and keeps the short ones quiet, so unattended runs stay readable.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/pacekit/errors"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides leveled key=value logging to stdout.
type Logger struct {
	mu         sync.Mutex
	output     io.Writer
	minLevel   Level
	component  string
	throttleID string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:     l.output,
		minLevel:   l.minLevel,
		component:  component,
		throttleID: l.throttleID,
	}
}

// WithThrottleID returns a new logger tagged with a throttle instance id,
// so interleaved output from several sites can be told apart.
func (l *Logger) WithThrottleID(id string) *Logger {
	return &Logger{
		output:     l.output,
		minLevel:   l.minLevel,
		component:  l.component,
		throttleID: id,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		if l.throttleID != "" {
			fields[0]["throttle"] = l.throttleID
		}
		fieldStr = formatFields(fields[0])
	} else if l.throttleID != "" {
		fieldStr = " throttle=" + l.throttleID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Throttle event helpers ---
// Called by the throttle and registry packages so their log shapes stay
// consistent.

// SleepNotice logs a pacing wait. Waits above the noisy threshold produce a
// visible notice; shorter waits stay at debug.
func (l *Logger) SleepNotice(site string, d time.Duration, noisy bool) {
	fields := map[string]interface{}{
		"site":    site,
		"seconds": fmt.Sprintf("%.1f", d.Seconds()),
	}
	if noisy {
		l.Info("sleeping", fields)
	} else {
		l.Debug("sleeping", fields)
	}
}

// MultiplicityFound logs the outcome of a registry refresh.
func (l *Logger) MultiplicityFound(site string, count int) {
	l.Debug("multiplicity", map[string]interface{}{
		"site":      site,
		"processes": count,
	})
}

// PIDAssigned logs the one-time process identifier allocation.
func (l *Logger) PIDAssigned(pid int) {
	l.Debug("pid_assigned", map[string]interface{}{
		"pid": pid,
	})
}

// LagWait logs a server-backpressure wait.
func (l *Logger) LagWait(site string, d time.Duration) {
	l.Info("lag_wait", map[string]interface{}{
		"site":    site,
		"seconds": fmt.Sprintf("%.1f", d.Seconds()),
	})
}

// RegistryDegraded logs registry trouble the throttle absorbed.
func (l *Logger) RegistryDegraded(site string, err error) {
	fields := map[string]interface{}{
		"site":  site,
		"error": err.Error(),
	}
	if terr := errors.AsThrottleError(err); terr != nil {
		fields["code"] = terr.Code()
	}
	l.Warn("registry_degraded", fields)
}

// Released logs removal of this process's registry entries.
func (l *Logger) Released(pid int) {
	l.Debug("released", map[string]interface{}{
		"pid": pid,
	})
}

// Package logx provides leveled, component-scoped logging with context-aware debug logging.
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes leveled log lines tagged with a component name.
type Logger struct {
	component string
}

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

//nolint:gochecknoglobals // process-wide logging configuration
var (
	levelRank = map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}

	minLevel      = LevelInfo
	debugDomains  map[string]bool // nil = all domains
	levelMutex    sync.RWMutex
	logWriter     io.Writer // nil = stderr
	logWriterLock sync.Mutex
)

type requestIDKey struct{}

func init() { //nolint:gochecknoinits // Required for env var initialization
	initDebugFromEnv()
}

// initDebugFromEnv enables debug output via DEBUG=1 and domain filtering via DEBUG_DOMAINS=a,b.
func initDebugFromEnv() {
	levelMutex.Lock()
	defer levelMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		minLevel = LevelDebug
	}

	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugDomains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugDomains[strings.TrimSpace(domain)] = true
		}
	}
}

// NewLogger creates a logger for the given component.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// SetLevel sets the minimum level written by all loggers.
func SetLevel(level Level) {
	if _, ok := levelRank[level]; !ok {
		return
	}
	levelMutex.Lock()
	defer levelMutex.Unlock()
	minLevel = level
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	levelMutex.RLock()
	defer levelMutex.RUnlock()
	return minLevel
}

// SetDebugDomains limits context debug logging to the given domains. An empty list enables all.
func SetDebugDomains(domains []string) {
	levelMutex.Lock()
	defer levelMutex.Unlock()

	if len(domains) == 0 {
		debugDomains = nil
		return
	}
	debugDomains = make(map[string]bool, len(domains))
	for _, domain := range domains {
		debugDomains[strings.TrimSpace(domain)] = true
	}
}

// SetOutput redirects all log output. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	logWriterLock.Lock()
	defer logWriterLock.Unlock()
	logWriter = w
}

// IsEnabled reports whether lines at level would be written.
func IsEnabled(level Level) bool {
	levelMutex.RLock()
	defer levelMutex.RUnlock()
	return levelRank[level] >= levelRank[minLevel]
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a specific domain.
func IsDebugEnabledForDomain(domain string) bool {
	levelMutex.RLock()
	defer levelMutex.RUnlock()

	if levelRank[minLevel] > levelRank[LevelDebug] {
		return false
	}
	if debugDomains == nil {
		return true
	}
	return debugDomains[domain]
}

// WithRequestID returns a context carrying the request ID used by Debug and FromContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// FromContext returns a logger for component tagged with the request ID in ctx, if any.
func FromContext(ctx context.Context, component string) *Logger {
	if id := RequestID(ctx); id != "" {
		return NewLogger(component + ":" + id)
	}
	return NewLogger(component)
}

func write(line string) {
	logWriterLock.Lock()
	defer logWriterLock.Unlock()

	w := logWriter
	if w == nil {
		w = os.Stderr
	}
	_, _ = fmt.Fprintln(w, line)
}

func (l *Logger) log(level Level, format string, args ...any) {
	if !IsEnabled(level) {
		return
	}
	timestamp := time.Now().UTC().Format(timestampFormat)
	message := fmt.Sprintf(format, args...)
	write(fmt.Sprintf("[%s] [%s] %s: %s", timestamp, l.component, level, message))
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Debug logs a debug message with context and domain filtering.
//
// Usage:
//
//	logx.Debug(ctx, "plan", "Rendered prompt: %d chars", len(prompt))
//
// Environment variable control:
//
//	DEBUG=1                        # Enable debug for all domains
//	DEBUG=1 DEBUG_DOMAINS=plan,llm # Enable debug only for some domains
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}

	requestID := RequestID(ctx)
	if requestID == "" {
		requestID = "-"
	}

	timestamp := time.Now().UTC().Format(timestampFormat)
	message := fmt.Sprintf(format, args...)
	write(fmt.Sprintf("[%s] [%s] %s: [%s] %s", timestamp, requestID, LevelDebug, domain, message))
}

// GetComponent returns the component name of the logger.
func (l *Logger) GetComponent() string {
	return l.component
}

// defaultLogger backs the log-and-wrap helpers used on startup paths.
var defaultLogger = NewLogger("system") //nolint:gochecknoglobals

// Errorf logs and returns the formatted error.
//
//	err := logx.Errorf("setup failed: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
//
//	if err != nil { return logx.Wrap(err, "load config") }
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrappedErr := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrappedErr.Error())
	return wrappedErr
}

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	debugOnce   sync.Once
	debugMu     sync.RWMutex
	debugFile   *os.File
	debugLogger = zap.New(newOutputCore())
	enableDebug bool

	// Order matters: specific patterns run before generic ones.
	sensitivePatterns = []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		{regexp.MustCompile(`\beyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED-JWT]"},
		{regexp.MustCompile(`\b(sk|pk|sess)-[a-zA-Z0-9\-_]{20,}`), "[REDACTED-KEY]"},
		{regexp.MustCompile(`(?i)(authorization[=:\s]+['"]?)(Basic|Bearer|Digest)\s+[a-zA-Z0-9\-_\.=]+`), "${1}${2} [REDACTED]"},
		{regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9\-_\.]+`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(api[_-]?key[=:\s]+['"]?)[a-zA-Z0-9\-_]{16,}`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(password[=:\s]+['"]?)[^\s&'"]+`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(access[_-]?token[=:\s]+['"]?)[a-zA-Z0-9\-_\.]{16,}`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(token[=:\s]+['"]?)[a-zA-Z0-9\-_\.]{16,}`), "${1}[REDACTED]"},
		{regexp.MustCompile(`(?i)(cookie[=:\s]+['"]?)[^;\n]+`), "${1}[REDACTED]"},
	}
)

// sanitizingWriter redacts credentials from every encoded log entry before
// it reaches the debug file.
type sanitizingWriter struct{ f *os.File }

func (w sanitizingWriter) Write(p []byte) (int, error) {
	if _, err := w.f.Write([]byte(sanitizeLogMessage(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w sanitizingWriter) Sync() error { return w.f.Sync() }

// outputSink hands log entries to the output manager as warnings. Inside
// the TUI they are delivered asynchronously because the caller may be the
// program's own Update.
type outputSink struct{}

func (outputSink) Write(p []byte) (int, error) {
	line := sanitizeLogMessage(strings.TrimRight(string(p), "\n")) + "\n"
	outputManager.mu.RLock()
	async := outputManager.inTUIMode && outputManager.tuiProgram != nil
	outputManager.mu.RUnlock()
	if async {
		go sendMessage(WarningMessage, "%s", line)
	} else {
		sendMessage(WarningMessage, "%s", line)
	}
	return len(p), nil
}

func (outputSink) Sync() error { return nil }

// newOutputCore surfaces error entries to the user even without --debug.
func newOutputCore() zapcore.Core {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		ConsoleSeparator: " ",
		LineEnding:       zapcore.DefaultLineEnding,
	})
	return zapcore.NewCore(enc, outputSink{}, zap.ErrorLevel)
}

// InitDebugLogger opens the debug log file and builds the shared zap logger
// on top of it. Bubble Tea's own logging goes to the same file. With debug
// set, LogDebug lines are echoed to stderr as well. An empty path means
// webchat-debug.log in the effective working directory. Only the first call
// has any effect.
func InitDebugLogger(path string, debug bool) error {
	enableDebug = debug
	var initErr error
	debugOnce.Do(func() {
		if path == "" {
			path = filepath.Join(GetEffectiveCWD(), "webchat-debug.log")
		}
		if debug {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			fmt.Fprintf(os.Stderr, "[DEBUG] Logging to: %s\n", path)
		}

		f, err := tea.LogToFile(path, "debug")
		if err != nil {
			initErr = err
			return
		}

		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(sanitizingWriter{f: f}),
			zap.DebugLevel,
		)

		debugMu.Lock()
		debugFile = f
		debugLogger = zap.New(zapcore.NewTee(core, newOutputCore()))
		debugMu.Unlock()
	})
	return initErr
}

// Logger returns the shared logger. Until InitDebugLogger has run only
// error entries are kept, and they go to the output manager.
func Logger() *zap.Logger {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugLogger
}

// CloseDebugLogger flushes and closes the debug log file if it was opened.
func CloseDebugLogger() {
	debugMu.Lock()
	defer debugMu.Unlock()
	_ = debugLogger.Sync()
	if debugFile != nil {
		_ = debugFile.Close()
	}
}

// ResetDebugLoggerForTesting resets the debug logger so tests can point it
// at a fresh file. Test use only.
func ResetDebugLoggerForTesting() {
	CloseDebugLogger()
	debugMu.Lock()
	defer debugMu.Unlock()
	debugOnce = sync.Once{}
	debugFile = nil
	debugLogger = zap.New(newOutputCore())
	enableDebug = false
}

func sanitizeLogMessage(msg string) string {
	sanitized := msg
	for _, sp := range sensitivePatterns {
		sanitized = sp.pattern.ReplaceAllString(sanitized, sp.replacement)
	}
	return sanitized
}

// LogDebug writes msg to the debug log, redacting common credential
// patterns. Callers should still avoid logging secrets; LogHeaders redacts
// sensitive headers explicitly.
func LogDebug(msg string) {
	Logger().Debug(msg)
	if enableDebug {
		sendMessage(DebugMessage, "%s", sanitizeLogMessage(msg))
	}
}

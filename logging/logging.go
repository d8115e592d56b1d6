package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/baditaflorin/l"
)

var (
	debugLogger l.Logger
	logFile     *os.File
	mu          sync.Mutex
	isSetup     bool
)

// Options controls where and how the debug log is written
type Options struct {
	Path string
	JSON bool
}

// SetupLogger opens the log file and installs the debug logger.
// Until it is called every log function is a no-op.
func SetupLogger(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logger, err := newLogger(f, opts.JSON)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to create logger: %w", err)
	}

	logFile = f
	debugLogger = logger
	isSetup = true

	debugLogger.Info("imdirdiff debug log started", "at", time.Now().Format(time.RFC3339))
	return nil
}

// SetupWriter installs a debug logger writing to w; tests use it to capture output
func SetupWriter(w io.Writer) error {
	mu.Lock()
	defer mu.Unlock()

	logger, err := newLogger(w, false)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	debugLogger = logger
	isSetup = true
	return nil
}

func newLogger(w io.Writer, json bool) (l.Logger, error) {
	return l.NewStandardFactory().CreateLogger(l.Config{
		Output:     w,
		Level:      l.LevelDebug,
		JsonFormat: json,
		AsyncWrite: false,
		AddSource:  false,
	})
}

// CloseLogger flushes and closes the log
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if debugLogger != nil {
		debugLogger.Info("imdirdiff debug log closed", "at", time.Now().Format(time.RFC3339))
		debugLogger.Close()
		debugLogger = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	isSetup = false
}

// Enabled reports whether a debug logger is installed
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return debugLogger != nil
}

// DebugLog logs a debug message with key/value pairs
func DebugLog(msg string, keysAndValues ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if debugLogger != nil {
		debugLogger.Debug(msg, keysAndValues...)
	}
}

// LogInfo logs an information message
func LogInfo(msg string, keysAndValues ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if debugLogger != nil {
		debugLogger.Info(msg, keysAndValues...)
	}
}

// LogWarning logs a warning message
func LogWarning(msg string, keysAndValues ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if debugLogger != nil {
		debugLogger.Warn(msg, keysAndValues...)
	}
}

// LogError logs an error message
func LogError(msg string, keysAndValues ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if debugLogger != nil {
		debugLogger.Error(msg, keysAndValues...)
	}
}

// LogCompared logs the outcome of one comparison
func LogCompared(path string, score float64, err error) {
	mu.Lock()
	defer mu.Unlock()

	if debugLogger == nil {
		return
	}
	if err != nil {
		debugLogger.Error("comparison failed", "path", path, "error", err.Error())
		return
	}
	debugLogger.Debug("compared", "path", path, "score", score)
}

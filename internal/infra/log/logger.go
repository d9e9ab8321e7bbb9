package log

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger
var consoleLogger *zap.Logger // errors and success markers only
var initOnce sync.Once
var initError error

func init() {
	initOnce.Do(func() {
		initError = initializeLoggers()
	})
	if initError != nil {
		// Fallback to basic logging if initialization fails
		fmt.Fprintf(os.Stderr, "Failed to initialize loggers: %v\n", initError)
		Logger = zap.NewNop()
		consoleLogger = zap.NewNop()
	}
}

func initializeLoggers() error {
	logsDir := "logs"
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	// File core takes everything from DEBUG up
	fileConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(fileConfig),
		zapcore.AddSync(getLogFileWriter(filepath.Join(logsDir, "app.log"))),
		zapcore.DebugLevel,
	)
	Logger = zap.New(fileCore)

	consoleConfig := zap.NewDevelopmentConfig()
	consoleConfig.EncoderConfig.EncodeLevel = customLevelEncoder
	consoleConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleConfig.EncoderConfig.EncodeCaller = nil
	consoleConfig.Development = false
	consoleConfig.DisableStacktrace = true
	consoleConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	var err error
	consoleLogger, err = consoleConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to build console logger: %w", err)
	}

	return nil
}

// GenerateRequestID returns a short random id used to correlate HTTP log lines.
func GenerateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// LogRequest logs an outbound HTTP request (file only).
func LogRequest(requestID, method, endpoint string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
	}, fields...)
	Logger.Info("HTTP request", allFields...)
}

// LogResponse logs an HTTP response; non-2xx also goes to the console.
func LogResponse(requestID string, statusCode int, durationMs int64, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	}, fields...)

	if statusCode >= 200 && statusCode < 300 {
		Logger.Info("HTTP response", allFields...)
	} else {
		Logger.Error("HTTP response", allFields...)
		consoleLogger.Error(fmt.Sprintf("✗ HTTP request failed [%d]", statusCode))
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(colorCyan + "DEBUG" + colorReset)
	case zapcore.InfoLevel:
		enc.AppendString(colorGreen + "SUCCESS" + colorReset)
	case zapcore.WarnLevel:
		enc.AppendString(colorYellow + "WARN" + colorReset)
	case zapcore.ErrorLevel:
		enc.AppendString(colorRed + "ERROR" + colorReset)
	case zapcore.FatalLevel:
		enc.AppendString(colorRed + "FATAL" + colorReset)
	case zapcore.PanicLevel:
		enc.AppendString(colorRed + "PANIC" + colorReset)
	default:
		enc.AppendString(colorWhite + level.String() + colorReset)
	}
}

// LogInfo writes to the log file only.
func LogInfo(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)
}

// LogSuccess writes to the log file and the console.
func LogSuccess(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)
	consoleLogger.Info("✓ " + message)
}

// LogError writes to the log file and the console.
func LogError(message string, fields ...zap.Field) {
	Logger.Error(message, fields...)
	consoleLogger.Error("✗ " + message)
}

// LogWarn writes to the log file only.
func LogWarn(message string, fields ...zap.Field) {
	Logger.Warn(message, fields...)
}

// LogDebug writes to the log file only.
func LogDebug(message string, fields ...zap.Field) {
	Logger.Debug(message, fields...)
}

const (
	// MaxLogFileSize caps app.log before it is truncated (50 MB).
	MaxLogFileSize = 50 * 1024 * 1024
)

type rotatingLogWriter struct {
	file *os.File
	path string
	mu   sync.Mutex
}

func (w *rotatingLogWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := w.file.Stat()
	if err == nil && info.Size() > MaxLogFileSize {
		w.file.Close()

		w.file, err = os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return 0, fmt.Errorf("failed to truncate log file: %w", err)
		}
	}

	return w.file.Write(p)
}

func (w *rotatingLogWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// getLogFileWriter opens the log file in append mode, truncating oversized files.
func getLogFileWriter(path string) zapcore.WriteSyncer {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v, falling back to stderr\n", path, err)
		return zapcore.AddSync(os.Stderr)
	}

	info, err := file.Stat()
	if err == nil && info.Size() > MaxLogFileSize {
		file.Close()
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to truncate log file %s: %v, falling back to stderr\n", path, err)
			return zapcore.AddSync(os.Stderr)
		}
	}

	return zapcore.AddSync(&rotatingLogWriter{file: file, path: path})
}

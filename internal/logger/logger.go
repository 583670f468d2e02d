package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"camtrap/internal/config"
)

// Logger provides leveled logging (info/warning/error) to rotated files and stdout/stderr.
type Logger struct {
	sugar  *zap.SugaredLogger
	core   zapcore.Core
	logDir string
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) (*Logger, error) {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: config.LogDirectory}
	l.core = l.setupCores()
	l.sugar = zap.New(l.core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	return l, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	core := zapcore.NewNopCore()
	return &Logger{sugar: zap.New(core).Sugar(), core: core}
}

// NewWriter returns a Logger that writes plain lines of every level to w.
func NewWriter(w io.Writer) *Logger {
	core := plainCore(w, zapcore.DebugLevel)
	return &Logger{sugar: zap.New(core).Sugar(), core: core}
}

// setupCores builds one core per level, each with its own rotated file.
func (l *Logger) setupCores() zapcore.Core {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	only := func(level zapcore.Level) zap.LevelEnablerFunc {
		return func(l zapcore.Level) bool { return l == level }
	}

	infoWriter := zapcore.NewMultiWriteSyncer(zapcore.Lock(os.Stdout), l.openLogFile("info.log"))
	warningWriter := zapcore.NewMultiWriteSyncer(zapcore.Lock(os.Stdout), l.openLogFile("warning.log"))
	errorWriter := zapcore.NewMultiWriteSyncer(zapcore.Lock(os.Stderr), l.openLogFile("error.log"))

	return zapcore.NewTee(
		zapcore.NewCore(encoder, infoWriter, only(zapcore.InfoLevel)),
		zapcore.NewCore(encoder, warningWriter, only(zapcore.WarnLevel)),
		zapcore.NewCore(encoder, errorWriter, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.ErrorLevel
		})),
	)
}

// openLogFile returns a size-rotated appender for a file in the log directory.
func (l *Logger) openLogFile(filename string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, filename),
		MaxSize:    20,
		MaxBackups: 3,
		MaxAge:     28,
	})
}

// plainCore writes bare messages, one per line, as they would appear in a console pane.
func plainCore(w io.Writer, level zapcore.Level) zapcore.Core {
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	return zapcore.NewCore(encoder, zapcore.AddSync(w), level)
}

// Tee returns a Logger that additionally writes info and above to w.
func (l *Logger) Tee(w io.Writer) *Logger {
	core := zapcore.NewTee(l.core, plainCore(w, zapcore.InfoLevel))
	return &Logger{
		sugar:  zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar(),
		core:   core,
		logDir: l.logDir,
	}
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error truncating log file %s: %v", fileName, err)
		return err
	}

	l.Info("File content has been cleared.")
	return nil
}

// Package telemetry is the structured logging surface every other package
// calls into. The exported function names (Info/Warn/Error/Success/Section/
// Banner) keep the familiar printf-style call shape; the backing
// implementation is zap, teed across a human-readable console core and a
// lumberjack-rotated JSON file core, in place of a bare
// log.Println-plus-ANSI-codes approach.
package telemetry

import (
	"fmt"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

func init() {
	logger = zap.NewNop()
}

var levelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}

// Init wires up the process-wide logger: a colorized console core at the
// requested level, teed with a lumberjack-rotated JSON core writing to
// logPath. Passing an empty logPath disables the file core.
func Init(level, logPath string) error {
	minLevel, ok := levelMap[level]
	if !ok {
		minLevel = zapcore.InfoLevel
	}
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= minLevel })

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), enabler),
	}

	if logPath != "" {
		jsonConfig := encoderConfig
		jsonConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		hook := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    64,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), zapcore.AddSync(hook), enabler))
	}

	logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return nil
}

// L returns the underlying *zap.Logger for callers that want structured
// fields directly instead of the printf-style helpers below.
func L() *zap.Logger { return logger }

func Debug(format string, args ...interface{}) { logger.Debug(fmt.Sprintf(format, args...)) }

func Info(format string, args ...interface{}) { logger.Info(fmt.Sprintf(format, args...)) }

func Warn(format string, args ...interface{}) { logger.Warn(fmt.Sprintf(format, args...)) }

func Error(format string, args ...interface{}) { logger.Error(fmt.Sprintf(format, args...)) }

// Success logs at info level tagged with a result field, since zap has no
// distinct success level.
func Success(format string, args ...interface{}) {
	logger.Info(fmt.Sprintf(format, args...), zap.String("result", "success"))
}

// Fatal logs at fatal level, which zap itself terminates the process after.
func Fatal(format string, args ...interface{}) {
	logger.Fatal(fmt.Sprintf(format, args...))
}

// Section prints a plain section header straight to stdout — cosmetic
// console output, not a log record, so it bypasses zap entirely.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n╔%s╗\n", border)
	fmt.Printf("║ %-61s ║\n", title)
	fmt.Printf("╚%s╝\n\n", border)
}

// Banner prints the startup banner for a relay or client process.
func Banner(title, version string) {
	fmt.Printf("\n%s — version %s\n\n", title, version)
}

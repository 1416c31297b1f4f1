// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel string

type LogFormat string

const (
	DebugLevel LogLevel = "DEBUG"
	InfoLevel  LogLevel = "INFO"
	WarnLevel  LogLevel = "WARN"
	ErrorLevel LogLevel = "ERROR"
	// ProductionLevel is an alias for InfoLevel, used for easier configuration.
	ProductionLevel LogLevel = "PRODUCTION"

	// FormatConsole indicates human-readable console format.
	FormatConsole LogFormat = "CONSOLE"
	// FormatJSON indicates structured JSON format.
	FormatJSON LogFormat = "JSON"
	// FormatPretty indicates highly human-readable format.
	FormatPretty LogFormat = "PRETTY"
)

var initOnce sync.Once

func getLogLevel(level LogLevel) zapcore.Level {
	switch LogLevel(strings.ToUpper(string(level))) {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case InfoLevel, ProductionLevel:
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseFormat returns the matching LogFormat or fallback for unknown input.
func ParseFormat(value string, fallback LogFormat) LogFormat {
	format := LogFormat(strings.ToUpper(value))
	switch format {
	case FormatConsole, FormatJSON, FormatPretty:
		return format
	default:
		return fallback
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05 MST"))
}

// New builds a logger writing to stdout.
func New(logLevel string, logFormat LogFormat) *zap.Logger {
	return NewWithWriter(logLevel, logFormat, os.Stdout)
}

// NewWithWriter builds a logger writing to w. Tests use it to capture output.
func NewWithWriter(logLevel string, logFormat LogFormat, w io.Writer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder

	switch logFormat {
	case FormatPretty:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.EncodeTime = timeEncoder
		encoder = NewPrettyConsoleEncoder(encoderConfig)
	case FormatConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = timeEncoder
		encoderConfig.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(getLogLevel(LogLevel(logLevel))),
	)

	return zap.New(core, zap.AddCaller())
}

// Initialize configures the global zap logger from LOGGING_LEVEL and
// LOGGING_FORMAT. Only the first call has an effect.
func Initialize() {
	initOnce.Do(func() {
		logLevel := getEnv("LOGGING_LEVEL", string(ProductionLevel))
		logFormat := ParseFormat(getEnv("LOGGING_FORMAT", ""), FormatPretty)
		logger := New(logLevel, logFormat)

		logger.Info("Logger initialized",
			zap.String("level", logLevel),
			zap.String("format", string(logFormat)))

		zap.ReplaceGlobals(logger)
	})
}

func GetLogger() *zap.Logger {
	Initialize()

	return zap.L()
}

func Sync() error {
	return zap.L().Sync()
}

// For returns the global sugared logger named after component.
func For(component string) *zap.SugaredLogger {
	Initialize()

	return zap.S().Named(component)
}

// Copyright 2026 predictor Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log holds the process-wide zap logger shared by the recommender and the CLI.
package log

import (
	"os"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	flagPath       = "log-path"
	flagMaxSize    = "log-max-size"
	flagMaxAge     = "log-max-age"
	flagMaxBackups = "log-max-backups"

	timeLayout = "2006-01-02 15:04:05.999999"
)

var logger = zap.Must(zap.NewDevelopment())

func Logger() *zap.Logger {
	return logger
}

// CloseLogger keeps only fatal entries.
func CloseLogger() {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.FatalLevel)
	logger = zap.Must(cfg.Build())
}

// AddFlags registers the rotation flags read by SetLogger.
func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String(flagPath, "", "also write logs to this file")
	flagSet.Int(flagMaxSize, 100, "megabytes before the log file is rotated")
	flagSet.Int(flagMaxAge, 0, "days to keep rotated log files (0 keeps all)")
	flagSet.Int(flagMaxBackups, 0, "rotated log files to keep (0 keeps all)")
}

// SetLogger installs a logger writing to stderr and, when --log-path is set, to a
// rotated file. Debug selects colored console lines at debug level, otherwise JSON at info.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if file := rotatedFile(flagSet); file != nil {
		sinks = append(sinks, zapcore.AddSync(file))
	}
	logger = zap.New(zapcore.NewCore(newEncoder(debug), zap.CombineWriteSyncers(sinks...), level))
}

func newEncoder(debug bool) zapcore.Encoder {
	if debug {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	return zapcore.NewJSONEncoder(cfg)
}

func rotatedFile(flagSet *pflag.FlagSet) *lumberjack.Logger {
	if !flagSet.Changed(flagPath) {
		return nil
	}
	file := &lumberjack.Logger{}
	file.Filename, _ = flagSet.GetString(flagPath)
	file.MaxSize, _ = flagSet.GetInt(flagMaxSize)
	file.MaxAge, _ = flagSet.GetInt(flagMaxAge)
	file.MaxBackups, _ = flagSet.GetInt(flagMaxBackups)
	return file
}

// GetErrorHandler reports OpenTelemetry failures, such as Redis instrumentation
// errors, through the global logger.
func GetErrorHandler() otel.ErrorHandler {
	return otel.ErrorHandlerFunc(func(err error) {
		Logger().Error("telemetry error", zap.Error(err))
	})
}

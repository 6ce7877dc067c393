// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package logging builds the process-wide structured logger (§6.6):
// a zap JSON core, level selected by --loglevel or RUST_LOG, output
// redirected to --log PATH when set.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New. Zero value logs info-and-above JSON to stderr.
type Options struct {
	// Level is one of debug/info/warn/error. Empty means unset — RustLog
	// is consulted next, then the info default.
	Level string
	// RustLog is the raw RUST_LOG environment value, parsed for its level
	// component only (§6.4): kept for compatibility with the original
	// implementation's ecosystem, not for its filter-directive syntax.
	RustLog string
	// LogPath, if non-empty, redirects the core's output to this file
	// instead of stderr.
	LogPath string
}

// New builds a *zap.Logger per Options. It never returns an error: a
// bad --log path falls back to stderr with a warning field instead of
// failing startup, since logging configuration is not worth a
// configuration-error exit code on its own.
func New(opts Options) *zap.Logger {
	level := resolveLevel(opts.Level, opts.RustLog)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink, sinkErr := openSink(opts.LogPath)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	logger := zap.New(core)
	if sinkErr != nil {
		logger = logger.With(zap.String("log_sink_fallback_error", sinkErr.Error()))
	}
	return logger
}

func resolveLevel(explicit, rustLog string) zapcore.Level {
	if lvl, ok := namedLevel(explicit); ok {
		return lvl
	}
	if rustLog != "" {
		if lvl, ok := levelFromRustLog(rustLog); ok {
			return lvl
		}
	}
	return zapcore.InfoLevel
}

func namedLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// levelFromRustLog extracts RUST_LOG's level component. RUST_LOG supports
// per-target directives (`module=level,other=level`); this reduces each
// directive to its level and returns the first one that names a known
// level, whether or not the directive carries a target.
func levelFromRustLog(v string) (zapcore.Level, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if idx := strings.LastIndex(part, "="); idx >= 0 {
			part = part[idx+1:]
		}
		if lvl, ok := namedLevel(part); ok {
			return lvl, true
		}
		if part == "trace" {
			return zapcore.DebugLevel, true
		}
	}
	return zapcore.InfoLevel, false
}

// openSink resolves --log PATH to a zapcore.WriteSyncer, falling back to
// stderr (with the error threaded back to the caller) if the path cannot
// be opened.
func openSink(path string) (zapcore.WriteSyncer, error) {
	if path == "" {
		return zapcore.AddSync(os.Stderr), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zapcore.AddSync(os.Stderr), err
	}
	return zapcore.AddSync(f), nil
}

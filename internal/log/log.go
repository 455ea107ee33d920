// Copyright 2026 The IPEngine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the structured, leveled logging used throughout the
// engine. It is a thin wrapper around go.uber.org/zap that lets call sites
// pass alternating key/value pairs instead of zap.Field values, and lets a
// logger carrying fixed labels (e.g. an interface id) travel on a
// context.Context.
package log

import (
	"context"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface every call site in the engine logs through.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	// New returns a derived logger that always includes the given
	// key/value pairs in addition to its own.
	New(keyvals ...any) Logger
}

type logger struct {
	z *zap.Logger
}

func (l *logger) Debug(msg string, keyvals ...any) { l.z.Sugar().Debugw(msg, keyvals...) }
func (l *logger) Info(msg string, keyvals ...any)  { l.z.Sugar().Infow(msg, keyvals...) }
func (l *logger) Error(msg string, keyvals ...any) { l.z.Sugar().Errorw(msg, keyvals...) }

func (l *logger) New(keyvals ...any) Logger {
	return &logger{z: l.z.Sugar().With(keyvals...).Desugar()}
}

var root atomic.Pointer[logger]

func init() {
	l := &logger{z: zap.NewNop()}
	root.Store(l)
}

// Setup installs the process-wide root logger at the given level
// ("debug", "info", "error") with the given encoding ("console" or
// "json"), matching the teacher's log.Config knobs.
func Setup(level string, jsonEncoding bool) error {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		// ok, lvl updated
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if jsonEncoding {
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), lvl)
	root.Store(&logger{z: zap.New(core, zap.AddCaller())})
	return nil
}

// Root returns the process-wide root logger. Never nil.
func Root() Logger {
	return root.Load()
}

func Debug(msg string, keyvals ...any) { Root().Debug(msg, keyvals...) }
func Info(msg string, keyvals ...any)  { Root().Info(msg, keyvals...) }
func Error(msg string, keyvals ...any) { Root().Error(msg, keyvals...) }

// HandlePanic recovers a panic in the current goroutine and logs it at
// Error level instead of letting it crash the process silently, mirroring
// the teacher's deferred log.HandlePanic() at the top of every supervised
// goroutine.
func HandlePanic() {
	if r := recover(); r != nil {
		Root().Error("panic recovered", "panic", r)
		panic(r)
	}
}

type loggerContextKey struct{}

// CtxWith returns a context carrying logger, retrievable with FromCtx.
func CtxWith(ctx context.Context, l Logger) context.Context {
	if ctx == nil {
		panic("nil context")
	}
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromCtx returns the logger embedded in ctx, or the root logger if none
// was attached. Never returns nil.
func FromCtx(ctx context.Context) Logger {
	if ctx == nil {
		return Root()
	}
	if l, ok := ctx.Value(loggerContextKey{}).(Logger); ok {
		return l
	}
	return Root()
}

// WithLabels returns a context whose logger additionally carries labels,
// along with that logger for immediate use.
func WithLabels(ctx context.Context, labels ...any) (context.Context, Logger) {
	l := FromCtx(ctx).New(labels...)
	return CtxWith(ctx, l), l
}

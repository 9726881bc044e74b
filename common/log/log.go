// Copyright 2023 Zilliz
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

package log

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below zap's debug level.
const TraceLevel = zapcore.DebugLevel - 1

type Field = zap.Field

var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int64    = zap.Int64
	Int64s   = zap.Int64s
	Uint64   = zap.Uint64
	Bool     = zap.Bool
	Duration = zap.Duration
	Any      = zap.Any
	Err      = zap.Error
)

type Config struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Development bool   `yaml:"development"`
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: "console"}
}

var (
	_globalL     atomic.Pointer[zap.Logger]
	_globalLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	l, err := NewLogger(DefaultConfig())
	if err != nil {
		panic(err)
	}
	_globalL.Store(l)
}

// ParseLevel accepts zap level names plus "trace".
func ParseLevel(text string) (zapcore.Level, error) {
	if strings.EqualFold(text, "trace") {
		return TraceLevel, nil
	}
	return zapcore.ParseLevel(text)
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

// NewLogger builds a logger from cfg and makes cfg's level the shared global level.
func NewLogger(cfg Config, opts ...Option) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	_globalLevel.SetLevel(level)

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = _globalLevel
	zc.Encoding = "console"
	if cfg.Format == "json" {
		zc.Encoding = "json"
	}
	zc.EncoderConfig.EncodeLevel = levelEncoder
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = !cfg.Development
	return zc.Build(append([]Option{AddCallerSkip(1)}, opts...)...)
}

func L() *zap.Logger {
	return _globalL.Load()
}

// ReplaceGlobals swaps the global logger and returns a function restoring the previous one.
func ReplaceGlobals(l *zap.Logger) func() {
	prev := _globalL.Swap(l)
	return func() { _globalL.Store(prev) }
}

func SetLevel(l zapcore.Level) {
	_globalLevel.SetLevel(l)
}

func Trace(msg string, fields ...Field) {
	if ce := L().Check(TraceLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

func Debug(msg string, fields ...Field) {
	L().Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	L().Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	L().Warn(msg, fields...)
}

func Error(msg string, fields ...Field) {
	L().Error(msg, fields...)
}

func Panic(msg string, fields ...Field) {
	L().Panic(msg, fields...)
}

func Sync() error {
	return L().Sync()
}

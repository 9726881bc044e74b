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
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type EventLevel int8

const (
	EventError EventLevel = iota
	EventWarn
	EventInfo
	EventDebug
	EventTrace
)

func (l EventLevel) String() string {
	switch l {
	case EventError:
		return "ERROR"
	case EventWarn:
		return "WARN"
	case EventInfo:
		return "INFO"
	case EventDebug:
		return "DEBUG"
	default:
		return "TRACE"
	}
}

// Event is one diagnostic record handed to an embedder.
type Event struct {
	Level   EventLevel
	Target  string
	Message string
	File    string
	Line    int
}

type EventSink interface {
	Emit(Event)
}

type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) {
	f(e)
}

func eventLevel(l zapcore.Level) EventLevel {
	switch {
	case l >= zapcore.ErrorLevel:
		return EventError
	case l == zapcore.WarnLevel:
		return EventWarn
	case l == zapcore.InfoLevel:
		return EventInfo
	case l == zapcore.DebugLevel:
		return EventDebug
	default:
		return EventTrace
	}
}

type sinkCore struct {
	zapcore.LevelEnabler
	sink   EventSink
	fields []zapcore.Field
}

// NewSinkCore returns a zapcore.Core that turns every enabled entry into an Event.
func NewSinkCore(sink EventSink, enab zapcore.LevelEnabler) zapcore.Core {
	return &sinkCore{LevelEnabler: enab, sink: sink}
}

func (c *sinkCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &sinkCore{LevelEnabler: c.LevelEnabler, sink: c.sink, fields: merged}
}

func (c *sinkCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *sinkCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	msg := ent.Message
	if len(enc.Fields) > 0 {
		keys := make([]string, 0, len(enc.Fields))
		for k := range enc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteString(msg)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, enc.Fields[k])
		}
		msg = sb.String()
	}

	ev := Event{
		Level:   eventLevel(ent.Level),
		Target:  ent.LoggerName,
		Message: msg,
	}
	if ent.Caller.Defined {
		ev.File = ent.Caller.File
		ev.Line = ent.Caller.Line
	}
	c.sink.Emit(ev)
	return nil
}

func (c *sinkCore) Sync() error {
	return nil
}

// ForwardTo tees the global logger into sink and returns a function that detaches it.
func ForwardTo(sink EventSink) func() {
	l := L().WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, NewSinkCore(sink, _globalLevel))
	}))
	return ReplaceGlobals(l)
}

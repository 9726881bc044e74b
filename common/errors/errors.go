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

package errors

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

var (
	ErrSchemaIsNil    = errors.New("schema is nil")
	ErrSchemaNotMatch = errors.New("schema not match")
	ErrColumnNotExist = errors.New("column not exist")
	ErrInvalidPath    = errors.New("invalid path")
	ErrNoEndpoint     = errors.New("no endpoint specified")
	ErrFileNotFound   = errors.New("file not found")
	ErrFileExists     = errors.New("file already exists")
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrResolution     = errors.New("resolution error")
	ErrParse          = errors.New("parse error")
	ErrProtocol       = errors.New("protocol error")
	ErrState          = errors.New("state error")
	ErrPlanning       = errors.New("planning error")
	ErrDeletionVector = errors.New("deletion vector error")
	ErrStorage        = errors.New("storage error")
	ErrInternal       = errors.New("internal error")
)

type Kind int8

const (
	KindInternal Kind = iota
	KindResolution
	KindParse
	KindProtocol
	KindState
	KindPlanning
	KindDeletionVector
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindResolution:
		return "ResolutionError"
	case KindParse:
		return "ParseError"
	case KindProtocol:
		return "ProtocolError"
	case KindState:
		return "StateError"
	case KindPlanning:
		return "PlanningError"
	case KindDeletionVector:
		return "DeletionVectorError"
	case KindStorage:
		return "StorageError"
	default:
		return "InternalError"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindResolution:
		return ErrResolution
	case KindParse:
		return ErrParse
	case KindProtocol:
		return ErrProtocol
	case KindState:
		return ErrState
	case KindPlanning:
		return ErrPlanning
	case KindDeletionVector:
		return ErrDeletionVector
	case KindStorage:
		return ErrStorage
	default:
		return ErrInternal
	}
}

// Error is the structured error returned by every fallible operation: a kind plus a
// message, optionally pinned to a file and line and wrapping a cause.
type Error struct {
	Kind  Kind
	Msg   string
	File  string
	Line  int
	cause error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.File != "" {
		if e.Line > 0 {
			fmt.Fprintf(&sb, " (file %s, line %d)", e.File, e.Line)
		} else {
			fmt.Fprintf(&sb, " (file %s)", e.File)
		}
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Cause satisfies the github.com/pkg/errors causer interface.
func (e *Error) Cause() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func NewResolutionError(format string, args ...any) *Error {
	return newError(KindResolution, format, args...)
}

func NewProtocolError(format string, args ...any) *Error {
	return newError(KindProtocol, format, args...)
}

func NewStateError(format string, args ...any) *Error {
	return newError(KindState, format, args...)
}

func NewPlanningError(format string, args ...any) *Error {
	return newError(KindPlanning, format, args...)
}

func NewDeletionVectorError(format string, args ...any) *Error {
	return newError(KindDeletionVector, format, args...)
}

func NewInternalError(format string, args ...any) *Error {
	return newError(KindInternal, format, args...)
}

// NewParseError pins a parse failure to the offending file and 1-based line, or row for
// parquet checkpoints. Line 0 means the position is unknown.
func NewParseError(file string, line int, format string, args ...any) *Error {
	e := newError(KindParse, format, args...)
	e.File = file
	e.Line = line
	return e
}

// Wrap attaches a kind and message to err, recording a stack trace on the cause. A nil err
// yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	e := newError(kind, format, args...)
	e.cause = pkgerrors.WithStack(err)
	return e
}

// WrapFile is Wrap for errors tied to a particular file.
func WrapFile(kind Kind, err error, file string, format string, args ...any) error {
	if err == nil {
		return nil
	}
	e := newError(kind, format, args...)
	e.File = file
	e.cause = pkgerrors.WithStack(err)
	return e
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is and As re-export the standard library helpers so callers importing this package
// under the name errors keep access to them.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func New(text string) error {
	return errors.New(text)
}

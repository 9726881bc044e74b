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

// Package engine declares the capabilities the log kernel needs from its host: byte access to
// storage, action parsing, and expression evaluation.
package engine

import (
	"context"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/io/fs"
	"github.com/lbhm/delta-kernel-go/storage/actions"
)

type StorageHandler interface {
	// List returns the files directly under dir in ascending path order. A missing dir yields
	// an empty listing.
	List(ctx context.Context, dir string) ([]fs.FileEntry, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error)
}

type ActionParser interface {
	// ParseActions decodes a commit or checkpoint file. Malformed content surfaces as a
	// ParseError from the iterator, pinned to file and line.
	ParseActions(file string, content []byte) (actions.Iterator, error)
}

type ExpressionHandler interface {
	ParsePredicate(text string) (expr.Expression, error)
	// Evaluate computes e for every row of batch. Predicates yield a boolean array and Struct
	// expressions a struct array.
	Evaluate(e expr.Expression, batch arrow.Record) (arrow.Array, error)
}

type EventSink = log.EventSink

type Event = log.Event

// Engine bundles the capabilities.
type Engine interface {
	Storage() StorageHandler
	Parser() ActionParser
	Expressions() ExpressionHandler
}

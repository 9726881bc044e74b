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

// Package defaultengine implements the engine capabilities on top of io/fs, arrow and parquet.
package defaultengine

import (
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/engine"
	"github.com/lbhm/delta-kernel-go/io/fs"
)

var _ engine.Engine = (*DefaultEngine)(nil)

type DefaultEngine struct {
	fs        fs.Fs
	storage   *FsStorage
	parser    *Parser
	evaluator *Evaluator
	detach    func()
}

type Option func(*DefaultEngine)

// WithEventSink forwards every log entry to sink until Close.
func WithEventSink(sink engine.EventSink) Option {
	return func(e *DefaultEngine) {
		e.detach = log.ForwardTo(sink)
	}
}

func WithAllocator(mem memory.Allocator) Option {
	return func(e *DefaultEngine) {
		e.evaluator = NewEvaluator(mem)
	}
}

func WithBatchSize(n int64) Option {
	return func(e *DefaultEngine) {
		if n > 0 {
			e.parser.batchSize = n
		}
	}
}

func New(f fs.Fs, opts ...Option) *DefaultEngine {
	e := &DefaultEngine{
		fs:        f,
		storage:   NewFsStorage(f),
		parser:    NewParser(),
		evaluator: NewEvaluator(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromURI builds the file system for uri. The table root is Fs().Path().
func NewFromURI(uri string, opts ...Option) (*DefaultEngine, error) {
	f, err := fs.BuildFileSystem(uri)
	if err != nil {
		return nil, err
	}
	return New(f, opts...), nil
}

func (e *DefaultEngine) Storage() engine.StorageHandler {
	return e.storage
}

func (e *DefaultEngine) Parser() engine.ActionParser {
	return e.parser
}

func (e *DefaultEngine) Expressions() engine.ExpressionHandler {
	return e.evaluator
}

func (e *DefaultEngine) Evaluator() *Evaluator {
	return e.evaluator
}

// BatchSize is the row count of the record batches read from parquet files.
func (e *DefaultEngine) BatchSize() int64 {
	return e.parser.batchSize
}

func (e *DefaultEngine) Fs() fs.Fs {
	return e.fs
}

// Close detaches the event sink, if any.
func (e *DefaultEngine) Close() error {
	if e.detach != nil {
		e.detach()
		e.detach = nil
	}
	return nil
}

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

package common_reader

import (
	"sync/atomic"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/lbhm/delta-kernel-go/expr"
)

// RecordEvaluator evaluates a struct expression into a record of a given schema.
type RecordEvaluator interface {
	EvaluateRecord(e *expr.Struct, batch arrow.Record, out *arrow.Schema) (arrow.Record, error)
}

// ProjectionReader turns each record into schema. A nil transform selects the columns of
// schema by name.
type ProjectionReader struct {
	ref       int64
	reader    array.RecordReader
	transform *expr.Struct
	evaluator RecordEvaluator
	schema    *arrow.Schema
	rec       arrow.Record
	err       error
}

func NewProjectionReader(reader array.RecordReader, transform *expr.Struct, evaluator RecordEvaluator, schema *arrow.Schema) *ProjectionReader {
	if transform == nil {
		fields := make([]expr.Expression, 0, len(schema.Fields()))
		for _, f := range schema.Fields() {
			fields = append(fields, expr.ColPath(f.Name))
		}
		transform = expr.NewStruct(fields...)
	}
	return &ProjectionReader{ref: 1, reader: reader, transform: transform, evaluator: evaluator, schema: schema}
}

func (r *ProjectionReader) Retain() {
	atomic.AddInt64(&r.ref, 1)
}

func (r *ProjectionReader) Release() {
	if atomic.AddInt64(&r.ref, -1) == 0 {
		if r.rec != nil {
			r.rec.Release()
			r.rec = nil
		}
		r.reader.Release()
	}
}

func (r *ProjectionReader) Schema() *arrow.Schema {
	return r.schema
}

func (r *ProjectionReader) Next() bool {
	if r.rec != nil {
		r.rec.Release()
		r.rec = nil
	}
	if !r.reader.Next() {
		r.err = r.reader.Err()
		return false
	}
	rec, err := r.evaluator.EvaluateRecord(r.transform, r.reader.Record(), r.schema)
	if err != nil {
		r.err = err
		return false
	}
	r.rec = rec
	return true
}

func (r *ProjectionReader) Record() arrow.Record {
	return r.rec
}

func (r *ProjectionReader) Err() error {
	return r.err
}

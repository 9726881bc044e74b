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
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/engine"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/filter"
)

// FilterReader keeps the rows for which the predicate is true. False and NULL rows are dropped.
type FilterReader struct {
	ref          int64
	recordReader array.RecordReader
	predicate    expr.Expression
	evaluator    engine.ExpressionHandler
	rec          arrow.Record
	err          error
}

func NewFilterReader(recordReader array.RecordReader, predicate expr.Expression, evaluator engine.ExpressionHandler) *FilterReader {
	return &FilterReader{ref: 1, recordReader: recordReader, predicate: predicate, evaluator: evaluator}
}

func (r *FilterReader) Retain() {
	atomic.AddInt64(&r.ref, 1)
}

func (r *FilterReader) Release() {
	if atomic.AddInt64(&r.ref, -1) == 0 {
		if r.rec != nil {
			r.rec.Release()
			r.rec = nil
		}
		r.recordReader.Release()
	}
}

func (r *FilterReader) Schema() *arrow.Schema {
	return r.recordReader.Schema()
}

func (r *FilterReader) Next() bool {
	if r.rec != nil {
		r.rec.Release()
		r.rec = nil
	}
	for r.recordReader.Next() {
		rec := r.recordReader.Record()
		out, err := r.filter(rec)
		if err != nil {
			r.err = err
			return false
		}
		if out.NumRows() == 0 {
			out.Release()
			continue
		}
		r.rec = out
		return true
	}
	r.err = r.recordReader.Err()
	return false
}

func (r *FilterReader) filter(rec arrow.Record) (arrow.Record, error) {
	if r.predicate == nil {
		rec.Retain()
		return rec, nil
	}
	mask, err := r.evaluator.Evaluate(r.predicate, rec)
	if err != nil {
		return nil, err
	}
	defer mask.Release()
	bs := filter.FromSelectionVector(nil, int(rec.NumRows()))
	switch m := mask.(type) {
	case *array.Boolean:
		filter.Intersect(bs, m)
	case *array.Null:
		bs.ClearAll()
	default:
		return nil, errors.NewPlanningError("predicate %s yields %s, not boolean", r.predicate, mask.DataType())
	}
	return filter.Apply(rec, bs)
}

func (r *FilterReader) Record() arrow.Record {
	return r.rec
}

func (r *FilterReader) Err() error {
	return r.err
}

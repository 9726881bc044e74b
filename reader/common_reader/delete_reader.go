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
	"github.com/lbhm/delta-kernel-go/filter"
)

// DeleteReader drops the rows a deletion vector marks as deleted. The selection vector covers
// the whole file, so the wrapped reader must yield every row of the file in order.
type DeleteReader struct {
	ref          int64
	recordReader array.RecordReader
	selection    []bool
	offset       int
	rec          arrow.Record
	err          error
}

func NewDeleteReader(recordReader array.RecordReader, selection []bool) *DeleteReader {
	return &DeleteReader{ref: 1, recordReader: recordReader, selection: selection}
}

func (d *DeleteReader) Retain() {
	atomic.AddInt64(&d.ref, 1)
}

func (d *DeleteReader) Release() {
	if atomic.AddInt64(&d.ref, -1) == 0 {
		if d.rec != nil {
			d.rec.Release()
			d.rec = nil
		}
		d.recordReader.Release()
	}
}

func (d *DeleteReader) Schema() *arrow.Schema {
	return d.recordReader.Schema()
}

func (d *DeleteReader) Next() bool {
	if d.rec != nil {
		d.rec.Release()
		d.rec = nil
	}
	for d.recordReader.Next() {
		rec := d.recordReader.Record()
		n := int(rec.NumRows())
		end := d.offset + n
		if end > len(d.selection) {
			end = len(d.selection)
		}
		var sel []bool
		if d.offset < end {
			sel = d.selection[d.offset:end]
		} else {
			sel = []bool{}
		}
		d.offset += n
		out, err := filter.Apply(rec, filter.FromSelectionVector(sel, n))
		if err != nil {
			d.err = err
			return false
		}
		if out.NumRows() == 0 {
			out.Release()
			continue
		}
		d.rec = out
		return true
	}
	d.err = d.recordReader.Err()
	return false
}

func (d *DeleteReader) Record() arrow.Record {
	return d.rec
}

func (d *DeleteReader) Err() error {
	return d.err
}

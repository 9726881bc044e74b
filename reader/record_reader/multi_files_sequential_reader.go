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

package record_reader

import (
	"io"
	"sync/atomic"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/lbhm/delta-kernel-go/io/format"
)

// Opener starts reading one file.
type Opener func() (array.RecordReader, error)

// MultiFilesSequentialReader reads files one after the other, opening each only when the
// previous one is exhausted.
type MultiFilesSequentialReader struct {
	ref        int64
	schema     *arrow.Schema
	openers    []Opener
	nextPos    int
	currReader array.RecordReader
	err        error
}

func NewMultiFilesSequentialReader(schema *arrow.Schema, openers []Opener) *MultiFilesSequentialReader {
	return &MultiFilesSequentialReader{ref: 1, schema: schema, openers: openers}
}

func (m *MultiFilesSequentialReader) Retain() {
	atomic.AddInt64(&m.ref, 1)
}

func (m *MultiFilesSequentialReader) Release() {
	if atomic.AddInt64(&m.ref, -1) == 0 {
		m.closeCurrent()
		m.nextPos = len(m.openers)
	}
}

func (m *MultiFilesSequentialReader) closeCurrent() {
	if m.currReader != nil {
		m.currReader.Release()
		m.currReader = nil
	}
}

func (m *MultiFilesSequentialReader) Schema() *arrow.Schema {
	return m.schema
}

func (m *MultiFilesSequentialReader) Next() bool {
	if m.err != nil {
		return false
	}
	for {
		if m.currReader == nil {
			if m.nextPos >= len(m.openers) {
				return false
			}
			reader, err := m.openers[m.nextPos]()
			m.nextPos++
			if err != nil {
				m.err = err
				return false
			}
			m.currReader = reader
		}
		if m.currReader.Next() {
			return true
		}
		err := m.currReader.Err()
		m.closeCurrent()
		if err != nil {
			m.err = err
			return false
		}
	}
}

func (m *MultiFilesSequentialReader) Record() arrow.Record {
	if m.currReader == nil {
		return nil
	}
	return m.currReader.Record()
}

func (m *MultiFilesSequentialReader) Err() error {
	return m.err
}

// formatRecordReader adapts a format.Reader to array.RecordReader.
type formatRecordReader struct {
	ref    int64
	reader format.Reader
	schema *arrow.Schema
	rec    arrow.Record
	err    error
}

func newFormatRecordReader(reader format.Reader, schema *arrow.Schema) *formatRecordReader {
	return &formatRecordReader{ref: 1, reader: reader, schema: schema}
}

func (r *formatRecordReader) Retain() {
	atomic.AddInt64(&r.ref, 1)
}

func (r *formatRecordReader) Release() {
	if atomic.AddInt64(&r.ref, -1) == 0 {
		if r.rec != nil {
			r.rec.Release()
			r.rec = nil
		}
		r.reader.Close()
	}
}

func (r *formatRecordReader) Schema() *arrow.Schema {
	return r.schema
}

func (r *formatRecordReader) Next() bool {
	if r.rec != nil {
		r.rec.Release()
		r.rec = nil
	}
	if r.err != nil {
		return false
	}
	rec, err := r.reader.Read()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	r.rec = rec
	return true
}

func (r *formatRecordReader) Record() arrow.Record {
	return r.rec
}

func (r *formatRecordReader) Err() error {
	return r.err
}

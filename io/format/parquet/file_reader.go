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

package parquet

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/filter"
	"github.com/lbhm/delta-kernel-go/io/format"
	"github.com/lbhm/delta-kernel-go/io/fs"
	"github.com/lbhm/delta-kernel-go/storage/options/option"
)

var _ format.Reader = (*FileReader)(nil)

type FileReader struct {
	name   string
	closer io.Closer
	reader *pqarrow.FileReader
	rr     pqarrow.RecordReader
	schema *arrow.Schema
	// rows left to hand out when no column is read
	pending   int64
	batchSize int64
	countOnly bool
}

// NewFileReader opens filePath on fs, projecting opts.Columns and skipping the row groups
// opts.Predicate rules out.
func NewFileReader(fs fs.Fs, filePath string, opts *option.ReadOptions) (*FileReader, error) {
	f, err := fs.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	r, err := newFileReader(filePath, f, f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// NewBytesReader reads a parquet file already held in memory.
func NewBytesReader(name string, content []byte, opts *option.ReadOptions) (*FileReader, error) {
	return newFileReader(name, bytes.NewReader(content), nil, opts)
}

func newFileReader(name string, src parquet.ReaderAtSeeker, closer io.Closer, opts *option.ReadOptions) (*FileReader, error) {
	if opts == nil {
		opts = option.NewReadOptions()
	}
	parquetReader, err := file.NewParquetReader(src)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", name, err)
	}
	reader, err := pqarrow.NewFileReader(parquetReader, pqarrow.ArrowReadProperties{BatchSize: opts.BatchSize}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", name, err)
	}

	columns, err := leafColumns(reader.Manifest, opts.Columns, opts.IgnoreMissing)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", name, err)
	}
	var rowGroups []int
	md := parquetReader.MetaData()
	if opts.Predicate != nil && opts.Schema != nil {
		rowGroups = filter.SelectRowGroups(md, opts.Predicate, opts.Schema)
		if skipped := len(md.RowGroups) - len(rowGroups); skipped > 0 {
			log.Debug("skipped row groups", log.String("file", name), log.Int("skipped", skipped), log.Int("total", len(md.RowGroups)))
		}
	}
	if rowGroups == nil {
		rowGroups = make([]int, len(md.RowGroups))
		for i := range rowGroups {
			rowGroups[i] = i
		}
	}

	if columns != nil && len(columns) == 0 {
		// nothing to decode: only the row count matters
		var rows int64
		for _, rg := range rowGroups {
			rows += md.RowGroup(rg).NumRows()
		}
		batchSize := opts.BatchSize
		if batchSize <= 0 {
			batchSize = constant.ReadBatchSize
		}
		return &FileReader{name: name, closer: closer, reader: reader, schema: arrow.NewSchema(nil, nil), pending: rows, batchSize: batchSize, countOnly: true}, nil
	}
	if len(rowGroups) == 0 {
		sc, err := projectedSchema(reader, opts.Columns)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return &FileReader{name: name, closer: closer, reader: reader, schema: sc}, nil
	}

	rr, err := reader.GetRecordReader(context.TODO(), columns, rowGroups)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return &FileReader{name: name, closer: closer, reader: reader, rr: rr, schema: rr.Schema()}, nil
}

// projectedSchema is the schema a reader over columns would produce, for files where every
// row group was skipped.
func projectedSchema(reader *pqarrow.FileReader, columns []string) (*arrow.Schema, error) {
	full, err := reader.Schema()
	if err != nil {
		return nil, err
	}
	return utils.ProjectSchema(full, columns), nil
}

// leafColumns maps top-level column names to parquet leaf indices. A nil result reads every
// column; an empty one reads none.
func leafColumns(manifest *pqarrow.SchemaManifest, names []string, ignoreMissing bool) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	byName := make(map[string]pqarrow.SchemaField, len(manifest.Fields))
	for _, f := range manifest.Fields {
		byName[f.Field.Name] = f
	}
	out := []int{}
	for _, n := range names {
		f, ok := byName[n]
		if !ok {
			if ignoreMissing {
				continue
			}
			return nil, fmt.Errorf("column %q not found", n)
		}
		out = appendLeaves(out, f)
	}
	return out, nil
}

func appendLeaves(out []int, f pqarrow.SchemaField) []int {
	if len(f.Children) == 0 {
		return append(out, f.ColIndex)
	}
	for _, c := range f.Children {
		out = appendLeaves(out, c)
	}
	return out
}

func (r *FileReader) Schema() *arrow.Schema {
	return r.schema
}

// NumRows is the row count of the whole file, before row-group skipping. It must not be
// called after Close.
func (r *FileReader) NumRows() int64 {
	return r.reader.ParquetReader().NumRows()
}

func (r *FileReader) Read() (arrow.Record, error) {
	if r.countOnly {
		if r.pending == 0 {
			return nil, io.EOF
		}
		n := r.pending
		if n > r.batchSize {
			n = r.batchSize
		}
		r.pending -= n
		return array.NewRecord(arrow.NewSchema(nil, nil), nil, n), nil
	}
	if r.rr == nil {
		return nil, io.EOF
	}
	if !r.rr.Next() {
		if err := r.rr.Err(); err != nil && err != io.EOF {
			return nil, err
		}
		return nil, io.EOF
	}
	rec := r.rr.Record()
	rec.Retain()
	return rec, nil
}

// Close is idempotent.
func (r *FileReader) Close() error {
	if r.reader == nil {
		return nil
	}
	r.reader = nil
	if r.rr != nil {
		r.rr.Release()
		r.rr = nil
	}
	r.pending = 0
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

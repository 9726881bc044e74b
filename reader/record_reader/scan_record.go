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
	"context"

	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/engine/defaultengine"
	"github.com/lbhm/delta-kernel-go/io/format/parquet"
	"github.com/lbhm/delta-kernel-go/reader/common_reader"
	"github.com/lbhm/delta-kernel-go/storage/options/option"
	"github.com/lbhm/delta-kernel-go/storage/scan"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

// ScanRecordReader reads the rows of a list of scan files as logical table rows: deleted rows
// removed, the predicate applied and partition values filled in.
type ScanRecordReader struct {
	*MultiFilesSequentialReader
	files []*scan.ScanFile
}

func NewScanRecordReader(ctx context.Context, s *scan.Scan, eng *defaultengine.DefaultEngine, files []*scan.ScanFile) *ScanRecordReader {
	openers := make([]Opener, 0, len(files))
	for _, f := range files {
		f := f
		openers = append(openers, func() (array.RecordReader, error) {
			return OpenScanFile(ctx, s, eng, f)
		})
	}
	return &ScanRecordReader{
		MultiFilesSequentialReader: NewMultiFilesSequentialReader(s.Schema().Schema(), openers),
		files:                      files,
	}
}

func (r *ScanRecordReader) Files() []*scan.ScanFile {
	return r.files
}

// OpenScanFile builds the read pipeline of one file: parquet, deletion vector, transform,
// predicate and the final projection.
func OpenScanFile(ctx context.Context, s *scan.Scan, eng *defaultengine.DefaultEngine, f *scan.ScanFile) (array.RecordReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.AbsolutePath(s.Snapshot().TableRoot())
	if err != nil {
		return nil, errors.WrapFile(errors.KindInternal, err, f.Path, "resolve data file path")
	}
	physical := s.PhysicalSchema().Struct()
	opts := option.NewReadOptions()
	opts.SetColumns(physical.FieldNames())
	opts.IgnoreMissing = true
	opts.BatchSize = eng.BatchSize()
	if f.DeletionVector == nil && s.PhysicalPredicate() != nil {
		// deletion vectors address rows by position, so no row group may be skipped
		opts.SetPredicate(s.PhysicalPredicate(), s.Snapshot().PhysicalSchema().Struct())
	}
	fr, err := parquet.NewFileReader(eng.Fs(), p, opts)
	if err != nil {
		return nil, errors.WrapFile(errors.KindStorage, err, p, "open data file")
	}

	transform := f.Transform
	fileSchema, err := schema.FromArrowSchema(fr.Schema())
	if err != nil {
		fr.Close()
		return nil, errors.WrapFile(errors.KindParse, err, p, "data file schema")
	}
	if !sameColumns(fileSchema, physical) {
		log.Debug("data file schema differs from table schema", log.String("path", p), log.String("file", fileSchema.String()))
		if transform, err = s.TransformFor(fileSchema, f); err != nil {
			fr.Close()
			return nil, err
		}
	}

	var rr array.RecordReader = newFormatRecordReader(fr, fr.Schema())
	if f.DeletionVector != nil {
		sel, err := s.SelectionVector(ctx, f, int(fr.NumRows()))
		if err != nil {
			rr.Release()
			return nil, err
		}
		rr = common_reader.NewDeleteReader(rr, sel)
	}
	rr = common_reader.NewProjectionReader(rr, transform, eng.Evaluator(), s.ReadSchema().Schema())
	if pred := s.Predicate(); pred != nil {
		rr = common_reader.NewFilterReader(rr, pred, eng.Expressions())
	}
	if len(s.ReadSchema().Fields()) != len(s.Schema().Fields()) {
		rr = common_reader.NewProjectionReader(rr, nil, eng.Evaluator(), s.Schema().Schema())
	}
	log.Trace("reading data file", log.String("path", p), log.Bool("deletionVector", f.DeletionVector != nil))
	return rr, nil
}

func sameColumns(a, b *schema.StructType) bool {
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name || a.Fields[i].Type.String() != b.Fields[i].Type.String() {
			return false
		}
	}
	return true
}

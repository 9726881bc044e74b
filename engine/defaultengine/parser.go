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

package defaultengine

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/engine"
	"github.com/lbhm/delta-kernel-go/io/format/parquet"
	"github.com/lbhm/delta-kernel-go/storage/actions"
	"github.com/lbhm/delta-kernel-go/storage/options/option"
)

var _ engine.ActionParser = (*Parser)(nil)

// Parser reads newline-delimited JSON commits and checkpoints, and parquet checkpoints.
type Parser struct {
	batchSize int64
}

func NewParser() *Parser {
	return &Parser{batchSize: constant.ReadBatchSize}
}

func (p *Parser) ParseActions(file string, content []byte) (actions.Iterator, error) {
	if !strings.HasSuffix(file, constant.ParquetFileSuffix) {
		return actions.NewLineIterator(file, content), nil
	}
	opts := option.NewReadOptions()
	opts.BatchSize = p.batchSize
	reader, err := parquet.NewBytesReader(file, content, opts)
	if err != nil {
		return nil, errors.WrapFile(errors.KindParse, err, file, "open checkpoint")
	}
	return &checkpointIterator{file: file, reader: reader}, nil
}

var actionColumns = map[string]struct{}{
	"add":        {},
	"remove":     {},
	"metaData":   {},
	"protocol":   {},
	"txn":        {},
	"commitInfo": {},
}

type actionColumn struct {
	name string
	arr  arrow.Array
}

// checkpointIterator turns each non-null action struct of a checkpoint row into its JSON
// form and decodes it like a commit line. Line numbers are 1-based row numbers.
type checkpointIterator struct {
	file    string
	reader  *parquet.FileReader
	rec     arrow.Record
	cols    []actionColumn
	row     int
	col     int
	rowBase int
	cur     actions.Action
	err     error
}

func (it *checkpointIterator) Next() bool {
	for it.err == nil {
		if it.rec == nil {
			rec, err := it.reader.Read()
			if err == io.EOF {
				return false
			}
			if err != nil {
				it.err = errors.WrapFile(errors.KindParse, err, it.file, "read checkpoint")
				return false
			}
			it.setRecord(rec)
		}
		if it.row >= int(it.rec.NumRows()) {
			it.rowBase += it.row
			it.rec.Release()
			it.rec = nil
			continue
		}
		if it.col >= len(it.cols) {
			it.row++
			it.col = 0
			continue
		}
		c := it.cols[it.col]
		it.col++
		if c.arr.IsNull(it.row) {
			continue
		}
		line := it.rowBase + it.row + 1
		v, err := utils.MarshalValue(c.arr, it.row)
		if err != nil {
			it.err = errors.NewParseError(it.file, line, "encode %s row: %v", c.name, err)
			return false
		}
		b, err := json.Marshal(map[string]json.RawMessage{c.name: v})
		if err != nil {
			it.err = errors.NewParseError(it.file, line, "encode %s row: %v", c.name, err)
			return false
		}
		a, ok, err := actions.ParseLine(it.file, line, b)
		if err != nil {
			it.err = err
			return false
		}
		if ok {
			it.cur = a
			return true
		}
	}
	return false
}

func (it *checkpointIterator) setRecord(rec arrow.Record) {
	it.rec = rec
	it.row, it.col = 0, 0
	it.cols = it.cols[:0]
	for i, f := range rec.Schema().Fields() {
		if _, ok := actionColumns[f.Name]; ok {
			it.cols = append(it.cols, actionColumn{name: f.Name, arr: rec.Column(i)})
		}
	}
}

func (it *checkpointIterator) Action() actions.Action {
	return it.cur
}

func (it *checkpointIterator) Err() error {
	return it.err
}

func (it *checkpointIterator) Close() error {
	if it.rec != nil {
		it.rec.Release()
		it.rec = nil
	}
	return it.reader.Close()
}

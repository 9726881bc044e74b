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

package option

import (
	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

// ReadOptions control how a single physical data or checkpoint file is read.
type ReadOptions struct {
	// Columns are top-level physical column names; empty reads every column.
	Columns []string
	// Predicate is in physical column names and only skips whole row groups.
	Predicate expr.Expression
	// Schema types the row-group statistics the predicate is checked against.
	Schema    *schema.StructType
	BatchSize int64
	// IgnoreMissing skips requested columns the file does not have instead of failing.
	IgnoreMissing bool
}

func NewReadOptions() *ReadOptions {
	return &ReadOptions{
		Columns:   make([]string, 0),
		BatchSize: constant.ReadBatchSize,
	}
}

func (o *ReadOptions) AddColumn(column string) {
	o.Columns = append(o.Columns, column)
}

func (o *ReadOptions) SetColumns(columns []string) {
	o.Columns = columns
}

func (o *ReadOptions) SetPredicate(pred expr.Expression, physical *schema.StructType) {
	o.Predicate = pred
	o.Schema = physical
}

func (o *ReadOptions) OutputColumns() []string {
	return o.Columns
}

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

package filter

import (
	"strings"

	"github.com/apache/arrow/go/v12/parquet/metadata"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

var _ Stats = (*RowGroupStats)(nil)

// RowGroupStats reads column chunk statistics of one parquet row group. Columns are looked up by
// their physical names.
type RowGroupStats struct {
	rg     *metadata.RowGroupMetaData
	schema *schema.StructType
}

func NewRowGroupStats(rg *metadata.RowGroupMetaData, physical *schema.StructType) *RowGroupStats {
	return &RowGroupStats{rg: rg, schema: physical}
}

func (s *RowGroupStats) NumRecords() (int64, bool) {
	return s.rg.NumRows(), true
}

func (s *RowGroupStats) statistics(path []string) metadata.TypedStatistics {
	idx := s.rg.Schema.ColumnIndexByName(strings.Join(path, "."))
	if idx < 0 {
		return nil
	}
	chunk, err := s.rg.ColumnChunk(idx)
	if err != nil {
		return nil
	}
	if set, err := chunk.StatsSet(); err != nil || !set {
		return nil
	}
	stats, err := chunk.Statistics()
	if err != nil {
		return nil
	}
	return stats
}

func (s *RowGroupStats) NullCount(path []string) (int64, bool) {
	stats := s.statistics(path)
	if stats == nil || !stats.HasNullCount() {
		return 0, false
	}
	return stats.NullCount(), true
}

func (s *RowGroupStats) Min(path []string) (expr.Scalar, bool) {
	return s.bound(path, true)
}

func (s *RowGroupStats) Max(path []string) (expr.Scalar, bool) {
	return s.bound(path, false)
}

func (s *RowGroupStats) bound(path []string, min bool) (expr.Scalar, bool) {
	f, ok := s.schema.Resolve(path)
	if !ok {
		return expr.Scalar{}, false
	}
	pt, ok := f.Type.(*schema.PrimitiveType)
	if !ok {
		return expr.Scalar{}, false
	}
	stats := s.statistics(path)
	if stats == nil || !stats.HasMinMax() {
		return expr.Scalar{}, false
	}
	var v any
	switch st := stats.(type) {
	case *metadata.Int32Statistics:
		x := st.Max()
		if min {
			x = st.Min()
		}
		switch pt.Name {
		case "byte":
			v = int8(x)
		case "short":
			v = int16(x)
		case "integer", "date":
			v = x
		}
	case *metadata.Int64Statistics:
		x := st.Max()
		if min {
			x = st.Min()
		}
		switch pt.Name {
		case "long", "timestamp", "timestamp_ntz":
			v = x
		}
	case *metadata.Float32Statistics:
		x := st.Max()
		if min {
			x = st.Min()
		}
		if pt.Name == "float" {
			v = x
		}
	case *metadata.Float64Statistics:
		x := st.Max()
		if min {
			x = st.Min()
		}
		if pt.Name == "double" {
			v = x
		}
	case *metadata.BooleanStatistics:
		x := st.Max()
		if min {
			x = st.Min()
		}
		if pt.Name == "boolean" {
			v = x
		}
	case *metadata.ByteArrayStatistics:
		x := st.Max()
		if min {
			x = st.Min()
		}
		switch pt.Name {
		case "string":
			v = string(x)
		case "binary":
			v = append([]byte(nil), x...)
		}
	}
	if v == nil {
		return expr.Scalar{}, false
	}
	return expr.Scalar{Type: pt, Value: v}, true
}

// SelectRowGroups lists the row groups of md that pred cannot rule out.
func SelectRowGroups(md *metadata.FileMetaData, pred expr.Expression, physical *schema.StructType) []int {
	selected := make([]int, 0, len(md.RowGroups))
	for i := 0; i < len(md.RowGroups); i++ {
		if pred != nil && CanSkip(pred, NewRowGroupStats(md.RowGroup(i), physical)) {
			continue
		}
		selected = append(selected, i)
	}
	return selected
}

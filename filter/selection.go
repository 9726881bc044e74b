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
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/bits-and-blooms/bitset"
)

// FromSelectionVector sets a bit for every kept row. A nil sel keeps all n rows.
func FromSelectionVector(sel []bool, n int) *bitset.BitSet {
	bs := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		if sel == nil || (i < len(sel) && sel[i]) {
			bs.Set(uint(i))
		}
	}
	return bs
}

// Intersect clears every bit of bs whose row in mask is false or null.
func Intersect(bs *bitset.BitSet, mask *array.Boolean) {
	for i := 0; i < mask.Len(); i++ {
		if mask.IsNull(i) || !mask.Value(i) {
			bs.Clear(uint(i))
		}
	}
}

// Apply keeps the rows of rec whose bit is set. The result must be released by the caller.
func Apply(rec arrow.Record, bs *bitset.BitSet) (arrow.Record, error) {
	n := int(rec.NumRows())
	if bs.Count() == uint(n) {
		rec.Retain()
		return rec, nil
	}
	var slices []arrow.Record
	defer func() {
		for _, s := range slices {
			s.Release()
		}
	}()
	for i, ok := bs.NextSet(0); ok && int(i) < n; {
		start := i
		for ok && int(i) < n && bs.Test(i) {
			i++
		}
		slices = append(slices, rec.NewSlice(int64(start), int64(i)))
		i, ok = bs.NextSet(i)
	}
	if len(slices) == 0 {
		return rec.NewSlice(0, 0), nil
	}
	if len(slices) == 1 {
		slices[0].Retain()
		return slices[0], nil
	}
	cols := make([]arrow.Array, rec.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	var rows int64
	for _, s := range slices {
		rows += s.NumRows()
	}
	for c := range cols {
		parts := make([]arrow.Array, len(slices))
		for j, s := range slices {
			parts[j] = s.Column(c)
		}
		merged, err := array.Concatenate(parts, memory.DefaultAllocator)
		if err != nil {
			return nil, fmt.Errorf("concatenate column %d: %w", c, err)
		}
		cols[c] = merged
	}
	return array.NewRecord(rec.Schema(), cols, rows), nil
}

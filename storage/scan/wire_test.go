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

package scan

import (
	"testing"

	"github.com/apache/arrow/go/v12/arrow/decimal128"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/file/deletionvector"
	"github.com/lbhm/delta-kernel-go/storage/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFileProtobuf(t *testing.T) {
	off := int32(1)
	f := &ScanFile{
		Path:             "dt=2024-01-01/part-0.parquet",
		Size:             1 << 40,
		ModificationTime: 1700000000123,
		Stats:            `{"numRecords":3}`,
		DeletionVector: &deletionvector.Descriptor{
			StorageType: "u", PathOrInlineDv: "ab^-aqEH.-t@S}K{vb[*k^", Offset: &off, SizeInBytes: 36, Cardinality: 2,
		},
		PartitionValues: map[string]string{"dt": "2024-01-01"},
		Transform: expr.NewStruct(
			expr.ColPath("a", "b"),
			expr.NewCast(expr.Col("n"), schema.Long),
			expr.Lit(expr.DateValue(19723)),
			expr.Lit(expr.TimestampValue(1700000000123456)),
			expr.Lit(expr.DecimalValue(decimal128.FromI64(1234), 10, 2)),
			expr.Lit(expr.Scalar{Type: schema.Binary, Value: []byte{0xff, 0x00}}),
			expr.Lit(expr.Null(schema.Double)),
			expr.Lit(expr.Scalar{}),
			expr.Lit(expr.StringValue("x")),
			expr.Ge(expr.Col("n"), expr.Lit(expr.LongValue(-3))),
			expr.NewIsNotNull(expr.Col("n")),
		),
		Version: 7,
	}

	b, err := MarshalScanFile(f)
	require.NoError(t, err)
	got, err := UnmarshalScanFile(b)
	require.NoError(t, err)
	assert.Equal(t, f.Path, got.Path)
	assert.Equal(t, f.Size, got.Size)
	assert.Equal(t, f.ModificationTime, got.ModificationTime)
	assert.Equal(t, f.Stats, got.Stats)
	assert.Equal(t, f.DeletionVector, got.DeletionVector)
	assert.Equal(t, f.PartitionValues, got.PartitionValues)
	assert.Equal(t, f.Version, got.Version)
	assert.Equal(t, f.Transform.String(), got.Transform.String())
	assert.Equal(t, []byte{0xff, 0x00}, got.Transform.Fields[5].(*expr.Literal).Value.Value)

	plain := &ScanFile{Path: "a"}
	pb, err := plain.ToProtobuf()
	require.NoError(t, err)
	back, err := ScanFileFromProtobuf(pb)
	require.NoError(t, err)
	assert.Nil(t, back.DeletionVector)
	assert.Nil(t, back.Transform)
	assert.Empty(t, back.PartitionValues)

	_, err = UnmarshalScanFile([]byte{0xff})
	assert.Error(t, err)
}

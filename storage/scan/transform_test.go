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

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/storage/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func field(name string, t schema.DataType) schema.StructField {
	return schema.NewField(name, t, true)
}

func TestTransformIdentity(t *testing.T) {
	st := schema.NewStructType(field("id", schema.Long), field("name", schema.String))
	tr, err := BuildTransform(st, st, nil, schema.ColumnMappingNone)
	require.NoError(t, err)
	assert.Nil(t, tr)

	// same columns in another order
	swapped := schema.NewStructType(field("name", schema.String), field("id", schema.Long))
	tr, err = BuildTransform(swapped, st, nil, schema.ColumnMappingNone)
	require.NoError(t, err)
	assert.Equal(t, "STRUCT(id, name)", tr.String())
}

func TestTransformPartitionLiteral(t *testing.T) {
	physical := schema.NewStructType(field("id", schema.Long))
	logical := schema.NewStructType(field("id", schema.Long), field("dt", schema.Date))
	values, err := PartitionValues(map[string]string{"dt": "2024-01-01"}, logical, []string{"dt"}, schema.ColumnMappingNone)
	require.NoError(t, err)
	assert.Equal(t, expr.DateValue(19723), values["dt"])

	tr, err := BuildTransform(physical, logical, values, schema.ColumnMappingNone)
	require.NoError(t, err)
	require.Len(t, tr.Fields, 2)
	lit, ok := tr.Fields[1].(*expr.Literal)
	require.True(t, ok)
	assert.Equal(t, "date", lit.Value.Type.Name)
	assert.Equal(t, int32(19723), lit.Value.Value)

	_, err = PartitionValues(map[string]string{"dt": "soon"}, logical, []string{"dt"}, schema.ColumnMappingNone)
	assert.True(t, errors.Is(err, errors.ErrParse))

	values, err = PartitionValues(map[string]string{"dt": ""}, logical, []string{"dt"}, schema.ColumnMappingNone)
	require.NoError(t, err)
	assert.True(t, values["dt"].IsNull())
}

func TestTransformColumnMapping(t *testing.T) {
	id := field("id", schema.Long).WithMetadata("delta.columnMapping.physicalName", "col-a")
	inner := field("x", schema.Integer).WithMetadata("delta.columnMapping.physicalName", "col-c")
	nested := field("s", schema.NewStructType(inner)).WithMetadata("delta.columnMapping.physicalName", "col-b")
	logical := schema.NewStructType(id, nested)
	physical := schema.NewStructType(
		schema.PhysicalField(nested, schema.ColumnMappingName),
		schema.PhysicalField(id, schema.ColumnMappingName),
	)

	tr, err := BuildTransform(physical, logical, nil, schema.ColumnMappingName)
	require.NoError(t, err)
	assert.Equal(t, "STRUCT(col-a, col-b)", tr.String())

	// without a mapping mode the logical names are looked up and found missing
	tr, err = BuildTransform(physical, logical, nil, schema.ColumnMappingNone)
	require.NoError(t, err)
	assert.Equal(t, "STRUCT(NULL, NULL)", tr.String())
}

func TestTransformWidening(t *testing.T) {
	physical := schema.NewStructType(field("n", schema.Integer), field("f", schema.Float))
	logical := schema.NewStructType(field("n", schema.Long), field("f", schema.Double))
	tr, err := BuildTransform(physical, logical, nil, schema.ColumnMappingNone)
	require.NoError(t, err)
	assert.Equal(t, "STRUCT(CAST(n AS long), CAST(f AS double))", tr.String())

	narrowing := schema.NewStructType(field("n", schema.Long), field("f", schema.Double))
	_, err = BuildTransform(narrowing, schema.NewStructType(field("n", schema.Integer), field("f", schema.Double)), nil, schema.ColumnMappingNone)
	assert.True(t, errors.Is(err, errors.ErrPlanning))
}

func TestTransformMissingColumns(t *testing.T) {
	physical := schema.NewStructType(field("id", schema.Long))
	logical := schema.NewStructType(
		field("id", schema.Long),
		field("label", schema.String).WithMetadata("CURRENT_DEFAULT", "'it''s'"),
		field("score", schema.Double).WithMetadata("CURRENT_DEFAULT", "1.5"),
		field("note", schema.String),
	)
	tr, err := BuildTransform(physical, logical, nil, schema.ColumnMappingNone)
	require.NoError(t, err)
	assert.Equal(t, "STRUCT(id, 'it''s', 1.5, NULL)", tr.String())
	note := tr.Fields[3].(*expr.Literal)
	assert.Equal(t, schema.String, note.Value.Type)

	required := schema.NewStructType(field("id", schema.Long), schema.NewField("must", schema.Long, false))
	_, err = BuildTransform(physical, required, nil, schema.ColumnMappingNone)
	assert.True(t, errors.Is(err, errors.ErrPlanning))

	bad := schema.NewStructType(field("id", schema.Long), field("n", schema.Long).WithMetadata("CURRENT_DEFAULT", "many"))
	_, err = BuildTransform(physical, bad, nil, schema.ColumnMappingNone)
	assert.True(t, errors.Is(err, errors.ErrPlanning))
}

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

package expr

import (
	"encoding/json"
	"testing"

	"github.com/apache/arrow/go/v12/arrow/decimal128"
	"github.com/lbhm/delta-kernel-go/storage/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpressionString(t *testing.T) {
	e := NewAnd(
		Gt(Col("a"), Lit(LongValue(5))),
		NewOr(Eq(Col("s.name"), Lit(StringValue("it's"))), NewIsNull(Col("b"))),
	)
	assert.Equal(t, "(a > 5 AND (s.name = 'it''s' OR b IS NULL))", e.String())
	assert.Equal(t, KindBinary, e.Kind())

	refs := References(NewAnd(e, Lt(Col("a"), Lit(LongValue(9)))))
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.String())
	}
	assert.Equal(t, []string{"a", "s.name", "b"}, names)

	c := NewCast(Col("x"), schema.Long)
	assert.Equal(t, "CAST(x AS long)", c.String())
	assert.Equal(t, CastOp, c.Op)
	v, err := Cast(IntValue(7), schema.Long)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Value)
	assert.Equal(t, "STRUCT(x, DATE '2024-01-01')", NewStruct(Col("x"), Lit(DateValue(19723))).String())
}

func TestOperators(t *testing.T) {
	assert.Equal(t, GreaterThan, LessThan.Commute())
	assert.Equal(t, Equal, Equal.Commute())
	assert.Equal(t, GreaterThanOrEqual, LessThan.Negate())
	assert.Equal(t, Or, And.Negate())
	assert.True(t, LessThanOrEqual.IsComparison())
	assert.True(t, Divide.IsArithmetic())
	assert.False(t, And.IsComparison())
}

func TestParseScalar(t *testing.T) {
	s, err := ParseScalar(schema.Date, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, int32(19723), s.Value)

	s, err = ParseScalar(schema.Integer, "")
	require.NoError(t, err)
	assert.True(t, s.IsNull())

	s, err = ParseScalar(schema.String, "")
	require.NoError(t, err)
	assert.Equal(t, "", s.Value)

	s, err = ParseScalar(schema.Timestamp, "2024-01-01 00:00:01.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1704067201500000), s.Value)

	s, err = ParseScalar(schema.Decimal(5, 2), "12.34")
	require.NoError(t, err)
	assert.Equal(t, decimal128.FromI64(1234), s.Value)
	assert.Equal(t, "12.34", s.String())

	_, err = ParseScalar(schema.Integer, "x")
	assert.Error(t, err)
}

func TestFromJSONValue(t *testing.T) {
	s, err := FromJSONValue(schema.Long, json.Number("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), s.Value)

	s, err = FromJSONValue(schema.Timestamp, "2024-01-01T00:00:00.123Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1704067200123000), s.Value)

	_, err = FromJSONValue(schema.Long, true)
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	c, ok := Compare(IntValue(3), LongValue(4))
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare(DoubleValue(2.5), LongValue(2))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare(DecimalValue(decimal128.FromI64(250), 5, 2), LongValue(2))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare(DateValue(1), TimestampValue(microsPerDay))
	assert.True(t, ok)
	assert.Equal(t, 0, c)

	_, ok = Compare(StringValue("a"), LongValue(1))
	assert.False(t, ok)
	_, ok = Compare(Null(schema.Long), LongValue(1))
	assert.False(t, ok)

	assert.True(t, Comparable(schema.Integer, schema.Double))
	assert.False(t, Comparable(schema.String, schema.Date))
	assert.True(t, Comparable(nil, schema.String))
}

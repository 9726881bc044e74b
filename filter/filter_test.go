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
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/storage/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsSchema = schema.NewStructType(
	schema.NewField("a", schema.Long, true),
	schema.NewField("s", schema.String, true),
	schema.NewField("ts", schema.Timestamp, true),
	schema.NewField("n", schema.NewStructType(schema.NewField("x", schema.Integer, true)), true),
)

const fileStats = `{"numRecords":10,
	"minValues":{"a":1,"s":"b","ts":"2024-01-01T00:00:00.000Z","n":{"x":5}},
	"maxValues":{"a":10,"s":"m","ts":"2024-01-01T00:00:01.000Z","n":{"x":7}},
	"nullCount":{"a":0,"s":3,"ts":0,"n":{"x":10}}}`

func mustStats(t *testing.T, raw string) *FileStats {
	s, err := ParseStats(raw, statsSchema)
	require.NoError(t, err)
	return s
}

func TestEvaluateComparisons(t *testing.T) {
	s := mustStats(t, fileStats)
	a := expr.Col("a")
	cases := []struct {
		pred expr.Expression
		want Result
	}{
		{expr.Gt(a, expr.Lit(expr.LongValue(10))), False},
		{expr.Gt(a, expr.Lit(expr.LongValue(9))), Unknown},
		{expr.Ge(a, expr.Lit(expr.LongValue(11))), False},
		{expr.Lt(a, expr.Lit(expr.LongValue(1))), False},
		{expr.Le(a, expr.Lit(expr.LongValue(0))), False},
		{expr.Eq(a, expr.Lit(expr.LongValue(11))), False},
		{expr.Eq(a, expr.Lit(expr.LongValue(5))), Unknown},
		{expr.Lt(expr.Lit(expr.LongValue(10)), a), False},
		{expr.NewNot(expr.Lt(a, expr.Lit(expr.LongValue(20)))), False},
		{expr.NewAnd(expr.Gt(a, expr.Lit(expr.LongValue(100))), expr.Eq(a, expr.Lit(expr.LongValue(5)))), False},
		{expr.NewOr(expr.Gt(a, expr.Lit(expr.LongValue(100))), expr.Eq(a, expr.Lit(expr.LongValue(5)))), Unknown},
		{expr.NewNot(expr.NewOr(expr.Lt(a, expr.Lit(expr.LongValue(20))), expr.Gt(a, expr.Lit(expr.LongValue(0))))), False},
		{expr.Eq(expr.ColPath("n", "x"), expr.Lit(expr.IntValue(4))), False},
		{expr.Gt(expr.Col("missing"), expr.Lit(expr.LongValue(4))), Unknown},
		{expr.Eq(a, expr.Lit(expr.StringValue("x"))), Unknown},
		{expr.Eq(a, expr.Lit(expr.Null(schema.Long))), Unknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Evaluate(c.pred, s), c.pred.String())
	}
}

func TestEvaluateStringsAreConservative(t *testing.T) {
	s := mustStats(t, `{"numRecords":2,"minValues":{"s":"aaa","a":3},"maxValues":{"s":"aaa","a":3},"nullCount":{"s":0,"a":0}}`)
	assert.Equal(t, Unknown, Evaluate(expr.Ne(expr.Col("s"), expr.Lit(expr.StringValue("aaa"))), s))
	assert.Equal(t, False, Evaluate(expr.Ne(expr.Col("a"), expr.Lit(expr.LongValue(3))), s))
	assert.Equal(t, False, Evaluate(expr.Gt(expr.Col("s"), expr.Lit(expr.StringValue("b"))), s))
}

func TestEvaluateNulls(t *testing.T) {
	s := mustStats(t, fileStats)
	assert.Equal(t, False, Evaluate(expr.NewIsNull(expr.Col("a")), s))
	assert.Equal(t, Unknown, Evaluate(expr.NewIsNull(expr.Col("s")), s))
	assert.Equal(t, True, Evaluate(expr.NewIsNull(expr.ColPath("n", "x")), s))
	assert.Equal(t, False, Evaluate(expr.NewIsNotNull(expr.ColPath("n", "x")), s))
	assert.Equal(t, True, Evaluate(expr.NewIsNotNull(expr.Col("a")), s))
}

func TestEvaluateTimestampSlack(t *testing.T) {
	s := mustStats(t, fileStats)
	// max is truncated to 00:00:01.000; a row at 00:00:01.000500 may exist
	v, err := expr.ParseScalar(schema.Timestamp, "2024-01-01 00:00:01.0005")
	require.NoError(t, err)
	assert.Equal(t, Unknown, Evaluate(expr.Ge(expr.Col("ts"), expr.Lit(v)), s))
	v, err = expr.ParseScalar(schema.Timestamp, "2024-01-01 00:00:01.001")
	require.NoError(t, err)
	assert.Equal(t, False, Evaluate(expr.Ge(expr.Col("ts"), expr.Lit(v)), s))
}

func TestEvaluateMissingStats(t *testing.T) {
	s := mustStats(t, "")
	assert.Equal(t, Unknown, Evaluate(expr.Gt(expr.Col("a"), expr.Lit(expr.LongValue(100))), s))
	assert.Equal(t, Unknown, Evaluate(expr.NewIsNull(expr.Col("a")), s))
	assert.False(t, CanSkip(nil, s))

	_, err := ParseStats("{", statsSchema)
	assert.Error(t, err)
}

func TestEvaluatePartition(t *testing.T) {
	d, err := expr.ParseScalar(schema.Date, "2024-01-01")
	require.NoError(t, err)
	values := map[string]expr.Scalar{"dt": d, "region": expr.Null(schema.String)}

	later, _ := expr.ParseScalar(schema.Date, "2024-02-01")
	assert.Equal(t, True, EvaluatePartition(expr.Eq(expr.Col("dt"), expr.Lit(d)), values))
	assert.Equal(t, False, EvaluatePartition(expr.Ge(expr.Col("dt"), expr.Lit(later)), values))
	assert.Equal(t, True, EvaluatePartition(expr.Ne(expr.Col("dt"), expr.Lit(later)), values))
	assert.Equal(t, True, EvaluatePartition(expr.NewIsNull(expr.Col("region")), values))
	assert.Equal(t, Unknown, EvaluatePartition(expr.Eq(expr.Col("region"), expr.Lit(expr.StringValue("eu"))), values))
	assert.Equal(t, Unknown, EvaluatePartition(expr.Gt(expr.Col("a"), expr.Lit(expr.LongValue(1))), values))
	assert.Equal(t, False, EvaluatePartition(expr.NewAnd(
		expr.Gt(expr.Col("a"), expr.Lit(expr.LongValue(1))),
		expr.NewNot(expr.Eq(expr.Col("dt"), expr.Lit(d)))), values))
}

func TestApply(t *testing.T) {
	sc := arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Int64}}, nil)
	rec, _, err := array.RecordFromJSON(memory.DefaultAllocator, sc, strings.NewReader(`[{"v":0},{"v":1},{"v":2},{"v":3},{"v":4},{"v":5}]`))
	require.NoError(t, err)
	defer rec.Release()

	bs := FromSelectionVector([]bool{true, false, true, true, false, true}, 6)
	mb := array.NewBooleanBuilder(memory.DefaultAllocator)
	mb.AppendValues([]bool{true, true, true, false, true, true}, nil)
	mask := mb.NewBooleanArray()
	defer mask.Release()
	Intersect(bs, mask)

	out, err := Apply(rec, bs)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, int64(3), out.NumRows())
	assert.Equal(t, []int64{0, 2, 5}, out.Column(0).(*array.Int64).Int64Values())

	all, err := Apply(rec, FromSelectionVector(nil, 6))
	require.NoError(t, err)
	defer all.Release()
	assert.Equal(t, int64(6), all.NumRows())

	none, err := Apply(rec, FromSelectionVector(make([]bool, 6), 6))
	require.NoError(t, err)
	defer none.Release()
	assert.Equal(t, int64(0), none.NumRows())
}

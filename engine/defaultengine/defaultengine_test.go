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
	"context"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/file/deletionvector"
	"github.com/lbhm/delta-kernel-go/internal/testtable"
	"github.com/lbhm/delta-kernel-go/storage/actions"
	"github.com/lbhm/delta-kernel-go/storage/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, it actions.Iterator) []actions.Action {
	defer it.Close()
	var out []actions.Action
	for it.Next() {
		out = append(out, it.Action())
	}
	require.NoError(t, it.Err())
	return out
}

func TestStorage(t *testing.T) {
	tt := testtable.New(t, "/t")
	tt.Commit(0, testtable.Protocol(1, 2))
	e := New(tt.Fs)
	ctx := context.Background()

	entries, err := e.Storage().List(ctx, utils.GetLogDir("/t"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, utils.GetCommitFilePath("/t", 0), entries[0].Path)

	b, err := e.Storage().ReadRange(ctx, entries[0].Path, 2, 8)
	require.NoError(t, err)
	assert.Equal(t, `protocol`, string(b))

	_, err = e.Storage().ReadFile(ctx, "/t/missing")
	assert.True(t, errors.Is(err, errors.ErrStorage))
	assert.True(t, errors.Is(err, errors.ErrFileNotFound))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Storage().ReadFile(cancelled, entries[0].Path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCheckpoint(t *testing.T) {
	tt := testtable.New(t, "/t")
	off := int32(1)
	dv := &deletionvector.Descriptor{StorageType: "p", PathOrInlineDv: "/t/dv.bin", Offset: &off, SizeInBytes: 30, Cardinality: 2}
	tt.Checkpoint(3,
		testtable.Protocol(3, 7, "deletionVectors"),
		testtable.Metadata("m1", testtable.SimpleSchema, []string{"dt"}, map[string]string{"k": "v"}),
		testtable.Add("dt=1/a.parquet", map[string]string{"dt": "1"}, `{"numRecords":2}`),
		testtable.AddWithDv("b.parquet", dv, ""),
		testtable.Remove("c.parquet"),
		testtable.Txn("app", 9),
	)
	p := utils.GetCheckpointFilePath("/t", 3)
	content, err := tt.Fs.ReadFile(p)
	require.NoError(t, err)

	it, err := NewParser().ParseActions(p, content)
	require.NoError(t, err)
	got := collect(t, it)
	require.Len(t, got, 6)

	assert.Equal(t, []string{"deletionVectors"}, got[0].Protocol.ReaderFeatures)
	assert.Equal(t, actions.StringMap{"k": "v"}, got[1].Metadata.Configuration)
	assert.Equal(t, []string{"dt"}, got[1].Metadata.PartitionColumns)
	assert.Equal(t, actions.StringMap{"dt": "1"}, got[2].Add.PartitionValues)
	assert.Equal(t, `{"numRecords":2}`, got[2].Add.Stats)
	require.NotNil(t, got[3].Add.DeletionVector)
	assert.Equal(t, dv.UniqueID(), got[3].Add.DeletionVector.UniqueID())
	assert.Equal(t, int64(2), got[3].Add.DeletionVector.Cardinality)
	assert.Equal(t, actions.KindRemove, got[4].Kind)
	assert.Equal(t, int64(9), got[5].Txn.Version)
}

func TestParseCommitError(t *testing.T) {
	it, err := NewParser().ParseActions("00000000000000000004.json", []byte("{\"txn\":{\"appId\":\"a\",\"version\":1}}\n\n{\"add\":{\"size\":3}}\n"))
	require.NoError(t, err)
	for it.Next() {
	}
	var e *errors.Error
	require.True(t, errors.As(it.Err(), &e))
	assert.Equal(t, errors.KindParse, e.Kind)
	assert.Equal(t, 3, e.Line)
	assert.Equal(t, "00000000000000000004.json", e.File)

	_, err = NewParser().ParseActions("x.checkpoint.parquet", []byte("not parquet"))
	assert.True(t, errors.Is(err, errors.ErrParse))
}

func TestParsePredicate(t *testing.T) {
	cases := map[string]string{
		"a > 5":                           "a > 5",
		"a >= 5 and not b = 'x''y'":       "(a >= 5 AND NOT (b = 'x''y'))",
		"s.name IS NOT NULL OR x IS NULL": "(NOT (s.name IS NULL) OR x IS NULL)",
		"dt = DATE '2024-01-01'":          "dt = DATE '2024-01-01'",
		"`odd.name` <> -1.5":              "odd.name != -1.5",
		"(a + 1) * 2 < 10":                "a + 1 * 2 < 10",
		"CAST(a AS decimal(10, 2)) = 1":   "CAST(a AS decimal(10,2)) = 1",
		"flag = true AND ts < TIMESTAMP '2024-01-01 00:00:00'": "(flag = true AND ts < TIMESTAMP '2024-01-01 00:00:00')",
	}
	for in, want := range cases {
		e, err := ParsePredicate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, e.String(), in)
	}

	e, err := ParsePredicate("`odd.name` = 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"odd.name"}, e.(*expr.Binary).Left.(*expr.Column).Path)

	for _, bad := range []string{"a >", "(a = 1", "'open", "a = 1 b", "a ! 1", "CAST(a AS nope) = 1"} {
		_, err := ParsePredicate(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, errors.ErrPlanning), bad)
	}
}

func testBatch(t *testing.T) arrow.Record {
	sc := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	rec, _, err := array.RecordFromJSON(memory.DefaultAllocator, sc,
		strings.NewReader(`[{"a":1,"s":"x"},{"a":5,"s":null},{"a":null,"s":"z"},{"a":9,"s":"x"}]`))
	require.NoError(t, err)
	return rec
}

func boolValues(arr arrow.Array) []any {
	b := arr.(*array.Boolean)
	out := make([]any, b.Len())
	for i := range out {
		if b.IsValid(i) {
			out[i] = b.Value(i)
		}
	}
	return out
}

func TestEvaluatePredicate(t *testing.T) {
	rec := testBatch(t)
	defer rec.Release()
	ev := NewEvaluator(nil)

	pred, err := ev.ParsePredicate("a > 2 AND s = 'x'")
	require.NoError(t, err)
	out, err := ev.Evaluate(pred, rec)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, []any{false, nil, false, true}, boolValues(out))

	pred, err = ev.ParsePredicate("a > 2 OR s IS NULL")
	require.NoError(t, err)
	out2, err := ev.Evaluate(pred, rec)
	require.NoError(t, err)
	defer out2.Release()
	assert.Equal(t, []any{false, true, nil, true}, boolValues(out2))

	pred, err = ev.ParsePredicate("a * 2 + 1 = 11")
	require.NoError(t, err)
	out3, err := ev.Evaluate(pred, rec)
	require.NoError(t, err)
	defer out3.Release()
	assert.Equal(t, []any{false, true, nil, false}, boolValues(out3))

	_, err = ev.Evaluate(expr.Col("missing"), rec)
	assert.True(t, errors.Is(err, errors.ErrPlanning))
}

func TestEvaluateArithmetic(t *testing.T) {
	rec := testBatch(t)
	defer rec.Release()
	ev := NewEvaluator(nil)

	diff, err := ev.Evaluate(expr.NewBinary(expr.Minus, expr.Col("a"), expr.Lit(expr.LongValue(1))), rec)
	require.NoError(t, err)
	defer diff.Release()
	longs := diff.(*array.Int64)
	assert.Equal(t, []int64{0, 4}, []int64{longs.Value(0), longs.Value(1)})
	assert.True(t, longs.IsNull(2))

	quot, err := ev.Evaluate(expr.NewBinary(expr.Divide, expr.Col("a"), expr.Lit(expr.LongValue(0))), rec)
	require.NoError(t, err)
	defer quot.Release()
	assert.Equal(t, 4, quot.NullN())

	_, err = ev.Evaluate(expr.NewBinary(expr.Plus, expr.Col("s"), expr.Lit(expr.LongValue(1))), rec)
	assert.True(t, errors.Is(err, errors.ErrPlanning))
}

func TestEvaluateRecord(t *testing.T) {
	rec := testBatch(t)
	defer rec.Release()
	ev := NewEvaluator(nil)

	d, err := expr.ParseScalar(schema.Date, "2024-01-01")
	require.NoError(t, err)
	transform := expr.NewStruct(
		expr.NewCast(expr.Col("a"), schema.Long),
		expr.Col("s"),
		expr.Lit(d),
		expr.Lit(expr.Null(schema.Double)),
	)
	out := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "dt", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "extra", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	res, err := ev.EvaluateRecord(transform, rec, out)
	require.NoError(t, err)
	defer res.Release()
	assert.Equal(t, int64(4), res.NumRows())
	assert.Equal(t, int64(9), res.Column(0).(*array.Int64).Value(3))
	assert.True(t, res.Column(0).IsNull(2))
	assert.Equal(t, arrow.Date32(19723), res.Column(2).(*array.Date32).Value(0))
	assert.Equal(t, 4, res.Column(3).NullN())

	st, err := ev.Evaluate(transform, rec)
	require.NoError(t, err)
	defer st.Release()
	assert.Equal(t, 4, st.(*array.Struct).NumField())
}

func TestEventSink(t *testing.T) {
	var events []log.Event
	e := New(testtable.New(t, "/t").Fs, WithEventSink(log.EventSinkFunc(func(ev log.Event) {
		events = append(events, ev)
	})))
	log.Warn("sink attached", log.String("k", "v"))
	require.NoError(t, e.Close())
	log.Warn("sink detached")
	require.Len(t, events, 1)
	assert.Equal(t, log.EventWarn, events[0].Level)
	assert.Equal(t, "sink attached k=v", events[0].Message)
}

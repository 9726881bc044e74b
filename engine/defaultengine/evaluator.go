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
	"fmt"
	"strconv"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/decimal128"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/engine"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

var _ engine.ExpressionHandler = (*Evaluator)(nil)

// Evaluator computes expressions row by row over arrow record batches.
type Evaluator struct {
	mem memory.Allocator
}

func NewEvaluator(mem memory.Allocator) *Evaluator {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Evaluator{mem: mem}
}

func (ev *Evaluator) ParsePredicate(text string) (expr.Expression, error) {
	return ParsePredicate(text)
}

// Evaluate returns an array of batch.NumRows() values owned by the caller.
func (ev *Evaluator) Evaluate(e expr.Expression, batch arrow.Record) (arrow.Array, error) {
	return ev.eval(e, batch)
}

// EvaluateRecord evaluates a Struct expression into a record with the given output schema,
// whose fields pair up with the struct's children.
func (ev *Evaluator) EvaluateRecord(e *expr.Struct, batch arrow.Record, out *arrow.Schema) (arrow.Record, error) {
	if len(e.Fields) != len(out.Fields()) {
		return nil, errors.NewInternalError("struct has %d fields, output schema %d", len(e.Fields), len(out.Fields()))
	}
	cols := make([]arrow.Array, 0, len(e.Fields))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for i, f := range e.Fields {
		c, err := ev.eval(f, batch)
		if err != nil {
			return nil, err
		}
		want := out.Field(i).Type
		if !arrow.TypeEqual(c.DataType(), want) {
			conv, err := ev.convert(c, want)
			c.Release()
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", out.Field(i).Name, err)
			}
			c = conv
		}
		cols = append(cols, c)
	}
	return array.NewRecord(out, cols, batch.NumRows()), nil
}

func (ev *Evaluator) eval(e expr.Expression, batch arrow.Record) (arrow.Array, error) {
	n := int(batch.NumRows())
	switch x := e.(type) {
	case *expr.Column:
		return columnArray(batch, x.Path)
	case *expr.Literal:
		return ev.literalArray(x.Value, n)
	case *expr.Struct:
		return ev.structArray(x, batch)
	case *expr.Unary:
		child, err := ev.eval(x.Child, batch)
		if err != nil {
			return nil, err
		}
		defer child.Release()
		switch x.Op {
		case expr.Not:
			return ev.mapBool(child, func(v bool) bool { return !v })
		case expr.IsNull:
			b := array.NewBooleanBuilder(ev.mem)
			defer b.Release()
			for i := 0; i < child.Len(); i++ {
				b.Append(child.IsNull(i))
			}
			return b.NewArray(), nil
		default:
			pt, ok := x.Type.(*schema.PrimitiveType)
			if !ok {
				return nil, errors.NewPlanningError("cannot cast to %s", x.Type)
			}
			return ev.castArray(child, pt)
		}
	case *expr.Binary:
		l, err := ev.eval(x.Left, batch)
		if err != nil {
			return nil, err
		}
		defer l.Release()
		r, err := ev.eval(x.Right, batch)
		if err != nil {
			return nil, err
		}
		defer r.Release()
		switch {
		case x.Op.IsLogical():
			return ev.logical(x.Op, l, r)
		case x.Op.IsComparison():
			return ev.compare(x.Op, l, r)
		default:
			return ev.arithmetic(x.Op, l, r)
		}
	}
	return nil, errors.NewInternalError("unsupported expression %T", e)
}

func columnArray(batch arrow.Record, path []string) (arrow.Array, error) {
	idx := batch.Schema().FieldIndices(path[0])
	if len(idx) == 0 {
		return nil, errors.NewPlanningError("column %q not found in batch", path[0])
	}
	arr := batch.Column(idx[0])
	for _, name := range path[1:] {
		st, ok := arr.(*array.Struct)
		if !ok {
			return nil, errors.NewPlanningError("column %q is not a struct", name)
		}
		fi, ok := st.DataType().(*arrow.StructType).FieldIdx(name)
		if !ok {
			return nil, errors.NewPlanningError("field %q not found", name)
		}
		arr = st.Field(fi)
	}
	arr.Retain()
	return arr, nil
}

func (ev *Evaluator) literalArray(s expr.Scalar, n int) (arrow.Array, error) {
	if s.Type == nil {
		return array.NewNull(n), nil
	}
	t, err := schema.ToArrowType(s.Type)
	if err != nil {
		return nil, err
	}
	vals := make([]expr.Scalar, n)
	for i := range vals {
		vals[i] = s
	}
	return ev.build(t, vals)
}

func (ev *Evaluator) structArray(x *expr.Struct, batch arrow.Record) (arrow.Array, error) {
	cols := make([]arrow.Array, 0, len(x.Fields))
	names := make([]string, 0, len(x.Fields))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for i, f := range x.Fields {
		c, err := ev.eval(f, batch)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if col, ok := f.(*expr.Column); ok {
			names = append(names, col.Name())
		} else {
			names = append(names, "c"+strconv.Itoa(i))
		}
	}
	return array.NewStructArray(cols, names)
}

func (ev *Evaluator) mapBool(arr arrow.Array, fn func(bool) bool) (arrow.Array, error) {
	b := array.NewBooleanBuilder(ev.mem)
	defer b.Release()
	for i := 0; i < arr.Len(); i++ {
		s, err := scalarAt(arr, i)
		if err != nil {
			return nil, err
		}
		v, ok := s.Value.(bool)
		if !ok {
			b.AppendNull()
			continue
		}
		b.Append(fn(v))
	}
	return b.NewArray(), nil
}

func (ev *Evaluator) logical(op expr.BinaryOp, l, r arrow.Array) (arrow.Array, error) {
	b := array.NewBooleanBuilder(ev.mem)
	defer b.Release()
	for i := 0; i < l.Len(); i++ {
		ls, err := scalarAt(l, i)
		if err != nil {
			return nil, err
		}
		rs, err := scalarAt(r, i)
		if err != nil {
			return nil, err
		}
		lv, lok := ls.Value.(bool)
		rv, rok := rs.Value.(bool)
		switch {
		case op == expr.And && ((lok && !lv) || (rok && !rv)):
			b.Append(false)
		case op == expr.Or && ((lok && lv) || (rok && rv)):
			b.Append(true)
		case lok && rok:
			b.Append(op == expr.And)
		default:
			b.AppendNull()
		}
	}
	return b.NewArray(), nil
}

func (ev *Evaluator) compare(op expr.BinaryOp, l, r arrow.Array) (arrow.Array, error) {
	b := array.NewBooleanBuilder(ev.mem)
	defer b.Release()
	for i := 0; i < l.Len(); i++ {
		ls, err := scalarAt(l, i)
		if err != nil {
			return nil, err
		}
		rs, err := scalarAt(r, i)
		if err != nil {
			return nil, err
		}
		c, ok := expr.Compare(ls, rs)
		if !ok {
			b.AppendNull()
			continue
		}
		switch op {
		case expr.Equal:
			b.Append(c == 0)
		case expr.NotEqual:
			b.Append(c != 0)
		case expr.LessThan:
			b.Append(c < 0)
		case expr.LessThanOrEqual:
			b.Append(c <= 0)
		case expr.GreaterThan:
			b.Append(c > 0)
		default:
			b.Append(c >= 0)
		}
	}
	return b.NewArray(), nil
}

func (ev *Evaluator) arithmetic(op expr.BinaryOp, l, r arrow.Array) (arrow.Array, error) {
	integral := isIntegral(l.DataType()) && isIntegral(r.DataType())
	vals := make([]expr.Scalar, l.Len())
	for i := range vals {
		ls, err := scalarAt(l, i)
		if err != nil {
			return nil, err
		}
		rs, err := scalarAt(r, i)
		if err != nil {
			return nil, err
		}
		if ls.IsNull() || rs.IsNull() {
			vals[i] = expr.Null(schema.Long)
			continue
		}
		if integral {
			x, err := expr.Cast(ls, schema.Long)
			if err != nil {
				return nil, errors.NewPlanningError("arithmetic on %s: %v", ls.Type, err)
			}
			y, err := expr.Cast(rs, schema.Long)
			if err != nil {
				return nil, errors.NewPlanningError("arithmetic on %s: %v", rs.Type, err)
			}
			a, c := x.Value.(int64), y.Value.(int64)
			switch op {
			case expr.Plus:
				vals[i] = expr.LongValue(a + c)
			case expr.Minus:
				vals[i] = expr.LongValue(a - c)
			case expr.Multiply:
				vals[i] = expr.LongValue(a * c)
			default:
				if c == 0 {
					vals[i] = expr.Null(schema.Long)
				} else {
					vals[i] = expr.LongValue(a / c)
				}
			}
			continue
		}
		x, err := expr.Cast(ls, schema.Double)
		if err != nil {
			return nil, errors.NewPlanningError("arithmetic on %s: %v", ls.Type, err)
		}
		y, err := expr.Cast(rs, schema.Double)
		if err != nil {
			return nil, errors.NewPlanningError("arithmetic on %s: %v", rs.Type, err)
		}
		a, c := x.Value.(float64), y.Value.(float64)
		switch op {
		case expr.Plus:
			vals[i] = expr.DoubleValue(a + c)
		case expr.Minus:
			vals[i] = expr.DoubleValue(a - c)
		case expr.Multiply:
			vals[i] = expr.DoubleValue(a * c)
		default:
			vals[i] = expr.DoubleValue(a / c)
		}
	}
	if integral {
		return ev.build(arrow.PrimitiveTypes.Int64, vals)
	}
	return ev.build(arrow.PrimitiveTypes.Float64, vals)
}

func (ev *Evaluator) castArray(arr arrow.Array, t *schema.PrimitiveType) (arrow.Array, error) {
	at, err := schema.ToArrowType(t)
	if err != nil {
		return nil, err
	}
	vals := make([]expr.Scalar, arr.Len())
	for i := range vals {
		s, err := scalarAt(arr, i)
		if err != nil {
			return nil, err
		}
		if vals[i], err = expr.Cast(s, t); err != nil {
			return nil, errors.NewPlanningError("%v", err)
		}
	}
	return ev.build(at, vals)
}

// convert casts arr to an arrow type, used when an expression's natural type differs from
// the declared output column.
func (ev *Evaluator) convert(arr arrow.Array, want arrow.DataType) (arrow.Array, error) {
	if arr.DataType().ID() == arrow.NULL {
		b := array.NewBuilder(ev.mem, want)
		defer b.Release()
		for i := 0; i < arr.Len(); i++ {
			b.AppendNull()
		}
		return b.NewArray(), nil
	}
	if st, ok := arr.(*array.Struct); ok {
		if wt, ok := want.(*arrow.StructType); ok && len(wt.Fields()) == st.NumField() {
			return ev.convertStruct(st, wt)
		}
	}
	dt, err := schema.FromArrowType(want)
	if err != nil {
		return nil, err
	}
	pt, ok := dt.(*schema.PrimitiveType)
	if !ok {
		return nil, errors.NewInternalError("cannot convert %s to %s", arr.DataType(), want)
	}
	return ev.castArray(arr, pt)
}

// convertStruct relabels a struct array with want's field names, converting children whose
// types differ. The validity bitmap is shared with arr.
func (ev *Evaluator) convertStruct(arr *array.Struct, want *arrow.StructType) (arrow.Array, error) {
	data := arr.Data()
	children := make([]arrow.ArrayData, 0, len(data.Children()))
	owned := make([]arrow.Array, 0, len(data.Children()))
	defer func() {
		for _, a := range owned {
			a.Release()
		}
	}()
	for i, cd := range data.Children() {
		child := array.MakeFromData(cd)
		owned = append(owned, child)
		if ft := want.Field(i).Type; !arrow.TypeEqual(child.DataType(), ft) {
			conv, err := ev.convert(child, ft)
			if err != nil {
				return nil, err
			}
			owned = append(owned, conv)
			child = conv
		}
		children = append(children, child.Data())
	}
	out := array.NewData(want, data.Len(), data.Buffers()[:1], children, data.NullN(), data.Offset())
	defer out.Release()
	return array.MakeFromData(out), nil
}

func isIntegral(t arrow.DataType) bool {
	switch t.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		return true
	}
	return false
}

// scalarAt reads row i of arr as a typed scalar.
func scalarAt(arr arrow.Array, i int) (expr.Scalar, error) {
	if arr.DataType().ID() == arrow.NULL {
		return expr.Scalar{}, nil
	}
	dt, err := schema.FromArrowType(arr.DataType())
	if err != nil {
		return expr.Scalar{}, err
	}
	pt, ok := dt.(*schema.PrimitiveType)
	if !ok {
		return expr.Scalar{}, errors.NewPlanningError("cannot evaluate over %s values", arr.DataType())
	}
	if arr.IsNull(i) {
		return expr.Null(pt), nil
	}
	var v any
	switch a := arr.(type) {
	case *array.Boolean:
		v = a.Value(i)
	case *array.Int8:
		v = a.Value(i)
	case *array.Int16:
		v = a.Value(i)
	case *array.Int32:
		v = a.Value(i)
	case *array.Int64:
		v = a.Value(i)
	case *array.Float32:
		v = a.Value(i)
	case *array.Float64:
		v = a.Value(i)
	case *array.String:
		v = a.Value(i)
	case *array.Binary:
		v = append([]byte(nil), a.Value(i)...)
	case *array.Date32:
		v = int32(a.Value(i))
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		v = int64(a.Value(i)) * int64(unit.Multiplier()/arrow.Microsecond.Multiplier())
		if unit == arrow.Nanosecond {
			v = int64(a.Value(i)) / 1000
		}
	case *array.Decimal128:
		v = a.Value(i)
	default:
		return expr.Scalar{}, errors.NewPlanningError("cannot evaluate over %s values", arr.DataType())
	}
	return expr.Scalar{Type: pt, Value: v}, nil
}

// build materializes scalars already converted to the Go representation t expects.
func (ev *Evaluator) build(t arrow.DataType, vals []expr.Scalar) (arrow.Array, error) {
	b := array.NewBuilder(ev.mem, t)
	defer b.Release()
	for _, s := range vals {
		if s.IsNull() {
			b.AppendNull()
			continue
		}
		var ok bool
		switch bb := b.(type) {
		case *array.BooleanBuilder:
			var v bool
			if v, ok = s.Value.(bool); ok {
				bb.Append(v)
			}
		case *array.Int8Builder:
			var v int8
			if v, ok = s.Value.(int8); ok {
				bb.Append(v)
			}
		case *array.Int16Builder:
			var v int16
			if v, ok = s.Value.(int16); ok {
				bb.Append(v)
			}
		case *array.Int32Builder:
			var v int32
			if v, ok = s.Value.(int32); ok {
				bb.Append(v)
			}
		case *array.Int64Builder:
			var v int64
			if v, ok = s.Value.(int64); ok {
				bb.Append(v)
			}
		case *array.Float32Builder:
			var v float32
			if v, ok = s.Value.(float32); ok {
				bb.Append(v)
			}
		case *array.Float64Builder:
			var v float64
			if v, ok = s.Value.(float64); ok {
				bb.Append(v)
			}
		case *array.StringBuilder:
			var v string
			if v, ok = s.Value.(string); ok {
				bb.Append(v)
			}
		case *array.BinaryBuilder:
			var v []byte
			if v, ok = s.Value.([]byte); ok {
				bb.Append(v)
			}
		case *array.Date32Builder:
			var v int32
			if v, ok = s.Value.(int32); ok {
				bb.Append(arrow.Date32(v))
			}
		case *array.TimestampBuilder:
			var v int64
			if v, ok = s.Value.(int64); ok {
				bb.Append(arrow.Timestamp(v))
			}
		case *array.Decimal128Builder:
			var v decimal128.Num
			if v, ok = s.Value.(decimal128.Num); ok {
				bb.Append(v)
			}
		default:
			return nil, errors.NewPlanningError("cannot build %s values", t)
		}
		if !ok {
			return nil, errors.NewInternalError("value %v does not fit %s", s.Value, t)
		}
	}
	return b.NewArray(), nil
}

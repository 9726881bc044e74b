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
	"strings"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

// BuildTransform returns the expression turning a batch read with the physical schema into
// the logical schema. partitionValues is keyed by logical column name and holds an entry for
// every partition column of the table. A nil result means the batch already is logical.
func BuildTransform(physical, logical *schema.StructType, partitionValues map[string]expr.Scalar,
	mode schema.ColumnMappingMode,
) (*expr.Struct, error) {
	identity := len(physical.Fields) == len(logical.Fields)
	fields := make([]expr.Expression, 0, len(logical.Fields))
	for i, lf := range logical.Fields {
		if v, ok := partitionValues[lf.Name]; ok {
			fields = append(fields, expr.Lit(v))
			identity = false
			continue
		}
		idx := physical.Index(lf.PhysicalName(mode))
		if idx < 0 {
			e, err := missingColumn(lf)
			if err != nil {
				return nil, err
			}
			fields = append(fields, e)
			identity = false
			continue
		}
		pf := physical.Fields[idx]
		e, same, err := columnExpr(pf, lf, mode)
		if err != nil {
			return nil, err
		}
		if idx != i || pf.Name != lf.Name || !same {
			identity = false
		}
		fields = append(fields, e)
	}
	if identity {
		return nil, nil
	}
	return expr.NewStruct(fields...), nil
}

// columnExpr reads pf as lf. same reports that no conversion is needed at all.
func columnExpr(pf, lf schema.StructField, mode schema.ColumnMappingMode) (e expr.Expression, same bool, err error) {
	col := expr.ColPath(pf.Name)
	want := schema.PhysicalField(lf, mode).Type
	if typesMatch(pf.Type, want) {
		// nested structs are relabeled to logical names by the evaluator
		return col, typesMatch(pf.Type, lf.Type) && !renamed(lf.Type, mode), nil
	}
	from, ok1 := pf.Type.(*schema.PrimitiveType)
	to, ok2 := lf.Type.(*schema.PrimitiveType)
	if ok1 && ok2 && schema.CanWiden(from, to) {
		return expr.NewCast(col, to), false, nil
	}
	return nil, false, errors.NewPlanningError("column %s: cannot read %s as %s", lf.Name, pf.Type, lf.Type)
}

func missingColumn(f schema.StructField) (expr.Expression, error) {
	pt, primitive := f.Type.(*schema.PrimitiveType)
	if def, ok := f.CurrentDefault(); ok {
		if !primitive {
			return nil, errors.NewPlanningError("column %s: default value for %s is not supported", f.Name, f.Type)
		}
		v, err := parseDefault(def, pt)
		if err != nil {
			return nil, errors.Wrap(errors.KindPlanning, err, "column %s: invalid default %q", f.Name, def)
		}
		return expr.Lit(v), nil
	}
	if !f.Nullable {
		return nil, errors.NewPlanningError("column %s is missing from the data file and is not nullable", f.Name)
	}
	if primitive {
		return expr.Lit(expr.Null(pt)), nil
	}
	return expr.Lit(expr.Scalar{}), nil
}

// parseDefault reads the SQL text of a CURRENT_DEFAULT: NULL, a quoted string or a bare value.
func parseDefault(text string, t *schema.PrimitiveType) (expr.Scalar, error) {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "null") {
		return expr.Null(t), nil
	}
	if len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\'' {
		text = strings.ReplaceAll(text[1:len(text)-1], "''", "'")
		return expr.Cast(expr.StringValue(text), t)
	}
	return expr.ParseScalar(t, text)
}

// typesMatch compares types ignoring field names and nullability.
func typesMatch(a, b schema.DataType) bool {
	switch at := a.(type) {
	case *schema.PrimitiveType:
		bt, ok := b.(*schema.PrimitiveType)
		return ok && *at == *bt
	case *schema.ArrayType:
		bt, ok := b.(*schema.ArrayType)
		return ok && typesMatch(at.ElementType, bt.ElementType)
	case *schema.MapType:
		bt, ok := b.(*schema.MapType)
		return ok && typesMatch(at.KeyType, bt.KeyType) && typesMatch(at.ValueType, bt.ValueType)
	case *schema.StructType:
		bt, ok := b.(*schema.StructType)
		if !ok || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if !typesMatch(at.Fields[i].Type, bt.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

// renamed reports whether a nested field of dt has a physical name of its own.
func renamed(dt schema.DataType, mode schema.ColumnMappingMode) bool {
	st, ok := dt.(*schema.StructType)
	if !ok {
		return false
	}
	for _, f := range st.Fields {
		if f.PhysicalName(mode) != f.Name || renamed(f.Type, mode) {
			return true
		}
	}
	return false
}

// PartitionValues types the raw partition values of an add against the logical schema. The
// result is keyed by logical name and has an entry, possibly NULL, for every partition column.
func PartitionValues(raw map[string]string, logical *schema.StructType, partitionColumns []string,
	mode schema.ColumnMappingMode,
) (map[string]expr.Scalar, error) {
	out := make(map[string]expr.Scalar, len(partitionColumns))
	for _, name := range partitionColumns {
		f, ok := logical.Field(name)
		if !ok {
			return nil, errors.NewStateError("partition column %q is not in the schema", name)
		}
		pt, ok := f.Type.(*schema.PrimitiveType)
		if !ok {
			return nil, errors.NewStateError("partition column %q has non-primitive type %s", name, f.Type)
		}
		text, ok := raw[f.PhysicalName(mode)]
		if !ok {
			text, ok = raw[name]
		}
		if !ok {
			out[name] = expr.Null(pt)
			continue
		}
		v, err := expr.ParseScalar(pt, text)
		if err != nil {
			return nil, errors.Wrap(errors.KindParse, err, "partition value %q of column %s", text, name)
		}
		out[name] = v
	}
	return out, nil
}

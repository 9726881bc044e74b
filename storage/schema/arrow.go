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

package schema

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/lbhm/delta-kernel-go/common/constant"
)

// ParquetFieldIDKey is the arrow field metadata key pqarrow uses for parquet field ids.
const ParquetFieldIDKey = "PARQUET:field_id"

func ToArrowSchema(st *StructType) (*arrow.Schema, error) {
	fields, err := toArrowFields(st)
	if err != nil {
		return nil, err
	}
	return arrow.NewSchema(fields, nil), nil
}

func toArrowFields(st *StructType) ([]arrow.Field, error) {
	fields := make([]arrow.Field, 0, len(st.Fields))
	for _, f := range st.Fields {
		af, err := ToArrowField(f)
		if err != nil {
			return nil, err
		}
		fields = append(fields, af)
	}
	return fields, nil
}

// ToArrowField converts f, carrying string-valued and column mapping metadata along.
func ToArrowField(f StructField) (arrow.Field, error) {
	dt, err := ToArrowType(f.Type)
	if err != nil {
		return arrow.Field{}, fmt.Errorf("field %q: %w", f.Name, err)
	}
	keys := make([]string, 0, len(f.Metadata))
	for k := range f.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var mdKeys, mdValues []string
	for _, k := range keys {
		switch v := f.Metadata[k].(type) {
		case string:
			mdKeys = append(mdKeys, k)
			mdValues = append(mdValues, v)
		default:
			if k == constant.ColumnMappingIDKey {
				if id, ok := metadataInt(v); ok {
					mdKeys = append(mdKeys, k, ParquetFieldIDKey)
					mdValues = append(mdValues, strconv.FormatInt(id, 10), strconv.FormatInt(id, 10))
				}
			}
		}
	}
	af := arrow.Field{Name: f.Name, Type: dt, Nullable: f.Nullable}
	if len(mdKeys) > 0 {
		af.Metadata = arrow.NewMetadata(mdKeys, mdValues)
	}
	return af, nil
}

func ToArrowType(dt DataType) (arrow.DataType, error) {
	switch t := dt.(type) {
	case *PrimitiveType:
		switch t.Name {
		case "string":
			return arrow.BinaryTypes.String, nil
		case "long":
			return arrow.PrimitiveTypes.Int64, nil
		case "integer":
			return arrow.PrimitiveTypes.Int32, nil
		case "short":
			return arrow.PrimitiveTypes.Int16, nil
		case "byte":
			return arrow.PrimitiveTypes.Int8, nil
		case "float":
			return arrow.PrimitiveTypes.Float32, nil
		case "double":
			return arrow.PrimitiveTypes.Float64, nil
		case "boolean":
			return arrow.FixedWidthTypes.Boolean, nil
		case "binary":
			return arrow.BinaryTypes.Binary, nil
		case "date":
			return arrow.FixedWidthTypes.Date32, nil
		case "timestamp":
			return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
		case "timestamp_ntz":
			return &arrow.TimestampType{Unit: arrow.Microsecond}, nil
		case "decimal":
			return &arrow.Decimal128Type{Precision: int32(t.Precision), Scale: int32(t.Scale)}, nil
		}
		return nil, fmt.Errorf("unsupported type %q", t.Name)
	case *StructType:
		fields, err := toArrowFields(t)
		if err != nil {
			return nil, err
		}
		return arrow.StructOf(fields...), nil
	case *ArrayType:
		elem, err := ToArrowType(t.ElementType)
		if err != nil {
			return nil, err
		}
		return arrow.ListOfField(arrow.Field{Name: "element", Type: elem, Nullable: t.ContainsNull}), nil
	case *MapType:
		key, err := ToArrowType(t.KeyType)
		if err != nil {
			return nil, err
		}
		value, err := ToArrowType(t.ValueType)
		if err != nil {
			return nil, err
		}
		return arrow.MapOf(key, value), nil
	}
	return nil, fmt.Errorf("unsupported type %v", dt)
}

// FromArrowSchema converts a physical file schema. Parquet field ids become column mapping ids.
func FromArrowSchema(as *arrow.Schema) (*StructType, error) {
	return fromArrowFields(as.Fields())
}

func fromArrowFields(afs []arrow.Field) (*StructType, error) {
	fields := make([]StructField, 0, len(afs))
	for _, af := range afs {
		dt, err := FromArrowType(af.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", af.Name, err)
		}
		f := NewField(af.Name, dt, af.Nullable)
		if idx := af.Metadata.FindKey(ParquetFieldIDKey); idx >= 0 {
			if id, err := strconv.ParseInt(af.Metadata.Values()[idx], 10, 64); err == nil {
				f.Metadata[constant.ColumnMappingIDKey] = id
			}
		}
		fields = append(fields, f)
	}
	return NewStructType(fields...), nil
}

func FromArrowType(dt arrow.DataType) (DataType, error) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return String, nil
	case arrow.INT64:
		return Long, nil
	case arrow.INT32:
		return Integer, nil
	case arrow.INT16:
		return Short, nil
	case arrow.INT8:
		return Byte, nil
	case arrow.FLOAT32:
		return Float, nil
	case arrow.FLOAT64:
		return Double, nil
	case arrow.BOOL:
		return Boolean, nil
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return Binary, nil
	case arrow.DATE32:
		return Date, nil
	case arrow.TIMESTAMP:
		if dt.(*arrow.TimestampType).TimeZone == "" {
			return TimestampNtz, nil
		}
		return Timestamp, nil
	case arrow.DECIMAL128:
		d := dt.(*arrow.Decimal128Type)
		return Decimal(int(d.Precision), int(d.Scale)), nil
	case arrow.STRUCT:
		return fromArrowFields(dt.(*arrow.StructType).Fields())
	case arrow.LIST:
		lt := dt.(*arrow.ListType)
		elem, err := FromArrowType(lt.Elem())
		if err != nil {
			return nil, err
		}
		return &ArrayType{ElementType: elem, ContainsNull: lt.ElemField().Nullable}, nil
	case arrow.MAP:
		mt := dt.(*arrow.MapType)
		key, err := FromArrowType(mt.KeyType())
		if err != nil {
			return nil, err
		}
		value, err := FromArrowType(mt.ItemType())
		if err != nil {
			return nil, err
		}
		return &MapType{KeyType: key, ValueType: value, ValueContainsNull: true}, nil
	}
	return nil, fmt.Errorf("unsupported arrow type %s", dt)
}

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
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lbhm/delta-kernel-go/common/constant"
)

// DataType is one of *PrimitiveType, *StructType, *ArrayType or *MapType.
type DataType interface {
	fmt.Stringer
	isDataType()
}

type PrimitiveType struct {
	Name      string
	Precision int
	Scale     int
}

func (*PrimitiveType) isDataType() {}

func (p *PrimitiveType) String() string {
	if p.Name == "decimal" {
		return fmt.Sprintf("decimal(%d,%d)", p.Precision, p.Scale)
	}
	return p.Name
}

func (p *PrimitiveType) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PrimitiveType) IsNumeric() bool {
	switch p.Name {
	case "byte", "short", "integer", "long", "float", "double", "decimal":
		return true
	}
	return false
}

// IsIntegral reports byte, short, integer and long.
func (p *PrimitiveType) IsIntegral() bool {
	switch p.Name {
	case "byte", "short", "integer", "long":
		return true
	}
	return false
}

var (
	String       = &PrimitiveType{Name: "string"}
	Long         = &PrimitiveType{Name: "long"}
	Integer      = &PrimitiveType{Name: "integer"}
	Short        = &PrimitiveType{Name: "short"}
	Byte         = &PrimitiveType{Name: "byte"}
	Float        = &PrimitiveType{Name: "float"}
	Double       = &PrimitiveType{Name: "double"}
	Boolean      = &PrimitiveType{Name: "boolean"}
	Binary       = &PrimitiveType{Name: "binary"}
	Date         = &PrimitiveType{Name: "date"}
	Timestamp    = &PrimitiveType{Name: "timestamp"}
	TimestampNtz = &PrimitiveType{Name: "timestamp_ntz"}
)

var primitives = map[string]*PrimitiveType{
	"string":        String,
	"long":          Long,
	"integer":       Integer,
	"short":         Short,
	"byte":          Byte,
	"float":         Float,
	"double":        Double,
	"boolean":       Boolean,
	"binary":        Binary,
	"date":          Date,
	"timestamp":     Timestamp,
	"timestamp_ntz": TimestampNtz,
}

func Decimal(precision, scale int) *PrimitiveType {
	return &PrimitiveType{Name: "decimal", Precision: precision, Scale: scale}
}

type ArrayType struct {
	ElementType  DataType
	ContainsNull bool
}

func (*ArrayType) isDataType() {}

func (a *ArrayType) String() string {
	return fmt.Sprintf("array<%s>", a.ElementType)
}

func (a *ArrayType) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string   `json:"type"`
		ElementType  DataType `json:"elementType"`
		ContainsNull bool     `json:"containsNull"`
	}{"array", a.ElementType, a.ContainsNull})
}

type MapType struct {
	KeyType           DataType
	ValueType         DataType
	ValueContainsNull bool
}

func (*MapType) isDataType() {}

func (m *MapType) String() string {
	return fmt.Sprintf("map<%s,%s>", m.KeyType, m.ValueType)
}

func (m *MapType) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type              string   `json:"type"`
		KeyType           DataType `json:"keyType"`
		ValueType         DataType `json:"valueType"`
		ValueContainsNull bool     `json:"valueContainsNull"`
	}{"map", m.KeyType, m.ValueType, m.ValueContainsNull})
}

type StructField struct {
	Name     string
	Type     DataType
	Nullable bool
	Metadata map[string]any
}

func NewField(name string, dt DataType, nullable bool) StructField {
	return StructField{Name: name, Type: dt, Nullable: nullable, Metadata: map[string]any{}}
}

// WithMetadata returns a copy of f with key set to value.
func (f StructField) WithMetadata(key string, value any) StructField {
	md := make(map[string]any, len(f.Metadata)+1)
	for k, v := range f.Metadata {
		md[k] = v
	}
	md[key] = value
	f.Metadata = md
	return f
}

func (f StructField) MarshalJSON() ([]byte, error) {
	md := f.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return json.Marshal(struct {
		Name     string         `json:"name"`
		Type     DataType       `json:"type"`
		Nullable bool           `json:"nullable"`
		Metadata map[string]any `json:"metadata"`
	}{f.Name, f.Type, f.Nullable, md})
}

func (f *StructField) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name     string          `json:"name"`
		Type     json.RawMessage `json:"type"`
		Nullable bool            `json:"nullable"`
		Metadata map[string]any  `json:"metadata"`
	}
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return fmt.Errorf("field without a name")
	}
	dt, err := parseDataType(raw.Type)
	if err != nil {
		return fmt.Errorf("field %q: %w", raw.Name, err)
	}
	f.Name = raw.Name
	f.Type = dt
	f.Nullable = raw.Nullable
	f.Metadata = raw.Metadata
	if f.Metadata == nil {
		f.Metadata = map[string]any{}
	}
	return nil
}

// PhysicalName is the column name stored in data files under the given mapping mode.
func (f StructField) PhysicalName(mode ColumnMappingMode) string {
	if mode == ColumnMappingNone {
		return f.Name
	}
	if v, ok := f.Metadata[constant.ColumnMappingNameKey].(string); ok && v != "" {
		return v
	}
	return f.Name
}

// ColumnMappingID returns the field id assigned by column mapping, if any.
func (f StructField) ColumnMappingID() (int64, bool) {
	return metadataInt(f.Metadata[constant.ColumnMappingIDKey])
}

// CurrentDefault returns the declared default value expression text, if any.
func (f StructField) CurrentDefault() (string, bool) {
	v, ok := f.Metadata[constant.CurrentDefaultKey].(string)
	return v, ok
}

func metadataInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

type StructType struct {
	Fields []StructField
}

func (*StructType) isDataType() {}

func NewStructType(fields ...StructField) *StructType {
	return &StructType{Fields: fields}
}

func (s *StructType) String() string {
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		parts = append(parts, f.Name+":"+f.Type.String())
	}
	return "struct<" + strings.Join(parts, ",") + ">"
}

func (s *StructType) MarshalJSON() ([]byte, error) {
	fields := s.Fields
	if fields == nil {
		fields = []StructField{}
	}
	return json.Marshal(struct {
		Type   string        `json:"type"`
		Fields []StructField `json:"fields"`
	}{"struct", fields})
}

func (s *StructType) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type   string        `json:"type"`
		Fields []StructField `json:"fields"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Type != "struct" {
		return fmt.Errorf("expected struct type, got %q", raw.Type)
	}
	s.Fields = raw.Fields
	return nil
}

// Index returns the position of the field named name, or -1.
func (s *StructType) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s *StructType) Field(name string) (StructField, bool) {
	if i := s.Index(name); i >= 0 {
		return s.Fields[i], true
	}
	return StructField{}, false
}

// Resolve walks a nested column path.
func (s *StructType) Resolve(path []string) (StructField, bool) {
	cur := s
	for i, name := range path {
		f, ok := cur.Field(name)
		if !ok {
			return StructField{}, false
		}
		if i == len(path)-1 {
			return f, true
		}
		next, ok := f.Type.(*StructType)
		if !ok {
			return StructField{}, false
		}
		cur = next
	}
	return StructField{}, false
}

func (s *StructType) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

var decimalPattern = regexp.MustCompile(`^decimal\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)

// ParsePrimitive parses a primitive type name such as "long" or "decimal(10,2)".
func ParsePrimitive(name string) (*PrimitiveType, error) {
	if p, ok := primitives[name]; ok {
		return p, nil
	}
	if name == "decimal" {
		return Decimal(10, 0), nil
	}
	if m := decimalPattern.FindStringSubmatch(name); m != nil {
		precision, _ := strconv.Atoi(m[1])
		scale, _ := strconv.Atoi(m[2])
		if precision < 1 || precision > 38 || scale > precision {
			return nil, fmt.Errorf("invalid decimal type %q", name)
		}
		return Decimal(precision, scale), nil
	}
	return nil, fmt.Errorf("unsupported type %q", name)
}

func parseDataType(raw json.RawMessage) (DataType, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return ParsePrimitive(name)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "struct":
		st := &StructType{}
		if err := json.Unmarshal(raw, st); err != nil {
			return nil, err
		}
		return st, nil
	case "array":
		var a struct {
			ElementType  json.RawMessage `json:"elementType"`
			ContainsNull bool            `json:"containsNull"`
		}
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		elem, err := parseDataType(a.ElementType)
		if err != nil {
			return nil, err
		}
		return &ArrayType{ElementType: elem, ContainsNull: a.ContainsNull}, nil
	case "map":
		var m struct {
			KeyType           json.RawMessage `json:"keyType"`
			ValueType         json.RawMessage `json:"valueType"`
			ValueContainsNull bool            `json:"valueContainsNull"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		key, err := parseDataType(m.KeyType)
		if err != nil {
			return nil, err
		}
		value, err := parseDataType(m.ValueType)
		if err != nil {
			return nil, err
		}
		return &MapType{KeyType: key, ValueType: value, ValueContainsNull: m.ValueContainsNull}, nil
	default:
		return nil, fmt.Errorf("unsupported type %q", head.Type)
	}
}

// TypesEqual compares types structurally, ignoring field metadata.
func TypesEqual(a, b DataType) bool {
	switch at := a.(type) {
	case *PrimitiveType:
		bt, ok := b.(*PrimitiveType)
		return ok && *at == *bt
	case *ArrayType:
		bt, ok := b.(*ArrayType)
		return ok && at.ContainsNull == bt.ContainsNull && TypesEqual(at.ElementType, bt.ElementType)
	case *MapType:
		bt, ok := b.(*MapType)
		return ok && at.ValueContainsNull == bt.ValueContainsNull &&
			TypesEqual(at.KeyType, bt.KeyType) && TypesEqual(at.ValueType, bt.ValueType)
	case *StructType:
		bt, ok := b.(*StructType)
		if !ok || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if at.Fields[i].Name != bt.Fields[i].Name || at.Fields[i].Nullable != bt.Fields[i].Nullable ||
				!TypesEqual(at.Fields[i].Type, bt.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

// CanWiden reports whether values of type from can be read as type to without loss.
func CanWiden(from, to *PrimitiveType) bool {
	if *from == *to {
		return true
	}
	rank := map[string]int{"byte": 1, "short": 2, "integer": 3, "long": 4}
	if rank[from.Name] > 0 && rank[to.Name] > 0 {
		return rank[from.Name] < rank[to.Name]
	}
	switch {
	case from.Name == "float" && to.Name == "double":
		return true
	case from.IsIntegral() && to.Name == "double" && from.Name != "long":
		return true
	case from.Name == "date" && to.Name == "timestamp_ntz":
		return true
	case from.Name == "decimal" && to.Name == "decimal":
		return to.Scale >= from.Scale && to.Precision-to.Scale >= from.Precision-from.Scale
	case from.IsIntegral() && to.Name == "decimal":
		digits := map[string]int{"byte": 3, "short": 5, "integer": 10, "long": 20}[from.Name]
		return to.Precision-to.Scale >= digits
	}
	return false
}

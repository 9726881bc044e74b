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
	"strings"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/lbhm/delta-kernel-go/common/errors"
)

type ColumnMappingMode int8

const (
	ColumnMappingNone ColumnMappingMode = iota
	ColumnMappingName
	ColumnMappingID
)

func (m ColumnMappingMode) String() string {
	switch m {
	case ColumnMappingName:
		return "name"
	case ColumnMappingID:
		return "id"
	default:
		return "none"
	}
}

func ParseColumnMappingMode(s string) (ColumnMappingMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ColumnMappingNone, nil
	case "name":
		return ColumnMappingName, nil
	case "id":
		return ColumnMappingID, nil
	default:
		return ColumnMappingNone, fmt.Errorf("unknown column mapping mode %q", s)
	}
}

// Schema is a table schema together with its arrow rendering.
type Schema struct {
	st          *StructType
	arrowSchema *arrow.Schema
}

func (s *Schema) Schema() *arrow.Schema {
	return s.arrowSchema
}

func (s *Schema) Struct() *StructType {
	return s.st
}

func (s *Schema) Fields() []StructField {
	return s.st.Fields
}

func (s *Schema) String() string {
	return s.st.String()
}

func NewSchema(st *StructType) (*Schema, error) {
	as, err := ToArrowSchema(st)
	if err != nil {
		return nil, err
	}
	return &Schema{st: st, arrowSchema: as}, nil
}

// Parse decodes a schemaString from a metadata action.
func Parse(schemaString string) (*Schema, error) {
	st := &StructType{}
	if err := json.Unmarshal([]byte(schemaString), st); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := Validate(st); err != nil {
		return nil, err
	}
	return NewSchema(st)
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.st)
}

// Validate rejects empty and case-insensitively duplicated field names at every level.
func Validate(st *StructType) error {
	seen := make(map[string]struct{}, len(st.Fields))
	for _, f := range st.Fields {
		if f.Name == "" {
			return fmt.Errorf("empty field name: %w", errors.ErrSchemaNotMatch)
		}
		key := strings.ToLower(f.Name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate field %q: %w", f.Name, errors.ErrSchemaNotMatch)
		}
		seen[key] = struct{}{}
		if err := validateNested(f.Type); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

func validateNested(dt DataType) error {
	switch t := dt.(type) {
	case *StructType:
		return Validate(t)
	case *ArrayType:
		return validateNested(t.ElementType)
	case *MapType:
		if err := validateNested(t.KeyType); err != nil {
			return err
		}
		return validateNested(t.ValueType)
	}
	return nil
}

// Project keeps the named top-level columns in the given order.
func (s *Schema) Project(columns []string) (*Schema, error) {
	if len(columns) == 0 {
		return s, nil
	}
	fields := make([]StructField, 0, len(columns))
	for _, c := range columns {
		f, ok := s.st.Field(c)
		if !ok {
			return nil, fmt.Errorf("column %q: %w", c, errors.ErrColumnNotExist)
		}
		fields = append(fields, f)
	}
	return NewSchema(NewStructType(fields...))
}

// Without drops the named top-level columns.
func (s *Schema) Without(columns []string) (*Schema, error) {
	drop := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		drop[c] = struct{}{}
	}
	fields := make([]StructField, 0, len(s.st.Fields))
	for _, f := range s.st.Fields {
		if _, ok := drop[f.Name]; !ok {
			fields = append(fields, f)
		}
	}
	return NewSchema(NewStructType(fields...))
}

// Physical renames every field, recursively, to its physical name under mode.
func (s *Schema) Physical(mode ColumnMappingMode) (*Schema, error) {
	if mode == ColumnMappingNone {
		return s, nil
	}
	return NewSchema(physicalStruct(s.st, mode))
}

func physicalStruct(st *StructType, mode ColumnMappingMode) *StructType {
	fields := make([]StructField, 0, len(st.Fields))
	for _, f := range st.Fields {
		fields = append(fields, PhysicalField(f, mode))
	}
	return NewStructType(fields...)
}

// PhysicalField renames f, and every field nested in it, to the physical names under mode.
func PhysicalField(f StructField, mode ColumnMappingMode) StructField {
	pf := f
	pf.Name = f.PhysicalName(mode)
	pf.Type = physicalType(f.Type, mode)
	return pf
}

func physicalType(dt DataType, mode ColumnMappingMode) DataType {
	switch t := dt.(type) {
	case *StructType:
		return physicalStruct(t, mode)
	case *ArrayType:
		return &ArrayType{ElementType: physicalType(t.ElementType, mode), ContainsNull: t.ContainsNull}
	case *MapType:
		return &MapType{KeyType: physicalType(t.KeyType, mode), ValueType: physicalType(t.ValueType, mode), ValueContainsNull: t.ValueContainsNull}
	}
	return dt
}

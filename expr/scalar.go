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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v12/arrow/decimal128"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

const (
	microsPerDay = int64(24 * time.Hour / time.Microsecond)
	dateLayout   = "2006-01-02"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Scalar is a typed value. A nil Value is SQL NULL; Type may be nil only for an untyped NULL.
//
// Value holds string, int64 (long), int32 (integer), int16 (short), int8 (byte), float32, float64,
// bool, []byte (binary), int32 days (date), int64 microseconds (timestamp, timestamp_ntz) or
// decimal128.Num (decimal).
type Scalar struct {
	Type  *schema.PrimitiveType
	Value any
}

func Null(t *schema.PrimitiveType) Scalar {
	return Scalar{Type: t}
}

func StringValue(v string) Scalar {
	return Scalar{Type: schema.String, Value: v}
}

func LongValue(v int64) Scalar {
	return Scalar{Type: schema.Long, Value: v}
}

func IntValue(v int32) Scalar {
	return Scalar{Type: schema.Integer, Value: v}
}

func DoubleValue(v float64) Scalar {
	return Scalar{Type: schema.Double, Value: v}
}

func BoolValue(v bool) Scalar {
	return Scalar{Type: schema.Boolean, Value: v}
}

func DateValue(days int32) Scalar {
	return Scalar{Type: schema.Date, Value: days}
}

func TimestampValue(micros int64) Scalar {
	return Scalar{Type: schema.Timestamp, Value: micros}
}

func DecimalValue(v decimal128.Num, precision, scale int) Scalar {
	return Scalar{Type: schema.Decimal(precision, scale), Value: v}
}

func (s Scalar) IsNull() bool {
	return s.Value == nil
}

func (s Scalar) String() string {
	if s.Value == nil {
		return "NULL"
	}
	switch v := s.Value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case []byte:
		return fmt.Sprintf("X'%X'", v)
	case decimal128.Num:
		return decimalString(v, s.Type.Scale)
	}
	switch s.Type.Name {
	case "date":
		days := s.Value.(int32)
		return "DATE '" + time.Unix(int64(days)*86400, 0).UTC().Format(dateLayout) + "'"
	case "timestamp", "timestamp_ntz":
		micros := s.Value.(int64)
		return "TIMESTAMP '" + time.UnixMicro(micros).UTC().Format("2006-01-02 15:04:05.999999") + "'"
	}
	return fmt.Sprint(s.Value)
}

func decimalString(n decimal128.Num, scale int) string {
	r := new(big.Rat).SetFrac(n.BigInt(), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil))
	return r.FloatString(scale)
}

// ParseScalar parses the string form used by partition values. Empty text is NULL for every
// type except string.
func ParseScalar(t *schema.PrimitiveType, text string) (Scalar, error) {
	if text == "" && t.Name != "string" {
		return Null(t), nil
	}
	var (
		v   any
		err error
	)
	switch t.Name {
	case "string":
		v = text
	case "binary":
		v = []byte(text)
	case "boolean":
		v, err = strconv.ParseBool(text)
	case "byte":
		var i int64
		i, err = strconv.ParseInt(text, 10, 8)
		v = int8(i)
	case "short":
		var i int64
		i, err = strconv.ParseInt(text, 10, 16)
		v = int16(i)
	case "integer":
		var i int64
		i, err = strconv.ParseInt(text, 10, 32)
		v = int32(i)
	case "long":
		v, err = strconv.ParseInt(text, 10, 64)
	case "float":
		var f float64
		f, err = strconv.ParseFloat(text, 32)
		v = float32(f)
	case "double":
		v, err = strconv.ParseFloat(text, 64)
	case "date":
		var d time.Time
		d, err = time.Parse(dateLayout, text)
		v = int32(d.Unix() / 86400)
	case "timestamp", "timestamp_ntz":
		v, err = parseTimestamp(text)
	case "decimal":
		v, err = decimal128.FromString(text, int32(t.Precision), int32(t.Scale))
	default:
		err = fmt.Errorf("unsupported type")
	}
	if err != nil {
		return Scalar{}, fmt.Errorf("parse %q as %s: %w", text, t, err)
	}
	return Scalar{Type: t, Value: v}, nil
}

func parseTimestamp(text string) (int64, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, text)
		if err == nil {
			return ts.UnixMicro(), nil
		}
		lastErr = err
	}
	return 0, lastErr
}

// FromJSONValue converts a statistics value decoded with json.Decoder.UseNumber.
func FromJSONValue(t *schema.PrimitiveType, v any) (Scalar, error) {
	switch jv := v.(type) {
	case nil:
		return Null(t), nil
	case string:
		if t.Name == "string" {
			return StringValue(jv), nil
		}
		return ParseScalar(t, jv)
	case bool:
		if t.Name != "boolean" {
			return Scalar{}, fmt.Errorf("boolean value for %s column", t)
		}
		return BoolValue(jv), nil
	case json.Number:
		return ParseScalar(t, jv.String())
	case float64:
		return ParseScalar(t, strconv.FormatFloat(jv, 'f', -1, 64))
	}
	return Scalar{}, fmt.Errorf("unsupported statistics value %T for %s column", v, t)
}

// Family groups types whose values are mutually comparable.
type Family int8

const (
	FamilyUnknown Family = iota
	FamilyNumeric
	FamilyString
	FamilyBoolean
	FamilyBinary
	FamilyTemporal
)

func FamilyOf(t *schema.PrimitiveType) Family {
	if t == nil {
		return FamilyUnknown
	}
	switch t.Name {
	case "byte", "short", "integer", "long", "float", "double", "decimal":
		return FamilyNumeric
	case "string":
		return FamilyString
	case "boolean":
		return FamilyBoolean
	case "binary":
		return FamilyBinary
	case "date", "timestamp", "timestamp_ntz":
		return FamilyTemporal
	}
	return FamilyUnknown
}

// Comparable reports whether values of a and b may be compared. An untyped NULL compares with anything.
func Comparable(a, b *schema.PrimitiveType) bool {
	if a == nil || b == nil {
		return true
	}
	fa := FamilyOf(a)
	return fa != FamilyUnknown && fa == FamilyOf(b)
}

// Compare orders two non-null scalars. ok is false when either is null or the types are not comparable.
func Compare(a, b Scalar) (cmp int, ok bool) {
	if a.IsNull() || b.IsNull() || !Comparable(a.Type, b.Type) {
		return 0, false
	}
	switch FamilyOf(a.Type) {
	case FamilyString:
		return strings.Compare(a.Value.(string), b.Value.(string)), true
	case FamilyBinary:
		return bytes.Compare(a.Value.([]byte), b.Value.([]byte)), true
	case FamilyBoolean:
		x, y := a.Value.(bool), b.Value.(bool)
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case FamilyTemporal:
		x, y := temporalMicros(a), temporalMicros(b)
		return compareInt64(x, y), true
	case FamilyNumeric:
		return compareNumeric(a, b)
	}
	return 0, false
}

func temporalMicros(s Scalar) int64 {
	if s.Type.Name == "date" {
		return int64(s.Value.(int32)) * microsPerDay
	}
	return s.Value.(int64)
}

func compareInt64(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func compareNumeric(a, b Scalar) (int, bool) {
	if ai, ok := integral(a); ok {
		if bi, ok := integral(b); ok {
			return compareInt64(ai, bi), true
		}
	}
	if a.Type.Name == "decimal" || b.Type.Name == "decimal" {
		ar, bok := toRat(a)
		br, cok := toRat(b)
		if !bok || !cok {
			return 0, false
		}
		return ar.Cmp(br), true
	}
	x, y := toFloat(a), toFloat(b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

func integral(s Scalar) (int64, bool) {
	switch v := s.Value.(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func toFloat(s Scalar) float64 {
	if i, ok := integral(s); ok {
		return float64(i)
	}
	switch v := s.Value.(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case decimal128.Num:
		f, _ := new(big.Rat).SetFrac(v.BigInt(), pow10(s.Type.Scale)).Float64()
		return f
	}
	return math.NaN()
}

func toRat(s Scalar) (*big.Rat, bool) {
	if i, ok := integral(s); ok {
		return new(big.Rat).SetInt64(i), true
	}
	switch v := s.Value.(type) {
	case decimal128.Num:
		return new(big.Rat).SetFrac(v.BigInt(), pow10(s.Type.Scale)), true
	case float32:
		r := new(big.Rat)
		if r.SetFloat64(float64(v)) == nil {
			return nil, false
		}
		return r, true
	case float64:
		r := new(big.Rat)
		if r.SetFloat64(v) == nil {
			return nil, false
		}
		return r, true
	}
	return nil, false
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// AddMicros shifts a timestamp scalar; other values are returned unchanged.
func AddMicros(s Scalar, micros int64) Scalar {
	if s.IsNull() || (s.Type.Name != "timestamp" && s.Type.Name != "timestamp_ntz") {
		return s
	}
	return Scalar{Type: s.Type, Value: s.Value.(int64) + micros}
}

// Cast converts s to t. Numeric values convert between numeric types, dates widen to
// timestamps, strings parse, and any value formats to a string.
func Cast(s Scalar, t *schema.PrimitiveType) (Scalar, error) {
	if s.IsNull() {
		return Null(t), nil
	}
	if s.Type != nil && s.Type.String() == t.String() {
		return s, nil
	}
	if t.Name == "string" {
		if v, ok := s.Value.(string); ok {
			return StringValue(v), nil
		}
		text := s.String()
		switch FamilyOf(s.Type) {
		case FamilyTemporal:
			text = strings.TrimSuffix(strings.SplitN(text, " '", 2)[1], "'")
		}
		return StringValue(text), nil
	}
	if v, ok := s.Value.(string); ok {
		return ParseScalar(t, v)
	}
	switch {
	case FamilyOf(s.Type) == FamilyNumeric && FamilyOf(t) == FamilyNumeric:
		return castNumeric(s, t)
	case s.Type.Name == "date" && (t.Name == "timestamp" || t.Name == "timestamp_ntz"):
		return Scalar{Type: t, Value: int64(s.Value.(int32)) * microsPerDay}, nil
	case FamilyOf(s.Type) == FamilyTemporal && t.Name == "date":
		return Scalar{Type: t, Value: int32(floorDiv(temporalMicros(s), microsPerDay))}, nil
	case (s.Type.Name == "timestamp" || s.Type.Name == "timestamp_ntz") && (t.Name == "timestamp" || t.Name == "timestamp_ntz"):
		return Scalar{Type: t, Value: s.Value}, nil
	}
	return Scalar{}, fmt.Errorf("cannot cast %s to %s", s.Type, t)
}

func floorDiv(x, y int64) int64 {
	q := x / y
	if (x%y != 0) && ((x < 0) != (y < 0)) {
		q--
	}
	return q
}

func castNumeric(s Scalar, t *schema.PrimitiveType) (Scalar, error) {
	if t.Name == "decimal" {
		r, ok := toRat(s)
		if !ok {
			return Scalar{}, fmt.Errorf("cannot cast %v to %s", s.Value, t)
		}
		return ParseScalar(t, r.FloatString(t.Scale))
	}
	if t.Name == "float" || t.Name == "double" {
		f := toFloat(s)
		if t.Name == "float" {
			return Scalar{Type: t, Value: float32(f)}, nil
		}
		return Scalar{Type: t, Value: f}, nil
	}
	i, ok := integral(s)
	if !ok {
		f := toFloat(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Scalar{}, fmt.Errorf("cannot cast %v to %s", s.Value, t)
		}
		i = int64(f)
	}
	return ParseScalar(t, strconv.FormatInt(i, 10))
}

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
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/golang/protobuf/proto"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/file/deletionvector"
	"github.com/lbhm/delta-kernel-go/storage/schema"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToProtobuf encodes f as a protobuf Struct so it can be shipped to another process. 64-bit
// integers travel as decimal strings.
func (f *ScanFile) ToProtobuf() (*structpb.Struct, error) {
	m := map[string]any{
		"path":             f.Path,
		"size":             strconv.FormatInt(f.Size, 10),
		"modificationTime": strconv.FormatInt(f.ModificationTime, 10),
		"version":          strconv.FormatInt(f.Version, 10),
	}
	if f.Stats != "" {
		m["stats"] = f.Stats
	}
	pv := make(map[string]any, len(f.PartitionValues))
	for k, v := range f.PartitionValues {
		pv[k] = v
	}
	m["partitionValues"] = pv
	if d := f.DeletionVector; d != nil {
		dv := map[string]any{
			"storageType":    d.StorageType,
			"pathOrInlineDv": d.PathOrInlineDv,
			"sizeInBytes":    float64(d.SizeInBytes),
			"cardinality":    strconv.FormatInt(d.Cardinality, 10),
		}
		if d.Offset != nil {
			dv["offset"] = float64(*d.Offset)
		}
		m["deletionVector"] = dv
	}
	if f.Transform != nil {
		t, err := encodeExpr(f.Transform)
		if err != nil {
			return nil, err
		}
		m["transform"] = t
	}
	pb, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, err, "encode scan file %s", f.Path)
	}
	return pb, nil
}

// ScanFileFromProtobuf decodes the output of ToProtobuf.
func ScanFileFromProtobuf(pb *structpb.Struct) (*ScanFile, error) {
	m := pb.AsMap()
	path, _ := m["path"].(string)
	if path == "" {
		return nil, errors.NewParseError("", 0, "scan file without a path")
	}
	f := &ScanFile{Path: path, PartitionValues: map[string]string{}}
	var err error
	if f.Size, err = int64Field(m, "size"); err != nil {
		return nil, err
	}
	if f.ModificationTime, err = int64Field(m, "modificationTime"); err != nil {
		return nil, err
	}
	if f.Version, err = int64Field(m, "version"); err != nil {
		return nil, err
	}
	f.Stats, _ = m["stats"].(string)
	if pv, ok := m["partitionValues"].(map[string]any); ok {
		for k, v := range pv {
			s, ok := v.(string)
			if !ok {
				return nil, errors.NewParseError(path, 0, "partition value %s is %T, not a string", k, v)
			}
			f.PartitionValues[k] = s
		}
	}
	if dv, ok := m["deletionVector"].(map[string]any); ok {
		d := &deletionvector.Descriptor{}
		d.StorageType, _ = dv["storageType"].(string)
		d.PathOrInlineDv, _ = dv["pathOrInlineDv"].(string)
		size, _ := dv["sizeInBytes"].(float64)
		d.SizeInBytes = int32(size)
		if off, ok := dv["offset"].(float64); ok {
			o := int32(off)
			d.Offset = &o
		}
		if d.Cardinality, err = int64Field(dv, "cardinality"); err != nil {
			return nil, err
		}
		f.DeletionVector = d
	}
	if t, ok := m["transform"]; ok {
		e, err := decodeExpr(t)
		if err != nil {
			return nil, errors.Wrap(errors.KindParse, err, "transform of %s", path)
		}
		st, ok := e.(*expr.Struct)
		if !ok {
			return nil, errors.NewParseError(path, 0, "transform is %s, not a struct", e)
		}
		f.Transform = st
	}
	return f, nil
}

// MarshalScanFile is ToProtobuf followed by binary protobuf encoding.
func MarshalScanFile(f *ScanFile) ([]byte, error) {
	pb, err := f.ToProtobuf()
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pb)
}

func UnmarshalScanFile(b []byte) (*ScanFile, error) {
	pb := &structpb.Struct{}
	if err := proto.Unmarshal(b, pb); err != nil {
		return nil, errors.Wrap(errors.KindParse, err, "decode scan file")
	}
	return ScanFileFromProtobuf(pb)
}

func int64Field(m map[string]any, key string) (int64, error) {
	switch v := m[key].(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, errors.Wrap(errors.KindParse, err, "field %s", key)
		}
		return n, nil
	case float64:
		return int64(v), nil
	default:
		return 0, errors.NewParseError("", 0, "field %s is %T", key, v)
	}
}

func encodeExpr(e expr.Expression) (map[string]any, error) {
	switch n := e.(type) {
	case *expr.Literal:
		return encodeScalar(n.Value)
	case *expr.Column:
		path := make([]any, len(n.Path))
		for i, p := range n.Path {
			path[i] = p
		}
		return map[string]any{"column": path}, nil
	case *expr.Struct:
		fields := make([]any, 0, len(n.Fields))
		for _, c := range n.Fields {
			enc, err := encodeExpr(c)
			if err != nil {
				return nil, err
			}
			fields = append(fields, enc)
		}
		return map[string]any{"struct": fields}, nil
	case *expr.Unary:
		child, err := encodeExpr(n.Child)
		if err != nil {
			return nil, err
		}
		u := map[string]any{"op": float64(n.Op), "child": child}
		if n.Type != nil {
			u["type"] = n.Type.String()
		}
		return map[string]any{"unary": u}, nil
	case *expr.Binary:
		l, err := encodeExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := encodeExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return map[string]any{"binary": map[string]any{"op": n.Op.String(), "left": l, "right": r}}, nil
	}
	return nil, errors.NewInternalError("cannot encode expression %T", e)
}

func encodeScalar(s expr.Scalar) (map[string]any, error) {
	lit := map[string]any{"value": nil}
	if s.Type != nil {
		lit["type"] = s.Type.String()
	}
	if !s.IsNull() {
		if b, ok := s.Value.([]byte); ok {
			lit["value"] = base64.StdEncoding.EncodeToString(b)
		} else {
			text, err := expr.Cast(s, schema.String)
			if err != nil {
				return nil, errors.Wrap(errors.KindInternal, err, "encode literal %s", s)
			}
			lit["value"] = text.Value
		}
	}
	return map[string]any{"literal": lit}, nil
}

func decodeExpr(v any) (expr.Expression, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("expression must be an object with one key, got %v", v)
	}
	for kind, body := range m {
		switch kind {
		case "literal":
			lit, ok := body.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("literal is %T", body)
			}
			s, err := decodeScalar(lit)
			if err != nil {
				return nil, err
			}
			return expr.Lit(s), nil
		case "column":
			parts, ok := body.([]any)
			if !ok || len(parts) == 0 {
				return nil, fmt.Errorf("column path is %v", body)
			}
			path := make([]string, len(parts))
			for i, p := range parts {
				if path[i], ok = p.(string); !ok {
					return nil, fmt.Errorf("column path element is %T", p)
				}
			}
			return expr.ColPath(path...), nil
		case "struct":
			items, ok := body.([]any)
			if !ok {
				return nil, fmt.Errorf("struct fields are %T", body)
			}
			fields := make([]expr.Expression, 0, len(items))
			for _, it := range items {
				f, err := decodeExpr(it)
				if err != nil {
					return nil, err
				}
				fields = append(fields, f)
			}
			return expr.NewStruct(fields...), nil
		case "unary":
			u, ok := body.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("unary is %T", body)
			}
			op, _ := u["op"].(float64)
			child, err := decodeExpr(u["child"])
			if err != nil {
				return nil, err
			}
			out := &expr.Unary{Op: expr.UnaryOp(op), Child: child}
			if t, ok := u["type"].(string); ok {
				if out.Type, err = schema.ParsePrimitive(t); err != nil {
					return nil, err
				}
			}
			return out, nil
		case "binary":
			b, ok := body.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("binary is %T", body)
			}
			op, err := parseBinaryOp(b["op"])
			if err != nil {
				return nil, err
			}
			l, err := decodeExpr(b["left"])
			if err != nil {
				return nil, err
			}
			r, err := decodeExpr(b["right"])
			if err != nil {
				return nil, err
			}
			return expr.NewBinary(op, l, r), nil
		default:
			return nil, fmt.Errorf("unknown expression kind %q", kind)
		}
	}
	return nil, fmt.Errorf("empty expression")
}

func decodeScalar(lit map[string]any) (expr.Scalar, error) {
	name, _ := lit["type"].(string)
	if name == "" {
		return expr.Scalar{}, nil
	}
	t, err := schema.ParsePrimitive(name)
	if err != nil {
		return expr.Scalar{}, err
	}
	text, ok := lit["value"].(string)
	if !ok {
		return expr.Null(t), nil
	}
	if t.Name == "binary" {
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return expr.Scalar{}, err
		}
		return expr.Scalar{Type: t, Value: b}, nil
	}
	if t.Name == "string" {
		return expr.StringValue(text), nil
	}
	return expr.ParseScalar(t, text)
}

func parseBinaryOp(v any) (expr.BinaryOp, error) {
	text, _ := v.(string)
	for op := expr.Equal; op <= expr.Divide; op++ {
		if op.String() == text {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown binary operator %q", text)
}

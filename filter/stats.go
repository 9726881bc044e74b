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
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

// Timestamp statistics are truncated to milliseconds.
const timestampMaxSlackMicros = 999

var _ Stats = (*FileStats)(nil)

// FileStats is the JSON statistics string of an add action, typed against the physical schema.
type FileStats struct {
	schema     *schema.StructType
	numRecords *int64
	minValues  map[string]any
	maxValues  map[string]any
	nullCount  map[string]any
}

type rawStats struct {
	NumRecords *int64         `json:"numRecords"`
	MinValues  map[string]any `json:"minValues"`
	MaxValues  map[string]any `json:"maxValues"`
	NullCount  map[string]any `json:"nullCount"`
}

// ParseStats decodes raw. An empty string yields stats where everything is missing.
func ParseStats(raw string, physical *schema.StructType) (*FileStats, error) {
	fs := &FileStats{schema: physical}
	if raw == "" {
		return fs, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var r rawStats
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	fs.numRecords = r.NumRecords
	fs.minValues = r.MinValues
	fs.maxValues = r.MaxValues
	fs.nullCount = r.NullCount
	return fs, nil
}

func (s *FileStats) NumRecords() (int64, bool) {
	if s.numRecords == nil {
		return 0, false
	}
	return *s.numRecords, true
}

func (s *FileStats) Min(path []string) (expr.Scalar, bool) {
	return s.bound(s.minValues, path)
}

func (s *FileStats) Max(path []string) (expr.Scalar, bool) {
	v, ok := s.bound(s.maxValues, path)
	if ok {
		v = expr.AddMicros(v, timestampMaxSlackMicros)
	}
	return v, ok
}

func (s *FileStats) NullCount(path []string) (int64, bool) {
	v, ok := lookup(s.nullCount, path)
	if !ok {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	return i, err == nil
}

func (s *FileStats) bound(values map[string]any, path []string) (expr.Scalar, bool) {
	if s.schema == nil {
		return expr.Scalar{}, false
	}
	f, ok := s.schema.Resolve(path)
	if !ok {
		return expr.Scalar{}, false
	}
	pt, ok := f.Type.(*schema.PrimitiveType)
	if !ok {
		return expr.Scalar{}, false
	}
	v, ok := lookup(values, path)
	if !ok || v == nil {
		return expr.Scalar{}, false
	}
	sc, err := expr.FromJSONValue(pt, v)
	if err != nil || sc.IsNull() {
		return expr.Scalar{}, false
	}
	return sc, true
}

func lookup(values map[string]any, path []string) (any, bool) {
	var cur any = values
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

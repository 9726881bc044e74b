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

// Package testtable writes Delta logs and data files into an in-memory file system for tests.
package testtable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/io/format/parquet"
	"github.com/lbhm/delta-kernel-go/io/fs"
	"github.com/lbhm/delta-kernel-go/storage/actions"
	"github.com/stretchr/testify/require"
)

type Table struct {
	t    testing.TB
	Fs   *fs.MemoryFs
	Root string
}

func New(t testing.TB, root string) *Table {
	return &Table{t: t, Fs: fs.NewMemoryFs(), Root: root}
}

// Commit writes version as newline-delimited JSON.
func (tt *Table) Commit(version int64, acts ...actions.Action) {
	tt.CommitRaw(version, string(jsonLines(tt.t, acts)))
}

func (tt *Table) CommitRaw(version int64, content string) {
	tt.write(utils.GetCommitFilePath(tt.Root, version), []byte(content))
}

// JSONCheckpoint writes a single-file JSON checkpoint.
func (tt *Table) JSONCheckpoint(version int64, acts ...actions.Action) {
	p := strings.TrimSuffix(utils.GetCheckpointFilePath(tt.Root, version), ".parquet") + ".json"
	tt.write(p, jsonLines(tt.t, acts))
}

// Checkpoint writes a single-file parquet checkpoint.
func (tt *Table) Checkpoint(version int64, acts ...actions.Action) {
	tt.writeCheckpoint(utils.GetCheckpointFilePath(tt.Root, version), acts)
}

// MultiPartCheckpoint writes every part of a multi-part checkpoint except those listed in skip.
func (tt *Table) MultiPartCheckpoint(version int64, parts [][]actions.Action, skip ...int) {
	skipped := make(map[int]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	for i, acts := range parts {
		if skipped[i+1] {
			continue
		}
		tt.writeCheckpoint(utils.GetMultiPartCheckpointFilePath(tt.Root, version, i+1, len(parts)), acts)
	}
}

// LastCheckpoint writes the _last_checkpoint hint.
func (tt *Table) LastCheckpoint(version int64, parts int) {
	hint := map[string]any{"version": version, "size": 1}
	if parts > 1 {
		hint["parts"] = parts
	}
	b, err := json.Marshal(hint)
	require.NoError(tt.t, err)
	tt.write(utils.GetLastCheckpointPath(tt.Root), b)
}

// DataFile writes one parquet file under the table root; each JSON array becomes a row group.
func (tt *Table) DataFile(rel string, schema *arrow.Schema, batches ...string) {
	w, err := parquet.NewFileWriter(schema, tt.Fs, tt.Root+"/"+rel)
	require.NoError(tt.t, err)
	for _, b := range batches {
		rec, _, err := array.RecordFromJSON(memory.DefaultAllocator, schema, strings.NewReader(b))
		require.NoError(tt.t, err)
		require.NoError(tt.t, w.Write(rec))
		rec.Release()
	}
	require.NoError(tt.t, w.Close())
}

// Write stores raw bytes at a path relative to the table root.
func (tt *Table) Write(rel string, data []byte) {
	tt.write(tt.Root+"/"+rel, data)
}

func (tt *Table) write(p string, data []byte) {
	require.NoError(tt.t, fs.WriteFile(tt.Fs, p, data))
}

func jsonLines(t testing.TB, acts []actions.Action) []byte {
	var buf bytes.Buffer
	for _, a := range acts {
		b, err := actions.Marshal(a)
		require.NoError(t, err)
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

var (
	stringMap = arrow.MapOf(arrow.BinaryTypes.String, arrow.BinaryTypes.String)
	dvType    = arrow.StructOf(
		arrow.Field{Name: "storageType", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "pathOrInlineDv", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "offset", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		arrow.Field{Name: "sizeInBytes", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		arrow.Field{Name: "cardinality", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	)
	stringList = arrow.ListOf(arrow.BinaryTypes.String)
)

func nullable(name string, t arrow.DataType) arrow.Field {
	return arrow.Field{Name: name, Type: t, Nullable: true}
}

// CheckpointSchema is the arrow schema of the checkpoint files this package writes.
var CheckpointSchema = arrow.NewSchema([]arrow.Field{
	nullable("txn", arrow.StructOf(
		nullable("appId", arrow.BinaryTypes.String),
		nullable("version", arrow.PrimitiveTypes.Int64),
		nullable("lastUpdated", arrow.PrimitiveTypes.Int64),
	)),
	nullable("add", arrow.StructOf(
		nullable("path", arrow.BinaryTypes.String),
		nullable("partitionValues", stringMap),
		nullable("size", arrow.PrimitiveTypes.Int64),
		nullable("modificationTime", arrow.PrimitiveTypes.Int64),
		nullable("dataChange", arrow.FixedWidthTypes.Boolean),
		nullable("stats", arrow.BinaryTypes.String),
		nullable("tags", stringMap),
		nullable("deletionVector", dvType),
		nullable("baseRowId", arrow.PrimitiveTypes.Int64),
		nullable("defaultRowCommitVersion", arrow.PrimitiveTypes.Int64),
	)),
	nullable("remove", arrow.StructOf(
		nullable("path", arrow.BinaryTypes.String),
		nullable("deletionTimestamp", arrow.PrimitiveTypes.Int64),
		nullable("dataChange", arrow.FixedWidthTypes.Boolean),
		nullable("extendedFileMetadata", arrow.FixedWidthTypes.Boolean),
		nullable("partitionValues", stringMap),
		nullable("size", arrow.PrimitiveTypes.Int64),
		nullable("stats", arrow.BinaryTypes.String),
		nullable("deletionVector", dvType),
	)),
	nullable("metaData", arrow.StructOf(
		nullable("id", arrow.BinaryTypes.String),
		nullable("name", arrow.BinaryTypes.String),
		nullable("description", arrow.BinaryTypes.String),
		nullable("format", arrow.StructOf(
			nullable("provider", arrow.BinaryTypes.String),
			nullable("options", stringMap),
		)),
		nullable("schemaString", arrow.BinaryTypes.String),
		nullable("partitionColumns", stringList),
		nullable("configuration", stringMap),
		nullable("createdTime", arrow.PrimitiveTypes.Int64),
	)),
	nullable("protocol", arrow.StructOf(
		nullable("minReaderVersion", arrow.PrimitiveTypes.Int32),
		nullable("minWriterVersion", arrow.PrimitiveTypes.Int32),
		nullable("readerFeatures", stringList),
		nullable("writerFeatures", stringList),
	)),
}, nil)

// mapFields are the map-typed fields whose JSON objects become key/value lists.
var mapFields = map[string]bool{"partitionValues": true, "tags": true, "options": true, "configuration": true}

func toArrowJSON(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if m, ok := val.(map[string]any); ok && mapFields[k] {
				entries := make([]map[string]any, 0, len(m))
				for mk, mv := range m {
					entries = append(entries, map[string]any{"key": mk, "value": mv})
				}
				out[k] = entries
				continue
			}
			out[k] = toArrowJSON(val)
		}
		return out
	case []any:
		for i := range x {
			x[i] = toArrowJSON(x[i])
		}
		return x
	}
	return v
}

func (tt *Table) writeCheckpoint(p string, acts []actions.Action) {
	var rows []any
	for _, a := range acts {
		if a.Kind == actions.KindCommitInfo {
			tt.t.Fatalf("commitInfo does not belong in a checkpoint")
		}
		b, err := actions.Marshal(a)
		require.NoError(tt.t, err)
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var row map[string]any
		require.NoError(tt.t, dec.Decode(&row))
		rows = append(rows, toArrowJSON(row))
	}
	b, err := json.Marshal(rows)
	require.NoError(tt.t, err)
	rec, _, err := array.RecordFromJSON(memory.DefaultAllocator, CheckpointSchema, bytes.NewReader(b))
	require.NoError(tt.t, err, fmt.Sprintf("checkpoint rows %s", b))
	defer rec.Release()

	w, err := parquet.NewFileWriter(CheckpointSchema, tt.Fs, p)
	require.NoError(tt.t, err)
	require.NoError(tt.t, w.Write(rec))
	require.NoError(tt.t, w.Close())
}

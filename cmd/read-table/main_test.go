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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/config"
	"github.com/lbhm/delta-kernel-go/internal/testtable"
	"github.com/lbhm/delta-kernel-go/io/format/parquet"
	"github.com/lbhm/delta-kernel-go/io/fs"
	"github.com/lbhm/delta-kernel-go/storage/actions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rowSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

func writeCommit(t *testing.T, dir string, version int64, acts ...actions.Action) {
	var buf bytes.Buffer
	for _, a := range acts {
		b, err := actions.Marshal(a)
		require.NoError(t, err)
		buf.Write(b)
		buf.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(utils.GetCommitFilePath(dir, version), buf.Bytes(), 0o644))
}

func writeData(t *testing.T, dir, name, rows string) {
	w, err := parquet.NewFileWriter(rowSchema, fs.NewLocalFs(dir), filepath.Join(dir, name))
	require.NoError(t, err)
	rec, _, err := array.RecordFromJSON(memory.DefaultAllocator, rowSchema, strings.NewReader(rows))
	require.NoError(t, err)
	defer rec.Release()
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
}

func localTable(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(utils.GetLogDir(dir), 0o755))
	writeData(t, dir, "a.parquet", `[{"id":1,"name":"a"},{"id":2,"name":"b"}]`)
	writeData(t, dir, "b.parquet", `[{"id":3,"name":"c"}]`)
	writeCommit(t, dir, 0, testtable.Protocol(1, 2), testtable.Metadata("local", testtable.SimpleSchema, nil, nil))
	writeCommit(t, dir, 1,
		testtable.Add("a.parquet", nil, `{"numRecords":2,"minValues":{"id":1},"maxValues":{"id":2},"nullCount":{"id":0}}`),
		testtable.Add("b.parquet", nil, ""))
	return dir
}

func TestReadTable(t *testing.T) {
	cfg := config.Default()
	cfg.Table.URI = "file://" + localTable(t)
	cfg.Engine.Workers = 2

	var out bytes.Buffer
	summary, err := readTable(context.Background(), cfg, &out)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Version)
	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, int64(3), summary.Rows)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.ElementsMatch(t, []string{
		`{"id":1,"name":"a"}`,
		`{"id":2,"name":"b"}`,
		`{"id":3,"name":"c"}`,
	}, lines)
}

func TestReadTableWithPredicate(t *testing.T) {
	cfg := config.Default()
	cfg.Table.URI = "file://" + localTable(t)
	cfg.Scan.Columns = []string{"name"}
	cfg.Scan.Predicate = "id > 2"

	var out bytes.Buffer
	summary, err := readTable(context.Background(), cfg, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 1, summary.PrunedByStats)
	assert.Equal(t, int64(1), summary.Rows)
	assert.Equal(t, `{"name":"c"}`, strings.TrimSpace(out.String()))

	// counting only
	summary, err = readTable(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Rows)
}

func TestReadTableErrors(t *testing.T) {
	cfg := config.Default()
	_, err := readTable(context.Background(), cfg, nil)
	assert.True(t, errors.Is(err, errors.ErrPlanning))

	cfg.Table.URI = "file://" + localTable(t)
	cfg.Scan.Predicate = "missing = 1"
	_, err = readTable(context.Background(), cfg, nil)
	assert.True(t, errors.Is(err, errors.ErrPlanning))

	cfg.Scan.Predicate = ""
	v := int64(7)
	cfg.Table.Version = &v
	_, err = readTable(context.Background(), cfg, nil)
	assert.True(t, errors.Is(err, errors.ErrResolution))
}

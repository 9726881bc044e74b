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

package storage_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/engine/defaultengine"
	"github.com/lbhm/delta-kernel-go/internal/testtable"
	"github.com/lbhm/delta-kernel-go/storage"
	"github.com/lbhm/delta-kernel-go/storage/actions"
	"github.com/lbhm/delta-kernel-go/storage/schema"
	"github.com/stretchr/testify/suite"
)

const mappedSchema = `{"type":"struct","fields":[` +
	`{"name":"id","type":"long","nullable":true,"metadata":{"delta.columnMapping.id":1,"delta.columnMapping.physicalName":"col-1"}},` +
	`{"name":"dt","type":"date","nullable":true,"metadata":{"delta.columnMapping.id":2,"delta.columnMapping.physicalName":"col-2"}}]}`

type TableTestSuite struct {
	suite.Suite
	tt    *testtable.Table
	table *storage.Table
}

func (suite *TableTestSuite) SetupTest() {
	suite.tt = testtable.New(suite.T(), "/tbl")
	suite.table = storage.NewTable(defaultengine.New(suite.tt.Fs), "/tbl")
}

func (suite *TableTestSuite) livePaths(s *storage.Snapshot) []string {
	it := s.Adds(context.Background())
	defer it.Close()
	var out []string
	for it.Next() {
		out = append(out, it.Add().Path)
	}
	suite.Require().NoError(it.Err())
	return out
}

func (suite *TableTestSuite) TestAccessors() {
	suite.tt.Commit(0,
		testtable.Protocol(1, 2),
		testtable.Metadata("tbl-id", mappedSchema, []string{"dt"}, map[string]string{
			"delta.columnMapping.mode": "name",
			"delta.appendOnly":         "true",
		}),
		testtable.Txn("etl", 3),
		testtable.CommitInfo(1700000000000),
	)
	suite.tt.Commit(1, testtable.Add("dt=2024-01-01/a.parquet", map[string]string{"col-2": "2024-01-01"}, ""))

	snap, err := suite.table.Snapshot(context.Background(), nil)
	suite.Require().NoError(err)
	suite.Equal(int64(1), snap.Version())
	suite.Equal("/tbl", snap.TableRoot())
	suite.Equal([]string{"dt"}, snap.PartitionColumns())
	suite.Equal([]string{"id", "dt"}, snap.Schema().Struct().FieldNames())
	suite.Equal([]string{"col-1", "col-2"}, snap.PhysicalSchema().Struct().FieldNames())
	suite.Equal(schema.ColumnMappingName, snap.ColumnMappingMode())
	suite.Equal("true", snap.TableProperties()["delta.appendOnly"])
	suite.Equal("tbl-id", snap.Metadata().ID)
	suite.Equal(1, snap.Protocol().MinReaderVersion)
	suite.Equal(int64(1), snap.LogSegment().EndVersion)

	v, ok := snap.TxnVersion("etl")
	suite.True(ok)
	suite.Equal(int64(3), v)
	_, ok = snap.TxnVersion("other")
	suite.False(ok)

	// accessors hand out copies
	snap.TableProperties()["delta.appendOnly"] = "false"
	snap.PartitionColumns()[0] = "x"
	suite.Equal("true", snap.TableProperties()["delta.appendOnly"])
	suite.Equal([]string{"dt"}, snap.PartitionColumns())

	md := snap.Metadata()
	md.Configuration["delta.appendOnly"] = "false"
	md.PartitionColumns[0] = "x"
	suite.Equal("true", snap.TableProperties()["delta.appendOnly"])
	suite.Equal([]string{"dt"}, snap.Metadata().PartitionColumns)
	suite.Equal(schema.ColumnMappingName, snap.ColumnMappingMode())

	seg := snap.LogSegment()
	seg.EndVersion = 42
	seg.Commits[0].Version = 42
	suite.Equal(int64(1), snap.Version())
	suite.Equal(int64(0), snap.LogSegment().Commits[0].Version)

	suite.Equal([]string{"dt=2024-01-01/a.parquet"}, suite.livePaths(snap))
}

func (suite *TableTestSuite) TestDeterminism() {
	suite.tt.Commit(0, testtable.Protocol(1, 2), testtable.Metadata("t", testtable.SimpleSchema, nil, nil))
	suite.tt.Commit(1, testtable.Add("a", nil, ""), testtable.Add("b", nil, ""))
	suite.tt.Commit(2, testtable.Remove("a"), testtable.Add("c", nil, ""))

	first, err := suite.table.SnapshotAt(context.Background(), 2)
	suite.Require().NoError(err)
	second, err := suite.table.SnapshotAt(context.Background(), 2)
	suite.Require().NoError(err)
	suite.Equal(first.Schema().String(), second.Schema().String())
	suite.Equal(first.Protocol(), second.Protocol())
	suite.Equal(first.PartitionColumns(), second.PartitionColumns())
	suite.Equal(suite.livePaths(first), suite.livePaths(second))
	suite.Equal([]string{"c", "b"}, suite.livePaths(first))
}

func (suite *TableTestSuite) TestSnapshotsAreIndependent() {
	suite.tt.Commit(0, testtable.Protocol(1, 2), testtable.Metadata("t", testtable.SimpleSchema, nil, nil))
	suite.tt.Commit(1, testtable.Add("a", nil, ""))
	old, err := suite.table.SnapshotAt(context.Background(), 1)
	suite.Require().NoError(err)

	suite.tt.Commit(2, testtable.Metadata("t", testtable.SimpleSchema, nil, map[string]string{"k": "v"}), testtable.Add("b", nil, ""))
	suite.tt.CommitRaw(3, "garbage\n")

	_, err = suite.table.Snapshot(context.Background(), nil)
	suite.True(errors.Is(err, errors.ErrParse))

	latest, err := suite.table.SnapshotAt(context.Background(), 2)
	suite.Require().NoError(err)
	suite.Equal("v", latest.TableProperties()["k"])
	suite.Empty(old.TableProperties())
	suite.Equal([]string{"a"}, suite.livePaths(old))
	suite.Equal([]string{"b", "a"}, suite.livePaths(latest))
}

func (suite *TableTestSuite) TestConcurrentReaders() {
	suite.tt.Commit(0, testtable.Protocol(1, 2), testtable.Metadata("t", testtable.SimpleSchema, nil, nil))
	for i := 1; i <= 5; i++ {
		suite.tt.Commit(int64(i), testtable.Add(string(rune('a'+i)), nil, ""))
	}
	snap, err := suite.table.Snapshot(context.Background(), nil)
	suite.Require().NoError(err)

	var wg sync.WaitGroup
	counts := make([]int, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			it := snap.Adds(context.Background())
			defer it.Close()
			for it.Next() {
				counts[i]++
			}
		}(i)
	}
	wg.Wait()
	for _, c := range counts {
		suite.Equal(5, c)
	}
}

func (suite *TableTestSuite) TestInvalidMetadata() {
	suite.tt.Commit(0, testtable.Protocol(1, 2), testtable.Metadata("t", `{"type":"struct","fields":[{"name":"a","type":"nope"}]}`, nil, nil))
	_, err := suite.table.Snapshot(context.Background(), nil)
	suite.True(errors.Is(err, errors.ErrParse))

	suite.tt.Commit(1, testtable.Metadata("t", testtable.SimpleSchema, []string{"missing"}, nil))
	_, err = suite.table.Snapshot(context.Background(), nil)
	suite.True(errors.Is(err, errors.ErrState))

	suite.tt.Commit(2, testtable.Metadata("t", testtable.SimpleSchema, nil, map[string]string{"delta.columnMapping.mode": "bogus"}))
	_, err = suite.table.Snapshot(context.Background(), nil)
	suite.True(errors.Is(err, errors.ErrParse))
}

func (suite *TableTestSuite) TestOpenLocal() {
	dir := suite.T().TempDir()
	logDir := utils.GetLogDir(dir)
	suite.Require().NoError(os.MkdirAll(logDir, 0o755))

	var buf bytes.Buffer
	for _, a := range []actions.Action{
		testtable.Protocol(1, 2),
		testtable.Metadata("local", testtable.SimpleSchema, nil, nil),
		testtable.Add("part-0.parquet", nil, ""),
	} {
		b, err := actions.Marshal(a)
		suite.Require().NoError(err)
		buf.Write(b)
		buf.WriteByte('\n')
	}
	suite.Require().NoError(os.WriteFile(utils.GetCommitFilePath(dir, 0), buf.Bytes(), 0o644))
	suite.Require().NoError(os.WriteFile(filepath.Join(logDir, "00000000000000000000.crc"), []byte("{}"), 0o644))

	table, err := storage.Open("file://" + dir)
	suite.Require().NoError(err)
	defer table.Close()
	suite.Equal(dir, table.Root())
	snap, err := table.Snapshot(context.Background(), nil)
	suite.Require().NoError(err)
	suite.Equal(int64(0), snap.Version())
	suite.Equal("local", snap.Metadata().ID)
	suite.Equal([]string{"part-0.parquet"}, suite.livePaths(snap))
}

func (suite *TableTestSuite) TestOpenEmpty() {
	table, err := storage.Open("mem:///nothing")
	suite.Require().NoError(err)
	_, err = table.Snapshot(context.Background(), nil)
	suite.True(errors.Is(err, errors.ErrResolution))
	suite.NoError(table.Close())

	_, err = storage.Open("ftp://host/x")
	suite.Error(err)
}

func TestTableTestSuite(t *testing.T) {
	suite.Run(t, new(TableTestSuite))
}

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

package logsegment

import (
	"context"
	"path"
	"testing"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/engine/defaultengine"
	"github.com/lbhm/delta-kernel-go/internal/testtable"
	"github.com/lbhm/delta-kernel-go/storage/actions"
	"github.com/lbhm/delta-kernel-go/storage/options"
	"github.com/stretchr/testify/suite"
)

type LogSegmentTestSuite struct {
	suite.Suite
	table *testtable.Table
}

func (suite *LogSegmentTestSuite) SetupTest() {
	suite.table = testtable.New(suite.T(), "/tbl")
}

func (suite *LogSegmentTestSuite) commits(versions ...int64) {
	for _, v := range versions {
		suite.table.Commit(v, testtable.Txn("app", v))
	}
}

func (suite *LogSegmentTestSuite) resolve(opts *options.SnapshotOptions) (*LogSegment, error) {
	storage := defaultengine.NewFsStorage(suite.table.Fs)
	return Resolve(context.Background(), storage, suite.table.Root, opts)
}

func (suite *LogSegmentTestSuite) versionOf(opts *options.SnapshotOptions) []int64 {
	seg, err := suite.resolve(opts)
	suite.Require().NoError(err)
	out := make([]int64, 0, len(seg.Commits))
	for _, c := range seg.Commits {
		out = append(out, c.Version)
	}
	return out
}

func (suite *LogSegmentTestSuite) requireResolutionError(opts *options.SnapshotOptions) {
	_, err := suite.resolve(opts)
	suite.Require().Error(err)
	suite.True(errors.Is(err, errors.ErrResolution), err.Error())
}

func (suite *LogSegmentTestSuite) TestCommitsOnly() {
	suite.commits(0, 1, 2)
	seg, err := suite.resolve(nil)
	suite.Require().NoError(err)
	suite.Equal(int64(2), seg.EndVersion)
	suite.Nil(seg.Checkpoint)
	suite.Equal("/tbl/_delta_log", seg.LogRoot)
	suite.Equal([]int64{0, 1, 2}, suite.versionOf(nil))
	suite.Equal([]int64{0, 1}, suite.versionOf(options.NewSnapshotOptions().SetVersion(1)))

	files := seg.Files()
	suite.Len(files, 3)
	suite.Equal(int64(2), files[0].Version)
	suite.Equal(int64(0), files[2].Version)
}

func (suite *LogSegmentTestSuite) TestEmptyLog() {
	suite.requireResolutionError(nil)
	suite.table.Write("_delta_log/readme.txt", []byte("x"))
	suite.requireResolutionError(nil)
}

func (suite *LogSegmentTestSuite) TestMissingVersion() {
	suite.commits(0, 1, 2)
	suite.requireResolutionError(options.NewSnapshotOptions().SetVersion(7))
	suite.requireResolutionError(options.NewSnapshotOptions().SetVersion(-5))
}

func (suite *LogSegmentTestSuite) TestGap() {
	suite.commits(0, 1, 2, 3, 4, 6)
	suite.requireResolutionError(nil)
	suite.Equal([]int64{0, 1, 2, 3, 4}, suite.versionOf(options.NewSnapshotOptions().SetVersion(4)))
}

func (suite *LogSegmentTestSuite) TestHistoryWithoutCheckpoint() {
	suite.commits(3, 4, 5)
	suite.requireResolutionError(nil)
}

func (suite *LogSegmentTestSuite) TestCheckpointSelection() {
	suite.commits(3, 4, 5, 6, 7)
	suite.table.Checkpoint(2, testtable.Protocol(1, 2))
	suite.table.Checkpoint(5, testtable.Protocol(1, 2))

	seg, err := suite.resolve(nil)
	suite.Require().NoError(err)
	suite.Require().NotNil(seg.Checkpoint)
	suite.Equal(int64(5), seg.Checkpoint.Version)
	suite.Equal(int64(5), seg.StartVersion())
	suite.Equal([]int64{6, 7}, suite.versionOf(nil))

	seg, err = suite.resolve(options.NewSnapshotOptions().SetVersion(4))
	suite.Require().NoError(err)
	suite.Equal(int64(2), seg.Checkpoint.Version)
	suite.Equal([]int64{3, 4}, suite.versionOf(options.NewSnapshotOptions().SetVersion(4)))

	seg, err = suite.resolve(options.NewSnapshotOptions().SetVersion(5))
	suite.Require().NoError(err)
	suite.Equal(int64(5), seg.Checkpoint.Version)
	suite.Empty(seg.Commits)
	suite.Len(seg.Files(), 1)
}

func (suite *LogSegmentTestSuite) TestCheckpointWithoutCommitFile() {
	suite.table.Checkpoint(4, testtable.Protocol(1, 2))
	suite.commits(5)
	seg, err := suite.resolve(options.NewSnapshotOptions().SetVersion(4))
	suite.Require().NoError(err)
	suite.Equal(int64(4), seg.EndVersion)
	suite.Empty(seg.Commits)
}

func (suite *LogSegmentTestSuite) TestMultiPartCheckpoint() {
	suite.commits(0, 1, 2, 3, 4, 5)
	part := []actions.Action{testtable.Txn("a", 1)}
	suite.table.MultiPartCheckpoint(2, [][]actions.Action{part, part, part})
	suite.table.MultiPartCheckpoint(4, [][]actions.Action{part, part, part}, 2)

	seg, err := suite.resolve(nil)
	suite.Require().NoError(err)
	suite.Require().NotNil(seg.Checkpoint)
	suite.Equal(int64(2), seg.Checkpoint.Version)
	suite.Require().Len(seg.Checkpoint.Parts, 3)
	for i, p := range seg.Checkpoint.Parts {
		suite.Equal([]string{
			"00000000000000000002.checkpoint.0000000001.0000000003.parquet",
			"00000000000000000002.checkpoint.0000000002.0000000003.parquet",
			"00000000000000000002.checkpoint.0000000003.0000000003.parquet",
		}[i], path.Base(p.Path))
	}
	suite.Equal([]int64{3, 4, 5}, suite.versionOf(nil))
}

func (suite *LogSegmentTestSuite) TestParquetPreferredOverJSONCheckpoint() {
	suite.commits(0, 1)
	suite.table.JSONCheckpoint(1, testtable.Protocol(1, 2))
	suite.table.Checkpoint(1, testtable.Protocol(1, 2))
	seg, err := suite.resolve(nil)
	suite.Require().NoError(err)
	suite.Equal(".parquet", path.Ext(seg.Checkpoint.Parts[0].Path))
}

func (suite *LogSegmentTestSuite) TestLastCheckpointHint() {
	suite.commits(0, 1, 2, 3, 4)
	suite.table.Checkpoint(2, testtable.Protocol(1, 2))
	suite.table.LastCheckpoint(2, 1)

	seg, err := suite.resolve(nil)
	suite.Require().NoError(err)
	suite.Equal(int64(2), seg.Checkpoint.Version)

	// the hint is beyond the requested version and is ignored
	seg, err = suite.resolve(options.NewSnapshotOptions().SetVersion(1))
	suite.Require().NoError(err)
	suite.Nil(seg.Checkpoint)
}

func (suite *LogSegmentTestSuite) TestLastCheckpointFailsClosed() {
	suite.commits(0, 1, 2, 3, 4)
	suite.table.Checkpoint(1, testtable.Protocol(1, 2))
	suite.table.LastCheckpoint(3, 1)
	suite.requireResolutionError(nil)

	opts := options.NewSnapshotOptions()
	opts.AllowFullHistoryReplay = true
	seg, err := suite.resolve(opts)
	suite.Require().NoError(err)
	suite.Require().NotNil(seg.Checkpoint)
	suite.Equal(int64(1), seg.Checkpoint.Version)
	suite.Equal([]int64{2, 3, 4}, suite.versionOf(opts))
}

func (suite *LogSegmentTestSuite) TestLastCheckpointIncompleteFallsBackToHistory() {
	suite.commits(0, 1, 2, 3)
	part := []actions.Action{testtable.Txn("a", 1)}
	suite.table.MultiPartCheckpoint(2, [][]actions.Action{part, part}, 1)
	suite.table.LastCheckpoint(2, 2)
	suite.requireResolutionError(nil)

	opts := options.NewSnapshotOptions()
	opts.AllowFullHistoryReplay = true
	seg, err := suite.resolve(opts)
	suite.Require().NoError(err)
	suite.Nil(seg.Checkpoint)
	suite.Equal([]int64{0, 1, 2, 3}, suite.versionOf(opts))
}

func (suite *LogSegmentTestSuite) TestMalformedHintIgnored() {
	suite.commits(0, 1)
	suite.table.Write("_delta_log/_last_checkpoint", []byte("{not json"))
	suite.Equal([]int64{0, 1}, suite.versionOf(nil))
}

func TestLogSegmentTestSuite(t *testing.T) {
	suite.Run(t, new(LogSegmentTestSuite))
}

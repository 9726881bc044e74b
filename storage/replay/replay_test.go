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

package replay

import (
	"context"
	"testing"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/engine/defaultengine"
	"github.com/lbhm/delta-kernel-go/file/deletionvector"
	"github.com/lbhm/delta-kernel-go/internal/testtable"
	"github.com/lbhm/delta-kernel-go/storage/logsegment"
	"github.com/lbhm/delta-kernel-go/storage/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReplayer(t *testing.T, tt *testtable.Table, version int64) *Replayer {
	e := defaultengine.New(tt.Fs)
	seg, err := logsegment.Resolve(context.Background(), e.Storage(), tt.Root, options.NewSnapshotOptions().SetVersion(version))
	require.NoError(t, err)
	return New(e.Storage(), e.Parser(), seg)
}

type liveFile struct {
	Path    string
	Version int64
	DvID    string
}

func liveFiles(t *testing.T, r *Replayer) []liveFile {
	it := r.Adds(context.Background())
	defer it.Close()
	var out []liveFile
	for it.Next() {
		out = append(out, liveFile{Path: it.Add().Path, Version: it.Version(), DvID: it.Add().Key().DvID})
	}
	require.NoError(t, it.Err())
	return out
}

func bootstrap(tt *testtable.Table) {
	tt.Commit(0,
		testtable.Protocol(1, 2),
		testtable.Metadata("tbl", testtable.SimpleSchema, nil, nil),
	)
}

func TestLastWriteWins(t *testing.T) {
	tt := testtable.New(t, "/t")
	bootstrap(tt)
	tt.Commit(1, testtable.Add("p1", nil, ""), testtable.Add("p2", nil, ""))
	tt.Commit(2, testtable.Remove("p1"))
	tt.Commit(3, testtable.Add("p1", nil, ""))

	assert.Equal(t, []liveFile{{Path: "p1", Version: 3}, {Path: "p2", Version: 1}}, liveFiles(t, newReplayer(t, tt, 3)))
	assert.Equal(t, []liveFile{{Path: "p2", Version: 1}}, liveFiles(t, newReplayer(t, tt, 2)))
	assert.Equal(t, []liveFile{{Path: "p1", Version: 1}, {Path: "p2", Version: 1}}, liveFiles(t, newReplayer(t, tt, 1)))
}

func TestCommitOverridesCheckpoint(t *testing.T) {
	tt := testtable.New(t, "/t")
	tt.Checkpoint(2,
		testtable.Protocol(1, 2),
		testtable.Metadata("old", testtable.SimpleSchema, nil, nil),
		testtable.Add("a", nil, ""),
		testtable.Add("b", nil, ""),
		testtable.Remove("gone"),
	)
	tt.Commit(2, testtable.CommitInfo(1))
	tt.Commit(3, testtable.Remove("a"), testtable.Metadata("new", testtable.SimpleSchema, nil, nil))
	tt.Commit(4, testtable.Add("c", nil, ""), testtable.Add("gone", nil, ""))

	r := newReplayer(t, tt, 4)
	assert.Equal(t, []liveFile{{Path: "c", Version: 4}, {Path: "gone", Version: 4}, {Path: "b", Version: 2}}, liveFiles(t, r))

	state, err := r.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", state.Metadata.ID)
	assert.Equal(t, 1, state.Protocol.MinReaderVersion)
}

func TestDeletionVectorKeys(t *testing.T) {
	tt := testtable.New(t, "/t")
	bootstrap(tt)
	inline, err := deletionvector.EncodeInline(deletionvector.FromSelectionVector([]bool{true, false, true}))
	require.NoError(t, err)
	off := int32(1)
	onDisk := &deletionvector.Descriptor{StorageType: "p", PathOrInlineDv: "file:///t/dv.bin", Offset: &off, SizeInBytes: 20, Cardinality: 1}

	tt.Commit(1, testtable.AddWithDv("f", onDisk, ""))
	tt.Commit(2, testtable.RemoveWithDv("f", onDisk), testtable.AddWithDv("f", inline, ""))

	got := liveFiles(t, newReplayer(t, tt, 2))
	require.Len(t, got, 1)
	assert.Equal(t, inline.UniqueID(), got[0].DvID)
	assert.Equal(t, int64(2), got[0].Version)

	// same path, different deletion vectors, both still live
	tt.Commit(3, testtable.Add("f", nil, ""))
	got = liveFiles(t, newReplayer(t, tt, 3))
	require.Len(t, got, 2)
	assert.Equal(t, "", got[0].DvID)
	assert.Equal(t, inline.UniqueID(), got[1].DvID)
}

func TestRestartable(t *testing.T) {
	tt := testtable.New(t, "/t")
	bootstrap(tt)
	tt.Commit(1, testtable.Add("a", nil, ""), testtable.Add("b", nil, ""))
	tt.Commit(2, testtable.Add("c", nil, ""))
	r := newReplayer(t, tt, 2)

	it := r.Adds(context.Background())
	require.True(t, it.Next())
	assert.Equal(t, "c", it.Add().Path)
	require.NoError(t, it.Close())
	assert.False(t, it.Next())
	assert.NoError(t, it.Close())

	assert.Len(t, liveFiles(t, r), 3)
	assert.Equal(t, liveFiles(t, r), liveFiles(t, r))
}

func TestParseErrorAbortsState(t *testing.T) {
	tt := testtable.New(t, "/t")
	bootstrap(tt)
	tt.CommitRaw(1, "{\"add\":{\"path\":\"a\",\"size\":1,\"modificationTime\":1,\"dataChange\":true}}\n{\"add\": oops}\n")
	r := newReplayer(t, tt, 1)

	_, err := r.State(context.Background())
	require.Error(t, err)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindParse, e.Kind)
	assert.Equal(t, utils.GetCommitFilePath("/t", 1), e.File)
	assert.Equal(t, 2, e.Line)

	it := r.Adds(context.Background())
	defer it.Close()
	require.True(t, it.Next())
	assert.False(t, it.Next())
	assert.True(t, errors.Is(it.Err(), errors.ErrParse))
}

func TestMissingProtocolOrMetadata(t *testing.T) {
	tt := testtable.New(t, "/t")
	tt.Commit(0, testtable.Protocol(1, 2))
	_, err := newReplayer(t, tt, 0).State(context.Background())
	assert.True(t, errors.Is(err, errors.ErrState))

	tt = testtable.New(t, "/t")
	tt.Commit(0, testtable.Metadata("tbl", testtable.SimpleSchema, nil, nil))
	_, err = newReplayer(t, tt, 0).State(context.Background())
	assert.True(t, errors.Is(err, errors.ErrState))
}

func TestUnsupportedProtocol(t *testing.T) {
	tt := testtable.New(t, "/t")
	tt.Commit(0, testtable.Protocol(3, 7, "unknownFeature"), testtable.Metadata("tbl", testtable.SimpleSchema, nil, nil))
	_, err := newReplayer(t, tt, 0).State(context.Background())
	assert.True(t, errors.Is(err, errors.ErrProtocol))

	// a newer protocol action shadows the unsupported one
	tt.Commit(1, testtable.Protocol(3, 7, "deletionVectors"))
	state, err := newReplayer(t, tt, 1).State(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Protocol.HasReaderFeature("deletionVectors"))
}

func TestTxnAndTimestamp(t *testing.T) {
	tt := testtable.New(t, "/t")
	tt.Checkpoint(1,
		testtable.Protocol(1, 2),
		testtable.Metadata("tbl", testtable.SimpleSchema, nil, nil),
		testtable.Txn("etl", 4),
		testtable.Txn("stream", 10),
	)
	tt.Commit(1, testtable.CommitInfo(100))
	tt.Commit(2, testtable.Txn("etl", 5), testtable.CommitInfo(200))
	tt.Commit(3, testtable.Add("x", nil, ""))

	state, err := newReplayer(t, tt, 2).State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"etl": 5, "stream": 10}, state.Txns)
	assert.Equal(t, int64(200), state.Timestamp)

	tt.Fs.SetModTime(utils.GetCommitFilePath("/t", 3), 300)
	state, err = newReplayer(t, tt, 3).State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(300), state.Timestamp)
}

func TestCancelledContext(t *testing.T) {
	tt := testtable.New(t, "/t")
	bootstrap(tt)
	r := newReplayer(t, tt, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.State(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

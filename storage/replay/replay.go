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

// Package replay reconciles the actions of a log segment into table state. Files are visited
// newest first and, within a file, in order; for every reconciled entity the first occurrence
// wins.
package replay

import (
	"context"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/engine"
	"github.com/lbhm/delta-kernel-go/storage/actions"
	"github.com/lbhm/delta-kernel-go/storage/logsegment"
)

// TableState is the non-file state of a table version.
type TableState struct {
	Protocol *actions.Protocol
	Metadata *actions.Metadata
	// Txns maps an application id to its latest transaction version.
	Txns map[string]int64
	// Timestamp is the commit timestamp of the newest version in milliseconds.
	Timestamp int64
	// NumActions counts every action read, live or not.
	NumActions int64
}

type Replayer struct {
	storage engine.StorageHandler
	parser  engine.ActionParser
	segment *logsegment.LogSegment
}

func New(storage engine.StorageHandler, parser engine.ActionParser, segment *logsegment.LogSegment) *Replayer {
	return &Replayer{storage: storage, parser: parser, segment: segment}
}

func (r *Replayer) Segment() *logsegment.LogSegment {
	return r.segment
}

// State reads every file of the segment once. It fails with a ParseError on malformed content,
// a StateError when protocol or metadata is missing and a ProtocolError when the table needs
// reader support this module lacks.
func (r *Replayer) State(ctx context.Context) (*TableState, error) {
	state := &TableState{Txns: make(map[string]int64)}
	it := r.actions(ctx)
	defer it.Close()

	tsFound := false
	for it.Next() {
		a := it.Action()
		state.NumActions++
		switch a.Kind {
		case actions.KindProtocol:
			if state.Protocol == nil {
				state.Protocol = a.Protocol
			}
		case actions.KindMetadata:
			if state.Metadata == nil {
				state.Metadata = a.Metadata
			}
		case actions.KindTxn:
			if _, ok := state.Txns[a.Txn.AppID]; !ok {
				state.Txns[a.Txn.AppID] = a.Txn.Version
			}
		case actions.KindCommitInfo:
			if !tsFound && it.file.Version == r.segment.EndVersion {
				state.Timestamp, tsFound = a.CommitInfo.EffectiveTimestamp()
			}
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	if state.Protocol == nil {
		return nil, errors.NewStateError("no protocol action found in log up to version %d", r.segment.EndVersion)
	}
	if state.Metadata == nil {
		return nil, errors.NewStateError("no metaData action found in log up to version %d", r.segment.EndVersion)
	}
	if err := state.Protocol.ValidateRead(); err != nil {
		return nil, err
	}
	if !tsFound {
		// no commit info: fall back to the modification time of the newest file
		if files := r.segment.Files(); len(files) > 0 {
			state.Timestamp = files[0].ModTime
		}
	}
	log.Debug("replayed table state",
		log.Int64("version", r.segment.EndVersion),
		log.Int64("actions", state.NumActions),
		log.Int("txns", len(state.Txns)))
	return state, nil
}

// Adds returns a fresh iterator over the live files. Each call replays the log from the
// newest commit again.
func (r *Replayer) Adds(ctx context.Context) *AddIterator {
	return &AddIterator{src: r.actions(ctx), seen: make(map[actions.Key]struct{})}
}

func (r *Replayer) actions(ctx context.Context) *fileActions {
	return &fileActions{ctx: ctx, storage: r.storage, parser: r.parser, files: r.segment.Files()}
}

// fileActions chains the action iterators of every segment file in replay order, opening
// each file only when the previous one is exhausted.
type fileActions struct {
	ctx     context.Context
	storage engine.StorageHandler
	parser  engine.ActionParser
	files   []logsegment.LogFile
	next    int
	file    logsegment.LogFile
	cur     actions.Iterator
	action  actions.Action
	err     error
	closed  bool
}

func (f *fileActions) open() bool {
	if err := f.ctx.Err(); err != nil {
		f.err = err
		return false
	}
	f.file = f.files[f.next]
	f.next++
	content, err := f.storage.ReadFile(f.ctx, f.file.Path)
	if err != nil {
		f.err = err
		return false
	}
	it, err := f.parser.ParseActions(f.file.Path, content)
	if err != nil {
		f.err = err
		return false
	}
	log.Trace("replaying log file", log.String("path", f.file.Path), log.Int64("version", f.file.Version))
	f.cur = it
	return true
}

func (f *fileActions) Next() bool {
	if f.closed || f.err != nil {
		return false
	}
	for {
		if f.cur == nil {
			if f.next >= len(f.files) {
				return false
			}
			if !f.open() {
				return false
			}
		}
		if f.cur.Next() {
			f.action = f.cur.Action()
			return true
		}
		err := f.cur.Err()
		f.cur.Close()
		f.cur = nil
		if err != nil {
			f.err = err
			return false
		}
	}
}

func (f *fileActions) Action() actions.Action {
	return f.action
}

func (f *fileActions) Err() error {
	return f.err
}

func (f *fileActions) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.cur != nil {
		err := f.cur.Close()
		f.cur = nil
		return err
	}
	return nil
}

// AddIterator yields the live Add actions of a segment. A path and deletion vector pair is
// live when the newest action naming it is an Add.
type AddIterator struct {
	src  *fileActions
	seen map[actions.Key]struct{}
	add  *actions.Add
	// Version of the file the current add was read from.
	version int64
}

func (it *AddIterator) Next() bool {
	for it.src.Next() {
		a := it.src.Action()
		var key actions.Key
		switch a.Kind {
		case actions.KindAdd:
			key = a.Add.Key()
		case actions.KindRemove:
			key = a.Remove.Key()
		default:
			continue
		}
		if _, ok := it.seen[key]; ok {
			continue
		}
		it.seen[key] = struct{}{}
		if a.Kind == actions.KindAdd {
			it.add = a.Add
			it.version = it.src.file.Version
			return true
		}
	}
	it.add = nil
	return false
}

func (it *AddIterator) Add() *actions.Add {
	return it.add
}

// Version is the log version that added the current file.
func (it *AddIterator) Version() int64 {
	return it.version
}

func (it *AddIterator) Err() error {
	return it.src.Err()
}

// Close releases the file being read. It is safe to call before the iterator is exhausted.
func (it *AddIterator) Close() error {
	it.seen = nil
	return it.src.Close()
}

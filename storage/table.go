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

package storage

import (
	"context"

	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/engine"
	"github.com/lbhm/delta-kernel-go/engine/defaultengine"
	"github.com/lbhm/delta-kernel-go/storage/logsegment"
	"github.com/lbhm/delta-kernel-go/storage/options"
)

// Table is a handle on a table root. It holds no state of its own: every Snapshot call
// resolves the log again.
type Table struct {
	root   string
	engine engine.Engine
	close  func() error
}

func NewTable(eng engine.Engine, root string) *Table {
	return &Table{root: root, engine: eng}
}

// Open builds the default engine for uri and returns the table rooted at the uri path.
// Supported schemes are file (or none), mem and s3.
func Open(uri string, opts ...defaultengine.Option) (*Table, error) {
	eng, err := defaultengine.NewFromURI(uri, opts...)
	if err != nil {
		return nil, err
	}
	root := eng.Fs().Path()
	log.Debug("open table", log.String("uri", uri), log.String("root", root))
	return &Table{root: root, engine: eng, close: eng.Close}, nil
}

func (t *Table) Root() string {
	return t.root
}

func (t *Table) Engine() engine.Engine {
	return t.engine
}

// Snapshot resolves the table at opts.Version. A nil opts selects the latest version.
func (t *Table) Snapshot(ctx context.Context, opts *options.SnapshotOptions) (*Snapshot, error) {
	segment, err := logsegment.Resolve(ctx, t.engine.Storage(), t.root, opts)
	if err != nil {
		return nil, err
	}
	return newSnapshot(ctx, t.engine, segment)
}

// SnapshotAt is Snapshot for one version with default options.
func (t *Table) SnapshotAt(ctx context.Context, version int64) (*Snapshot, error) {
	return t.Snapshot(ctx, options.NewSnapshotOptions().SetVersion(version))
}

// Close releases the engine created by Open. Snapshots taken earlier stay readable.
func (t *Table) Close() error {
	if t.close == nil {
		return nil
	}
	return t.close()
}

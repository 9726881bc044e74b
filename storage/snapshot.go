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

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/engine"
	"github.com/lbhm/delta-kernel-go/storage/actions"
	"github.com/lbhm/delta-kernel-go/storage/logsegment"
	"github.com/lbhm/delta-kernel-go/storage/replay"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

// Snapshot is the immutable state of a table at one version. Every accessor returns a value
// computed when the snapshot was built, so a Snapshot may be shared between goroutines.
type Snapshot struct {
	engine           engine.Engine
	segment          *logsegment.LogSegment
	state            *replay.TableState
	schema           *schema.Schema
	physicalSchema   *schema.Schema
	partitionColumns []string
	mappingMode      schema.ColumnMappingMode
}

func newSnapshot(ctx context.Context, eng engine.Engine, segment *logsegment.LogSegment) (*Snapshot, error) {
	r := replay.New(eng.Storage(), eng.Parser(), segment)
	state, err := r.State(ctx)
	if err != nil {
		return nil, err
	}
	md := state.Metadata

	sc, err := md.Schema()
	if err != nil {
		return nil, errors.Wrap(errors.KindParse, err, "table %s: invalid schemaString", md.ID)
	}
	mode, err := md.ColumnMappingMode()
	if err != nil {
		return nil, errors.Wrap(errors.KindParse, err, "table %s", md.ID)
	}
	physical, err := sc.Physical(mode)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, err, "table %s: physical schema", md.ID)
	}
	for _, c := range md.PartitionColumns {
		if _, ok := sc.Struct().Field(c); !ok {
			return nil, errors.NewStateError("partition column %q is not in the schema of table %s", c, md.ID)
		}
	}

	s := &Snapshot{
		engine:           eng,
		segment:          segment,
		state:            state,
		schema:           sc,
		physicalSchema:   physical,
		partitionColumns: append([]string{}, md.PartitionColumns...),
		mappingMode:      mode,
	}
	log.Info("loaded snapshot",
		log.String("table", segment.TableRoot),
		log.Int64("version", segment.EndVersion),
		log.String("columnMapping", mode.String()))
	return s, nil
}

func (s *Snapshot) Version() int64 {
	return s.segment.EndVersion
}

// Schema is the logical table schema.
func (s *Snapshot) Schema() *schema.Schema {
	return s.schema
}

// PhysicalSchema is the schema with column mapping applied, as stored in data files.
func (s *Snapshot) PhysicalSchema() *schema.Schema {
	return s.physicalSchema
}

func (s *Snapshot) PartitionColumns() []string {
	return append([]string{}, s.partitionColumns...)
}

func (s *Snapshot) TableRoot() string {
	return s.segment.TableRoot
}

// Protocol returns a copy of the protocol action in effect.
func (s *Snapshot) Protocol() actions.Protocol {
	return *s.state.Protocol.Clone()
}

// Metadata returns a copy of the metadata action in effect.
func (s *Snapshot) Metadata() actions.Metadata {
	return *s.state.Metadata.Clone()
}

// LogSegment returns a copy of the files the snapshot was built from.
func (s *Snapshot) LogSegment() *logsegment.LogSegment {
	return s.segment.Clone()
}

func (s *Snapshot) ColumnMappingMode() schema.ColumnMappingMode {
	return s.mappingMode
}

// TableProperties returns a copy of the table configuration.
func (s *Snapshot) TableProperties() map[string]string {
	out := make(map[string]string, len(s.state.Metadata.Configuration))
	for k, v := range s.state.Metadata.Configuration {
		out[k] = v
	}
	return out
}

// TxnVersion returns the latest transaction version recorded for an application.
func (s *Snapshot) TxnVersion(appID string) (int64, bool) {
	v, ok := s.state.Txns[appID]
	return v, ok
}

// Timestamp is the commit time of this version in milliseconds since the epoch.
func (s *Snapshot) Timestamp() int64 {
	return s.state.Timestamp
}

func (s *Snapshot) Engine() engine.Engine {
	return s.engine
}

// Adds replays the live files of this version. Each call starts a new pass over the log.
func (s *Snapshot) Adds(ctx context.Context) *replay.AddIterator {
	return replay.New(s.engine.Storage(), s.engine.Parser(), s.segment).Adds(ctx)
}

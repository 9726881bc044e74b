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

package options

import (
	"github.com/lbhm/delta-kernel-go/common/constant"
)

type FsType int8

const (
	InMemory FsType = iota
	LocalFS
	S3
)

// SnapshotOptions controls which version a snapshot resolves and how strictly.
type SnapshotOptions struct {
	// Version to load; constant.LatestVersion selects the newest commit.
	Version int64
	// AllowFullHistoryReplay lets resolution fall back to an older checkpoint, or to commit 0,
	// when the checkpoint named by _last_checkpoint cannot be found in the listing.
	AllowFullHistoryReplay bool
}

func NewSnapshotOptions() *SnapshotOptions {
	return &SnapshotOptions{Version: constant.LatestVersion}
}

func (o *SnapshotOptions) SetVersion(version int64) *SnapshotOptions {
	o.Version = version
	return o
}

// ScanOptions are the builder settings of a scan in plain form, as loaded from configuration.
type ScanOptions struct {
	Columns []string
	// Predicate in the text syntax of the expression handler; empty means none.
	Predicate string
	// BatchSize is the number of scan files per batch.
	BatchSize int
}

func NewScanOptions() *ScanOptions {
	return &ScanOptions{
		Columns:   make([]string, 0),
		BatchSize: constant.ScanBatchSize,
	}
}

func (o *ScanOptions) SetPredicate(text string) *ScanOptions {
	o.Predicate = text
	return o
}

func (o *ScanOptions) AddColumn(column string) {
	o.Columns = append(o.Columns, column)
}

func (o *ScanOptions) SetColumns(columns []string) {
	o.Columns = columns
}

func (o *ScanOptions) OutputColumns() []string {
	return o.Columns
}

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

package record_reader

import (
	"context"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/lbhm/delta-kernel-go/engine/defaultengine"
	"github.com/lbhm/delta-kernel-go/storage/scan"
)

// MakeRecordReader lists the files of s and reads them in scan order.
func MakeRecordReader(ctx context.Context, s *scan.Scan, eng *defaultengine.DefaultEngine) (*ScanRecordReader, error) {
	files, err := s.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return NewScanRecordReader(ctx, s, eng, files), nil
}

// ReadAll drains a scan into records owned by the caller.
func ReadAll(ctx context.Context, s *scan.Scan, eng *defaultengine.DefaultEngine) ([]arrow.Record, error) {
	rr, err := MakeRecordReader(ctx, s, eng)
	if err != nil {
		return nil, err
	}
	defer rr.Release()
	var out []arrow.Record
	for rr.Next() {
		rec := rr.Record()
		rec.Retain()
		out = append(out, rec)
	}
	if err := rr.Err(); err != nil {
		for _, rec := range out {
			rec.Release()
		}
		return nil, err
	}
	return out, nil
}

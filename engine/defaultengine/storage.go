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

package defaultengine

import (
	"context"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/engine"
	"github.com/lbhm/delta-kernel-go/io/fs"
)

var _ engine.StorageHandler = (*FsStorage)(nil)

// FsStorage serves the storage capability from an fs.Fs.
type FsStorage struct {
	fs fs.Fs
}

func NewFsStorage(f fs.Fs) *FsStorage {
	return &FsStorage{fs: f}
}

func (s *FsStorage) List(ctx context.Context, dir string) ([]fs.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.fs.List(dir)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) {
			return []fs.FileEntry{}, nil
		}
		return nil, errors.WrapFile(errors.KindStorage, err, dir, "list")
	}
	log.Trace("listed directory", log.String("dir", dir), log.Int("entries", len(entries)))
	return entries, nil
}

func (s *FsStorage) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFile(errors.KindStorage, err, path, "read")
	}
	return b, nil
}

func (s *FsStorage) ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := s.fs.ReadRange(path, offset, length)
	if err != nil {
		return nil, errors.WrapFile(errors.KindStorage, err, path, "read range [%d, %d)", offset, offset+length)
	}
	return b, nil
}

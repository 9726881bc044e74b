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


package file

import (
	"fmt"
	"os"

	"github.com/lbhm/delta-kernel-go/common/errors"
)

var _ File = (*LocalFile)(nil)

// LocalFile is a table file on local disk. An existing file is opened read-only. A missing
// one is created by the first Write, and reading it before then fails with ErrFileNotFound.
type LocalFile struct {
	path string
	file *os.File
	// set once Write created the file
	created bool
}

func (l *LocalFile) readable() (*os.File, error) {
	if l.file == nil {
		return nil, fmt.Errorf("open %s: %w", l.path, errors.ErrFileNotFound)
	}
	return l.file, nil
}

func (l *LocalFile) Read(p []byte) (int, error) {
	f, err := l.readable()
	if err != nil {
		return 0, err
	}
	return f.Read(p)
}

func (l *LocalFile) ReadAt(p []byte, off int64) (int, error) {
	f, err := l.readable()
	if err != nil {
		return 0, err
	}
	return f.ReadAt(p, off)
}

func (l *LocalFile) Seek(offset int64, whence int) (int64, error) {
	f, err := l.readable()
	if err != nil {
		return 0, err
	}
	return f.Seek(offset, whence)
}

func (l *LocalFile) Write(p []byte) (int, error) {
	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
		if err != nil {
			return 0, err
		}
		l.file, l.created = f, true
	}
	if !l.created {
		return 0, fmt.Errorf("write %s: %w", l.path, errors.ErrFileExists)
	}
	return l.file.Write(p)
}

func (l *LocalFile) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *LocalFile) Path() string {
	return l.path
}

// OpenLocalFile opens path for reading when it exists and for writing otherwise.
func OpenLocalFile(path string) (*LocalFile, error) {
	f, err := os.Open(path)
	if err == nil {
		return &LocalFile{path: path, file: f}, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	return &LocalFile{path: path}, nil
}

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

package fs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/io/fs/file"
)

var _ Fs = (*MemoryFs)(nil)

type memoryEntry struct {
	file    *file.MemoryFile
	modTime int64
}

type MemoryFs struct {
	mu    sync.RWMutex
	files map[string]*memoryEntry
	root  string
}

func (m *MemoryFs) OpenFile(path string) (file.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.files[path]; ok {
		return file.NewMemoryFile(e.file.Bytes()), nil
	}
	f := file.NewMemoryFile(nil)
	m.files[path] = &memoryEntry{file: f, modTime: time.Now().UnixMilli()}
	return f, nil
}

func (m *MemoryFs) Rename(src string, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[src]; !ok {
		return nil
	}
	m.files[dst] = m.files[src]
	delete(m.files, src)
	return nil
}

func (m *MemoryFs) DeleteFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *MemoryFs) CreateDir(path string) error {
	return nil
}

func (m *MemoryFs) List(dir string) ([]FileEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := strings.TrimSuffix(dir, "/") + "/"
	ret := make([]FileEntry, 0)
	for p, e := range m.files {
		if !strings.HasPrefix(p, prefix) || strings.Contains(p[len(prefix):], "/") {
			continue
		}
		ret = append(ret, FileEntry{Path: p, Size: e.file.Size(), ModTime: e.modTime})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Path < ret[j].Path })
	return ret, nil
}

func (m *MemoryFs) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, errors.ErrFileNotFound)
	}
	return append([]byte(nil), e.file.Bytes()...), nil
}

func (m *MemoryFs) ReadRange(path string, offset, length int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, errors.ErrFileNotFound)
	}
	b := e.file.Bytes()
	if offset < 0 || length < 0 || offset+length > int64(len(b)) {
		return nil, fmt.Errorf("read %s: range [%d, %d) out of bounds for size %d", path, offset, offset+length, len(b))
	}
	return append([]byte(nil), b[offset:offset+length]...), nil
}

func (m *MemoryFs) Exist(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *MemoryFs) Path() string {
	return m.root
}

// SetModTime overrides the recorded modification time of path.
func (m *MemoryFs) SetModTime(p string, millis int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.files[p]; ok {
		e.modTime = millis
	}
}

func NewMemoryFs() *MemoryFs {
	return &MemoryFs{
		files: make(map[string]*memoryEntry),
	}
}

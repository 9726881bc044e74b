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

package scan

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/file/deletionvector"
)

type dvKey struct {
	path   string
	offset int32
	size   int32
	id     string
}

func keyOf(d *deletionvector.Descriptor) dvKey {
	k := dvKey{path: d.PathOrInlineDv, size: d.SizeInBytes, id: d.UniqueID()}
	if d.Offset != nil {
		k.offset = *d.Offset
	}
	return k
}

type dvEntry struct {
	once sync.Once
	bm   *roaring64.Bitmap
	err  error
}

// DvCache decodes every deletion vector of a scan at most once, however many goroutines ask
// for it. A failed decode is cached too and only affects the files sharing that vector,
// except when the caller's context ended, which leaves the vector to be loaded again.
type DvCache struct {
	reader  deletionvector.RangeReader
	root    string
	mu      sync.Mutex
	entries map[dvKey]*dvEntry
	decodes atomic.Int64
}

func NewDvCache(reader deletionvector.RangeReader, root string) *DvCache {
	return &DvCache{reader: reader, root: root, entries: make(map[dvKey]*dvEntry)}
}

// Get returns the bitmap of deleted rows for d.
func (c *DvCache) Get(ctx context.Context, d *deletionvector.Descriptor) (*roaring64.Bitmap, error) {
	k := keyOf(d)
	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok {
		e = &dvEntry{}
		c.entries[k] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		c.decodes.Add(1)
		e.bm, e.err = deletionvector.Load(ctx, c.reader, c.root, d)
		if e.err != nil {
			log.Warn("deletion vector unreadable", log.String("id", k.id), log.Err(e.err))
		}
	})
	if errors.Is(e.err, context.Canceled) || errors.Is(e.err, context.DeadlineExceeded) {
		c.mu.Lock()
		if c.entries[k] == e {
			delete(c.entries, k)
		}
		c.mu.Unlock()
	}
	return e.bm, e.err
}

// SelectionVector expands d into numRows entries, false for deleted rows. A nil descriptor
// selects every row.
func (c *DvCache) SelectionVector(ctx context.Context, d *deletionvector.Descriptor, numRows int) ([]bool, error) {
	if d == nil {
		sel := make([]bool, numRows)
		for i := range sel {
			sel[i] = true
		}
		return sel, nil
	}
	bm, err := c.Get(ctx, d)
	if err != nil {
		return nil, err
	}
	return deletionvector.SelectionVector(bm, numRows, d.Cardinality)
}

// Decodes counts the deletion vectors actually loaded.
func (c *DvCache) Decodes() int64 {
	return c.decodes.Load()
}

func (c *DvCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every cached bitmap.
func (c *DvCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[dvKey]*dvEntry)
	c.mu.Unlock()
}

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
	"testing"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/file/deletionvector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxReader []byte

func (r ctxReader) ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r[offset : offset+length], nil
}

func TestDvCacheRetriesAfterCancel(t *testing.T) {
	bm := roaring64.New()
	bm.AddMany([]uint64{1})
	data, blocks, err := deletionvector.EncodeFile([]*roaring64.Bitmap{bm})
	require.NoError(t, err)
	d := &deletionvector.Descriptor{StorageType: deletionvector.StorageAbsolutePath, PathOrInlineDv: "/dv.bin",
		Offset: &blocks[0].Offset, SizeInBytes: blocks[0].SizeInBytes, Cardinality: 1}

	c := NewDvCache(ctxReader(data), "/")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.SelectionVector(ctx, d, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, c.Len())

	sel, err := c.SelectionVector(context.Background(), d, 3)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, sel)
	assert.Equal(t, int64(2), c.Decodes())

	_, err = c.SelectionVector(context.Background(), d, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Decodes())
	assert.Equal(t, 1, c.Len())
}

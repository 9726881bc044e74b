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

package deletionvector

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/tilinna/z85"
)

const (
	magicLen    = 4
	sizeLen     = 4
	checksumLen = 4
	versionLen  = 1
)

// RangeReader is the slice of the storage capability deletion vectors need.
type RangeReader interface {
	ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error)
}

// DecodeBitmap parses a magic-prefixed portable 64-bit roaring bitmap.
func DecodeBitmap(payload []byte) (*roaring64.Bitmap, error) {
	if len(payload) < magicLen {
		return nil, errors.NewDeletionVectorError("bitmap payload of %d bytes is too short", len(payload))
	}
	if magic := binary.LittleEndian.Uint32(payload); magic != constant.DeletionVectorMagic {
		return nil, errors.NewDeletionVectorError("bad bitmap magic %d", magic)
	}
	bm := roaring64.New()
	if _, err := bm.ReadFrom(bytes.NewReader(payload[magicLen:])); err != nil {
		return nil, errors.Wrap(errors.KindDeletionVector, err, "decode roaring bitmap")
	}
	return bm, nil
}

// EncodeBitmap is the inverse of DecodeBitmap.
func EncodeBitmap(bm *roaring64.Bitmap) ([]byte, error) {
	var buf bytes.Buffer
	var magic [magicLen]byte
	binary.LittleEndian.PutUint32(magic[:], constant.DeletionVectorMagic)
	buf.Write(magic[:])
	if _, err := bm.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInline decodes the Z85 payload of an "i" descriptor.
func DecodeInline(d *Descriptor) (*roaring64.Bitmap, error) {
	if !d.IsInline() {
		return nil, errors.NewDeletionVectorError("descriptor %s is not inline", d.UniqueID())
	}
	encoded := []byte(d.PathOrInlineDv)
	if len(encoded)%5 != 0 {
		return nil, errors.NewDeletionVectorError("inline payload length %d is not a multiple of 5", len(encoded))
	}
	buf := make([]byte, z85.DecodedLen(len(encoded)))
	n, err := z85.Decode(buf, encoded)
	if err != nil {
		return nil, errors.Wrap(errors.KindDeletionVector, err, "decode inline payload")
	}
	if int(d.SizeInBytes) > n {
		return nil, errors.NewDeletionVectorError("inline payload holds %d bytes, descriptor claims %d", n, d.SizeInBytes)
	}
	return DecodeBitmap(buf[:d.SizeInBytes])
}

// EncodeInline builds an "i" descriptor holding bm.
func EncodeInline(bm *roaring64.Bitmap) (*Descriptor, error) {
	payload, err := EncodeBitmap(bm)
	if err != nil {
		return nil, err
	}
	size := len(payload)
	if pad := size % 4; pad != 0 {
		payload = append(payload, make([]byte, 4-pad)...)
	}
	encoded := make([]byte, z85.EncodedLen(len(payload)))
	if _, err := z85.Encode(encoded, payload); err != nil {
		return nil, err
	}
	return &Descriptor{
		StorageType:    StorageInline,
		PathOrInlineDv: string(encoded),
		SizeInBytes:    int32(size),
		Cardinality:    int64(bm.GetCardinality()),
	}, nil
}

// ReadFile loads the bitmap of an on-disk descriptor: the version byte at the start of the file,
// then at offset a big-endian length, the payload and its big-endian CRC32.
func ReadFile(ctx context.Context, reader RangeReader, root string, d *Descriptor) (*roaring64.Bitmap, error) {
	p, err := d.AbsolutePath(root)
	if err != nil {
		return nil, err
	}
	head, err := reader.ReadRange(ctx, p, 0, versionLen)
	if err != nil {
		return nil, errors.WrapFile(errors.KindDeletionVector, err, p, "read format version")
	}
	if len(head) != versionLen {
		return nil, errors.NewDeletionVectorError("%s is empty", p)
	}
	if head[0] != constant.DeletionVectorVersion {
		return nil, errors.NewDeletionVectorError("unsupported format version %d in %s", head[0], p)
	}
	offset := int64(versionLen)
	if d.Offset != nil {
		offset = int64(*d.Offset)
	}
	if d.SizeInBytes < 0 || offset < versionLen {
		return nil, errors.NewDeletionVectorError("bad block bounds (offset %d, size %d) for %s", offset, d.SizeInBytes, p)
	}
	want := sizeLen + int64(d.SizeInBytes) + checksumLen
	block, err := reader.ReadRange(ctx, p, offset, want)
	if err != nil {
		return nil, errors.WrapFile(errors.KindDeletionVector, err, p, "read block at offset %d", offset)
	}
	if int64(len(block)) != want {
		return nil, errors.NewDeletionVectorError("short block at offset %d of %s: read %d of %d bytes", offset, p, len(block), want)
	}
	size := binary.BigEndian.Uint32(block)
	if int64(size) != int64(d.SizeInBytes) {
		return nil, errors.NewDeletionVectorError("block at offset %d of %s holds %d bytes, descriptor claims %d", offset, p, size, d.SizeInBytes)
	}
	payload := block[sizeLen : sizeLen+size]
	sum := binary.BigEndian.Uint32(block[sizeLen+size:])
	if got := crc32.ChecksumIEEE(payload); got != sum {
		return nil, errors.NewDeletionVectorError("checksum mismatch at offset %d of %s: got %08x, want %08x", offset, p, got, sum)
	}
	log.Trace("deletion vector block read", log.String("path", p), log.Int64("offset", offset), log.Int("size", int(size)))
	return DecodeBitmap(payload)
}

// Block is one encoded bitmap of a deletion vector file.
type Block struct {
	Offset      int32
	SizeInBytes int32
	Cardinality int64
}

// EncodeFile lays bitmaps out as a deletion vector file.
func EncodeFile(bitmaps []*roaring64.Bitmap) ([]byte, []Block, error) {
	var buf bytes.Buffer
	buf.WriteByte(constant.DeletionVectorVersion)
	blocks := make([]Block, 0, len(bitmaps))
	for _, bm := range bitmaps {
		payload, err := EncodeBitmap(bm)
		if err != nil {
			return nil, nil, err
		}
		blocks = append(blocks, Block{
			Offset:      int32(buf.Len()),
			SizeInBytes: int32(len(payload)),
			Cardinality: int64(bm.GetCardinality()),
		})
		var word [4]byte
		binary.BigEndian.PutUint32(word[:], uint32(len(payload)))
		buf.Write(word[:])
		buf.Write(payload)
		binary.BigEndian.PutUint32(word[:], crc32.ChecksumIEEE(payload))
		buf.Write(word[:])
	}
	return buf.Bytes(), blocks, nil
}

// Load resolves d to its bitmap regardless of storage type.
func Load(ctx context.Context, reader RangeReader, root string, d *Descriptor) (*roaring64.Bitmap, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.IsInline() {
		return DecodeInline(d)
	}
	return ReadFile(ctx, reader, root, d)
}

// SelectionVector expands bm into one entry per row, false for deleted rows. The bitmap must
// hold exactly cardinality rows, all below numRows.
func SelectionVector(bm *roaring64.Bitmap, numRows int, cardinality int64) ([]bool, error) {
	if got := int64(bm.GetCardinality()); got != cardinality {
		return nil, errors.NewDeletionVectorError("bitmap holds %d rows, descriptor claims %d", got, cardinality)
	}
	if !bm.IsEmpty() && bm.Maximum() >= uint64(numRows) {
		return nil, errors.NewDeletionVectorError("deleted row %d is beyond row count %d", bm.Maximum(), numRows)
	}
	sel := make([]bool, numRows)
	for i := range sel {
		sel[i] = true
	}
	it := bm.Iterator()
	for it.HasNext() {
		sel[it.Next()] = false
	}
	return sel, nil
}

// FromSelectionVector collects the deleted rows of sel.
func FromSelectionVector(sel []bool) *roaring64.Bitmap {
	bm := roaring64.New()
	for i, keep := range sel {
		if !keep {
			bm.Add(uint64(i))
		}
	}
	return bm
}

// DeletedRows lists the deleted row indexes in ascending order.
func DeletedRows(bm *roaring64.Bitmap) []uint64 {
	return bm.ToArray()
}

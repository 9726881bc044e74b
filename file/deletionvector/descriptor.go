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
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/tilinna/z85"
)

const (
	StorageInline       = "i"
	StorageRelativePath = "u"
	StorageAbsolutePath = "p"

	// A relative descriptor ends with the Z85 form of a 16-byte UUID.
	encodedUUIDLen = 20
)

// Descriptor locates a deletion vector, as carried by add and remove actions.
type Descriptor struct {
	StorageType    string `json:"storageType"`
	PathOrInlineDv string `json:"pathOrInlineDv"`
	Offset         *int32 `json:"offset,omitempty"`
	SizeInBytes    int32  `json:"sizeInBytes"`
	Cardinality    int64  `json:"cardinality"`
}

// UniqueID identifies the deletion vector within a table.
func (d *Descriptor) UniqueID() string {
	if d == nil {
		return ""
	}
	id := d.StorageType + d.PathOrInlineDv
	if d.Offset != nil {
		id += "@" + strconv.FormatInt(int64(*d.Offset), 10)
	}
	return id
}

func (d *Descriptor) IsInline() bool {
	return d.StorageType == StorageInline
}

func (d *Descriptor) Validate() error {
	switch d.StorageType {
	case StorageInline, StorageRelativePath, StorageAbsolutePath:
	default:
		return errors.NewDeletionVectorError("unknown storage type %q", d.StorageType)
	}
	if d.SizeInBytes < 0 || d.Cardinality < 0 {
		return errors.NewDeletionVectorError("negative size or cardinality in %s", d.UniqueID())
	}
	if d.StorageType == StorageRelativePath && len(d.PathOrInlineDv) < encodedUUIDLen {
		return errors.NewDeletionVectorError("relative path %q is too short", d.PathOrInlineDv)
	}
	return nil
}

// AbsolutePath resolves an on-disk descriptor against the table root.
func (d *Descriptor) AbsolutePath(root string) (string, error) {
	switch d.StorageType {
	case StorageAbsolutePath:
		return utils.ResolvePath("", d.PathOrInlineDv)
	case StorageRelativePath:
		if len(d.PathOrInlineDv) < encodedUUIDLen {
			return "", errors.NewDeletionVectorError("relative path %q is too short", d.PathOrInlineDv)
		}
		split := len(d.PathOrInlineDv) - encodedUUIDLen
		prefix := d.PathOrInlineDv[:split]
		id, err := decodeUUID(d.PathOrInlineDv[split:])
		if err != nil {
			return "", errors.Wrap(errors.KindDeletionVector, err, "decode uuid of %s", d.UniqueID())
		}
		return utils.GetDeletionVectorPath(root, prefix, id), nil
	default:
		return "", errors.NewDeletionVectorError("storage type %q has no path", d.StorageType)
	}
}

func decodeUUID(encoded string) (uuid.UUID, error) {
	buf := make([]byte, z85.DecodedLen(len(encoded)))
	n, err := z85.Decode(buf, []byte(encoded))
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.FromBytes(buf[:n])
}

// NewRelativeDescriptor builds a "u" descriptor for a file written by EncodeFile.
func NewRelativeDescriptor(prefix string, id uuid.UUID, offset, size int32, cardinality int64) (*Descriptor, error) {
	encoded := make([]byte, z85.EncodedLen(len(id)))
	if _, err := z85.Encode(encoded, id[:]); err != nil {
		return nil, fmt.Errorf("encode uuid: %w", err)
	}
	return &Descriptor{
		StorageType:    StorageRelativePath,
		PathOrInlineDv: prefix + string(encoded),
		Offset:         &offset,
		SizeInBytes:    size,
		Cardinality:    cardinality,
	}, nil
}

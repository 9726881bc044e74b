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
	"bytes"
	"context"
	"fmt"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/minio/minio-go/v7"
)

var _ File = (*MinioFile)(nil)

// MinioFile is one object of a bucket. An existing object is read through minio's ranged
// reader. A missing key buffers writes in memory and uploads them on Close; closing it
// without a Write uploads nothing.
type MinioFile struct {
	client *minio.Client
	bucket string
	key    string
	object *minio.Object
	buf    *MemoryFile
	dirty  bool
}

func (f *MinioFile) readable() (*minio.Object, error) {
	if f.object == nil {
		return nil, fmt.Errorf("open %s/%s: %w", f.bucket, f.key, errors.ErrFileNotFound)
	}
	return f.object, nil
}

func (f *MinioFile) Read(p []byte) (int, error) {
	o, err := f.readable()
	if err != nil {
		return 0, err
	}
	return o.Read(p)
}

func (f *MinioFile) ReadAt(p []byte, off int64) (int, error) {
	o, err := f.readable()
	if err != nil {
		return 0, err
	}
	return o.ReadAt(p, off)
}

func (f *MinioFile) Seek(offset int64, whence int) (int64, error) {
	o, err := f.readable()
	if err != nil {
		return 0, err
	}
	return o.Seek(offset, whence)
}

func (f *MinioFile) Write(p []byte) (int, error) {
	if f.object != nil {
		return 0, fmt.Errorf("write %s/%s: %w", f.bucket, f.key, errors.ErrFileExists)
	}
	f.dirty = true
	return f.buf.Write(p)
}

func (f *MinioFile) Close() error {
	if f.object != nil {
		return f.object.Close()
	}
	if !f.dirty {
		return nil
	}
	b := f.buf.Bytes()
	_, err := f.client.PutObject(context.TODO(), f.bucket, f.key, bytes.NewReader(b), int64(len(b)), minio.PutObjectOptions{})
	return err
}

// OpenMinioFile stats key and opens it for reading when it exists and for writing otherwise.
func OpenMinioFile(ctx context.Context, client *minio.Client, bucket string, key string) (*MinioFile, error) {
	f := &MinioFile{client: client, bucket: bucket, key: key}
	if _, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return nil, err
		}
		f.buf = NewMemoryFile(nil)
		return f, nil
	}
	object, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	f.object = object
	return f, nil
}

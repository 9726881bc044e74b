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
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/io/fs/file"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Fs = (*MinioFs)(nil)

// MinioFs serves a table stored under a key prefix of one S3-compatible bucket.
type MinioFs struct {
	client     *minio.Client
	bucketName string
	path       string
}

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (fs *MinioFs) OpenFile(path string) (file.File, error) {
	f, err := file.OpenMinioFile(context.TODO(), fs.client, fs.bucketName, path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Rename copies src to dst and then removes src. A failed removal leaves both objects.
func (fs *MinioFs) Rename(src string, dst string) error {
	ctx := context.TODO()
	_, err := fs.client.CopyObject(ctx, minio.CopyDestOptions{Bucket: fs.bucketName, Object: dst}, minio.CopySrcOptions{Bucket: fs.bucketName, Object: src})
	if err != nil {
		return err
	}
	if err := fs.client.RemoveObject(ctx, fs.bucketName, src, minio.RemoveObjectOptions{}); err != nil {
		log.Warn("failed to remove source object", log.String("source", src), log.Err(err))
	}
	return nil
}

func (fs *MinioFs) DeleteFile(path string) error {
	return fs.client.RemoveObject(context.TODO(), fs.bucketName, path, minio.RemoveObjectOptions{})
}

// CreateDir is a no-op: object stores have no directories.
func (fs *MinioFs) CreateDir(path string) error {
	return nil
}

func (fs *MinioFs) List(dir string) ([]FileEntry, error) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	entries := make([]FileEntry, 0)
	for obj := range fs.client.ListObjects(context.TODO(), fs.bucketName, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			log.Warn("list objects failed", log.String("prefix", prefix), log.Err(obj.Err))
			return nil, obj.Err
		}
		// common prefixes come back as keys ending in a slash
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		entries = append(entries, FileEntry{Path: obj.Key, Size: obj.Size, ModTime: obj.LastModified.UnixMilli()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (fs *MinioFs) ReadFile(path string) ([]byte, error) {
	obj, err := fs.client.GetObject(context.TODO(), fs.bucketName, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	// GetObject is lazy: a missing key only surfaces on the first read
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("read %s: %w", path, errors.ErrFileNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (fs *MinioFs) ReadRange(path string, offset, length int64) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(offset, offset+length-1); err != nil {
		return nil, err
	}
	obj, err := fs.client.GetObject(context.TODO(), fs.bucketName, path, opts)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	buf := make([]byte, length)
	if _, err := io.ReadFull(obj, buf); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("read %s: %w", path, errors.ErrFileNotFound)
		}
		return nil, fmt.Errorf("read %s: range [%d, %d): %w", path, offset, offset+length, err)
	}
	return buf, nil
}

func (fs *MinioFs) Exist(path string) (bool, error) {
	_, err := fs.client.StatObject(context.TODO(), fs.bucketName, path, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Path is the table prefix inside the bucket.
func (fs *MinioFs) Path() string {
	return fs.path
}

// NewMinioFs connects to the bucket named by uri, of the form
//
//	s3://access:secret@bucket/table/path?endpoint_override=localhost%3A9000&use_ssl=true&region=us-east-1
//
// The bucket must exist.
func NewMinioFs(uri *url.URL) (*MinioFs, error) {
	accessKey := uri.User.Username()
	secretAccessKey, set := uri.User.Password()
	if !set {
		log.Warn("secret access key not set")
	}
	query := uri.Query()
	endpoint := query.Get(constant.EndpointOverride)
	if endpoint == "" {
		return nil, errors.ErrNoEndpoint
	}
	useSSL, _ := strconv.ParseBool(query.Get(constant.UseSSL))

	cli, err := minio.New(endpoint, &minio.Options{
		BucketLookup: minio.BucketLookupAuto,
		Creds:        credentials.NewStaticV4(accessKey, secretAccessKey, ""),
		Secure:       useSSL,
		Region:       query.Get(constant.Region),
	})
	if err != nil {
		return nil, err
	}

	bucket := uri.Host
	path := strings.TrimSuffix(strings.TrimPrefix(uri.Path, "/"), "/")
	log.Info("open object store table",
		log.String("endpoint", endpoint),
		log.String("bucket", bucket),
		log.String("path", path),
		log.Bool("ssl", useSSL))

	exist, err := cli.BucketExists(context.TODO(), bucket)
	if err != nil {
		return nil, err
	}
	if !exist {
		return nil, fmt.Errorf("bucket %s: %w", bucket, errors.ErrFileNotFound)
	}
	return &MinioFs{client: cli, bucketName: bucket, path: path}, nil
}

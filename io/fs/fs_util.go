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
	"net/url"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/storage/options"
)

// BuildFileSystem picks a file system by URI scheme: file (or none), mem and s3.
// The returned Fs reports the table root through Path.
func BuildFileSystem(uri string) (Fs, error) {
	parsedUri, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("build file system %q: %w", uri, errors.ErrInvalidPath)
	}
	switch parsedUri.Scheme {
	case "file", "":
		return NewFsFactory().Create(options.LocalFS, parsedUri)
	case "mem", "memory":
		return NewFsFactory().Create(options.InMemory, parsedUri)
	case "s3":
		return NewFsFactory().Create(options.S3, parsedUri)
	default:
		return nil, fmt.Errorf("build file system: unknown scheme %q", parsedUri.Scheme)
	}
}

// WriteFile replaces the content at path.
func WriteFile(f Fs, path string, data []byte) error {
	exist, err := f.Exist(path)
	if err != nil {
		return err
	}
	if exist {
		if err := f.DeleteFile(path); err != nil {
			return err
		}
	}
	out, err := f.OpenFile(path)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

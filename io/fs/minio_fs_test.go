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

package fs_test

import (
	"io"
	"os"
	"testing"

	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/io/fs"
	"github.com/stretchr/testify/suite"
)

// Runs against a live server, e.g.
// DELTA_KERNEL_MINIO_URI="s3://minioadmin:minioadmin@default/?endpoint_override=localhost%3A9000"
const minioURIEnv = "DELTA_KERNEL_MINIO_URI"

type MinioFsTestSuite struct {
	suite.Suite
	fs fs.Fs
}

func (suite *MinioFsTestSuite) SetupSuite() {
	uri := os.Getenv(minioURIEnv)
	if uri == "" {
		suite.T().Skipf("%s not set", minioURIEnv)
	}
	fs, err := fs.BuildFileSystem(uri)
	suite.Require().NoError(err)
	suite.fs = fs
}

func (suite *MinioFsTestSuite) write(path string, data []byte) {
	suite.Require().NoError(fs.WriteFile(suite.fs, path, data))
}

func (suite *MinioFsTestSuite) TestMinioOpenFile() {
	suite.write("a", []byte{1})

	file, err := suite.fs.OpenFile("a")
	suite.NoError(err)
	buf := make([]byte, 10)
	n, err := file.Read(buf)
	suite.Equal(io.EOF, err)
	suite.Equal(1, n)
	suite.ElementsMatch(buf[:n], []byte{1})
	suite.NoError(file.Close())
}

func (suite *MinioFsTestSuite) TestMinioOpenMissing() {
	file, err := suite.fs.OpenFile("never-written")
	suite.Require().NoError(err)
	_, err = file.Read(make([]byte, 1))
	suite.ErrorIs(err, errors.ErrFileNotFound)
	suite.NoError(file.Close())

	exist, err := suite.fs.Exist("never-written")
	suite.NoError(err)
	suite.False(exist)
}

func (suite *MinioFsTestSuite) TestMinioRename() {
	suite.write("a", []byte{1})

	err := suite.fs.Rename("a", "b")
	suite.NoError(err)

	content, err := suite.fs.ReadFile("b")
	suite.NoError(err)
	suite.EqualValues([]byte{1}, content)
}

func (suite *MinioFsTestSuite) TestMinioFsDeleteFile() {
	suite.write("a", []byte{1})

	err := suite.fs.DeleteFile("a")
	suite.NoError(err)

	exist, err := suite.fs.Exist("a")
	suite.NoError(err)
	suite.False(exist)
}

func (suite *MinioFsTestSuite) TestMinioFsList() {
	suite.write("t/_delta_log/00000000000000000000.json", []byte{1})
	suite.write("t/_delta_log/sub/x", []byte{1, 2})

	entries, err := suite.fs.List("t/_delta_log")
	suite.NoError(err)
	suite.Len(entries, 1)
	suite.Equal("t/_delta_log/00000000000000000000.json", entries[0].Path)
	suite.EqualValues(1, entries[0].Size)
}

func (suite *MinioFsTestSuite) TestMinioFsReadRange() {
	suite.write("r", []byte{1, 2, 3, 4, 5})

	content, err := suite.fs.ReadRange("r", 1, 3)
	suite.NoError(err)
	suite.EqualValues([]byte{2, 3, 4}, content)
}

func (suite *MinioFsTestSuite) TestMinioFsMissing() {
	_, err := suite.fs.ReadFile("missing")
	suite.ErrorIs(err, errors.ErrFileNotFound)
	_, err = suite.fs.ReadRange("missing", 0, 4)
	suite.ErrorIs(err, errors.ErrFileNotFound)
}

func (suite *MinioFsTestSuite) TestMinioFsExist() {
	exist, err := suite.fs.Exist("nonexist")
	suite.NoError(err)
	suite.False(exist)

	suite.write("exist", []byte{1})

	exist, err = suite.fs.Exist("exist")
	suite.NoError(err)
	suite.True(exist)
}

func TestMinioFsSuite(t *testing.T) {
	suite.Run(t, &MinioFsTestSuite{})
}

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

package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/google/uuid"
	"github.com/lbhm/delta-kernel-go/common/constant"
)

type LogFileType int8

const (
	UnknownLogFile LogFileType = iota
	CommitFile
	CheckpointFile
	MultiPartCheckpointFile
)

func (t LogFileType) String() string {
	switch t {
	case CommitFile:
		return "commit"
	case CheckpointFile:
		return "checkpoint"
	case MultiPartCheckpointFile:
		return "multi-part checkpoint"
	default:
		return "unknown"
	}
}

// LogFileName is a parsed _delta_log entry name. Part and NumParts are 1 for single-file checkpoints
// and 0 for commits.
type LogFileName struct {
	Type     LogFileType
	Version  int64
	Part     int
	NumParts int
	Parquet  bool
}

var (
	commitPattern     = regexp.MustCompile(`^(\d{20})\.json$`)
	checkpointPattern = regexp.MustCompile(`^(\d{20})\.checkpoint\.(parquet|json)$`)
	multiPartPattern  = regexp.MustCompile(`^(\d{20})\.checkpoint\.(\d{10})\.(\d{10})\.parquet$`)
)

// ParseLogFileName recognizes commit and checkpoint names. Any other name, including the
// _last_checkpoint hint and checksum files, yields false.
func ParseLogFileName(name string) (LogFileName, bool) {
	if m := commitPattern.FindStringSubmatch(name); m != nil {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return LogFileName{}, false
		}
		return LogFileName{Type: CommitFile, Version: v}, true
	}
	if m := checkpointPattern.FindStringSubmatch(name); m != nil {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return LogFileName{}, false
		}
		return LogFileName{Type: CheckpointFile, Version: v, Part: 1, NumParts: 1, Parquet: m[2] == "parquet"}, true
	}
	if m := multiPartPattern.FindStringSubmatch(name); m != nil {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return LogFileName{}, false
		}
		part, _ := strconv.Atoi(m[2])
		parts, _ := strconv.Atoi(m[3])
		if parts < 1 || part < 1 || part > parts {
			return LogFileName{}, false
		}
		return LogFileName{Type: MultiPartCheckpointFile, Version: v, Part: part, NumParts: parts, Parquet: true}, true
	}
	return LogFileName{}, false
}

// ParseVersionFromFileName returns the version of a commit or checkpoint name, or -1.
func ParseVersionFromFileName(name string) int64 {
	parsed, ok := ParseLogFileName(name)
	if !ok {
		return -1
	}
	return parsed.Version
}

func GetLogDir(root string) string {
	return path.Join(root, constant.LogDir)
}

func GetLastCheckpointPath(root string) string {
	return path.Join(GetLogDir(root), constant.LastCheckpointFile)
}

func GetCommitFilePath(root string, version int64) string {
	return path.Join(GetLogDir(root), fmt.Sprintf("%0*d%s", constant.VersionDigits, version, constant.CommitFileSuffix))
}

func GetCheckpointFilePath(root string, version int64) string {
	return path.Join(GetLogDir(root), fmt.Sprintf("%0*d%s%s", constant.VersionDigits, version, constant.CheckpointInfix, constant.ParquetFileSuffix))
}

func GetMultiPartCheckpointFilePath(root string, version int64, part, numParts int) string {
	return path.Join(GetLogDir(root), fmt.Sprintf("%0*d%s.%0*d.%0*d%s",
		constant.VersionDigits, version, constant.CheckpointInfix,
		constant.CheckpointPartDigits, part, constant.CheckpointPartDigits, numParts, constant.ParquetFileSuffix))
}

// GetDeletionVectorPath builds <root>/<prefix>/deletion_vector_<uuid>.bin.
func GetDeletionVectorPath(root string, prefix string, id uuid.UUID) string {
	return path.Join(root, prefix, constant.DeletionVectorPrefix+id.String()+constant.DeletionVectorSuffix)
}

// ResolvePath turns a path from an action into a file system path. Relative paths are
// URL-encoded and relative to the table root; absolute URIs keep only their path component.
func ResolvePath(root string, p string) (string, error) {
	if strings.Contains(p, "://") {
		u, err := url.Parse(p)
		if err != nil {
			return "", err
		}
		if u.Scheme == "s3" || u.Scheme == "s3a" {
			return strings.TrimPrefix(u.Path, "/"), nil
		}
		return u.Path, nil
	}
	if strings.HasPrefix(p, "/") {
		return p, nil
	}
	unescaped, err := url.PathUnescape(p)
	if err != nil {
		return "", err
	}
	if root == "" {
		return unescaped, nil
	}
	return path.Join(root, unescaped), nil
}

// ProjectSchema keeps the named columns of schema in the given order; unknown names are skipped.
func ProjectSchema(schema *arrow.Schema, columns []string) *arrow.Schema {
	if len(columns) == 0 {
		return schema
	}
	fields := make([]arrow.Field, 0, len(columns))
	for _, column := range columns {
		if idx := schema.FieldIndices(column); len(idx) > 0 {
			fields = append(fields, schema.Field(idx[0]))
		}
	}
	md := schema.Metadata()
	return arrow.NewSchema(fields, &md)
}

// MarshalValue renders row i of arr as a single JSON value, in the form arrow's own
// array marshaling produces.
func MarshalValue(arr arrow.Array, i int) (json.RawMessage, error) {
	row := array.NewSlice(arr, int64(i), int64(i+1))
	defer row.Release()
	b, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var vals []json.RawMessage
	if err := json.Unmarshal(b, &vals); err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("marshal row %d: got %d values", i, len(vals))
	}
	return vals[0], nil
}

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

package actions

import (
	"encoding/json"
	"fmt"

	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/file/deletionvector"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

type Kind int8

const (
	KindAdd Kind = iota
	KindRemove
	KindMetadata
	KindProtocol
	KindTxn
	KindCommitInfo
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindRemove:
		return "remove"
	case KindMetadata:
		return "metaData"
	case KindProtocol:
		return "protocol"
	case KindTxn:
		return "txn"
	default:
		return "commitInfo"
	}
}

// Action is one log entry; exactly the pointer matching Kind is set.
type Action struct {
	Kind       Kind
	Add        *Add
	Remove     *Remove
	Metadata   *Metadata
	Protocol   *Protocol
	Txn        *Txn
	CommitInfo *CommitInfo
}

// StringMap decodes either a JSON object or the [{"key":..,"value":..}] form checkpoints use
// for map columns. Null values are dropped.
type StringMap map[string]string

func (m StringMap) clone() StringMap {
	if m == nil {
		return nil
	}
	out := make(StringMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

func (m *StringMap) UnmarshalJSON(b []byte) error {
	var obj map[string]*string
	if err := json.Unmarshal(b, &obj); err == nil {
		out := make(StringMap, len(obj))
		for k, v := range obj {
			if v != nil {
				out[k] = *v
			}
		}
		*m = out
		return nil
	}
	var entries []struct {
		Key   string  `json:"key"`
		Value *string `json:"value"`
	}
	if err := json.Unmarshal(b, &entries); err != nil {
		return fmt.Errorf("expected an object or key/value list: %w", err)
	}
	out := make(StringMap, len(entries))
	for _, e := range entries {
		if e.Value != nil {
			out[e.Key] = *e.Value
		}
	}
	*m = out
	return nil
}

type Add struct {
	Path                    string                     `json:"path"`
	PartitionValues         StringMap                  `json:"partitionValues"`
	Size                    int64                      `json:"size"`
	ModificationTime        int64                      `json:"modificationTime"`
	DataChange              bool                       `json:"dataChange"`
	Stats                   string                     `json:"stats,omitempty"`
	Tags                    StringMap                  `json:"tags,omitempty"`
	DeletionVector          *deletionvector.Descriptor `json:"deletionVector,omitempty"`
	BaseRowID               *int64                     `json:"baseRowId,omitempty"`
	DefaultRowCommitVersion *int64                     `json:"defaultRowCommitVersion,omitempty"`
}

// Key identifies the logical file an add or remove refers to.
type Key struct {
	Path string
	DvID string
}

func (a *Add) Key() Key {
	return Key{Path: a.Path, DvID: a.DeletionVector.UniqueID()}
}

type Remove struct {
	Path                 string                     `json:"path"`
	DeletionTimestamp    *int64                     `json:"deletionTimestamp,omitempty"`
	DataChange           bool                       `json:"dataChange"`
	ExtendedFileMetadata bool                       `json:"extendedFileMetadata,omitempty"`
	PartitionValues      StringMap                  `json:"partitionValues,omitempty"`
	Size                 *int64                     `json:"size,omitempty"`
	Stats                string                     `json:"stats,omitempty"`
	DeletionVector       *deletionvector.Descriptor `json:"deletionVector,omitempty"`
}

func (r *Remove) Key() Key {
	return Key{Path: r.Path, DvID: r.DeletionVector.UniqueID()}
}

type Format struct {
	Provider string    `json:"provider"`
	Options  StringMap `json:"options,omitempty"`
}

type Metadata struct {
	ID               string    `json:"id"`
	Name             string    `json:"name,omitempty"`
	Description      string    `json:"description,omitempty"`
	Format           Format    `json:"format"`
	SchemaString     string    `json:"schemaString"`
	PartitionColumns []string  `json:"partitionColumns"`
	Configuration    StringMap `json:"configuration"`
	CreatedTime      *int64    `json:"createdTime,omitempty"`
}

// Schema parses SchemaString.
func (m *Metadata) Schema() (*schema.Schema, error) {
	return schema.Parse(m.SchemaString)
}

// Clone returns a deep copy of m.
func (m *Metadata) Clone() *Metadata {
	out := *m
	out.Format.Options = m.Format.Options.clone()
	out.PartitionColumns = cloneStrings(m.PartitionColumns)
	out.Configuration = m.Configuration.clone()
	if m.CreatedTime != nil {
		t := *m.CreatedTime
		out.CreatedTime = &t
	}
	return &out
}

func (m *Metadata) ColumnMappingMode() (schema.ColumnMappingMode, error) {
	return schema.ParseColumnMappingMode(m.Configuration[constant.ColumnMappingModeKey])
}

type Protocol struct {
	MinReaderVersion int      `json:"minReaderVersion"`
	MinWriterVersion int      `json:"minWriterVersion"`
	ReaderFeatures   []string `json:"readerFeatures,omitempty"`
	WriterFeatures   []string `json:"writerFeatures,omitempty"`
}

var supportedReaderFeatures = map[string]struct{}{
	"columnMapping":        {},
	"deletionVectors":      {},
	"timestampNtz":         {},
	"typeWidening":         {},
	"typeWidening-preview": {},
	"vacuumProtocolCheck":  {},
}

func (p *Protocol) Clone() *Protocol {
	out := *p
	out.ReaderFeatures = cloneStrings(p.ReaderFeatures)
	out.WriterFeatures = cloneStrings(p.WriterFeatures)
	return &out
}

func (p *Protocol) HasReaderFeature(name string) bool {
	for _, f := range p.ReaderFeatures {
		if f == name {
			return true
		}
	}
	return false
}

// ValidateRead fails with a ProtocolError when the table needs a reader capability this module lacks.
func (p *Protocol) ValidateRead() error {
	if p.MinReaderVersion < 1 {
		return errors.NewProtocolError("invalid minReaderVersion %d", p.MinReaderVersion)
	}
	if p.MinReaderVersion > constant.MaxReaderVersion {
		return errors.NewProtocolError("unsupported minReaderVersion %d, at most %d is supported", p.MinReaderVersion, constant.MaxReaderVersion)
	}
	if p.MinReaderVersion == 3 {
		for _, f := range p.ReaderFeatures {
			if _, ok := supportedReaderFeatures[f]; !ok {
				return errors.NewProtocolError("unsupported reader feature %q", f)
			}
		}
	}
	return nil
}

type Txn struct {
	AppID       string `json:"appId"`
	Version     int64  `json:"version"`
	LastUpdated *int64 `json:"lastUpdated,omitempty"`
}

type CommitInfo struct {
	Timestamp           *int64         `json:"timestamp,omitempty"`
	InCommitTimestamp   *int64         `json:"inCommitTimestamp,omitempty"`
	Operation           string         `json:"operation,omitempty"`
	OperationParameters map[string]any `json:"operationParameters,omitempty"`
	EngineInfo          string         `json:"engineInfo,omitempty"`
}

// EffectiveTimestamp prefers the in-commit timestamp.
func (c *CommitInfo) EffectiveTimestamp() (int64, bool) {
	if c.InCommitTimestamp != nil {
		return *c.InCommitTimestamp, true
	}
	if c.Timestamp != nil {
		return *c.Timestamp, true
	}
	return 0, false
}

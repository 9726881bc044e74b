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

package testtable

import (
	"github.com/lbhm/delta-kernel-go/file/deletionvector"
	"github.com/lbhm/delta-kernel-go/storage/actions"
)

// SimpleSchema is a two-column schema string: id long, name string.
const SimpleSchema = `{"type":"struct","fields":[` +
	`{"name":"id","type":"long","nullable":true,"metadata":{}},` +
	`{"name":"name","type":"string","nullable":true,"metadata":{}}]}`

func Protocol(reader, writer int, readerFeatures ...string) actions.Action {
	p := &actions.Protocol{MinReaderVersion: reader, MinWriterVersion: writer}
	if reader >= 3 {
		p.ReaderFeatures = append([]string{}, readerFeatures...)
		p.WriterFeatures = append([]string{}, readerFeatures...)
	}
	return actions.Action{Kind: actions.KindProtocol, Protocol: p}
}

func Metadata(id string, schemaString string, partitionColumns []string, configuration map[string]string) actions.Action {
	if partitionColumns == nil {
		partitionColumns = []string{}
	}
	return actions.Action{Kind: actions.KindMetadata, Metadata: &actions.Metadata{
		ID:               id,
		Format:           actions.Format{Provider: "parquet"},
		SchemaString:     schemaString,
		PartitionColumns: partitionColumns,
		Configuration:    configuration,
	}}
}

func Add(path string, partitionValues map[string]string, stats string) actions.Action {
	if partitionValues == nil {
		partitionValues = map[string]string{}
	}
	return actions.Action{Kind: actions.KindAdd, Add: &actions.Add{
		Path:             path,
		PartitionValues:  partitionValues,
		Size:             100,
		ModificationTime: 1700000000000,
		DataChange:       true,
		Stats:            stats,
	}}
}

func AddWithDv(path string, dv *deletionvector.Descriptor, stats string) actions.Action {
	a := Add(path, nil, stats)
	a.Add.DeletionVector = dv
	return a
}

func Remove(path string) actions.Action {
	ts := int64(1700000000001)
	return actions.Action{Kind: actions.KindRemove, Remove: &actions.Remove{Path: path, DeletionTimestamp: &ts, DataChange: true}}
}

func RemoveWithDv(path string, dv *deletionvector.Descriptor) actions.Action {
	r := Remove(path)
	r.Remove.DeletionVector = dv
	return r
}

func Txn(appID string, version int64) actions.Action {
	return actions.Action{Kind: actions.KindTxn, Txn: &actions.Txn{AppID: appID, Version: version}}
}

func CommitInfo(timestamp int64) actions.Action {
	return actions.Action{Kind: actions.KindCommitInfo, CommitInfo: &actions.CommitInfo{Timestamp: &timestamp, Operation: "WRITE"}}
}

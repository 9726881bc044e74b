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

package constant

const (
	ReadBatchSize = 1024
	// Scan files handed out per batch.
	ScanBatchSize = 256
	LatestVersion = -1

	LogDir                = "_delta_log"
	LastCheckpointFile    = "_last_checkpoint"
	CommitFileSuffix      = ".json"
	CheckpointInfix       = ".checkpoint"
	ParquetFileSuffix     = ".parquet"
	VersionDigits         = 20
	CheckpointPartDigits  = 10
	DeletionVectorPrefix  = "deletion_vector_"
	DeletionVectorSuffix  = ".bin"
	EndpointOverride      = "endpoint_override"
	UseSSL                = "use_ssl"
	Region                = "region"
	ColumnMappingModeKey  = "delta.columnMapping.mode"
	ColumnMappingIDKey    = "delta.columnMapping.id"
	ColumnMappingNameKey  = "delta.columnMapping.physicalName"
	CurrentDefaultKey     = "CURRENT_DEFAULT"
	DeletionVectorVersion = 1
	DeletionVectorMagic   = 1681511377

	// Highest reader/writer protocol versions this module understands.
	MaxReaderVersion = 3
	MaxWriterVersion = 7
)

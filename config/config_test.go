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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
log:
  level: debug
  format: json
table:
  uri: file:///data/events
  version: 12
scan:
  columns: [id, dt]
  predicate: "id > 3 AND dt = DATE '2024-01-01'"
  batch_size: 100
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "file:///data/events", cfg.Table.URI)
	assert.Equal(t, 100, cfg.Scan.BatchSize)
	// sections left out keep their defaults
	assert.Equal(t, Default().Engine, cfg.Engine)

	snap := cfg.SnapshotOptions()
	assert.Equal(t, int64(12), snap.Version)
	assert.False(t, snap.AllowFullHistoryReplay)

	sc := cfg.ScanOptions()
	assert.Equal(t, []string{"id", "dt"}, sc.OutputColumns())
	assert.Equal(t, "id > 3 AND dt = DATE '2024-01-01'", sc.Predicate)
	assert.Equal(t, 100, sc.BatchSize)
	assert.Len(t, cfg.EngineOptions(), 1)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(constant.LatestVersion), cfg.SnapshotOptions().Version)
	assert.Empty(t, cfg.ScanOptions().Predicate)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "reader.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sample), 0o644))
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "file:///data/events", cfg.Table.URI)
}

func TestInvalid(t *testing.T) {
	cases := map[string]error{
		"scan: [1, 2":                   errors.ErrParse,
		"log: {level: loud}":            errors.ErrParse,
		"table: {version: -2}":          errors.ErrPlanning,
		"scan: {batch_size: 0}":         errors.ErrPlanning,
		"engine: {read_batch_size: -1}": errors.ErrPlanning,
		"engine: {workers: 0}":          errors.ErrPlanning,
	}
	for in, want := range cases {
		_, err := Parse([]byte(in))
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, want), in)
	}
}

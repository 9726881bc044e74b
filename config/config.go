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

// Package config loads the YAML settings of a table reader: logging, which snapshot to open,
// how to scan it and how the default engine reads files.
package config

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/engine/defaultengine"
	"github.com/lbhm/delta-kernel-go/storage/options"
)

type Config struct {
	Log    log.Config   `yaml:"log"`
	Table  TableConfig  `yaml:"table"`
	Scan   ScanConfig   `yaml:"scan"`
	Engine EngineConfig `yaml:"engine"`
}

type TableConfig struct {
	URI string `yaml:"uri"`
	// Version to open; unset selects the latest.
	Version                *int64 `yaml:"version"`
	AllowFullHistoryReplay bool   `yaml:"allow_full_history_replay"`
}

type ScanConfig struct {
	Columns   []string `yaml:"columns"`
	Predicate string   `yaml:"predicate"`
	BatchSize int      `yaml:"batch_size"`
}

type EngineConfig struct {
	ReadBatchSize int64 `yaml:"read_batch_size"`
	// Workers bounds the number of data files read at once.
	Workers int `yaml:"workers"`
}

func Default() Config {
	return Config{
		Log:    log.DefaultConfig(),
		Scan:   ScanConfig{BatchSize: constant.ScanBatchSize},
		Engine: EngineConfig{ReadBatchSize: constant.ReadBatchSize, Workers: 4},
	}
}

// Load reads path over Default. A missing file yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("config file not found, using default config", log.String("path", path))
			return cfg, nil
		}
		return cfg, errors.WrapFile(errors.KindStorage, err, path, "read config")
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.KindParse, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.KindParse, err, "log.level")
	}
	if c.Table.Version != nil && *c.Table.Version < 0 {
		return errors.NewPlanningError("table.version must not be negative, got %d", *c.Table.Version)
	}
	if c.Scan.BatchSize <= 0 {
		return errors.NewPlanningError("scan.batch_size must be positive, got %d", c.Scan.BatchSize)
	}
	if c.Engine.ReadBatchSize <= 0 {
		return errors.NewPlanningError("engine.read_batch_size must be positive, got %d", c.Engine.ReadBatchSize)
	}
	if c.Engine.Workers <= 0 {
		return errors.NewPlanningError("engine.workers must be positive, got %d", c.Engine.Workers)
	}
	return nil
}

func (c Config) SnapshotOptions() *options.SnapshotOptions {
	opts := options.NewSnapshotOptions()
	if c.Table.Version != nil {
		opts.SetVersion(*c.Table.Version)
	}
	opts.AllowFullHistoryReplay = c.Table.AllowFullHistoryReplay
	return opts
}

func (c Config) ScanOptions() *options.ScanOptions {
	opts := options.NewScanOptions()
	opts.SetColumns(append([]string{}, c.Scan.Columns...))
	opts.SetPredicate(c.Scan.Predicate)
	opts.BatchSize = c.Scan.BatchSize
	return opts
}

func (c Config) EngineOptions() []defaultengine.Option {
	return []defaultengine.Option{defaultengine.WithBatchSize(c.Engine.ReadBatchSize)}
}

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

// Package logsegment selects the checkpoint and commit files that describe a table version.
package logsegment

import (
	"context"
	"encoding/json"
	"path"
	"sort"

	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/engine"
	"github.com/lbhm/delta-kernel-go/io/fs"
	"github.com/lbhm/delta-kernel-go/storage/options"
)

// LogFile is one commit or checkpoint part.
type LogFile struct {
	fs.FileEntry
	Version int64
}

// Checkpoint lists the parts of one complete checkpoint in part order.
type Checkpoint struct {
	Version int64
	Parts   []LogFile
}

// LogSegment is the set of log files that reconstructs the table at EndVersion: an optional
// checkpoint plus every commit after it, in ascending version order.
type LogSegment struct {
	TableRoot  string
	LogRoot    string
	EndVersion int64
	Commits    []LogFile
	Checkpoint *Checkpoint
}

// Clone returns a copy of s that shares no slices with it.
func (s *LogSegment) Clone() *LogSegment {
	out := *s
	out.Commits = append([]LogFile(nil), s.Commits...)
	if s.Checkpoint != nil {
		out.Checkpoint = &Checkpoint{Version: s.Checkpoint.Version, Parts: append([]LogFile(nil), s.Checkpoint.Parts...)}
	}
	return &out
}

// StartVersion is the first version whose state the segment reads from a file.
func (s *LogSegment) StartVersion() int64 {
	if s.Checkpoint != nil {
		return s.Checkpoint.Version
	}
	if len(s.Commits) > 0 {
		return s.Commits[0].Version
	}
	return s.EndVersion
}

// Files returns the commits newest first followed by the checkpoint parts, the order in
// which replay visits them.
func (s *LogSegment) Files() []LogFile {
	out := make([]LogFile, 0, len(s.Commits)+2)
	for i := len(s.Commits) - 1; i >= 0; i-- {
		out = append(out, s.Commits[i])
	}
	if s.Checkpoint != nil {
		out = append(out, s.Checkpoint.Parts...)
	}
	return out
}

// LastCheckpointHint is the content of _delta_log/_last_checkpoint.
type LastCheckpointHint struct {
	Version int64 `json:"version"`
	Size    int64 `json:"size"`
	Parts   int   `json:"parts,omitempty"`
}

// ReadLastCheckpoint returns the hint, or nil when the file is absent or unreadable.
func ReadLastCheckpoint(ctx context.Context, storage engine.StorageHandler, root string) *LastCheckpointHint {
	p := utils.GetLastCheckpointPath(root)
	b, err := storage.ReadFile(ctx, p)
	if err != nil {
		if !errors.Is(err, errors.ErrFileNotFound) {
			log.Warn("cannot read checkpoint hint", log.String("path", p), log.Err(err))
		}
		return nil
	}
	var hint LastCheckpointHint
	if err := json.Unmarshal(b, &hint); err != nil {
		log.Warn("ignoring malformed checkpoint hint", log.String("path", p), log.Err(err))
		return nil
	}
	return &hint
}

// checkpointCandidates collects the checkpoint files of one version, keyed by part count.
type checkpointCandidates struct {
	single  []LogFile
	multi   map[int]map[int]LogFile
	version int64
}

func (c *checkpointCandidates) complete(parts int) *Checkpoint {
	if parts <= 1 && len(c.single) > 0 {
		// a parquet checkpoint sorts ahead of a JSON one with the same version
		sort.Slice(c.single, func(i, j int) bool {
			return path.Ext(c.single[i].Path) == constant.ParquetFileSuffix && path.Ext(c.single[j].Path) != constant.ParquetFileSuffix
		})
		return &Checkpoint{Version: c.version, Parts: c.single[:1]}
	}
	counts := make([]int, 0, len(c.multi))
	for n := range c.multi {
		if parts <= 0 || n == parts {
			counts = append(counts, n)
		}
	}
	sort.Ints(counts)
	for _, n := range counts {
		got := c.multi[n]
		if len(got) != n {
			log.Warn("skipping incomplete multi-part checkpoint",
				log.Int64("version", c.version), log.Int("parts", n), log.Int("found", len(got)))
			continue
		}
		out := make([]LogFile, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, got[i])
		}
		return &Checkpoint{Version: c.version, Parts: out}
	}
	return nil
}

// Resolve lists the log of the table at root and selects the files for the requested version.
func Resolve(ctx context.Context, storage engine.StorageHandler, root string, opts *options.SnapshotOptions) (*LogSegment, error) {
	if opts == nil {
		opts = options.NewSnapshotOptions()
	}
	logRoot := utils.GetLogDir(root)
	entries, err := storage.List(ctx, logRoot)
	if err != nil {
		return nil, err
	}

	commits := make(map[int64]LogFile)
	checkpoints := make(map[int64]*checkpointCandidates)
	maxVersion := int64(-1)
	for _, e := range entries {
		name, ok := utils.ParseLogFileName(path.Base(e.Path))
		if !ok {
			continue
		}
		f := LogFile{FileEntry: e, Version: name.Version}
		if name.Version > maxVersion {
			maxVersion = name.Version
		}
		if name.Type == utils.CommitFile {
			commits[name.Version] = f
			continue
		}
		c, ok := checkpoints[name.Version]
		if !ok {
			c = &checkpointCandidates{version: name.Version, multi: make(map[int]map[int]LogFile)}
			checkpoints[name.Version] = c
		}
		if name.Type == utils.CheckpointFile {
			c.single = append(c.single, f)
			continue
		}
		if c.multi[name.NumParts] == nil {
			c.multi[name.NumParts] = make(map[int]LogFile)
		}
		c.multi[name.NumParts][name.Part] = f
	}
	if maxVersion < 0 {
		return nil, errors.NewResolutionError("no log files found under %s", logRoot)
	}

	target := opts.Version
	if target == constant.LatestVersion {
		target = maxVersion
	}
	if target < 0 {
		return nil, errors.NewResolutionError("invalid version %d", opts.Version)
	}
	if _, ok := commits[target]; !ok {
		if c, ok := checkpoints[target]; !ok || c.complete(0) == nil {
			return nil, errors.NewResolutionError("version %d not found in %s (latest is %d)", target, logRoot, maxVersion)
		}
	}

	cp, err := selectCheckpoint(ctx, storage, root, target, checkpoints, opts.AllowFullHistoryReplay)
	if err != nil {
		return nil, err
	}

	seg := &LogSegment{TableRoot: root, LogRoot: logRoot, EndVersion: target, Checkpoint: cp}
	start := int64(0)
	if cp != nil {
		start = cp.Version + 1
	} else if _, ok := commits[0]; !ok {
		first := int64(-1)
		for v := range commits {
			if first < 0 || v < first {
				first = v
			}
		}
		return nil, errors.NewResolutionError("log history starts at version %d and no checkpoint is available", first)
	}
	for v := start; v <= target; v++ {
		f, ok := commits[v]
		if !ok {
			return nil, errors.NewResolutionError("gap in log: version %d missing before %d", v, target)
		}
		seg.Commits = append(seg.Commits, f)
	}

	fields := []log.Field{log.Int64("version", target), log.Int("commits", len(seg.Commits))}
	if cp != nil {
		fields = append(fields, log.Int64("checkpoint", cp.Version), log.Int("parts", len(cp.Parts)))
	}
	log.Debug("resolved log segment", fields...)
	return seg, nil
}

func selectCheckpoint(ctx context.Context, storage engine.StorageHandler, root string, target int64,
	checkpoints map[int64]*checkpointCandidates, allowFullHistory bool,
) (*Checkpoint, error) {
	versions := make([]int64, 0, len(checkpoints))
	for v := range checkpoints {
		if v <= target {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })

	hint := ReadLastCheckpoint(ctx, storage, root)
	if hint != nil && hint.Version <= target {
		var hinted *Checkpoint
		if c, ok := checkpoints[hint.Version]; ok {
			hinted = c.complete(hint.Parts)
		}
		if hinted == nil {
			if !allowFullHistory {
				return nil, errors.NewResolutionError(
					"checkpoint %d named by %s is missing or incomplete", hint.Version, constant.LastCheckpointFile)
			}
			log.Warn("checkpoint named by hint is unavailable, falling back",
				log.Int64("version", hint.Version))
			for _, v := range versions {
				if v >= hint.Version {
					continue
				}
				if cp := checkpoints[v].complete(0); cp != nil {
					return cp, nil
				}
			}
			return nil, nil
		}
		// a newer complete checkpoint than the hint is still preferred
		for _, v := range versions {
			if v <= hint.Version {
				break
			}
			if cp := checkpoints[v].complete(0); cp != nil {
				return cp, nil
			}
		}
		return hinted, nil
	}

	for _, v := range versions {
		if cp := checkpoints[v].complete(0); cp != nil {
			return cp, nil
		}
	}
	return nil, nil
}

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

// Command read-table prints the rows of a table snapshot. Data files are read by a pool of
// workers while the scan plans the next batch of files.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/common/result"
	"github.com/lbhm/delta-kernel-go/common/status"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/config"
	"github.com/lbhm/delta-kernel-go/engine/defaultengine"
	"github.com/lbhm/delta-kernel-go/reader/record_reader"
	"github.com/lbhm/delta-kernel-go/storage"
	"github.com/lbhm/delta-kernel-go/storage/scan"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configPath = flag.String("config", "read-table.yaml", "path of the YAML config")
		uri        = flag.String("uri", "", "table URI, overrides table.uri")
		version    = flag.Int64("version", -1, "snapshot version, overrides table.version")
		columns    = flag.String("columns", "", "comma separated columns, overrides scan.columns")
		predicate  = flag.String("predicate", "", "filter, overrides scan.predicate")
		countOnly  = flag.Bool("count", false, "print row counts only")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	if *uri != "" {
		cfg.Table.URI = *uri
	}
	if *version >= 0 {
		cfg.Table.Version = version
	}
	if *columns != "" {
		cfg.Scan.Columns = strings.Split(*columns, ",")
	}
	if *predicate != "" {
		cfg.Scan.Predicate = *predicate
	}
	l, err := log.NewLogger(cfg.Log)
	if err != nil {
		fail(err)
	}
	defer log.ReplaceGlobals(l)()
	defer log.Sync()

	var out io.Writer = os.Stdout
	if *countOnly {
		out = nil
	}
	summary, err := readTable(context.Background(), cfg, out)
	if err != nil {
		fail(err)
	}
	fmt.Fprintln(os.Stderr, summary)
}

func fail(err error) {
	st := status.FromError(err)
	fmt.Fprintln(os.Stderr, st.String())
	os.Exit(1)
}

// Summary reports what a read touched.
type Summary struct {
	Version int64
	Files   int
	Rows    int64
	// PrunedByPartition and PrunedByStats count files the scan skipped.
	PrunedByPartition int
	PrunedByStats     int
}

func (s *Summary) String() string {
	return fmt.Sprintf("version %d: %d rows from %d files (%d pruned by partition, %d by stats)",
		s.Version, s.Rows, s.Files, s.PrunedByPartition, s.PrunedByStats)
}

// readTable scans the configured snapshot and writes every row to out as one JSON object per
// line. A nil out only counts rows.
func readTable(ctx context.Context, cfg config.Config, out io.Writer) (*Summary, error) {
	if cfg.Table.URI == "" {
		return nil, errors.NewPlanningError("no table uri configured")
	}
	eng, err := defaultengine.NewFromURI(cfg.Table.URI, cfg.EngineOptions()...)
	if err != nil {
		return nil, err
	}
	defer eng.Close()
	table := storage.NewTable(eng, eng.Fs().Path())

	snap, err := table.Snapshot(ctx, cfg.SnapshotOptions())
	if err != nil {
		return nil, err
	}
	s, err := scan.NewBuilder(snap).WithOptions(cfg.ScanOptions()).Build()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	log.Info("scan planned", log.String("scan", s.String()))

	var (
		mu      sync.Mutex
		results []*result.Result[int64]
	)
	g, gctx := errgroup.WithContext(ctx)
	files := make(chan *scan.ScanFile)
	it := s.Files(gctx)
	defer it.Close()

	g.Go(func() error {
		defer close(files)
		for it.Next() {
			for _, f := range it.Batch() {
				select {
				case files <- f:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		return it.Err()
	})
	for i := 0; i < cfg.Engine.Workers; i++ {
		g.Go(func() error {
			for f := range files {
				rows, err := readFile(gctx, s, eng, f, out, &mu)
				mu.Lock()
				results = append(results, result.Of(rows, err))
				mu.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Version: snap.Version(), Files: len(results)}
	for _, r := range results {
		summary.Rows += r.Value()
	}
	summary.PrunedByPartition, summary.PrunedByStats = it.Pruned()
	return summary, nil
}

func readFile(ctx context.Context, s *scan.Scan, eng *defaultengine.DefaultEngine, f *scan.ScanFile, out io.Writer, mu *sync.Mutex) (int64, error) {
	rr, err := record_reader.OpenScanFile(ctx, s, eng, f)
	if err != nil {
		return 0, err
	}
	defer rr.Release()
	var rows int64
	for rr.Next() {
		rec := rr.Record()
		rows += rec.NumRows()
		if out != nil {
			mu.Lock()
			err := writeRows(out, rec)
			mu.Unlock()
			if err != nil {
				return rows, err
			}
		}
	}
	log.Debug("read data file", log.String("path", f.Path), log.Int64("rows", rows))
	return rows, rr.Err()
}

func writeRows(w io.Writer, rec arrow.Record) error {
	enc := json.NewEncoder(w)
	sc := rec.Schema()
	for i := 0; i < int(rec.NumRows()); i++ {
		row := make(map[string]json.RawMessage, len(sc.Fields()))
		for j, f := range sc.Fields() {
			v, err := utils.MarshalValue(rec.Column(j), i)
			if err != nil {
				return err
			}
			row[f.Name] = v
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

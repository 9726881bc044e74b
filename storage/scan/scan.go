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

// Package scan plans reads of a snapshot: it lists the live files a predicate may match,
// pruned by partition values and file statistics, and pairs each with the deletion vector and
// transform needed to turn its rows into logical table rows.
package scan

import (
	"context"
	"strings"

	"github.com/lbhm/delta-kernel-go/common/constant"
	"github.com/lbhm/delta-kernel-go/common/errors"
	"github.com/lbhm/delta-kernel-go/common/log"
	"github.com/lbhm/delta-kernel-go/common/utils"
	"github.com/lbhm/delta-kernel-go/expr"
	"github.com/lbhm/delta-kernel-go/file/deletionvector"
	"github.com/lbhm/delta-kernel-go/filter"
	"github.com/lbhm/delta-kernel-go/storage"
	"github.com/lbhm/delta-kernel-go/storage/actions"
	"github.com/lbhm/delta-kernel-go/storage/options"
	"github.com/lbhm/delta-kernel-go/storage/replay"
	"github.com/lbhm/delta-kernel-go/storage/schema"
)

// ScanFile is one data file to read.
type ScanFile struct {
	// Path as recorded in the log, relative to the table root unless absolute.
	Path             string
	Size             int64
	ModificationTime int64
	Stats            string
	DeletionVector   *deletionvector.Descriptor
	// PartitionValues as recorded in the log, keyed by physical column name.
	PartitionValues map[string]string
	// Transform turns a batch read with Scan.PhysicalSchema into Scan.ReadSchema. Nil means
	// no change is needed.
	Transform *expr.Struct
	// Version of the log file that added this file.
	Version int64
}

func (f *ScanFile) AbsolutePath(root string) (string, error) {
	return utils.ResolvePath(root, f.Path)
}

type Builder struct {
	snapshot      *storage.Snapshot
	columns       []string
	predicate     expr.Expression
	predicateText string
	batchSize     int
}

func NewBuilder(s *storage.Snapshot) *Builder {
	return &Builder{snapshot: s, batchSize: constant.ScanBatchSize}
}

// WithColumns projects the scan onto the named top-level columns. No columns selects all.
func (b *Builder) WithColumns(columns ...string) *Builder {
	b.columns = columns
	return b
}

func (b *Builder) WithPredicate(pred expr.Expression) *Builder {
	b.predicate = pred
	return b
}

// WithPredicateText parses text with the engine's expression handler when the scan is built.
func (b *Builder) WithPredicateText(text string) *Builder {
	b.predicateText = text
	return b
}

// WithBatchSize bounds the number of files per batch.
func (b *Builder) WithBatchSize(n int) *Builder {
	b.batchSize = n
	return b
}

func (b *Builder) WithOptions(opts *options.ScanOptions) *Builder {
	if opts == nil {
		return b
	}
	b.columns = opts.OutputColumns()
	if opts.Predicate != "" {
		b.predicateText = opts.Predicate
	}
	if opts.BatchSize > 0 {
		b.batchSize = opts.BatchSize
	}
	return b
}

// Build validates the projection and predicate against the table schema. It reads no files.
func (b *Builder) Build() (*Scan, error) {
	if b.batchSize <= 0 {
		return nil, errors.NewPlanningError("batch size must be positive, got %d", b.batchSize)
	}
	snap := b.snapshot
	table := snap.Schema().Struct()
	mode := snap.ColumnMappingMode()

	pred := b.predicate
	if pred == nil && b.predicateText != "" {
		parsed, err := snap.Engine().Expressions().ParsePredicate(b.predicateText)
		if err != nil {
			if errors.Is(err, errors.ErrPlanning) {
				return nil, err
			}
			return nil, errors.Wrap(errors.KindPlanning, err, "parse predicate %q", b.predicateText)
		}
		pred = parsed
	}
	if pred != nil {
		t, err := checkExpr(pred, table)
		if err != nil {
			return nil, err
		}
		if t != nil && t.Name != "boolean" {
			return nil, errors.NewPlanningError("predicate %s yields %s, not boolean", pred, t)
		}
	}

	columns := b.columns
	if len(columns) == 0 {
		columns = table.FieldNames()
	}
	output := make([]schema.StructField, 0, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		f, ok := table.Field(c)
		if !ok {
			return nil, errors.NewPlanningError("column %q is not in the table schema", c)
		}
		if _, dup := seen[c]; dup {
			return nil, errors.NewPlanningError("column %q is selected twice", c)
		}
		seen[c] = struct{}{}
		output = append(output, f)
	}
	// columns only the predicate needs are read after the projected ones
	read := append([]schema.StructField{}, output...)
	for _, c := range expr.References(pred) {
		if _, ok := seen[c.Path[0]]; ok {
			continue
		}
		f, _ := table.Field(c.Path[0])
		seen[c.Path[0]] = struct{}{}
		read = append(read, f)
	}

	partitions := make(map[string]struct{})
	for _, c := range snap.PartitionColumns() {
		partitions[c] = struct{}{}
	}
	physical := make([]schema.StructField, 0, len(read))
	for _, f := range read {
		if _, ok := partitions[f.Name]; !ok {
			physical = append(physical, schema.PhysicalField(f, mode))
		}
	}

	s := &Scan{
		snapshot:         snap,
		predicate:        pred,
		partitionColumns: snap.PartitionColumns(),
		mode:             mode,
		batchSize:        b.batchSize,
		dvs:              NewDvCache(snap.Engine().Storage(), snap.TableRoot()),
	}
	var err error
	if s.schema, err = schema.NewSchema(schema.NewStructType(output...)); err != nil {
		return nil, errors.Wrap(errors.KindPlanning, err, "output schema")
	}
	if s.readSchema, err = schema.NewSchema(schema.NewStructType(read...)); err != nil {
		return nil, errors.Wrap(errors.KindPlanning, err, "read schema")
	}
	if s.physicalSchema, err = schema.NewSchema(schema.NewStructType(physical...)); err != nil {
		return nil, errors.Wrap(errors.KindPlanning, err, "physical schema")
	}
	if pred != nil {
		s.physicalPredicate = physicalExpr(pred, table, mode)
	}
	log.Debug("scan built",
		log.String("table", snap.TableRoot()),
		log.Int64("version", snap.Version()),
		log.Strings("columns", columns),
		log.Bool("predicate", pred != nil))
	return s, nil
}

// checkExpr resolves every column of e and checks operand types. It returns the primitive
// type e yields, nil for an untyped NULL.
func checkExpr(e expr.Expression, table *schema.StructType) (*schema.PrimitiveType, error) {
	switch n := e.(type) {
	case *expr.Literal:
		return n.Value.Type, nil
	case *expr.Column:
		f, err := resolveColumn(n, table)
		if err != nil {
			return nil, err
		}
		pt, ok := f.Type.(*schema.PrimitiveType)
		if !ok {
			return nil, errors.NewPlanningError("column %s of type %s cannot be used as a value", n, f.Type)
		}
		return pt, nil
	case *expr.Struct:
		return nil, errors.NewPlanningError("struct expression %s is not a predicate", n)
	case *expr.Unary:
		switch n.Op {
		case expr.IsNull:
			if c, ok := n.Child.(*expr.Column); ok {
				_, err := resolveColumn(c, table)
				return schema.Boolean, err
			}
			_, err := checkExpr(n.Child, table)
			return schema.Boolean, err
		case expr.Not:
			t, err := checkExpr(n.Child, table)
			if err != nil {
				return nil, err
			}
			if t != nil && t.Name != "boolean" {
				return nil, errors.NewPlanningError("NOT applied to %s", t)
			}
			return schema.Boolean, nil
		default:
			if _, err := checkExpr(n.Child, table); err != nil {
				return nil, err
			}
			pt, ok := n.Type.(*schema.PrimitiveType)
			if !ok {
				return nil, errors.NewPlanningError("cannot cast to %s", n.Type)
			}
			return pt, nil
		}
	case *expr.Binary:
		l, err := checkExpr(n.Left, table)
		if err != nil {
			return nil, err
		}
		r, err := checkExpr(n.Right, table)
		if err != nil {
			return nil, err
		}
		switch {
		case n.Op.IsComparison():
			if !expr.Comparable(l, r) {
				return nil, errors.NewPlanningError("cannot compare %s with %s in %s", l, r, n)
			}
			return schema.Boolean, nil
		case n.Op.IsLogical():
			for _, t := range []*schema.PrimitiveType{l, r} {
				if t != nil && t.Name != "boolean" {
					return nil, errors.NewPlanningError("%s operand of type %s in %s", n.Op, t, n)
				}
			}
			return schema.Boolean, nil
		default:
			for _, t := range []*schema.PrimitiveType{l, r} {
				if t != nil && !t.IsNumeric() {
					return nil, errors.NewPlanningError("arithmetic on %s in %s", t, n)
				}
			}
			if l == nil && r == nil {
				return nil, nil
			}
			if (l == nil || l.IsIntegral()) && (r == nil || r.IsIntegral()) {
				return schema.Long, nil
			}
			return schema.Double, nil
		}
	}
	return nil, errors.NewInternalError("unsupported expression %T", e)
}

func resolveColumn(c *expr.Column, table *schema.StructType) (schema.StructField, error) {
	f, ok := table.Resolve(c.Path)
	if !ok {
		return schema.StructField{}, errors.NewPlanningError("column %s is not in the table schema", c)
	}
	return f, nil
}

// physicalExpr renames every column of e to its physical path.
func physicalExpr(e expr.Expression, table *schema.StructType, mode schema.ColumnMappingMode) expr.Expression {
	if mode == schema.ColumnMappingNone {
		return e
	}
	switch n := e.(type) {
	case *expr.Column:
		path := make([]string, len(n.Path))
		cur := table
		for i, name := range n.Path {
			path[i] = name
			if cur == nil {
				continue
			}
			f, ok := cur.Field(name)
			if !ok {
				cur = nil
				continue
			}
			path[i] = f.PhysicalName(mode)
			cur, _ = f.Type.(*schema.StructType)
		}
		return expr.ColPath(path...)
	case *expr.Struct:
		fields := make([]expr.Expression, 0, len(n.Fields))
		for _, f := range n.Fields {
			fields = append(fields, physicalExpr(f, table, mode))
		}
		return expr.NewStruct(fields...)
	case *expr.Unary:
		return &expr.Unary{Op: n.Op, Child: physicalExpr(n.Child, table, mode), Type: n.Type}
	case *expr.Binary:
		return expr.NewBinary(n.Op, physicalExpr(n.Left, table, mode), physicalExpr(n.Right, table, mode))
	}
	return e
}

// Scan is an immutable read plan over one snapshot. Files may be listed any number of times;
// deletion vectors decoded through the scan are cached until Close.
type Scan struct {
	snapshot          *storage.Snapshot
	schema            *schema.Schema
	readSchema        *schema.Schema
	physicalSchema    *schema.Schema
	predicate         expr.Expression
	physicalPredicate expr.Expression
	partitionColumns  []string
	mode              schema.ColumnMappingMode
	batchSize         int
	dvs               *DvCache
}

func (s *Scan) Snapshot() *storage.Snapshot {
	return s.snapshot
}

// Schema is the logical schema of the rows the scan returns.
func (s *Scan) Schema() *schema.Schema {
	return s.schema
}

// ReadSchema is Schema followed by the columns only the predicate references.
func (s *Scan) ReadSchema() *schema.Schema {
	return s.readSchema
}

// PhysicalSchema is the set of columns to read from each data file, under physical names.
// Partition columns are not stored in data files and are left out.
func (s *Scan) PhysicalSchema() *schema.Schema {
	return s.physicalSchema
}

func (s *Scan) Predicate() expr.Expression {
	return s.predicate
}

// PhysicalPredicate is Predicate over physical column names, for row group skipping.
func (s *Scan) PhysicalPredicate() expr.Expression {
	return s.physicalPredicate
}

func (s *Scan) DeletionVectors() *DvCache {
	return s.dvs
}

// Files starts a new pass over the live files of the snapshot.
func (s *Scan) Files(ctx context.Context) *FileIterator {
	return &FileIterator{scan: s, adds: s.snapshot.Adds(ctx)}
}

// Collect drains Files into a single slice.
func (s *Scan) Collect(ctx context.Context) ([]*ScanFile, error) {
	it := s.Files(ctx)
	defer it.Close()
	var out []*ScanFile
	for it.Next() {
		out = append(out, it.Batch()...)
	}
	return out, it.Err()
}

// SelectionVector returns the rows of f that survive its deletion vector.
func (s *Scan) SelectionVector(ctx context.Context, f *ScanFile, numRows int) ([]bool, error) {
	sel, err := s.dvs.SelectionVector(ctx, f.DeletionVector, numRows)
	if err != nil && f.DeletionVector != nil {
		return nil, errors.WrapFile(errors.KindDeletionVector, err, f.Path, "deletion vector %s", f.DeletionVector.UniqueID())
	}
	return sel, err
}

// TransformFor rebuilds the transform of f for a data file whose schema differs from
// PhysicalSchema, e.g. one written before a column was added.
func (s *Scan) TransformFor(fileSchema *schema.StructType, f *ScanFile) (*expr.Struct, error) {
	values, err := PartitionValues(f.PartitionValues, s.snapshot.Schema().Struct(), s.partitionColumns, s.mode)
	if err != nil {
		return nil, err
	}
	return BuildTransform(fileSchema, s.readSchema.Struct(), values, s.mode)
}

// Close drops the deletion vector cache.
func (s *Scan) Close() {
	s.dvs.Reset()
}

// plan turns a live add into a scan file, or nil when the file cannot match the predicate.
func (s *Scan) plan(add *actions.Add, version int64, stats *planStats) (*ScanFile, error) {
	stats.considered++
	values, err := PartitionValues(add.PartitionValues, s.snapshot.Schema().Struct(), s.partitionColumns, s.mode)
	if err != nil {
		return nil, errors.WrapFile(errors.KindParse, err, add.Path, "partition values")
	}
	if s.predicate != nil {
		if len(values) > 0 && filter.EvaluatePartition(s.predicate, values) == filter.False {
			stats.prunedByPartition++
			return nil, nil
		}
		fs, err := filter.ParseStats(add.Stats, s.snapshot.PhysicalSchema().Struct())
		if err != nil {
			log.Warn("ignoring unreadable file statistics", log.String("path", add.Path), log.Err(err))
		} else if filter.CanSkip(s.physicalPredicate, fs) {
			stats.prunedByStats++
			return nil, nil
		}
	}
	transform, err := BuildTransform(s.physicalSchema.Struct(), s.readSchema.Struct(), values, s.mode)
	if err != nil {
		return nil, err
	}
	pv := make(map[string]string, len(add.PartitionValues))
	for k, v := range add.PartitionValues {
		pv[k] = v
	}
	return &ScanFile{
		Path:             add.Path,
		Size:             add.Size,
		ModificationTime: add.ModificationTime,
		Stats:            add.Stats,
		DeletionVector:   add.DeletionVector,
		PartitionValues:  pv,
		Transform:        transform,
		Version:          version,
	}, nil
}

type planStats struct {
	considered        int
	prunedByPartition int
	prunedByStats     int
}

// FileIterator hands out scan files in batches of at most the scan's batch size, in replay
// order.
type FileIterator struct {
	scan  *Scan
	adds  *replay.AddIterator
	batch []*ScanFile
	stats planStats
	err   error
	done  bool
}

func (it *FileIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	it.batch = make([]*ScanFile, 0, it.scan.batchSize)
	for len(it.batch) < it.scan.batchSize {
		if !it.adds.Next() {
			if err := it.adds.Err(); err != nil {
				it.err = err
				it.batch = nil
				return false
			}
			it.done = true
			log.Debug("scan files listed",
				log.String("table", it.scan.snapshot.TableRoot()),
				log.Int("considered", it.stats.considered),
				log.Int("prunedByPartition", it.stats.prunedByPartition),
				log.Int("prunedByStats", it.stats.prunedByStats))
			break
		}
		f, err := it.scan.plan(it.adds.Add(), it.adds.Version(), &it.stats)
		if err != nil {
			it.err = err
			it.batch = nil
			return false
		}
		if f != nil {
			it.batch = append(it.batch, f)
		}
	}
	return len(it.batch) > 0
}

// Batch is valid until the next call to Next; the slice itself is never reused.
func (it *FileIterator) Batch() []*ScanFile {
	return it.batch
}

func (it *FileIterator) Err() error {
	return it.err
}

// Pruned reports how many files the predicate removed so far, by partition and by statistics.
func (it *FileIterator) Pruned() (byPartition, byStats int) {
	return it.stats.prunedByPartition, it.stats.prunedByStats
}

func (it *FileIterator) Close() error {
	it.done = true
	it.batch = nil
	return it.adds.Close()
}

// String describes the plan for logs.
func (s *Scan) String() string {
	var sb strings.Builder
	sb.WriteString("scan ")
	sb.WriteString(s.snapshot.TableRoot())
	sb.WriteString(" columns=")
	sb.WriteString(strings.Join(s.schema.Struct().FieldNames(), ","))
	if s.predicate != nil {
		sb.WriteString(" where ")
		sb.WriteString(s.predicate.String())
	}
	return sb.String()
}

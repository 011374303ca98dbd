// Package materialize turns reconciliation results back into Arrow
// record batches: expirations (either bare indices or a full materialized
// batch) and consolidated insert batches, denormalizing the internal
// infinity sentinel back to the caller's external value on the way out.
package materialize

import (
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"btx/internal/canon"
	"btx/internal/reconcile"
	"btx/internal/rowhash"
	"btx/internal/temporal"
)

// Config describes the output column layout and batching policy.
type Config struct {
	IDCols           []string
	ValueCols        []string
	TargetBatchRows  int
	ExternalInfinity temporal.Timestamp
	HashColumn       string // empty disables emitting the hash column
}

const defaultTargetBatchRows = 10_000

func (c Config) targetRows() int {
	if c.TargetBatchRows > 0 {
		return c.TargetBatchRows
	}
	return defaultTargetBatchRows
}

// ExpireResult carries the set of expired rows either as original-batch
// indices (cheap) or, when requested, a fully materialized batch with
// as_of_to stamped.
type ExpireResult struct {
	indices []int
	batch   arrow.Record
}

// Indices returns the sorted, deduplicated original row indices expired
// out of the current batch.
func (e ExpireResult) Indices() []int { return e.indices }

// Batch returns the materialized expiration batch, or nil if the caller
// did not request materialization.
func (e ExpireResult) Batch() arrow.Record { return e.batch }

// BuildExpireResult computes the expired indices and, when materialize is
// true, a full batch of expired rows (current, as looked up by original
// index) with as_of_to overwritten by each op's stamped value.
func BuildExpireResult(results []reconcile.Result, current []canon.Row, materializeBatch bool, cfg Config) ExpireResult {
	seen := make(map[int]temporal.Timestamp)
	for _, r := range results {
		for _, op := range r.Expires {
			seen[op.OriginalIndex] = op.AsOfTo
		}
	}
	indices := make([]int, 0, len(seen))
	for idx := range seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	res := ExpireResult{indices: indices}
	if !materializeBatch {
		return res
	}

	mem := memory.DefaultAllocator
	cols := newColumnSet(cfg)
	for _, idx := range indices {
		row := current[idx]
		appendRow(mem, cols, cfg, row.IDValues, row.Values, row.Eff, row.AsOf.From, seen[idx], row.ValueHash)
	}
	res.batch = cols.finish(mem, cfg, len(indices))
	return res
}

// BuildInsertBatches consolidates every result's insert rows into a
// sequence of record batches no larger than cfg.targetRows().
func BuildInsertBatches(results []reconcile.Result, cfg Config) []arrow.Record {
	mem := memory.DefaultAllocator
	target := cfg.targetRows()

	var batches []arrow.Record
	cols := newColumnSet(cfg)
	rows := 0

	flush := func() {
		if rows == 0 {
			return
		}
		batches = append(batches, cols.finish(mem, cfg, rows))
		cols = newColumnSet(cfg)
		rows = 0
	}

	for _, r := range results {
		for _, ins := range r.Inserts {
			appendRow(mem, cols, cfg, ins.IDValues, ins.Values, ins.Eff, ins.AsOfFrom, ins.AsOfTo, ins.ValueHash)
			rows++
			if rows >= target {
				flush()
			}
		}
	}
	flush()
	return batches
}

type columnSet struct {
	idBuilders    []*colBuilder
	valueBuilders []*colBuilder
	effFrom       *array.TimestampBuilder
	effTo         *array.TimestampBuilder
	asOfFrom      *array.TimestampBuilder
	asOfTo        *array.TimestampBuilder
	hashBuilder   *array.StringBuilder
}

func newColumnSet(cfg Config) *columnSet {
	mem := memory.DefaultAllocator
	tsType := &arrow.TimestampType{Unit: arrow.Microsecond}
	cs := &columnSet{
		idBuilders:    make([]*colBuilder, len(cfg.IDCols)),
		valueBuilders: make([]*colBuilder, len(cfg.ValueCols)),
		effFrom:       array.NewTimestampBuilder(mem, tsType),
		effTo:         array.NewTimestampBuilder(mem, tsType),
		asOfFrom:      array.NewTimestampBuilder(mem, tsType),
		asOfTo:        array.NewTimestampBuilder(mem, tsType),
	}
	for i := range cs.idBuilders {
		cs.idBuilders[i] = newColBuilder()
	}
	for i := range cs.valueBuilders {
		cs.valueBuilders[i] = newColBuilder()
	}
	if cfg.HashColumn != "" {
		cs.hashBuilder = array.NewStringBuilder(mem)
	}
	return cs
}

func appendRow(mem memory.Allocator, cols *columnSet, cfg Config, ids, values []rowhash.Value, eff temporal.Interval, asOfFrom, asOfTo temporal.Timestamp, hash string) {
	for i, v := range ids {
		cols.idBuilders[i].Append(mem, v)
	}
	for i, v := range values {
		cols.valueBuilders[i].Append(mem, v)
	}
	cols.effFrom.Append(arrow.Timestamp(eff.From))
	cols.effTo.Append(arrow.Timestamp(denormalize(eff.To, cfg.ExternalInfinity)))
	cols.asOfFrom.Append(arrow.Timestamp(asOfFrom))
	cols.asOfTo.Append(arrow.Timestamp(denormalize(asOfTo, cfg.ExternalInfinity)))
	if cols.hashBuilder != nil {
		cols.hashBuilder.Append(hash)
	}
}

// denormalize maps the internal infinity sentinel back to the caller's
// external "unbounded" value at the output boundary.
func denormalize(t, externalInfinity temporal.Timestamp) temporal.Timestamp {
	if t.IsInfinity() {
		return externalInfinity
	}
	return t
}

func (cols *columnSet) finish(mem memory.Allocator, cfg Config, numRows int) arrow.Record {
	fields := make([]arrow.Field, 0, len(cfg.IDCols)+len(cfg.ValueCols)+5)
	arrays := make([]arrow.Array, 0, cap(fields))

	for i, name := range cfg.IDCols {
		arr := cols.idBuilders[i].NewArray()
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}
	for i, name := range cfg.ValueCols {
		arr := cols.valueBuilders[i].NewArray()
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}

	tsType := &arrow.TimestampType{Unit: arrow.Microsecond}
	fields = append(fields,
		arrow.Field{Name: canon.ColEffFrom, Type: tsType},
		arrow.Field{Name: canon.ColEffTo, Type: tsType},
		arrow.Field{Name: canon.ColAsOfFrom, Type: tsType},
		arrow.Field{Name: canon.ColAsOfTo, Type: tsType},
	)
	arrays = append(arrays, cols.effFrom.NewArray(), cols.effTo.NewArray(), cols.asOfFrom.NewArray(), cols.asOfTo.NewArray())

	if cols.hashBuilder != nil {
		fields = append(fields, arrow.Field{Name: cfg.HashColumn, Type: arrow.BinaryTypes.String})
		arrays = append(arrays, cols.hashBuilder.NewArray())
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, arrays, int64(numRows))
}

// Package btx is the boundary adapter: the public, language-neutral entry
// point over Arrow record batches. Everything else lives under internal/
// and is wired together here in the order data actually flows: schema
// alignment, canonicalization, optional conflation, partitioning,
// mode-aware parallel reconciliation, and materialization.
package btx

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"btx/internal/canon"
	"btx/internal/conflate"
	"btx/internal/errs"
	"btx/internal/exec"
	"btx/internal/materialize"
	"btx/internal/mode"
	"btx/internal/partition"
	"btx/internal/rowhash"
	"btx/internal/schemaalign"
	"btx/internal/temporal"
)

// Mode selects which ids absent from the update batch are affected.
type Mode = mode.Mode

const (
	Delta     = mode.Delta
	FullState = mode.FullState
)

// options gathers the variadic Option settings for ComputeChanges.
type options struct {
	conflateInputs     bool
	hashAlgorithm      string
	targetBatchRows    int
	parallelism        int
	externalInfinity   temporal.Timestamp
	materializeExpires bool
	hashColumnName     string
}

func defaultOptions() options {
	return options{
		hashAlgorithm:    "xxhash",
		targetBatchRows:  10_000,
		externalInfinity: temporal.Infinity,
		hashColumnName:   "value_hash",
	}
}

// Option customizes ComputeChanges' behavior.
type Option func(*options)

// WithConflateInputs enables the updates-only adjacency pre-pass that merges
// adjacent same-value update segments before reconciliation.
func WithConflateInputs(v bool) Option { return func(o *options) { o.conflateInputs = v } }

// WithHashAlgorithm selects the content-hash backend ("xxhash" or "sha256", with aliases).
func WithHashAlgorithm(name string) Option { return func(o *options) { o.hashAlgorithm = name } }

// WithTargetBatchRows bounds the size of consolidated output batches.
func WithTargetBatchRows(n int) Option { return func(o *options) { o.targetBatchRows = n } }

// WithParallelism sets the worker count for the per-id executor; 0 selects runtime.GOMAXPROCS(0).
func WithParallelism(n int) Option { return func(o *options) { o.parallelism = n } }

// WithExternalInfinity sets the caller's own unbounded-time sentinel (in
// microseconds since epoch) to normalize on input and restore on output.
func WithExternalInfinity(t temporal.Timestamp) Option {
	return func(o *options) { o.externalInfinity = t }
}

// WithMaterializedExpirations requests a full expired-rows batch from
// ExpireResult.Batch() instead of bare original-batch indices.
func WithMaterializedExpirations() Option {
	return func(o *options) { o.materializeExpires = true }
}

// ExpireResult exposes either the cheap index form or, when requested, a
// materialized batch of expired rows with as_of_to stamped.
type ExpireResult = materialize.ExpireResult

// ComputeChanges reconciles current against updates and returns the
// minimal set of expirations and insertions.
func ComputeChanges(
	ctx context.Context,
	current, updates arrow.Record,
	idCols, valueCols []string,
	systemDate time.Time,
	m Mode,
	opts ...Option,
) (ExpireResult, []arrow.Record, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	alignedCurrent, alignedUpdates, err := schemaalign.Align(current, updates, idCols, valueCols)
	if err != nil {
		return ExpireResult{}, nil, fmt.Errorf("btx: align schema: %w", err)
	}

	hasher, err := rowhash.Resolve(o.hashAlgorithm)
	if err != nil {
		return ExpireResult{}, nil, fmt.Errorf("btx: resolve hash algorithm: %w", err)
	}

	var currentRows []canon.Row
	if alignedCurrent != nil && alignedCurrent.NumRows() > 0 {
		currentRows, err = canon.FromRecord(alignedCurrent, idCols, valueCols, hasher, o.externalInfinity)
		if err != nil {
			return ExpireResult{}, nil, fmt.Errorf("btx: canonicalize current: %w", err)
		}
	}
	updateRows, err := canon.FromRecord(alignedUpdates, idCols, valueCols, hasher, o.externalInfinity)
	if err != nil {
		return ExpireResult{}, nil, fmt.Errorf("btx: canonicalize updates: %w", err)
	}

	if o.conflateInputs {
		updateRows = conflate.Rows(updateRows)
	}

	partitions := partition.Build(currentRows, updateRows)
	systemTS := temporal.FromTime(systemDate)

	workers := o.parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results, err := exec.Run(ctx, partitions, mode.PolicyFor(m), systemTS, workers)
	if err != nil {
		return ExpireResult{}, nil, fmt.Errorf("btx: reconcile: %w", err)
	}

	outCfg := materialize.Config{
		IDCols:           idCols,
		ValueCols:        valueCols,
		TargetBatchRows:  o.targetBatchRows,
		ExternalInfinity: o.externalInfinity,
		HashColumn:       o.hashColumnName,
	}

	expire := materialize.BuildExpireResult(results, currentRows, o.materializeExpires, outCfg)
	inserts := materialize.BuildInsertBatches(results, outCfg)
	return expire, inserts, nil
}

// AddHashKey computes a value_hash column for frame and returns a record
// identical to frame but with that column appended.
func AddHashKey(frame arrow.Record, valueCols []string, algo string) (arrow.Record, error) {
	if frame == nil || frame.NumRows() == 0 {
		return nil, fmt.Errorf("btx: add hash key: %w", &errs.EmptyInputError{})
	}

	hasher, err := rowhash.Resolve(algo)
	if err != nil {
		return nil, fmt.Errorf("btx: resolve hash algorithm: %w", err)
	}

	values, err := canon.ExtractValues(frame, valueCols)
	if err != nil {
		return nil, fmt.Errorf("btx: extract value columns: %w", err)
	}

	hashes := make([]string, len(values))
	var buf []byte
	for i, row := range values {
		buf = buf[:0]
		buf = rowhash.Encode(buf, row)
		hashes[i] = hasher.Sum(buf)
	}

	return appendHashColumn(frame, hashes)
}

func appendHashColumn(frame arrow.Record, hashes []string) (arrow.Record, error) {
	mem := memory.DefaultAllocator
	b := array.NewStringBuilder(mem)
	defer b.Release()
	for _, h := range hashes {
		b.Append(h)
	}
	hashArr := b.NewArray()

	schema := frame.Schema()
	fields := append(append([]arrow.Field{}, schema.Fields()...), arrow.Field{Name: "value_hash", Type: arrow.BinaryTypes.String})
	cols := append(append([]arrow.Array{}, frame.Columns()...), hashArr)

	newSchema := arrow.NewSchema(fields, nil)
	return array.NewRecord(newSchema, cols, frame.NumRows()), nil
}

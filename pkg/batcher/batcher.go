package batcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dataplane-io/sqlbatch/pkg/adapter"
	"github.com/dataplane-io/sqlbatch/pkg/configmgr"
	"github.com/dataplane-io/sqlbatch/pkg/errorx"
	"github.com/dataplane-io/sqlbatch/pkg/logx"
	"github.com/dataplane-io/sqlbatch/pkg/validator"
)

// DefaultDelimiter - statement separator used when none is configured.
const DefaultDelimiter = ";"

// ExecuteFunc - execution sink for one complete batch text. The batcher treats
// it as opaque: any error is propagated unchanged and aborts the remaining
// packing loop, with batches already executed left applied.
type ExecuteFunc func(ctx context.Context, batchSQL string) error

// Collector - sink that records produced batches instead of, or in addition to,
// executing them. Collect must not fail for well-formed input.
type Collector interface {
	Collect(batchSQL string, metadata map[string]any)
}

// =====================================
// Config
// =====================================

// Config - immutable per-instance batcher settings.
//
// MaxBytes caps the serialized batch size in bytes, 0 meaning unbounded.
// MaxStatements caps the statement count per batch, 0 meaning unbounded.
// When DryRun is set, batches are never passed to the execute func, only to
// the collector. SizeFunc overrides how a statement's size is measured; the
// default is its length in bytes.
type Config struct {
	MaxBytes      int
	MaxStatements int
	Delimiter     string
	DryRun        bool
	SizeFunc      func(statement string) int
}

// =====================================
// Batcher
// =====================================

// Batcher - packs an ordered statement sequence into minimal-count batches that
// respect the configured size and count limits, preserving input order, and
// drives delivery of each batch to an execution sink and/or a Collector.
//
// A single statement whose size alone exceeds MaxBytes still becomes its own
// batch: statement text is never truncated or split. The batcher is
// synchronous and not safe for concurrent use.
type Batcher struct {
	maxBytes      int
	maxStatements int
	delimiter     string
	dryRun        bool
	sizeFunc      func(statement string) int

	current     []string
	currentSize int
}

// New - Batcher constructor.
func New(cfg Config) (*Batcher, error) {
	if cfg.MaxBytes < 0 {
		return nil, errorx.NewConfigurationError("maxBytes must not be negative, got %d", cfg.MaxBytes)
	}

	if cfg.MaxStatements < 0 {
		return nil, errorx.NewConfigurationError("maxStatements must not be negative, got %d", cfg.MaxStatements)
	}

	delimiter := cfg.Delimiter
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	sizeFunc := cfg.SizeFunc
	if sizeFunc == nil {
		sizeFunc = func(statement string) int { return len(statement) }
	}

	return &Batcher{
		maxBytes:      cfg.MaxBytes,
		maxStatements: cfg.MaxStatements,
		delimiter:     delimiter,
		dryRun:        cfg.DryRun,
		sizeFunc:      sizeFunc,
	}, nil
}

// NewForAdapter - Batcher constructor sized from an adapter's advisory limit.
func NewForAdapter(a adapter.SQLAdapter, cfg Config) (*Batcher, error) {
	cfg.MaxBytes = a.MaxQuerySize()

	return New(cfg)
}

// NewFromConfig - Batcher constructor from the application config layer.
func NewFromConfig(cfg *configmgr.BatchConfig) (*Batcher, error) {
	if cfg == nil {
		return nil, errorx.NewConfigurationError("batch configuration is missing")
	}

	if valErrs := validator.NewValidator().ValidateStruct(cfg); len(valErrs) > 0 {
		return nil, errorx.NewConfigurationErrorWrapper(validator.NewValidationError(valErrs), "invalid batch configuration")
	}

	return New(Config{
		MaxBytes:      cfg.MaxBytes,
		MaxStatements: cfg.MaxStatements,
		Delimiter:     cfg.Delimiter,
		DryRun:        cfg.DryRun,
	})
}

// AddStatement adds a statement to the current accumulator if it fits.
//
// It returns true when the accumulator must be flushed before the statement
// can be placed. An oversized statement added to an empty accumulator is
// accepted as an oversize singleton and logged at warn level.
func (b *Batcher) AddStatement(statement string) bool {
	statementSize := b.sizeFunc(statement)

	if b.maxBytes > 0 && statementSize > b.maxBytes {
		if len(b.current) > 0 {
			return true
		}

		logx.GetLogger().LogWarning(context.TODO(),
			fmt.Sprintf("statement size (%d bytes) exceeds maxBytes (%d), it will form its own batch", statementSize, b.maxBytes))

		b.current = append(b.current, statement)
		b.currentSize = statementSize

		return false
	}

	candidateSize := statementSize
	if len(b.current) > 0 {
		candidateSize += b.currentSize + len(b.delimiter)
	}

	if b.maxBytes > 0 && len(b.current) > 0 && candidateSize > b.maxBytes {
		return true
	}

	if b.maxStatements > 0 && len(b.current) >= b.maxStatements {
		return true
	}

	b.current = append(b.current, statement)
	b.currentSize = candidateSize

	return false
}

// Reset clears the current accumulator.
func (b *Batcher) Reset() {
	b.current = nil
	b.currentSize = 0
}

// Flush delivers the current accumulator as one batch and resets it.
//
// The batch text is the delimiter-join of the accumulated statements with a
// trailing delimiter appended. Unless the batcher is in dry-run mode the text
// is passed to execute; a collector, when present, receives every batch
// unconditionally. Returns the number of statements placed into the batch.
func (b *Batcher) Flush(ctx context.Context, execute ExecuteFunc, collector Collector, metadata map[string]any) (int, error) {
	if len(b.current) == 0 {
		return 0, nil
	}

	count := len(b.current)

	batchSQL := strings.Join(b.current, b.delimiter)
	if !strings.HasSuffix(batchSQL, b.delimiter) {
		batchSQL += b.delimiter
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("flushing batch: %d statements, %d bytes", count, b.currentSize))

	if !b.dryRun {
		if execute == nil {
			return 0, errorx.NewConfigurationError("execute func is required unless dryRun is set")
		}

		if err := execute(ctx, batchSQL); err != nil {
			return 0, err
		}
	}

	if collector != nil {
		collector.Collect(batchSQL, metadata)
	}

	b.Reset()

	return count, nil
}

// ProcessStatements packs statements into batches in input order and delivers
// each batch through Flush, returning the total number of statements placed.
//
// Empty input yields 0 with no batches produced. The metadata mapping is
// attached verbatim to every batch this call hands to the collector. An error
// from execute aborts immediately: no rollback of already-delivered batches is
// attempted, wrap the call with adapter.RunInTransaction when cross-batch
// atomicity is needed.
func (b *Batcher) ProcessStatements(
	ctx context.Context,
	statements []string,
	execute ExecuteFunc,
	collector Collector,
	metadata map[string]any) (int, error) {
	if !b.dryRun && execute == nil {
		return 0, errorx.NewConfigurationError("execute func is required unless dryRun is set")
	}

	runId := uuid.NewString()

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("processing %d statements, run %s", len(statements), runId))

	totalProcessed := 0

	for _, statement := range statements {
		if b.AddStatement(statement) {
			count, err := b.Flush(ctx, execute, collector, metadata)
			totalProcessed += count

			if err != nil {
				return totalProcessed, err
			}

			// The accumulator is empty now, the statement always fits.
			b.AddStatement(statement)
		}
	}

	count, err := b.Flush(ctx, execute, collector, metadata)
	totalProcessed += count

	if err != nil {
		return totalProcessed, err
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("processed %d statements, run %s", totalProcessed, runId))

	return totalProcessed, nil
}

// AdapterExecute - bridge an adapter's Execute capability into an ExecuteFunc,
// discarding result rows.
func AdapterExecute(a adapter.SQLAdapter) ExecuteFunc {
	return func(ctx context.Context, batchSQL string) error {
		_, err := a.Execute(ctx, batchSQL)

		return err
	}
}

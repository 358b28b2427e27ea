package batcher_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataplane-io/sqlbatch/pkg/adapter"
	"github.com/dataplane-io/sqlbatch/pkg/batcher"
	"github.com/dataplane-io/sqlbatch/pkg/configmgr"
	"github.com/dataplane-io/sqlbatch/pkg/errorx"
)

// captureExecute returns an ExecuteFunc that records every batch text it receives.
func captureExecute(batches *[]string) batcher.ExecuteFunc {
	return func(ctx context.Context, batchSQL string) error {
		*batches = append(*batches, batchSQL)
		return nil
	}
}

// statementOfSize builds a statement of exactly n bytes.
func statementOfSize(t *testing.T, i, n int) string {
	t.Helper()

	prefix := fmt.Sprintf("INSERT INTO t VALUES (%d, '", i)
	statement := prefix + strings.Repeat("x", n-len(prefix)-2) + "')"
	require.Len(t, statement, n)

	return statement
}

// splitBatch reverses the delimiter-join of a flushed batch text.
func splitBatch(batchSQL string) []string {
	trimmed := strings.TrimSuffix(batchSQL, ";")
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, ";")
}

func TestNewValidation(t *testing.T) {
	var confErr *errorx.ConfigurationError

	_, err := batcher.New(batcher.Config{MaxBytes: -1})
	require.Error(t, err)
	assert.True(t, errors.As(err, &confErr))

	_, err = batcher.New(batcher.Config{MaxStatements: -5})
	require.Error(t, err)
	assert.True(t, errors.As(err, &confErr))

	_, err = batcher.New(batcher.Config{})
	assert.NoError(t, err)
}

func TestProcessStatementsEmptyInput(t *testing.T) {
	b, err := batcher.New(batcher.Config{MaxBytes: 100})
	require.NoError(t, err)

	var batches []string
	collector := batcher.NewQueryCollector()

	count, err := b.ProcessStatements(context.Background(), nil, captureExecute(&batches), collector, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, batches)
	assert.Empty(t, collector.GetQueries())
}

func TestProcessStatementsUnbounded(t *testing.T) {
	b, err := batcher.New(batcher.Config{})
	require.NoError(t, err)

	statements := []string{"SELECT 1", "SELECT 2", "SELECT 3"}

	var batches []string

	count, err := b.ProcessStatements(context.Background(), statements, captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, batches, 1)
	assert.Equal(t, "SELECT 1;SELECT 2;SELECT 3;", batches[0])
}

func TestProcessStatementsSizeSplit(t *testing.T) {
	// 5 statements of 60 bytes each against a 200 byte cap: three fit in the
	// first batch (60*3 + 2 delimiter bytes = 182), the remaining two go in
	// the second.
	b, err := batcher.New(batcher.Config{MaxBytes: 200})
	require.NoError(t, err)

	var statements []string
	for i := 0; i < 5; i++ {
		statements = append(statements, statementOfSize(t, i, 60))
	}

	var batches []string

	count, err := b.ProcessStatements(context.Background(), statements, captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	require.Len(t, batches, 2)
	assert.Len(t, splitBatch(batches[0]), 3)
	assert.Len(t, splitBatch(batches[1]), 2)
}

func TestProcessStatementsPreservesOrder(t *testing.T) {
	b, err := batcher.New(batcher.Config{MaxStatements: 2})
	require.NoError(t, err)

	var statements []string
	for i := 0; i < 7; i++ {
		statements = append(statements, fmt.Sprintf("UPDATE t SET v = %d WHERE id = %d", i, i))
	}

	var batches []string

	count, err := b.ProcessStatements(context.Background(), statements, captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	require.Len(t, batches, 4)

	var reassembled []string
	for _, batchSQL := range batches {
		reassembled = append(reassembled, splitBatch(batchSQL)...)
	}

	assert.Equal(t, statements, reassembled)
}

func TestProcessStatementsOversizeSingleton(t *testing.T) {
	b, err := batcher.New(batcher.Config{MaxBytes: 100})
	require.NoError(t, err)

	oversized := "INSERT INTO t VALUES ('" + strings.Repeat("x", 10_000) + "')"

	var batches []string

	count, err := b.ProcessStatements(context.Background(), []string{oversized}, captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, batches, 1)
	assert.Equal(t, oversized+";", batches[0])
}

func TestProcessStatementsOversizeBetweenBatches(t *testing.T) {
	// An oversized statement arriving while the accumulator is non-empty must
	// flush the accumulator first and then form its own batch.
	b, err := batcher.New(batcher.Config{MaxBytes: 100})
	require.NoError(t, err)

	small := "SELECT 1"
	oversized := "INSERT INTO t VALUES ('" + strings.Repeat("y", 200) + "')"
	statements := []string{small, oversized, small}

	var batches []string

	count, err := b.ProcessStatements(context.Background(), statements, captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, batches, 3)
	assert.Equal(t, small+";", batches[0])
	assert.Equal(t, oversized+";", batches[1])
	assert.Equal(t, small+";", batches[2])
}

func TestProcessStatementsDryRun(t *testing.T) {
	b, err := batcher.New(batcher.Config{MaxBytes: 100, DryRun: true})
	require.NoError(t, err)

	executed := 0
	execute := func(ctx context.Context, batchSQL string) error {
		executed++
		return nil
	}

	collector := batcher.NewQueryCollector()
	metadata := map[string]any{"table": "users"}

	count, err := b.ProcessStatements(context.Background(), []string{"SELECT 1", "SELECT 2"}, execute, collector, metadata)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, executed, "execute must never be invoked in dry-run mode")

	records := collector.GetQueries()
	require.Len(t, records, 1)
	assert.Equal(t, "SELECT 1;SELECT 2;", records[0].Query)
	assert.Equal(t, metadata, records[0].Metadata)
}

func TestProcessStatementsDryRunWithoutExecute(t *testing.T) {
	b, err := batcher.New(batcher.Config{DryRun: true})
	require.NoError(t, err)

	collector := batcher.NewQueryCollector()

	count, err := b.ProcessStatements(context.Background(), []string{"SELECT 1"}, nil, collector, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, collector.GetQueries(), 1)
}

func TestProcessStatementsNilExecute(t *testing.T) {
	b, err := batcher.New(batcher.Config{})
	require.NoError(t, err)

	var confErr *errorx.ConfigurationError

	_, err = b.ProcessStatements(context.Background(), []string{"SELECT 1"}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, &confErr))
}

func TestProcessStatementsCollectorAlongsideExecution(t *testing.T) {
	b, err := batcher.New(batcher.Config{MaxStatements: 1})
	require.NoError(t, err)

	var batches []string
	collector := batcher.NewQueryCollector()

	count, err := b.ProcessStatements(context.Background(), []string{"SELECT 1", "SELECT 2"}, captureExecute(&batches), collector, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, batches, 2)
	assert.Len(t, collector.GetQueries(), 2, "collector receives batches also outside dry-run mode")
}

func TestProcessStatementsExecuteErrorPropagation(t *testing.T) {
	b, err := batcher.New(batcher.Config{MaxStatements: 1})
	require.NoError(t, err)

	execErr := errors.New("backend rejected the batch")
	executed := 0
	execute := func(ctx context.Context, batchSQL string) error {
		executed++
		if executed == 2 {
			return execErr
		}
		return nil
	}

	count, err := b.ProcessStatements(context.Background(), []string{"SELECT 1", "SELECT 2", "SELECT 3"}, execute, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, execErr, "execute errors must be propagated unchanged")
	assert.Equal(t, 1, count, "statements from the failed batch are not counted")
	assert.Equal(t, 2, executed, "the loop stops at the first failure")
}

func TestAddStatementFlushReset(t *testing.T) {
	b, err := batcher.New(batcher.Config{MaxBytes: 30})
	require.NoError(t, err)

	assert.False(t, b.AddStatement("SELECT 1"))
	assert.False(t, b.AddStatement("SELECT 2"))
	assert.True(t, b.AddStatement("SELECT 33333333333333"), "a full accumulator asks for a flush")

	var batches []string

	count, err := b.Flush(context.Background(), captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, batches, 1)
	assert.Equal(t, "SELECT 1;SELECT 2;", batches[0])

	// Flushing an empty accumulator is a no-op.
	count, err = b.Flush(context.Background(), captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Len(t, batches, 1)

	assert.False(t, b.AddStatement("SELECT 4"))
	b.Reset()

	count, err = b.Flush(context.Background(), captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCustomSizeFunc(t *testing.T) {
	// A size function that weighs every statement at 100 forces one statement
	// per batch under a 150 byte cap.
	b, err := batcher.New(batcher.Config{
		MaxBytes: 150,
		SizeFunc: func(statement string) int { return 100 },
	})
	require.NoError(t, err)

	var batches []string

	count, err := b.ProcessStatements(context.Background(), []string{"SELECT 1", "SELECT 2"}, captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, batches, 2)
}

// fakeAdapter - minimal in-memory adapter for wiring tests.
type fakeAdapter struct {
	adapter.NoopTransactions
	executed     []string
	maxQuerySize int
	failWith     error
}

func (f *fakeAdapter) Execute(ctx context.Context, sqlText string) ([]adapter.Row, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}

	f.executed = append(f.executed, sqlText)

	return []adapter.Row{}, nil
}

func (f *fakeAdapter) MaxQuerySize() int { return f.maxQuerySize }

func (f *fakeAdapter) Close(ctx context.Context) error { return nil }

func TestNewForAdapter(t *testing.T) {
	// The adapter advertises a 20 byte cap, so two 15 byte statements cannot
	// share a batch.
	fake := &fakeAdapter{maxQuerySize: 20}

	b, err := batcher.NewForAdapter(fake, batcher.Config{})
	require.NoError(t, err)

	count, err := b.ProcessStatements(context.Background(),
		[]string{"SELECT 11111111", "SELECT 22222222"}, batcher.AdapterExecute(fake), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, fake.executed, 2)
}

func TestAdapterExecuteErrorPropagation(t *testing.T) {
	execErr := errorx.NewDatabaseError("connection reset")
	fake := &fakeAdapter{maxQuerySize: 100, failWith: execErr}

	b, err := batcher.NewForAdapter(fake, batcher.Config{})
	require.NoError(t, err)

	_, err = b.ProcessStatements(context.Background(), []string{"SELECT 1"}, batcher.AdapterExecute(fake), nil, nil)
	require.Error(t, err)

	var dbErr *errorx.DatabaseError
	assert.True(t, errors.As(err, &dbErr))
}

func TestNewFromConfig(t *testing.T) {
	b, err := batcher.NewFromConfig(&configmgr.BatchConfig{MaxBytes: 50, Delimiter: ";"})
	require.NoError(t, err)

	var batches []string

	count, err := b.ProcessStatements(context.Background(),
		[]string{"SELECT 1", "SELECT 2", "SELECT 3", "SELECT 4", "SELECT 5", "SELECT 6", "SELECT 7"},
		captureExecute(&batches), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.Greater(t, len(batches), 1)

	var confErr *errorx.ConfigurationError

	_, err = batcher.NewFromConfig(nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, &confErr))

	_, err = batcher.NewFromConfig(&configmgr.BatchConfig{MaxBytes: -1})
	require.Error(t, err)
	assert.True(t, errors.As(err, &confErr))
}

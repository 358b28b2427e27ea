package adapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataplane-io/sqlbatch/pkg/adapter"
	"github.com/dataplane-io/sqlbatch/pkg/errorx"
)

func TestIsQuery(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"select", "SELECT * FROM users", true},
		{"lowercase select", "select 1", true},
		{"leading whitespace", "  \n\tSELECT 1", true},
		{"cte", "WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"show", "SHOW TABLES", true},
		{"describe", "DESCRIBE users", true},
		{"explain", "EXPLAIN SELECT 1", true},
		{"values", "VALUES (1), (2)", true},
		{"table", "TABLE users", true},
		{"bare keyword", "SELECT", true},
		{"parenthesized", "SELECT(1)", true},
		{"insert", "INSERT INTO users VALUES (1)", false},
		{"update", "UPDATE users SET name = 'a'", false},
		{"delete", "DELETE FROM users", false},
		{"ddl", "CREATE TABLE users (id INT)", false},
		{"keyword as prefix of identifier", "SELECTION_LOG_INSERT()", false},
		{"commented query", "-- report\nSELECT 1", false},
		{"empty", "", false},
		{"whitespace only", "   ", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, adapter.IsQuery(tc.sql))
		})
	}
}

// txRecorder records the transaction calls it receives.
type txRecorder struct {
	adapter.NoopTransactions
	calls    []string
	beginErr error
}

func (r *txRecorder) Execute(ctx context.Context, sql string) ([]adapter.Row, error) {
	return []adapter.Row{}, nil
}

func (r *txRecorder) MaxQuerySize() int { return 1_000 }

func (r *txRecorder) Close(ctx context.Context) error { return nil }

func (r *txRecorder) BeginTransaction(ctx context.Context) error {
	r.calls = append(r.calls, "begin")
	return r.beginErr
}

func (r *txRecorder) CommitTransaction(ctx context.Context) error {
	r.calls = append(r.calls, "commit")
	return nil
}

func (r *txRecorder) RollbackTransaction(ctx context.Context) error {
	r.calls = append(r.calls, "rollback")
	return nil
}

func TestRunInTransactionCommitsOnSuccess(t *testing.T) {
	rec := &txRecorder{}

	err := adapter.RunInTransaction(context.Background(), rec, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"begin", "commit"}, rec.calls)
}

func TestRunInTransactionRollsBackOnTaskError(t *testing.T) {
	rec := &txRecorder{}
	taskErr := errors.New("load failed")

	err := adapter.RunInTransaction(context.Background(), rec, func(ctx context.Context) error {
		return taskErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, taskErr)
	assert.Equal(t, []string{"begin", "rollback"}, rec.calls)
}

func TestRunInTransactionBeginError(t *testing.T) {
	rec := &txRecorder{beginErr: errors.New("backend unavailable")}

	err := adapter.RunInTransaction(context.Background(), rec, func(ctx context.Context) error {
		t.Fatal("task must not run when the transaction cannot start")
		return nil
	})
	require.Error(t, err)

	var dbErr *errorx.DatabaseError
	assert.True(t, errors.As(err, &dbErr))
	assert.Equal(t, []string{"begin"}, rec.calls)
}

func TestNoopTransactions(t *testing.T) {
	var noop adapter.NoopTransactions

	assert.NoError(t, noop.BeginTransaction(context.Background()))
	assert.NoError(t, noop.CommitTransaction(context.Background()))
	assert.NoError(t, noop.RollbackTransaction(context.Background()))
}

func TestPreparedStatement(t *testing.T) {
	ps := adapter.NewPreparedStatement("insert_user", "INSERT INTO users VALUES ($1)")

	assert.Equal(t, "insert_user", ps.GetName())
	assert.Equal(t, "INSERT INTO users VALUES ($1)", ps.GetQuery())
}

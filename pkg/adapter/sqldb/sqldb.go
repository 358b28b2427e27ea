package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dataplane-io/sqlbatch/pkg/adapter"
	"github.com/dataplane-io/sqlbatch/pkg/errorx"
	"github.com/dataplane-io/sqlbatch/pkg/logx"
)

// DefaultMaxQuerySize - conservative advisory limit used when the backend's
// real limit is unknown.
const DefaultMaxQuerySize = 500_000

// Config - Generic adapter settings.
type Config struct {
	// MaxQuerySize overrides the advisory maximum query size. 0 keeps the
	// conservative default.
	MaxQuerySize int
}

// Adapter - reference adapter.SQLAdapter implementation wrapping any
// database/sql connection, making standard-driver backends usable without a
// bespoke adapter.
//
// Execute fetches and returns rows only when the statement looks like a query
// per adapter.IsQuery; everything else returns an empty row sequence. While a
// transaction is active every Execute is routed through it. A nested
// BeginTransaction returns a *errorx.TransactionStateError, as do Commit and
// Rollback without an active transaction.
//
// The adapter owns the *sql.DB it wraps: Close closes it and is safe to call
// more than once. One adapter instance serves one logical caller at a time.
type Adapter struct {
	db           *sql.DB
	maxQuerySize int
	tx           *sql.Tx
	closed       bool
}

// NewAdapter - Generic adapter constructor around an opened *sql.DB.
func NewAdapter(db *sql.DB, cfg Config) (*Adapter, error) {
	if db == nil {
		return nil, errorx.NewConfigurationError("database handle is required")
	}

	maxQuerySize := cfg.MaxQuerySize
	if maxQuerySize == 0 {
		maxQuerySize = DefaultMaxQuerySize
	}

	if maxQuerySize < 0 {
		return nil, errorx.NewConfigurationError("maxQuerySize must not be negative, got %d", cfg.MaxQuerySize)
	}

	return &Adapter{db: db, maxQuerySize: maxQuerySize}, nil
}

// Execute - run one complete SQL text, which may be a multi-statement batch.
func (a *Adapter) Execute(ctx context.Context, sqlText string) ([]adapter.Row, error) {
	if a.closed {
		return nil, errorx.NewConnectionClosedError("execute called on closed adapter")
	}

	if adapter.IsQuery(sqlText) {
		return a.queryRows(ctx, sqlText)
	}

	var err error
	if a.tx != nil {
		_, err = a.tx.ExecContext(ctx, sqlText)
	} else {
		_, err = a.db.ExecContext(ctx, sqlText)
	}

	if err != nil {
		logx.GetLogger().LogError(ctx, fmt.Sprintf("error executing statement '%s'", sqlText), err)

		return nil, errorx.NewDatabaseErrorWrapper(err, "error executing statement")
	}

	return []adapter.Row{}, nil
}

func (a *Adapter) queryRows(ctx context.Context, sqlText string) ([]adapter.Row, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if a.tx != nil {
		rows, err = a.tx.QueryContext(ctx, sqlText)
	} else {
		rows, err = a.db.QueryContext(ctx, sqlText)
	}

	if err != nil {
		logx.GetLogger().LogError(ctx, fmt.Sprintf("error executing query '%s'", sqlText), err)

		return nil, errorx.NewDatabaseErrorWrapper(err, "error executing query")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error reading result columns")
	}

	var result []adapter.Row

	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))

		for i := range values {
			scanTargets[i] = &values[i]
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, errorx.NewDatabaseErrorWrapper(err, "error scanning row")
		}

		result = append(result, values)
	}

	if err := rows.Err(); err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error iterating rows")
	}

	return result, nil
}

// MaxQuerySize - advisory maximum query size in bytes.
func (a *Adapter) MaxQuerySize() int {
	return a.maxQuerySize
}

// Close - close the underlying connection. Idempotent.
func (a *Adapter) Close(ctx context.Context) error {
	if a.closed {
		return nil
	}

	if a.tx != nil {
		// An abandoned transaction is rolled back with the connection.
		if err := a.tx.Rollback(); err != nil {
			logx.GetLogger().LogWarning(ctx, "error rolling back open transaction on close", err)
		}

		a.tx = nil
	}

	a.closed = true

	if err := a.db.Close(); err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error closing connection")
	}

	return nil
}

// BeginTransaction - open a connection-level transaction. Nested calls are an
// error, savepoints are not stacked.
func (a *Adapter) BeginTransaction(ctx context.Context) error {
	if a.closed {
		return errorx.NewConnectionClosedError("begin transaction called on closed adapter")
	}

	if a.tx != nil {
		return errorx.NewTransactionStateError("transaction already active")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error starting transaction")
	}

	a.tx = tx

	return nil
}

// CommitTransaction - commit the active transaction.
func (a *Adapter) CommitTransaction(ctx context.Context) error {
	if a.tx == nil {
		return errorx.NewTransactionStateError("commit with no active transaction")
	}

	err := a.tx.Commit()
	a.tx = nil

	if err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error committing transaction")
	}

	return nil
}

// RollbackTransaction - roll back the active transaction.
func (a *Adapter) RollbackTransaction(ctx context.Context) error {
	if a.tx == nil {
		return errorx.NewTransactionStateError("rollback with no active transaction")
	}

	err := a.tx.Rollback()
	a.tx = nil

	if err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error rolling back transaction")
	}

	return nil
}

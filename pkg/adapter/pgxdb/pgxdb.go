package pgxdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataplane-io/sqlbatch/pkg/adapter"
	"github.com/dataplane-io/sqlbatch/pkg/errorx"
	"github.com/dataplane-io/sqlbatch/pkg/logx"
)

// DefaultMaxQuerySize - practical query size limit for PostgreSQL. The wire
// protocol tolerates up to 1GB, 500MB is the advisory default.
const DefaultMaxQuerySize = 500_000_000

//###################################
//#     PostgresAdapter            #
//###################################

// PostgresAdapter - adapter.SQLAdapter implementation over a pgx connection
// pool.
//
// Outside a transaction each Execute borrows a pooled connection for the
// duration of the call. BeginTransaction pins a dedicated connection until the
// matching commit or rollback; a nested BeginTransaction returns a
// *errorx.TransactionStateError. Close closes the pool and is idempotent.
type PostgresAdapter struct {
	pool         *pgxpool.Pool
	dbConf       adapter.ConnConfig
	maxQuerySize int
	txConn       *pgxpool.Conn
	tx           pgx.Tx
	closed       bool
}

// SetupPostgresAdapter - create the connection pool and the adapter around it.
func SetupPostgresAdapter(ctx context.Context, dbConf adapter.ConnConfig, preparedStatements ...adapter.PreparedStatement) (*PostgresAdapter, error) {
	pool, err := newConnectionPool(ctx, dbConf, preparedStatements...)
	if err != nil {
		return nil, err
	}

	logx.
		GetLogger().
		LogInfo(ctx, fmt.Sprintf("Created new Connection Pool: DB=%s, HOST=%s, PORT=%d",
			pool.Config().ConnConfig.Database,
			pool.Config().ConnConfig.Host,
			pool.Config().ConnConfig.Port))

	maxQuerySize := dbConf.MaxQuerySize
	if maxQuerySize == 0 {
		maxQuerySize = DefaultMaxQuerySize
	}

	return &PostgresAdapter{
		pool:         pool,
		dbConf:       dbConf,
		maxQuerySize: maxQuerySize,
	}, nil
}

func newConnectionPool(ctx context.Context, dbConf adapter.ConnConfig, preparedStatements ...adapter.PreparedStatement) (*pgxpool.Pool, error) {
	poolConfig, err := createConnectionConfiguration(dbConf)
	if err != nil {
		return nil, err
	}

	// Setup prepared statements
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return setupPreparedStatements(ctx, conn, preparedStatements...)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error creating New Connection Pool")
	}

	return pool, nil
}

func setupPreparedStatements(ctx context.Context, conn *pgx.Conn, preparedStatements ...adapter.PreparedStatement) error {
	for _, stmt := range preparedStatements {
		_, err := conn.Prepare(ctx, stmt.GetName(), stmt.GetQuery())
		if err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "Failed to prepare statement '%s'", stmt.GetName())
		}
	}

	return nil
}

func createConnectionConfiguration(dbConf adapter.ConnConfig) (*pgxpool.Config, error) {
	poolConfig, _ := pgxpool.ParseConfig("")

	if dbConf.DBName == "" {
		return nil, errorx.NewConfigurationError("Error creating Connection Pool Config: DB_Name is EMPTY")
	}

	if dbConf.User == "" {
		return nil, errorx.NewConfigurationError("Error creating Connection Pool Config: DB_User is EMPTY")
	}

	if dbConf.Password == "" {
		return nil, errorx.NewConfigurationError("Error creating Connection Pool Config: DB_Password is EMPTY")
	}

	poolConfig.ConnConfig.Database = dbConf.DBName
	poolConfig.ConnConfig.User = dbConf.User
	poolConfig.ConnConfig.Password = dbConf.Password
	poolConfig.ConnConfig.Host = dbConf.Host
	poolConfig.ConnConfig.Port = uint16(dbConf.Port)

	maxConn := dbConf.MaxConn
	if maxConn == 0 {
		maxConn = 1
	}

	poolConfig.MaxConns = int32(runtime.NumCPU()) * maxConn

	return poolConfig, nil
}

// Execute - run one complete SQL text, which may be a multi-statement batch.
// Rows are fetched only for statements that look like queries per
// adapter.IsQuery; JSONB values arrive as maps and are normalized to raw JSON
// bytes so callers see one representation.
func (db *PostgresAdapter) Execute(ctx context.Context, sqlText string) ([]adapter.Row, error) {
	if db.closed {
		return nil, errorx.NewConnectionClosedError("execute called on closed adapter")
	}

	if db.tx != nil {
		return db.executeOn(ctx, db.tx, sqlText)
	}

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		logx.GetLogger().LogError(ctx, "Error acquiring connection from pool", err)

		return nil, errorx.NewDatabaseErrorWrapper(err, "Error acquiring connection from pool")
	}
	defer conn.Release()

	return db.executeOn(ctx, conn, sqlText)
}

// executor - the query surface shared by pgxpool.Conn and pgx.Tx.
type executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (db *PostgresAdapter) executeOn(ctx context.Context, target executor, sqlText string) ([]adapter.Row, error) {
	if !adapter.IsQuery(sqlText) {
		if _, err := target.Exec(ctx, sqlText); err != nil {
			logx.GetLogger().LogError(ctx, fmt.Sprintf("Error executing statement '%s'", sqlText), err)

			return nil, errorx.NewDatabaseErrorWrapper(err, "Error executing statement")
		}

		return []adapter.Row{}, nil
	}

	rows, err := target.Query(ctx, sqlText)
	if err != nil {
		logx.GetLogger().LogError(ctx, fmt.Sprintf("Error executing query '%s'", sqlText), err)

		return nil, errorx.NewDatabaseErrorWrapper(err, "Error executing query")
	}
	defer rows.Close()

	var result []adapter.Row

	// Parse the rows and extract the data.
	for rows.Next() {
		rowElements, err := rows.Values()
		if err != nil {
			logx.GetLogger().LogError(ctx, "Error reading row Values", err)

			return nil, errorx.NewDatabaseErrorWrapper(err, "Error reading row Values")
		}

		// Create a deep copy of rowElements for returning
		rowElementsCopy := make([]any, len(rowElements))
		copy(rowElementsCopy, rowElements)

		normalizeJSONValues(rowElementsCopy)

		result = append(result, rowElementsCopy)
	}

	if err := rows.Err(); err != nil {
		logx.GetLogger().LogError(ctx, "Error iterating rows", err)

		return nil, errorx.NewDatabaseErrorWrapper(err, "Error iterating rows")
	}

	return result, nil
}

// normalizeJSONValues rewrites JSONB map values to their serialized form.
func normalizeJSONValues(values []any) {
	for i, v := range values {
		if m, ok := v.(map[string]interface{}); ok {
			if data, err := json.Marshal(m); err == nil {
				values[i] = json.RawMessage(data)
			}
		}
	}
}

// MaxQuerySize - advisory maximum query size in bytes.
func (db *PostgresAdapter) MaxQuerySize() int {
	return db.maxQuerySize
}

// Close - close db connection pool. Idempotent.
func (db *PostgresAdapter) Close(ctx context.Context) error {
	if db.closed {
		return nil
	}

	if db.tx != nil {
		db.rollbackAndUnpin(ctx)
	}

	db.closed = true
	db.pool.Close()

	logx.GetLogger().LogInfo(ctx, "DB Connection Pool Successfully Closed!")

	return nil
}

// BeginTransaction - pin a connection and start a transaction on it. Nested
// calls are an error, savepoints are not stacked.
func (db *PostgresAdapter) BeginTransaction(ctx context.Context) error {
	if db.closed {
		return errorx.NewConnectionClosedError("begin transaction called on closed adapter")
	}

	if db.tx != nil {
		return errorx.NewTransactionStateError("transaction already active")
	}

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "Error acquiring connection from pool")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()

		return errorx.NewDatabaseErrorWrapper(err, "error starting transaction")
	}

	db.txConn = conn
	db.tx = tx

	return nil
}

// CommitTransaction - commit the active transaction and release its connection.
func (db *PostgresAdapter) CommitTransaction(ctx context.Context) error {
	if db.tx == nil {
		return errorx.NewTransactionStateError("commit with no active transaction")
	}

	err := db.tx.Commit(ctx)

	db.tx = nil
	db.txConn.Release()
	db.txConn = nil

	if err != nil {
		logx.GetLogger().LogError(ctx, "error during transaction commit", err)

		return errorx.NewDatabaseErrorWrapper(err, "error during transaction commit")
	}

	return nil
}

// RollbackTransaction - roll back the active transaction and release its
// connection.
func (db *PostgresAdapter) RollbackTransaction(ctx context.Context) error {
	if db.tx == nil {
		return errorx.NewTransactionStateError("rollback with no active transaction")
	}

	db.rollbackAndUnpin(ctx)

	return nil
}

func (db *PostgresAdapter) rollbackAndUnpin(ctx context.Context) {
	if err := db.tx.Rollback(ctx); err != nil {
		logx.GetLogger().LogError(ctx, "error Rolling Back transaction", err)
	} else {
		logx.GetLogger().LogDebug(ctx, "Rollback transaction")
	}

	db.tx = nil
	db.txConn.Release()
	db.txConn = nil
}

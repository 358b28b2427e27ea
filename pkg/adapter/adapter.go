//nolint:gochecknoglobals
package adapter

import (
	"context"
	"strings"

	"github.com/dataplane-io/sqlbatch/pkg/errorx"
)

// =====================================
// SQLAdapter Interface
// =====================================

// Row represents a result row returned by Execute.
type Row []any

// SQLAdapter - uniform execution surface over heterogeneous SQL backends.
//
// An adapter is bound to a single backend connection and is not required to be
// safe for concurrent use. Execute runs one complete SQL text, which may be a
// delimiter-joined batch produced by the batcher, and returns a row sequence
// (empty for non-query statements). MaxQuerySize declares the backend's safe
// maximum query size in bytes; it is advisory and consumed by the caller wiring
// a batcher and an adapter together, never enforced by the adapter itself.
//
// Close releases the underlying connection and must be idempotent. Calling
// Execute after Close fails with a *errorx.ConnectionClosedError.
//
// The transaction methods are optional capabilities: adapters for backends
// without transaction support embed NoopTransactions. Transactional adapters
// must make CommitTransaction durable relative to every Execute issued since
// the matching BeginTransaction. Whether a nested BeginTransaction is a no-op,
// an error or savepoint-stacked is backend-defined and documented per adapter.
type SQLAdapter interface {
	Execute(ctx context.Context, sql string) ([]Row, error)
	MaxQuerySize() int
	Close(ctx context.Context) error
	BeginTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
}

// =====================================
// NoopTransactions
// =====================================

// NoopTransactions - embeddable no-op default for the optional transaction
// capabilities, for backends that auto-commit every statement.
type NoopTransactions struct{}

func (NoopTransactions) BeginTransaction(ctx context.Context) error { return nil }

func (NoopTransactions) CommitTransaction(ctx context.Context) error { return nil }

func (NoopTransactions) RollbackTransaction(ctx context.Context) error { return nil }

// =====================================
// ConnConfig Definition
// =====================================

// ConnConfig - adapter connection configuration.
type ConnConfig struct {
	Host         string
	Port         int32
	DBName       string
	User         string
	Password     string
	MaxConn      int32
	MaxQuerySize int
	IsLocalEnv   bool
}

// ============================================
// Prepared Statements structs
// ============================================

// PreparedStatement - Prepared statement query.
type PreparedStatement struct {
	Name  string
	Query string
}

// NewPreparedStatement - Create new Prepared Statement.
func NewPreparedStatement(name, query string) PreparedStatement {
	return PreparedStatement{Name: name, Query: query}
}

// GetName - name of the prepared statement.
func (p PreparedStatement) GetName() string {
	return p.Name
}

// GetQuery - query of the prepared statement.
func (p PreparedStatement) GetQuery() string {
	return p.Query
}

// ============================================
// Transaction helper
// ============================================

// RunInTransaction - run a task between BeginTransaction and CommitTransaction,
// rolling back when the task returns an error. Gives callers cross-batch
// atomicity: the batcher itself never rolls back already-executed batches.
func RunInTransaction(ctx context.Context, a SQLAdapter, task func(ctx context.Context) error) error {
	if err := a.BeginTransaction(ctx); err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error starting transaction")
	}

	if err := task(ctx); err != nil {
		if rbErr := a.RollbackTransaction(ctx); rbErr != nil {
			return errorx.NewDatabaseErrorWrapper(rbErr, "error rolling back transaction after: %v", err)
		}

		return err
	}

	if err := a.CommitTransaction(ctx); err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error committing transaction")
	}

	return nil
}

// ============================================
// Query detection heuristic
// ============================================

var queryKeywords = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "VALUES", "TABLE"}

// IsQuery reports whether a statement looks like a row-returning query.
//
// This is a documented heuristic, not SQL parsing: the statement is trimmed of
// leading whitespace, case-folded and prefix-matched against the read keywords.
// Leading SQL comments are not stripped, so a commented query is treated as a
// non-query statement.
func IsQuery(sql string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(sql))

	for _, kw := range queryKeywords {
		if strings.HasPrefix(trimmed, kw) {
			rest := trimmed[len(kw):]
			if rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '(' || rest[0] == '*' {
				return true
			}
		}
	}

	return false
}

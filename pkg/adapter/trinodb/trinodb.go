package trinodb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trinodb/trino-go-client/trino"

	"github.com/dataplane-io/sqlbatch/pkg/adapter"
	"github.com/dataplane-io/sqlbatch/pkg/adapter/sqldb"
	"github.com/dataplane-io/sqlbatch/pkg/errorx"
	"github.com/dataplane-io/sqlbatch/pkg/logx"
)

// DefaultMaxQuerySize - Trino rejects query texts above roughly 1MB, batches
// must stay below that.
const DefaultMaxQuerySize = 1_000_000

// Config - Trino connection settings.
type Config struct {
	Host         string
	Port         int32
	User         string
	Catalog      string
	Schema       string
	Scheme       string
	Source       string
	MaxQuerySize int
}

// Adapter - adapter.SQLAdapter implementation for Trino.
//
// Trino auto-commits every statement, so the transaction capabilities are
// no-ops. Everything else delegates to the Generic adapter over the Trino
// database/sql driver.
type Adapter struct {
	adapter.NoopTransactions
	generic *sqldb.Adapter
}

// NewAdapter - Trino adapter constructor.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Host == "" {
		return nil, errorx.NewConfigurationError("trino host is required")
	}

	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}

	port := cfg.Port
	if port == 0 {
		port = 8080
	}

	user := cfg.User
	if user == "" {
		user = "admin"
	}

	source := cfg.Source
	if source == "" {
		source = "sqlbatch"
	}

	trinoConfig := trino.Config{
		ServerURI: fmt.Sprintf("%s://%s@%s:%d", scheme, user, cfg.Host, port),
		Catalog:   cfg.Catalog,
		Schema:    cfg.Schema,
		Source:    source,
	}

	dsn, err := trinoConfig.FormatDSN()
	if err != nil {
		return nil, errorx.NewConfigurationErrorWrapper(err, "error building trino DSN")
	}

	db, err := sql.Open("trino", dsn)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error opening trino connection")
	}

	maxQuerySize := cfg.MaxQuerySize
	if maxQuerySize == 0 {
		maxQuerySize = DefaultMaxQuerySize
	}

	generic, err := sqldb.NewAdapter(db, sqldb.Config{MaxQuerySize: maxQuerySize})
	if err != nil {
		return nil, err
	}

	logx.GetLogger().LogDebug(context.TODO(),
		fmt.Sprintf("Initialized trino adapter for %s://%s:%d", scheme, cfg.Host, port))

	return &Adapter{generic: generic}, nil
}

// Execute - run one complete SQL text on Trino.
func (a *Adapter) Execute(ctx context.Context, sqlText string) ([]adapter.Row, error) {
	return a.generic.Execute(ctx, sqlText)
}

// MaxQuerySize - advisory maximum query size in bytes.
func (a *Adapter) MaxQuerySize() int {
	return a.generic.MaxQuerySize()
}

// Close - close the Trino connection. Idempotent.
func (a *Adapter) Close(ctx context.Context) error {
	return a.generic.Close(ctx)
}

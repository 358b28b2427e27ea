package snowdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/snowflakedb/gosnowflake"

	"github.com/dataplane-io/sqlbatch/pkg/adapter/sqldb"
	"github.com/dataplane-io/sqlbatch/pkg/errorx"
	"github.com/dataplane-io/sqlbatch/pkg/logx"
)

// DefaultMaxQuerySize - Snowflake accepts much larger query texts than most
// engines, 10MB is a safe advisory default.
const DefaultMaxQuerySize = 10_000_000

// Config - Snowflake connection settings.
type Config struct {
	Account      string
	User         string
	Password     string
	Database     string
	Schema       string
	Warehouse    string
	Role         string
	MaxQuerySize int
}

// Adapter - adapter.SQLAdapter implementation for Snowflake.
//
// Snowflake supports connection-level transactions, so begin/commit/rollback
// delegate to the Generic adapter underneath (nested begin is an error).
type Adapter struct {
	*sqldb.Adapter
}

// NewAdapter - Snowflake adapter constructor.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Account == "" || cfg.User == "" {
		return nil, errorx.NewConfigurationError("snowflake account and user are required")
	}

	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
	if err != nil {
		return nil, errorx.NewConfigurationErrorWrapper(err, "error building snowflake DSN")
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error opening snowflake connection")
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
		fmt.Sprintf("Initialized snowflake adapter for account %s", cfg.Account))

	return &Adapter{Adapter: generic}, nil
}

package bqdb

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dataplane-io/sqlbatch/pkg/adapter"
	"github.com/dataplane-io/sqlbatch/pkg/errorx"
	"github.com/dataplane-io/sqlbatch/pkg/logx"
)

// DefaultMaxQuerySize - BigQuery caps unparameterized query texts at 1MB.
const DefaultMaxQuerySize = 1_000_000

// Config - BigQuery client settings.
type Config struct {
	ProjectId string
	Location  string
	// CredentialsFile - path to a service account key, used for local runs.
	// When empty, Application Default Credentials apply.
	CredentialsFile string
	MaxQuerySize    int
}

// BigQueryAdapter - adapter.SQLAdapter implementation for BigQuery.
//
// Every statement runs as its own auto-committed job, so the transaction
// capabilities are no-ops. Row-returning statements are read through the
// iterator into adapter.Row values; DML/DDL statements run as a job that is
// waited on so failures surface from Execute.
type BigQueryAdapter struct {
	adapter.NoopTransactions
	client       *bigquery.Client
	location     string
	maxQuerySize int
	closed       bool
}

// NewBigQueryAdapter - BigQuery adapter constructor.
func NewBigQueryAdapter(ctx context.Context, cfg Config) (*BigQueryAdapter, error) {
	if cfg.ProjectId == "" {
		return nil, errorx.NewConfigurationError("bigquery project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectId, opts...)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error creating BigQuery client")
	}

	maxQuerySize := cfg.MaxQuerySize
	if maxQuerySize == 0 {
		maxQuerySize = DefaultMaxQuerySize
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("Initialized BigQuery adapter for project %s", cfg.ProjectId))

	return &BigQueryAdapter{
		client:       client,
		location:     cfg.Location,
		maxQuerySize: maxQuerySize,
	}, nil
}

// Execute - run one complete SQL text as a BigQuery job.
func (bq *BigQueryAdapter) Execute(ctx context.Context, sqlText string) ([]adapter.Row, error) {
	if bq.closed {
		return nil, errorx.NewConnectionClosedError("execute called on closed adapter")
	}

	query := bq.client.Query(sqlText)
	if bq.location != "" {
		query.Location = bq.location
	}

	if adapter.IsQuery(sqlText) {
		return bq.readRows(ctx, query)
	}

	job, err := query.Run(ctx)
	if err != nil {
		logx.GetLogger().LogError(ctx, fmt.Sprintf("Error running BigQuery job for '%s'", sqlText), err)

		return nil, errorx.NewDatabaseErrorWrapper(err, "error running BigQuery job")
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error waiting for BigQuery job")
	}

	if err := status.Err(); err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "BigQuery job failed")
	}

	return []adapter.Row{}, nil
}

func (bq *BigQueryAdapter) readRows(ctx context.Context, query *bigquery.Query) ([]adapter.Row, error) {
	it, err := query.Read(ctx)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error reading BigQuery results")
	}

	var result []adapter.Row

	for {
		var values []bigquery.Value

		err := it.Next(&values)
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, errorx.NewDatabaseErrorWrapper(err, "error iterating BigQuery rows")
		}

		row := make(adapter.Row, len(values))
		for i, v := range values {
			row[i] = v
		}

		result = append(result, row)
	}

	return result, nil
}

// MaxQuerySize - advisory maximum query size in bytes.
func (bq *BigQueryAdapter) MaxQuerySize() int {
	return bq.maxQuerySize
}

// Close - close the BigQuery client. Idempotent.
func (bq *BigQueryAdapter) Close(ctx context.Context) error {
	if bq.closed {
		return nil
	}

	bq.closed = true

	if err := bq.client.Close(); err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error closing BigQuery client")
	}

	return nil
}

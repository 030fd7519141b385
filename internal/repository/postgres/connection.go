package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"canopy/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Prefix     string
	Categories string
	Rules      string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Prefix:     prefix,
		Categories: fmt.Sprintf("%scategories", prefix),
		Rules:      fmt.Sprintf("%srules", prefix),
	}
}

// Pool sizing for the category service
const (
	MaxPoolConns      = 25
	MinPoolConns      = 5
	maxConnIdleTime   = 5 * time.Minute
	healthCheckPeriod = time.Minute
	pgBouncerPort     = 6543
)

// CreateConnectionPool opens and pings a pgx pool.
//
// Connections through PgBouncer in transaction pooling mode (port 6543) cannot
// reuse server-side prepared statements, so unless the URL sets
// default_query_exec_mode the pool falls back to QueryExecModeCacheDescribe.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = MaxPoolConns
	config.MinConns = MinPoolConns
	config.MaxConnIdleTime = maxConnIdleTime
	config.HealthCheckPeriod = healthCheckPeriod
	adaptForPgBouncer(config.ConnConfig)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// adaptForPgBouncer switches the default exec mode when connecting to the pooler port
func adaptForPgBouncer(conn *pgx.ConnConfig) {
	if conn.Port != pgBouncerPort || conn.DefaultQueryExecMode != pgx.QueryExecModeCacheStatement {
		return
	}
	conn.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
	slog.Debug("using cache_describe exec mode for PgBouncer", "port", conn.Port)
}

// GetExecutor returns the transaction carried by ctx, or pool outside ExecTx
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}

// db/postgres.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/config"
	logger "github.com/gatewarden/gatewarden/logging"
)

var PgPool *pgxpool.Pool

func InitPostgres() error {
	uri := config.GetString("postgres.uri")
	logger.Info("Connecting to Postgres", zap.String("uri", uri))

	poolCfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConns = 50

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	PgPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := PgPool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	logger.Info("Successfully connected to Postgres")
	return nil
}

func ClosePostgres() {
	if PgPool != nil {
		PgPool.Close()
		logger.Info("Postgres pool closed")
	}
}

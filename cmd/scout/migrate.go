package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trend-scout/internal/storage/clickhouse"
	"trend-scout/internal/storage/migrations"
	"trend-scout/internal/storage/postgres"
)

var migrateTimeout time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the remote store and history schemas",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().DurationVar(&migrateTimeout, "timeout", time.Minute, "Overall migration timeout")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Remote.PostgresDSN == "" && cfg.History.ClickhouseDSN == "" {
		return errors.New("nothing to migrate: set remote.postgres_dsn or history.clickhouse_dsn")
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	if cfg.Remote.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Remote.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info().Msg("postgres migrations applied")
	}

	if cfg.History.ClickhouseDSN != "" {
		conn, err := clickhouse.NewConn(ctx, cfg.History.ClickhouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Info().Msg("clickhouse migrations applied")
	}
	return nil
}

// Пакет database открывает соединения с PostgreSQL и ClickHouse и применяет миграции golang-migrate
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"Portfolio/internal/config"
)

// OpenPostgres открывает пул соединений и проверяет доступность базы
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Name).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("postgres connection established")
	return db, nil
}

// OpenClickHouse открывает соединение с ClickHouse
func OpenClickHouse(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return db, nil
}

// MigratePostgres применяет все up-миграции из каталога path
func MigratePostgres(db *sql.DB, path string, log zerolog.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migrate driver: %w", err)
	}
	return up(driver, "postgres", path, log)
}

// MigrateClickHouse применяет миграции таблицы events_log
func MigrateClickHouse(db *sql.DB, path string, log zerolog.Logger) error {
	driver, err := clickhouse.WithInstance(db, &clickhouse.Config{})
	if err != nil {
		return fmt.Errorf("failed to create clickhouse migrate driver: %w", err)
	}
	return up(driver, "clickhouse", path, log)
}

func up(driver database.Driver, name, path string, log zerolog.Logger) error {
	m, err := migrate.NewWithDatabaseInstance("file://"+path, name, driver)
	if err != nil {
		return fmt.Errorf("failed to create %s migrate instance: %w", name, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply %s migrations: %w", name, err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read %s migration version: %w", name, err)
	}
	log.Info().Str("database", name).Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}

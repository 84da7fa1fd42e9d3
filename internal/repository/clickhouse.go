package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"Portfolio/internal/model"
)

// ClickhouseRepo реализует пакетную запись доменных событий в ClickHouse
type ClickhouseRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewClickhouseRepo создаёт новый репозиторий для ClickHouse
func NewClickhouseRepo(db *sql.DB, log zerolog.Logger) *ClickhouseRepo {
	return &ClickhouseRepo{db: db, log: log}
}

// BatchInsertEvents записывает пакет событий в таблицу events_log.
// clickhouse-go собирает все Exec подготовленного запроса в один блок и отправляет его на Commit
func (r *ClickhouseRepo) BatchInsertEvents(ctx context.Context, events []model.Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin clickhouse batch: %w", err)
	}
	r.log.Debug().Int("count", len(events)).Msg("inserting event batch into clickhouse")
	query := `INSERT INTO events_log (Kind, Entity, EntityId, Payload, EventTime) VALUES (?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare clickhouse batch: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, e := range events {
		at := time.Now()
		if e.At > 0 {
			at = time.UnixMilli(e.At)
		}
		if _, err := stmt.ExecContext(ctx, e.Kind, e.Entity, e.EntityID, string(e.Payload), at); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to append event to batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clickhouse batch: %w", err)
	}
	r.log.Info().Int("count", len(events)).Msg("event batch stored")
	return nil
}

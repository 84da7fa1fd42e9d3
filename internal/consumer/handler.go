package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"Portfolio/internal/model"
)

// Repo пакетная запись событий в ClickHouse
type Repo interface {
	BatchInsertEvents(ctx context.Context, events []model.Event) error
}

// Consumer буферизует события из NATS и отправляет их пакетно в ClickHouse.
// mu защищает буфер events
type Consumer struct {
	repo      Repo
	batchSize int
	log       zerolog.Logger
	events    []model.Event
	mu        sync.Mutex
}

// NewConsumer создаёт Consumer с указанным репозиторием и размером пакета
func NewConsumer(repo Repo, batchSize int, log zerolog.Logger) *Consumer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Consumer{repo: repo, batchSize: batchSize, log: log, events: make([]model.Event, 0, batchSize)}
}

// HandleMessage разбирает событие и при достижении batchSize отправляет буфер в ClickHouse
func (c *Consumer) HandleMessage(ctx context.Context, data []byte) error {
	var e model.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if e.Kind == "" {
		return fmt.Errorf("decode event: empty kind")
	}
	c.log.Debug().Str("kind", e.Kind).Str("entity_id", e.EntityID).Msg("event received")

	c.mu.Lock()
	c.events = append(c.events, e)
	if len(c.events) < c.batchSize {
		c.mu.Unlock()
		return nil
	}
	batch := c.drain()
	c.mu.Unlock()
	return c.repo.BatchInsertEvents(ctx, batch)
}

// Flush отправляет все накопленные события, если они есть
func (c *Consumer) Flush(ctx context.Context) error {
	c.mu.Lock()
	if len(c.events) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := c.drain()
	c.mu.Unlock()
	return c.repo.BatchInsertEvents(ctx, batch)
}

// Run периодически сбрасывает буфер, пока ctx не отменён; на выходе выполняет финальный Flush
func (c *Consumer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return c.Flush(context.Background())
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				c.log.Error().Err(err).Msg("periodic flush failed")
			}
		}
	}
}

// drain вызывается под mu
func (c *Consumer) drain() []model.Event {
	batch := make([]model.Event, len(c.events))
	copy(batch, c.events)
	c.events = c.events[:0]
	return batch
}

package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"Portfolio/internal/model"
)

// mockRepo реализует Repo и сохраняет полученные батчи
type mockRepo struct {
	mu       sync.Mutex
	received [][]model.Event
	err      error
}

func (m *mockRepo) BatchInsertEvents(ctx context.Context, events []model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := make([]model.Event, len(events))
	copy(batch, events)
	m.received = append(m.received, batch)
	return m.err
}

func (m *mockRepo) batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func eventJSON(t *testing.T, id string) []byte {
	data, err := json.Marshal(model.NewEvent("project.updated", "project", id, nil, 1))
	require.NoError(t, err)
	return data
}

func TestHandleMessage_NoFlush(t *testing.T) {
	repo := &mockRepo{}
	cons := NewConsumer(repo, 3, zerolog.Nop())

	require.NoError(t, cons.HandleMessage(context.Background(), eventJSON(t, "p1")))
	require.Len(t, repo.received, 0)
}

func TestHandleMessage_FlushOnBatch(t *testing.T) {
	repo := &mockRepo{}
	cons := NewConsumer(repo, 2, zerolog.Nop())

	require.NoError(t, cons.HandleMessage(context.Background(), eventJSON(t, "p1")))
	require.NoError(t, cons.HandleMessage(context.Background(), eventJSON(t, "p2")))

	require.Len(t, repo.received, 1)
	require.Len(t, repo.received[0], 2)
	require.Equal(t, "p1", repo.received[0][0].EntityID)
	require.Equal(t, "p2", repo.received[0][1].EntityID)
}

func TestFlush_Empty(t *testing.T) {
	repo := &mockRepo{}
	cons := NewConsumer(repo, 5, zerolog.Nop())
	require.NoError(t, cons.Flush(context.Background()))
	require.Len(t, repo.received, 0)
}

func TestFlush_NonEmpty(t *testing.T) {
	repo := &mockRepo{}
	cons := NewConsumer(repo, 5, zerolog.Nop())
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, cons.HandleMessage(context.Background(), eventJSON(t, id)))
	}
	require.Len(t, repo.received, 0)

	require.NoError(t, cons.Flush(context.Background()))
	require.Len(t, repo.received, 1)
	require.Len(t, repo.received[0], 3)
}

func TestHandleMessage_ParseError(t *testing.T) {
	repo := &mockRepo{}
	cons := NewConsumer(repo, 1, zerolog.Nop())
	require.Error(t, cons.HandleMessage(context.Background(), []byte("not json")))
	// событие без kind не принимается
	require.Error(t, cons.HandleMessage(context.Background(), []byte(`{"entity":"project"}`)))
	require.Len(t, repo.received, 0)
}

func TestBatchInsertError_IsPropagated(t *testing.T) {
	ex := errors.New("insert failed")
	repo := &mockRepo{err: ex}
	cons := NewConsumer(repo, 1, zerolog.Nop())
	err := cons.HandleMessage(context.Background(), eventJSON(t, "x"))
	require.ErrorIs(t, err, ex)
}

// Run сбрасывает остаток буфера при остановке
func TestRun_FlushesOnCancel(t *testing.T) {
	repo := &mockRepo{}
	cons := NewConsumer(repo, 10, zerolog.Nop())
	require.NoError(t, cons.HandleMessage(context.Background(), eventJSON(t, "x")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cons.Run(ctx, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	require.Equal(t, 1, repo.batches())
}

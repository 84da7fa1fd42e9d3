// Пакет eventlog публикует доменные события в NATS для последующей записи в ClickHouse
package eventlog

import (
	"encoding/json"
	"fmt"

	"Portfolio/internal/model"
)

// Conn определяет минимальный интерфейс NATS-подключения
// *nats.Conn удовлетворяет ему без адаптеров
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSClient хранит Conn и тему subject для публикации событий
type NATSClient struct {
	conn    Conn
	subject string
}

// NewClient создаёт NATSClient, связывая Conn и subject
func NewClient(conn Conn, subject string) *NATSClient {
	return &NATSClient{conn: conn, subject: subject}
}

// Publish сериализует событие в JSON и отправляет в subject
func (n *NATSClient) Publish(e model.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Kind, err)
	}
	return n.conn.Publish(n.subject, data)
}

// Discard используется, когда NATS не настроен: события молча отбрасываются
type Discard struct{}

func (Discard) Publish(model.Event) error { return nil }

package entity

import (
	"encoding/json"
	"time"
)

// Tipos de evento publicados vía outbox.
const (
	EventOrderPlaced = "order.placed"
)

// OutboxEvent evento pendiente de publicar, escrito en la misma transacción que lo origina.
type OutboxEvent struct {
	ID        int64
	EventID   string
	EventType string
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Conversation описывает канал общения клиента и исполнителя по заявке.
// На одну заявку создаётся не более одного канала.
type Conversation struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RequestID   uuid.UUID `db:"request_id" json:"request_id"`
	RequesterID uuid.UUID `db:"requester_id" json:"requester_id"`
	ProviderID  uuid.UUID `db:"provider_id" json:"provider_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Notification описывает сохранённое уведомление пользователя.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Kind      string          `db:"kind" json:"kind"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

package models

import (
	"time"

	"github.com/jackc/pgtype"
)

// ChatConversation stores one user's conversation history. The ID is minted
// by the client on the first turn, so it is a plain string key rather than a
// generated column.
type ChatConversation struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// User who owns this conversation
	User string `json:"user" gorm:"not null;index"`

	// Name is derived from the first message of the conversation
	Name string `json:"name"`

	// Messages contains the full history, hidden context messages included,
	// in JSONB format
	Messages pgtype.JSONB `json:"messages" gorm:"type:jsonb;not null"`
}

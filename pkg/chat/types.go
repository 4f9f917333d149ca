package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Role tags a conversation message. Context messages hold evidence extracted
// from files or links; they are persisted for prompt continuity but never
// shown to history readers.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleContext   Role = "context"
)

// Message is one append-only entry in a conversation's log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Visible reports whether the message may be returned to a history reader.
func (m Message) Visible() bool {
	return m.Role == RoleUser || m.Role == RoleAssistant
}

// Conversation is the owner-scoped message log for one chat.
type Conversation struct {
	ID        string
	User      string
	Name      string
	Messages  []Message
	UpdatedAt time.Time
}

// VisibleMessages filters the log down to user/assistant entries.
func (c *Conversation) VisibleMessages() []Message {
	visible := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Visible() {
			visible = append(visible, m)
		}
	}
	return visible
}

// ConversationSummary is a list entry for the conversation index.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Preview   string    `json:"preview"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrNotFound is returned by stores when a conversation does not exist or
// belongs to a different owner; the two cases are deliberately
// indistinguishable to callers.
var ErrNotFound = errors.New("conversation not found")

// ConversationStore is the durable, owner-scoped conversation log.
type ConversationStore interface {
	Get(ctx context.Context, id, user string) (*Conversation, error)
	Upsert(ctx context.Context, conversation *Conversation, isNew bool) error
	List(ctx context.Context, user string) ([]ConversationSummary, error)
	Delete(ctx context.Context, id, user string) error
}

package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgtype"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/pnibot/pnibot/pkg/chat"
	"github.com/pnibot/pnibot/pkg/db/models"
)

// ChatStore persists conversations in the chat_conversations table.
type ChatStore struct {
	db *DB
}

func NewChatStore(database *DB) *ChatStore {
	return &ChatStore{db: database}
}

func (s *ChatStore) Get(ctx context.Context, id, user string) (*chat.Conversation, error) {
	var record models.ChatConversation
	err := s.db.DB.WithContext(ctx).
		Where("id = ? AND \"user\" = ?", id, user).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "error looking up conversation")
	}

	return toConversation(&record)
}

func (s *ChatStore) Upsert(ctx context.Context, conversation *chat.Conversation, isNew bool) error {
	messagesJSON, err := json.Marshal(conversation.Messages)
	if err != nil {
		return errors.Wrap(err, "error marshaling messages")
	}

	record := models.ChatConversation{
		ID:   conversation.ID,
		User: conversation.User,
		Name: conversation.Name,
	}
	if err := record.Messages.Set(messagesJSON); err != nil {
		return errors.Wrap(err, "error setting messages JSONB")
	}

	if isNew {
		if err := s.db.DB.WithContext(ctx).Create(&record).Error; err != nil {
			return errors.Wrap(err, "error creating conversation")
		}
		return nil
	}

	err = s.db.DB.WithContext(ctx).
		Model(&models.ChatConversation{}).
		Where("id = ? AND \"user\" = ?", conversation.ID, conversation.User).
		Updates(map[string]interface{}{
			"name":       record.Name,
			"messages":   record.Messages,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return errors.Wrap(err, "error updating conversation")
	}
	return nil
}

func (s *ChatStore) List(ctx context.Context, user string) ([]chat.ConversationSummary, error) {
	var records []models.ChatConversation
	err := s.db.DB.WithContext(ctx).
		Where("\"user\" = ?", user).
		Order("updated_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "error listing conversations")
	}

	summaries := make([]chat.ConversationSummary, 0, len(records))
	for i := range records {
		conversation, err := toConversation(&records[i])
		if err != nil {
			return nil, err
		}

		preview := ""
		visible := conversation.VisibleMessages()
		if len(visible) > 0 {
			preview = visible[len(visible)-1].Content
		}

		summaries = append(summaries, chat.ConversationSummary{
			ID:        conversation.ID,
			Name:      conversation.Name,
			Preview:   preview,
			UpdatedAt: records[i].UpdatedAt,
		})
	}

	return summaries, nil
}

func (s *ChatStore) Delete(ctx context.Context, id, user string) error {
	result := s.db.DB.WithContext(ctx).
		Where("id = ? AND \"user\" = ?", id, user).
		Delete(&models.ChatConversation{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "error deleting conversation")
	}
	if result.RowsAffected == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func toConversation(record *models.ChatConversation) (*chat.Conversation, error) {
	var messages []chat.Message
	if record.Messages.Status == pgtype.Present {
		if err := json.Unmarshal(record.Messages.Bytes, &messages); err != nil {
			return nil, errors.Wrap(err, "error unmarshaling messages")
		}
	}

	return &chat.Conversation{
		ID:        record.ID,
		User:      record.User,
		Name:      record.Name,
		Messages:  messages,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

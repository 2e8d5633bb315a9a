package postgres

import (
	"context"

	"chat-relay/internal/models"

	"gorm.io/gorm"
)

const DefaultHistoryLimit = 100

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

// Commit appends one message. It is the write-behind queue's sink and is only
// ever called from the queue's drain goroutine.
func (r *MessageRepository) Commit(ctx context.Context, roomID, senderID uint, content string) error {
	return r.db.WithContext(ctx).Create(&models.Message{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
	}).Error
}

// ListByRoom returns a page of a room's history, newest first.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID uint, skip, limit int) ([]models.MessageResponse, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if skip < 0 {
		skip = 0
	}

	var rows []models.MessageResponse
	err := r.db.WithContext(ctx).
		Table("messages").
		Select("messages.id, messages.room_id, messages.sender_id, users.username AS sender_username, messages.content, messages.timestamp").
		Joins("JOIN users ON users.id = messages.sender_id").
		Where("messages.room_id = ?", roomID).
		Order("messages.timestamp DESC, messages.id DESC").
		Offset(skip).
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

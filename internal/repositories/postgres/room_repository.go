package postgres

import (
	"context"
	"errors"
	"fmt"

	"chat-relay/internal/models"

	"gorm.io/gorm"
)

var (
	ErrRoomNameTaken = errors.New("room name already exists")
	ErrRoomNotFound  = errors.New("room not found")
)

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *models.ChatRoom) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ChatRoom
		if err := tx.Where("name = ?", room.Name).First(&existing).Error; err == nil {
			return ErrRoomNameTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check room name: %w", err)
		}

		if err := tx.Create(room).Error; err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		return nil
	})
}

func (r *RoomRepository) FindByID(ctx context.Context, id uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).First(&room, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepository) List(ctx context.Context) ([]*models.ChatRoom, error) {
	var rooms []*models.ChatRoom
	err := r.db.WithContext(ctx).Order("id").Find(&rooms).Error
	return rooms, err
}

// RoomExists is the relay's directory lookup.
func (r *RoomRepository) RoomExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ChatRoom{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

package services

import (
	"context"
	"errors"
	"log/slog"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories/postgres"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomAlreadyExist = errors.New("room with this name already exists")
)

type RoomStore interface {
	Create(ctx context.Context, room *models.ChatRoom) error
	FindByID(ctx context.Context, id uint) (*models.ChatRoom, error)
	List(ctx context.Context) ([]*models.ChatRoom, error)
}

type MessageHistory interface {
	ListByRoom(ctx context.Context, roomID uint, skip, limit int) ([]models.MessageResponse, error)
}

type RoomService struct {
	rooms    RoomStore
	messages MessageHistory
}

func NewRoomService(rooms RoomStore, messages MessageHistory) *RoomService {
	return &RoomService{
		rooms:    rooms,
		messages: messages,
	}
}

func (s *RoomService) CreateRoom(ctx context.Context, name string, creatorID uint) (*models.RoomResponse, error) {
	room := &models.ChatRoom{Name: name, CreatedBy: creatorID}
	if err := s.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, postgres.ErrRoomNameTaken) {
			return nil, ErrRoomAlreadyExist
		}
		return nil, err
	}

	slog.Info("Room created", "roomID", room.ID, "name", room.Name, "createdBy", creatorID)
	resp := room.ToResponse()
	return &resp, nil
}

func (s *RoomService) ListRooms(ctx context.Context) ([]models.RoomResponse, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.ToResponse())
	}
	return out, nil
}

// History returns a page of the room's messages, newest first.
func (s *RoomService) History(ctx context.Context, roomID uint, skip, limit int) ([]models.MessageResponse, error) {
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, postgres.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	messages, err := s.messages.ListByRoom(ctx, roomID, skip, limit)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.MessageResponse{}
	}
	return messages, nil
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"chat-relay/internal/api/middleware"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories/postgres"
	"chat-relay/internal/services"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	roomService *services.RoomService
}

func NewRoomHandler(roomService *services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// ListRooms godoc
// @Summary List chat rooms
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.RoomResponse "All rooms"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list rooms", "error", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("failed to list rooms", nil))
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// CreateRoom godoc
// @Summary Create a chat room
// @Tags rooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateRoomRequest true "Room name"
// @Success 201 {object} models.RoomResponse "Room created"
// @Failure 400 {object} models.ErrorResponse "Invalid input or room name taken"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /rooms [post]
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse("unauthorized", nil))
		return
	}

	var req models.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("invalid input data", err))
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.Name, identity.UserID)
	if err != nil {
		if errors.Is(err, services.ErrRoomAlreadyExist) {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("room with this name already exists", nil))
			return
		}
		slog.Error("Failed to create room", "name", req.Name, "userID", identity.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("failed to create room", nil))
		return
	}

	c.JSON(http.StatusCreated, room)
}

// GetRoomMessages godoc
// @Summary Get room history
// @Description Messages of a room, newest first
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param room_id path int true "Room ID"
// @Param skip query int false "Messages to skip"
// @Param limit query int false "Page size (default 100)"
// @Success 200 {array} models.MessageResponse "Room messages"
// @Failure 400 {object} models.ErrorResponse "Invalid room ID or paging"
// @Failure 404 {object} models.ErrorResponse "Room not found"
// @Router /rooms/{room_id}/messages [get]
func (h *RoomHandler) GetRoomMessages(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("invalid room ID", nil))
		return
	}

	skip, err := queryInt(c, "skip", 0)
	if err != nil || skip < 0 {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("invalid skip", nil))
		return
	}
	limit, err := queryInt(c, "limit", postgres.DefaultHistoryLimit)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("invalid limit", nil))
		return
	}

	messages, err := h.roomService.History(c.Request.Context(), uint(roomID), skip, limit)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, models.NewErrorResponse("room not found", nil))
			return
		}
		slog.Error("Failed to load room history", "roomID", roomID, "error", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("failed to get messages", nil))
		return
	}

	c.JSON(http.StatusOK, messages)
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

package handlers

import (
	"net/http"

	"chat-relay/internal/websocket"

	"github.com/gin-gonic/gin"
)

// QueueStats reports the write-behind queue backlog.
type QueueStats interface {
	Len() int
	Processing() bool
}

type WSHandler struct {
	relay *websocket.Relay
	queue QueueStats
}

func NewWSHandler(relay *websocket.Relay, queue QueueStats) *WSHandler {
	return &WSHandler{relay: relay, queue: queue}
}

// HandleWebSocket godoc
// @Summary Room chat connection
// @Description Upgrade to a WebSocket bound to one room. Send {"message": "..."}; every message in the room arrives as {"username", "message"}. Handshake failures close the socket with 1008 (bad token), 1003 (unknown room) or 1011 (server error).
// @Tags websocket
// @Param room_id path int true "Room ID"
// @Param token query string true "Access token"
// @Success 101 "Switching Protocols"
// @Router /ws/chat/{room_id} [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	h.relay.Serve(c.Writer, c.Request, c.Param("room_id"))
}

type StatsResponse struct {
	Connections     int          `json:"connections"`
	Rooms           map[uint]int `json:"rooms"`
	QueuedMessages  int          `json:"queued_messages"`
	QueueProcessing bool         `json:"queue_processing"`
}

// Stats godoc
// @Summary Relay diagnostics
// @Tags websocket
// @Produce json
// @Success 200 {object} handlers.StatsResponse
// @Router /ws/stats [get]
func (h *WSHandler) Stats(c *gin.Context) {
	registry := h.relay.Registry()
	c.JSON(http.StatusOK, StatsResponse{
		Connections:     registry.Count(),
		Rooms:           registry.RoomCounts(),
		QueuedMessages:  h.queue.Len(),
		QueueProcessing: h.queue.Processing(),
	})
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/app/models/dto"
)

// SnapshotFunc returns the full slot grid sent to a client on connect
type SnapshotFunc func(ctx context.Context) ([]*models.Slot, error)

// Handler for WebSocket connections
type Handler struct {
	hub      *Hub
	snapshot SnapshotFunc
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler. allowedOrigin is "*", a single
// origin, or empty for same-origin requests only.
func NewHandler(hub *Hub, snapshot SnapshotFunc, allowedOrigin string, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		snapshot: snapshot,
		upgrader: newUpgrader(allowedOrigin),
		logger:   logger,
	}
}

// HandleConnection godoc
// @Summary Live slot occupancy feed
// @Description Upgrades to a WebSocket that first sends the whole grid, then every committed occupancy change
// @Tags slots
// @Produce json
// @Success 101 {string} string "Switching Protocols to WebSocket"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /slots/ws [get]
func (h *Handler) HandleConnection(c *gin.Context) {
	username := c.GetString("adminUsername")

	slots, err := h.snapshot(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load slot snapshot for WebSocket client")
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Failed to load slots")))
		return
	}

	initial, err := json.Marshal(NewMessage(MessageTypeSnapshot, slots))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal slot snapshot")
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Failed to load slots")))
		return
	}

	// Upgrade writes its own error response
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("admin", username).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		username: username,
		logger:   h.logger,
	}
	client.send <- initial

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	h.logger.Info().
		Str("admin", username).
		Str("remoteAddr", conn.RemoteAddr().String()).
		Msg("WebSocket connection established")
}

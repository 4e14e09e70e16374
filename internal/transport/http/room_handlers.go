package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/gateway"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/roomview"
)

// RoomHandlers provides HTTP handlers for room message endpoints.
type RoomHandlers struct {
	gw        *gateway.Gateway
	maxLength int
	loc       *time.Location
	log       *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(gw *gateway.Gateway, opts roomview.Options, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		gw:        gw,
		maxLength: opts.MaxLength,
		loc:       opts.Location,
		log:       logger,
	}
}

// PostMessageRequest represents the submit message request body.
type PostMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// PostMessageResponse carries the identifier of the stored message.
type PostMessageResponse struct {
	ID string `json:"id"`
}

// ListMessages returns the current contents of a room.
// GET /api/rooms/:room/messages
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	room := c.Param("room")

	msgs, err := h.gw.Snapshot(c.Request.Context(), room)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidRoom) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room"})
			return
		}
		h.log.Error().Err(err).Str("room", room).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, proto.EventSnapshotData{
		Room:     room,
		Messages: messagesToEvents(msgs, h.loc, ""),
	})
}

// PostMessage stores a message from the authenticated user.
// POST /api/rooms/:room/messages
func (h *RoomHandlers) PostMessage(c *gin.Context) {
	room := c.Param("room")
	email := c.GetString(ContextKeyEmail)
	if email == "" {
		h.log.Error().Msg("email not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid post message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if roomview.Length(req.Content) > h.maxLength {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("message cannot exceed %d characters", h.maxLength),
		})
		return
	}

	id, err := h.gw.Submit(c.Request.Context(), gateway.Draft{Content: req.Content, Author: email}, room)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidDraft) || errors.Is(err, gateway.ErrInvalidRoom) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Str("room", room).Str("email", email).Msg("failed to submit message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, PostMessageResponse{ID: id})
}

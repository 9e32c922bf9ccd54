package handlers

import (
	"net/http"

	ws "meet-signal/internal/websocket"

	"github.com/gin-gonic/gin"
)

// RoomHandlers exposes read-only views of the live room table.
type RoomHandlers struct {
	hub *ws.Hub
}

func NewRoomHandlers(hub *ws.Hub) *RoomHandlers {
	return &RoomHandlers{hub: hub}
}

func (h *RoomHandlers) GetMeeting(c *gin.Context) {
	snap, ok := h.hub.RoomSnapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *RoomHandlers) GetParticipants(c *gin.Context) {
	meetingID := c.Param("id")
	participants, ok := h.hub.Participants(meetingID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meetingId":    meetingID,
		"participants": participants,
		"count":        len(participants),
	})
}

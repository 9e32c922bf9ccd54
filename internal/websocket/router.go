package websocket

import (
	"strings"
	"time"

	"meet-signal/internal/metrics"
	"meet-signal/internal/models"
	"meet-signal/pkg/logger"
)

type handlerFunc func(c *Client, data []byte)

func (h *Hub) routes() map[models.EventType]handlerFunc {
	return map[models.EventType]handlerFunc{
		models.EventJoinRoom:          h.handleJoin,
		models.EventJoinMeeting:       h.handleJoin,
		models.EventLeaveRoom:         h.handleLeave,
		models.EventLeaveMeeting:      h.handleLeave,
		models.EventChatMessage:       h.handleChatMessage,
		models.EventEditMessage:       h.handleEditMessage,
		models.EventDeleteMessage:     h.handleDeleteMessage,
		models.EventTyping:            h.typingHandler(models.EventUserTyping),
		models.EventStopTyping:        h.typingHandler(models.EventUserStoppedTyping),
		models.EventToggleAudio:       h.handleToggleAudio,
		models.EventToggleVideo:       h.handleToggleVideo,
		models.EventStartScreenShare:  h.handleStartScreenShare,
		models.EventStopScreenShare:   h.handleStopScreenShare,
		models.EventToggleScreenShare: h.handleToggleScreenShare,
		models.EventOffer:             h.handleSignal(models.EventOffer),
		models.EventAnswer:            h.handleSignal(models.EventAnswer),
		models.EventICECandidate:      h.handleSignal(models.EventICECandidate),
		models.EventPing:              h.handlePing,
	}
}

// decode unmarshals data into v and validates it. On failure the sender
// gets an error frame and false is returned.
func (h *Hub) decode(c *Client, data []byte, v interface{}) bool {
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		h.replyError(c, "bad_request", "invalid payload")
		return false
	}
	if n, ok := v.(interface{ Normalize() }); ok {
		n.Normalize()
	}
	if err := h.validate.Struct(v); err != nil {
		h.replyError(c, "validation_failed", err.Error())
		return false
	}
	return true
}

// current resolves the sender's participant record and room. A non-empty
// meetingID that does not match the sender's room resolves to nothing.
func (h *Hub) current(c *Client, meetingID string) (*models.Participant, *models.Room) {
	p, room := h.rooms.RoomOf(c.ID)
	if p == nil || room == nil {
		logger.Debug("Event from %s ignored: not in a room", c.ID)
		return nil, nil
	}
	if meetingID != "" && meetingID != room.ID {
		logger.Debug("Event from %s ignored: targets %s but joined %s", c.ID, meetingID, room.ID)
		return nil, nil
	}
	return p, room
}

func (h *Hub) handleJoin(c *Client, data []byte) {
	var req models.JoinPayload
	if !h.decode(c, data, &req) {
		return
	}

	if p, room := h.rooms.RoomOf(c.ID); p != nil {
		if room != nil && room.ID == req.MeetingID {
			h.sendJoinState(c, room)
			return
		}
		h.leave(c.ID)
	}

	res := h.rooms.Join(req.MeetingID, c.ID, req.Name)
	if res == nil {
		return
	}
	metrics.ActiveRooms.Set(float64(h.rooms.Count()))

	h.emitToOthers(res.Room, c.ID, models.EventParticipantJoined, res.Participant)
	h.sendJoinState(c, res.Room)

	logger.Info("%s joined meeting %s (%d participants)", req.Name, req.MeetingID, len(res.Room.Participants))
}

func (h *Hub) sendJoinState(c *Client, room *models.Room) {
	h.sendTo(c, models.EventParticipantsList, h.rooms.Members(room.ID))
	h.sendTo(c, models.EventChatHistory, h.rooms.History(room))
}

func (h *Hub) handleLeave(c *Client, data []byte) {
	var req models.MeetingScoped
	if !h.decode(c, data, &req) {
		return
	}
	p := h.registry.Get(c.ID)
	if p == nil || (req.MeetingID != "" && req.MeetingID != p.MeetingID) {
		return
	}
	h.leave(c.ID)
}

// leave is the shared explicit-leave and disconnect path.
func (h *Hub) leave(connID string) {
	res := h.rooms.Leave(connID)
	if res == nil {
		return
	}

	if res.StoppedScreenShare {
		h.sendToIDs(res.Remaining, "", models.EventScreenShareStopped, models.ParticipantRef{ParticipantID: connID})
	}
	h.sendToIDs(res.Remaining, "", models.EventParticipantLeft, models.ParticipantRef{ParticipantID: connID})
	if res.NewHost != nil {
		h.sendToIDs(res.Remaining, "", models.EventHostChanged, models.ParticipantRef{ParticipantID: res.NewHost.ID})
	}
	metrics.ActiveRooms.Set(float64(h.rooms.Count()))

	logger.Info("%s left meeting %s", res.Participant.Name, res.MeetingID)
}

func (h *Hub) handleChatMessage(c *Client, data []byte) {
	var req models.ChatPayload
	if !h.decode(c, data, &req) {
		return
	}
	p, room := h.current(c, req.MeetingID)
	if room == nil {
		return
	}

	stored := h.rooms.AppendMessage(room, p, req.Message)
	h.emitToRoom(room, models.EventChatMessage, stored)
}

func (h *Hub) handleEditMessage(c *Client, data []byte) {
	var req models.EditMessagePayload
	if !h.decode(c, data, &req) {
		return
	}
	p, room := h.current(c, req.MeetingID)
	if room == nil {
		return
	}

	if !h.rooms.EditMessage(room, p.Name, req.MessageID, req.NewText) {
		logger.Debug("Edit of %s by %s rejected", req.MessageID, c.ID)
		return
	}
	h.emitToRoom(room, models.EventMessageEdited, models.MessageEditedPayload{MessageID: req.MessageID, NewText: req.NewText})
}

func (h *Hub) handleDeleteMessage(c *Client, data []byte) {
	var req models.DeleteMessagePayload
	if !h.decode(c, data, &req) {
		return
	}
	p, room := h.current(c, req.MeetingID)
	if room == nil {
		return
	}

	if !h.rooms.DeleteMessage(room, p.Name, req.MessageID) {
		logger.Debug("Delete of %s by %s rejected", req.MessageID, c.ID)
		return
	}
	h.emitToRoom(room, models.EventMessageDeleted, models.MessageDeletedPayload{MessageID: req.MessageID})
}

func (h *Hub) typingHandler(out models.EventType) handlerFunc {
	return func(c *Client, data []byte) {
		var req models.MeetingScoped
		if !h.decode(c, data, &req) {
			return
		}
		p, room := h.current(c, req.MeetingID)
		if room == nil {
			return
		}
		h.emitToOthers(room, c.ID, out, models.TypingPayload{ParticipantID: c.ID, Name: p.Name})
	}
}

func (h *Hub) handleToggleAudio(c *Client, data []byte) {
	var req models.ToggleAudioPayload
	if !h.decode(c, data, &req) {
		return
	}
	p, room := h.current(c, req.MeetingID)
	if room == nil {
		return
	}
	p.IsMuted = req.IsMuted
	h.emitToOthers(room, c.ID, models.EventAudioChanged, models.AudioChangedPayload{ParticipantID: c.ID, IsMuted: req.IsMuted})
}

func (h *Hub) handleToggleVideo(c *Client, data []byte) {
	var req models.ToggleVideoPayload
	if !h.decode(c, data, &req) {
		return
	}
	p, room := h.current(c, req.MeetingID)
	if room == nil {
		return
	}
	p.IsVideoOff = req.IsVideoOff
	h.emitToOthers(room, c.ID, models.EventVideoChanged, models.VideoChangedPayload{ParticipantID: c.ID, IsVideoOff: req.IsVideoOff})
}

func (h *Hub) handleStartScreenShare(c *Client, data []byte) {
	var req models.MeetingScoped
	if !h.decode(c, data, &req) {
		return
	}
	h.startScreenShare(c, req.MeetingID)
}

func (h *Hub) handleStopScreenShare(c *Client, data []byte) {
	var req models.MeetingScoped
	if !h.decode(c, data, &req) {
		return
	}
	h.stopScreenShare(c, req.MeetingID)
}

func (h *Hub) handleToggleScreenShare(c *Client, data []byte) {
	var req models.ToggleScreenSharePayload
	if !h.decode(c, data, &req) {
		return
	}
	if req.IsScreenSharing {
		h.startScreenShare(c, req.MeetingID)
	} else {
		h.stopScreenShare(c, req.MeetingID)
	}
}

func (h *Hub) startScreenShare(c *Client, meetingID string) {
	_, room := h.current(c, meetingID)
	if room == nil {
		return
	}

	// The previous sharer is told to stop before the new share is announced.
	if previous := h.rooms.StartScreenShare(room, c.ID); previous != "" {
		h.emitToRoom(room, models.EventScreenShareStopped, models.ParticipantRef{ParticipantID: previous})
	}
	h.emitToOthers(room, c.ID, models.EventScreenShareStarted, models.ParticipantRef{ParticipantID: c.ID})
}

func (h *Hub) stopScreenShare(c *Client, meetingID string) {
	_, room := h.current(c, meetingID)
	if room == nil {
		return
	}
	if !h.rooms.StopScreenShare(room, c.ID) {
		logger.Debug("Stop screen share from non-owner %s ignored", c.ID)
		return
	}
	h.emitToOthers(room, c.ID, models.EventScreenShareStopped, models.ParticipantRef{ParticipantID: c.ID})
}

// handleSignal relays an offer, answer or ICE candidate to exactly one peer
// in the sender's room. The payload itself is never inspected.
func (h *Hub) handleSignal(out models.EventType) handlerFunc {
	return func(c *Client, data []byte) {
		var req models.SignalPayload
		if !h.decode(c, data, &req) {
			return
		}
		_, room := h.current(c, req.MeetingID)
		if room == nil {
			return
		}

		target := strings.TrimSpace(req.TargetID)
		if target == c.ID || !room.Has(target) {
			logger.Debug("%s from %s to unknown target %s dropped", out, c.ID, target)
			return
		}
		peer, ok := h.clients[target]
		if !ok {
			return
		}

		h.sendTo(peer, out, models.RelayedSignal{
			SenderID:  c.ID,
			Offer:     req.Offer,
			Answer:    req.Answer,
			Candidate: req.Candidate,
		})
	}
}

func (h *Hub) handlePing(c *Client, _ []byte) {
	h.sendTo(c, models.EventPong, models.PongPayload{Timestamp: time.Now().UTC()})
}

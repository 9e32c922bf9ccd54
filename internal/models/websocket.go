package models

import (
	"encoding/json"
	"strings"
	"time"
)

type EventType string

// Inbound events.
const (
	EventJoinRoom          EventType = "join-room"
	EventLeaveRoom         EventType = "leave-room"
	EventChatMessage       EventType = "chat-message"
	EventEditMessage       EventType = "edit-message"
	EventDeleteMessage     EventType = "delete-message"
	EventTyping            EventType = "typing"
	EventStopTyping        EventType = "stop-typing"
	EventToggleAudio       EventType = "toggle-audio"
	EventToggleVideo       EventType = "toggle-video"
	EventStartScreenShare  EventType = "start-screen-share"
	EventStopScreenShare   EventType = "stop-screen-share"
	EventToggleScreenShare EventType = "toggle-screen-share"
	EventOffer             EventType = "offer"
	EventAnswer            EventType = "answer"
	EventICECandidate      EventType = "ice-candidate"
	EventPing              EventType = "ping"

	// Names used by older clients.
	EventJoinMeeting  EventType = "join-meeting"
	EventLeaveMeeting EventType = "leave-meeting"
)

// Outbound events.
const (
	EventConnected           EventType = "connected"
	EventParticipantJoined   EventType = "participant-joined"
	EventParticipantsList    EventType = "participants-list"
	EventChatHistory         EventType = "chat-history"
	EventParticipantLeft     EventType = "participant-left"
	EventHostChanged         EventType = "host-changed"
	EventMessageEdited       EventType = "message-edited"
	EventMessageDeleted      EventType = "message-deleted"
	EventUserTyping          EventType = "user-typing"
	EventUserStoppedTyping   EventType = "user-stopped-typing"
	EventAudioChanged        EventType = "participant-audio-changed"
	EventVideoChanged        EventType = "participant-video-changed"
	EventScreenShareStarted  EventType = "screen-share-started"
	EventScreenShareStopped  EventType = "screen-share-stopped"
	EventPong                EventType = "pong"
	EventError               EventType = "error"
)

type InboundFrame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type OutboundFrame struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Inbound payloads. MeetingID is optional everywhere except join; when it is
// set it must match the sender's current room.

type JoinPayload struct {
	MeetingID string `json:"meetingId" validate:"required,meetingid"`
	Name      string `json:"name" validate:"required,max=64"`
	UserName  string `json:"userName,omitempty"`
}

func (p *JoinPayload) Normalize() {
	if p.Name == "" {
		p.Name = p.UserName
	}
	p.Name = strings.TrimSpace(p.Name)
	p.MeetingID = strings.TrimSpace(p.MeetingID)
}

type MeetingScoped struct {
	MeetingID string `json:"meetingId,omitempty"`
}

type ChatPayload struct {
	MeetingScoped
	Message *ChatDraft `json:"message" validate:"required"`
}

// ChatDraft is a chat message as submitted by a client. Sender, timestamp
// and edit state are always assigned by the server.
type ChatDraft struct {
	ID       string      `json:"id"`
	Message  string      `json:"message" validate:"max=8000"`
	Type     MessageKind `json:"type"`
	FileURL  string      `json:"fileUrl"`
	FileName string      `json:"fileName"`
	FileSize int64       `json:"fileSize"`
	MimeType string      `json:"mimeType"`
	ReplyTo  string      `json:"replyTo"`
}

type EditMessagePayload struct {
	MeetingScoped
	MessageID string `json:"messageId" validate:"required"`
	NewText   string `json:"newText" validate:"required"`
}

type DeleteMessagePayload struct {
	MeetingScoped
	MessageID string `json:"messageId" validate:"required"`
}

type ToggleAudioPayload struct {
	MeetingScoped
	IsMuted bool `json:"isMuted"`
}

type ToggleVideoPayload struct {
	MeetingScoped
	IsVideoOff bool `json:"isVideoOff"`
}

type ToggleScreenSharePayload struct {
	MeetingScoped
	IsScreenSharing bool `json:"isScreenSharing"`
}

// SignalPayload carries an opaque WebRTC negotiation blob to one target.
type SignalPayload struct {
	MeetingScoped
	TargetID  string          `json:"targetId" validate:"required"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Outbound payloads.

type ConnectedPayload struct {
	ID string `json:"id"`
}

type ParticipantRef struct {
	ParticipantID string `json:"participantId"`
}

type TypingPayload struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

type AudioChangedPayload struct {
	ParticipantID string `json:"participantId"`
	IsMuted       bool   `json:"isMuted"`
}

type VideoChangedPayload struct {
	ParticipantID string `json:"participantId"`
	IsVideoOff    bool   `json:"isVideoOff"`
}

type MessageEditedPayload struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

type RelayedSignal struct {
	SenderID  string          `json:"senderId"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

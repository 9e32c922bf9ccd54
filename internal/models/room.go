package models

import (
	"regexp"
	"time"
)

var meetingIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidMeetingID reports whether id can name a room. Room ids double as
// upload namespaces, so they must be safe path segments.
func ValidMeetingID(id string) bool {
	return meetingIDPattern.MatchString(id)
}

type Participant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MeetingID  string    `json:"meetingId"`
	IsHost     bool      `json:"isHost"`
	IsMuted    bool      `json:"isMuted"`
	IsVideoOff bool      `json:"isVideoOff"`
	JoinedAt   time.Time `json:"joinedAt"`
}

type MessageKind string

const (
	MessageKindText MessageKind = "text"
	MessageKindFile MessageKind = "file"
)

type ChatMessage struct {
	ID        string      `json:"id"`
	Sender    string      `json:"sender"`
	Message   string      `json:"message"`
	Type      MessageKind `json:"type"`
	FileURL   string      `json:"fileUrl,omitempty"`
	FileName  string      `json:"fileName,omitempty"`
	FileSize  int64       `json:"fileSize,omitempty"`
	MimeType  string      `json:"mimeType,omitempty"`
	ReplyTo   string      `json:"replyTo,omitempty"`
	IsEdited  bool        `json:"isEdited"`
	Timestamp time.Time   `json:"timestamp"`
}

// Room is the live state of one meeting. Participants keeps join order;
// the registry owns the participant records themselves.
type Room struct {
	ID               string
	Participants     []string
	Messages         []*ChatMessage
	ScreenShareOwner string
	CreatedAt        time.Time
}

func NewRoom(id string, now time.Time) *Room {
	return &Room{
		ID:        id,
		CreatedAt: now,
	}
}

func (r *Room) Has(participantID string) bool {
	for _, id := range r.Participants {
		if id == participantID {
			return true
		}
	}
	return false
}

// Add appends participantID unless already present.
func (r *Room) Add(participantID string) bool {
	if r.Has(participantID) {
		return false
	}
	r.Participants = append(r.Participants, participantID)
	return true
}

func (r *Room) Remove(participantID string) bool {
	for i, id := range r.Participants {
		if id == participantID {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) IsEmpty() bool {
	return len(r.Participants) == 0
}

func (r *Room) FindMessage(id string) (int, *ChatMessage) {
	for i, m := range r.Messages {
		if m.ID == id {
			return i, m
		}
	}
	return -1, nil
}

// RoomSnapshot is the read-only view served over HTTP.
type RoomSnapshot struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	ParticipantCount int       `json:"participantCount"`
	ScreenShareOwner string    `json:"screenShareOwner,omitempty"`
	MessageCount     int       `json:"messageCount"`
}

// FileDescriptor is returned by the upload endpoint and carried by file chat messages.
type FileDescriptor struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
}

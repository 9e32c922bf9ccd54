package services

import (
	"sort"
	"time"

	"meet-signal/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type RoomOptions struct {
	// DeleteEmptyRooms removes a room as soon as its last participant leaves.
	DeleteEmptyRooms bool
	// HistoryLimit caps the chat log per room; 0 keeps everything.
	HistoryLimit int
	Now          func() time.Time
}

// RoomService is the room table. Like the registry it has a single writer:
// every method must be called from the hub loop.
type RoomService struct {
	rooms    map[string]*models.Room
	registry *ConnectionRegistry
	opts     RoomOptions
}

func NewRoomService(registry *ConnectionRegistry, opts RoomOptions) *RoomService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RoomService{
		rooms:    make(map[string]*models.Room),
		registry: registry,
		opts:     opts,
	}
}

type JoinResult struct {
	Participant *models.Participant
	Room        *models.Room
	Created     bool
}

type LeaveResult struct {
	Participant *models.Participant
	MeetingID   string
	// Remaining holds the ids still in the room after the leave.
	Remaining          []string
	StoppedScreenShare bool
	NewHost            *models.Participant
	RoomDeleted        bool
}

// Join adds connID to meetingID, creating the room on first use. The caller
// must have removed connID from any previous room. Returns nil when connID is
// not a registered connection.
func (s *RoomService) Join(meetingID, connID, name string) *JoinResult {
	if !s.registry.IsConnected(connID) {
		return nil
	}

	now := s.opts.Now()
	room, exists := s.rooms[meetingID]
	if !exists {
		room = models.NewRoom(meetingID, now)
		s.rooms[meetingID] = room
	}

	p := &models.Participant{
		ID:        connID,
		Name:      name,
		MeetingID: meetingID,
		IsHost:    room.IsEmpty(),
		JoinedAt:  now,
	}

	s.registry.Put(connID, p)
	room.Add(connID)

	return &JoinResult{Participant: p, Room: room, Created: !exists}
}

// Leave removes connID from its room. It returns nil when the connection is
// not in any room, which makes repeated leaves and disconnects harmless.
func (s *RoomService) Leave(connID string) *LeaveResult {
	p := s.registry.Get(connID)
	if p == nil {
		return nil
	}
	s.registry.Clear(connID)

	res := &LeaveResult{Participant: p, MeetingID: p.MeetingID}

	room, ok := s.rooms[p.MeetingID]
	if !ok || !room.Remove(connID) {
		return res
	}

	if room.ScreenShareOwner == connID {
		room.ScreenShareOwner = ""
		res.StoppedScreenShare = true
	}

	if p.IsHost && !room.IsEmpty() {
		if next := s.registry.Get(room.Participants[0]); next != nil {
			next.IsHost = true
			res.NewHost = next
		}
	}

	res.Remaining = append([]string(nil), room.Participants...)

	if room.IsEmpty() && s.opts.DeleteEmptyRooms {
		delete(s.rooms, room.ID)
		res.RoomDeleted = true
	}
	return res
}

func (s *RoomService) Room(meetingID string) *models.Room {
	return s.rooms[meetingID]
}

// RoomOf returns the room connID is currently joined to.
func (s *RoomService) RoomOf(connID string) (*models.Participant, *models.Room) {
	p := s.registry.Get(connID)
	if p == nil {
		return nil, nil
	}
	room := s.rooms[p.MeetingID]
	if room == nil || !room.Has(connID) {
		return p, nil
	}
	return p, room
}

// Members returns the participant records of meetingID in join order.
func (s *RoomService) Members(meetingID string) []*models.Participant {
	room := s.rooms[meetingID]
	if room == nil {
		return []*models.Participant{}
	}
	return lo.FilterMap(room.Participants, func(id string, _ int) (*models.Participant, bool) {
		p := s.registry.Get(id)
		return p, p != nil
	})
}

// AppendMessage stamps msg with the sender's name, a server timestamp and a
// room-unique id, then appends it to the log.
func (s *RoomService) AppendMessage(room *models.Room, sender *models.Participant, draft *models.ChatDraft) *models.ChatMessage {
	stored := models.ChatMessage{
		ID:        draft.ID,
		Sender:    sender.Name,
		Message:   draft.Message,
		Type:      models.MessageKindText,
		ReplyTo:   draft.ReplyTo,
		Timestamp: s.opts.Now(),
	}
	if draft.Type == models.MessageKindFile {
		stored.Type = models.MessageKindFile
		stored.FileURL = draft.FileURL
		stored.FileName = draft.FileName
		stored.FileSize = draft.FileSize
		stored.MimeType = draft.MimeType
	}
	if _, dup := room.FindMessage(stored.ID); stored.ID == "" || dup != nil {
		stored.ID = uuid.NewString()
	}

	room.Messages = append(room.Messages, &stored)
	if limit := s.opts.HistoryLimit; limit > 0 && len(room.Messages) > limit {
		room.Messages = append([]*models.ChatMessage(nil), room.Messages[len(room.Messages)-limit:]...)
	}
	return &stored
}

// EditMessage rewrites a message body if callerName matches its sender.
func (s *RoomService) EditMessage(room *models.Room, callerName, messageID, newText string) bool {
	_, msg := room.FindMessage(messageID)
	if msg == nil || msg.Sender != callerName {
		return false
	}
	msg.Message = newText
	msg.IsEdited = true
	return true
}

// DeleteMessage removes a message if callerName matches its sender.
func (s *RoomService) DeleteMessage(room *models.Room, callerName, messageID string) bool {
	i, msg := room.FindMessage(messageID)
	if msg == nil || msg.Sender != callerName {
		return false
	}
	room.Messages = append(room.Messages[:i], room.Messages[i+1:]...)
	return true
}

// History returns a copy of the room's chat log.
func (s *RoomService) History(room *models.Room) []*models.ChatMessage {
	out := make([]*models.ChatMessage, 0, len(room.Messages))
	for _, m := range room.Messages {
		cp := *m
		out = append(out, &cp)
	}
	return out
}

// StartScreenShare makes connID the room's screen-share owner and returns
// the previous owner, if it was someone else.
func (s *RoomService) StartScreenShare(room *models.Room, connID string) (previous string) {
	if room.ScreenShareOwner != connID {
		previous = room.ScreenShareOwner
	}
	room.ScreenShareOwner = connID
	return previous
}

func (s *RoomService) StopScreenShare(room *models.Room, connID string) bool {
	if room.ScreenShareOwner == "" || room.ScreenShareOwner != connID {
		return false
	}
	room.ScreenShareOwner = ""
	return true
}

// SweepEmpty deletes empty rooms created more than retention ago and
// returns their ids, sorted.
func (s *RoomService) SweepEmpty(retention time.Duration) []string {
	cutoff := s.opts.Now().Add(-retention)

	var swept []string
	for id, room := range s.rooms {
		if room.IsEmpty() && room.CreatedAt.Before(cutoff) {
			delete(s.rooms, id)
			swept = append(swept, id)
		}
	}
	sort.Strings(swept)
	return swept
}

func (s *RoomService) Snapshot(meetingID string) (models.RoomSnapshot, bool) {
	room := s.rooms[meetingID]
	if room == nil {
		return models.RoomSnapshot{}, false
	}
	return models.RoomSnapshot{
		ID:               room.ID,
		CreatedAt:        room.CreatedAt,
		ParticipantCount: len(room.Participants),
		ScreenShareOwner: room.ScreenShareOwner,
		MessageCount:     len(room.Messages),
	}, true
}

func (s *RoomService) Count() int {
	return len(s.rooms)
}

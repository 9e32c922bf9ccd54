package websocket

import (
	"strings"
	"testing"
	"time"

	"meet-signal/internal/config"
	"meet-signal/internal/models"
	"meet-signal/internal/services"
)

type testFrame struct {
	Type models.EventType `json:"type"`
	Data rawData          `json:"data"`
}

type rawData []byte

func (r *rawData) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	reg := services.NewConnectionRegistry()
	rooms := services.NewRoomService(reg, services.RoomOptions{DeleteEmptyRooms: true, HistoryLimit: 50})
	return NewHub(rooms, reg, config.SignalingConfig{
		PongWait:        time.Minute,
		PingPeriod:      50 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageBytes: 1 << 20,
		SendBuffer:      32,
	})
}

// connect registers an in-memory client and consumes its connected frame.
func connect(t *testing.T, h *Hub, id string, buffer int) *Client {
	t.Helper()
	c := &Client{ID: id, hub: h, send: make(chan []byte, buffer)}
	h.handleRegister(c)
	f := recv(t, c)
	if f.Type != models.EventConnected {
		t.Fatalf("%s: first frame = %s, want connected", id, f.Type)
	}
	var p models.ConnectedPayload
	decodeData(t, f, &p)
	if p.ID != id {
		t.Fatalf("connected id = %q, want %q", p.ID, id)
	}
	return c
}

// send feeds one frame through the dispatcher the way Run does.
func send(t *testing.T, h *Hub, c *Client, typ models.EventType, data interface{}) {
	t.Helper()
	frame := map[string]interface{}{"type": typ}
	if data != nil {
		frame["data"] = data
	}
	b, err := json.Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	sendRaw(h, c, b)
}

func sendRaw(h *Hub, c *Client, b []byte) {
	h.dispatch(c, b)
	h.drainEvictions()
}

func recv(t *testing.T, c *Client) testFrame {
	t.Helper()
	select {
	case b, ok := <-c.send:
		if !ok {
			t.Fatalf("%s: send queue closed", c.ID)
		}
		var f testFrame
		if err := json.Unmarshal(b, &f); err != nil {
			t.Fatalf("%s: bad frame %s: %v", c.ID, b, err)
		}
		return f
	default:
		t.Fatalf("%s: no frame queued", c.ID)
	}
	return testFrame{}
}

func recvType(t *testing.T, c *Client, want models.EventType) testFrame {
	t.Helper()
	f := recv(t, c)
	if f.Type != want {
		t.Fatalf("%s: got %s %s, want %s", c.ID, f.Type, f.Data, want)
	}
	return f
}

func expectSilence(t *testing.T, clients ...*Client) {
	t.Helper()
	for _, c := range clients {
		select {
		case b, ok := <-c.send:
			if ok {
				t.Fatalf("%s: unexpected frame %s", c.ID, b)
			}
		default:
		}
	}
}

func decodeData(t *testing.T, f testFrame, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("decode %s data %s: %v", f.Type, f.Data, err)
	}
}

func joinRoom(t *testing.T, h *Hub, c *Client, meetingID, name string) []models.Participant {
	t.Helper()
	send(t, h, c, models.EventJoinRoom, map[string]string{"meetingId": meetingID, "name": name})
	var list []models.Participant
	decodeData(t, recvType(t, c, models.EventParticipantsList), &list)
	recvType(t, c, models.EventChatHistory)
	return list
}

func TestJoinAnnouncesParticipantAndSendsState(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)

	list := joinRoom(t, h, a, "R1", "Alice")
	if len(list) != 1 || list[0].ID != "a" || !list[0].IsHost {
		t.Fatalf("first participants-list = %+v", list)
	}

	list = joinRoom(t, h, b, "R1", "Bob")
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" || list[1].IsHost {
		t.Fatalf("second participants-list = %+v", list)
	}

	var joined models.Participant
	decodeData(t, recvType(t, a, models.EventParticipantJoined), &joined)
	if joined.ID != "b" || joined.Name != "Bob" || joined.MeetingID != "R1" {
		t.Fatalf("participant-joined = %+v", joined)
	}
	expectSilence(t, a, b)
}

func TestJoinValidationAndLegacyAlias(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)

	send(t, h, a, models.EventJoinRoom, map[string]string{"meetingId": "R1", "name": "   "})
	var e models.ErrorPayload
	decodeData(t, recvType(t, a, models.EventError), &e)
	if e.Code != "validation_failed" {
		t.Fatalf("error code = %q", e.Code)
	}

	for _, id := range []string{"team.sync", "a/b", strings.Repeat("x", 65)} {
		send(t, h, a, models.EventJoinRoom, map[string]string{"meetingId": id, "name": "Alice"})
		decodeData(t, recvType(t, a, models.EventError), &e)
		if e.Code != "validation_failed" {
			t.Fatalf("meetingId %q: error code = %q", id, e.Code)
		}
	}

	send(t, h, a, models.EventJoinMeeting, map[string]string{"meetingId": "R1", "userName": " Alice "})
	var list []models.Participant
	decodeData(t, recvType(t, a, models.EventParticipantsList), &list)
	if len(list) != 1 || list[0].Name != "Alice" {
		t.Fatalf("participants-list = %+v", list)
	}
}

func TestRejoinSameRoomResendsStateOnly(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	recvType(t, a, models.EventParticipantJoined)

	list := joinRoom(t, h, b, "R1", "Bob")
	if len(list) != 2 {
		t.Fatalf("participants-list = %+v", list)
	}
	expectSilence(t, a)
}

func TestJoinOtherRoomLeavesPrevious(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	recvType(t, a, models.EventParticipantJoined)

	list := joinRoom(t, h, b, "R2", "Bob")
	if len(list) != 1 || !list[0].IsHost {
		t.Fatalf("R2 participants-list = %+v", list)
	}
	var left models.ParticipantRef
	decodeData(t, recvType(t, a, models.EventParticipantLeft), &left)
	if left.ParticipantID != "b" {
		t.Fatalf("participant-left = %+v", left)
	}
	if got := len(h.rooms.Room("R1").Participants); got != 1 {
		t.Fatalf("R1 participants = %d", got)
	}
}

func TestChatMessageReachesWholeRoomWithServerSender(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	outsider := connect(t, h, "c", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	joinRoom(t, h, outsider, "R2", "Carol")
	recvType(t, a, models.EventParticipantJoined)

	sendRaw(h, b, []byte(`{"type":"chat-message","data":{"message":{"id":"m1","message":"hi","sender":"Mallory","timestamp":"yesterday"}}}`))

	for _, c := range []*Client{a, b} {
		var msg models.ChatMessage
		decodeData(t, recvType(t, c, models.EventChatMessage), &msg)
		if msg.ID != "m1" || msg.Sender != "Bob" || msg.Message != "hi" || msg.Type != models.MessageKindText {
			t.Fatalf("%s got %+v", c.ID, msg)
		}
		if msg.Timestamp.IsZero() {
			t.Fatal("timestamp not assigned")
		}
	}
	expectSilence(t, outsider)

	late := connect(t, h, "d", 32)
	send(t, h, late, models.EventJoinRoom, map[string]string{"meetingId": "R1", "name": "Dan"})
	recvType(t, late, models.EventParticipantsList)
	var history []models.ChatMessage
	decodeData(t, recvType(t, late, models.EventChatHistory), &history)
	if len(history) != 1 || history[0].ID != "m1" {
		t.Fatalf("chat-history = %+v", history)
	}
}

func TestMismatchedMeetingIDIsIgnored(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	joinRoom(t, h, a, "R1", "Alice")

	send(t, h, a, models.EventChatMessage, map[string]interface{}{
		"meetingId": "R2",
		"message":   map[string]string{"message": "wrong room"},
	})
	expectSilence(t, a)
	if n := len(h.rooms.Room("R1").Messages); n != 0 {
		t.Fatalf("messages = %d", n)
	}
}

func TestEventsBeforeJoinAreIgnored(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)

	send(t, h, a, models.EventChatMessage, map[string]interface{}{"message": map[string]string{"message": "hi"}})
	send(t, h, a, models.EventTyping, nil)
	send(t, h, a, models.EventLeaveRoom, nil)
	expectSilence(t, a)
}

func TestEditAndDeleteOnlyBySender(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	recvType(t, a, models.EventParticipantJoined)

	send(t, h, a, models.EventChatMessage, map[string]interface{}{"message": map[string]string{"id": "m1", "message": "hello"}})
	recvType(t, a, models.EventChatMessage)
	recvType(t, b, models.EventChatMessage)

	send(t, h, b, models.EventEditMessage, map[string]string{"messageId": "m1", "newText": "hacked"})
	send(t, h, b, models.EventDeleteMessage, map[string]string{"messageId": "m1"})
	expectSilence(t, a, b)

	send(t, h, a, models.EventEditMessage, map[string]string{"messageId": "m1", "newText": "hello!"})
	for _, c := range []*Client{a, b} {
		var p models.MessageEditedPayload
		decodeData(t, recvType(t, c, models.EventMessageEdited), &p)
		if p.MessageID != "m1" || p.NewText != "hello!" {
			t.Fatalf("message-edited = %+v", p)
		}
	}

	send(t, h, a, models.EventDeleteMessage, map[string]string{"messageId": "m1"})
	recvType(t, a, models.EventMessageDeleted)
	recvType(t, b, models.EventMessageDeleted)
	if n := len(h.rooms.Room("R1").Messages); n != 0 {
		t.Fatalf("messages after delete = %d", n)
	}
}

func TestTypingAndMediaStateGoToOthers(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	recvType(t, a, models.EventParticipantJoined)

	send(t, h, a, models.EventTyping, map[string]string{"meetingId": "R1"})
	var typing models.TypingPayload
	decodeData(t, recvType(t, b, models.EventUserTyping), &typing)
	if typing.ParticipantID != "a" || typing.Name != "Alice" {
		t.Fatalf("user-typing = %+v", typing)
	}
	send(t, h, a, models.EventStopTyping, nil)
	recvType(t, b, models.EventUserStoppedTyping)

	send(t, h, a, models.EventToggleAudio, map[string]bool{"isMuted": true})
	var audio models.AudioChangedPayload
	decodeData(t, recvType(t, b, models.EventAudioChanged), &audio)
	if audio.ParticipantID != "a" || !audio.IsMuted {
		t.Fatalf("audio = %+v", audio)
	}

	send(t, h, a, models.EventToggleVideo, map[string]bool{"isVideoOff": true})
	recvType(t, b, models.EventVideoChanged)
	expectSilence(t, a)

	p := h.registry.Get("a")
	if !p.IsMuted || !p.IsVideoOff {
		t.Fatalf("participant record not updated: %+v", p)
	}
}

func TestScreenShareTakeover(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	recvType(t, a, models.EventParticipantJoined)

	send(t, h, a, models.EventStartScreenShare, nil)
	var started models.ParticipantRef
	decodeData(t, recvType(t, b, models.EventScreenShareStarted), &started)
	if started.ParticipantID != "a" {
		t.Fatalf("screen-share-started = %+v", started)
	}
	expectSilence(t, a)

	send(t, h, b, models.EventStartScreenShare, nil)
	for _, c := range []*Client{a, b} {
		var stopped models.ParticipantRef
		decodeData(t, recvType(t, c, models.EventScreenShareStopped), &stopped)
		if stopped.ParticipantID != "a" {
			t.Fatalf("%s: screen-share-stopped = %+v", c.ID, stopped)
		}
	}
	decodeData(t, recvType(t, a, models.EventScreenShareStarted), &started)
	if started.ParticipantID != "b" {
		t.Fatalf("takeover started = %+v", started)
	}
	expectSilence(t, b)

	send(t, h, a, models.EventStopScreenShare, nil)
	expectSilence(t, a, b)
	if owner := h.rooms.Room("R1").ScreenShareOwner; owner != "b" {
		t.Fatalf("owner = %q after non-owner stop", owner)
	}

	send(t, h, b, models.EventToggleScreenShare, map[string]bool{"isScreenSharing": false})
	recvType(t, a, models.EventScreenShareStopped)
	if owner := h.rooms.Room("R1").ScreenShareOwner; owner != "" {
		t.Fatalf("owner = %q after stop", owner)
	}
}

func TestSignalIsRelayedToTargetOnly(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	c := connect(t, h, "c", 32)
	other := connect(t, h, "x", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	joinRoom(t, h, c, "R1", "Carol")
	joinRoom(t, h, other, "R2", "Xavier")
	recvType(t, a, models.EventParticipantJoined)
	recvType(t, a, models.EventParticipantJoined)
	recvType(t, b, models.EventParticipantJoined)

	sendRaw(h, a, []byte(`{"type":"offer","data":{"targetId":"b","offer":{"type":"offer","sdp":"v=0"}}}`))
	var relayed models.RelayedSignal
	decodeData(t, recvType(t, b, models.EventOffer), &relayed)
	if relayed.SenderID != "a" || string(relayed.Offer) != `{"type":"offer","sdp":"v=0"}` {
		t.Fatalf("relayed offer = %+v (%s)", relayed, relayed.Offer)
	}
	expectSilence(t, a, c, other)

	sendRaw(h, b, []byte(`{"type":"answer","data":{"targetId":"a","answer":{"type":"answer"}}}`))
	recvType(t, a, models.EventAnswer)
	sendRaw(h, a, []byte(`{"type":"ice-candidate","data":{"targetId":"b","candidate":{"candidate":"c1"}}}`))
	decodeData(t, recvType(t, b, models.EventICECandidate), &relayed)
	if string(relayed.Candidate) != `{"candidate":"c1"}` {
		t.Fatalf("candidate = %s", relayed.Candidate)
	}

	sendRaw(h, a, []byte(`{"type":"offer","data":{"targetId":"x","offer":{}}}`))
	sendRaw(h, a, []byte(`{"type":"offer","data":{"targetId":"a","offer":{}}}`))
	sendRaw(h, a, []byte(`{"type":"offer","data":{"targetId":"nobody","offer":{}}}`))
	expectSilence(t, a, b, c, other)
}

func TestPingAnsweredWithPong(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)

	send(t, h, a, models.EventPing, nil)
	var pong models.PongPayload
	decodeData(t, recvType(t, a, models.EventPong), &pong)
	if pong.Timestamp.IsZero() {
		t.Fatal("pong without timestamp")
	}
}

func TestMalformedFramesGetErrorFrame(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	recvType(t, a, models.EventParticipantJoined)

	cases := []struct {
		frame string
		code  string
	}{
		{`not json`, "bad_request"},
		{`{"type":"teleport","data":{}}`, "unsupported_type"},
		{`{"type":"chat-message","data":"oops"}`, "bad_request"},
		{`{"type":"chat-message","data":{}}`, "validation_failed"},
		{`{"type":"offer","data":{"offer":{}}}`, "validation_failed"},
	}
	for _, tc := range cases {
		sendRaw(h, a, []byte(tc.frame))
		var e models.ErrorPayload
		decodeData(t, recvType(t, a, models.EventError), &e)
		if e.Code != tc.code {
			t.Errorf("%s: code = %q, want %q", tc.frame, e.Code, tc.code)
		}
	}
	expectSilence(t, b)

	if _, ok := h.clients["a"]; !ok {
		t.Fatal("malformed frames must not drop the connection")
	}
}

func TestLeaveTransfersHostAndDisconnectIsIdempotent(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	recvType(t, a, models.EventParticipantJoined)

	send(t, h, a, models.EventLeaveRoom, map[string]string{"meetingId": "R1"})
	var ref models.ParticipantRef
	decodeData(t, recvType(t, b, models.EventParticipantLeft), &ref)
	if ref.ParticipantID != "a" {
		t.Fatalf("participant-left = %+v", ref)
	}
	decodeData(t, recvType(t, b, models.EventHostChanged), &ref)
	if ref.ParticipantID != "b" {
		t.Fatalf("host-changed = %+v", ref)
	}

	send(t, h, a, models.EventLeaveRoom, nil)
	h.disconnect(a, "closed")
	h.disconnect(a, "closed")
	expectSilence(t, b)

	if len(h.rooms.Room("R1").Participants) != 1 {
		t.Fatal("participant count drifted after duplicate leave")
	}
	if _, ok := <-a.send; ok {
		t.Fatal("send queue of a disconnected client should be closed")
	}
	if h.registry.IsConnected("a") {
		t.Fatal("registry still holds disconnected client")
	}
}

func TestDisconnectStopsScreenShareAndDeletesRoom(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	recvType(t, a, models.EventParticipantJoined)
	send(t, h, b, models.EventStartScreenShare, nil)
	recvType(t, a, models.EventScreenShareStarted)

	h.disconnect(b, "closed")
	recvType(t, a, models.EventScreenShareStopped)
	recvType(t, a, models.EventParticipantLeft)
	expectSilence(t, a)

	h.disconnect(a, "closed")
	if h.rooms.Room("R1") != nil {
		t.Fatal("empty room not deleted")
	}
}

func TestSlowClientIsEvicted(t *testing.T) {
	h := newTestHub(t)
	// connect drains the connected frame, leaving room for the join state only.
	slow := connect(t, h, "slow", 2)
	send(t, h, slow, models.EventJoinRoom, map[string]string{"meetingId": "R1", "name": "Slow"})

	fast := connect(t, h, "fast", 32)
	joinRoom(t, h, fast, "R1", "Fast")

	if _, ok := h.clients["slow"]; ok {
		t.Fatal("slow client still registered")
	}
	recvType(t, fast, models.EventParticipantLeft)
	var ref models.ParticipantRef
	decodeData(t, recvType(t, fast, models.EventHostChanged), &ref)
	if ref.ParticipantID != "fast" {
		t.Fatalf("host-changed = %+v", ref)
	}

	recvType(t, slow, models.EventParticipantsList)
	recvType(t, slow, models.EventChatHistory)
	if _, ok := <-slow.send; ok {
		t.Fatal("evicted client's queue should be closed")
	}
}

func TestHandlerPanicOnlyDropsSender(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "a", 32)
	b := connect(t, h, "b", 32)
	joinRoom(t, h, a, "R1", "Alice")
	joinRoom(t, h, b, "R1", "Bob")
	recvType(t, a, models.EventParticipantJoined)

	h.handlers["boom"] = func(*Client, []byte) { panic("boom") }
	sendRaw(h, a, []byte(`{"type":"boom"}`))

	if _, ok := h.clients["a"]; ok {
		t.Fatal("panicking client still registered")
	}
	recvType(t, b, models.EventParticipantLeft)
	recvType(t, b, models.EventHostChanged)

	send(t, h, b, models.EventPing, nil)
	recvType(t, b, models.EventPong)
}

func TestRunServesSnapshotsAndSweeps(t *testing.T) {
	reg := services.NewConnectionRegistry()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rooms := services.NewRoomService(reg, services.RoomOptions{Now: func() time.Time { return now }})
	h := NewHub(rooms, reg, config.SignalingConfig{SendBuffer: 16})
	go h.Run()

	c := &Client{ID: "a", hub: h, send: make(chan []byte, 16)}
	if !h.Register(c) {
		t.Fatal("register failed")
	}
	if !h.deliver(c, []byte(`{"type":"join-room","data":{"meetingId":"R1","name":"Alice"}}`)) {
		t.Fatal("deliver failed")
	}
	waitFor(t, c, models.EventChatHistory)

	snap, ok := h.RoomSnapshot("R1")
	if !ok || snap.ParticipantCount != 1 || snap.ID != "R1" {
		t.Fatalf("snapshot = %+v, %v", snap, ok)
	}
	people, ok := h.Participants("R1")
	if !ok || len(people) != 1 || people[0].Name != "Alice" {
		t.Fatalf("participants = %+v", people)
	}
	if _, ok := h.Participants("nope"); ok {
		t.Fatal("participants of missing room")
	}

	h.Unregister(c)
	h.Do(func() {})
	if snap, ok := h.RoomSnapshot("R1"); !ok || snap.ParticipantCount != 0 {
		t.Fatalf("room should linger empty: %+v, %v", snap, ok)
	}

	if n := h.SweepEmptyRooms(time.Hour); n != 0 {
		t.Fatalf("swept %d fresh rooms", n)
	}
	h.Do(func() { now = now.Add(2 * time.Hour) })
	if n := h.SweepEmptyRooms(time.Hour); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, ok := h.RoomSnapshot("R1"); ok {
		t.Fatal("swept room still present")
	}

	h.Stop()
	if h.Do(func() {}) {
		t.Fatal("Do after Stop should report false")
	}
}

func waitFor(t *testing.T, c *Client, want models.EventType) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case b := <-c.send:
			var f testFrame
			if err := json.Unmarshal(b, &f); err == nil && f.Type == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestTwoPersonMeetingScenario(t *testing.T) {
	h := newTestHub(t)
	a := connect(t, h, "A", 32)
	b := connect(t, h, "B", 32)

	joinRoom(t, h, a, "R1", "A")
	send(t, h, b, models.EventJoinRoom, map[string]string{"meetingId": "R1", "name": "B"})
	recvType(t, a, models.EventParticipantJoined)
	var list []models.Participant
	decodeData(t, recvType(t, b, models.EventParticipantsList), &list)
	var history []models.ChatMessage
	decodeData(t, recvType(t, b, models.EventChatHistory), &history)
	if len(list) != 2 || len(history) != 0 {
		t.Fatalf("join state: %+v %+v", list, history)
	}

	send(t, h, a, models.EventChatMessage, map[string]interface{}{"message": map[string]string{"message": "hello"}})
	for _, c := range []*Client{a, b} {
		var msg models.ChatMessage
		decodeData(t, recvType(t, c, models.EventChatMessage), &msg)
		if msg.Sender != "A" || msg.Message != "hello" {
			t.Fatalf("%s: %+v", c.ID, msg)
		}
	}

	send(t, h, b, models.EventStartScreenShare, nil)
	recvType(t, a, models.EventScreenShareStarted)

	h.disconnect(b, "closed")
	var ref models.ParticipantRef
	decodeData(t, recvType(t, a, models.EventScreenShareStopped), &ref)
	if ref.ParticipantID != "B" {
		t.Fatalf("screen-share-stopped = %+v", ref)
	}
	recvType(t, a, models.EventParticipantLeft)
	expectSilence(t, a)

	room := h.rooms.Room("R1")
	if len(room.Participants) != 1 || room.Participants[0] != "A" || room.ScreenShareOwner != "" {
		t.Fatalf("room = %+v", room)
	}
}

package websocket

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"meet-signal/internal/config"
	"meet-signal/internal/metrics"
	"meet-signal/internal/models"
	"meet-signal/internal/services"
	"meet-signal/pkg/logger"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type inboundMessage struct {
	client *Client
	data   []byte
}

// Hub owns the room table and connection registry. Run processes one event at
// a time, including every broadcast it causes, so no state here needs a lock.
type Hub struct {
	cfg      config.SignalingConfig
	rooms    *services.RoomService
	registry *services.ConnectionRegistry
	clients  map[string]*Client
	handlers map[models.EventType]handlerFunc
	validate *validator.Validate

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	tasks      chan func()

	// clients whose send buffer overflowed or whose handler panicked
	evict []*Client

	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewHub(rooms *services.RoomService, registry *services.ConnectionRegistry, cfg config.SignalingConfig) *Hub {
	h := &Hub{
		cfg:        cfg,
		rooms:      rooms,
		registry:   registry,
		clients:    make(map[string]*Client),
		validate:   newValidator(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage, 256),
		tasks:      make(chan func()),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	h.handlers = h.routes()
	return h
}

func (h *Hub) Run() {
	defer close(h.stopped)

	for {
		select {
		case <-h.quit:
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
				h.registry.Remove(id)
			}
			metrics.ActiveConnections.Set(0)
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.disconnect(client, "closed")

		case msg := <-h.inbound:
			h.dispatch(msg.client, msg.data)

		case task := <-h.tasks:
			task()
		}
		h.drainEvictions()
	}
}

// Stop terminates Run and closes every client's send queue.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.stopped
}

// Register hands a freshly upgraded client to the hub.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) deliver(c *Client, data []byte) bool {
	select {
	case h.inbound <- inboundMessage{client: c, data: data}:
		return true
	case <-h.quit:
		return false
	}
}

// Do runs fn on the hub goroutine and waits for it. It reports false when the
// hub stopped before fn ran.
func (h *Hub) Do(fn func()) bool {
	done := make(chan struct{})
	select {
	case h.tasks <- func() { defer close(done); fn() }:
	case <-h.quit:
		return false
	}
	select {
	case <-done:
		return true
	case <-h.stopped:
		return false
	}
}

// SweepEmptyRooms implements services.RoomSweeper.
func (h *Hub) SweepEmptyRooms(retention time.Duration) int {
	var swept []string
	h.Do(func() {
		swept = h.rooms.SweepEmpty(retention)
		metrics.ActiveRooms.Set(float64(h.rooms.Count()))
	})
	for _, id := range swept {
		logger.Debug("Swept empty room %s", id)
	}
	metrics.SweptRooms.Add(float64(len(swept)))
	return len(swept)
}

func (h *Hub) RoomSnapshot(meetingID string) (snap models.RoomSnapshot, ok bool) {
	h.Do(func() { snap, ok = h.rooms.Snapshot(meetingID) })
	return snap, ok
}

// Participants returns copies of the participant records of meetingID.
func (h *Hub) Participants(meetingID string) (out []models.Participant, ok bool) {
	h.Do(func() {
		if h.rooms.Room(meetingID) == nil {
			return
		}
		ok = true
		out = make([]models.Participant, 0)
		for _, p := range h.rooms.Members(meetingID) {
			out = append(out, *p)
		}
	})
	return out, ok
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c.ID] = c
	h.registry.Register(c.ID)
	metrics.ActiveConnections.Set(float64(len(h.clients)))
	h.sendTo(c, models.EventConnected, models.ConnectedPayload{ID: c.ID})
	logger.Debug("Connection %s registered", c.ID)
}

// disconnect runs the leave protocol for c and forgets it. Safe to call more
// than once for the same client.
func (h *Hub) disconnect(c *Client, reason string) {
	if current, ok := h.clients[c.ID]; !ok || current != c {
		return
	}
	h.leave(c.ID)
	h.registry.Remove(c.ID)
	delete(h.clients, c.ID)
	close(c.send)
	metrics.ActiveConnections.Set(float64(len(h.clients)))
	if reason != "closed" {
		metrics.DroppedConnections.WithLabelValues(reason).Inc()
	}
	logger.Debug("Connection %s removed (%s)", c.ID, reason)
}

func (h *Hub) drainEvictions() {
	for len(h.evict) > 0 {
		c := h.evict[0]
		h.evict = h.evict[1:]
		h.disconnect(c, "evicted")
	}
}

func (h *Hub) scheduleEvict(c *Client) {
	for _, pending := range h.evict {
		if pending == c {
			return
		}
	}
	h.evict = append(h.evict, c)
}

// dispatch decodes one frame and runs its handler. A panicking handler only
// costs the offending connection.
func (h *Hub) dispatch(c *Client, data []byte) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}

	var frame models.InboundFrame
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic handling %q from %s: %v\n%s", frame.Type, c.ID, r, debug.Stack())
			h.scheduleEvict(c)
		}
	}()

	if err := json.Unmarshal(data, &frame); err != nil {
		h.replyError(c, "bad_request", "invalid payload")
		return
	}

	handler, ok := h.handlers[frame.Type]
	if !ok {
		h.replyError(c, "unsupported_type", fmt.Sprintf("unknown event type %q", frame.Type))
		return
	}

	metrics.EventsTotal.WithLabelValues(string(frame.Type)).Inc()
	handler(c, frame.Data)
}

func (h *Hub) encode(t models.EventType, data interface{}) []byte {
	payload, err := json.Marshal(models.OutboundFrame{Type: t, Data: data})
	if err != nil {
		logger.Error("Error marshaling %s frame: %v", t, err)
		return nil
	}
	return payload
}

func (h *Hub) enqueue(c *Client, payload []byte) {
	if payload == nil {
		return
	}
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		logger.Warn("Send buffer full for %s, dropping connection", c.ID)
		h.scheduleEvict(c)
	}
}

func (h *Hub) sendTo(c *Client, t models.EventType, data interface{}) {
	h.enqueue(c, h.encode(t, data))
}

// sendToIDs delivers one frame to each listed connection except skip.
func (h *Hub) sendToIDs(ids []string, skip string, t models.EventType, data interface{}) {
	payload := h.encode(t, data)
	for _, id := range ids {
		if id == skip {
			continue
		}
		if c, ok := h.clients[id]; ok {
			h.enqueue(c, payload)
		}
	}
}

// emitToRoom delivers to every member of room, the sender included.
func (h *Hub) emitToRoom(room *models.Room, t models.EventType, data interface{}) {
	h.sendToIDs(room.Participants, "", t, data)
}

// emitToOthers delivers to every member of room except senderID.
func (h *Hub) emitToOthers(room *models.Room, senderID string, t models.EventType, data interface{}) {
	h.sendToIDs(room.Participants, senderID, t, data)
}

func (h *Hub) replyError(c *Client, code, message string) {
	metrics.RejectedFrames.WithLabelValues(code).Inc()
	h.sendTo(c, models.EventError, models.ErrorPayload{Code: code, Error: message})
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("meetingid", func(fl validator.FieldLevel) bool {
		return models.ValidMeetingID(fl.Field().String())
	})
	return v
}

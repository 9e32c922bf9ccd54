package services

import "meet-signal/internal/models"

// ConnectionRegistry maps live connection ids to participant records.
// A registered connection that has not joined a room maps to nil.
// It is not safe for concurrent use; the hub loop is its only writer.
type ConnectionRegistry struct {
	conns map[string]*models.Participant
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]*models.Participant)}
}

func (r *ConnectionRegistry) Register(connID string) {
	if _, ok := r.conns[connID]; !ok {
		r.conns[connID] = nil
	}
}

func (r *ConnectionRegistry) Put(connID string, p *models.Participant) {
	r.conns[connID] = p
}

// Get returns the participant for connID, or nil if the connection has not joined.
func (r *ConnectionRegistry) Get(connID string) *models.Participant {
	return r.conns[connID]
}

// Clear drops the participant record but keeps the connection registered.
func (r *ConnectionRegistry) Clear(connID string) {
	if _, ok := r.conns[connID]; ok {
		r.conns[connID] = nil
	}
}

func (r *ConnectionRegistry) Remove(connID string) {
	delete(r.conns, connID)
}

func (r *ConnectionRegistry) IsConnected(connID string) bool {
	_, ok := r.conns[connID]
	return ok
}

func (r *ConnectionRegistry) Count() int {
	return len(r.conns)
}

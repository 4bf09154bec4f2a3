/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package gateway maps websocket connections onto room memberships. It
// forwards inbound intents to the session coordinator and fans the
// coordinator's events out to every connection following a room.
package gateway

import (
	"sync"

	"github.com/Seednode/truthordare/session"
	"github.com/rs/zerolog"
)

// Hub is the set of connections following one room.
type Hub struct {
	clients map[*Client]bool
}

func newHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Manager holds one Hub per room with live connections. It implements
// session.Broadcaster.
type Manager struct {
	mu   sync.Mutex
	hubs map[string]*Hub
	log  zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		hubs: make(map[string]*Hub),
		log:  log,
	}
}

// attach adds c to the room's hub, creating the hub on demand.
func (m *Manager) attach(roomID string, c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.hubs[roomID]
	if !ok {
		hub = newHub()
		m.hubs[roomID] = hub
	}
	hub.clients[c] = true
}

// detach removes c from the room's hub and drops the hub once empty.
func (m *Manager) detach(roomID string, c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detachLocked(roomID, c)
}

func (m *Manager) detachLocked(roomID string, c *Client) {
	hub, ok := m.hubs[roomID]
	if !ok {
		return
	}
	delete(hub.clients, c)
	if len(hub.clients) == 0 {
		delete(m.hubs, roomID)
	}
}

// Publish delivers ev to every connection following roomID. A connection
// whose buffer is full is dropped rather than allowed to stall the room; it
// keeps its membership so the server can report it offline once the read
// loop ends.
func (m *Manager) Publish(roomID string, ev session.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.hubs[roomID]
	if !ok {
		return
	}
	for client := range hub.clients {
		if !client.enqueue(ev) {
			m.log.Debug().
				Str("component", "gateway").
				Str("room", roomID).
				Msg("dropping slow connection")

			m.detachLocked(roomID, client)
			go client.close()
		}
	}

	switch e := ev.(type) {
	case session.ParticipantLeft:
		// A departed participant's connections stop following the room.
		for client := range hub.clients {
			if client.unbind(roomID, e.ParticipantID) {
				m.detachLocked(roomID, client)
			}
		}
	case session.RoomEnded:
		for client := range hub.clients {
			client.unbind(roomID, "")
		}
		delete(m.hubs, roomID)
	}
}

// Connections reports how many connections follow roomID.
func (m *Manager) Connections(roomID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.hubs[roomID]
	if !ok {
		return 0
	}
	return len(hub.clients)
}

// following reports whether any connection in the room still represents
// participantID.
func (m *Manager) following(roomID, participantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.hubs[roomID]
	if !ok {
		return false
	}
	for c := range hub.clients {
		if _, p := c.binding(); p == participantID {
			return true
		}
	}
	return false
}

// Rooms reports how many rooms have at least one live connection.
func (m *Manager) Rooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.hubs)
}

// closeAll disconnects every connection. Used on shutdown.
func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, hub := range m.hubs {
		for c := range hub.clients {
			go c.close()
		}
		delete(m.hubs, id)
	}
}

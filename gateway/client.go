/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Seednode/truthordare/session"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// ClientMessage is an inbound intent. Room and participant ids fall back to
// the connection's current membership when omitted.
type ClientMessage struct {
	Type          string `json:"type"`
	RoomCode      string `json:"roomCode,omitempty"`
	RoomID        string `json:"roomId,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	HostID        string `json:"hostId,omitempty"`
	ChallengeID   string `json:"challengeId,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Completed     *bool  `json:"completed,omitempty"`
	Name          string `json:"name,omitempty"`
}

// Client is one websocket connection. It follows at most one room as at
// most one participant.
type Client struct {
	conn    *websocket.Conn
	send    chan any
	limiter *rate.Limiter
	manager *Manager

	ctx    context.Context
	cancel context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once

	mu            sync.Mutex
	roomID        string
	participantID string
}

func newClient(conn *websocket.Conn, m *Manager, limiter *rate.Limiter) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		conn:    conn,
		send:    make(chan any, sendBuffer),
		limiter: limiter,
		manager: m,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Subscribe implements session.Subscriber. The snapshot is queued ahead of
// anything the room publishes afterwards.
func (c *Client) Subscribe(roomID, participantID string, snapshot session.RoomState) {
	c.mu.Lock()
	previous := c.roomID
	c.roomID = roomID
	c.participantID = participantID
	c.mu.Unlock()

	if previous != "" && previous != roomID {
		c.manager.detach(previous, c)
	}

	if !c.enqueue(snapshot) {
		go c.close()
		return
	}

	c.manager.attach(roomID, c)
}

// binding returns the room and participant this connection follows.
func (c *Client) binding() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.roomID, c.participantID
}

// unbind clears the membership if it matches roomID and, when given,
// participantID. It reports whether anything was cleared.
func (c *Client) unbind(roomID, participantID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roomID != roomID {
		return false
	}
	if participantID != "" && c.participantID != participantID {
		return false
	}
	c.roomID = ""
	c.participantID = ""
	return true
}

// enqueue hands msg to the write pump without blocking. It returns false
// when the buffer is full.
func (c *Client) enqueue(msg any) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
}

// readPump decodes inbound intents and hands them to handle, one at a time,
// until the connection fails or is closed.
func (c *Client) readPump(handle func(*Client, ClientMessage)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			c.enqueue(session.ErrorEvent{
				Type:    session.EventError,
				Code:    session.CodeInvalidRequest,
				Message: "too many messages, slow down",
			})
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(session.ErrorEvent{
				Type:    session.EventError,
				Code:    session.CodeInvalidRequest,
				Message: "messages must be JSON objects",
			})
			continue
		}

		handle(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Seednode/truthordare/domain"
	"github.com/Seednode/truthordare/session"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Inbound message types.
const (
	MessageJoinRoom         = "join-room"
	MessageStart            = "start"
	MessageRequestChallenge = "request-challenge"
	MessageResolveChallenge = "resolve-challenge"
	MessageAdvanceTurn      = "advance-turn"
	MessageLeaveRoom        = "leave-room"
)

const disconnectTimeout = 5 * time.Second

// Coordinator is the part of session.Coordinator the gateway drives.
type Coordinator interface {
	Join(ctx context.Context, roomCode, name string, sub session.Subscriber) (domain.Participant, error)
	Attach(ctx context.Context, roomCode, participantID string, sub session.Subscriber) (domain.Participant, error)
	Disconnect(ctx context.Context, roomID, participantID string, sub session.Subscriber) error
	Start(ctx context.Context, roomID, hostID string) (domain.Room, error)
	RequestChallenge(ctx context.Context, roomID, participantID string, kind domain.Kind) (domain.Challenge, error)
	ResolveChallenge(ctx context.Context, roomID, challengeID, participantID string, completed bool) (domain.Challenge, error)
	AdvanceTurn(ctx context.Context, roomID, participantID string) (domain.Room, error)
	Leave(ctx context.Context, roomID, participantID string) error
}

// Server upgrades requests to websockets and routes their messages.
type Server struct {
	manager  *Manager
	coord    Coordinator
	log      zerolog.Logger
	upgrader websocket.Upgrader

	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[*Client]bool
	closed  bool
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithRateLimit caps inbound messages per connection. A zero limit
// disables the cap.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.limit = rate.Inf
		} else {
			s.limit = rate.Limit(perSecond)
		}
		if burst > 0 {
			s.burst = burst
		}
	}
}

func NewServer(m *Manager, coord Coordinator, opts ...Option) *Server {
	s := &Server{
		manager: m,
		coord:   coord,
		log:     zerolog.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		limit:   rate.Limit(5),
		burst:   10,
		clients: make(map[*Client]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle serves the websocket endpoint on an httprouter route.
func (s *Server) Handle() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.ServeHTTP(w, r)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Str("component", "gateway").Err(err).Msg("upgrade failed")
		return
	}

	c := newClient(conn, s.manager, rate.NewLimiter(s.limit, s.burst))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = true
	s.mu.Unlock()

	s.log.Debug().
		Str("component", "gateway").
		Str("remote", r.RemoteAddr).
		Msg("connection opened")

	go c.writePump()
	c.readPump(s.handle)

	s.finish(c)
}

// Close disconnects every open connection.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	s.manager.closeAll()
}

// finish releases a connection whose read loop has ended. The participant
// is only marked offline; membership and turn order are untouched.
func (s *Server) finish(c *Client) {
	c.close()

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	roomID, participantID := c.binding()
	if roomID == "" {
		return
	}
	c.unbind(roomID, "")
	s.manager.detach(roomID, c)

	s.disconnect(c, roomID, participantID)
}

// disconnect marks a participant offline unless another connection still
// represents them. The coordinator ignores it if a newer connection has
// attached as the same participant in the meantime.
func (s *Server) disconnect(c *Client, roomID, participantID string) {
	if participantID == "" || s.manager.following(roomID, participantID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	if err := s.coord.Disconnect(ctx, roomID, participantID, c); err != nil {
		s.log.Debug().
			Str("component", "gateway").
			Str("room", roomID).
			Str("participant", participantID).
			Err(err).
			Msg("disconnect not recorded")
	}
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func (s *Server) handle(c *Client, msg ClientMessage) {
	roomID, participantID := c.binding()
	room := orDefault(msg.RoomID, roomID)
	participant := orDefault(msg.ParticipantID, participantID)

	var err error

	switch msg.Type {
	case MessageJoinRoom:
		err = s.joinRoom(c, msg)
	case MessageStart:
		_, err = s.coord.Start(c.ctx, room, orDefault(msg.HostID, participantID))
	case MessageRequestChallenge:
		_, err = s.coord.RequestChallenge(c.ctx, room, participant, domain.Kind(msg.Kind))
	case MessageResolveChallenge:
		if msg.Completed == nil {
			c.enqueue(session.ErrorEvent{
				Type:    session.EventError,
				Code:    session.CodeInvalidRequest,
				Message: "resolve-challenge needs completed",
			})
			return
		}
		_, err = s.coord.ResolveChallenge(c.ctx, room, msg.ChallengeID, participant, *msg.Completed)
	case MessageAdvanceTurn:
		_, err = s.coord.AdvanceTurn(c.ctx, room, participant)
	case MessageLeaveRoom:
		err = s.coord.Leave(c.ctx, room, participant)
	default:
		c.enqueue(session.ErrorEvent{
			Type:    session.EventError,
			Code:    session.CodeInvalidRequest,
			Message: "unknown message type",
		})
		return
	}

	if err != nil {
		s.log.Debug().
			Str("component", "gateway").
			Str("type", msg.Type).
			Str("room", room).
			Str("participant", participant).
			Err(err).
			Msg("intent rejected")

		c.enqueue(session.NewErrorEvent(err))
	}
}

// joinRoom attaches an existing participant when an id is given, or creates
// one from name. A connection that already followed someone releases them.
func (s *Server) joinRoom(c *Client, msg ClientMessage) error {
	prevRoom, prevParticipant := c.binding()

	var (
		p   domain.Participant
		err error
	)
	if msg.ParticipantID != "" {
		p, err = s.coord.Attach(c.ctx, msg.RoomCode, msg.ParticipantID, c)
	} else {
		p, err = s.coord.Join(c.ctx, msg.RoomCode, msg.Name, c)
	}
	if err != nil {
		return err
	}

	if prevParticipant != "" && (prevRoom != p.RoomID || prevParticipant != p.ID) {
		s.disconnect(c, prevRoom, prevParticipant)
	}

	s.log.Debug().
		Str("component", "gateway").
		Str("room", p.RoomID).
		Str("participant", p.ID).
		Msg("connection joined room")

	return nil
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session runs the room state machine. Every room gets its own
// actor goroutine that serialises the room's mutations; unrelated rooms
// proceed in parallel. Challenge text is generated outside the actor and
// committed only after the room's state has been re-validated.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/truthordare/domain"
	"github.com/Seednode/truthordare/repository"
	"github.com/rs/zerolog"
)

// Repository is the storage the coordinator mutates.
type Repository interface {
	CreateRoom(r domain.Room) (domain.Room, error)
	GetRoom(id string) (domain.Room, error)
	RoomByCode(code string) (domain.Room, error)
	ListRooms() []domain.Room
	UpdateRoom(id string, p repository.RoomPatch) (domain.Room, error)
	TouchRoom(id string) error
	PurgeRoom(id string) error

	CreateParticipant(p domain.Participant) (domain.Participant, error)
	GetParticipant(id string) (domain.Participant, error)
	ParticipantsByRoom(roomID string) []domain.Participant
	UpdateParticipant(id string, p repository.ParticipantPatch) (domain.Participant, error)
	DeleteParticipant(id string) error

	CreateChallenge(c domain.Challenge) (domain.Challenge, error)
	GetChallenge(id string) (domain.Challenge, error)
	UpdateChallenge(id string, p repository.ChallengePatch) (domain.Challenge, error)
}

// Generator produces challenge text. It must always return text.
type Generator interface {
	Generate(ctx context.Context, kind domain.Kind, mode domain.Mode, tier domain.Tier) (string, domain.Provenance)
}

const (
	codeLength      = 6
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts    = 32
	maxNameLength   = 32
	defaultHoldTime = 10 * time.Second
)

type Coordinator struct {
	store Repository
	gen   Generator
	bc    Broadcaster
	log   zerolog.Logger
	now   func() time.Time

	// reservationTTL bounds how long an in-flight challenge request blocks
	// other requests for the same room.
	reservationTTL time.Duration

	mu     sync.Mutex
	actors map[string]*roomActor
	closed bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type Option func(*Coordinator)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithReservationTTL sets how long a challenge request may hold its slot
// while text is generated. Use at least twice the generator timeout.
func WithReservationTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.reservationTTL = d
		}
	}
}

func New(store Repository, gen Generator, bc Broadcaster, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		gen:            gen,
		bc:             bc,
		log:            zerolog.Nop(),
		now:            time.Now,
		reservationTTL: defaultHoldTime,
		actors:         make(map[string]*roomActor),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops every room actor. Pending intents fail with ErrClosed.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.done)
	})
	c.wg.Wait()
}

type envelope struct {
	intent any
	reply  chan outcome
}

type outcome struct {
	value any
	err   error
}

type reservation struct {
	token         uint64
	participantID string
	expires       time.Time
}

type roomActor struct {
	roomID string
	inbox  chan envelope
	done   chan struct{}

	// Owned by the actor goroutine.
	hold      *reservation
	nextToken uint64
	ended     bool

	// conns holds the latest subscriber attached for each participant.
	conns map[string]Subscriber

	// handedOff is the participant whose advance-turn moved the turn last.
	handedOff string
}

func (c *Coordinator) actor(roomID string) (*roomActor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if a, ok := c.actors[roomID]; ok {
		return a, nil
	}

	room, err := c.store.GetRoom(roomID)
	if err != nil {
		return nil, ErrRoomNotFound
	}
	if room.Status == domain.StatusEnded {
		return nil, ErrRoomEnded
	}

	a := &roomActor{
		roomID: roomID,
		inbox:  make(chan envelope),
		done:   make(chan struct{}),
		conns:  make(map[string]Subscriber),
	}
	c.actors[roomID] = a

	c.wg.Add(1)
	go c.run(a)

	return a, nil
}

func (c *Coordinator) run(a *roomActor) {
	defer c.wg.Done()

	for {
		select {
		case env := <-a.inbox:
			value, err := c.apply(a, env.intent)
			env.reply <- outcome{value: value, err: err}

			if a.ended {
				c.mu.Lock()
				delete(c.actors, a.roomID)
				c.mu.Unlock()

				close(a.done)
				return
			}
		case <-c.done:
			close(a.done)
			return
		}
	}
}

// dispatch hands an intent to the room's actor and waits for its result.
func (c *Coordinator) dispatch(ctx context.Context, roomID string, intent any) (any, error) {
	a, err := c.actor(roomID)
	if err != nil {
		return nil, err
	}

	env := envelope{intent: intent, reply: make(chan outcome, 1)}

	select {
	case a.inbox <- env:
	case <-a.done:
		select {
		case <-c.done:
			return nil, ErrClosed
		default:
			return nil, ErrRoomEnded
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := <-env.reply
	return out.value, out.err
}

func (c *Coordinator) publish(roomID string, ev Event) {
	if c.bc == nil {
		return
	}
	c.bc.Publish(roomID, ev)
}

// CreateRoomRequest describes a new room. An empty Code asks the
// coordinator to pick one.
type CreateRoomRequest struct {
	Code      string
	Mode      domain.Mode
	Tier      domain.Tier
	HostElect string
}

func (c *Coordinator) CreateRoom(ctx context.Context, req CreateRoomRequest) (domain.Room, error) {
	if _, err := domain.ParseMode(string(req.Mode)); err != nil {
		return domain.Room{}, wrapError(CodeInvalidRequest, "unknown relationship mode", err)
	}
	if _, err := domain.ParseTier(string(req.Tier)); err != nil {
		return domain.Room{}, wrapError(CodeInvalidRequest, "unknown intensity tier", err)
	}

	room := domain.Room{
		Mode:      req.Mode,
		Tier:      req.Tier,
		Status:    domain.StatusPending,
		HostElect: strings.TrimSpace(req.HostElect),
	}

	if code := domain.NormalizeCode(req.Code); code != "" {
		if !validCode(code) {
			return domain.Room{}, newError(CodeInvalidRequest, "room codes are 4 to 12 letters or digits")
		}

		room.Code = code
		created, err := c.store.CreateRoom(room)
		if errors.Is(err, repository.ErrConflict) {
			return domain.Room{}, ErrCodeCollision
		}
		if err != nil {
			return domain.Room{}, fmt.Errorf("create room: %w", err)
		}

		c.logCreated(created)
		return created, nil
	}

	for range codeAttempts {
		if err := ctx.Err(); err != nil {
			return domain.Room{}, err
		}

		code, err := newCode()
		if err != nil {
			return domain.Room{}, err
		}

		room.Code = code
		created, err := c.store.CreateRoom(room)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.Room{}, fmt.Errorf("create room: %w", err)
		}

		c.logCreated(created)
		return created, nil
	}

	return domain.Room{}, ErrCodeCollision
}

func (c *Coordinator) logCreated(r domain.Room) {
	c.log.Info().
		Str("room", r.Code).
		Str("mode", string(r.Mode)).
		Str("tier", string(r.Tier)).
		Msg("created room")
}

func validCode(code string) bool {
	if len(code) < 4 || len(code) > 12 {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return false
		}
	}
	return true
}

func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}

	out := make([]byte, codeLength)
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(out), nil
}

// Lookup resolves a room by code, falling back to its id.
func (c *Coordinator) Lookup(key string) (domain.Room, error) {
	if r, err := c.store.RoomByCode(key); err == nil {
		return r, nil
	}
	r, err := c.store.GetRoom(key)
	if err != nil {
		return domain.Room{}, ErrRoomNotFound
	}
	return r, nil
}

// Snapshot is the out-of-band read path: the room, its participants and its
// unresolved challenge, if any.
func (c *Coordinator) Snapshot(key string) (RoomState, error) {
	room, err := c.Lookup(key)
	if err != nil {
		return RoomState{}, err
	}
	return c.snapshot(room), nil
}

func (c *Coordinator) snapshot(room domain.Room) RoomState {
	state := RoomState{
		Type:         EventRoomState,
		Room:         room,
		Participants: c.store.ParticipantsByRoom(room.ID),
	}
	if room.ActiveChallengeID != "" {
		if ch, err := c.store.GetChallenge(room.ActiveChallengeID); err == nil && ch.Status == domain.ChallengePending {
			state.Challenge = &ch
		}
	}
	return state
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", newError(CodeInvalidRequest, "a display name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return "", newError(CodeInvalidRequest, fmt.Sprintf("display names are at most %d characters", maxNameLength))
	}
	return name, nil
}

// Join adds a participant to the room with the given code. When sub is not
// nil the new participant is attached to it in the same step.
func (c *Coordinator) Join(ctx context.Context, roomCode, name string, sub Subscriber) (domain.Participant, error) {
	name, err := validName(name)
	if err != nil {
		return domain.Participant{}, err
	}

	room, err := c.store.RoomByCode(roomCode)
	if err != nil || room.Status == domain.StatusEnded {
		return domain.Participant{}, ErrRoomNotFound
	}

	v, err := c.dispatch(ctx, room.ID, joinIntent{name: name, sub: sub})
	if errors.Is(err, ErrRoomEnded) {
		return domain.Participant{}, ErrRoomNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return v.(domain.Participant), nil
}

// Attach connects an existing participant to sub: the room snapshot is
// delivered first, then every later event for the room.
func (c *Coordinator) Attach(ctx context.Context, roomCode, participantID string, sub Subscriber) (domain.Participant, error) {
	if sub == nil {
		return domain.Participant{}, newError(CodeInvalidRequest, "a subscriber is required")
	}

	room, err := c.store.RoomByCode(roomCode)
	if err != nil || room.Status == domain.StatusEnded {
		return domain.Participant{}, ErrRoomNotFound
	}

	v, err := c.dispatch(ctx, room.ID, attachIntent{participantID: participantID, sub: sub})
	if errors.Is(err, ErrRoomEnded) {
		return domain.Participant{}, ErrRoomNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return v.(domain.Participant), nil
}

// Disconnect records that a participant's connection dropped. Membership
// and turn order are left untouched. When sub is given and the participant
// has since attached through another subscriber, nothing changes.
func (c *Coordinator) Disconnect(ctx context.Context, roomID, participantID string, sub Subscriber) error {
	_, err := c.dispatch(ctx, roomID, disconnectIntent{participantID: participantID, sub: sub})
	return err
}

func (c *Coordinator) Start(ctx context.Context, roomID, hostID string) (domain.Room, error) {
	v, err := c.dispatch(ctx, roomID, startIntent{hostID: hostID})
	if err != nil {
		return domain.Room{}, err
	}
	return v.(domain.Room), nil
}

// RequestChallenge generates a challenge for the current-turn participant.
// The room is not held while text is generated; the result is committed only
// if the request is still valid afterwards.
func (c *Coordinator) RequestChallenge(ctx context.Context, roomID, participantID string, kind domain.Kind) (domain.Challenge, error) {
	if _, err := domain.ParseKind(string(kind)); err != nil {
		return domain.Challenge{}, wrapError(CodeInvalidRequest, "challenges are truth or dare", err)
	}

	v, err := c.dispatch(ctx, roomID, reserveIntent{participantID: participantID})
	if err != nil {
		return domain.Challenge{}, err
	}
	grant := v.(reserveGrant)

	text, provenance := c.gen.Generate(ctx, kind, grant.mode, grant.tier)

	// The commit must reach the actor even if the caller gave up, so the
	// reservation is released.
	v, err = c.dispatch(context.WithoutCancel(ctx), roomID, commitIntent{
		token:         grant.token,
		participantID: participantID,
		kind:          kind,
		mode:          grant.mode,
		tier:          grant.tier,
		text:          text,
		provenance:    provenance,
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	return v.(domain.Challenge), nil
}

func (c *Coordinator) ResolveChallenge(ctx context.Context, roomID, challengeID, participantID string, completed bool) (domain.Challenge, error) {
	v, err := c.dispatch(ctx, roomID, resolveIntent{
		challengeID:   challengeID,
		participantID: participantID,
		completed:     completed,
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	return v.(domain.Challenge), nil
}

// AdvanceTurn passes the turn to the next participant in rotation. Any
// member may advance, so a room whose current player dropped can move on.
// A repeat from the participant who just handed off the turn is a stale
// duplicate and succeeds without changing anything.
func (c *Coordinator) AdvanceTurn(ctx context.Context, roomID, participantID string) (domain.Room, error) {
	v, err := c.dispatch(ctx, roomID, advanceIntent{participantID: participantID})
	if err != nil {
		return domain.Room{}, err
	}
	return v.(domain.Room), nil
}

func (c *Coordinator) Leave(ctx context.Context, roomID, participantID string) error {
	_, err := c.dispatch(ctx, roomID, leaveIntent{participantID: participantID})
	if errors.Is(err, ErrRoomEnded) || errors.Is(err, ErrRoomNotFound) {
		return ErrParticipantNotFound
	}
	return err
}

// Configure changes the mode or tier of a room that has not started yet.
func (c *Coordinator) Configure(ctx context.Context, roomID string, mode *domain.Mode, tier *domain.Tier) (domain.Room, error) {
	if mode != nil {
		if _, err := domain.ParseMode(string(*mode)); err != nil {
			return domain.Room{}, wrapError(CodeInvalidRequest, "unknown relationship mode", err)
		}
	}
	if tier != nil {
		if _, err := domain.ParseTier(string(*tier)); err != nil {
			return domain.Room{}, wrapError(CodeInvalidRequest, "unknown intensity tier", err)
		}
	}

	v, err := c.dispatch(ctx, roomID, configureIntent{mode: mode, tier: tier})
	if err != nil {
		return domain.Room{}, err
	}
	return v.(domain.Room), nil
}

func (c *Coordinator) Rename(ctx context.Context, participantID, name string) (domain.Participant, error) {
	name, err := validName(name)
	if err != nil {
		return domain.Participant{}, err
	}

	p, err := c.store.GetParticipant(participantID)
	if err != nil {
		return domain.Participant{}, ErrParticipantNotFound
	}

	v, err := c.dispatch(ctx, p.RoomID, renameIntent{participantID: participantID, name: name})
	if errors.Is(err, ErrRoomEnded) || errors.Is(err, ErrRoomNotFound) {
		return domain.Participant{}, ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return v.(domain.Participant), nil
}

// ReapIdle ends rooms that have seen no activity since cutoff and purges
// rooms that ended before it. It returns how many rooms it touched.
func (c *Coordinator) ReapIdle(ctx context.Context, cutoff time.Time) int {
	reaped := 0

	for _, room := range c.store.ListRooms() {
		if ctx.Err() != nil {
			break
		}

		if room.Status == domain.StatusEnded {
			if room.EndedAt != nil && room.EndedAt.Before(cutoff) {
				if err := c.store.PurgeRoom(room.ID); err == nil {
					reaped++
					c.log.Debug().Str("room", room.Code).Msg("purged room")
				}
			}
			continue
		}

		if room.UpdatedAt.Before(cutoff) {
			if _, err := c.dispatch(ctx, room.ID, endIntent{}); err == nil {
				reaped++
				c.log.Info().Str("room", room.Code).Msg("ended idle room")
			}
		}
	}

	return reaped
}

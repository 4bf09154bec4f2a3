/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package repository is an in-memory store for rooms, participants,
// challenges and accounts. Every operation is atomic per key; records are
// copied on the way in and on the way out.
package repository

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Seednode/truthordare/domain"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// ErrInvalidTransition rejects a status patch that would move a room
	// backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Store struct {
	now func() time.Time
	seq atomic.Uint64

	roomsMu     sync.RWMutex
	rooms       map[string]domain.Room
	roomsByCode map[string]string

	participantsMu sync.RWMutex
	participants   map[string]domain.Participant

	challengesMu sync.RWMutex
	challenges   map[string]domain.Challenge

	accountsMu      sync.RWMutex
	accounts        map[string]domain.Account
	accountsByLower map[string]string
}

type Option func(*Store)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:             time.Now,
		rooms:           make(map[string]domain.Room),
		roomsByCode:     make(map[string]string),
		participants:    make(map[string]domain.Participant),
		challenges:      make(map[string]domain.Challenge),
		accounts:        make(map[string]domain.Account),
		accountsByLower: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newID() string {
	return uuid.NewString()
}

// RoomPatch lists the room fields to overwrite. Nil fields are left alone;
// an empty string clears a reference.
type RoomPatch struct {
	HostID            *string
	Mode              *domain.Mode
	Tier              *domain.Tier
	Status            *domain.Status
	CurrentTurnID     *string
	ActiveChallengeID *string
	TurnOrder         *[]string
	EndedAt           *time.Time
}

// CreateRoom stores r under a new id. Codes are unique regardless of case.
func (s *Store) CreateRoom(r domain.Room) (domain.Room, error) {
	code := domain.NormalizeCode(r.Code)
	if code == "" {
		return domain.Room{}, errors.New("room code is required")
	}

	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	if _, exists := s.roomsByCode[code]; exists {
		return domain.Room{}, ErrConflict
	}

	now := s.now()
	r = r.Clone()
	r.ID = newID()
	r.Code = code
	if r.Status == "" {
		r.Status = domain.StatusPending
	}
	r.CreatedAt = now
	r.UpdatedAt = now

	s.rooms[r.ID] = r
	s.roomsByCode[code] = r.ID

	return r.Clone(), nil
}

func (s *Store) GetRoom(id string) (domain.Room, error) {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) RoomByCode(code string) (domain.Room, error) {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	id, ok := s.roomsByCode[domain.NormalizeCode(code)]
	if !ok {
		return domain.Room{}, ErrNotFound
	}
	return s.rooms[id].Clone(), nil
}

// ListRooms returns every room, oldest first.
func (s *Store) ListRooms() []domain.Room {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	out := make([]domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) UpdateRoom(id string, p RoomPatch) (domain.Room, error) {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, ErrNotFound
	}
	if p.Status != nil && *p.Status != r.Status && !r.Status.CanTransition(*p.Status) {
		return domain.Room{}, ErrInvalidTransition
	}

	if p.HostID != nil {
		r.HostID = *p.HostID
	}
	if p.Mode != nil {
		r.Mode = *p.Mode
	}
	if p.Tier != nil {
		r.Tier = *p.Tier
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.CurrentTurnID != nil {
		r.CurrentTurnID = *p.CurrentTurnID
	}
	if p.ActiveChallengeID != nil {
		r.ActiveChallengeID = *p.ActiveChallengeID
	}
	if p.TurnOrder != nil {
		r.TurnOrder = append([]string(nil), (*p.TurnOrder)...)
	}
	if p.EndedAt != nil {
		t := *p.EndedAt
		r.EndedAt = &t
	}
	r.UpdatedAt = s.now()

	s.rooms[id] = r
	return r.Clone(), nil
}

// TouchRoom bumps the room's activity timestamp.
func (s *Store) TouchRoom(id string) error {
	_, err := s.UpdateRoom(id, RoomPatch{})
	return err
}

func (s *Store) DeleteRoom(id string) error {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.rooms, id)
	delete(s.roomsByCode, r.Code)
	return nil
}

// PurgeRoom removes a room together with its participants and challenges.
func (s *Store) PurgeRoom(id string) error {
	if err := s.DeleteRoom(id); err != nil {
		return err
	}

	s.participantsMu.Lock()
	for pid, p := range s.participants {
		if p.RoomID == id {
			delete(s.participants, pid)
		}
	}
	s.participantsMu.Unlock()

	s.challengesMu.Lock()
	for cid, c := range s.challenges {
		if c.RoomID == id {
			delete(s.challenges, cid)
		}
	}
	s.challengesMu.Unlock()

	return nil
}

type ParticipantPatch struct {
	Name      *string
	Score     *int
	IsHost    *bool
	Connected *bool
}

func (s *Store) CreateParticipant(p domain.Participant) (domain.Participant, error) {
	if p.RoomID == "" {
		return domain.Participant{}, errors.New("participant room is required")
	}

	s.participantsMu.Lock()
	defer s.participantsMu.Unlock()

	p.ID = newID()
	p.JoinedAt = s.now()
	p.Seq = s.seq.Add(1)

	s.participants[p.ID] = p
	return p, nil
}

func (s *Store) GetParticipant(id string) (domain.Participant, error) {
	s.participantsMu.RLock()
	defer s.participantsMu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, ErrNotFound
	}
	return p, nil
}

// ParticipantsByRoom returns the room's participants in join order.
func (s *Store) ParticipantsByRoom(roomID string) []domain.Participant {
	s.participantsMu.RLock()
	defer s.participantsMu.RUnlock()

	out := make([]domain.Participant, 0)
	for _, p := range s.participants {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].JoinedBefore(out[j])
	})
	return out
}

func (s *Store) UpdateParticipant(id string, patch ParticipantPatch) (domain.Participant, error) {
	s.participantsMu.Lock()
	defer s.participantsMu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, ErrNotFound
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Score != nil {
		p.Score = *patch.Score
	}
	if patch.IsHost != nil {
		p.IsHost = *patch.IsHost
	}
	if patch.Connected != nil {
		p.Connected = *patch.Connected
	}

	s.participants[id] = p
	return p, nil
}

func (s *Store) DeleteParticipant(id string) error {
	s.participantsMu.Lock()
	defer s.participantsMu.Unlock()

	if _, ok := s.participants[id]; !ok {
		return ErrNotFound
	}
	delete(s.participants, id)
	return nil
}

type ChallengePatch struct {
	Status     *domain.ChallengeStatus
	ResolvedAt *time.Time
}

func (s *Store) CreateChallenge(c domain.Challenge) (domain.Challenge, error) {
	if c.RoomID == "" {
		return domain.Challenge{}, errors.New("challenge room is required")
	}

	s.challengesMu.Lock()
	defer s.challengesMu.Unlock()

	c = c.Clone()
	c.ID = newID()
	c.CreatedAt = s.now()
	if c.Status == "" {
		c.Status = domain.ChallengePending
	}

	s.challenges[c.ID] = c
	return c.Clone(), nil
}

func (s *Store) GetChallenge(id string) (domain.Challenge, error) {
	s.challengesMu.RLock()
	defer s.challengesMu.RUnlock()

	c, ok := s.challenges[id]
	if !ok {
		return domain.Challenge{}, ErrNotFound
	}
	return c.Clone(), nil
}

// ChallengesByRoom returns the room's challenges, oldest first.
func (s *Store) ChallengesByRoom(roomID string) []domain.Challenge {
	s.challengesMu.RLock()
	defer s.challengesMu.RUnlock()

	out := make([]domain.Challenge, 0)
	for _, c := range s.challenges {
		if c.RoomID == roomID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) UpdateChallenge(id string, patch ChallengePatch) (domain.Challenge, error) {
	s.challengesMu.Lock()
	defer s.challengesMu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return domain.Challenge{}, ErrNotFound
	}

	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.ResolvedAt != nil {
		t := *patch.ResolvedAt
		c.ResolvedAt = &t
	}

	s.challenges[id] = c
	return c.Clone(), nil
}

func (s *Store) DeleteChallenge(id string) error {
	s.challengesMu.Lock()
	defer s.challengesMu.Unlock()

	if _, ok := s.challenges[id]; !ok {
		return ErrNotFound
	}
	delete(s.challenges, id)
	return nil
}

type AccountPatch struct {
	Username *string
}

// CreateAccount stores a new account. Usernames are unique regardless of case.
func (s *Store) CreateAccount(username string) (domain.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Account{}, errors.New("username is required")
	}

	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	key := strings.ToLower(username)
	if _, exists := s.accountsByLower[key]; exists {
		return domain.Account{}, ErrConflict
	}

	a := domain.Account{
		ID:        newID(),
		Username:  username,
		CreatedAt: s.now(),
	}
	s.accounts[a.ID] = a
	s.accountsByLower[key] = a.ID

	return a, nil
}

func (s *Store) GetAccount(id string) (domain.Account, error) {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return a, nil
}

func (s *Store) AccountByUsername(username string) (domain.Account, error) {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()

	id, ok := s.accountsByLower[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) UpdateAccount(id string, patch AccountPatch) (domain.Account, error) {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, ErrNotFound
	}

	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if name == "" {
			return domain.Account{}, errors.New("username is required")
		}
		key := strings.ToLower(name)
		if owner, exists := s.accountsByLower[key]; exists && owner != id {
			return domain.Account{}, ErrConflict
		}
		delete(s.accountsByLower, strings.ToLower(a.Username))
		a.Username = name
		s.accountsByLower[key] = id
	}

	s.accounts[id] = a
	return a, nil
}

func (s *Store) DeleteAccount(id string) error {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.accountsByLower, strings.ToLower(a.Username))
	return nil
}

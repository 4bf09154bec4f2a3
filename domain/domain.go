/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package domain holds the records shared by the repository, the session
// coordinator and the realtime gateway.
package domain

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindTruth Kind = "truth"
	KindDare  Kind = "dare"
)

// Kinds lists every challenge kind.
var Kinds = []Kind{KindTruth, KindDare}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindTruth, KindDare:
		return k, nil
	}
	return "", fmt.Errorf("unknown challenge kind %q", s)
}

// Mode is the relationship context that shapes the tone of a challenge.
type Mode string

const (
	ModeFriends Mode = "friends"
	ModeCrush   Mode = "crush"
	ModeSpouse  Mode = "spouse"
)

var Modes = []Mode{ModeFriends, ModeCrush, ModeSpouse}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeFriends, ModeCrush, ModeSpouse:
		return m, nil
	}
	return "", fmt.Errorf("unknown relationship mode %q", s)
}

// Tier is the intensity level. Tiers are ordered from mildest to boldest.
type Tier string

const (
	TierEasy    Tier = "easy"
	TierMedium  Tier = "medium"
	TierExtreme Tier = "extreme"
)

var Tiers = []Tier{TierEasy, TierMedium, TierExtreme}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TierEasy, TierMedium, TierExtreme:
		return t, nil
	}
	return "", fmt.Errorf("unknown intensity tier %q", s)
}

// Status is the lifecycle of a room.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusEnded:
		return 2
	}
	return -1
}

// CanTransition reports whether a room may move from s to next.
// Rooms only ever move forward.
func (s Status) CanTransition(next Status) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to > from
}

type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeSkipped   ChallengeStatus = "skipped"
	// ChallengeDiscarded marks a challenge whose turn moved on before it was
	// resolved. It scores nothing.
	ChallengeDiscarded ChallengeStatus = "discarded"
)

type Provenance string

const (
	ProvenanceGenerated Provenance = "generated"
	ProvenanceFallback  Provenance = "fallback"
)

// NormalizeCode returns the canonical form of a room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Room struct {
	ID                string     `json:"id"`
	Code              string     `json:"roomCode"`
	HostID            string     `json:"hostId"`
	HostElect         string     `json:"hostElect,omitempty"`
	Mode              Mode       `json:"mode"`
	Tier              Tier       `json:"tier"`
	Status            Status     `json:"status"`
	CurrentTurnID     string     `json:"currentTurnParticipantId,omitempty"`
	ActiveChallengeID string     `json:"activeChallengeId,omitempty"`
	TurnOrder         []string   `json:"turnOrder,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
}

// Clone returns a deep copy of r.
func (r Room) Clone() Room {
	if r.TurnOrder != nil {
		r.TurnOrder = append([]string(nil), r.TurnOrder...)
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		r.EndedAt = &t
	}
	return r
}

type Participant struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	IsHost    bool      `json:"isHost"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joinedAt"`
	Seq       uint64    `json:"-"`
}

// JoinedBefore orders participants by join time, breaking ties by the
// repository's join sequence.
func (p Participant) JoinedBefore(o Participant) bool {
	if !p.JoinedAt.Equal(o.JoinedAt) {
		return p.JoinedAt.Before(o.JoinedAt)
	}
	return p.Seq < o.Seq
}

type Challenge struct {
	ID            string          `json:"id"`
	RoomID        string          `json:"roomId"`
	ParticipantID string          `json:"participantId"`
	Kind          Kind            `json:"kind"`
	Mode          Mode            `json:"mode"`
	Tier          Tier            `json:"tier"`
	Text          string          `json:"text"`
	Provenance    Provenance      `json:"provenance"`
	Status        ChallengeStatus `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	ResolvedAt    *time.Time      `json:"resolvedAt,omitempty"`
}

func (c Challenge) Clone() Challenge {
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}

type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

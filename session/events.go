/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"errors"

	"github.com/Seednode/truthordare/domain"
)

// Outbound event names.
const (
	EventParticipantJoined  = "participant-joined"
	EventParticipantLeft    = "participant-left"
	EventParticipantUpdated = "participant-updated"
	EventPresenceChanged    = "presence-changed"
	EventGameStarted        = "game-started"
	EventTurnChanged        = "turn-changed"
	EventScoreChanged       = "score-changed"
	EventChallengeCreated   = "challenge-created"
	EventChallengeResolved  = "challenge-resolved"
	EventRoomState          = "room-state"
	EventRoomUpdated        = "room-updated"
	EventRoomEnded          = "room-ended"
	EventError              = "error"
)

// Event is one outbound message. Each carries its name in a "type" field.
type Event interface {
	EventName() string
}

// Broadcaster delivers events to every connection subscribed to a room.
// Publish is called while the room is serialised and must not block or
// call back into the Coordinator.
type Broadcaster interface {
	Publish(roomID string, ev Event)
}

// Subscriber is a connection asking to follow a room. Subscribe receives the
// room snapshot first; every event published for the room afterwards follows
// it in order.
type Subscriber interface {
	Subscribe(roomID, participantID string, snapshot RoomState)
}

type ParticipantJoined struct {
	Type         string               `json:"type"`
	Participant  domain.Participant   `json:"participant"`
	Room         domain.Room          `json:"room"`
	Participants []domain.Participant `json:"participants"`
}

func (e ParticipantJoined) EventName() string { return e.Type }

type ParticipantLeft struct {
	Type          string               `json:"type"`
	ParticipantID string               `json:"participantId"`
	Participants  []domain.Participant `json:"participants"`
}

func (e ParticipantLeft) EventName() string { return e.Type }

type ParticipantUpdated struct {
	Type         string               `json:"type"`
	Participant  domain.Participant   `json:"participant"`
	Participants []domain.Participant `json:"participants"`
}

func (e ParticipantUpdated) EventName() string { return e.Type }

type PresenceChanged struct {
	Type          string               `json:"type"`
	ParticipantID string               `json:"participantId"`
	Connected     bool                 `json:"connected"`
	Participants  []domain.Participant `json:"participants"`
}

func (e PresenceChanged) EventName() string { return e.Type }

type GameStarted struct {
	Type                     string               `json:"type"`
	Room                     domain.Room          `json:"room"`
	Participants             []domain.Participant `json:"participants"`
	CurrentTurnParticipantID string               `json:"currentTurnParticipantId"`
}

func (e GameStarted) EventName() string { return e.Type }

type TurnChanged struct {
	Type                     string               `json:"type"`
	Room                     domain.Room          `json:"room"`
	Participants             []domain.Participant `json:"participants"`
	CurrentTurnParticipantID string               `json:"currentTurnParticipantId"`
	PreviousParticipantID    string               `json:"previousParticipantId"`
}

func (e TurnChanged) EventName() string { return e.Type }

type ScoreChanged struct {
	Type          string               `json:"type"`
	ParticipantID string               `json:"participantId"`
	NewScore      int                  `json:"newScore"`
	Delta         int                  `json:"delta"`
	Participants  []domain.Participant `json:"participants"`
}

func (e ScoreChanged) EventName() string { return e.Type }

type ChallengeCreated struct {
	Type          string            `json:"type"`
	Challenge     domain.Challenge  `json:"challenge"`
	ParticipantID string            `json:"participantId"`
	Provenance    domain.Provenance `json:"provenance"`
}

func (e ChallengeCreated) EventName() string { return e.Type }

type ChallengeResolved struct {
	Type          string `json:"type"`
	ChallengeID   string `json:"challengeId"`
	ParticipantID string `json:"participantId"`
	Completed     bool   `json:"completed"`
}

func (e ChallengeResolved) EventName() string { return e.Type }

// RoomState is the full snapshot handed to a connection before it starts
// receiving incremental events.
type RoomState struct {
	Type         string               `json:"type"`
	Room         domain.Room          `json:"room"`
	Participants []domain.Participant `json:"participants"`
	Challenge    *domain.Challenge    `json:"challenge,omitempty"`
}

func (e RoomState) EventName() string { return e.Type }

type RoomUpdated struct {
	Type string      `json:"type"`
	Room domain.Room `json:"room"`
}

func (e RoomUpdated) EventName() string { return e.Type }

type RoomEnded struct {
	Type string      `json:"type"`
	Room domain.Room `json:"room"`
}

func (e RoomEnded) EventName() string { return e.Type }

// ErrorEvent is sent only to the connection whose intent was rejected.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e ErrorEvent) EventName() string { return e.Type }

// NewErrorEvent converts err into the client-facing error payload. Errors
// that are not rejections are reported without their internal detail.
func NewErrorEvent(err error) ErrorEvent {
	var e *Error
	if errors.As(err, &e) {
		return ErrorEvent{Type: EventError, Code: e.Code, Message: e.Message}
	}
	return ErrorEvent{Type: EventError, Code: CodeInternal, Message: "something went wrong, please try again"}
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"errors"
	"net/http"
)

// Code is a stable, machine-readable rejection reason sent to clients.
type Code string

const (
	CodeCodeCollision           Code = "code-collision"
	CodeRoomNotFound            Code = "room-not-found"
	CodeRoomEnded               Code = "room-ended"
	CodeNotHost                 Code = "not-host"
	CodeInsufficientPlayers     Code = "insufficient-players"
	CodeAlreadyStarted          Code = "already-started"
	CodeNotActive               Code = "not-active"
	CodeNotYourTurn             Code = "not-your-turn"
	CodeChallengeAlreadyPending Code = "challenge-already-pending"
	CodeNoActiveChallenge       Code = "no-active-challenge"
	CodeParticipantNotFound     Code = "participant-not-found"
	CodeInvalidRequest          Code = "invalid-request"
	CodeInternal                Code = "internal"
)

// HTTPStatus maps a code onto the query surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeRoomNotFound, CodeParticipantNotFound:
		return http.StatusNotFound
	case CodeNotHost:
		return http.StatusForbidden
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeRoomEnded:
		return http.StatusGone
	case CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusConflict
}

// Error is a rejected intent. It never reflects a partial mutation.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons.
var (
	ErrCodeCollision           = newError(CodeCodeCollision, "room code already in use")
	ErrRoomNotFound            = newError(CodeRoomNotFound, "room not found")
	ErrRoomEnded               = newError(CodeRoomEnded, "room has ended")
	ErrNotHost                 = newError(CodeNotHost, "only the host can start the game")
	ErrInsufficientPlayers     = newError(CodeInsufficientPlayers, "need at least 2 players to start")
	ErrAlreadyStarted          = newError(CodeAlreadyStarted, "game has already started")
	ErrNotActive               = newError(CodeNotActive, "game is not in progress")
	ErrNotYourTurn             = newError(CodeNotYourTurn, "it is not your turn")
	ErrChallengeAlreadyPending = newError(CodeChallengeAlreadyPending, "a challenge is already pending")
	ErrNoActiveChallenge       = newError(CodeNoActiveChallenge, "no active challenge to resolve")
	ErrParticipantNotFound     = newError(CodeParticipantNotFound, "participant not found")

	// ErrClosed is returned once the coordinator has shut down.
	ErrClosed = errors.New("coordinator closed")
)

// CodeOf extracts the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/truthordare/domain"
	"github.com/Seednode/truthordare/repository"
	"github.com/Seednode/truthordare/session"
	"github.com/julienschmidt/httprouter"
)

const maxBodySize = 64 << 10

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err with the status its code maps to. Anything that is
// not a rejection is reported as an internal error without detail.
func writeError(w http.ResponseWriter, err error) {
	var rejected *session.Error

	switch {
	case errors.As(err, &rejected):
		writeJSON(w, rejected.Code.HTTPStatus(), apiError{Code: string(rejected.Code), Message: rejected.Message})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Code: "not-found", Message: "no such record"})
	case errors.Is(err, repository.ErrConflict):
		writeJSON(w, http.StatusConflict, apiError{Code: "conflict", Message: "already in use"})
	default:
		writeJSON(w, http.StatusInternalServerError, apiError{Code: string(session.CodeInternal), Message: "something went wrong, please try again"})
	}
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, apiError{Code: string(session.CodeInvalidRequest), Message: message})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	// An empty body leaves every field at its zero value.
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "request body must be a JSON object")
		return false
	}
	return true
}

// api serves the request/response surface. Every mutation of room state
// goes through the coordinator so websocket followers observe it.
type api struct {
	*app
}

func registerAPI(a *app, mux *httprouter.Router, errs chan<- error) {
	h := api{a}
	base := a.cfg.prefix + "/api"

	mux.POST(base+"/rooms", h.logged("create room", h.createRoom))
	mux.GET(base+"/rooms/:room", h.logged("get room", h.getRoom))
	mux.PATCH(base+"/rooms/:room", h.logged("configure room", h.configureRoom))
	mux.POST(base+"/rooms/:room/start", h.logged("start room", h.startRoom))
	mux.POST(base+"/rooms/:room/turn", h.logged("advance turn", h.advanceTurn))

	mux.GET(base+"/rooms/:room/participants", h.logged("list participants", h.listParticipants))
	mux.POST(base+"/rooms/:room/participants", h.logged("join room", h.joinRoom))
	mux.PATCH(base+"/participants/:id", h.logged("rename participant", h.renameParticipant))
	mux.DELETE(base+"/participants/:id", h.logged("leave room", h.leaveRoom))

	mux.GET(base+"/rooms/:room/challenges", h.logged("list challenges", h.listChallenges))
	mux.POST(base+"/rooms/:room/challenges", h.logged("request challenge", h.requestChallenge))
	mux.PATCH(base+"/challenges/:id", h.logged("resolve challenge", h.resolveChallenge))

	mux.POST(base+"/accounts", h.logged("create account", h.createAccount))
	mux.GET(base+"/accounts", h.logged("find account", h.findAccount))
	mux.GET(base+"/accounts/:id", h.logged("get account", h.getAccount))
	mux.PATCH(base+"/accounts/:id", h.logged("rename account", h.renameAccount))
	mux.DELETE(base+"/accounts/:id", h.logged("delete account", h.deleteAccount))

	mux.GET(base+"/rooms/:room/qr", serveRoomQR(a, errs))
}

func (h api) logged(what string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		securityHeaders(h.cfg, w)
		next(w, r, ps)

		h.log.Debug().
			Str("component", "api").
			Str("remote", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg(what)
	}
}

func (h api) room(w http.ResponseWriter, ps httprouter.Params) (domain.Room, bool) {
	room, err := h.coord.Lookup(ps.ByName("room"))
	if err != nil {
		writeError(w, err)
		return domain.Room{}, false
	}
	return room, true
}

type createRoomRequest struct {
	RoomCode string      `json:"roomCode"`
	Mode     domain.Mode `json:"mode"`
	Tier     domain.Tier `json:"tier"`
	HostName string      `json:"hostName"`
}

func (h api) createRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRoomRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Mode == "" {
		req.Mode = domain.ModeFriends
	}
	if req.Tier == "" {
		req.Tier = domain.TierEasy
	}

	room, err := h.coord.CreateRoom(r.Context(), session.CreateRoomRequest{
		Code:      req.RoomCode,
		Mode:      req.Mode,
		Tier:      req.Tier,
		HostElect: req.HostName,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

func (h api) getRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	state, err := h.coord.Snapshot(ps.ByName("room"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

type configureRoomRequest struct {
	Mode *domain.Mode `json:"mode"`
	Tier *domain.Tier `json:"tier"`
}

func (h api) configureRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, ok := h.room(w, ps)
	if !ok {
		return
	}

	var req configureRoomRequest
	if !decode(w, r, &req) {
		return
	}

	room, err := h.coord.Configure(r.Context(), room.ID, req.Mode, req.Tier)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

type participantRequest struct {
	ParticipantID string `json:"participantId"`
	HostID        string `json:"hostId"`
}

func (h api) startRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, ok := h.room(w, ps)
	if !ok {
		return
	}

	var req participantRequest
	if !decode(w, r, &req) {
		return
	}

	room, err := h.coord.Start(r.Context(), room.ID, req.HostID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h api) advanceTurn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, ok := h.room(w, ps)
	if !ok {
		return
	}

	var req participantRequest
	if !decode(w, r, &req) {
		return
	}

	room, err := h.coord.AdvanceTurn(r.Context(), room.ID, req.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h api) listParticipants(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, ok := h.room(w, ps)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.store.ParticipantsByRoom(room.ID))
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h api) joinRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, ok := h.room(w, ps)
	if !ok {
		return
	}

	var req nameRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.coord.Join(r.Context(), room.Code, req.Name, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h api) renameParticipant(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.coord.Rename(r.Context(), ps.ByName("id"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h api) leaveRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.store.GetParticipant(ps.ByName("id"))
	if err != nil {
		writeError(w, session.ErrParticipantNotFound)
		return
	}

	if err := h.coord.Leave(r.Context(), p.RoomID, p.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h api) listChallenges(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, ok := h.room(w, ps)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.store.ChallengesByRoom(room.ID))
}

type challengeRequest struct {
	ParticipantID string      `json:"participantId"`
	Kind          domain.Kind `json:"kind"`
}

func (h api) requestChallenge(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, ok := h.room(w, ps)
	if !ok {
		return
	}

	var req challengeRequest
	if !decode(w, r, &req) {
		return
	}

	ch, err := h.coord.RequestChallenge(r.Context(), room.ID, req.ParticipantID, req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ch)
}

type resolveRequest struct {
	ParticipantID string `json:"participantId"`
	Completed     *bool  `json:"completed"`
}

func (h api) resolveChallenge(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req resolveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Completed == nil {
		badRequest(w, "completed is required")
		return
	}

	ch, err := h.store.GetChallenge(ps.ByName("id"))
	if err != nil {
		writeError(w, session.ErrNoActiveChallenge)
		return
	}

	ch, err = h.coord.ResolveChallenge(r.Context(), ch.RoomID, ch.ID, req.ParticipantID, *req.Completed)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ch)
}

type accountRequest struct {
	Username string `json:"username"`
}

func (h api) createAccount(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		badRequest(w, "a username is required")
		return
	}

	acct, err := h.store.CreateAccount(req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, acct)
}

func (h api) findAccount(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	username := r.URL.Query().Get("username")
	if username == "" {
		badRequest(w, "a username query parameter is required")
		return
	}

	acct, err := h.store.AccountByUsername(username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acct)
}

func (h api) getAccount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	acct, err := h.store.GetAccount(ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acct)
}

func (h api) renameAccount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		badRequest(w, "a username is required")
		return
	}

	acct, err := h.store.UpdateAccount(ps.ByName("id"), repository.AccountPatch{Username: &req.Username})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acct)
}

func (h api) deleteAccount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.store.DeleteAccount(ps.ByName("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

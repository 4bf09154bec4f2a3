package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		bind:             "127.0.0.1",
		port:             8080,
		generatorTimeout: time.Second,
		rateLimit:        5,
		rateBurst:        10,
		sessionTimeout:   time.Hour,
	}
}

func newTestServer(t *testing.T) (*app, *httptest.Server) {
	t.Helper()

	a := newApp(testConfig(), zerolog.Nop())
	srv := httptest.NewServer(newRouter(a, make(chan error, 64)))

	t.Cleanup(func() {
		srv.Close()
		a.close()
	})
	return a, srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	status, raw := callRaw(t, srv, method, path, body)

	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func callRaw(t *testing.T, srv *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestAPIGameFlow(t *testing.T) {
	a, srv := newTestServer(t)

	status, room := call(t, srv, http.MethodPost, "/api/rooms", map[string]any{"mode": "crush", "tier": "medium", "hostName": "Ana"})
	require.Equal(t, http.StatusCreated, status)
	code := room["roomCode"].(string)
	assert.Len(t, code, 6)
	assert.Equal(t, "pending", room["status"])
	assert.Equal(t, "Ana", room["hostElect"])

	status, ana := call(t, srv, http.MethodPost, "/api/rooms/"+strings.ToLower(code)+"/participants", map[string]any{"name": "Ana"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, ana["isHost"])

	status, bo := call(t, srv, http.MethodPost, "/api/rooms/"+code+"/participants", map[string]any{"name": "Bo"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, false, bo["isHost"])

	anaID := ana["id"].(string)
	boID := bo["id"].(string)

	status, started := call(t, srv, http.MethodPost, "/api/rooms/"+code+"/start", map[string]any{"hostId": anaID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", started["status"])
	assert.Equal(t, anaID, started["currentTurnParticipantId"])

	status, ch := call(t, srv, http.MethodPost, "/api/rooms/"+code+"/challenges", map[string]any{"participantId": anaID, "kind": "dare"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "dare", ch["kind"])
	assert.Equal(t, "crush", ch["mode"])
	assert.Equal(t, "medium", ch["tier"])
	assert.Equal(t, "fallback", ch["provenance"])

	status, snap := call(t, srv, http.MethodGet, "/api/rooms/"+code, nil)
	require.Equal(t, http.StatusOK, status)
	pending, ok := snap["challenge"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ch["id"], pending["id"])

	status, resolved := call(t, srv, http.MethodPatch, "/api/challenges/"+ch["id"].(string), map[string]any{"participantId": anaID, "completed": false})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "skipped", resolved["status"])

	p, err := a.store.GetParticipant(anaID)
	require.NoError(t, err)
	assert.Equal(t, -1, p.Score)

	status, turned := call(t, srv, http.MethodPost, "/api/rooms/"+code+"/turn", map[string]any{"participantId": anaID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, boID, turned["currentTurnParticipantId"])

	status, raw := callRaw(t, srv, http.MethodGet, "/api/rooms/"+code+"/challenges", nil)
	require.Equal(t, http.StatusOK, status)
	var challenges []map[string]any
	require.NoError(t, json.Unmarshal(raw, &challenges))
	assert.Len(t, challenges, 1)

	status, raw = callRaw(t, srv, http.MethodGet, "/api/rooms/"+code+"/participants", nil)
	require.Equal(t, http.StatusOK, status)
	var participants []map[string]any
	require.NoError(t, json.Unmarshal(raw, &participants))
	require.Len(t, participants, 2)
	assert.Equal(t, anaID, participants[0]["id"])

	status, renamed := call(t, srv, http.MethodPatch, "/api/participants/"+boID, map[string]any{"name": "Bobby"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bobby", renamed["name"])

	status, _ = callRaw(t, srv, http.MethodDelete, "/api/participants/"+boID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	stored, err := a.store.GetRoom(room["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, anaID, stored.CurrentTurnID)
}

func TestAPIRejections(t *testing.T) {
	_, srv := newTestServer(t)

	status, body := call(t, srv, http.MethodGet, "/api/rooms/NOPE42", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "room-not-found", body["code"])

	status, body = call(t, srv, http.MethodPost, "/api/rooms", map[string]any{"mode": "enemies"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid-request", body["code"])

	status, room := call(t, srv, http.MethodPost, "/api/rooms", map[string]any{"roomCode": "party"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "PARTY", room["roomCode"])

	status, body = call(t, srv, http.MethodPost, "/api/rooms", map[string]any{"roomCode": "PARTY"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "code-collision", body["code"])

	status, host := call(t, srv, http.MethodPost, "/api/rooms/PARTY/participants", map[string]any{"name": "Ana"})
	require.Equal(t, http.StatusCreated, status)

	status, body = call(t, srv, http.MethodPost, "/api/rooms/PARTY/start", map[string]any{"hostId": host["id"]})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "insufficient-players", body["code"])

	status, guest := call(t, srv, http.MethodPost, "/api/rooms/PARTY/participants", map[string]any{"name": "Bo"})
	require.Equal(t, http.StatusCreated, status)

	status, body = call(t, srv, http.MethodPost, "/api/rooms/PARTY/start", map[string]any{"hostId": guest["id"]})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not-host", body["code"])

	status, body = call(t, srv, http.MethodPost, "/api/rooms/PARTY/turn", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not-active", body["code"])

	status, body = call(t, srv, http.MethodPatch, "/api/challenges/missing", map[string]any{"participantId": "x", "completed": true})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "no-active-challenge", body["code"])

	status, body = call(t, srv, http.MethodPatch, "/api/challenges/missing", map[string]any{"participantId": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid-request", body["code"])

	status, body = call(t, srv, http.MethodDelete, "/api/participants/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "participant-not-found", body["code"])

	status, raw := callRaw(t, srv, http.MethodPost, "/api/rooms", nil)
	assert.Equal(t, http.StatusCreated, status, string(raw))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/rooms", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIConfigureRoom(t *testing.T) {
	_, srv := newTestServer(t)

	status, room := call(t, srv, http.MethodPost, "/api/rooms", map[string]any{})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "friends", room["mode"])
	assert.Equal(t, "easy", room["tier"])

	code := room["roomCode"].(string)

	status, updated := call(t, srv, http.MethodPatch, "/api/rooms/"+code, map[string]any{"tier": "extreme"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "friends", updated["mode"])
	assert.Equal(t, "extreme", updated["tier"])

	status, body := call(t, srv, http.MethodPatch, "/api/rooms/"+code, map[string]any{"mode": "rivals"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid-request", body["code"])
}

func TestAPIAccounts(t *testing.T) {
	_, srv := newTestServer(t)

	status, acct := call(t, srv, http.MethodPost, "/api/accounts", map[string]any{"username": "Ana"})
	require.Equal(t, http.StatusCreated, status)
	id := acct["id"].(string)

	status, body := call(t, srv, http.MethodPost, "/api/accounts", map[string]any{"username": "ana"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", body["code"])

	status, body = call(t, srv, http.MethodPost, "/api/accounts", map[string]any{"username": "  "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, found := call(t, srv, http.MethodGet, "/api/accounts?username=ANA", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, found["id"])

	status, renamed := call(t, srv, http.MethodPatch, "/api/accounts/"+id, map[string]any{"username": "Anabel"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Anabel", renamed["username"])

	status, got := call(t, srv, http.MethodGet, "/api/accounts/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Anabel", got["username"])

	status, _ = callRaw(t, srv, http.MethodDelete, "/api/accounts/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = call(t, srv, http.MethodGet, "/api/accounts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not-found", body["code"])
}

func TestRoomQR(t *testing.T) {
	_, srv := newTestServer(t)

	status, room := call(t, srv, http.MethodPost, "/api/rooms", map[string]any{"roomCode": "QRTEST"})
	require.Equal(t, http.StatusCreated, status)

	resp, err := srv.Client().Get(srv.URL + "/api/rooms/" + room["id"].(string) + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	resp, err = srv.Client().Get(srv.URL + "/api/rooms/NOPE42/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinURL(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/games"

	r := httptest.NewRequest(http.MethodGet, "http://party.example/games/api/rooms/ABC123/qr", nil)
	assert.Equal(t, "http://party.example/games/?room=ABC123", joinURL(cfg, r, "ABC123"))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://party.example/games/?room=ABC123", joinURL(cfg, r, "ABC123"))
}

func TestPages(t *testing.T) {
	_, srv := newTestServer(t)

	status, raw := callRaw(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ok\n", string(raw))

	status, raw = callRaw(t, srv, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "truthordare v"+releaseVersion+"\n", string(raw))

	status, raw = callRaw(t, srv, http.MethodGet, "/robots.txt", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "Disallow: /api/")

	status, raw = callRaw(t, srv, http.MethodGet, "/?room=abc123", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "ABC123")

	status, raw = callRaw(t, srv, http.MethodGet, "/?room=%3Cscript%3E", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(raw), "<SCRIPT>")
}

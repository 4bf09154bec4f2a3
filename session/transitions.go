/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"fmt"

	"github.com/Seednode/truthordare/domain"
	"github.com/Seednode/truthordare/repository"
)

type joinIntent struct {
	name string
	sub  Subscriber
}

type attachIntent struct {
	participantID string
	sub           Subscriber
}

type disconnectIntent struct {
	participantID string
	sub           Subscriber
}

type startIntent struct {
	hostID string
}

type reserveIntent struct {
	participantID string
}

type reserveGrant struct {
	token uint64
	mode  domain.Mode
	tier  domain.Tier
}

type commitIntent struct {
	token         uint64
	participantID string
	kind          domain.Kind
	mode          domain.Mode
	tier          domain.Tier
	text          string
	provenance    domain.Provenance
}

type resolveIntent struct {
	challengeID   string
	participantID string
	completed     bool
}

type advanceIntent struct {
	participantID string
}

type leaveIntent struct {
	participantID string
}

type configureIntent struct {
	mode *domain.Mode
	tier *domain.Tier
}

type renameIntent struct {
	participantID string
	name          string
}

type endIntent struct{}

// apply runs one intent against the room. It is only ever called from the
// room's actor goroutine.
func (c *Coordinator) apply(a *roomActor, intent any) (any, error) {
	room, err := c.store.GetRoom(a.roomID)
	if err != nil {
		a.ended = true
		return nil, ErrRoomNotFound
	}
	if room.Status == domain.StatusEnded {
		a.ended = true
		return nil, ErrRoomEnded
	}

	switch in := intent.(type) {
	case joinIntent:
		return c.join(a, room, in)
	case attachIntent:
		return c.attach(a, room, in)
	case disconnectIntent:
		return nil, c.disconnect(a, room, in)
	case startIntent:
		return c.start(room, in)
	case reserveIntent:
		return c.reserve(a, room, in)
	case commitIntent:
		return c.commit(a, room, in)
	case resolveIntent:
		return c.resolve(room, in)
	case advanceIntent:
		return c.advanceIntent(a, room, in)
	case leaveIntent:
		return nil, c.leave(a, room, in)
	case configureIntent:
		return c.configure(room, in)
	case renameIntent:
		return c.rename(room, in)
	case endIntent:
		return nil, c.end(a, room)
	}

	return nil, fmt.Errorf("unknown intent %T", intent)
}

func (c *Coordinator) member(room domain.Room, participantID string) (domain.Participant, bool) {
	if participantID == "" {
		return domain.Participant{}, false
	}
	p, err := c.store.GetParticipant(participantID)
	if err != nil || p.RoomID != room.ID {
		return domain.Participant{}, false
	}
	return p, true
}

func (c *Coordinator) join(a *roomActor, room domain.Room, in joinIntent) (domain.Participant, error) {
	existing := c.store.ParticipantsByRoom(room.ID)
	isHost := len(existing) == 0

	p, err := c.store.CreateParticipant(domain.Participant{
		RoomID:    room.ID,
		Name:      in.name,
		IsHost:    isHost,
		Connected: in.sub != nil,
	})
	if err != nil {
		return domain.Participant{}, fmt.Errorf("create participant: %w", err)
	}

	patch := repository.RoomPatch{}
	if isHost {
		patch.HostID = &p.ID
	}
	if room.Status == domain.StatusActive {
		order := append(append([]string(nil), room.TurnOrder...), p.ID)
		patch.TurnOrder = &order
	}

	room, err = c.store.UpdateRoom(room.ID, patch)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("update room: %w", err)
	}

	if in.sub != nil {
		a.conns[p.ID] = in.sub
		in.sub.Subscribe(room.ID, p.ID, c.snapshot(room))
	}

	c.publish(room.ID, ParticipantJoined{
		Type:         EventParticipantJoined,
		Participant:  p,
		Room:         room,
		Participants: c.store.ParticipantsByRoom(room.ID),
	})

	c.log.Info().
		Str("room", room.Code).
		Str("participant", p.ID).
		Str("name", p.Name).
		Bool("host", p.IsHost).
		Msg("participant joined")

	return p, nil
}

func (c *Coordinator) attach(a *roomActor, room domain.Room, in attachIntent) (domain.Participant, error) {
	p, ok := c.member(room, in.participantID)
	if !ok {
		return domain.Participant{}, ErrParticipantNotFound
	}

	connected := true
	p, err := c.store.UpdateParticipant(p.ID, repository.ParticipantPatch{Connected: &connected})
	if err != nil {
		return domain.Participant{}, ErrParticipantNotFound
	}

	_ = c.store.TouchRoom(room.ID)

	a.conns[p.ID] = in.sub
	in.sub.Subscribe(room.ID, p.ID, c.snapshot(room))

	c.publish(room.ID, ParticipantJoined{
		Type:         EventParticipantJoined,
		Participant:  p,
		Room:         room,
		Participants: c.store.ParticipantsByRoom(room.ID),
	})

	c.log.Debug().
		Str("room", room.Code).
		Str("participant", p.ID).
		Msg("participant attached")

	return p, nil
}

func (c *Coordinator) disconnect(a *roomActor, room domain.Room, in disconnectIntent) error {
	p, ok := c.member(room, in.participantID)
	if !ok {
		return nil
	}
	if in.sub != nil {
		// A newer connection took over this participant.
		if current, ok := a.conns[p.ID]; ok && current != in.sub {
			return nil
		}
	}
	delete(a.conns, p.ID)
	if !p.Connected {
		return nil
	}

	connected := false
	p, err := c.store.UpdateParticipant(p.ID, repository.ParticipantPatch{Connected: &connected})
	if err != nil {
		return nil
	}

	c.publish(room.ID, PresenceChanged{
		Type:          EventPresenceChanged,
		ParticipantID: p.ID,
		Connected:     false,
		Participants:  c.store.ParticipantsByRoom(room.ID),
	})

	return nil
}

func (c *Coordinator) start(room domain.Room, in startIntent) (domain.Room, error) {
	host, ok := c.member(room, in.hostID)
	if !ok || !host.IsHost {
		return domain.Room{}, ErrNotHost
	}
	if room.Status != domain.StatusPending {
		return domain.Room{}, ErrAlreadyStarted
	}

	participants := c.store.ParticipantsByRoom(room.ID)
	if len(participants) < 2 {
		return domain.Room{}, ErrInsufficientPlayers
	}

	// ParticipantsByRoom is already in join order; that order is frozen here.
	order := make([]string, 0, len(participants))
	for _, p := range participants {
		order = append(order, p.ID)
	}

	active := domain.StatusActive
	room, err := c.store.UpdateRoom(room.ID, repository.RoomPatch{
		Status:        &active,
		CurrentTurnID: &order[0],
		TurnOrder:     &order,
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("start room: %w", err)
	}

	c.publish(room.ID, GameStarted{
		Type:                     EventGameStarted,
		Room:                     room,
		Participants:             participants,
		CurrentTurnParticipantID: room.CurrentTurnID,
	})

	c.log.Info().
		Str("room", room.Code).
		Int("players", len(participants)).
		Msg("game started")

	return room, nil
}

// pendingChallenge returns the room's unresolved challenge, if any.
func (c *Coordinator) pendingChallenge(room domain.Room) (domain.Challenge, bool) {
	if room.ActiveChallengeID == "" {
		return domain.Challenge{}, false
	}
	ch, err := c.store.GetChallenge(room.ActiveChallengeID)
	if err != nil || ch.Status != domain.ChallengePending || ch.RoomID != room.ID {
		return domain.Challenge{}, false
	}
	return ch, true
}

func (c *Coordinator) checkTurn(room domain.Room, participantID string) error {
	if room.Status != domain.StatusActive {
		return newError(CodeNotYourTurn, "the game has not started")
	}
	if room.CurrentTurnID == "" || room.CurrentTurnID != participantID {
		return ErrNotYourTurn
	}
	if _, ok := c.member(room, participantID); !ok {
		return ErrNotYourTurn
	}
	if _, ok := c.pendingChallenge(room); ok {
		return ErrChallengeAlreadyPending
	}
	return nil
}

func (c *Coordinator) reserve(a *roomActor, room domain.Room, in reserveIntent) (reserveGrant, error) {
	if err := c.checkTurn(room, in.participantID); err != nil {
		return reserveGrant{}, err
	}

	now := c.now()
	if a.hold != nil && now.Before(a.hold.expires) {
		return reserveGrant{}, ErrChallengeAlreadyPending
	}

	a.nextToken++
	a.hold = &reservation{
		token:         a.nextToken,
		participantID: in.participantID,
		expires:       now.Add(c.reservationTTL),
	}

	return reserveGrant{token: a.nextToken, mode: room.Mode, tier: room.Tier}, nil
}

func (c *Coordinator) commit(a *roomActor, room domain.Room, in commitIntent) (domain.Challenge, error) {
	owned := a.hold != nil && a.hold.token == in.token
	if owned {
		a.hold = nil
	}

	if err := c.checkTurn(room, in.participantID); err != nil {
		return domain.Challenge{}, err
	}
	if !owned && a.hold != nil && c.now().Before(a.hold.expires) {
		return domain.Challenge{}, ErrChallengeAlreadyPending
	}

	ch, err := c.store.CreateChallenge(domain.Challenge{
		RoomID:        room.ID,
		ParticipantID: in.participantID,
		Kind:          in.kind,
		Mode:          in.mode,
		Tier:          in.tier,
		Text:          in.text,
		Provenance:    in.provenance,
		Status:        domain.ChallengePending,
	})
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("create challenge: %w", err)
	}

	if _, err := c.store.UpdateRoom(room.ID, repository.RoomPatch{ActiveChallengeID: &ch.ID}); err != nil {
		return domain.Challenge{}, fmt.Errorf("update room: %w", err)
	}

	c.publish(room.ID, ChallengeCreated{
		Type:          EventChallengeCreated,
		Challenge:     ch,
		ParticipantID: in.participantID,
		Provenance:    ch.Provenance,
	})

	c.log.Info().
		Str("room", room.Code).
		Str("participant", in.participantID).
		Str("kind", string(ch.Kind)).
		Str("provenance", string(ch.Provenance)).
		Msg("challenge created")

	return ch, nil
}

func (c *Coordinator) resolve(room domain.Room, in resolveIntent) (domain.Challenge, error) {
	ch, ok := c.pendingChallenge(room)
	if !ok || ch.ID != in.challengeID || ch.ParticipantID != in.participantID {
		return domain.Challenge{}, ErrNoActiveChallenge
	}

	p, ok := c.member(room, in.participantID)
	if !ok {
		return domain.Challenge{}, ErrParticipantNotFound
	}

	status, delta := domain.ChallengeSkipped, -1
	if in.completed {
		status, delta = domain.ChallengeCompleted, 1
	}

	now := c.now()
	ch, err := c.store.UpdateChallenge(ch.ID, repository.ChallengePatch{Status: &status, ResolvedAt: &now})
	if err != nil {
		return domain.Challenge{}, ErrNoActiveChallenge
	}

	score := p.Score + delta
	p, err = c.store.UpdateParticipant(p.ID, repository.ParticipantPatch{Score: &score})
	if err != nil {
		return domain.Challenge{}, ErrParticipantNotFound
	}

	none := ""
	if _, err := c.store.UpdateRoom(room.ID, repository.RoomPatch{ActiveChallengeID: &none}); err != nil {
		return domain.Challenge{}, fmt.Errorf("update room: %w", err)
	}

	c.publish(room.ID, ChallengeResolved{
		Type:          EventChallengeResolved,
		ChallengeID:   ch.ID,
		ParticipantID: p.ID,
		Completed:     in.completed,
	})
	c.publish(room.ID, ScoreChanged{
		Type:          EventScoreChanged,
		ParticipantID: p.ID,
		NewScore:      p.Score,
		Delta:         delta,
		Participants:  c.store.ParticipantsByRoom(room.ID),
	})

	c.log.Info().
		Str("room", room.Code).
		Str("participant", p.ID).
		Bool("completed", in.completed).
		Int("score", p.Score).
		Msg("challenge resolved")

	return ch, nil
}

func (c *Coordinator) advanceIntent(a *roomActor, room domain.Room, in advanceIntent) (domain.Room, error) {
	if room.Status != domain.StatusActive {
		return domain.Room{}, ErrNotActive
	}
	if in.participantID != "" {
		if _, ok := c.member(room, in.participantID); !ok {
			return domain.Room{}, ErrParticipantNotFound
		}
		if in.participantID == a.handedOff && in.participantID != room.CurrentTurnID {
			return room, nil
		}
	}

	previous := room.CurrentTurnID
	room, err := c.advance(a, room, previous)
	if err != nil {
		return domain.Room{}, err
	}
	a.handedOff = previous

	c.publishTurn(room, previous)
	return room, nil
}

// advance moves the turn to the next present participant after from in the
// frozen rotation, discarding any unresolved challenge.
func (c *Coordinator) advance(a *roomActor, room domain.Room, from string) (domain.Room, error) {
	c.discardPending(a, room)

	present := make(map[string]bool)
	for _, p := range c.store.ParticipantsByRoom(room.ID) {
		present[p.ID] = true
	}
	next := nextInRotation(room.TurnOrder, from, present)

	none := ""
	room, err := c.store.UpdateRoom(room.ID, repository.RoomPatch{
		CurrentTurnID:     &next,
		ActiveChallengeID: &none,
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("advance turn: %w", err)
	}
	return room, nil
}

func (c *Coordinator) publishTurn(room domain.Room, previous string) {
	c.publish(room.ID, TurnChanged{
		Type:                     EventTurnChanged,
		Room:                     room,
		Participants:             c.store.ParticipantsByRoom(room.ID),
		CurrentTurnParticipantID: room.CurrentTurnID,
		PreviousParticipantID:    previous,
	})

	c.log.Debug().
		Str("room", room.Code).
		Str("from", previous).
		Str("to", room.CurrentTurnID).
		Msg("turn changed")
}

func (c *Coordinator) discardPending(a *roomActor, room domain.Room) {
	a.hold = nil

	ch, ok := c.pendingChallenge(room)
	if !ok {
		return
	}
	discarded := domain.ChallengeDiscarded
	now := c.now()
	_, _ = c.store.UpdateChallenge(ch.ID, repository.ChallengePatch{Status: &discarded, ResolvedAt: &now})
}

// nextInRotation scans forward from from, wrapping, and returns the first
// id still present. Departed ids keep their slot and are skipped.
func nextInRotation(order []string, from string, present map[string]bool) string {
	n := len(order)
	if n == 0 {
		return ""
	}

	idx := -1
	for i, id := range order {
		if id == from {
			idx = i
			break
		}
	}

	for i := 1; i <= n; i++ {
		candidate := order[(idx+i)%n]
		if present[candidate] {
			return candidate
		}
	}
	return ""
}

func (c *Coordinator) leave(a *roomActor, room domain.Room, in leaveIntent) error {
	p, ok := c.member(room, in.participantID)
	if !ok {
		return ErrParticipantNotFound
	}

	if err := c.store.DeleteParticipant(p.ID); err != nil {
		return ErrParticipantNotFound
	}
	delete(a.conns, p.ID)

	remaining := c.store.ParticipantsByRoom(room.ID)

	c.publish(room.ID, ParticipantLeft{
		Type:          EventParticipantLeft,
		ParticipantID: p.ID,
		Participants:  remaining,
	})

	c.log.Info().
		Str("room", room.Code).
		Str("participant", p.ID).
		Int("remaining", len(remaining)).
		Msg("participant left")

	if len(remaining) == 0 {
		return c.end(a, room)
	}

	if room.Status == domain.StatusActive && room.CurrentTurnID == p.ID {
		room, err := c.advance(a, room, p.ID)
		if err != nil {
			return err
		}
		c.publishTurn(room, p.ID)
	}

	return nil
}

func (c *Coordinator) end(a *roomActor, room domain.Room) error {
	c.discardPending(a, room)

	ended := domain.StatusEnded
	none := ""
	now := c.now()
	room, err := c.store.UpdateRoom(room.ID, repository.RoomPatch{
		Status:            &ended,
		CurrentTurnID:     &none,
		ActiveChallengeID: &none,
		EndedAt:           &now,
	})
	if err != nil {
		return fmt.Errorf("end room: %w", err)
	}
	a.ended = true

	c.publish(room.ID, RoomEnded{Type: EventRoomEnded, Room: room})

	c.log.Info().Str("room", room.Code).Msg("room ended")

	return nil
}

func (c *Coordinator) configure(room domain.Room, in configureIntent) (domain.Room, error) {
	if room.Status != domain.StatusPending {
		return domain.Room{}, ErrAlreadyStarted
	}

	room, err := c.store.UpdateRoom(room.ID, repository.RoomPatch{Mode: in.mode, Tier: in.tier})
	if err != nil {
		return domain.Room{}, fmt.Errorf("configure room: %w", err)
	}

	c.publish(room.ID, RoomUpdated{Type: EventRoomUpdated, Room: room})

	return room, nil
}

func (c *Coordinator) rename(room domain.Room, in renameIntent) (domain.Participant, error) {
	if _, ok := c.member(room, in.participantID); !ok {
		return domain.Participant{}, ErrParticipantNotFound
	}

	p, err := c.store.UpdateParticipant(in.participantID, repository.ParticipantPatch{Name: &in.name})
	if err != nil {
		return domain.Participant{}, ErrParticipantNotFound
	}

	c.publish(room.ID, ParticipantUpdated{
		Type:         EventParticipantUpdated,
		Participant:  p,
		Participants: c.store.ParticipantsByRoom(room.ID),
	})

	return p, nil
}

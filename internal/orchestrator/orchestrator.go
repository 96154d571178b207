// Package orchestrator turns started lobbies into running game rooms and
// routes players to the room they are playing in.
package orchestrator

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sketchroom/internal/event"
	"sketchroom/internal/game"
	"sketchroom/internal/lobby"
	"sketchroom/internal/scoring"
	"sketchroom/pkg/realtime"
)

var ErrNoGame = errors.New("player is not in a game")

const defaultCloseGrace = 10 * time.Second

type Config struct {
	Lobbies     *lobby.Registry
	Emitter     event.Emitter
	Scopes      event.Scopes
	Loops       *realtime.Loops // nil leaves room ticking to the caller
	Words       game.WordSource
	Scoring     scoring.Engine
	Recorder    game.ResultRecorder
	Log         zerolog.Logger
	Clock       func() time.Time
	CloseGrace  time.Duration
	WordTimeout time.Duration
	// After schedules f once after d. Defaults to time.AfterFunc.
	After func(d time.Duration, f func())
}

// Orchestrator owns every running room. Rooms are keyed by the id of the
// lobby they were promoted from.
type Orchestrator struct {
	lobbies     *lobby.Registry
	emit        event.Emitter
	scopes      event.Scopes
	loops       *realtime.Loops
	words       game.WordSource
	scorer      scoring.Engine
	recorder    game.ResultRecorder
	log         zerolog.Logger
	clock       func() time.Time
	grace       time.Duration
	wordTimeout time.Duration
	after       func(time.Duration, func())

	mu     sync.Mutex
	rooms  map[string]*game.Room
	byUser map[string]string
	played int
}

// Stats is a point-in-time summary for status pages.
type Stats struct {
	ActiveGames   int `json:"activeGames"`
	PlayersInGame int `json:"playersInGame"`
	GamesStarted  int `json:"gamesStarted"`
	Lobbies       int `json:"lobbies"`
}

// New builds an Orchestrator and registers it for lobby countdown expiry.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		lobbies:     cfg.Lobbies,
		emit:        cfg.Emitter,
		scopes:      cfg.Scopes,
		loops:       cfg.Loops,
		words:       cfg.Words,
		scorer:      cfg.Scoring,
		recorder:    cfg.Recorder,
		log:         cfg.Log.With().Str("component", "orchestrator").Logger(),
		clock:       cfg.Clock,
		grace:       cfg.CloseGrace,
		wordTimeout: cfg.WordTimeout,
		after:       cfg.After,
		rooms:       make(map[string]*game.Room),
		byUser:      make(map[string]string),
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.grace <= 0 {
		o.grace = defaultCloseGrace
	}
	if o.after == nil {
		o.after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	o.lobbies.OnTimerExpired(func(st lobby.State) {
		if err := o.StartGame(st.ID); err != nil {
			o.log.Debug().Err(err).Str("lobby", st.ID).Msg("auto-start skipped")
		}
	})
	return o
}

func roomKey(id string) string { return "game:" + id }

type gameStartedPayload struct {
	LobbyID string `json:"lobbyId"`
	GameID  string `json:"gameId"`
}

// StartGame promotes lobbyID into a running room. Lobby members hear that the
// game is starting before anyone is moved into the game scope.
func (o *Orchestrator) StartGame(lobbyID string) error {
	st, err := o.lobbies.Promote(lobbyID)
	if err != nil {
		return err
	}
	o.emit.Broadcast(event.LobbyScope(st.ID), event.New(event.LobbyGameStarted, gameStartedPayload{
		LobbyID: st.ID,
		GameID:  st.ID,
	}), "")

	room := game.NewRoom(game.Params{
		ID:          st.ID,
		Mode:        st.Mode,
		HostID:      st.HostID,
		Players:     st.Profiles(),
		Words:       o.words,
		Scoring:     o.scorer,
		Emitter:     o.emit,
		Recorder:    o.recorder,
		Log:         o.log,
		Clock:       o.clock,
		WordTimeout: o.wordTimeout,
	})
	room.OnEnd(func(game.Results) {
		o.after(o.grace, func() { o.teardown(st.ID) })
	})

	o.mu.Lock()
	o.rooms[st.ID] = room
	for _, p := range st.Players {
		o.byUser[p.UserID] = st.ID
	}
	o.played++
	o.mu.Unlock()

	for _, p := range st.Players {
		o.scopes.Leave(p.UserID, event.LobbyScope(st.ID))
		o.scopes.Join(p.UserID, room.Scope())
	}

	if o.loops != nil {
		room.SetWake(func() { o.loops.Wake(roomKey(st.ID)) })
	}
	if err := room.Start(o.clock()); err != nil {
		return err
	}
	if o.loops != nil {
		o.loops.Run(roomKey(st.ID), room.Tick)
	}
	o.log.Info().Str("game", st.ID).Int("players", len(st.Players)).Str("mode", string(st.Mode)).Msg("game created")
	return nil
}

// HostStart starts the caller's lobby if they host it.
func (o *Orchestrator) HostStart(userID string) error {
	st, ok := o.lobbies.ByPlayer(userID)
	if !ok {
		return lobby.ErrNotInLobby
	}
	if st.HostID != userID {
		return lobby.ErrNotHost
	}
	return o.StartGame(st.ID)
}

type kickedPayload struct {
	GameID string `json:"gameId"`
	Reason string `json:"reason"`
}

// KickPlayer removes targetID from the host's running game.
func (o *Orchestrator) KickPlayer(hostID, targetID string) error {
	o.mu.Lock()
	roomID, ok := o.byUser[hostID]
	room := o.rooms[roomID]
	sameRoom := o.byUser[targetID] == roomID
	o.mu.Unlock()
	if !ok || room == nil {
		return ErrNoGame
	}
	if !sameRoom {
		return game.ErrNotInGame
	}
	if err := room.Kick(hostID, targetID); err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.byUser, targetID)
	o.mu.Unlock()
	o.scopes.Leave(targetID, room.Scope())
	o.emit.EmitTo(targetID, event.New(event.GameKicked, kickedPayload{GameID: roomID, Reason: "removed by host"}))
	return nil
}

// PlayerLeave takes userID out of their game for good.
func (o *Orchestrator) PlayerLeave(userID string) {
	o.detach(userID)
}

// HandleDisconnect tells userID's room, if any, that they dropped. Rooms have
// no way back in, so the player is free to start or join something else once
// they reconnect.
func (o *Orchestrator) HandleDisconnect(userID string) {
	o.detach(userID)
}

func (o *Orchestrator) detach(userID string) {
	o.mu.Lock()
	room := o.rooms[o.byUser[userID]]
	delete(o.byUser, userID)
	o.mu.Unlock()
	if room == nil {
		return
	}
	room.Disconnect(userID)
	o.scopes.Leave(userID, room.Scope())
}

// RoomOf returns the room userID is playing in, or nil.
func (o *Orchestrator) RoomOf(userID string) *game.Room {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rooms[o.byUser[userID]]
}

// Room returns a room by id, or nil.
func (o *Orchestrator) Room(id string) *game.Room {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rooms[id]
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	s := Stats{
		ActiveGames:   len(o.rooms),
		PlayersInGame: len(o.byUser),
		GamesStarted:  o.played,
	}
	o.mu.Unlock()
	s.Lobbies = o.lobbies.Len()
	return s
}

// teardown forgets a finished room and closes the lobby it came from.
func (o *Orchestrator) teardown(id string) {
	o.lobbies.SetStatus(id, lobby.StatusFinished)
	o.lobbies.Close(id)

	o.mu.Lock()
	room := o.rooms[id]
	delete(o.rooms, id)
	for user, rid := range o.byUser {
		if rid == id {
			delete(o.byUser, user)
		}
	}
	o.mu.Unlock()

	if o.loops != nil {
		o.loops.Stop(roomKey(id))
	}
	if room != nil {
		for _, user := range room.Members() {
			o.scopes.Leave(user, room.Scope())
		}
	}
	o.log.Info().Str("game", id).Msg("game torn down")
}

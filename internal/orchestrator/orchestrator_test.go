package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchroom/internal/event"
	"sketchroom/internal/game"
	"sketchroom/internal/lobby"
	"sketchroom/internal/rules"
	"sketchroom/internal/scoring"
	"sketchroom/internal/session"
	"sketchroom/internal/words"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedWords struct{}

func (fixedWords) Choices(context.Context) []words.Choice {
	return []words.Choice{
		{Word: "cat", Difficulty: rules.Easy, Category: "animals"},
		{Word: "castle", Difficulty: rules.Medium, Category: "places"},
		{Word: "eclipse", Difficulty: rules.Hard, Category: "nature"},
	}
}

// trace records broadcasts and scope changes in one sequence so tests can
// check their relative order.
type trace struct {
	*event.Recorder
	mu    sync.Mutex
	steps []string
}

func (t *trace) add(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, s)
}

func (t *trace) Broadcast(scope string, e event.Event, except string) {
	t.add("broadcast " + e.Name + " " + scope)
	t.Recorder.Broadcast(scope, e, except)
}

func (t *trace) Join(userID, scope string) {
	t.add("join " + userID + " " + scope)
	t.Recorder.Join(userID, scope)
}

func (t *trace) Leave(userID, scope string) {
	t.add("leave " + userID + " " + scope)
	t.Recorder.Leave(userID, scope)
}

func (t *trace) index(step string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.steps {
		if s == step {
			return i
		}
	}
	return -1
}

type fixture struct {
	tr        *trace
	reg       *lobby.Registry
	orch      *Orchestrator
	scheduled []func()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{tr: &trace{Recorder: event.NewRecorder()}}
	clock := func() time.Time { return t0 }
	f.reg = lobby.NewRegistry(lobby.Config{Emitter: f.tr, Scopes: f.tr, Log: zerolog.Nop(), Clock: clock})
	f.orch = New(Config{
		Lobbies: f.reg,
		Emitter: f.tr,
		Scopes:  f.tr,
		Words:   fixedWords{},
		Scoring: scoring.New(scoring.DefaultConfig()),
		Log:     zerolog.Nop(),
		Clock:   clock,
		After: func(d time.Duration, fn func()) {
			f.scheduled = append(f.scheduled, fn)
		},
	})
	return f
}

func (f *fixture) lobbyWith(t *testing.T, ids ...string) lobby.State {
	t.Helper()
	st, err := f.reg.Create(session.Profile{UserID: ids[0], Username: ids[0]}, lobby.Options{})
	require.NoError(t, err)
	for _, id := range ids[1:] {
		st, err = f.reg.Join(session.Profile{UserID: id, Username: id}, st.Code)
		require.NoError(t, err)
	}
	return st
}

func payload(t *testing.T, e event.Event) map[string]any {
	t.Helper()
	raw, err := json.Marshal(e.Data)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestOrchestrator_HappyPath(t *testing.T) {
	f := newFixture(t)
	st := f.lobbyWith(t, "a", "b")

	assert.ErrorIs(t, f.orch.HostStart("b"), lobby.ErrNotHost)
	assert.ErrorIs(t, f.orch.HostStart("zed"), lobby.ErrNotInLobby)
	require.NoError(t, f.orch.HostStart("a"))

	started := f.tr.index("broadcast " + event.LobbyGameStarted + " " + event.LobbyScope(st.ID))
	moved := f.tr.index("leave a " + event.LobbyScope(st.ID))
	require.NotEqual(t, -1, started)
	require.NotEqual(t, -1, moved)
	assert.Less(t, started, moved, "lobby must hear about the game before anyone moves")
	assert.True(t, f.tr.InScope("b", event.GameScope(st.ID)))
	assert.False(t, f.tr.InScope("b", event.LobbyScope(st.ID)))

	room := f.orch.RoomOf("a")
	require.NotNil(t, room)
	assert.Same(t, room, f.orch.RoomOf("b"))
	room.Tick(t0.Add(rules.GameStartCountdown))

	state := room.State()
	assert.Equal(t, 6, state.TotalRounds)
	assert.Equal(t, state.TurnOrder[0], state.CurrentDrawerID)

	drawer := state.CurrentDrawerID
	guesser := "a"
	if drawer == "a" {
		guesser = "b"
	}
	require.NoError(t, room.SelectWord(drawer, 0))
	res, err := room.Guess(guesser, "cat")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.True(t, res.IsFirst)
	assert.Equal(t, 1, res.GuessOrder)

	correct, ok := f.tr.Last(event.RoundCorrectGuess)
	require.True(t, ok)
	assert.EqualValues(t, 0, payload(t, correct.Event)["guessersRemaining"])
	assert.Equal(t, game.PhaseRoundEnd, room.State().Round.Phase)

	assert.ErrorIs(t, f.orch.HostStart("a"), lobby.ErrNotWaiting)
	assert.Equal(t, Stats{ActiveGames: 1, PlayersInGame: 2, GamesStarted: 1, Lobbies: 1}, f.orch.Stats())

	f.orch.PlayerLeave("b")
	assert.Equal(t, game.StatusEnded, room.Status())
	assert.Nil(t, f.orch.RoomOf("b"))
	require.Len(t, f.scheduled, 1, "teardown waits for the grace period")
	assert.NotNil(t, f.orch.RoomOf("a"))

	f.scheduled[0]()
	assert.Nil(t, f.orch.RoomOf("a"))
	_, ok = f.reg.Get(st.ID)
	assert.False(t, ok, "lobby closed after the game")
	assert.False(t, f.tr.InScope("a", event.GameScope(st.ID)))
	assert.Equal(t, Stats{GamesStarted: 1}, f.orch.Stats())
}

func TestOrchestrator_CountdownStartsOnce(t *testing.T) {
	f := newFixture(t)
	st := f.lobbyWith(t, "a", "b")

	f.reg.Tick(st.ID, t0.Add(time.Duration(rules.WaitTimerSeconds)*time.Second))
	room := f.orch.RoomOf("a")
	require.NotNil(t, room)
	assert.Equal(t, game.StatusStarting, room.Status())

	assert.ErrorIs(t, f.orch.HostStart("a"), lobby.ErrNotWaiting)
	assert.ErrorIs(t, f.orch.StartGame(st.ID), lobby.ErrNotWaiting)
	assert.Same(t, room, f.orch.RoomOf("a"))
	assert.Len(t, f.tr.Named(event.GameStarting), 1)
}

func TestOrchestrator_Kick(t *testing.T) {
	f := newFixture(t)
	f.lobbyWith(t, "a", "b", "c")
	require.NoError(t, f.orch.HostStart("a"))

	assert.ErrorIs(t, f.orch.KickPlayer("b", "c"), game.ErrNotHost)
	assert.NotNil(t, f.orch.RoomOf("c"), "rejected kick leaves the target in place")
	assert.ErrorIs(t, f.orch.KickPlayer("zed", "c"), ErrNoGame)
	assert.ErrorIs(t, f.orch.KickPlayer("a", "zed"), game.ErrNotInGame)

	require.NoError(t, f.orch.KickPlayer("a", "c"))
	assert.Nil(t, f.orch.RoomOf("c"))
	assert.Len(t, f.tr.SeenBy("c", event.GameKicked), 1)
	assert.Equal(t, game.StatusStarting, f.orch.RoomOf("a").Status())
}

func TestOrchestrator_DrawerDisconnect(t *testing.T) {
	f := newFixture(t)
	f.lobbyWith(t, "a", "b", "c")
	require.NoError(t, f.orch.HostStart("a"))
	room := f.orch.RoomOf("a")
	room.Tick(t0.Add(rules.GameStartCountdown))
	drawer := room.State().CurrentDrawerID
	require.NoError(t, room.SelectWord(drawer, 0))

	f.orch.HandleDisconnect(drawer)
	assert.Nil(t, f.orch.RoomOf(drawer), "a dropped player is no longer mapped to the room")
	assert.False(t, f.tr.InScope(drawer, room.Scope()))
	st := room.State()
	assert.Equal(t, game.PhaseRoundEnd, st.Round.Phase)
	assert.Equal(t, game.StatusPlaying, st.Status)
	for _, p := range st.Players {
		assert.Zero(t, p.Points, "nobody scores when the drawer leaves unsolved")
	}

	room.Tick(t0.Add(rules.GameStartCountdown + rules.RoundEndDelay))
	assert.Equal(t, 2, room.State().CurrentRound)
	assert.NotEqual(t, drawer, room.State().CurrentDrawerID)
	assert.Empty(t, f.scheduled)
	f.orch.HandleDisconnect("nobody")
}

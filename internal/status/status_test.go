package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sketchroom/internal/event"
	"sketchroom/internal/lobby"
	"sketchroom/internal/matchmaking"
	"sketchroom/internal/orchestrator"
	"sketchroom/internal/rules"
	"sketchroom/internal/session"
	"sketchroom/internal/storage"
)

type mockLeaderboard struct {
	mock.Mock
}

func (m *mockLeaderboard) Leaderboard(ctx context.Context, limit int) ([]storage.PlayerStats, error) {
	args := m.Called(limit)
	stats, _ := args.Get(0).([]storage.PlayerStats)
	return stats, args.Error(1)
}

var at = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newCollector(t *testing.T, leaders Leaderboard) (*Collector, *lobby.Registry, *matchmaking.Queue) {
	t.Helper()
	rec := event.NewRecorder()
	clock := func() time.Time { return at }
	reg := lobby.NewRegistry(lobby.Config{Emitter: rec, Scopes: rec, Log: zerolog.Nop(), Clock: clock})
	q := matchmaking.NewQueue(matchmaking.Config{Lobbies: reg, Emitter: rec, Log: zerolog.Nop(), MinPlayers: 3, Clock: clock})
	games := orchestrator.New(orchestrator.Config{Lobbies: reg, Emitter: rec, Scopes: rec, Log: zerolog.Nop(), Clock: clock})
	c := NewCollector(CollectorConfig{
		Lobbies: reg,
		Queue:   q,
		Games:   games,
		Online:  func() int { return 5 },
		Leaders: leaders,
		Log:     zerolog.Nop(),
		Clock:   clock,
	})
	return c, reg, q
}

func player(id string) session.Profile {
	return session.Profile{UserID: id, Username: id}
}

func TestSnapshot(t *testing.T) {
	rank := 1
	board := &mockLeaderboard{}
	board.On("Leaderboard", leaderboardSize).Return([]storage.PlayerStats{
		{UserID: "u1", Username: "ann", CountryCode: "FR", TotalPoints: 900, WorldRank: &rank},
	}, nil)
	c, reg, q := newCollector(t, board)

	open, err := reg.Create(player("a"), lobby.Options{Mode: rules.ModeQuick})
	require.NoError(t, err)
	_, err = reg.Join(player("b"), open.Code)
	require.NoError(t, err)
	secret, err := reg.Create(player("c"), lobby.Options{Private: true})
	require.NoError(t, err)
	require.NoError(t, q.Join(player("d"), rules.ModeNormal))

	s := c.Snapshot(context.Background())
	assert.Equal(t, at, s.At)
	assert.Equal(t, 5, s.Online)
	assert.Equal(t, 2, s.Games.Lobbies)
	assert.Equal(t, map[rules.Mode]int{rules.ModeNormal: 1}, s.Queues)
	assert.Equal(t, map[rules.Mode]string{rules.ModeQuick: open.Code}, s.Open)
	require.Len(t, s.Lobbies, 2)
	assert.Equal(t, open.Code, s.Lobbies[0].Code)
	assert.Equal(t, 2, s.Lobbies[0].Players)
	assert.Equal(t, secret.ID, s.Lobbies[1].ID)
	assert.Empty(t, s.Lobbies[1].Code, "private codes stay private")
	require.Len(t, s.Leaders, 1)
	board.AssertExpectations(t)
}

func TestSnapshot_LeaderboardFailure(t *testing.T) {
	board := &mockLeaderboard{}
	board.On("Leaderboard", mock.Anything).Return(nil, errors.New("db down"))
	c, _, _ := newCollector(t, board)
	s := c.Snapshot(context.Background())
	assert.Empty(t, s.Leaders)
	assert.Equal(t, 5, s.Online)
}

func TestRoutes(t *testing.T) {
	c, reg, _ := newCollector(t, nil)
	_, err := reg.Create(player("a"), lobby.Options{})
	require.NoError(t, err)

	denied := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	r := chi.NewRouter()
	NewHandler(c).RegisterRoutes(r, denied)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Online: <strong>5</strong>")
	assert.Contains(t, body, "1/8")
	assert.NotContains(t, body, "Leaderboard")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var s Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, 1, s.Games.Lobbies)
	assert.Len(t, s.Lobbies, 1)
}

func TestPageEscapes(t *testing.T) {
	var sb strings.Builder
	vm := toStatusPage(Snapshot{At: at})
	vm.Title = "<script>"
	require.NoError(t, Page(vm).Render(context.Background(), &sb))
	assert.NotContains(t, sb.String(), "<script>")
	assert.Contains(t, sb.String(), "&lt;script&gt;")
}

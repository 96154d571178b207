package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"

	"sketchroom/internal/auth"
	"sketchroom/internal/lobby"
	"sketchroom/internal/orchestrator"
	"sketchroom/internal/rules"
	"sketchroom/internal/session"
	"sketchroom/internal/status"
)

func testSnapshot() status.Snapshot {
	return status.Snapshot{
		Online: 7,
		Games:  orchestrator.Stats{ActiveGames: 1, PlayersInGame: 3, GamesStarted: 4},
		Queues: map[rules.Mode]int{rules.ModeNormal: 2},
		Open:   map[rules.Mode]string{rules.ModeNormal: "ABC123"},
		Lobbies: []status.LobbySummary{
			{ID: "l1", Code: "ABC123", Mode: rules.ModeNormal, Status: lobby.StatusWaiting, Players: 2, MaxPlayers: 8},
			{ID: "l2", Mode: rules.ModeQuick, Status: lobby.StatusWaiting, Players: 1, MaxPlayers: 8, Private: true},
		},
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T) model {
	t.Helper()
	next, _ := newModel(nil).Update(statsLoadedMsg{snap: testSnapshot()})
	return next.(model)
}

func TestModelRendersSnapshot(t *testing.T) {
	view := loaded(t).View()
	for _, want := range []string{"ABC123", "2/8", "------", "online", "2 waiting"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view, got:\n%s", want, view)
		}
	}
}

func TestModelLoadingAndError(t *testing.T) {
	m := newModel(nil)
	if !strings.Contains(m.View(), "loading...") {
		t.Errorf("expected loading view, got:\n%s", m.View())
	}
	next, _ := m.Update(statsLoadedMsg{err: errors.New("connection refused")})
	if !strings.Contains(next.View(), "connection refused") {
		t.Errorf("expected error in view, got:\n%s", next.View())
	}
}

func TestModelKeepsSnapshotOnError(t *testing.T) {
	m := loaded(t)
	next, _ := m.Update(statsLoadedMsg{err: errors.New("timeout")})
	view := next.View()
	if !strings.Contains(view, "ABC123") || !strings.Contains(view, "timeout") {
		t.Errorf("expected stale snapshot with error, got:\n%s", view)
	}
}

func TestModelCursor(t *testing.T) {
	m := loaded(t)
	var next tea.Model = m
	next, _ = next.Update(key("j"))
	next, _ = next.Update(key("j"))
	if got := next.(model).cursor; got != 1 {
		t.Errorf("cursor = %d, want 1", got)
	}
	next, _ = next.Update(key("k"))
	if got := next.(model).cursor; got != 0 {
		t.Errorf("cursor = %d, want 0", got)
	}

	shrunk := testSnapshot()
	shrunk.Lobbies = shrunk.Lobbies[:1]
	next, _ = next.Update(key("j"))
	next, _ = next.Update(statsLoadedMsg{snap: shrunk})
	if got := next.(model).cursor; got != 0 {
		t.Errorf("cursor = %d after shrink, want 0", got)
	}
}

func TestModelCopyPrivateLobby(t *testing.T) {
	var next tea.Model = loaded(t)
	next, _ = next.Update(key("j"))
	next, cmd := next.Update(key("c"))
	if cmd != nil {
		t.Error("expected no copy command for a private lobby")
	}
	if !strings.Contains(next.View(), "private lobby") {
		t.Errorf("expected private notice, got:\n%s", next.View())
	}

	next, _ = next.Update(copiedMsg{code: "ABC123"})
	if !strings.Contains(next.View(), "copied ABC123") {
		t.Errorf("expected copied notice, got:\n%s", next.View())
	}
}

func TestModelKeys(t *testing.T) {
	m := loaded(t)
	if _, cmd := m.Update(key("r")); cmd == nil {
		t.Error("expected reload command on r")
	}
	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Error("expected quit command on q")
	}
	if _, cmd := m.Update(pollMsg(time.Now())); cmd == nil {
		t.Error("expected reload and next poll on tick")
	}
}

func TestStatsClient(t *testing.T) {
	const secret = "a monitor test secret longer than thirty two bytes"
	jwt := auth.NewJWTManager(secret, time.Hour)
	r := chi.NewRouter()
	r.With(jwt.RequireBearer).Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"online":3,"games":{"activeGames":1},"lobbies":[{"id":"l1","code":"QWE789"}]}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	token, err := jwt.Generate(session.Profile{UserID: "monitor", Username: "monitor"}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	snap, err := newStatsClient(srv.URL+"/", token).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if snap.Online != 3 || snap.Games.ActiveGames != 1 || len(snap.Lobbies) != 1 || snap.Lobbies[0].Code != "QWE789" {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	_, err = newStatsClient(srv.URL, "nope").Stats(context.Background())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized || httpErr.Message != auth.ErrorInvalidTokenJson {
		t.Errorf("expected 401 invalid-token, got %v", err)
	}
}

package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"sketchroom/internal/rules"
	"sketchroom/internal/viewmodel"
)

type Handler struct {
	collector *Collector
}

func NewHandler(c *Collector) *Handler {
	return &Handler{collector: c}
}

// RegisterRoutes mounts the page at / and the JSON figures at /api/stats,
// the latter behind requireAuth.
func (h *Handler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/", h.page)
	r.With(requireAuth).Get("/api/stats", h.stats)
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	render(w, r, Page(toStatusPage(h.collector.Snapshot(r.Context()))))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(h.collector.Snapshot(r.Context())); err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
	}
}

func render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		http.Error(w, "failed to render", http.StatusInternalServerError)
	}
}

func toStatusPage(s Snapshot) viewmodel.StatusPage {
	vm := viewmodel.StatusPage{
		Title:         "sketchroom",
		GeneratedAt:   s.At.UTC().Format(time.RFC1123),
		Online:        s.Online,
		ActiveGames:   s.Games.ActiveGames,
		PlayersInGame: s.Games.PlayersInGame,
		GamesStarted:  s.Games.GamesStarted,
	}
	for _, m := range rules.Modes {
		vm.Queues = append(vm.Queues, viewmodel.QueueRow{Mode: string(m), Waiting: s.Queues[m], OpenCode: s.Open[m]})
	}
	for _, l := range s.Lobbies {
		vm.Lobbies = append(vm.Lobbies, viewmodel.LobbyRow{
			Code:       l.Code,
			Mode:       string(l.Mode),
			Players:    l.Players,
			MaxPlayers: l.MaxPlayers,
			Status:     string(l.Status),
		})
	}
	for _, p := range s.Leaders {
		e := viewmodel.ScoreEntry{Name: p.Username, Country: p.CountryCode, Points: p.TotalPoints}
		if p.WorldRank != nil {
			e.Rank = *p.WorldRank
		}
		vm.Leaders = append(vm.Leaders, e)
	}
	return vm
}

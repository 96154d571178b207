// Package status reports what the server is doing, as JSON for tools and as
// an HTML page for people.
package status

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"sketchroom/internal/lobby"
	"sketchroom/internal/matchmaking"
	"sketchroom/internal/orchestrator"
	"sketchroom/internal/rules"
	"sketchroom/internal/storage"
)

const (
	leaderboardSize    = 10
	leaderboardTimeout = time.Second
)

// Leaderboard lists the best players. storage.Postgres implements it.
type Leaderboard interface {
	Leaderboard(ctx context.Context, limit int) ([]storage.PlayerStats, error)
}

type Snapshot struct {
	At      time.Time             `json:"at"`
	Online  int                   `json:"online"`
	Games   orchestrator.Stats    `json:"games"`
	Queues  map[rules.Mode]int    `json:"queues"`
	Open    map[rules.Mode]string `json:"open"`
	Lobbies []LobbySummary        `json:"lobbies"`
	Leaders []storage.PlayerStats `json:"leaders,omitempty"`
}

type LobbySummary struct {
	ID         string       `json:"id"`
	Code       string       `json:"code,omitempty"`
	Mode       rules.Mode   `json:"gameMode"`
	Status     lobby.Status `json:"status"`
	Players    int          `json:"players"`
	MaxPlayers int          `json:"maxPlayers"`
	Private    bool         `json:"isPrivate"`
}

type CollectorConfig struct {
	Lobbies *lobby.Registry
	Queue   *matchmaking.Queue
	Games   *orchestrator.Orchestrator
	Online  func() int
	Leaders Leaderboard // optional
	Log     zerolog.Logger
	Clock   func() time.Time
}

type Collector struct {
	cfg CollectorConfig
	log zerolog.Logger
}

func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Online == nil {
		cfg.Online = func() int { return 0 }
	}
	return &Collector{cfg: cfg, log: cfg.Log.With().Str("component", "status").Logger()}
}

// Snapshot gathers current figures. A failing leaderboard is left out.
func (c *Collector) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		At:     c.cfg.Clock(),
		Online: c.cfg.Online(),
		Games:  c.cfg.Games.Stats(),
		Queues: c.cfg.Queue.Sizes(),
		Open:   make(map[rules.Mode]string),
	}
	for _, m := range rules.Modes {
		if st, ok := c.cfg.Lobbies.FindOpen(m); ok {
			s.Open[m] = st.Code
		}
	}
	for _, st := range c.cfg.Lobbies.List() {
		ls := LobbySummary{
			ID:         st.ID,
			Mode:       st.Mode,
			Status:     st.Status,
			Players:    len(st.Players),
			MaxPlayers: st.MaxPlayers,
			Private:    st.Private,
		}
		if !st.Private {
			ls.Code = st.Code
		}
		s.Lobbies = append(s.Lobbies, ls)
	}
	sort.SliceStable(s.Lobbies, func(i, j int) bool { return s.Lobbies[i].Players > s.Lobbies[j].Players })

	if c.cfg.Leaders != nil {
		ctx, cancel := context.WithTimeout(ctx, leaderboardTimeout)
		defer cancel()
		leaders, err := c.cfg.Leaders.Leaderboard(ctx, leaderboardSize)
		if err != nil {
			c.log.Warn().Err(err).Msg("leaderboard unavailable")
		}
		s.Leaders = leaders
	}
	return s
}

// Package matchmaking pairs waiting players into lobbies, one FIFO queue per
// game mode.
package matchmaking

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sketchroom/internal/event"
	"sketchroom/internal/lobby"
	"sketchroom/internal/rules"
	"sketchroom/internal/session"
)

var ErrInvalidMode = errors.New("unknown game mode")

// Lobbies is the part of the lobby registry a match needs.
type Lobbies interface {
	Create(p session.Profile, opts lobby.Options) (lobby.State, error)
	Join(p session.Profile, code string) (lobby.State, error)
	Leave(userID string)
}

type Config struct {
	Lobbies    Lobbies
	Emitter    event.Emitter
	Log        zerolog.Logger
	MinPlayers int
	Clock      func() time.Time
}

type entry struct {
	profile  session.Profile
	joinedAt time.Time
}

// Queue holds waiting players. Lock order is Queue then lobby registry.
type Queue struct {
	lobbies Lobbies
	emit    event.Emitter
	log     zerolog.Logger
	min     int
	clock   func() time.Time

	mu     sync.Mutex
	queues map[rules.Mode][]entry
	byUser map[string]rules.Mode
}

func NewQueue(cfg Config) *Queue {
	q := &Queue{
		lobbies: cfg.Lobbies,
		emit:    cfg.Emitter,
		log:     cfg.Log.With().Str("component", "matchmaking").Logger(),
		min:     cfg.MinPlayers,
		clock:   cfg.Clock,
		queues:  make(map[rules.Mode][]entry),
		byUser:  make(map[string]rules.Mode),
	}
	if q.min < rules.MinPlayers {
		q.min = rules.MinPlayers
	}
	if q.clock == nil {
		q.clock = time.Now
	}
	return q
}

type updatePayload struct {
	Mode      rules.Mode `json:"gameMode"`
	QueueSize int        `json:"queueSize"`
	Position  int        `json:"position"`
}

type matchedPayload struct {
	Lobby lobby.State `json:"lobby"`
}

// Join queues p for mode after pulling them out of any other queue or lobby,
// then matches as many groups as the queue allows.
func (q *Queue) Join(p session.Profile, mode rules.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(p.UserID)
	q.lobbies.Leave(p.UserID)

	q.queues[mode] = append(q.queues[mode], entry{profile: p, joinedAt: q.clock()})
	q.byUser[p.UserID] = mode
	q.log.Debug().Str("player", p.UserID).Str("mode", string(mode)).Int("size", len(q.queues[mode])).Msg("queued")
	q.notifyLocked(mode)
	q.matchLocked(mode)
	return nil
}

// Leave drops userID from whichever queue holds them.
func (q *Queue) Leave(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(userID)
}

func (q *Queue) Size(mode rules.Mode) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[mode])
}

// Sizes reports every non-empty queue.
func (q *Queue) Sizes() map[rules.Mode]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[rules.Mode]int, len(q.queues))
	for m, entries := range q.queues {
		if len(entries) > 0 {
			out[m] = len(entries)
		}
	}
	return out
}

func (q *Queue) removeLocked(userID string) {
	mode, ok := q.byUser[userID]
	if !ok {
		return
	}
	delete(q.byUser, userID)
	entries := q.queues[mode]
	for i, e := range entries {
		if e.profile.UserID == userID {
			q.queues[mode] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	q.notifyLocked(mode)
}

func (q *Queue) notifyLocked(mode rules.Mode) {
	entries := q.queues[mode]
	for i, e := range entries {
		q.emit.EmitTo(e.profile.UserID, event.New(event.MatchmakingUpdate, updatePayload{
			Mode:      mode,
			QueueSize: len(entries),
			Position:  i + 1,
		}))
	}
}

// matchLocked forms lobbies from the oldest players until fewer than the
// minimum remain. A failed match puts its players back at the front.
func (q *Queue) matchLocked(mode rules.Mode) {
	for len(q.queues[mode]) >= q.min {
		batch := append([]entry(nil), q.queues[mode][:q.min]...)
		q.queues[mode] = q.queues[mode][q.min:]
		for _, e := range batch {
			delete(q.byUser, e.profile.UserID)
		}

		st, err := q.formLobby(mode, batch)
		if err != nil {
			q.log.Warn().Err(err).Str("mode", string(mode)).Msg("match failed, requeueing players")
			q.queues[mode] = append(batch, q.queues[mode]...)
			for _, e := range batch {
				q.byUser[e.profile.UserID] = mode
			}
			q.notifyLocked(mode)
			return
		}

		for _, e := range batch {
			q.emit.EmitTo(e.profile.UserID, event.New(event.MatchmakingMatched, matchedPayload{Lobby: st}))
		}
		q.log.Info().Str("lobby", st.ID).Str("mode", string(mode)).Int("players", len(batch)).Msg("match found")
		q.notifyLocked(mode)
	}
}

func (q *Queue) formLobby(mode rules.Mode, batch []entry) (lobby.State, error) {
	st, err := q.lobbies.Create(batch[0].profile, lobby.Options{Mode: mode})
	if err != nil {
		return lobby.State{}, fmt.Errorf("create lobby: %w", err)
	}
	for i, e := range batch[1:] {
		st, err = q.lobbies.Join(e.profile, st.Code)
		if err != nil {
			for _, joined := range batch[:i+1] {
				q.lobbies.Leave(joined.profile.UserID)
			}
			return lobby.State{}, fmt.Errorf("join %s: %w", e.profile.UserID, err)
		}
	}
	return st, nil
}

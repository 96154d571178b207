package lobby

import (
	"time"

	"sketchroom/internal/event"
	"sketchroom/pkg/realtime"
)

func loopKey(lobbyID string) string { return "lobby:" + lobbyID }

// maybeStartCountdownLocked arms the auto-start countdown the first time a
// waiting lobby reaches its minimum population.
func (g *Registry) maybeStartCountdownLocked(l *lobby, now time.Time) bool {
	if l.status != StatusWaiting || l.countdown != nil || len(l.order) < l.min {
		return false
	}
	l.countdown = realtime.StartCountdown(g.wait, now)
	g.emit.Broadcast(l.scope(), event.New(event.LobbyTimerStart, timerPayload{Seconds: g.wait}), "")
	g.log.Debug().Str("lobby", l.id).Int("seconds", g.wait).Msg("auto-start countdown started")
	if g.loops != nil {
		id := l.id
		g.loops.Stop(loopKey(id))
		g.loops.Run(loopKey(id), func(now time.Time) (time.Time, bool) {
			return g.Tick(id, now)
		})
	}
	return true
}

func (g *Registry) cancelCountdownLocked(l *lobby) {
	g.stopCountdownLocked(l)
	g.emit.Broadcast(l.scope(), event.New(event.LobbyTimerCancel, struct{}{}), "")
	g.log.Debug().Str("lobby", l.id).Msg("auto-start countdown cancelled")
}

func (g *Registry) stopCountdownLocked(l *lobby) {
	l.countdown = nil
	if g.loops != nil {
		g.loops.Stop(loopKey(l.id))
	}
}

// Tick advances lobbyID's countdown to now, broadcasting each elapsed second.
// When it reaches zero the expiry callback runs once, outside the lock.
func (g *Registry) Tick(lobbyID string, now time.Time) (time.Time, bool) {
	g.mu.Lock()
	l, ok := g.lobbies[lobbyID]
	if !ok || l.status != StatusWaiting || l.countdown == nil {
		g.mu.Unlock()
		return time.Time{}, true
	}
	for l.countdown.Due(now) {
		left := l.countdown.Step()
		g.emit.Broadcast(l.scope(), event.New(event.LobbyTimerUpdate, timerPayload{Seconds: left}), "")
	}
	if next, pending := l.countdown.NextWake(); pending {
		g.mu.Unlock()
		return next, false
	}
	l.countdown = nil
	st := g.stateLocked(l)
	fn := g.onExpire
	g.mu.Unlock()

	g.log.Info().Str("lobby", lobbyID).Msg("auto-start countdown expired")
	if fn != nil {
		fn(st)
	}
	return time.Time{}, true
}

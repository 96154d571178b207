package lobby

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sketchroom/internal/event"
	"sketchroom/internal/rules"
	"sketchroom/internal/session"
	"sketchroom/pkg/realtime"
)

type lobby struct {
	id        string
	code      string
	hostID    string
	mode      rules.Mode
	max       int
	min       int
	private   bool
	status    Status
	players   map[string]*Player
	order     []string
	countdown *realtime.Countdown
	createdAt time.Time
}

func (l *lobby) scope() string { return event.LobbyScope(l.id) }

// Config wires a Registry to the connection layer.
type Config struct {
	Emitter     event.Emitter
	Scopes      event.Scopes
	Loops       *realtime.Loops // nil leaves Tick to the caller
	Log         zerolog.Logger
	Clock       func() time.Time
	WaitSeconds int
}

// Registry holds every lobby in the process. A user is in at most one lobby.
type Registry struct {
	emit   event.Emitter
	scopes event.Scopes
	loops  *realtime.Loops
	log    zerolog.Logger
	clock  func() time.Time
	wait   int

	mu       sync.Mutex
	lobbies  map[string]*lobby
	byCode   map[string]string
	byUser   map[string]string
	onExpire func(State)
}

func NewRegistry(cfg Config) *Registry {
	g := &Registry{
		emit:    cfg.Emitter,
		scopes:  cfg.Scopes,
		loops:   cfg.Loops,
		log:     cfg.Log.With().Str("component", "lobby").Logger(),
		clock:   cfg.Clock,
		wait:    cfg.WaitSeconds,
		lobbies: make(map[string]*lobby),
		byCode:  make(map[string]string),
		byUser:  make(map[string]string),
	}
	if g.clock == nil {
		g.clock = time.Now
	}
	if g.wait <= 0 {
		g.wait = rules.WaitTimerSeconds
	}
	return g
}

// OnTimerExpired registers the callback run when a lobby's auto-start
// countdown reaches zero. It is called without the registry lock held.
func (g *Registry) OnTimerExpired(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExpire = fn
}

// Create opens a new lobby with the caller as its only player and host. The
// caller leaves any lobby they were already in.
func (g *Registry) Create(p session.Profile, opts Options) (State, error) {
	if opts.Mode == "" {
		opts.Mode = rules.ModeNormal
	}
	if !opts.Mode.Valid() {
		return State{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidOptions, opts.Mode)
	}
	if opts.MaxPlayers == 0 {
		opts.MaxPlayers = rules.DefaultMaxPlayers
	}
	if opts.MaxPlayers < rules.MinPlayers || opts.MaxPlayers > rules.MaxPlayers {
		return State{}, fmt.Errorf("%w: maxPlayers must be between %d and %d", ErrInvalidOptions, rules.MinPlayers, rules.MaxPlayers)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	code, err := g.uniqueCodeLocked()
	if err != nil {
		return State{}, err
	}
	g.leaveLocked(p.UserID, false)

	now := g.clock()
	l := &lobby{
		id:        uuid.NewString(),
		code:      code,
		hostID:    p.UserID,
		mode:      opts.Mode,
		max:       opts.MaxPlayers,
		min:       rules.MinPlayers,
		private:   opts.Private,
		status:    StatusWaiting,
		players:   make(map[string]*Player),
		createdAt: now,
	}
	g.lobbies[l.id] = l
	g.byCode[code] = l.id
	g.addLocked(l, p, now)
	l.players[p.UserID].IsHost = true
	l.players[p.UserID].IsReady = true

	g.log.Info().Str("lobby", l.id).Str("code", code).Str("host", p.UserID).Msg("lobby created")
	return g.stateLocked(l), nil
}

func (g *Registry) uniqueCodeLocked() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := newCode()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCodeExhausted, err)
		}
		if _, taken := g.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// Join adds the caller to the lobby with code. Joining the lobby one is
// already in returns its state unchanged.
func (g *Registry) Join(p session.Profile, code string) (State, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return State{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.lobbies[g.byCode[code]]
	if !ok {
		return State{}, ErrNotFound
	}
	if _, in := l.players[p.UserID]; in {
		return g.stateLocked(l), nil
	}
	if l.status != StatusWaiting {
		return State{}, ErrNotWaiting
	}
	if len(l.order) >= l.max {
		return State{}, ErrFull
	}
	g.leaveLocked(p.UserID, false)

	now := g.clock()
	g.addLocked(l, p, now)
	st := g.stateLocked(l)
	g.emit.Broadcast(l.scope(), event.New(event.LobbyPlayerJoined, playerJoinedPayload{
		Player: *l.players[p.UserID],
		Lobby:  st,
	}), p.UserID)
	g.log.Debug().Str("lobby", l.id).Str("player", p.UserID).Int("players", len(l.order)).Msg("player joined")

	if g.maybeStartCountdownLocked(l, now) {
		st = g.stateLocked(l)
	}
	return st, nil
}

func (g *Registry) addLocked(l *lobby, p session.Profile, now time.Time) {
	l.players[p.UserID] = &Player{Profile: p, JoinedAt: now}
	l.order = append(l.order, p.UserID)
	g.byUser[p.UserID] = l.id
	g.scopes.Join(p.UserID, l.scope())
}

// Leave removes the caller from their lobby, if any.
func (g *Registry) Leave(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(userID, false)
}

// leaveLocked removes userID from their current lobby, handing the host role
// to the longest-standing player and cancelling an under-populated countdown.
func (g *Registry) leaveLocked(userID string, kicked bool) {
	l, ok := g.lobbies[g.byUser[userID]]
	if !ok {
		delete(g.byUser, userID)
		return
	}
	p := l.players[userID]
	delete(l.players, userID)
	for i, id := range l.order {
		if id == userID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	delete(g.byUser, userID)
	g.scopes.Leave(userID, l.scope())
	g.log.Debug().Str("lobby", l.id).Str("player", userID).Bool("kicked", kicked).Msg("player left")

	if len(l.order) == 0 {
		g.deleteLocked(l)
		return
	}
	g.emit.Broadcast(l.scope(), event.New(event.LobbyPlayerLeft, playerLeftPayload{
		UserID:   userID,
		Username: p.Username,
		Kicked:   kicked,
	}), "")

	if l.hostID == userID {
		next := l.players[l.order[0]]
		next.IsHost = true
		l.hostID = next.UserID
		g.emit.Broadcast(l.scope(), event.New(event.LobbyHostChanged, hostChangedPayload{
			HostID:   next.UserID,
			Username: next.Username,
		}), "")
	}
	if l.countdown != nil && len(l.order) < l.min {
		g.cancelCountdownLocked(l)
	}
}

func (g *Registry) deleteLocked(l *lobby) {
	g.stopCountdownLocked(l)
	for _, id := range l.order {
		if g.byUser[id] == l.id {
			delete(g.byUser, id)
		}
		g.scopes.Leave(id, l.scope())
	}
	delete(g.byCode, l.code)
	delete(g.lobbies, l.id)
	g.log.Info().Str("lobby", l.id).Msg("lobby closed")
}

// SetReady toggles the caller's ready flag.
func (g *Registry) SetReady(userID string, ready bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.lobbies[g.byUser[userID]]
	if !ok {
		return ErrNotInLobby
	}
	l.players[userID].IsReady = ready
	g.emit.Broadcast(l.scope(), event.New(event.LobbyPlayerReady, readyPayload{UserID: userID, IsReady: ready}), "")
	return nil
}

// Kick removes a non-host player on the host's behalf and tells them why.
func (g *Registry) Kick(hostID, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.lobbies[g.byUser[hostID]]
	if !ok {
		return ErrNotInLobby
	}
	if l.hostID != hostID {
		return ErrNotHost
	}
	if targetID == hostID {
		return ErrCannotKickSelf
	}
	if _, in := l.players[targetID]; !in {
		return ErrNotInLobby
	}
	if l.status != StatusWaiting {
		return ErrNotWaiting
	}
	g.leaveLocked(targetID, true)
	g.emit.EmitTo(targetID, event.New(event.LobbyKicked, kickedPayload{
		LobbyID: l.id,
		Reason:  "removed by host",
	}))
	return nil
}

// Promote flips a waiting lobby to in_game and stops its countdown. Only the
// first caller wins; later calls get ErrNotWaiting.
func (g *Registry) Promote(lobbyID string) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.lobbies[lobbyID]
	if !ok {
		return State{}, ErrNotFound
	}
	if l.status != StatusWaiting {
		return State{}, ErrNotWaiting
	}
	if len(l.order) < l.min {
		return State{}, ErrNotEnoughPlayers
	}
	g.stopCountdownLocked(l)
	l.status = StatusInGame
	g.log.Info().Str("lobby", l.id).Int("players", len(l.order)).Msg("lobby promoted")
	return g.stateLocked(l), nil
}

// SetStatus overwrites a lobby's status. Unknown ids are ignored.
func (g *Registry) SetStatus(lobbyID string, s Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.lobbies[lobbyID]; ok {
		l.status = s
		if s != StatusWaiting {
			g.stopCountdownLocked(l)
		}
	}
}

// Close deletes a lobby, freeing its code.
func (g *Registry) Close(lobbyID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.lobbies[lobbyID]; ok {
		g.deleteLocked(l)
	}
}

func (g *Registry) Get(lobbyID string) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.lobbies[lobbyID]
	if !ok {
		return State{}, false
	}
	return g.stateLocked(l), true
}

// ByPlayer returns the lobby userID is in.
func (g *Registry) ByPlayer(userID string) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.lobbies[g.byUser[userID]]
	if !ok {
		return State{}, false
	}
	return g.stateLocked(l), true
}

// FindOpen returns the fullest public lobby of mode that still has room,
// oldest first on ties.
func (g *Registry) FindOpen(mode rules.Mode) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var best *lobby
	for _, l := range g.lobbies {
		if l.private || l.mode != mode || l.status != StatusWaiting || len(l.order) >= l.max {
			continue
		}
		if best == nil || len(l.order) > len(best.order) ||
			(len(l.order) == len(best.order) && l.createdAt.Before(best.createdAt)) {
			best = l
		}
	}
	if best == nil {
		return State{}, false
	}
	return g.stateLocked(best), true
}

// List returns every lobby, newest first.
func (g *Registry) List() []State {
	g.mu.Lock()
	out := make([]State, 0, len(g.lobbies))
	for _, l := range g.lobbies {
		out = append(out, g.stateLocked(l))
	}
	g.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lobbies)
}

func (g *Registry) stateLocked(l *lobby) State {
	s := State{
		ID:         l.id,
		Code:       l.code,
		HostID:     l.hostID,
		Mode:       l.mode,
		MaxPlayers: l.max,
		MinPlayers: l.min,
		Private:    l.private,
		Status:     l.status,
		Players:    make([]Player, 0, len(l.order)),
		CreatedAt:  l.createdAt,
	}
	for _, id := range l.order {
		s.Players = append(s.Players, *l.players[id])
	}
	if l.countdown != nil {
		left := l.countdown.Remaining
		s.TimerSeconds = &left
	}
	return s
}

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sketchroom/internal/auth"
	"sketchroom/internal/event"
	"sketchroom/internal/game"
	"sketchroom/internal/lobby"
	"sketchroom/internal/matchmaking"
	"sketchroom/internal/orchestrator"
	"sketchroom/internal/rules"
	"sketchroom/internal/session"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInGame           = errors.New("already in a game")
	ErrBadPayload       = errors.New("malformed payload")
	ErrRateLimited      = errors.New("slow down")
)

const authTimeout = 5 * time.Second

// Authenticator exchanges a bearer token for a profile.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (session.Profile, error)
}

// Limits configures the per-connection token buckets.
type Limits struct {
	ChatRate    float64
	ChatBurst   int
	CanvasRate  float64
	CanvasBurst int
}

func DefaultLimits() Limits {
	return Limits{ChatRate: 3, ChatBurst: 6, CanvasRate: 120, CanvasBurst: 240}
}

type DispatcherConfig struct {
	Hub     *Hub
	Auth    Authenticator
	Lobbies *lobby.Registry
	Queue   *matchmaking.Queue
	Games   *orchestrator.Orchestrator
	Limits  Limits
	Log     zerolog.Logger
}

// Dispatcher decodes client envelopes and turns them into calls on the game
// core. Until a connection authenticates, only auth:token is accepted.
type Dispatcher struct {
	hub     *Hub
	auth    Authenticator
	lobbies *lobby.Registry
	queue   *matchmaking.Queue
	games   *orchestrator.Orchestrator
	limits  Limits
	log     zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*limiter
}

type limiter struct {
	chat   *rate.Limiter
	canvas *rate.Limiter
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		hub:      cfg.Hub,
		auth:     cfg.Auth,
		lobbies:  cfg.Lobbies,
		queue:    cfg.Queue,
		games:    cfg.Games,
		limits:   cfg.Limits,
		log:      cfg.Log.With().Str("component", "dispatcher").Logger(),
		limiters: make(map[string]*limiter),
	}
	if d.limits == (Limits{}) {
		d.limits = DefaultLimits()
	}
	d.hub.OnDisconnect(d.disconnected)
	return d
}

type envelope struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ackPayload struct {
	Ref   string       `json:"ref,omitempty"`
	OK    bool         `json:"ok"`
	Lobby *lobby.State `json:"lobby,omitempty"`
	Error string       `json:"error,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type authSuccessPayload struct {
	UserID   string          `json:"userId"`
	Username string          `json:"username"`
	Profile  session.Profile `json:"profile"`
}

// Handle processes one inbound message from connID.
func (d *Dispatcher) Handle(connID string, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		d.log.Debug().Str("conn", connID).Msg("dropping undecodable message")
		return
	}
	if env.Type == event.AuthToken {
		d.authenticate(connID, env)
		return
	}
	s, ok := d.hub.sessions.Lookup(connID)
	if !ok {
		d.hub.EmitConn(connID, event.New(event.AuthFailure, errorPayload{Message: ErrNotAuthenticated.Error()}))
		return
	}
	d.dispatch(connID, s.Profile, env)
}

// Forget drops per-connection state once the socket has gone.
func (d *Dispatcher) Forget(connID string) {
	d.mu.Lock()
	delete(d.limiters, connID)
	d.mu.Unlock()
}

func (d *Dispatcher) authenticate(connID string, env envelope) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil || body.Token == "" {
		d.hub.EmitConn(connID, event.New(event.AuthFailure, errorPayload{Message: "token required"}))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()
	p, err := d.auth.Authenticate(ctx, body.Token)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, auth.ErrExpiredToken) {
			msg = "token expired"
		}
		d.log.Info().Err(err).Str("conn", connID).Msg("authentication failed")
		d.hub.EmitConn(connID, event.New(event.AuthFailure, errorPayload{Message: msg}))
		return
	}
	if s, ok := d.hub.sessions.Lookup(connID); ok && s.Profile.UserID != p.UserID {
		d.hub.EmitConn(connID, event.New(event.AuthFailure, errorPayload{Message: "connection already authenticated"}))
		return
	}
	d.hub.Authenticate(connID, p)
	d.log.Info().Str("conn", connID).Str("player", p.UserID).Msg("player authenticated")
	d.hub.EmitConn(connID, event.New(event.AuthSuccess, authSuccessPayload{
		UserID:   p.UserID,
		Username: p.Username,
		Profile:  p,
	}))
}

// disconnected runs once a user's current connection is gone.
func (d *Dispatcher) disconnected(s session.Session) {
	uid := s.Profile.UserID
	d.queue.Leave(uid)
	d.lobbies.Leave(uid)
	d.games.HandleDisconnect(uid)
	d.log.Info().Str("player", uid).Str("conn", s.ConnID).Msg("player disconnected")
}

func (d *Dispatcher) dispatch(connID string, p session.Profile, env envelope) {
	uid := p.UserID
	switch env.Type {
	case event.LobbyCreate:
		var opts lobby.Options
		if !d.decode(env, &opts) {
			d.ack(uid, env.Ref, nil, ErrBadPayload)
			return
		}
		if d.games.RoomOf(uid) != nil {
			d.ack(uid, env.Ref, nil, ErrInGame)
			return
		}
		d.queue.Leave(uid)
		st, err := d.lobbies.Create(p, opts)
		d.ackLobby(uid, env.Ref, st, err)

	case event.LobbyJoin:
		var body struct {
			Code string `json:"code"`
		}
		if !d.decode(env, &body) {
			d.ack(uid, env.Ref, nil, ErrBadPayload)
			return
		}
		if d.games.RoomOf(uid) != nil {
			d.ack(uid, env.Ref, nil, ErrInGame)
			return
		}
		d.queue.Leave(uid)
		st, err := d.lobbies.Join(p, body.Code)
		d.ackLobby(uid, env.Ref, st, err)

	case event.LobbyLeave:
		d.lobbies.Leave(uid)
		d.ack(uid, env.Ref, nil, nil)

	case event.LobbyStart:
		err := d.games.HostStart(uid)
		d.fail(uid, event.LobbyError, err)
		d.ack(uid, env.Ref, nil, err)

	case event.LobbyReady:
		var ready bool
		if !d.decode(env, &ready) {
			d.ack(uid, env.Ref, nil, ErrBadPayload)
			return
		}
		err := d.lobbies.SetReady(uid, ready)
		d.fail(uid, event.LobbyError, err)
		d.ack(uid, env.Ref, nil, err)

	case event.LobbyKick:
		var target string
		if !d.decode(env, &target) || target == "" {
			d.ack(uid, env.Ref, nil, ErrBadPayload)
			return
		}
		var err error
		if d.games.RoomOf(uid) != nil {
			err = d.games.KickPlayer(uid, target)
			d.fail(uid, event.GameError, err)
		} else {
			err = d.lobbies.Kick(uid, target)
			d.fail(uid, event.LobbyError, err)
		}
		d.ack(uid, env.Ref, nil, err)

	case event.MatchmakingJoin:
		var body struct {
			Mode string `json:"gameMode"`
		}
		if !d.decode(env, &body) {
			d.ack(uid, env.Ref, nil, ErrBadPayload)
			return
		}
		mode, err := rules.ParseMode(body.Mode)
		if err != nil {
			d.ack(uid, env.Ref, nil, matchmaking.ErrInvalidMode)
			return
		}
		if d.games.RoomOf(uid) != nil {
			d.ack(uid, env.Ref, nil, ErrInGame)
			return
		}
		d.ack(uid, env.Ref, nil, d.queue.Join(p, mode))

	case event.MatchmakingLeave:
		d.queue.Leave(uid)
		d.ack(uid, env.Ref, nil, nil)

	case event.GameSelectWord:
		var index int
		if !d.decode(env, &index) {
			return
		}
		room := d.games.RoomOf(uid)
		if room == nil {
			d.fail(uid, event.GameError, orchestrator.ErrNoGame)
			return
		}
		d.fail(uid, event.GameError, room.SelectWord(uid, index))

	case event.GameLeave:
		d.games.PlayerLeave(uid)

	case event.CanvasStrokeStart, event.CanvasStrokeData, event.CanvasStrokeEnd,
		event.CanvasFill, event.CanvasClear, event.CanvasUndo:
		if !d.limiter(connID).canvas.Allow() {
			return
		}
		d.canvas(uid, env)

	case event.ChatMessage, event.ChatGuess:
		var text string
		if !d.decode(env, &text) {
			return
		}
		text = clip(strings.TrimSpace(text), rules.MaxChatLength)
		if text == "" {
			return
		}
		if !d.limiter(connID).chat.Allow() {
			d.fail(uid, event.ChatError, ErrRateLimited)
			return
		}
		room := d.games.RoomOf(uid)
		if room == nil {
			return
		}
		var err error
		if env.Type == event.ChatGuess {
			_, err = room.Guess(uid, text)
		} else {
			err = room.Chat(uid, text)
		}
		d.fail(uid, event.ChatError, err)

	default:
		d.log.Debug().Str("type", env.Type).Str("player", uid).Msg("unknown command")
	}
}

func (d *Dispatcher) canvas(uid string, env envelope) {
	room := d.games.RoomOf(uid)
	if room == nil {
		return
	}
	var ids struct {
		StrokeID string `json:"strokeId"`
		ActionID string `json:"actionId"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &ids); err != nil {
			return
		}
	}
	id := ids.ActionID
	if id == "" {
		id = ids.StrokeID
	}
	err := room.Canvas(uid, game.CanvasAction{Kind: env.Type, ActionID: id, Data: env.Data})
	if err != nil {
		// Non-drawers are silently ignored; the room is the authority.
		d.log.Debug().Err(err).Str("player", uid).Str("type", env.Type).Msg("canvas action rejected")
	}
}

// decode unmarshals env.Data into v. An absent payload leaves v untouched.
func (d *Dispatcher) decode(env envelope, v any) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		d.log.Debug().Err(err).Str("type", env.Type).Msg("bad payload")
		return false
	}
	return true
}

func (d *Dispatcher) ackLobby(uid, ref string, st lobby.State, err error) {
	if err != nil {
		d.ack(uid, ref, nil, err)
		return
	}
	d.ack(uid, ref, &st, nil)
}

// ack answers a command that carried a ref. Commands without one get no ack.
func (d *Dispatcher) ack(uid, ref string, st *lobby.State, err error) {
	if ref == "" {
		return
	}
	a := ackPayload{Ref: ref, OK: err == nil, Lobby: st}
	if err != nil {
		a.Error = err.Error()
	}
	d.hub.EmitTo(uid, event.New(event.Ack, a))
}

// fail reports err to the player under name.
func (d *Dispatcher) fail(uid, name string, err error) {
	if err == nil {
		return
	}
	d.hub.EmitTo(uid, event.New(name, errorPayload{Message: err.Error()}))
}

func (d *Dispatcher) limiter(connID string) *limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[connID]
	if !ok {
		l = &limiter{
			chat:   rate.NewLimiter(rate.Limit(d.limits.ChatRate), d.limits.ChatBurst),
			canvas: rate.NewLimiter(rate.Limit(d.limits.CanvasRate), d.limits.CanvasBurst),
		}
		d.limiters[connID] = l
	}
	return l
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

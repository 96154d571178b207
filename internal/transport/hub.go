package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sketchroom/internal/event"
	"sketchroom/internal/session"
	"sketchroom/pkg/realtime"
)

const outboundBuffer = 256

// Hub routes events to connections. It implements event.Emitter and
// event.Scopes on top of the session table: scopes hold user ids, and
// delivery resolves each user to their current connection.
//
// Hub never calls back into the game core while it holds its own lock, so
// the core may emit while holding its locks.
type Hub struct {
	sessions *session.Table
	out      *realtime.Broadcaster
	log      zerolog.Logger
	clock    func() time.Time

	mu      sync.RWMutex
	members map[string]map[string]struct{} // scope -> users
	joined  map[string]map[string]struct{} // user -> scopes

	onDisconnect func(session.Session)
}

func NewHub(sessions *session.Table, log zerolog.Logger) *Hub {
	h := &Hub{
		sessions: sessions,
		out:      realtime.NewBroadcaster(outboundBuffer),
		log:      log.With().Str("component", "hub").Logger(),
		clock:    time.Now,
		members:  make(map[string]map[string]struct{}),
		joined:   make(map[string]map[string]struct{}),
	}
	h.out.OnDrop(func(connID string) {
		h.log.Warn().Str("conn", connID).Msg("connection lagging, dropped")
	})
	return h
}

// OnDisconnect registers fn, called once when a user's current connection
// goes away. It is not called for connections replaced by a newer login.
func (h *Hub) OnDisconnect(fn func(session.Session)) {
	h.mu.Lock()
	h.onDisconnect = fn
	h.mu.Unlock()
}

// Attach registers a new connection and returns its outbound queue. The
// queue is closed when the connection is detached, replaced or lagging.
func (h *Hub) Attach(connID string) <-chan []byte {
	return h.out.Subscribe(connID)
}

// Authenticate binds connID to p. A previous connection of the same user is
// cut off without triggering the disconnect hook.
func (h *Hub) Authenticate(connID string, p session.Profile) {
	if replaced := h.sessions.Bind(connID, p, h.clock()); replaced != "" {
		h.log.Info().Str("player", p.UserID).Str("conn", replaced).Msg("connection replaced")
		h.out.Unsubscribe(replaced)
	}
}

// Detach forgets connID. When it was the user's current connection the user
// leaves every scope and the disconnect hook runs.
func (h *Hub) Detach(connID string) {
	h.out.Unsubscribe(connID)
	s, current := h.sessions.Remove(connID)
	if !current {
		return
	}
	h.mu.RLock()
	fn := h.onDisconnect
	h.mu.RUnlock()
	if fn != nil {
		fn(s)
	}
	h.leaveAll(s.Profile.UserID)
}

func (h *Hub) Broadcast(scope string, e event.Event, exceptUserID string) {
	msg, ok := h.encode(e)
	if !ok {
		return
	}
	h.mu.RLock()
	users := make([]string, 0, len(h.members[scope]))
	for u := range h.members[scope] {
		if u != exceptUserID {
			users = append(users, u)
		}
	}
	h.mu.RUnlock()
	for _, u := range users {
		h.sendUser(u, msg)
	}
}

func (h *Hub) EmitTo(userID string, e event.Event) {
	if msg, ok := h.encode(e); ok {
		h.sendUser(userID, msg)
	}
}

// EmitConn sends e to one connection, authenticated or not.
func (h *Hub) EmitConn(connID string, e event.Event) {
	if msg, ok := h.encode(e); ok {
		h.out.Send(connID, msg)
	}
}

func (h *Hub) sendUser(userID string, msg []byte) {
	if connID, ok := h.sessions.ConnOf(userID); ok {
		h.out.Send(connID, msg)
	}
}

func (h *Hub) encode(e event.Event) ([]byte, bool) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("event", e.Name).Msg("event not encodable")
		return nil, false
	}
	return msg, true
}

func (h *Hub) Join(userID, scope string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	add(h.members, scope, userID)
	add(h.joined, userID, scope)
}

func (h *Hub) Leave(userID, scope string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	remove(h.members, scope, userID)
	remove(h.joined, userID, scope)
}

func (h *Hub) leaveAll(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for scope := range h.joined[userID] {
		remove(h.members, scope, userID)
	}
	delete(h.joined, userID)
}

// InScope reports whether userID currently belongs to scope.
func (h *Hub) InScope(userID, scope string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.members[scope][userID]
	return ok
}

// Online returns the number of authenticated connections.
func (h *Hub) Online() int { return h.sessions.Len() }

func add(m map[string]map[string]struct{}, k, v string) {
	set, ok := m[k]
	if !ok {
		set = make(map[string]struct{})
		m[k] = set
	}
	set[v] = struct{}{}
}

func remove(m map[string]map[string]struct{}, k, v string) {
	if set, ok := m[k]; ok {
		delete(set, v)
		if len(set) == 0 {
			delete(m, k)
		}
	}
}

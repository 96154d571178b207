// Package session tracks authenticated connections. Identity lives in an
// explicit table keyed by connection id instead of on the transport object.
package session

import (
	"sync"
	"time"
)

// Profile is the player identity snapshot taken at authentication time.
type Profile struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	WorldRank   *int   `json:"worldRank,omitempty"`
}

// Name returns the display name, falling back to the username.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}

type Session struct {
	ConnID          string
	Profile         Profile
	AuthenticatedAt time.Time
}

// Table maps connection ids to sessions and users to their current connection.
// A user has at most one current connection; binding a new one replaces it.
type Table struct {
	mu     sync.RWMutex
	byConn map[string]*Session
	byUser map[string]string
}

func NewTable() *Table {
	return &Table{
		byConn: make(map[string]*Session),
		byUser: make(map[string]string),
	}
}

// Bind records an authenticated session for connID. It returns the id of the
// user's previous connection when one was replaced.
func (t *Table) Bind(connID string, p Profile, now time.Time) (replaced string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.byConn[connID]; ok && old.Profile.UserID != p.UserID {
		if t.byUser[old.Profile.UserID] == connID {
			delete(t.byUser, old.Profile.UserID)
		}
	}
	if prev, ok := t.byUser[p.UserID]; ok && prev != connID {
		replaced = prev
		delete(t.byConn, prev)
	}
	t.byConn[connID] = &Session{ConnID: connID, Profile: p, AuthenticatedAt: now}
	t.byUser[p.UserID] = connID
	return replaced
}

func (t *Table) Lookup(connID string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byConn[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ConnOf returns the user's current connection id.
func (t *Table) ConnOf(userID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byUser[userID]
	return c, ok
}

// Remove drops connID. current is true when it was the user's current
// connection, i.e. the user is now offline.
func (t *Table) Remove(connID string) (s Session, current bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.byConn[connID]
	if !ok {
		return Session{}, false
	}
	delete(t.byConn, connID)
	if t.byUser[sess.Profile.UserID] == connID {
		delete(t.byUser, sess.Profile.UserID)
		current = true
	}
	return *sess, current
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byConn)
}

// Package lobby owns the pre-game waiting rooms: shareable codes, rosters,
// host rights and the auto-start countdown.
package lobby

import (
	"errors"
	"time"

	"sketchroom/internal/rules"
	"sketchroom/internal/session"
)

var (
	ErrNotFound         = errors.New("lobby not found")
	ErrFull             = errors.New("lobby is full")
	ErrNotWaiting       = errors.New("lobby is not accepting players")
	ErrNotHost          = errors.New("only the host can do that")
	ErrInvalidCode      = errors.New("invalid lobby code")
	ErrNotInLobby       = errors.New("player is not in a lobby")
	ErrCannotKickSelf   = errors.New("the host cannot kick themselves")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrInvalidOptions   = errors.New("invalid lobby options")
	ErrCodeExhausted    = errors.New("could not allocate a lobby code")
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusStarting Status = "starting"
	StatusInGame   Status = "in_game"
	StatusFinished Status = "finished"
)

// Options are chosen by the creator.
type Options struct {
	Mode       rules.Mode `json:"gameMode"`
	MaxPlayers int        `json:"maxPlayers"`
	Private    bool       `json:"isPrivate"`
}

type Player struct {
	session.Profile
	IsHost   bool      `json:"isHost"`
	IsReady  bool      `json:"isReady"`
	JoinedAt time.Time `json:"joinedAt"`
}

// State is a copy of a lobby, players in join order.
type State struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	HostID       string     `json:"hostId"`
	Mode         rules.Mode `json:"gameMode"`
	MaxPlayers   int        `json:"maxPlayers"`
	MinPlayers   int        `json:"minPlayers"`
	Private      bool       `json:"isPrivate"`
	Status       Status     `json:"status"`
	Players      []Player   `json:"players"`
	TimerSeconds *int       `json:"timerSeconds"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Profiles returns the roster identities in join order.
func (s State) Profiles() []session.Profile {
	out := make([]session.Profile, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, p.Profile)
	}
	return out
}

func (s State) Has(userID string) bool {
	for _, p := range s.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

type playerJoinedPayload struct {
	Player Player `json:"player"`
	Lobby  State  `json:"lobby"`
}

type playerLeftPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Kicked   bool   `json:"kicked,omitempty"`
}

type hostChangedPayload struct {
	HostID   string `json:"hostId"`
	Username string `json:"username"`
}

type readyPayload struct {
	UserID  string `json:"userId"`
	IsReady bool   `json:"isReady"`
}

type timerPayload struct {
	Seconds int `json:"seconds"`
}

type kickedPayload struct {
	LobbyID string `json:"lobbyId"`
	Reason  string `json:"reason"`
}

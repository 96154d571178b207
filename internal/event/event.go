// Package event defines the events produced by the game core and the narrow
// connection-layer ports the core emits them through.
package event

import "time"

// Event is one named payload on the wire.
type Event struct {
	Name string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func New(name string, data any) Event {
	return Event{Name: name, Data: data}
}

// Emitter delivers events to connected players by user id.
type Emitter interface {
	// Broadcast sends e to every member of scope except exceptUserID (if non-empty).
	Broadcast(scope string, e Event, exceptUserID string)
	// EmitTo sends e to the player's current connection, if any.
	EmitTo(userID string, e Event)
}

// Scopes manages broadcast-scope membership.
type Scopes interface {
	Join(userID, scope string)
	Leave(userID, scope string)
}

func LobbyScope(lobbyID string) string { return "lobby:" + lobbyID }
func GameScope(roomID string) string   { return "game:" + roomID }

// Now returns the wall-clock timestamp used in payloads, in milliseconds.
func Now() int64 { return time.Now().UnixMilli() }

const (
	// Ack answers a command that carried a ref.
	Ack = "ack"

	AuthToken   = "auth:token"
	AuthSuccess = "auth:success"
	AuthFailure = "auth:failure"

	LobbyCreate        = "lobby:create"
	LobbyJoin          = "lobby:join"
	LobbyLeave         = "lobby:leave"
	LobbyStart         = "lobby:start"
	LobbyReady         = "lobby:ready"
	LobbyKick          = "lobby:kick"
	LobbyPlayerJoined  = "lobby:player_joined"
	LobbyPlayerLeft    = "lobby:player_left"
	LobbyPlayerReady   = "lobby:player_ready"
	LobbyHostChanged   = "lobby:host_changed"
	LobbyTimerStart    = "lobby:timer_start"
	LobbyTimerUpdate   = "lobby:timer_update"
	LobbyTimerCancel   = "lobby:timer_cancel"
	LobbyKicked        = "lobby:kicked"
	LobbyError         = "lobby:error"
	LobbyGameStarted   = "lobby:game_started"
	MatchmakingJoin    = "matchmaking:join"
	MatchmakingLeave   = "matchmaking:leave"
	MatchmakingUpdate  = "matchmaking:queue_update"
	MatchmakingMatched = "matchmaking:match_found"

	GameStarting   = "game:starting"
	GameStarted    = "game:started"
	GameEnded      = "game:ended"
	GameSelectWord = "game:select_word"
	GameLeave      = "game:leave"
	GamePlayerLeft = "game:player_left"
	GameKicked     = "game:kicked"
	GameError      = "game:error"

	RoundStart         = "round:start"
	RoundWordSelection = "round:word_selection"
	RoundWordSelected  = "round:word_selected"
	RoundTimerUpdate   = "round:timer_update"
	RoundHintReveal    = "round:hint_reveal"
	RoundCorrectGuess  = "round:correct_guess"
	RoundEnd           = "round:end"

	CanvasStrokeStart = "canvas:stroke_start"
	CanvasStrokeData  = "canvas:stroke_data"
	CanvasStrokeEnd   = "canvas:stroke_end"
	CanvasFill        = "canvas:fill"
	CanvasClear       = "canvas:clear"
	CanvasUndo        = "canvas:undo"

	ChatMessage      = "chat:message"
	ChatGuess        = "chat:guess"
	ChatCorrectGuess = "chat:correct_guess"
	ChatError        = "chat:error"
)

package game

import (
	"encoding/json"
	"errors"
	"time"

	"sketchroom/internal/rules"
	"sketchroom/internal/session"
	"sketchroom/internal/words"
)

var (
	ErrAlreadyStarted      = errors.New("game already started")
	ErrGameEnded           = errors.New("game has ended")
	ErrNotInGame           = errors.New("player is not in this game")
	ErrNotDrawer           = errors.New("only the drawer can do that")
	ErrWrongPhase          = errors.New("not allowed in the current phase")
	ErrDrawerCannotGuess   = errors.New("the drawer cannot guess")
	ErrNotHost             = errors.New("only the host can kick players")
	ErrCannotKickSelf      = errors.New("the host cannot kick themselves")
	ErrUnknownCanvasAction = errors.New("unknown canvas action")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusStarting Status = "starting"
	StatusPlaying  Status = "in_progress"
	StatusEnded    Status = "completed"
)

type Phase string

const (
	PhaseWordSelection Phase = "word_selection"
	PhaseDrawing       Phase = "drawing"
	PhaseRoundEnd      Phase = "round_end"
)

// Player is a participant's in-game record.
type Player struct {
	session.Profile
	Points              int  `json:"points"`
	CorrectGuesses      int  `json:"correctGuesses"`
	FirstGuesses        int  `json:"firstGuesses"`
	RoundsDrawn         int  `json:"roundsDrawn"`
	IsDrawing           bool `json:"isDrawing"`
	HasGuessedCorrectly bool `json:"hasGuessedCorrectly"`
	IsConnected         bool `json:"isConnected"`
	Kicked              bool `json:"kicked,omitempty"`
}

// RoundState is replaced wholesale at the start of every round. Word is never
// serialised; guessers only ever see MaskedWord.
type RoundState struct {
	RoundNumber       int              `json:"roundNumber"`
	DrawerID          string           `json:"drawerId"`
	Word              string           `json:"-"`
	MaskedWord        string           `json:"maskedWord"`
	Difficulty        rules.Difficulty `json:"difficulty,omitempty"`
	TimeRemaining     int              `json:"timeRemaining"`
	TotalTime         int              `json:"totalTime"`
	HintsRevealed     int              `json:"hintsRevealed"`
	GuessersRemaining int              `json:"guessersRemaining"`
	FirstGuessTime    *int             `json:"firstGuessTime"`
	CorrectGuessers   []string         `json:"correctGuessers"`
	Phase             Phase            `json:"phase"`

	eligible int
	halved   bool // the first guess actually shortened the timer
}

// Guesser is one correct guess in arrival order.
type Guesser struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	Points        int    `json:"points"`
	GuessOrder    int    `json:"guessOrder"`
	TimeRemaining int    `json:"timeRemaining"`
}

// GuessResult is the outcome of evaluating one guess.
type GuessResult struct {
	Correct       bool `json:"correct"`
	Points        int  `json:"points"`
	IsFirst       bool `json:"isFirst"`
	GuessOrder    int  `json:"guessOrder"`
	TimeRemaining int  `json:"timeRemaining"`
}

// CanvasAction is a drawer's canvas command. Data is relayed untouched.
type CanvasAction struct {
	Kind     string          `json:"-"`
	ActionID string          `json:"actionId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// State is a point-in-time view of the room, safe to send to any player.
type State struct {
	ID              string      `json:"id"`
	Mode            rules.Mode  `json:"gameMode"`
	TotalRounds     int         `json:"totalRounds"`
	CurrentRound    int         `json:"currentRound"`
	Status          Status      `json:"status"`
	HostID          string      `json:"hostId"`
	Players         []Player    `json:"players"`
	TurnOrder       []string    `json:"turnOrder"`
	CurrentDrawerID string      `json:"currentDrawerId,omitempty"`
	Round           *RoundState `json:"roundState"`
}

// PlayerResult is one line of the final standings.
type PlayerResult struct {
	session.Profile
	Rank           int  `json:"rank"`
	TotalPoints    int  `json:"totalPoints"`
	CorrectGuesses int  `json:"correctGuesses"`
	FirstGuesses   int  `json:"firstGuesses"`
	RoundsDrawn    int  `json:"roundsDrawn"`
	PointsGained   int  `json:"pointsGained"`
	LeftEarly      bool `json:"leftEarly"`
}

// Results are the final standings, ranked by points with ties in join order.
type Results struct {
	GameID      string         `json:"gameId"`
	Mode        rules.Mode     `json:"gameMode"`
	TotalRounds int            `json:"totalRounds"`
	Duration    int            `json:"duration"`
	Players     []PlayerResult `json:"players"`
	EndedAt     time.Time      `json:"endedAt"`
}

// Winner returns the first-ranked player if they scored at all.
func (r Results) Winner() (PlayerResult, bool) {
	if len(r.Players) == 0 || r.Players[0].TotalPoints <= 0 {
		return PlayerResult{}, false
	}
	return r.Players[0], true
}

// Event payloads.

type startingPayload struct {
	Countdown int `json:"countdown"`
}

type startedPayload struct {
	Game State `json:"game"`
}

type roundStartPayload struct {
	RoundNumber int    `json:"roundNumber"`
	DrawerID    string `json:"drawerId"`
	TotalTime   int    `json:"totalTime"`
}

type wordSelectionPayload struct {
	Choices   []words.Choice `json:"choices"`
	TimeLimit int            `json:"timeLimit"`
}

type wordSelectedPayload struct {
	Difficulty rules.Difficulty `json:"difficulty"`
	WordLength int              `json:"wordLength"`
	MaskedWord string           `json:"maskedWord"`
}

type hintPayload struct {
	MaskedWord    string `json:"maskedWord"`
	HintsRevealed int    `json:"hintsRevealed"`
}

type timerPayload struct {
	TimeRemaining int  `json:"timeRemaining"`
	TimerHalved   bool `json:"timerHalved"`
}

type correctGuessPayload struct {
	UserID            string `json:"userId"`
	Username          string `json:"username"`
	Points            int    `json:"points"`
	IsFirst           bool   `json:"isFirst"`
	GuessOrder        int    `json:"guessOrder"`
	GuessersRemaining int    `json:"guessersRemaining"`
}

type scoreLine struct {
	UserID      string `json:"userId"`
	TotalPoints int    `json:"totalPoints"`
}

type roundEndPayload struct {
	RoundNumber  int         `json:"roundNumber"`
	Word         string      `json:"word"`
	DrawerID     string      `json:"drawerId"`
	DrawerPoints int         `json:"drawerPoints"`
	Guessers     []Guesser   `json:"guessers"`
	Scores       []scoreLine `json:"scores"`
}

type endedPayload struct {
	Results Results `json:"results"`
}

type playerLeftPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Kicked   bool   `json:"kicked,omitempty"`
}

type canvasPayload struct {
	UserID    string          `json:"userId"`
	ActionID  string          `json:"actionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type chatPayload struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	IsSystem  bool   `json:"isSystem"`
}

type guessPayload struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Guess     string `json:"guess"`
	Timestamp int64  `json:"timestamp"`
}

type chatCorrectPayload struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Points    int    `json:"points"`
	IsFirst   bool   `json:"isFirst"`
	Timestamp int64  `json:"timestamp"`
}

// Package rules holds the gameplay tables shared by the lobby, matchmaking and
// game room components.
package rules

import (
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	ModeNormal Mode = "normal"
	ModeQuick  Mode = "quick"
)

// Modes lists every playable mode in a stable order.
var Modes = []Mode{ModeNormal, ModeQuick}

// ModeSettings describes one game mode.
type ModeSettings struct {
	RoundsPerPlayer   int
	MaxPoints         int
	DrawingTime       int // seconds
	WordSelectionTime int // seconds
}

var modeTable = map[Mode]ModeSettings{
	ModeNormal: {RoundsPerPlayer: 3, MaxPoints: 500, DrawingTime: 90, WordSelectionTime: 15},
	ModeQuick:  {RoundsPerPlayer: 2, MaxPoints: 300, DrawingTime: 60, WordSelectionTime: 10},
}

// Settings returns the table entry for m. Unknown modes fall back to normal.
func (m Mode) Settings() ModeSettings {
	if s, ok := modeTable[m]; ok {
		return s
	}
	return modeTable[ModeNormal]
}

func (m Mode) Valid() bool {
	_, ok := modeTable[m]
	return ok
}

// ParseMode accepts a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown game mode %q", s)
	}
	return m, nil
}

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties is the order word choices are offered in; index 0 is the
// auto-selected choice.
var Difficulties = []Difficulty{Easy, Medium, Hard}

func (d Difficulty) Valid() bool {
	return d == Easy || d == Medium || d == Hard
}

// Scoring weights.
var (
	DifficultyMultipliers = map[Difficulty]float64{
		Easy:   0.6,
		Medium: 0.8,
		Hard:   1.0,
	}
	DrawerPointsRatio = 0.5
	MinGuesserPoints  = 1
)

// Round timing.
var (
	// HintRevealTimes are seconds remaining at which another hint is due.
	HintRevealTimes      = []int{60, 40, 20}
	HalveOnFirstGuess    = true
	MinTimeAfterHalve    = 15
	RoundEndDelay        = 5 * time.Second
	GameStartCountdown   = 5 * time.Second
	DefaultWordFetchWait = 1500 * time.Millisecond
)

// Lobby limits.
const (
	MinPlayers        = 2
	MaxPlayers        = 8
	DefaultMaxPlayers = 8
	WaitTimerSeconds  = 30
	CodeLength        = 8
	CodeAlphabet      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

const MaxChatLength = 200

// Package scoring converts guess timing and word difficulty into points.
// Everything here is pure; all fractional results are floored.
package scoring

import (
	"math"

	"sketchroom/internal/rules"
)

// Config holds the weights used by Engine.
type Config struct {
	Multipliers      map[rules.Difficulty]float64
	DrawerRatio      float64
	MinGuesserPoints int
}

// DefaultConfig returns the weights from the gameplay tables.
func DefaultConfig() Config {
	m := make(map[rules.Difficulty]float64, len(rules.DifficultyMultipliers))
	for d, v := range rules.DifficultyMultipliers {
		m[d] = v
	}
	return Config{
		Multipliers:      m,
		DrawerRatio:      rules.DrawerPointsRatio,
		MinGuesserPoints: rules.MinGuesserPoints,
	}
}

type Engine struct {
	cfg Config
}

func New(cfg Config) Engine {
	return Engine{cfg: cfg}
}

func (e Engine) base(maxPoints int, d rules.Difficulty) float64 {
	return float64(maxPoints) * e.cfg.Multipliers[d]
}

// GuesserPoints scores a correct guess. The first guesser always gets the full
// difficulty-scaled base; later guessers are scored against half of the time
// that remained when the first guess landed.
func (e Engine) GuesserPoints(guessOrder, timeRemaining, firstGuessTime, maxPoints int, d rules.Difficulty) int {
	base := e.base(maxPoints, d)
	if guessOrder == 1 {
		return floor(base)
	}
	if firstGuessTime <= 0 {
		return floor(base * 0.5)
	}
	reference := float64(firstGuessTime) / 2
	proportion := math.Max(0, float64(timeRemaining)/reference)
	return max(e.cfg.MinGuesserPoints, floor(proportion*base))
}

// DrawerPoints rewards the drawer in proportion to how many eligible guessers
// solved the word.
func (e Engine) DrawerPoints(totalGuessers, maxGuessers, maxPoints int, d rules.Difficulty) int {
	if totalGuessers == 0 || maxGuessers == 0 {
		return 0
	}
	proportion := float64(totalGuessers) / float64(maxGuessers)
	return floor(proportion * e.base(maxPoints, d) * e.cfg.DrawerRatio)
}

func floor(v float64) int {
	return int(math.Floor(v))
}

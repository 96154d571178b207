// Package words supplies the per-round word choices.
package words

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sketchroom/internal/rules"
)

// Entry is one word as kept by a store or the embedded bank.
type Entry struct {
	Word       string
	Difficulty rules.Difficulty
	Category   string
	Active     bool
}

// Choice is one option offered to the drawer.
type Choice struct {
	Word       string           `json:"word"`
	Difficulty rules.Difficulty `json:"difficulty"`
	Category   string           `json:"category"`
}

// Store is the queryable word store.
type Store interface {
	CountActive(ctx context.Context, d rules.Difficulty) (int, error)
	ActiveWords(ctx context.Context, d rules.Difficulty, limit, offset int) ([]Entry, error)
}

var errNoWords = errors.New("no active words")

// Source picks one word per difficulty, preferring the store and falling back
// to the embedded bank on any failure.
type Source struct {
	store   Store
	bank    Bank
	timeout time.Duration
	log     zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource builds a Source. store may be nil, in which case only the bank is used.
func NewSource(store Store, bank Bank, timeout time.Duration, log zerolog.Logger) *Source {
	if timeout <= 0 {
		timeout = rules.DefaultWordFetchWait
	}
	return &Source{
		store:   store,
		bank:    bank,
		timeout: timeout,
		log:     log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Choices returns exactly one choice per difficulty, in rules.Difficulties order.
func (s *Source) Choices(ctx context.Context) []Choice {
	if s.store != nil {
		choices, err := s.fromStore(ctx)
		if err == nil {
			return choices
		}
		s.log.Warn().Err(err).Msg("word store unavailable, using embedded bank")
	}
	return s.fromBank()
}

func (s *Source) fromStore(ctx context.Context) ([]Choice, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	choices := make([]Choice, 0, len(rules.Difficulties))
	for _, d := range rules.Difficulties {
		n, err := s.store.CountActive(ctx, d)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errNoWords
		}
		entries, err := s.store.ActiveWords(ctx, d, 1, s.intn(n))
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errNoWords
		}
		e := entries[0]
		choices = append(choices, Choice{Word: e.Word, Difficulty: d, Category: e.Category})
	}
	return choices, nil
}

func (s *Source) fromBank() []Choice {
	s.mu.Lock()
	defer s.mu.Unlock()
	choices := make([]Choice, 0, len(rules.Difficulties))
	for _, d := range rules.Difficulties {
		e, ok := s.bank.Pick(d, s.rng)
		if !ok {
			continue
		}
		choices = append(choices, Choice{Word: e.Word, Difficulty: d, Category: e.Category})
	}
	return choices
}

func (s *Source) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

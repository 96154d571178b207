package main

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchroom/internal/rules"
	"sketchroom/internal/words"
)

type fakeGenerator struct {
	fail  map[rules.Difficulty]bool
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, d rules.Difficulty, category string, count int) ([]words.Entry, error) {
	g.calls++
	if g.fail[d] {
		return nil, errors.New("quota exceeded")
	}
	return []words.Entry{{Word: category + "-" + string(d), Difficulty: d, Category: category, Active: true}}, nil
}

type fakeSeeder struct {
	stored []words.Entry
}

func (s *fakeSeeder) SeedWords(_ context.Context, entries []words.Entry) (int, error) {
	s.stored = append(s.stored, entries...)
	return len(entries), nil
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-generate", "-categories", " food, ,sports ", "-count", "5"})
	require.NoError(t, err)
	assert.True(t, opts.generate)
	assert.Equal(t, []string{"food", "sports"}, opts.categories)
	assert.Equal(t, 5, opts.count)

	_, err = parseFlags([]string{"-count", "0"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-generate", "-categories", ""})
	assert.Error(t, err)
}

func TestGenerate_SkipsFailedRequests(t *testing.T) {
	gen := &fakeGenerator{fail: map[rules.Difficulty]bool{rules.Hard: true}}
	store := &fakeSeeder{}
	opts := options{categories: []string{"food", "sports"}, count: 3}

	require.NoError(t, generate(context.Background(), gen, store, opts, zerolog.Nop()))
	assert.Equal(t, 6, gen.calls)
	require.Len(t, store.stored, 4)
	for _, e := range store.stored {
		assert.NotEqual(t, rules.Hard, e.Difficulty)
	}
}

func TestGenerate_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{fail: map[rules.Difficulty]bool{rules.Easy: true}}
	err := generate(ctx, gen, &fakeSeeder{}, options{categories: []string{"food"}, count: 1}, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.calls)
}

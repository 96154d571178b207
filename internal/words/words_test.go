package words

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sketchroom/internal/rules"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CountActive(ctx context.Context, d rules.Difficulty) (int, error) {
	args := m.Called(ctx, d)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ActiveWords(ctx context.Context, d rules.Difficulty, limit, offset int) ([]Entry, error) {
	args := m.Called(ctx, d, limit, offset)
	entries, _ := args.Get(0).([]Entry)
	return entries, args.Error(1)
}

func TestLoadBank(t *testing.T) {
	b, err := LoadBank()
	require.NoError(t, err)
	for _, d := range rules.Difficulties {
		assert.NotEmpty(t, b[d], "difficulty %s", d)
		for _, e := range b[d] {
			assert.Equal(t, d, e.Difficulty)
			assert.NotEmpty(t, e.Category, "word %q", e.Word)
			assert.NotContains(t, e.Word, "#")
		}
	}
	assert.Len(t, b.All(), len(b[rules.Easy])+len(b[rules.Medium])+len(b[rules.Hard]))
}

func TestParseBank(t *testing.T) {
	got := parseBank("# header\n\n Cat ,animals\nhot air balloon,vehicles\n,empty\n", rules.Easy)
	require.Len(t, got, 2)
	assert.Equal(t, "cat", got[0].Word)
	assert.Equal(t, "animals", got[0].Category)
	assert.Equal(t, "hot air balloon", got[1].Word)
}

func TestSource_BankOnly(t *testing.T) {
	s := NewSource(nil, MustLoadBank(), 0, zerolog.Nop())
	choices := s.Choices(context.Background())
	require.Len(t, choices, 3)
	for i, d := range rules.Difficulties {
		assert.Equal(t, d, choices[i].Difficulty)
		assert.NotEmpty(t, choices[i].Word)
	}
}

func TestSource_PrefersStore(t *testing.T) {
	store := new(mockStore)
	for _, d := range rules.Difficulties {
		store.On("CountActive", mock.Anything, d).Return(1, nil)
		store.On("ActiveWords", mock.Anything, d, 1, 0).
			Return([]Entry{{Word: "stored-" + string(d), Difficulty: d, Category: "db"}}, nil)
	}

	s := NewSource(store, MustLoadBank(), 0, zerolog.Nop())
	choices := s.Choices(context.Background())

	require.Len(t, choices, 3)
	assert.Equal(t, "stored-easy", choices[0].Word)
	assert.Equal(t, "stored-medium", choices[1].Word)
	assert.Equal(t, "stored-hard", choices[2].Word)
	store.AssertExpectations(t)
}

func TestSource_FallsBackOnStoreError(t *testing.T) {
	store := new(mockStore)
	store.On("CountActive", mock.Anything, rules.Easy).Return(0, errors.New("connection refused"))

	bank := Bank{
		rules.Easy:   {{Word: "cat", Difficulty: rules.Easy, Category: "animals"}},
		rules.Medium: {{Word: "castle", Difficulty: rules.Medium, Category: "places"}},
		rules.Hard:   {{Word: "eclipse", Difficulty: rules.Hard, Category: "nature"}},
	}
	s := NewSource(store, bank, 0, zerolog.Nop())
	choices := s.Choices(context.Background())

	assert.Equal(t, []Choice{
		{Word: "cat", Difficulty: rules.Easy, Category: "animals"},
		{Word: "castle", Difficulty: rules.Medium, Category: "places"},
		{Word: "eclipse", Difficulty: rules.Hard, Category: "nature"},
	}, choices)
}

func TestSource_FallsBackWhenTierEmpty(t *testing.T) {
	store := new(mockStore)
	store.On("CountActive", mock.Anything, rules.Easy).Return(4, nil)
	store.On("ActiveWords", mock.Anything, rules.Easy, 1, mock.Anything).
		Return([]Entry{{Word: "dog", Difficulty: rules.Easy}}, nil)
	store.On("CountActive", mock.Anything, rules.Medium).Return(0, nil)

	bank := Bank{
		rules.Easy:   {{Word: "sun", Difficulty: rules.Easy, Category: "nature"}},
		rules.Medium: {{Word: "castle", Difficulty: rules.Medium, Category: "places"}},
		rules.Hard:   {{Word: "eclipse", Difficulty: rules.Hard, Category: "nature"}},
	}
	s := NewSource(store, bank, 0, zerolog.Nop())
	choices := s.Choices(context.Background())

	require.Len(t, choices, 3)
	assert.Equal(t, "sun", choices[0].Word)
	assert.Equal(t, "castle", choices[1].Word)
}

func TestParseGenerated(t *testing.T) {
	got, err := parseGenerated(`{"words": ["Hot  Air Balloon", "hot air balloon", "R2D2", "kite", "a b c d"]}`, rules.Hard, "vehicles")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hot air balloon", got[0].Word)
	assert.Equal(t, "kite", got[1].Word)
	assert.Equal(t, rules.Hard, got[1].Difficulty)
	assert.Equal(t, "vehicles", got[1].Category)

	_, err = parseGenerated("", rules.Easy, "x")
	assert.Error(t, err)
	_, err = parseGenerated("not json", rules.Easy, "x")
	assert.Error(t, err)
}

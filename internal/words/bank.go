package words

import (
	"embed"
	"fmt"
	"io/fs"
	"math/rand"
	"strings"

	"sketchroom/internal/rules"
)

//go:embed bank/*.txt
var bankFS embed.FS

// Bank is a static word list partitioned by difficulty.
type Bank map[rules.Difficulty][]Entry

// LoadBank reads the embedded word list. Lines are "word,category"; blank
// lines and lines starting with # are skipped.
func LoadBank() (Bank, error) {
	b := make(Bank, len(rules.Difficulties))
	for _, d := range rules.Difficulties {
		raw, err := fs.ReadFile(bankFS, "bank/"+string(d)+".txt")
		if err != nil {
			return nil, fmt.Errorf("read %s words: %w", d, err)
		}
		b[d] = parseBank(string(raw), d)
		if len(b[d]) == 0 {
			return nil, fmt.Errorf("no %s words in bank", d)
		}
	}
	return b, nil
}

// MustLoadBank is LoadBank for process start-up.
func MustLoadBank() Bank {
	b, err := LoadBank()
	if err != nil {
		panic(err)
	}
	return b
}

func parseBank(raw string, d rules.Difficulty) []Entry {
	var out []Entry
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		word, category, _ := strings.Cut(line, ",")
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		out = append(out, Entry{
			Word:       word,
			Difficulty: d,
			Category:   strings.TrimSpace(category),
			Active:     true,
		})
	}
	return out
}

// Pick returns a uniformly random entry for d.
func (b Bank) Pick(d rules.Difficulty, rng *rand.Rand) (Entry, bool) {
	pool := b[d]
	if len(pool) == 0 {
		return Entry{}, false
	}
	return pool[rng.Intn(len(pool))], true
}

// All returns every entry, easy first.
func (b Bank) All() []Entry {
	var out []Entry
	for _, d := range rules.Difficulties {
		out = append(out, b[d]...)
	}
	return out
}

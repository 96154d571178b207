package game

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMaskWord(t *testing.T) {
	tests := []struct {
		word  string
		hints int
		want  string
	}{
		{"cat", 0, "___"},
		{"cat", 1, "c__"},
		{"cat", 3, "c__"},
		{"ox", 2, "__"},
		{"hot dog", 0, "___ ___"},
		{"hot dog", 1, "h__ ___"},
		{"hot dog", 2, "h__ d__"},
		{"elephant", 1, "e_______"},
		{"elephant", 3, "e___h___"},
		{"", 2, ""},
	}
	for _, tt := range tests {
		if got := MaskWord(tt.word, tt.hints); got != tt.want {
			t.Errorf("MaskWord(%q, %d) = %q, want %q", tt.word, tt.hints, got, tt.want)
		}
	}
}

func TestMaskWord_RevealsOnlyGrow(t *testing.T) {
	for _, word := range []string{"elephant", "hot air balloon", "lighthouse", "ice cream cone", "xylophone"} {
		prev := MaskWord(word, 0)
		for hints := 1; hints <= 8; hints++ {
			cur := MaskWord(word, hints)
			if len(cur) != len(word) {
				t.Fatalf("MaskWord(%q, %d) changed length", word, hints)
			}
			for i := range prev {
				if prev[i] != placeholder && prev[i] != cur[i] {
					t.Errorf("%q: hint %d hid position %d again (%q -> %q)", word, hints, i, prev, cur)
				}
			}
			prev = cur
		}
	}
}

func TestRevealOrder(t *testing.T) {
	if diff := cmp.Diff([]int{0, 4, 2, 6, 1, 5, 3, 7, 8}, revealOrder(9)); diff != "" {
		t.Errorf("revealOrder(9) (-want +got):\n%s", diff)
	}
	for n := 0; n <= 40; n++ {
		order := revealOrder(n)
		if len(order) != n {
			t.Fatalf("revealOrder(%d) has %d entries", n, len(order))
		}
		seen := make([]bool, n)
		for _, p := range order {
			if p < 0 || p >= n || seen[p] {
				t.Fatalf("revealOrder(%d) = %v is not a permutation", n, order)
			}
			seen[p] = true
		}
	}
}

func TestHintsDue(t *testing.T) {
	for remaining, want := range map[int]int{90: 0, 61: 0, 60: 1, 41: 1, 40: 2, 20: 3, 0: 3} {
		if got := hintsDue(remaining); got != want {
			t.Errorf("hintsDue(%d) = %d, want %d", remaining, got, want)
		}
	}
}

package game

import "sketchroom/internal/rules"

const placeholder = '_'

// MaskWord hides every non-space character of word except the letters
// uncovered by hints. At most a third of the letters are ever shown. The
// revealed set only grows with hints, so repeated calls never re-hide a letter.
func MaskWord(word string, hints int) string {
	runes := []rune(word)
	letters := make([]int, 0, len(runes))
	for i, c := range runes {
		if c != ' ' {
			letters = append(letters, i)
		}
	}

	show := 0
	if hints > 0 {
		show = min(hints, len(letters)/3)
	}
	revealed := make(map[int]bool, show)
	for _, li := range revealOrder(len(letters))[:show] {
		revealed[letters[li]] = true
	}

	out := make([]rune, len(runes))
	for i, c := range runes {
		switch {
		case c == ' ':
			out[i] = ' '
		case revealed[i]:
			out[i] = c
		default:
			out[i] = placeholder
		}
	}
	return string(out)
}

// revealOrder returns 0..n-1 in bit-reversed (van der Corput) order scaled to
// n, e.g. 0, n/2, n/4, 3n/4, ... Every prefix is spread evenly over the word.
func revealOrder(n int) []int {
	if n <= 0 {
		return nil
	}
	m, bits := 1, 0
	for m < n {
		m <<= 1
		bits++
	}
	order := make([]int, 0, n)
	seen := make([]bool, n)
	for i := 0; i < m && len(order) < n; i++ {
		pos := reverseBits(i, bits) * n / m
		if !seen[pos] {
			seen[pos] = true
			order = append(order, pos)
		}
	}
	return order
}

func reverseBits(v, bits int) int {
	r := 0
	for i := 0; i < bits; i++ {
		r = r<<1 | v&1
		v >>= 1
	}
	return r
}

// hintsDue counts the reveal thresholds already reached.
func hintsDue(timeRemaining int) int {
	n := 0
	for _, t := range rules.HintRevealTimes {
		if timeRemaining <= t {
			n++
		}
	}
	return n
}

package lobby

import (
	"crypto/rand"
	"math/big"
	"strings"

	"sketchroom/internal/rules"
)

const codeAttempts = 32

var alphabetSize = big.NewInt(int64(len(rules.CodeAlphabet)))

func newCode() (string, error) {
	var b strings.Builder
	b.Grow(rules.CodeLength)
	for i := 0; i < rules.CodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(rules.CodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode upper-cases code and checks its length and alphabet.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != rules.CodeLength {
		return "", ErrInvalidCode
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(rules.CodeAlphabet, code[i]) < 0 {
			return "", ErrInvalidCode
		}
	}
	return code, nil
}

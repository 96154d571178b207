package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchroom/internal/session"
)

const testSecret = "a test secret that is comfortably longer than 32 bytes"

var alice = session.Profile{UserID: "u-1", Username: "alice", DisplayName: "Alice", CountryCode: "FR"}

func TestGenerate(t *testing.T) {
	m := NewJWTManager(testSecret, time.Hour)
	now := time.Now()
	token, err := m.Generate(alice, now)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	head, _ := base64.RawURLEncoding.DecodeString(parts[0])
	body, _ := base64.RawURLEncoding.DecodeString(parts[1])
	sig, _ := base64.RawURLEncoding.DecodeString(parts[2])

	assert.JSONEq(t, `{"alg":"HS256","typ":"JWT"}`, string(head))
	assert.JSONEq(t, fmt.Sprintf(
		`{"sub":"u-1","username":"alice","displayName":"Alice","countryCode":"FR","iat":%d,"exp":%d}`,
		now.Unix(), now.Add(time.Hour).Unix()), string(body))
	assert.Len(t, sig, 256/8)
}

func TestVerify(t *testing.T) {
	m := NewJWTManager(testSecret, 2*time.Hour)
	now := time.Now()

	token, _ := m.Generate(alice, now.Add(-3*time.Hour))
	_, err := m.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	token, _ = m.Generate(alice, now.Add(-time.Hour))
	p, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, alice, p)

	_, err = m.Verify(token + "lol")
	assert.ErrorIs(t, err, ErrInvalidTokenSignature)

	parts := strings.Split(token, ".")
	es512 := "eyJhbGciOiJFUzUxMiIsInR5cCI6IkpXVCJ9." + parts[1] + "." + parts[2]
	_, err = m.Verify(es512)
	assert.ErrorIs(t, err, ErrInvalidSigningAlg)

	none := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." + parts[1] + "."
	_, err = m.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidSigningAlg)

	_, err = m.Verify("stemretmretm")
	assert.ErrorIs(t, err, ErrCorruptedToken)

	other := NewJWTManager("a different secret that is also long enough", time.Hour)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidTokenSignature)
}

func TestVerify_RequiresIdentity(t *testing.T) {
	m := NewJWTManager(testSecret, time.Hour)
	token, err := m.Generate(session.Profile{Username: "ghost"}, time.Now())
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

type rankStub struct {
	rank int
	ok   bool
	err  error
}

func (r rankStub) WorldRank(context.Context, string) (int, bool, error) {
	return r.rank, r.ok, r.err
}

func TestAuthenticator(t *testing.T) {
	m := NewJWTManager(testSecret, time.Hour)
	token, _ := m.Generate(alice, time.Now())

	p, err := NewAuthenticator(m, rankStub{rank: 7, ok: true}, zerolog.Nop()).Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, p.WorldRank)
	assert.Equal(t, 7, *p.WorldRank)

	p, err = NewAuthenticator(m, rankStub{err: errors.New("db down")}, zerolog.Nop()).Authenticate(context.Background(), token)
	require.NoError(t, err, "rank lookup failures must not block login")
	assert.Nil(t, p.WorldRank)

	p, err = NewAuthenticator(m, nil, zerolog.Nop()).Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	_, err = NewAuthenticator(m, nil, zerolog.Nop()).Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrCorruptedToken)
}

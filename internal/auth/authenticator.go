package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sketchroom/internal/session"
)

const rankLookupTimeout = time.Second

// RankLookup finds a player's current world rank.
type RankLookup interface {
	WorldRank(ctx context.Context, userID string) (rank int, ok bool, err error)
}

// Authenticator verifies tokens and fills in the player's world rank when a
// lookup is configured. A failed lookup never fails authentication.
type Authenticator struct {
	jwt   *JWTManager
	ranks RankLookup
	log   zerolog.Logger
}

func NewAuthenticator(m *JWTManager, ranks RankLookup, log zerolog.Logger) *Authenticator {
	return &Authenticator{jwt: m, ranks: ranks, log: log.With().Str("component", "auth").Logger()}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (session.Profile, error) {
	p, err := a.jwt.Verify(token)
	if err != nil {
		return session.Profile{}, err
	}
	if a.ranks == nil {
		return p, nil
	}
	ctx, cancel := context.WithTimeout(ctx, rankLookupTimeout)
	defer cancel()
	rank, ok, err := a.ranks.WorldRank(ctx, p.UserID)
	switch {
	case err != nil:
		a.log.Warn().Err(err).Str("player", p.UserID).Msg("world rank lookup failed")
	case ok:
		p.WorldRank = &rank
	}
	return p, nil
}

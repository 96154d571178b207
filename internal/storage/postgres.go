// Package storage keeps the word list and player statistics in PostgreSQL.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sketchroom/internal/game"
	"sketchroom/internal/rules"
	"sketchroom/internal/words"
)

var ErrUnexpectedDatabase = errors.New("unexpected database error")

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Ping(ctx context.Context) error {
	return wrap(p.pool.Ping(ctx))
}

// wrap tags driver errors with ErrUnexpectedDatabase. Context errors pass
// through untouched so callers can tell a timeout from a broken database.
func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
}

func (p *Postgres) CountActive(ctx context.Context, d rules.Difficulty) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM words WHERE difficulty = $1 AND is_active", string(d)).Scan(&n)
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func (p *Postgres) ActiveWords(ctx context.Context, d rules.Difficulty, limit, offset int) ([]words.Entry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT word, category FROM words
		 WHERE difficulty = $1 AND is_active
		 ORDER BY id LIMIT $2 OFFSET $3`, string(d), limit, offset)
	if err != nil {
		return nil, wrap(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (words.Entry, error) {
		e := words.Entry{Difficulty: d, Active: true}
		err := row.Scan(&e.Word, &e.Category)
		return e, err
	})
	if err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

// SeedWords inserts entries, skipping words that already exist. It returns
// how many rows were added.
func (p *Postgres) SeedWords(ctx context.Context, entries []words.Entry) (int, error) {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO words (word, difficulty, category, is_active)
			 VALUES ($1, $2, $3, $4) ON CONFLICT (word) DO NOTHING`,
			e.Word, string(e.Difficulty), e.Category, e.Active)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()

	added := 0
	for range entries {
		tag, err := br.Exec()
		if err != nil {
			return added, wrap(err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

// WorldRank returns userID's rank. ok is false for players who have no
// statistics yet.
func (p *Postgres) WorldRank(ctx context.Context, userID string) (int, bool, error) {
	var rank *int
	err := p.pool.QueryRow(ctx,
		"SELECT world_rank FROM player_stats WHERE user_id = $1", userID).Scan(&rank)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, wrap(err)
	case rank == nil:
		return 0, false, nil
	}
	return *rank, true, nil
}

const upsertStats = `
INSERT INTO player_stats (user_id, username, country_code, games_played, games_won, total_points)
VALUES ($1, $2, NULLIF($3, ''), 1, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
    username     = EXCLUDED.username,
    country_code = COALESCE(EXCLUDED.country_code, player_stats.country_code),
    games_played = player_stats.games_played + 1,
    games_won    = player_stats.games_won + EXCLUDED.games_won,
    total_points = player_stats.total_points + EXCLUDED.total_points,
    updated_at   = NOW()`

const recomputeRanks = `
WITH ranked AS (
    SELECT user_id,
           ROW_NUMBER() OVER (ORDER BY total_points DESC, games_won DESC, user_id) AS world_rank,
           CASE WHEN country_code IS NULL THEN NULL
                ELSE ROW_NUMBER() OVER (PARTITION BY country_code ORDER BY total_points DESC, games_won DESC, user_id)
           END AS country_rank
    FROM player_stats
)
UPDATE player_stats ps
SET world_rank = r.world_rank, country_rank = r.country_rank
FROM ranked r
WHERE ps.user_id = r.user_id
  AND (ps.world_rank IS DISTINCT FROM r.world_rank OR ps.country_rank IS DISTINCT FROM r.country_rank)`

// ErrRankRecompute reports that statistics were saved but ranks were not.
// The next successful recompute catches them up.
var ErrRankRecompute = errors.New("rank recompute failed")

// RecordGame stores a finished game and folds it into every player's
// statistics, then recomputes world and country ranks as a separate write.
// A game id that was already recorded only triggers the recompute.
func (p *Postgres) RecordGame(ctx context.Context, res game.Results) error {
	if err := p.recordStats(ctx, res); err != nil {
		return err
	}
	if err := p.RecomputeRanks(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRankRecompute, err)
	}
	return nil
}

func (p *Postgres) recordStats(ctx context.Context, res game.Results) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	var winnerID *string
	if w, ok := res.Winner(); ok {
		winnerID = &w.UserID
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return wrap(err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO games (id, mode, total_rounds, duration, winner_id, results, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		res.GameID, string(res.Mode), res.TotalRounds, res.Duration, winnerID, body, res.EndedAt)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	for _, pr := range res.Players {
		won := 0
		if winnerID != nil && *winnerID == pr.UserID {
			won = 1
		}
		if _, err := tx.Exec(ctx, upsertStats, pr.UserID, pr.Username, pr.CountryCode, won, pr.TotalPoints); err != nil {
			return wrap(err)
		}
	}
	return wrap(tx.Commit(ctx))
}

// RecomputeRanks rewrites world and country ranks from total points.
func (p *Postgres) RecomputeRanks(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, recomputeRanks)
	return wrap(err)
}

// PlayerStats is one row of the statistics table.
type PlayerStats struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	CountryCode string `json:"countryCode,omitempty"`
	GamesPlayed int    `json:"gamesPlayed"`
	GamesWon    int    `json:"gamesWon"`
	TotalPoints int64  `json:"totalPoints"`
	WorldRank   *int   `json:"worldRank,omitempty"`
	CountryRank *int   `json:"countryRank,omitempty"`
}

// Leaderboard returns the top limit players by world rank.
func (p *Postgres) Leaderboard(ctx context.Context, limit int) ([]PlayerStats, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT user_id, username, COALESCE(country_code, ''), games_played, games_won,
		        total_points, world_rank, country_rank
		 FROM player_stats WHERE world_rank IS NOT NULL
		 ORDER BY world_rank LIMIT $1`, limit)
	if err != nil {
		return nil, wrap(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlayerStats, error) {
		var s PlayerStats
		err := row.Scan(&s.UserID, &s.Username, &s.CountryCode, &s.GamesPlayed, &s.GamesWon,
			&s.TotalPoints, &s.WorldRank, &s.CountryRank)
		return s, err
	})
	if err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

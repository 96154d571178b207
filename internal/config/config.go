// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sketchroom/internal/rules"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	JWTSecret      string
	PostgresURL    string
	RunMigrations  bool
	KafkaBrokers   []string
	KafkaTopic     string
	LogLevel       string
	LogFormat      string

	MatchmakingMinPlayers int
	LobbyCloseGrace       time.Duration
	WordFetchTimeout      time.Duration

	ChatRate    float64
	ChatBurst   int
	CanvasRate  float64
	CanvasBurst int
}

const minSecretLen = 32

// Load reads the environment, applying defaults. Every invalid value is
// reported in the returned error, not just the first.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	var errs []error
	str := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	integer := func(key string, def int) int {
		v := str(key, "")
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}
	float := func(key string, def float64) float64 {
		v := str(key, "")
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return f
	}
	boolean := func(key string, def bool) bool {
		v := str(key, "")
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return b
	}
	duration := func(key string, def time.Duration) time.Duration {
		v := str(key, "")
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return d
	}

	c := Config{
		Port:                  str("PORT", "8080"),
		AllowedOrigins:        list(str("ALLOWED_ORIGINS", "http://localhost:5173")),
		JWTSecret:             getenv("JWT_SECRET"),
		PostgresURL:           str("POSTGRES_URL", ""),
		RunMigrations:         boolean("RUN_MIGRATIONS", true),
		KafkaBrokers:          list(str("KAFKA_BROKERS", "")),
		KafkaTopic:            str("KAFKA_TOPIC", "sketchroom.events"),
		LogLevel:              str("LOG_LEVEL", "info"),
		LogFormat:             str("LOG_FORMAT", "console"),
		MatchmakingMinPlayers: integer("MATCHMAKING_MIN_PLAYERS", rules.MinPlayers),
		LobbyCloseGrace:       duration("LOBBY_CLOSE_GRACE", 10*time.Second),
		WordFetchTimeout:      duration("WORD_FETCH_TIMEOUT", rules.DefaultWordFetchWait),
		ChatRate:              float("CHAT_RATE", 3),
		ChatBurst:             integer("CHAT_BURST", 6),
		CanvasRate:            float("CANVAS_RATE", 120),
		CanvasBurst:           integer("CANVAS_BURST", 240),
	}

	if len(c.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLen))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT: %w", err))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat))
	}
	if c.MatchmakingMinPlayers < rules.MinPlayers || c.MatchmakingMinPlayers > rules.MaxPlayers {
		errs = append(errs, fmt.Errorf("MATCHMAKING_MIN_PLAYERS must be between %d and %d", rules.MinPlayers, rules.MaxPlayers))
	}
	if c.ChatRate <= 0 || c.ChatBurst < 1 || c.CanvasRate <= 0 || c.CanvasBurst < 1 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required with KAFKA_BROKERS"))
	}
	return c, errors.Join(errs...)
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

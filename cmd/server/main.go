package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"sketchroom/internal/auth"
	"sketchroom/internal/config"
	"sketchroom/internal/event"
	"sketchroom/internal/eventlog"
	"sketchroom/internal/game"
	"sketchroom/internal/lobby"
	"sketchroom/internal/logging"
	"sketchroom/internal/matchmaking"
	"sketchroom/internal/orchestrator"
	"sketchroom/internal/scoring"
	"sketchroom/internal/session"
	"sketchroom/internal/status"
	"sketchroom/internal/storage"
	"sketchroom/internal/transport"
	"sketchroom/internal/words"
	"sketchroom/pkg/realtime"
)

const tokenMaxAge = 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank, err := words.LoadBank()
	if err != nil {
		return err
	}

	var (
		store    words.Store
		recorder game.ResultRecorder
		ranks    auth.RankLookup
		leaders  status.Leaderboard
	)
	if cfg.PostgresURL != "" {
		if cfg.RunMigrations {
			if err := storage.Migrate(cfg.PostgresURL); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
		}
		pg, err := storage.NewPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("postgres not reachable yet, starting anyway")
		}
		store, recorder, ranks, leaders = pg, pg, pg, pg
	} else {
		log.Warn().Msg("POSTGRES_URL not set: using the embedded word bank, results are not kept")
	}

	hub := transport.NewHub(session.NewTable(), log)
	var emitter event.Emitter = hub
	if len(cfg.KafkaBrokers) > 0 {
		events := eventlog.New(eventlog.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, log), log)
		defer events.Close()
		emitter = eventlog.NewTee(hub, events)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("event log enabled")
	}

	loops := realtime.NewLoops()
	lobbies := lobby.NewRegistry(lobby.Config{Emitter: emitter, Scopes: hub, Loops: loops, Log: log})
	queue := matchmaking.NewQueue(matchmaking.Config{
		Lobbies:    lobbies,
		Emitter:    emitter,
		Log:        log,
		MinPlayers: cfg.MatchmakingMinPlayers,
	})
	games := orchestrator.New(orchestrator.Config{
		Lobbies:     lobbies,
		Emitter:     emitter,
		Scopes:      hub,
		Loops:       loops,
		Words:       words.NewSource(store, bank, cfg.WordFetchTimeout, log.With().Str("component", "words").Logger()),
		Scoring:     scoring.New(scoring.DefaultConfig()),
		Recorder:    recorder,
		Log:         log,
		CloseGrace:  cfg.LobbyCloseGrace,
		WordTimeout: cfg.WordFetchTimeout,
	})

	jwt := auth.NewJWTManager(cfg.JWTSecret, tokenMaxAge)
	dispatcher := transport.NewDispatcher(transport.DispatcherConfig{
		Hub:     hub,
		Auth:    auth.NewAuthenticator(jwt, ranks, log),
		Lobbies: lobbies,
		Queue:   queue,
		Games:   games,
		Limits: transport.Limits{
			ChatRate:    cfg.ChatRate,
			ChatBurst:   cfg.ChatBurst,
			CanvasRate:  cfg.CanvasRate,
			CanvasBurst: cfg.CanvasBurst,
		},
		Log: log,
	})
	collector := status.NewCollector(status.CollectorConfig{
		Lobbies: lobbies,
		Queue:   queue,
		Games:   games,
		Online:  hub.Online,
		Leaders: leaders,
		Log:     log,
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: transport.Handler(transport.ServerConfig{
			Hub:            hub,
			Dispatcher:     dispatcher,
			AllowedOrigins: cfg.AllowedOrigins,
			RequireAuth:    jwt.RequireBearer,
			Extra:          []transport.Routes{status.NewHandler(collector)},
			Log:            log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}
	return shutdown(server, log)
}

func shutdown(server *http.Server, log zerolog.Logger) error {
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

package transport

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"sketchroom/internal/logging"
)

// Routes is mounted next to the websocket endpoint, e.g. the status page.
type Routes interface {
	RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler)
}

type ServerConfig struct {
	Hub            *Hub
	Dispatcher     *Dispatcher
	AllowedOrigins []string
	RequireAuth    func(http.Handler) http.Handler
	Extra          []Routes
	Log            zerolog.Logger
}

// Server accepts websocket clients and serves the HTTP side routes.
type Server struct {
	hub        *Hub
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		hub:        cfg.Hub,
		dispatcher: cfg.Dispatcher,
		log:        cfg.Log.With().Str("component", "ws").Logger(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(cfg.AllowedOrigins, origin)
		},
	}
	return s
}

// Handler builds the full HTTP handler.
func Handler(cfg ServerConfig) http.Handler {
	s := NewServer(cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(cfg.Log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", s.ServeWS)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		for _, extra := range cfg.Extra {
			extra.RegisterRoutes(r, cfg.RequireAuth)
		}
	})

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)
}

// ServeWS upgrades the request and runs the connection until it closes.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.Run(uuid.NewString(), newWebsocketConnection(ws))
}

// Run pumps socket until it fails, then detaches it from the hub.
func (s *Server) Run(connID string, socket Socket) {
	c := &Conn{id: connID, socket: socket, out: s.hub.Attach(connID)}
	s.log.Debug().Str("conn", connID).Msg("connection opened")

	ticker := time.NewTicker(pingPeriod)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WritePump(ticker.C)
	}()

	c.ReadPump(s.dispatcher.Handle)

	ticker.Stop()
	s.hub.Detach(connID)
	s.dispatcher.Forget(connID)
	<-done
	s.log.Debug().Str("conn", connID).Msg("connection closed")
}

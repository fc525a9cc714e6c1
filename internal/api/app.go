package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/blogloom/realtime/internal/config"
	"github.com/blogloom/realtime/internal/realtime"
	"github.com/blogloom/realtime/internal/stats"
	"github.com/blogloom/realtime/internal/store"
)

type App struct {
	log            *log.Logger
	db             store.Repository
	mux            *http.Server
	rt             *realtime.Server
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string
}

func NewApp(mux *http.ServeMux, logger *log.Logger, rt *realtime.Server, db store.Repository, su stats.StatsProvider, cfg *config.Config) *App {
	s := &App{
		log:            logger,
		db:             db,
		rt:             rt,
		stats:          su,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.Handle("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("POST /api/messages", s.authMiddleware(s.createMessage))
	mux.Handle("POST /api/messages/react", s.authMiddleware(s.reactMessage))
	mux.Handle("POST /api/messages/reply", s.authMiddleware(s.replyMessage))
	mux.Handle("DELETE /api/messages", s.authMiddleware(s.deleteMessage))
	mux.Handle("DELETE /api/conversations/clear", s.authMiddleware(s.clearConversation))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *App) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

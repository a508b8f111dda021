package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/pawhaven/pawchat/internal/config"
	"github.com/pawhaven/pawchat/internal/database"
	"github.com/pawhaven/pawchat/internal/server"
)

// ChatApp wires the REST fallback surface and the WebSocket endpoints in
// front of the chat core.
type ChatApp struct {
	log            *log.Logger
	db             database.ChatRepository
	resolver       *server.Resolver
	chat           *server.ChatService
	session        *server.SessionHandler
	mux            *http.Server
	allowedOrigins []string
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, db database.ChatRepository,
	resolver *server.Resolver, chat *server.ChatService, session *server.SessionHandler,
	cfg *config.Config) *ChatApp {

	s := &ChatApp{
		log:            logger,
		db:             db,
		resolver:       resolver,
		chat:           chat,
		session:        session,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("GET /api/rooms/{id}", s.authMiddleware(s.getRoom))
	mux.Handle("POST /api/rooms/{id}/members", s.authMiddleware(s.addRoomMember))
	mux.Handle("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.Handle("PATCH /api/conversations/{id}", s.authMiddleware(s.updateConversation))
	mux.Handle("POST /api/messages/room/{id}", s.authMiddleware(s.postMessage(server.ScopeRoom)))
	mux.Handle("GET /api/messages/room/{id}", s.authMiddleware(s.listMessages(server.ScopeRoom)))
	mux.Handle("POST /api/messages/conversation/{id}", s.authMiddleware(s.postMessage(server.ScopeConversation)))
	mux.Handle("GET /api/messages/conversation/{id}", s.authMiddleware(s.listMessages(server.ScopeConversation)))
	mux.Handle("DELETE /api/messages/{id}", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("GET /ws/rooms/{id}", s.serveWs(server.ScopeRoom))
	mux.HandleFunc("GET /ws/conversations/{id}", s.serveWs(server.ScopeConversation))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatApp) generateShortId() (string, error) {
	return shortid.Generate()
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

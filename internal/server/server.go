package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"

	"poolorder/internal/config"
	"poolorder/internal/domain/identity"
	"poolorder/internal/domain/member"
	"poolorder/internal/server/handlers"
	chatservice "poolorder/internal/service/chat"
	requestservice "poolorder/internal/service/request"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	natsConn *nats.Conn,
	verifier identity.Verifier,
	allowAnonymous bool,
	requests *requestservice.Service,
	ledger member.Ledger,
	chats *chatservice.Service,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Use(handlers.Authenticate(verifier, allowAnonymous))

	// Create handler dependencies
	requestHandler := handlers.NewRequestHandler(requests, ledger)
	messageHandler := handlers.NewMessageHandler(chats)

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// Requests API
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", requestHandler.CreateRequest)
			r.Get("/mine", requestHandler.ListMine)
			r.Get("/nearby", requestHandler.Nearby)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/close", requestHandler.CloseRequest)
				r.Delete("/", requestHandler.DeleteRequest)
				r.Post("/join", requestHandler.Join)
				r.Post("/leave", requestHandler.Leave)
				r.Get("/membership", requestHandler.GetMembership)
			})
		})

		// Messages API
		r.Route("/messages/{requestID}", func(r chi.Router) {
			r.Get("/", messageHandler.GetMessages)
			r.Post("/", messageHandler.PostMessage)
		})
	})

	// WebSocket endpoint for real-time chat delivery
	router.Get("/ws/requests/{id}", handlers.ChatWebSocketHandler(natsConn, chats))

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// Router exposes the route tree, mostly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

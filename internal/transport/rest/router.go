package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "planningpoker/docs"
	"planningpoker/internal/service"
	"planningpoker/internal/transport/rest/handler"
	"planningpoker/internal/transport/rest/middleware"
	"planningpoker/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService    *service.AuthService
	SessionService *service.SessionService
	StoryService   *service.StoryService
	RoundService   *service.RoundService
	Directory      *service.DirectoryService
	WSHub          *ws.Hub
	CORS           middleware.CORSConfig
	Logger         *zap.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService, logger)
	sessionHandler := handler.NewSessionHandler(c.SessionService, c.StoryService, logger)
	storyHandler := handler.NewStoryHandler(c.StoryService, logger)
	roundHandler := handler.NewRoundHandler(c.RoundService, logger)
	userHandler := handler.NewUserHandler(c.Directory, logger)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.RoundService, logger)

	authMW := middleware.NewAuthMiddleware(c.AuthService)
	facilitator := func(h http.HandlerFunc) http.Handler {
		return authMW.RequireFacilitator(h)
	}

	// CORS middleware (apply first)
	r.Use(middleware.CORS(c.CORS))
	r.Use(middleware.RequestLogger(logger))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket route (token in query param)
	v1.HandleFunc("/ws/stories/{storyId}", wsHandler.StoryWS).Methods("GET")

	authed := v1.NewRoute().Subrouter()
	authed.Use(authMW.RequireAuth)

	authed.HandleFunc("/auth/me", authHandler.Me).Methods("GET", "OPTIONS")

	authed.Handle("/sessions", facilitator(sessionHandler.Create)).Methods("POST", "OPTIONS")
	authed.HandleFunc("/sessions", sessionHandler.List).Methods("GET", "OPTIONS")
	authed.HandleFunc("/sessions/{sessionId}", sessionHandler.Get).Methods("GET", "OPTIONS")
	authed.HandleFunc("/sessions/{sessionId}/stories", sessionHandler.Stories).Methods("GET", "OPTIONS")

	authed.Handle("/stories", facilitator(storyHandler.Create)).Methods("POST", "OPTIONS")
	authed.HandleFunc("/stories", storyHandler.List).Methods("GET", "OPTIONS")
	authed.HandleFunc("/stories/{storyId}", storyHandler.Get).Methods("GET", "OPTIONS")
	authed.Handle("/stories/{storyId}", facilitator(storyHandler.Delete)).Methods("DELETE", "OPTIONS")

	authed.Handle("/stories/{storyId}/start", facilitator(roundHandler.Start)).Methods("POST", "OPTIONS")
	authed.HandleFunc("/stories/{storyId}/votes", roundHandler.SubmitVote).Methods("POST", "OPTIONS")
	authed.HandleFunc("/stories/{storyId}/votes", roundHandler.Votes).Methods("GET", "OPTIONS")
	authed.HandleFunc("/stories/{storyId}/votes/{userId}", roundHandler.UserVote).Methods("GET", "OPTIONS")
	authed.Handle("/stories/{storyId}/reveal", facilitator(roundHandler.Reveal)).Methods("POST", "OPTIONS")
	authed.HandleFunc("/stories/{storyId}/round", roundHandler.Status).Methods("GET", "OPTIONS")

	authed.HandleFunc("/users/developers", userHandler.Developers).Methods("GET", "OPTIONS")
	authed.HandleFunc("/users/details", userHandler.Details).Methods("GET", "OPTIONS")

	return r
}
